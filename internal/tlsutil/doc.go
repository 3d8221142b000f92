// Package tlsutil 提供集中式 TLS 配置，
// 为 websocket 拨号与 HTTP 客户端提供安全加固的 TLS 设置（TLS 1.2+，仅 AEAD 密码套件），
// 并负责自定义信任根加载与 http/socks5 代理接入。
package tlsutil
