// Package config 提供 edgechat 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（EDGECHAT_ 前缀）的顺序叠加，
// 覆盖 Hub 端点、传输层、会话协议、图片上传、日志、指标与遥测。
package config
