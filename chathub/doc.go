// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package chathub 实现 Bing/Copilot ChatHub 流式会话协议。

# 概述

一次 Ask 对应一个独立会话：建立 websocket、完成 json 子协议握手、
（可选）上传图片、发送 type 4 调用帧，然后持续接收以 0x1E 分隔的
JSON 帧，直到收到 type 2 最终帧或发生致命错误。

# 核心组件

  - Encode / Decode: 记录分隔符帧编解码，非法片段直接返回 MALFORMED_FRAME
  - Handshake: 发送 {"protocol":"json","version":1}，等待一次回复后发送首个 ping
  - keepAlive: 基于 time.Ticker 的心跳，并应答服务端 type 6 / type 7
  - Accumulator: 折叠 type 1 增量帧，维护带链接与去链接两份文本，
    在最终帧被降级为 Apology 时回填已累积的答案
  - Client / Stream: 调用方接口，Stream 在任意退出路径上只释放一次资源

# 使用示例

	client := chathub.NewClient(state, chathub.WithCookies(cookies))
	defer client.Close()

	stream, err := client.Ask(ctx, "Hello", chathub.WithStyle(chathub.StylePrecise))
	if err != nil {
		return err
	}
	defer stream.Close()

	for u := range stream.Updates() {
		if u.Err != nil {
			return u.Err
		}
		if u.Final {
			fmt.Println(u.Text)
			break
		}
	}
*/
package chathub
