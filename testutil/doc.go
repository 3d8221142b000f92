// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 edgechat 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext，自动注册 Cleanup 防止泄漏
  - 断言工具: AssertJSONEqual / AssertEventuallyTrue
  - 通道工具: WaitFor / WaitForChannel / Collect
  - Fake ChatHub: Hub 为每个连接执行一段 Script，记录客户端发出的全部帧、
    升级请求头与查询参数

# 子包

  - testutil/mocks: MockConn，内存版消息 socket，支持脚本化入站与错误注入
  - testutil/fixtures: 以 0x1E 结尾的 ChatHub 帧样例（增量、最终、降级、错误、控制帧）

# 使用示例

	hub := testutil.NewHub(t, func(ctx context.Context, c *testutil.HubConn) {
		c.Handshake(ctx)
		c.AwaitRequest(ctx)
		c.Send(ctx, fixtures.Partial("Hello"), fixtures.Final("Hello"))
	})
	client := chathub.NewClient(state, chathub.WithURL(hub.URL()))
*/
package testutil
