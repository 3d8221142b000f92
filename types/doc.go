// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 edgechat 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 chathub、upload 等上层
模块提供统一的错误契约，避免循环依赖。

# 核心类型

  - Error / ErrorCode: 结构化错误体系，含 UpstreamCode、Retryable 与 Cause

# 主要能力

  - 会话错误分类：CONNECTION_ERROR / HANDSHAKE_TIMEOUT / ATTACHMENT_ERROR /
    MALFORMED_FRAME / NO_SERVER_RESPONSE / SERVER_REPORTED_ERROR / CANCELLED
  - 错误工具链：WrapError / AsError / IsErrorCode / GetErrorCode / IsRetryable
*/
package types
