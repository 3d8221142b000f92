// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的流式会话指标采集能力。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，注册目标可注入，
重复注册时复用已有指标。所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器，持有会话与帧两个维度的向量指标。

# 主要能力

  - 会话指标：结束总数（按 mode/outcome）、耗时直方图、活跃会话 Gauge。
  - 帧指标：入站帧按类型计数、出站 keepalive/ack 按来源计数、
    空载计数、降级答案修复计数。
*/
package metrics
