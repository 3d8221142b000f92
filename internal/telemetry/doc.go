// Package telemetry 初始化 OpenTelemetry SDK：会话 span 的 TracerProvider、
// 会话指标的 MeterProvider，以及基于 Meter 的 chathub 指标记录器 Recorder。
// 禁用时不连接任何外部服务。
package telemetry
