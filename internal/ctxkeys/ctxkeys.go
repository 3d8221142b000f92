// Package ctxkeys 定义跨包共享的 context 键，用于日志关联。
package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const traceIDKey contextKey = "trace_id"

// WithTraceID 设置 TraceID
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID 获取 TraceID
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
