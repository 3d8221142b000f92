package ctxkeys

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceID(t *testing.T) {
	_, ok := TraceID(context.Background())
	assert.False(t, ok)

	ctx := WithTraceID(context.Background(), "trace-1")
	v, ok := TraceID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "trace-1", v)

	_, ok = TraceID(WithTraceID(context.Background(), ""))
	assert.False(t, ok, "empty trace id is treated as absent")
}
