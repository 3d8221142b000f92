package chathub

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/edgechat/types"
)

// Heartbeat sources reported to the metrics recorder.
const (
	sourceTimer = "timer"
	sourceReply = "reply"
)

// keepAlive sends timer driven pings and answers server control frames.
type keepAlive struct {
	conn    Conn
	metrics MetricsRecorder
	logger  *zap.Logger
}

func newKeepAlive(conn Conn, metrics MetricsRecorder, logger *zap.Logger) *keepAlive {
	return &keepAlive{
		conn:    conn,
		metrics: metrics,
		logger:  logger.With(zap.String("component", "keepalive")),
	}
}

// Beat sends one proactive ping.
func (k *keepAlive) Beat(ctx context.Context) error {
	return k.send(ctx, TypePing, sourceTimer)
}

// Respond answers a server ping or ack. It reports false for any other type.
func (k *keepAlive) Respond(ctx context.Context, frameType int) (bool, error) {
	switch frameType {
	case TypePing, TypeAck:
		return true, k.send(ctx, frameType, sourceReply)
	default:
		return false, nil
	}
}

func (k *keepAlive) send(ctx context.Context, frameType int, source string) error {
	if err := k.conn.SendText(ctx, encodeControl(frameType)); err != nil {
		return types.NewError(types.ErrConnection, "send control frame").WithCause(err)
	}
	k.metrics.RecordControlFrame(frameType, source)
	k.logger.Debug("control frame sent",
		zap.Int("type", frameType),
		zap.String("source", source))
	return nil
}
