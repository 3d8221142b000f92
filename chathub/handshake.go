package chathub

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/edgechat/types"
)

type handshakeRequest struct {
	Protocol string `json:"protocol"`
	Version  int    `json:"version"`
}

// Handshake negotiates the json sub-protocol on a freshly opened conn. It
// sends the protocol request, waits for exactly one inbound payload within
// timeout and then sends the first ping. The reply content is not inspected.
func Handshake(ctx context.Context, conn Conn, timeout time.Duration) error {
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := Encode(handshakeRequest{Protocol: "json", Version: 1})
	if err != nil {
		return err
	}
	if err := conn.SendText(hctx, req); err != nil {
		return handshakeError(ctx, "send protocol request", timeout, err)
	}
	if _, _, err := conn.ReceiveText(hctx); err != nil {
		return handshakeError(ctx, "await protocol ack", timeout, err)
	}
	if err := conn.SendText(hctx, encodeControl(TypePing)); err != nil {
		return handshakeError(ctx, "send initial ping", timeout, err)
	}
	return nil
}

func handshakeError(parent context.Context, step string, timeout time.Duration, err error) error {
	if parent.Err() != nil {
		return types.NewError(types.ErrCancelled, "handshake cancelled").WithCause(parent.Err())
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewError(types.ErrHandshakeTimeout,
			fmt.Sprintf("%s: no reply within %s", step, timeout)).WithCause(err)
	}
	return types.NewError(types.ErrHandshakeTimeout, step).WithCause(err)
}
