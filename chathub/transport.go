package chathub

import (
	"context"
	"crypto/x509"
	"net/http"
	"time"
)

// Target describes where and how a session connects.
type Target struct {
	URL     string
	Header  http.Header
	Cookies []*http.Cookie
	// Proxy accepts http, https, socks5 and socks5h URLs. Empty falls back
	// to the environment.
	Proxy       string
	RootCAs     *x509.CertPool
	DialTimeout time.Duration
	// ReadLimit caps a single inbound message in bytes.
	ReadLimit int64
}

// Transport opens message sockets.
type Transport interface {
	Open(ctx context.Context, target Target) (Conn, error)
}

// Conn is a bidirectional message socket. SendText is safe for concurrent
// use; ReceiveText must have only one caller at a time.
type Conn interface {
	SendText(ctx context.Context, data []byte) error
	// ReceiveText returns the next message. text is false for binary
	// messages.
	ReceiveText(ctx context.Context) (data []byte, text bool, err error)
	Close() error
	Closed() bool
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, target Target) (Conn, error)

// Open calls f.
func (f TransportFunc) Open(ctx context.Context, target Target) (Conn, error) {
	return f(ctx, target)
}
