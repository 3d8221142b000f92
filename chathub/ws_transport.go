package chathub

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"go.uber.org/zap"

	"github.com/BaSui01/edgechat/internal/tlsutil"
)

// DefaultReadLimit bounds one inbound websocket message.
const DefaultReadLimit int64 = 16 << 20

var errConnClosed = errors.New("connection closed")

// WebSocketTransport dials ChatHub over github.com/coder/websocket.
type WebSocketTransport struct {
	logger *zap.Logger
}

// NewWebSocketTransport creates the default transport.
func NewWebSocketTransport(logger *zap.Logger) *WebSocketTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSocketTransport{logger: logger.With(zap.String("component", "ws_transport"))}
}

// Open dials target. The upgrade is forced onto HTTP/1.1.
func (t *WebSocketTransport) Open(ctx context.Context, target Target) (Conn, error) {
	tr, err := tlsutil.NewTransport(tlsutil.TransportOptions{
		Proxy:        target.Proxy,
		RootCAs:      target.RootCAs,
		DialTimeout:  target.DialTimeout,
		DisableHTTP2: true,
	})
	if err != nil {
		return nil, fmt.Errorf("build transport: %w", err)
	}
	client := &http.Client{Transport: tr}

	header := target.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	if cookie := CookieHeader(target.Cookies); cookie != "" {
		header.Set("Cookie", cookie)
	}

	conn, resp, err := websocket.Dial(ctx, target.URL, &websocket.DialOptions{
		HTTPClient: client,
		HTTPHeader: header,
	})
	if err != nil {
		tr.CloseIdleConnections()
		if resp != nil {
			return nil, fmt.Errorf("websocket dial: status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial: %w", err)
	}

	limit := target.ReadLimit
	if limit <= 0 {
		limit = DefaultReadLimit
	}
	conn.SetReadLimit(limit)

	t.logger.Debug("websocket connected", zap.String("url", redactURL(target.URL)))
	return newWSConn(conn, tr, t.logger), nil
}

// wsConn adapts a websocket.Conn to Conn. Writes are serialized because
// the websocket does not allow concurrent writers.
type wsConn struct {
	conn   *websocket.Conn
	tr     *http.Transport
	logger *zap.Logger

	mu     sync.Mutex
	closed bool
}

func newWSConn(conn *websocket.Conn, tr *http.Transport, logger *zap.Logger) *wsConn {
	return &wsConn{conn: conn, tr: tr, logger: logger}
}

func (w *wsConn) SendText(ctx context.Context, data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return errConnClosed
	}
	if err := w.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("websocket write: %w", err)
	}
	return nil
}

func (w *wsConn) ReceiveText(ctx context.Context) ([]byte, bool, error) {
	if w.Closed() {
		return nil, false, errConnClosed
	}
	typ, data, err := w.conn.Read(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("websocket read: %w", err)
	}
	return data, typ == websocket.MessageText, nil
}

func (w *wsConn) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	err := w.conn.Close(websocket.StatusNormalClosure, "closing")
	if w.tr != nil {
		w.tr.CloseIdleConnections()
	}
	if err != nil && websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		err = nil
	}
	return err
}

func (w *wsConn) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
