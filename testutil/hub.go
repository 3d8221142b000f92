// =============================================================================
// 🛰️ Fake ChatHub 服务端
// =============================================================================
// 基于 httptest + coder/websocket 的脚本化服务端，用于端到端测试会话流程。
//
// 使用方法:
//
//	hub := testutil.NewHub(t, func(ctx context.Context, c *testutil.HubConn) {
//		c.Handshake(ctx)
//		c.AwaitRequest(ctx)
//		c.Send(ctx, fixtures.Partial("Hello"), fixtures.Final("Hello"))
//	})
// =============================================================================
package testutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/tidwall/gjson"
)

// Script drives one accepted connection. Returning does not close the
// socket; the hub keeps reading until the client goes away.
type Script func(ctx context.Context, c *HubConn)

// Hub is a scripted ChatHub websocket server.
type Hub struct {
	srv    *httptest.Server
	script Script

	mu       sync.Mutex
	received []string
	headers  []http.Header
	queries  []url.Values
	conns    int
	closed   int
}

// NewHub starts a hub that runs script for every connection.
func NewHub(t *testing.T, script Script) *Hub {
	t.Helper()
	h := &Hub{script: script}
	h.srv = httptest.NewServer(http.HandlerFunc(h.serve))
	t.Cleanup(h.srv.Close)
	return h
}

// URL returns the ws:// endpoint.
func (h *Hub) URL() string {
	return "ws" + strings.TrimPrefix(h.srv.URL, "http") + "/sydney/ChatHub"
}

func (h *Hub) serve(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	h.headers = append(h.headers, r.Header.Clone())
	h.queries = append(h.queries, r.URL.Query())
	h.conns++
	h.mu.Unlock()

	// Browser presets send a foreign Origin.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(16 << 20)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	hc := &HubConn{conn: conn, hub: h, incoming: make(chan string, 256), readDone: make(chan struct{})}
	go hc.readLoop(ctx)

	if h.script != nil {
		h.script(ctx, hc)
	}

	select {
	case <-hc.readDone:
	case <-time.After(10 * time.Second):
	}
}

// Received returns every text message the clients sent, in order.
func (h *Hub) Received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.received...)
}

// ReceivedOfType returns the received frames whose type equals frameType.
func (h *Hub) ReceivedOfType(frameType int) []string {
	var out []string
	for _, msg := range h.Received() {
		for _, seg := range strings.Split(msg, "\x1e") {
			if seg != "" && gjson.Get(seg, "type").Int() == int64(frameType) {
				out = append(out, seg)
			}
		}
	}
	return out
}

// Headers returns the upgrade request headers of each connection.
func (h *Hub) Headers() []http.Header {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]http.Header(nil), h.headers...)
}

// Queries returns the upgrade query of each connection.
func (h *Hub) Queries() []url.Values {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]url.Values(nil), h.queries...)
}

// Connections returns how many upgrades were attempted.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.conns
}

// ClosedConnections returns how many client connections have ended.
func (h *Hub) ClosedConnections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

// HubConn is the server side of one connection.
type HubConn struct {
	conn     *websocket.Conn
	hub      *Hub
	incoming chan string
	readDone chan struct{}
}

func (c *HubConn) readLoop(ctx context.Context) {
	defer close(c.readDone)
	defer func() {
		c.hub.mu.Lock()
		c.hub.closed++
		c.hub.mu.Unlock()
	}()
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			close(c.incoming)
			return
		}
		msg := string(data)
		c.hub.mu.Lock()
		c.hub.received = append(c.hub.received, msg)
		c.hub.mu.Unlock()
		select {
		case c.incoming <- msg:
		default:
		}
	}
}

// Next returns the next client message, or false when the client is gone.
func (c *HubConn) Next(ctx context.Context) (string, bool) {
	select {
	case msg, ok := <-c.incoming:
		return msg, ok
	case <-ctx.Done():
		return "", false
	}
}

// Handshake consumes the protocol request and acknowledges it.
func (c *HubConn) Handshake(ctx context.Context) bool {
	msg, ok := c.Next(ctx)
	if !ok || !strings.Contains(msg, `"protocol":"json"`) {
		return false
	}
	return c.Send(ctx, "{}\x1e")
}

// AwaitRequest skips control frames until the type 4 invocation arrives.
func (c *HubConn) AwaitRequest(ctx context.Context) (string, bool) {
	for {
		msg, ok := c.Next(ctx)
		if !ok {
			return "", false
		}
		if gjson.Get(strings.TrimRight(msg, "\x1e"), "type").Int() == 4 {
			return msg, true
		}
	}
}

// Send writes each payload as one text message.
func (c *HubConn) Send(ctx context.Context, payloads ...string) bool {
	for _, p := range payloads {
		if err := c.conn.Write(ctx, websocket.MessageText, []byte(p)); err != nil {
			return false
		}
	}
	return true
}

// SendBinary writes one binary message.
func (c *HubConn) SendBinary(ctx context.Context, data []byte) bool {
	return c.conn.Write(ctx, websocket.MessageBinary, data) == nil
}

// Drop closes the socket without a close handshake.
func (c *HubConn) Drop() {
	_ = c.conn.CloseNow()
}
