// MockConn 是消息 socket 的内存模拟实现。
//
// 支持预置入站负载、记录出站帧与错误注入。
package mocks

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("mock conn closed")

// Inbound is one scripted receive result.
type Inbound struct {
	Data   []byte
	Binary bool
	Err    error
}

// MockConn satisfies a SendText/ReceiveText/Close/Closed socket contract.
// Receives block once the script is exhausted until ctx ends or Close.
type MockConn struct {
	mu      sync.Mutex
	sent    [][]byte
	closed  bool
	closes  int
	sendErr error

	inbound chan Inbound
	done    chan struct{}
}

// NewMockConn creates a conn that replays inbound in order.
func NewMockConn(inbound ...Inbound) *MockConn {
	ch := make(chan Inbound, len(inbound)+64)
	for _, in := range inbound {
		ch <- in
	}
	return &MockConn{inbound: ch, done: make(chan struct{})}
}

// Text is a text receive.
func Text(payload string) Inbound { return Inbound{Data: []byte(payload)} }

// Push appends a receive result while the conn is in use.
func (m *MockConn) Push(in Inbound) {
	m.inbound <- in
}

// WithSendError makes every SendText fail.
func (m *MockConn) WithSendError(err error) *MockConn {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sendErr = err
	return m
}

func (m *MockConn) SendText(ctx context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, append([]byte(nil), data...))
	return nil
}

func (m *MockConn) ReceiveText(ctx context.Context) ([]byte, bool, error) {
	select {
	case in := <-m.inbound:
		if in.Err != nil {
			return nil, false, in.Err
		}
		return in.Data, !in.Binary, nil
	case <-m.done:
		return nil, false, ErrClosed
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

func (m *MockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closes++
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.done)
	return nil
}

func (m *MockConn) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Sent returns the outbound payloads.
func (m *MockConn) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, s := range m.sent {
		out[i] = string(s)
	}
	return out
}

// CloseCalls returns how often Close was called.
func (m *MockConn) CloseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closes
}
