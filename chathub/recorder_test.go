package chathub

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	tu "github.com/BaSui01/edgechat/testutil"
	"github.com/BaSui01/edgechat/testutil/fixtures"
	"github.com/BaSui01/edgechat/testutil/mocks"
)

type countingRecorder struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *countingRecorder) bump(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.calls == nil {
		c.calls = map[string]int{}
	}
	c.calls[name]++
}

func (c *countingRecorder) count(name string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[name]
}

func (c *countingRecorder) SessionStarted(string) { c.bump("started") }
func (c *countingRecorder) SessionFinished(string, string, time.Duration) { c.bump("finished") }
func (c *countingRecorder) RecordFrame(int) { c.bump("frame") }
func (c *countingRecorder) RecordControlFrame(int, string) { c.bump("control") }
func (c *countingRecorder) RecordEmptyReceive(string) { c.bump("empty") }
func (c *countingRecorder) RecordSalvage(string) { c.bump("salvage") }

func TestMultiRecorder(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	m := MultiRecorder(a, nil, b)

	m.SessionStarted(ModeBing)
	m.RecordFrame(TypePartial)
	m.RecordControlFrame(TypePing, "timer")
	m.RecordEmptyReceive(ModeBing)
	m.RecordSalvage(ModeBing)
	m.SessionFinished(ModeBing, "success", time.Second)

	for _, r := range []*countingRecorder{a, b} {
		for _, name := range []string{"started", "frame", "control", "empty", "salvage", "finished"} {
			assert.Equal(t, 1, r.count(name), name)
		}
	}
}

func TestMultiRecorder_Collapses(t *testing.T) {
	assert.IsType(t, nopRecorder{}, MultiRecorder())
	assert.IsType(t, nopRecorder{}, MultiRecorder(nil, nil))

	a := &countingRecorder{}
	assert.Same(t, a, MultiRecorder(nil, a))
}

func TestAsk_FansOutToAllRecorders(t *testing.T) {
	a, b := &countingRecorder{}, &countingRecorder{}
	conn := mocks.NewMockConn(handshakeAck, mocks.Text(helloPartial), mocks.Text(fixtures.Final("Hello")))
	c := newMockClient(t, conn, WithMetrics(MultiRecorder(a, b)))

	_, err := mustAsk(t, c, "Hi").Final(tu.TestContext(t))
	assert.NoError(t, err)
	for _, r := range []*countingRecorder{a, b} {
		assert.Equal(t, 1, r.count("started"))
		assert.Equal(t, 1, r.count("finished"))
		assert.Positive(t, r.count("frame"))
	}
}
