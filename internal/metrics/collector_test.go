package metrics

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), prometheus.NewRegistry(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.sessionsTotal)
	assert.NotNil(t, collector.sessionDuration)
	assert.NotNil(t, collector.framesTotal)
	assert.NotNil(t, collector.heartbeatsTotal)
	assert.NotNil(t, collector.salvagesTotal)
}

func TestNewCollector_ReusesRegisteredMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	ns := nextTestNamespace()

	first := NewCollector(ns, reg, nil)
	second := NewCollector(ns, reg, nil)

	first.RecordSalvage("Bing")
	second.RecordSalvage("Bing")

	assert.Equal(t, 2.0, testutil.ToFloat64(first.salvagesTotal.WithLabelValues("Bing")))
}

func TestCollector_SessionLifecycle(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), prometheus.NewRegistry(), nil)

	collector.SessionStarted("Bing")
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.activeSessions.WithLabelValues("Bing")))

	collector.SessionFinished("Bing", "success", 2*time.Second)
	assert.Equal(t, 0.0, testutil.ToFloat64(collector.activeSessions.WithLabelValues("Bing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.sessionsTotal.WithLabelValues("Bing", "success")))
	assert.Equal(t, 1, testutil.CollectAndCount(collector.sessionDuration))
}

func TestCollector_FrameCounters(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), prometheus.NewRegistry(), nil)

	collector.RecordFrame(1)
	collector.RecordFrame(1)
	collector.RecordFrame(2)
	collector.RecordFrame(42)
	collector.RecordControlFrame(6, "timer")
	collector.RecordControlFrame(7, "reply")
	collector.RecordEmptyReceive("Copilot")

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.framesTotal.WithLabelValues("partial")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.framesTotal.WithLabelValues("final")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.framesTotal.WithLabelValues("other")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.heartbeatsTotal.WithLabelValues("keepalive", "timer")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.heartbeatsTotal.WithLabelValues("ack", "reply")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.emptyReceipts.WithLabelValues("Copilot")))
}

func TestFrameTypeLabel(t *testing.T) {
	assert.Equal(t, "partial", frameTypeLabel(1))
	assert.Equal(t, "final", frameTypeLabel(2))
	assert.Equal(t, "3", frameTypeLabel(3))
	assert.Equal(t, "keepalive", frameTypeLabel(6))
	assert.Equal(t, "ack", frameTypeLabel(7))
	assert.Equal(t, "other", frameTypeLabel(-1))
}
