// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 会话指标收集器
type Collector struct {
	// 会话指标
	sessionsTotal   *prometheus.CounterVec
	sessionDuration *prometheus.HistogramVec
	activeSessions  *prometheus.GaugeVec

	// 帧指标
	framesTotal     *prometheus.CounterVec
	heartbeatsTotal *prometheus.CounterVec
	emptyReceipts   *prometheus.CounterVec
	salvagesTotal   *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector 创建指标收集器并注册到 reg（为 nil 时使用默认 Registerer）。
// 同名指标已注册时复用已有指标，因此同一进程内可以创建多个 Collector。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.sessionsTotal = register(reg, c.logger, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of finished stream sessions",
		},
		[]string{"mode", "outcome"},
	))

	c.sessionDuration = register(reg, c.logger, prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "session_duration_seconds",
			Help:      "Stream session duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"mode"},
	))

	c.activeSessions = register(reg, c.logger, prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of stream sessions currently open",
		},
		[]string{"mode"},
	))

	c.framesTotal = register(reg, c.logger, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Total number of inbound frames by type",
		},
		[]string{"type"},
	))

	c.heartbeatsTotal = register(reg, c.logger, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "control_frames_sent_total",
			Help:      "Total number of keepalive/ack frames sent",
		},
		[]string{"type", "source"},
	))

	c.emptyReceipts = register(reg, c.logger, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "empty_receives_total",
			Help:      "Total number of empty or silent receives",
		},
		[]string{"mode"},
	))

	c.salvagesTotal = register(reg, c.logger, prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "salvaged_answers_total",
			Help:      "Total number of degraded final answers replaced by streamed text",
		},
		[]string{"mode"},
	))

	return c
}

// register 注册指标；已存在时返回已注册的实例。
func register[T prometheus.Collector](reg prometheus.Registerer, logger *zap.Logger, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		logger.Warn("metric registration failed", zap.Error(err))
	}
	return c
}

// =============================================================================
// 🧵 会话指标
// =============================================================================

// SessionStarted 记录会话开始
func (c *Collector) SessionStarted(mode string) {
	c.activeSessions.WithLabelValues(mode).Inc()
}

// SessionFinished 记录会话结束；outcome 为 "success" 或错误码
func (c *Collector) SessionFinished(mode, outcome string, duration time.Duration) {
	c.activeSessions.WithLabelValues(mode).Dec()
	c.sessionsTotal.WithLabelValues(mode, outcome).Inc()
	c.sessionDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// =============================================================================
// 📨 帧指标
// =============================================================================

// RecordFrame 记录一个入站帧
func (c *Collector) RecordFrame(frameType int) {
	c.framesTotal.WithLabelValues(frameTypeLabel(frameType)).Inc()
}

// RecordControlFrame 记录一个出站控制帧；source 为 "timer" 或 "reply"
func (c *Collector) RecordControlFrame(frameType int, source string) {
	c.heartbeatsTotal.WithLabelValues(frameTypeLabel(frameType), source).Inc()
}

// RecordEmptyReceive 记录一次空载或静默超时
func (c *Collector) RecordEmptyReceive(mode string) {
	c.emptyReceipts.WithLabelValues(mode).Inc()
}

// RecordSalvage 记录一次降级答案修复
func (c *Collector) RecordSalvage(mode string) {
	c.salvagesTotal.WithLabelValues(mode).Inc()
}

// frameTypeLabel 将已知帧类型映射为可读 label，未知类型归为 other
func frameTypeLabel(frameType int) string {
	switch frameType {
	case 1:
		return "partial"
	case 2:
		return "final"
	case 6:
		return "keepalive"
	case 7:
		return "ack"
	default:
		if frameType > 0 && frameType < 16 {
			return strconv.Itoa(frameType)
		}
		return "other"
	}
}
