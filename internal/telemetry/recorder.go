package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Recorder records chathub session measurements on an OpenTelemetry meter.
// It satisfies chathub.MetricsRecorder.
type Recorder struct {
	sessions metric.Int64Counter
	active   metric.Int64UpDownCounter
	duration metric.Float64Histogram
	frames   metric.Int64Counter
	control  metric.Int64Counter
	empty    metric.Int64Counter
	salvages metric.Int64Counter
}

// NewRecorder creates the session instruments on meter.
func NewRecorder(meter metric.Meter) (*Recorder, error) {
	var r Recorder
	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}

	r.sessions = counter("chathub.sessions", "Finished stream sessions")
	r.frames = counter("chathub.frames.received", "Inbound frames by type")
	r.control = counter("chathub.control_frames.sent", "Keepalive and ack frames sent")
	r.empty = counter("chathub.empty_receives", "Empty payloads and silence timeouts")
	r.salvages = counter("chathub.salvages", "Degraded final answers replaced by streamed text")

	var err error
	r.active, err = meter.Int64UpDownCounter("chathub.sessions.active",
		metric.WithDescription("Stream sessions currently open"))
	errs = append(errs, err)
	r.duration, err = meter.Float64Histogram("chathub.session.duration",
		metric.WithDescription("Stream session duration"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.5, 1, 2, 5, 10, 30, 60, 120, 300))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &r, nil
}

func modeAttr(mode string) metric.MeasurementOption {
	return metric.WithAttributes(attribute.String("mode", mode))
}

func (r *Recorder) SessionStarted(mode string) {
	r.active.Add(context.Background(), 1, modeAttr(mode))
}

func (r *Recorder) SessionFinished(mode, outcome string, d time.Duration) {
	ctx := context.Background()
	r.active.Add(ctx, -1, modeAttr(mode))
	r.sessions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.String("outcome", outcome)))
	r.duration.Record(ctx, d.Seconds(), modeAttr(mode))
}

func (r *Recorder) RecordFrame(frameType int) {
	r.frames.Add(context.Background(), 1, metric.WithAttributes(attribute.Int("type", frameType)))
}

func (r *Recorder) RecordControlFrame(frameType int, source string) {
	r.control.Add(context.Background(), 1, metric.WithAttributes(
		attribute.Int("type", frameType),
		attribute.String("source", source)))
}

func (r *Recorder) RecordEmptyReceive(mode string) {
	r.empty.Add(context.Background(), 1, modeAttr(mode))
}

func (r *Recorder) RecordSalvage(mode string) {
	r.salvages.Add(context.Background(), 1, modeAttr(mode))
}
