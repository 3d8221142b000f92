package chathub

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/edgechat/internal/ctxkeys"
	"github.com/BaSui01/edgechat/types"
	"github.com/BaSui01/edgechat/upload"
)

// State is the lifecycle position of a session.
type State int32

const (
	StateConnecting State = iota
	StateHandshaking
	StateStreaming
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateHandshaking:
		return "handshaking"
	case StateStreaming:
		return "streaming"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// SessionConfig tunes the protocol timers of a session.
type SessionConfig struct {
	HandshakeTimeout  time.Duration
	KeepAliveInterval time.Duration
	// RetryBudget is the number of empty receives tolerated before the
	// session fails. It is not replenished by non-empty payloads.
	RetryBudget int
	// SilenceTimeout counts a quiet period as an empty receive. Zero
	// disables it.
	SilenceTimeout time.Duration
}

// DefaultSessionConfig returns the protocol defaults.
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		HandshakeTimeout:  10 * time.Second,
		KeepAliveInterval: 6 * time.Second,
		RetryBudget:       5,
	}
}

func (c SessionConfig) withDefaults() SessionConfig {
	d := DefaultSessionConfig()
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = d.HandshakeTimeout
	}
	if c.KeepAliveInterval <= 0 {
		c.KeepAliveInterval = d.KeepAliveInterval
	}
	if c.RetryBudget <= 0 {
		c.RetryBudget = d.RetryBudget
	}
	if c.SilenceTimeout < 0 {
		c.SilenceTimeout = 0
	}
	return c
}

// errStreamDone stops the errgroup after the final frame was delivered.
var errStreamDone = errors.New("stream done")

type receiveResult struct {
	data []byte
	text bool
	err  error
}

// session runs one ask from dial to final frame.
type session struct {
	cfg       SessionConfig
	mode      string
	target    Target
	transport Transport
	uploader  ImageUploader
	builder   RequestBuilder
	input     RequestInput
	opts      askOptions

	acc     *Accumulator
	metrics MetricsRecorder
	tracer  trace.Tracer
	logger  *zap.Logger

	out   chan<- Update
	state atomic.Int32

	conn        Conn
	releaseOnce sync.Once
}

func (s *session) setState(st State) {
	prev := State(s.state.Swap(int32(st)))
	if prev != st {
		s.logger.Debug("session state changed",
			zap.Stringer("from", prev),
			zap.Stringer("to", st))
	}
}

// release closes the socket exactly once.
func (s *session) release() {
	s.releaseOnce.Do(func() {
		if s.conn != nil {
			if err := s.conn.Close(); err != nil {
				s.logger.Debug("close connection", zap.Error(err))
			}
		}
		s.setState(StateTerminated)
	})
}

func (s *session) run(ctx context.Context) (err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "chathub.ask",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("chathub.mode", s.mode),
			attribute.String("chathub.style", string(s.opts.style)),
			attribute.String("chathub.locale", s.opts.locale),
			attribute.Bool("chathub.raw", s.opts.raw),
			attribute.Bool("chathub.attachment", s.opts.attachment != nil),
		))
	if sc := span.SpanContext(); sc.HasTraceID() {
		ctx = ctxkeys.WithTraceID(ctx, sc.TraceID().String())
	}
	if id, ok := ctxkeys.TraceID(ctx); ok {
		s.logger = s.logger.With(zap.String("trace_id", id))
	}
	s.metrics.SessionStarted(s.mode)

	defer func() {
		s.release()
		outcome := "success"
		if err != nil {
			outcome = string(types.GetErrorCode(err))
			if outcome == "" {
				outcome = "unknown"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			s.logger.Warn("ask failed", zap.String("code", outcome), zap.Error(err))
		} else {
			span.SetStatus(codes.Ok, "")
		}
		dur := time.Since(start)
		s.metrics.SessionFinished(s.mode, outcome, dur)
		span.End()
		s.logger.Debug("ask finished", zap.String("outcome", outcome), zap.Duration("duration", dur))
	}()

	s.acc.Reset()

	s.setState(StateConnecting)
	conn, err := s.transport.Open(ctx, s.target)
	if err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx)
		}
		return types.NewError(types.ErrConnection, "open websocket").WithCause(err)
	}
	s.conn = conn

	s.setState(StateHandshaking)
	if err := Handshake(ctx, conn, s.cfg.HandshakeTimeout); err != nil {
		return err
	}

	if s.opts.attachment != nil {
		imageURL, err := s.resolveAttachment(ctx, *s.opts.attachment)
		if err != nil {
			return err
		}
		s.input.ImageURL = imageURL
	}

	payload, err := s.builder.Build(s.input)
	if err != nil {
		return types.WrapError(err, types.ErrInvalidRequest, "build request")
	}
	data, err := Encode(payload)
	if err != nil {
		return err
	}
	if err := conn.SendText(ctx, data); err != nil {
		if ctx.Err() != nil {
			return cancelled(ctx)
		}
		return types.NewError(types.ErrConnection, "send request").WithCause(err)
	}

	s.setState(StateStreaming)
	return s.stream(ctx, span)
}

func (s *session) resolveAttachment(ctx context.Context, att upload.Attachment) (string, error) {
	if s.uploader == nil {
		return "", types.NewError(types.ErrAttachment, "no image uploader configured")
	}
	id, err := s.uploader.Upload(ctx, att, s.input.State.ConversationID)
	if err != nil {
		if ctx.Err() != nil {
			return "", cancelled(ctx)
		}
		return "", types.NewError(types.ErrAttachment, "upload image").WithCause(err)
	}
	if id == "" {
		s.logger.Warn("image upload returned no blob id; sending prompt without image")
		return "", nil
	}
	return upload.BlobURL(id), nil
}

// stream runs the receive pump and the dispatch loop until the final frame,
// a fatal error or cancellation.
func (s *session) stream(ctx context.Context, span trace.Span) error {
	g, gctx := errgroup.WithContext(ctx)
	results := make(chan receiveResult)

	g.Go(func() error {
		for {
			data, text, err := s.conn.ReceiveText(gctx)
			select {
			case results <- receiveResult{data: data, text: text, err: err}:
			case <-gctx.Done():
				return nil
			}
			if err != nil {
				return nil
			}
		}
	})

	g.Go(func() error {
		return s.dispatch(gctx, results, span)
	})

	err := g.Wait()
	switch {
	case errors.Is(err, errStreamDone):
		return nil
	case ctx.Err() != nil:
		return cancelled(ctx)
	default:
		return err
	}
}

func (s *session) dispatch(ctx context.Context, results <-chan receiveResult, span trace.Span) error {
	keep := newKeepAlive(s.conn, s.metrics, s.logger)
	ticker := time.NewTicker(s.cfg.KeepAliveInterval)
	defer ticker.Stop()

	var silence *time.Timer
	var silenceC <-chan time.Time
	if s.cfg.SilenceTimeout > 0 {
		silence = time.NewTimer(s.cfg.SilenceTimeout)
		defer silence.Stop()
		silenceC = silence.C
	}

	budget := s.cfg.RetryBudget
	spend := func(reason string) error {
		budget--
		s.metrics.RecordEmptyReceive(s.mode)
		s.logger.Debug("empty receive", zap.String("reason", reason), zap.Int("budget_left", budget))
		if budget <= 0 {
			return types.NewError(types.ErrNoServerResponse,
				fmt.Sprintf("no response from server after %d empty receives", s.cfg.RetryBudget))
		}
		return nil
	}

	d := &dispatcher{session: s, keep: keep, beat: ticker.C, span: span}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			if err := keep.Beat(ctx); err != nil {
				return err
			}

		case <-silenceC:
			if err := spend("silence"); err != nil {
				return err
			}
			silence.Reset(s.cfg.SilenceTimeout)

		case res := <-results:
			if res.err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return types.NewError(types.ErrConnection, "connection lost").WithCause(res.err)
			}
			if silence != nil {
				silence.Reset(s.cfg.SilenceTimeout)
			}
			if !res.text {
				continue
			}
			if len(res.data) == 0 {
				if err := spend("empty payload"); err != nil {
					return err
				}
				continue
			}

			frames, err := Decode(res.data)
			if err != nil {
				return err
			}
			for _, f := range frames {
				if err := d.handle(ctx, f); err != nil {
					return err
				}
			}
		}
	}
}

// dispatcher routes decoded frames. It runs on the dispatch goroutine.
type dispatcher struct {
	*session
	keep *keepAlive
	beat <-chan time.Time
	span trace.Span
}

func (d *dispatcher) handle(ctx context.Context, f Frame) error {
	ft := FrameType(f)
	d.metrics.RecordFrame(ft)

	if handled, err := d.keep.Respond(ctx, ft); handled || err != nil {
		return err
	}

	switch ft {
	case TypePartial:
		view, ok := d.acc.FoldPartial(f)
		if d.opts.raw {
			return d.emit(ctx, Update{Raw: f}, true)
		}
		if !ok {
			return nil
		}
		return d.emit(ctx, Update{Text: view.Text, Stripped: view.Stripped}, true)

	case TypeFinal:
		if err := serverError(f); err != nil {
			return err
		}
		final, salvaged := d.acc.Salvage(f)
		if salvaged {
			d.metrics.RecordSalvage(d.mode)
			d.span.AddEvent("chathub.salvage", trace.WithAttributes(
				attribute.Int("chathub.linked_len", len(d.acc.Answer().Linked)),
			))
		}
		d.release()
		answer := d.acc.Answer()
		if err := d.emit(ctx, Update{Final: true, Text: answer.Linked, Stripped: answer.Stripped, Raw: final}, false); err != nil {
			return err
		}
		return errStreamDone

	default:
		if d.opts.raw {
			return d.emit(ctx, Update{Raw: f}, true)
		}
		d.logger.Debug("dropping frame", zap.Int("type", ft))
		return nil
	}
}

// emit hands u to the caller. While it waits the heartbeat keeps running
// unless the socket is already released.
func (d *dispatcher) emit(ctx context.Context, u Update, heartbeat bool) error {
	beat := d.beat
	if !heartbeat {
		beat = nil
	}
	for {
		select {
		case d.out <- u:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-beat:
			if err := d.keep.Beat(ctx); err != nil {
				return err
			}
		}
	}
}

// serverError converts an error result of a final frame.
func serverError(f Frame) error {
	result := gjson.GetBytes(f, "item.result")
	if !truthy(result.Get("error")) {
		return nil
	}
	value := result.Get("value").String()
	msg := result.Get("message").String()
	return types.NewError(types.ErrServerReported, fmt.Sprintf("%s: %s", value, msg)).
		WithUpstreamCode(value)
}

func cancelled(ctx context.Context) error {
	return types.NewError(types.ErrCancelled, "ask cancelled").WithCause(context.Cause(ctx))
}
