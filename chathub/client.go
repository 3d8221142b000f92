package chathub

import (
	"context"
	"crypto/x509"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/edgechat/types"
	"github.com/BaSui01/edgechat/upload"
)

// InstrumentationName names the tracer used when none is injected.
const InstrumentationName = "github.com/BaSui01/edgechat/chathub"

// ConversationState is the identity of a conversation. It is passed by
// value; a Client never shares it with a running stream.
type ConversationState struct {
	ConversationID                 string `json:"conversation_id"`
	ClientID                       string `json:"client_id"`
	ConversationSignature          string `json:"conversation_signature,omitempty"`
	EncryptedConversationSignature string `json:"encrypted_conversation_signature,omitempty"`
}

// ImageUploader resolves an attachment to a blob id. An empty id without
// error means no image is attached.
type ImageUploader interface {
	Upload(ctx context.Context, att upload.Attachment, conversationID string) (string, error)
}

// Option configures a Client.
type Option func(*Client)

// WithTransport replaces the websocket transport.
func WithTransport(t Transport) Option {
	return func(c *Client) { c.transport = t }
}

// WithUploader replaces the image uploader.
func WithUploader(u ImageUploader) Option {
	return func(c *Client) { c.uploader = u }
}

// WithRequestBuilder replaces the request builder.
func WithRequestBuilder(b RequestBuilder) Option {
	return func(c *Client) { c.builder = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t trace.Tracer) Option {
	return func(c *Client) { c.tracer = t }
}

// WithSessionConfig sets the protocol timers.
func WithSessionConfig(cfg SessionConfig) Option {
	return func(c *Client) { c.session = cfg }
}

// WithMode selects the Bing or Copilot header preset.
func WithMode(mode string) Option {
	return func(c *Client) { c.mode = mode }
}

// WithURL overrides the ChatHub endpoint.
func WithURL(u string) Option {
	return func(c *Client) { c.url = u }
}

// WithCookies sets the cookies sent on the websocket upgrade and uploads.
func WithCookies(cookies []*http.Cookie) Option {
	return func(c *Client) { c.cookies = cookies }
}

// WithProxy sets an http, https, socks5 or socks5h proxy.
func WithProxy(proxy string) Option {
	return func(c *Client) { c.proxy = proxy }
}

// WithRootCAs sets the trust store for the websocket dial.
func WithRootCAs(pool *x509.CertPool) Option {
	return func(c *Client) { c.rootCAs = pool }
}

// WithDialTimeout bounds the TCP dial.
func WithDialTimeout(d time.Duration) Option {
	return func(c *Client) { c.dialTimeout = d }
}

// WithReadLimit caps one inbound message in bytes.
func WithReadLimit(n int64) Option {
	return func(c *Client) { c.readLimit = n }
}

// WithDefaultStyle sets the style used when an ask does not pick one.
func WithDefaultStyle(s Style) Option {
	return func(c *Client) { c.style = s }
}

// WithDefaultLocale sets the locale used when an ask does not pick one.
func WithDefaultLocale(locale string) Option {
	return func(c *Client) { c.locale = locale }
}

// Client asks questions within one conversation. It is safe for concurrent
// use; every Ask runs an independent session.
type Client struct {
	transport Transport
	uploader  ImageUploader
	builder   RequestBuilder
	logger    *zap.Logger
	metrics   MetricsRecorder
	tracer    trace.Tracer
	session   SessionConfig

	mode        string
	url         string
	style       Style
	locale      string
	cookies     []*http.Cookie
	proxy       string
	rootCAs     *x509.CertPool
	dialTimeout time.Duration
	readLimit   int64

	ownedUploader *upload.Uploader

	mu      sync.Mutex
	state   ConversationState
	streams map[*Stream]struct{}
	closed  bool
}

// NewClient creates a client for the conversation identified by state.
func NewClient(state ConversationState, opts ...Option) *Client {
	c := &Client{
		state:   state,
		mode:    ModeBing,
		session: DefaultSessionConfig(),
		streams: make(map[*Stream]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.logger = c.logger.With(zap.String("component", "chathub_client"))
	if c.metrics == nil {
		c.metrics = nopRecorder{}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(InstrumentationName)
	}
	if c.transport == nil {
		c.transport = NewWebSocketTransport(c.logger)
	}
	if c.builder == nil {
		c.builder = NewRequestBuilder()
	}
	if c.uploader == nil {
		header := http.Header{}
		header.Set("user-agent", userAgent)
		if cookie := CookieHeader(c.cookies); cookie != "" {
			header.Set("Cookie", cookie)
		}
		c.ownedUploader = upload.New(upload.Config{Header: header}, nil, c.logger)
		c.uploader = c.ownedUploader
	}
	c.session = c.session.withDefaults()
	return c
}

// GetConversationState returns a copy of the conversation identity.
func (c *Client) GetConversationState() ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetConversationState replaces the conversation identity for later asks.
// Running streams keep the identity they started with.
func (c *Client) SetConversationState(state ConversationState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
}

// Endpoint returns the websocket URL for state.
func (c *Client) Endpoint(state ConversationState) (string, error) {
	raw := c.url
	if raw == "" {
		raw = DefaultHubURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse hub url: %w", err)
	}
	if state.EncryptedConversationSignature != "" {
		q := u.Query()
		q.Set("sec_access_token", state.EncryptedConversationSignature)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Ask starts a session for prompt and returns its stream immediately.
// Cancelling ctx or closing the stream releases the socket.
func (c *Client) Ask(ctx context.Context, prompt string, opts ...AskOption) (*Stream, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "prompt is empty")
	}
	o := newAskOptions(c.style, c.locale, opts)
	if o.attachment != nil {
		if err := o.attachment.Validate(); err != nil {
			return nil, types.NewError(types.ErrAttachment, "invalid attachment").WithCause(err)
		}
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, types.NewError(types.ErrSessionClosed, "client is closed")
	}
	state := c.state
	c.mu.Unlock()

	endpoint, err := c.Endpoint(state)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "hub url").WithCause(err)
	}

	sess := &session{
		cfg:  c.session,
		mode: c.mode,
		target: Target{
			URL:         endpoint,
			Header:      Headers(c.mode),
			Cookies:     c.cookies,
			Proxy:       c.proxy,
			RootCAs:     c.rootCAs,
			DialTimeout: c.dialTimeout,
			ReadLimit:   c.readLimit,
		},
		transport: c.transport,
		uploader:  c.uploader,
		builder:   c.builder,
		input: RequestInput{
			Prompt:         prompt,
			Style:          o.style,
			Locale:         o.locale,
			WebpageContext: o.webpageContext,
			SearchResult:   o.searchResult,
			State:          state,
		},
		opts:    o,
		acc:     NewAccumulator(o.raw, c.logger),
		metrics: c.metrics,
		tracer:  c.tracer,
		logger: c.logger.With(
			zap.String("conversation_id", state.ConversationID),
			zap.String("endpoint", redactURL(endpoint))),
	}

	sctx, cancel := context.WithCancel(ctx)
	stream := newStream(cancel)
	sess.out = stream.updates

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		cancel()
		return nil, types.NewError(types.ErrSessionClosed, "client is closed")
	}
	c.streams[stream] = struct{}{}
	c.mu.Unlock()

	go stream.run(sctx, sess, func() { c.untrack(stream) })
	return stream, nil
}

func (c *Client) untrack(s *Stream) {
	c.mu.Lock()
	delete(c.streams, s)
	c.mu.Unlock()
}

// Close stops every running stream and releases owned HTTP connections.
// It is idempotent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	live := make([]*Stream, 0, len(c.streams))
	for s := range c.streams {
		live = append(live, s)
	}
	c.mu.Unlock()

	for _, s := range live {
		_ = s.Close()
	}
	if c.ownedUploader != nil {
		c.ownedUploader.CloseIdleConnections()
	}
	c.logger.Debug("client closed", zap.Int("streams_closed", len(live)))
	return nil
}

// redactURL drops the query, which may carry the access token.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	u.RawQuery = ""
	return u.String()
}
