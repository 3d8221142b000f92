// Package edgechat wires configuration, logging, telemetry and metrics into a
// ready to use ChatHub client.
//
// Usage:
//
//	import "github.com/BaSui01/edgechat"
//
//	cfg := config.MustLoad("edgechat.yaml")
//	app, err := edgechat.New(cfg, state)
//	defer app.Close(ctx)
//	stream, err := app.Client.Ask(ctx, "Hello")
//
// Use package chathub directly when the ambient wiring is not wanted.
package edgechat

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/BaSui01/edgechat/chathub"
	"github.com/BaSui01/edgechat/config"
	"github.com/BaSui01/edgechat/internal/ctxkeys"
	"github.com/BaSui01/edgechat/internal/logging"
	"github.com/BaSui01/edgechat/internal/metrics"
	"github.com/BaSui01/edgechat/internal/telemetry"
	"github.com/BaSui01/edgechat/internal/tlsutil"
	"github.com/BaSui01/edgechat/upload"
)

// App bundles a client with the resources created for it.
type App struct {
	Client *chathub.Client
	Logger *zap.Logger

	uploader  *upload.Uploader
	telemetry *telemetry.Providers
}

// Option tunes App construction.
type Option func(*appOptions)

type appOptions struct {
	logger        *zap.Logger
	registerer    prometheus.Registerer
	meterProvider metric.MeterProvider
	cookies       []*http.Cookie
	extra         []chathub.Option
}

// WithLogger uses logger instead of building one from the config.
func WithLogger(logger *zap.Logger) Option {
	return func(o *appOptions) { o.logger = logger }
}

// WithRegisterer registers metrics on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *appOptions) { o.registerer = reg }
}

// WithMeterProvider records session instruments on mp instead of the
// provider built from the telemetry config.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *appOptions) { o.meterProvider = mp }
}

// WithCookies overrides the cookie file from the config.
func WithCookies(cookies []*http.Cookie) Option {
	return func(o *appOptions) { o.cookies = cookies }
}

// WithClientOptions appends raw chathub options, applied last.
func WithClientOptions(opts ...chathub.Option) Option {
	return func(o *appOptions) { o.extra = append(o.extra, opts...) }
}

// New validates cfg and builds the client for state.
func New(cfg *config.Config, state chathub.ConversationState, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	o := appOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	logger := o.logger
	if logger == nil {
		logger = logging.New(cfg.Log)
	}

	providers, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	style, err := chathub.ParseStyle(cfg.Hub.Style)
	if err != nil {
		_ = providers.Shutdown(context.Background())
		return nil, err
	}

	rootCAs, err := tlsutil.TrustStore(cfg.Transport.CAFile)
	if err != nil {
		_ = providers.Shutdown(context.Background())
		return nil, fmt.Errorf("load trust store: %w", err)
	}

	cookies := o.cookies
	if cookies == nil && cfg.Transport.CookieFile != "" {
		cookies, err = LoadCookies(cfg.Transport.CookieFile)
		if err != nil {
			_ = providers.Shutdown(context.Background())
			return nil, err
		}
	}

	uploader, err := newUploader(cfg, rootCAs, cookies, logger)
	if err != nil {
		_ = providers.Shutdown(context.Background())
		return nil, err
	}

	clientOpts := []chathub.Option{
		chathub.WithLogger(logger),
		chathub.WithTracer(providers.Tracer()),
		chathub.WithMode(cfg.Hub.Mode),
		chathub.WithURL(cfg.Hub.URL),
		chathub.WithDefaultStyle(style),
		chathub.WithDefaultLocale(cfg.Hub.Locale),
		chathub.WithCookies(cookies),
		chathub.WithProxy(cfg.Transport.Proxy),
		chathub.WithRootCAs(rootCAs),
		chathub.WithDialTimeout(cfg.Transport.DialTimeout),
		chathub.WithReadLimit(cfg.Transport.ReadLimit),
		chathub.WithUploader(uploader),
		chathub.WithSessionConfig(chathub.SessionConfig{
			HandshakeTimeout:  cfg.Session.HandshakeTimeout,
			KeepAliveInterval: cfg.Session.KeepAliveInterval,
			RetryBudget:       cfg.Session.RetryBudget,
			SilenceTimeout:    cfg.Session.SilenceTimeout,
		}),
	}
	var recorders []chathub.MetricsRecorder
	if cfg.Metrics.Enabled {
		recorders = append(recorders, metrics.NewCollector(cfg.Metrics.Namespace, o.registerer, logger))
	}
	if cfg.Telemetry.Enabled {
		meter := providers.Meter()
		if o.meterProvider != nil {
			meter = o.meterProvider.Meter(telemetry.InstrumentationName)
		}
		rec, err := telemetry.NewRecorder(meter)
		if err != nil {
			_ = providers.Shutdown(context.Background())
			return nil, fmt.Errorf("create otel instruments: %w", err)
		}
		recorders = append(recorders, rec)
	}
	if len(recorders) > 0 {
		clientOpts = append(clientOpts, chathub.WithMetrics(chathub.MultiRecorder(recorders...)))
	}
	clientOpts = append(clientOpts, o.extra...)

	logger.Info("edgechat client ready",
		zap.String("mode", cfg.Hub.Mode),
		zap.String("style", string(style)),
		zap.Bool("metrics", cfg.Metrics.Enabled),
		zap.Bool("telemetry", cfg.Telemetry.Enabled),
		zap.Int("cookies", len(cookies)))

	return &App{
		Client:    chathub.NewClient(state, clientOpts...),
		Logger:    logger,
		uploader:  uploader,
		telemetry: providers,
	}, nil
}

func newUploader(cfg *config.Config, rootCAs *x509.CertPool, cookies []*http.Cookie, logger *zap.Logger) (*upload.Uploader, error) {
	tr, err := tlsutil.NewTransport(tlsutil.TransportOptions{
		Proxy:       cfg.Transport.Proxy,
		RootCAs:     rootCAs,
		DialTimeout: cfg.Transport.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build upload transport: %w", err)
	}

	header := http.Header{}
	header.Set("user-agent", chathub.Headers(cfg.Hub.Mode).Get("user-agent"))
	if cookie := chathub.CookieHeader(cookies); cookie != "" {
		header.Set("Cookie", cookie)
	}

	timeout := cfg.Upload.Timeout
	if timeout <= 0 {
		timeout = cfg.Transport.HTTPTimeout
	}
	return upload.New(upload.Config{
		Endpoint: cfg.Upload.Endpoint,
		Timeout:  timeout,
		Header:   header,
	}, &http.Client{Transport: tr, Timeout: timeout}, logger), nil
}

// Close stops the client and flushes telemetry.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Client.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.uploader != nil {
		a.uploader.CloseIdleConnections()
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}

// WithTraceID tags ctx so session logs carry id when no span is recording.
func WithTraceID(ctx context.Context, id string) context.Context {
	return ctxkeys.WithTraceID(ctx, id)
}

// cookieRecord is one entry of a browser cookie export.
type cookieRecord struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain,omitempty"`
	Path     string  `json:"path,omitempty"`
	Secure   bool    `json:"secure,omitempty"`
	HTTPOnly bool    `json:"httpOnly,omitempty"`
	Expires  float64 `json:"expirationDate,omitempty"`
}

// LoadCookies reads a JSON array of {name, value, ...} cookie records.
func LoadCookies(path string) ([]*http.Cookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookie file: %w", err)
	}
	var records []cookieRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse cookie file %s: %w", path, err)
	}
	cookies := make([]*http.Cookie, 0, len(records))
	for _, r := range records {
		if r.Name == "" {
			continue
		}
		c := &http.Cookie{
			Name:     r.Name,
			Value:    r.Value,
			Domain:   r.Domain,
			Path:     r.Path,
			Secure:   r.Secure,
			HttpOnly: r.HTTPOnly,
		}
		if r.Expires > 0 {
			c.Expires = time.Unix(int64(r.Expires), 0)
		}
		cookies = append(cookies, c)
	}
	return cookies, nil
}
