// Package spire runs simulated game clients against a spire game server.
//
// Example usage:
//
//	cfg := spire.DefaultConfig()
//	cfg.BotCount = 10
//	cfg.GameHost = "game.example.com"
//	bots, err := spire.Run(ctx, cfg, spire.WithLogger(logger))
//
// The building blocks live in the pkg/ packages: wire and frame for the
// framing, dispatch for inbound routing, session and transport for the
// connection itself.
package spire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"github.com/spire-dev/spire/internal/adapters/fs"
	"github.com/spire-dev/spire/internal/adapters/lobby"
	"github.com/spire-dev/spire/internal/bot"
	"github.com/spire-dev/spire/internal/cliconfig"
	"github.com/spire-dev/spire/internal/ports"
	"github.com/spire-dev/spire/pkg/behavior"
	"github.com/spire-dev/spire/pkg/dispatch"
	"github.com/spire-dev/spire/pkg/frame"
	"github.com/spire-dev/spire/pkg/lifecycle"
	"github.com/spire-dev/spire/pkg/log"
	"github.com/spire-dev/spire/pkg/metrics"
	"github.com/spire-dev/spire/pkg/protocol"
	"github.com/spire-dev/spire/pkg/session"
	"github.com/spire-dev/spire/pkg/transport"
	"github.com/spire-dev/spire/pkg/wire"
)

// Config holds the configuration for a bot run.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = cliconfig.Config

// Bot is one simulated player. Run returns them once they have finished.
type Bot = bot.Bot

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return cliconfig.DefaultConfig()
}

// Logger returns the console zerolog logger used by the CLI.
func Logger() zerolog.Logger {
	return cliconfig.Logger()
}

const tracerName = "github.com/spire-dev/spire/dispatch"

// Option configures optional behavior of Run.
type Option func(*options)

type options struct {
	logger     log.Logger
	httpClient ports.HTTPClient
	dialer     transport.Dialer
	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	events     lifecycle.EventEmitter
}

// WithLogger sets the logger for every component.
func WithLogger(logger log.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithHTTPClient sets the client used for lobby calls.
func WithHTTPClient(client ports.HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithDialer replaces the dialer built from the transport settings.
func WithDialer(d transport.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithMetricsRegistry registers metrics on reg. When the config has a
// metrics address, reg is also what gets served.
func WithMetricsRegistry(reg *prometheus.Registry) Option {
	return func(o *options) {
		o.registerer = reg
		o.gatherer = reg
	}
}

// WithSessionEvents receives the lifecycle transitions of every session.
func WithSessionEvents(e lifecycle.EventEmitter) Option {
	return func(o *options) {
		o.events = e
	}
}

// Run provisions cfg.BotCount bots, connects them and blocks until they
// have all finished or ctx ends.
func Run(ctx context.Context, cfg Config, opts ...Option) ([]*Bot, error) {
	if err := validateModuleVersions(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	o := options{
		logger:     log.NewNoopLogger(),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registerer == nil {
		reg := prometheus.NewRegistry()
		o.registerer, o.gatherer = reg, reg
	}

	codec, err := cfg.Codec()
	if err != nil {
		return nil, err
	}

	dialer := o.dialer
	if dialer == nil {
		if dialer, err = transport.New(cfg.TransportConfig()); err != nil {
			return nil, fmt.Errorf("create dialer: %w", err)
		}
	}

	collector := metrics.New(metrics.WithRegistry(o.registerer))
	if err := collector.WatchPool(frame.Default); err != nil {
		return nil, fmt.Errorf("register pool metrics: %w", err)
	}

	registry, err := bot.NewRegistry(
		dispatch.WithLogger(o.logger),
		dispatch.WithObserver(collector),
		dispatch.WithTracer(otel.Tracer(tracerName)),
	)
	if err != nil {
		return nil, err
	}

	var store ports.AccountStore
	if cfg.StateDir != "" {
		store = fs.NewAccountFileStore(cfg.StateDir)
	}

	sessionOpts := []session.Option{
		session.WithConfig(cfg.SessionConfig()),
		session.WithCodec(codec),
		session.WithPool(frame.Default),
		session.WithObserver(collector),
	}
	if o.events != nil {
		sessionOpts = append(sessionOpts, session.WithEventEmitter(o.events))
	}

	runner, err := bot.NewRunner(
		cfg.BotConfig(),
		lobby.NewClient(cfg.LobbyURL, o.httpClient, o.logger),
		store,
		dialer,
		registry,
		o.logger,
		sessionOpts...,
	)
	if err != nil {
		return nil, err
	}

	metricsErr := make(chan error, 1)
	metricsCtx, stopMetrics := context.WithCancel(ctx)
	defer stopMetrics()
	if cfg.MetricsAddr != "" && o.gatherer != nil {
		go func() {
			metricsErr <- metrics.Serve(metricsCtx, cfg.MetricsAddr, o.gatherer, o.logger)
		}()
	}

	o.logger.Info("starting bots",
		log.Int("count", cfg.BotCount),
		log.String("transport", cfg.Transport),
		log.String("game", fmt.Sprintf("%s:%d", cfg.GameHost, cfg.GamePort)),
	)
	bots, runErr := runner.Run(ctx)

	select {
	case err := <-metricsErr:
		if err != nil {
			runErr = errors.Join(runErr, fmt.Errorf("metrics server: %w", err))
		}
	default:
	}
	return bots, runErr
}

// validateModuleVersions checks that all module versions are compatible.
// Returns an error if any module version is below its minimum compatible version.
func validateModuleVersions() error {
	modules := map[string]struct {
		version    string
		minVersion string
	}{
		"wire":      {wire.Version, wire.MinCompatibleVersion},
		"frame":     {frame.Version, frame.MinCompatibleVersion},
		"protocol":  {protocol.Version, protocol.MinCompatibleVersion},
		"dispatch":  {dispatch.Version, dispatch.MinCompatibleVersion},
		"session":   {session.Version, session.MinCompatibleVersion},
		"transport": {transport.Version, transport.MinCompatibleVersion},
		"lifecycle": {lifecycle.Version, lifecycle.MinCompatibleVersion},
		"behavior":  {behavior.Version, behavior.MinCompatibleVersion},
		"metrics":   {metrics.Version, metrics.MinCompatibleVersion},
		"log":       {log.Version, log.MinCompatibleVersion},
	}

	for name, m := range modules {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.version, m.minVersion)
		}
	}

	return nil
}

// isVersionCompatible checks if version >= minVersion using semantic versioning.
// Assumes versions are in format "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
