package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spire-dev/spire/internal/bot"
	"github.com/spire-dev/spire/internal/domain"
	"github.com/spire-dev/spire/pkg/session"
	"github.com/spire-dev/spire/pkg/transport"
	"github.com/spire-dev/spire/pkg/wire"
)

// DefaultLobbyURL is the lobby used when none is configured.
const DefaultLobbyURL = "http://127.0.0.1:8080"

// Config holds CLI configuration for spirebot.
type Config struct {
	BotCount  int
	BotPrefix string
	Duration  time.Duration

	LobbyURL string
	GameHost string
	GamePort int

	Transport          string
	SecurityMode       string
	InsecureSkipVerify bool
	CAFile             string
	ServerName         string
	ALPN               string
	TLS                bool
	WSPath             string
	ByteOrder          string

	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	QueueCapacity  int

	LogLevel    string
	MetricsAddr string
	StateDir    string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	sc := session.DefaultConfig()
	bc := bot.DefaultConfig()
	return Config{
		BotCount:       bc.Count,
		BotPrefix:      bc.Prefix,
		LobbyURL:       DefaultLobbyURL,
		GameHost:       bc.Host,
		GamePort:       bc.Port,
		Transport:      string(transport.KindTCP),
		SecurityMode:   string(transport.SecurityModeDevelopment),
		ALPN:           transport.DefaultALPN,
		WSPath:         "/ws",
		ByteOrder:      "big",
		ConnectTimeout: sc.ConnectTimeout,
		ReadTimeout:    sc.ReadTimeout,
		WriteTimeout:   sc.WriteTimeout,
		QueueCapacity:  sc.QueueCapacity,
		LogLevel:       "info",
	}
}

// Validate checks the configuration for errors and normalizes values.
func (c *Config) Validate() error {
	if c.BotCount <= 0 {
		return fmt.Errorf("%w: bot-count must be positive", domain.ErrInvalidConfig)
	}
	if c.BotPrefix == "" {
		return fmt.Errorf("%w: bot-prefix is required", domain.ErrInvalidConfig)
	}
	if c.Duration < 0 {
		return fmt.Errorf("%w: duration must not be negative", domain.ErrInvalidConfig)
	}

	c.LobbyURL = strings.TrimRight(c.LobbyURL, "/")
	if c.LobbyURL == "" {
		return fmt.Errorf("%w: lobby-url is required", domain.ErrInvalidConfig)
	}
	if c.GameHost == "" {
		return fmt.Errorf("%w: game-host is required", domain.ErrInvalidConfig)
	}
	if c.GamePort < 1 || c.GamePort > 65535 {
		return fmt.Errorf("%w: game-port %d out of range", domain.ErrInvalidConfig, c.GamePort)
	}

	kind, err := transport.ParseKind(c.Transport)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	c.Transport = string(kind)

	c.SecurityMode = string(transport.NormalizeSecurityMode(transport.SecurityMode(c.SecurityMode)))
	if err := c.TrustPolicy().Validate(); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	if _, err := wire.ParseByteOrder(c.ByteOrder); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return fmt.Errorf("%w: timeouts must not be negative", domain.ErrInvalidConfig)
	}
	if c.QueueCapacity < 0 {
		return fmt.Errorf("%w: queue-capacity must not be negative", domain.ErrInvalidConfig)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
		c.LogLevel = strings.ToLower(c.LogLevel)
	default:
		return fmt.Errorf("%w: unknown log-level %q", domain.ErrInvalidConfig, c.LogLevel)
	}

	return nil
}

// TrustPolicy returns the certificate policy for TLS and QUIC dials.
func (c Config) TrustPolicy() transport.TrustPolicy {
	return transport.TrustPolicy{
		Mode:               transport.SecurityMode(c.SecurityMode),
		InsecureSkipVerify: c.InsecureSkipVerify,
		CAFile:             c.CAFile,
		ServerName:         c.ServerName,
	}
}

// TransportConfig returns the dialer settings.
func (c Config) TransportConfig() transport.Config {
	return transport.Config{
		Kind:           transport.Kind(c.Transport),
		Trust:          c.TrustPolicy(),
		ALPN:           c.ALPN,
		ConnectTimeout: c.ConnectTimeout,
		WSPath:         c.WSPath,
		TLS:            c.TLS,
	}
}

// SessionConfig returns the per-session settings.
func (c Config) SessionConfig() session.Config {
	return session.Config{
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		WriteTimeout:   c.WriteTimeout,
		QueueCapacity:  c.QueueCapacity,
	}
}

// Codec returns the header codec for the configured byte order.
func (c Config) Codec() (wire.Codec, error) {
	order, err := wire.ParseByteOrder(c.ByteOrder)
	if err != nil {
		return wire.Codec{}, err
	}
	return wire.Codec{Order: order}, nil
}

// BotConfig returns the runner settings.
func (c Config) BotConfig() bot.Config {
	bc := bot.DefaultConfig()
	bc.Count = c.BotCount
	bc.Prefix = c.BotPrefix
	bc.Host = c.GameHost
	bc.Port = c.GamePort
	bc.Duration = c.Duration
	return bc
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
