package session

import (
	"errors"
	"time"
)

// Config tunes a session.
type Config struct {
	// ConnectTimeout bounds Connect. Zero leaves it to the caller's context.
	ConnectTimeout time.Duration

	// ReadTimeout bounds each read on the duplex stream. Zero disables it.
	ReadTimeout time.Duration

	// WriteTimeout bounds each frame write. Zero disables it.
	WriteTimeout time.Duration

	// QueueCapacity bounds the outbound queue. Zero means unbounded.
	QueueCapacity int
}

// DefaultConfig returns the settings used when none are given.
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    0,
		WriteTimeout:   5 * time.Second,
		QueueCapacity:  0,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.ConnectTimeout < 0 || c.ReadTimeout < 0 || c.WriteTimeout < 0 {
		return errors.New("session: timeouts must not be negative")
	}
	if c.QueueCapacity < 0 {
		return errors.New("session: queue capacity must not be negative")
	}
	return nil
}
