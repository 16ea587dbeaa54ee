package console

import (
	"time"

	"github.com/rs/zerolog"

	"oihost/protocol"
)

// Config holds the session configuration.
type Config struct {
	// Logger receives send/expect traces (default: disabled)
	Logger zerolog.Logger

	// LineTerminator is appended to every command
	LineTerminator string

	// ReplyTimeout bounds the prompt wait of Send(..., true)
	ReplyTimeout time.Duration

	// PollInterval is the longest single read while waiting, so that
	// context cancellation is noticed promptly
	PollInterval time.Duration

	// Events lists the unsolicited line patterns, in priority order
	Events []EventPattern
}

func defaultConfig() Config {
	return Config{
		Logger:         zerolog.Nop(),
		LineTerminator: protocol.LineTerminator,
		ReplyTimeout:   5 * time.Second,
		PollInterval:   100 * time.Millisecond,
		Events:         []EventPattern{DINInterrupt},
	}
}

// Option is a functional option for configuring a Session.
type Option func(*Config)

// WithLogger sets the session logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithLineTerminator overrides the command line terminator.
func WithLineTerminator(term string) Option {
	return func(c *Config) {
		if term != "" {
			c.LineTerminator = term
		}
	}
}

// WithReplyTimeout sets the prompt timeout used by Send.
func WithReplyTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.ReplyTimeout = timeout
		}
	}
}

// WithPollInterval sets the longest single read while waiting.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		if interval > 0 {
			c.PollInterval = interval
		}
	}
}

// WithEventPattern registers an additional unsolicited line pattern.
//
// Example:
//
//	s, err := console.New(port, "Core>", console.WithEventPattern(console.LogLine))
func WithEventPattern(p EventPattern) Option {
	return func(c *Config) {
		if p.re != nil {
			c.Events = append(c.Events, p)
		}
	}
}

// WithoutEvents disables unsolicited line recognition entirely.
func WithoutEvents() Option {
	return func(c *Config) {
		c.Events = nil
	}
}
