package oi

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"oihost/host/console"
	"oihost/host/serial"
)

// settleTime is how long the console must stay silent before the first
// command; it swallows the boot log of a module that was just reset
const settleTime = 200 * time.Millisecond

// Conn is an open console on one OpenIndus module
type Conn struct {
	port    serial.Port
	session *console.Session
	log     zerolog.Logger

	connected bool
}

// Connect opens the serial console at device with default settings
func Connect(ctx context.Context, device, prompt string, opts ...console.Option) (*Conn, error) {
	return ConnectWithConfig(ctx, serial.DefaultConfig(device), prompt, opts...)
}

// ConnectWithConfig opens the console described by cfg, drops whatever the
// module printed before, and waits for a fresh prompt
func ConnectWithConfig(ctx context.Context, cfg *serial.Config, prompt string, opts ...console.Option) (*Conn, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open serial port")
	}

	c, err := newConn(ctx, port, prompt, opts...)
	if err != nil {
		port.Close()
		return nil, err
	}
	return c, nil
}

func newConn(ctx context.Context, port serial.Port, prompt string, opts ...console.Option) (*Conn, error) {
	session, err := console.New(port, prompt, opts...)
	if err != nil {
		return nil, err
	}

	c := &Conn{port: port, session: session, log: session.Logger(), connected: true}

	if err := port.Flush(); err != nil {
		c.log.Debug().Err(err).Msg("flush failed")
	}
	if _, err := session.Discard(ctx, settleTime); err != nil {
		return nil, errors.Wrap(err, "drain console")
	}
	if _, err := session.RecoverPrompt(ctx, DefaultTimeout); err != nil {
		return nil, errors.Wrap(err, "no prompt")
	}
	return c, nil
}

// Session returns the console session
func (c *Conn) Session() *console.Session {
	return c.session
}

// Client returns a client for the module the console is attached to
func (c *Conn) Client(opts ...Option) *Client {
	opts = append([]Option{WithLogger(c.log)}, opts...)
	return NewClient(c.session, opts...)
}

// Close closes the serial port
func (c *Conn) Close() error {
	if !c.connected {
		return nil
	}
	c.connected = false
	return c.port.Close()
}

// IsConnected reports whether the port is open and the stream alive
func (c *Conn) IsConnected() bool {
	return c.connected && !c.session.Closed()
}
