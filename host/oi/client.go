// Package oi drives the console commands of OpenIndus modules: digital and
// analog I/O, interrupts, module discovery, and powerSTEP01 frames. A Client
// talks to one module, either the one the console runs on or a slave
// addressed through it.
package oi

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"oihost/host/console"
	"oihost/protocol"
)

// DefaultTimeout bounds each reply, as the bench scripts do
const DefaultTimeout = 5 * time.Second

// ErrMalformedReply is matched by every MalformedReplyError
var ErrMalformedReply = errors.New("malformed reply")

// MalformedReplyError reports a reply that matched its pattern but could not
// be converted
type MalformedReplyError struct {
	Command string
	Text    string
	Err     error
}

func (e *MalformedReplyError) Error() string {
	return fmt.Sprintf("malformed reply to %q: %q: %v", e.Command, e.Text, e.Err)
}

func (e *MalformedReplyError) Is(target error) bool {
	return target == ErrMalformedReply
}

func (e *MalformedReplyError) Unwrap() error {
	return e.Err
}

// Client sends module commands over a console session
type Client struct {
	session *console.Session
	id      int
	timeout time.Duration
	log     zerolog.Logger
}

// Option configures a Client
type Option func(*Client)

// WithModuleID addresses a slave module. Commands get the "-i <id>" suffix.
func WithModuleID(id int) Option {
	return func(c *Client) {
		c.id = id
	}
}

// WithTimeout sets the per-reply timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.log = logger
	}
}

// NewClient returns a client for the local module unless WithModuleID is
// given
func NewClient(session *console.Session, opts ...Option) *Client {
	c := &Client{
		session: session,
		id:      protocol.LocalModule,
		timeout: DefaultTimeout,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Module returns a client for slave id sharing the same session
func (c *Client) Module(id int) *Client {
	m := *c
	m.id = id
	return &m
}

// ModuleID returns the addressed module, protocol.LocalModule for the local one
func (c *Client) ModuleID() int {
	return c.id
}

// Session returns the underlying console session
func (c *Client) Session() *console.Session {
	return c.session
}

// Exec sends a command and waits for the prompt
func (c *Client) Exec(ctx context.Context, name string, args ...any) error {
	cmd := c.address(name, args...)
	if err := c.session.Send(ctx, cmd, false); err != nil {
		return err
	}
	if _, err := c.session.ExpectPrompt(ctx, c.timeout); err != nil {
		return errors.Wrapf(err, "%s", cmd)
	}
	return nil
}

// query sends a command and waits for pattern. With thenPrompt the prompt
// following the reply is consumed as well.
func (c *Client) query(ctx context.Context, cmd string, pattern console.Pattern, thenPrompt bool) (*console.Match, error) {
	m, err := c.session.SendExpect(ctx, cmd, pattern, c.timeout)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", cmd)
	}
	if thenPrompt {
		if _, err := c.session.ExpectPrompt(ctx, c.timeout); err != nil {
			return nil, errors.Wrapf(err, "%s", cmd)
		}
	}
	c.log.Debug().Str("command", cmd).Str("reply", m.Text).Msg("reply")
	return m, nil
}

func (c *Client) address(name string, args ...any) string {
	return protocol.Address(protocol.Command(name, args...), c.id)
}

// master builds a bus master command. Those run on the module the console
// is attached to, whatever module the client targets.
func (c *Client) master(name string, args ...any) string {
	return protocol.Address(protocol.Command(name, args...), protocol.LocalModule)
}

func parseInt(cmd, text string) (int, error) {
	v, err := strconv.Atoi(text)
	if err != nil {
		return 0, &MalformedReplyError{Command: cmd, Text: text, Err: err}
	}
	return v, nil
}
