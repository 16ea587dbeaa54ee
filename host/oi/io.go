package oi

import (
	"context"
	"regexp"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"oihost/host/console"
)

// OutputMode selects how a digital output is driven
type OutputMode string

const (
	OutputDigital OutputMode = "digital"
	OutputPWM     OutputMode = "pwm"
)

// InterruptMode selects the edge an input interrupt fires on
type InterruptMode string

const (
	InterruptRising  InterruptMode = "rising"
	InterruptFalling InterruptMode = "falling"
	InterruptChange  InterruptMode = "change"
)

// DefaultADCChannel is the channel analog-read uses when none is given
const DefaultADCChannel = 3

var (
	analogReply    = console.MustRegexp(`(\d+\.\d+)`)
	interruptReply = console.MustRegexp(`Interrupt triggered on DIN_(\d+)[ \t]*\r?\n`)
)

// DigitalWrite sets output pin to level (0 or 1)
func (c *Client) DigitalWrite(ctx context.Context, pin, level int) error {
	return c.Exec(ctx, "digital-write", pin, level)
}

// DigitalRead returns the level of input pin
func (c *Client) DigitalRead(ctx context.Context, pin int) (int, error) {
	cmd := c.address("digital-read", pin)
	pattern := console.FromRegexp(regexp.MustCompile(`(\d+)\s*\n` + regexp.QuoteMeta(c.session.Prompt())))
	m, err := c.query(ctx, cmd, pattern, false)
	if err != nil {
		return 0, err
	}
	return parseInt(cmd, m.Group(1))
}

// ToggleOutput inverts output pin
func (c *Client) ToggleOutput(ctx context.Context, pin int) error {
	return c.Exec(ctx, "toggle-output", "-d", pin)
}

// SetOutputMode switches output pin between digital and PWM drive
func (c *Client) SetOutputMode(ctx context.Context, pin int, mode OutputMode) error {
	return c.Exec(ctx, "output-mode", "-d", pin, "-m", string(mode))
}

// SetPWMFrequency sets the PWM frequency of output pin in Hz
func (c *Client) SetPWMFrequency(ctx context.Context, pin, hz int) error {
	return c.Exec(ctx, "set-pwm-frequency", "-d", pin, "-f", hz)
}

// SetPWMDutyCycle sets the PWM duty cycle of output pin in percent
func (c *Client) SetPWMDutyCycle(ctx context.Context, pin int, percent float64) error {
	return c.Exec(ctx, "set-pwm-duty-cycle", "-d", pin, "-c", percent)
}

// AnalogRead returns the voltage measured on input pin. channel selects the
// ADC channel; use DefaultADCChannel when in doubt.
func (c *Client) AnalogRead(ctx context.Context, pin, channel int) (float64, error) {
	cmd := c.address("analog-read", pin, channel)
	m, err := c.query(ctx, cmd, analogReply, true)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(m.Group(1), 64)
	if err != nil {
		return 0, &MalformedReplyError{Command: cmd, Text: m.Group(1), Err: err}
	}
	return v, nil
}

// AttachInterrupt arms an interrupt on input pin
func (c *Client) AttachInterrupt(ctx context.Context, pin int, mode InterruptMode) error {
	return c.Exec(ctx, "attach-interrupt", "-d", pin, "-m", string(mode))
}

// DetachInterrupt disarms the interrupt of input pin
func (c *Client) DetachInterrupt(ctx context.Context, pin int) error {
	return c.Exec(ctx, "detach-interrupt", pin)
}

// WaitForInterrupt waits up to timeout for an interrupt line and returns the
// input that fired. A line already queued by an earlier command is taken
// first. The prompt is recovered afterwards since the module does not
// reprint it after an interrupt line.
func (c *Client) WaitForInterrupt(ctx context.Context, timeout time.Duration) (int, error) {
	if ev, ok := c.session.TakeUnsolicited(console.KindDINInterrupt); ok {
		pin, err := ev.Pin()
		if err != nil {
			return 0, &MalformedReplyError{Command: "wait interrupt", Text: ev.Raw, Err: err}
		}
		return pin, c.recover(ctx)
	}

	m, err := c.session.Expect(ctx, interruptReply, timeout)
	if err != nil {
		return 0, errors.Wrap(err, "wait interrupt")
	}
	pin, err := parseInt("wait interrupt", m.Group(1))
	if err != nil {
		return 0, err
	}
	return pin, c.recover(ctx)
}

func (c *Client) recover(ctx context.Context) error {
	if _, err := c.session.RecoverPrompt(ctx, c.timeout); err != nil {
		return errors.Wrap(err, "recover prompt")
	}
	return nil
}
