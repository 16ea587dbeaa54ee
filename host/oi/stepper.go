package oi

import (
	"context"

	"oihost/host/console"
	"oihost/ps01"
)

// frameReply is the integer line ps01-device prints after its echo
var frameReply = console.MustRegexp(`(?m)^(\d+)[ \t]*\r?\n`)

// Stepper sends powerSTEP01 frames to one motor driver of a stepper module
// through the ps01-device console command
type Stepper struct {
	client  *Client
	motor   int
	variant ps01.Variant
	mode    ps01.Mode
}

// Stepper returns the driver of motor (0 or 1) on the addressed module
func (c *Client) Stepper(motor int, variant ps01.Variant) *Stepper {
	return &Stepper{client: c, motor: motor, variant: variant, mode: ps01.ModeVoltage}
}

// SetMode selects which register schema SetParam and GetParam resolve
// against; it follows the CM_VM bit of STEP_MODE
func (s *Stepper) SetMode(mode ps01.Mode) {
	s.mode = mode
}

// Mode returns the register schema in use
func (s *Stepper) Mode() ps01.Mode {
	return s.mode
}

// Send transmits a frame that returns nothing
func (s *Stepper) Send(ctx context.Context, f ps01.CommandFrame) error {
	return s.client.Exec(ctx, "ps01-device", s.motor, f)
}

// Query transmits a frame and returns the integer the driver sent back
func (s *Stepper) Query(ctx context.Context, f ps01.CommandFrame) (uint32, error) {
	cmd := s.client.address("ps01-device", s.motor, f)
	m, err := s.client.query(ctx, cmd, frameReply, true)
	if err != nil {
		return 0, err
	}
	v, err := parseInt(cmd, m.Group(1))
	if err != nil {
		return 0, err
	}
	return uint32(v), nil
}

// SetParam writes reg after checking it may be written in the declared
// device state
func (s *Stepper) SetParam(ctx context.Context, reg ps01.Register, value uint32, wctx ps01.WriteContext) error {
	if err := ps01.AssertWritable(reg, wctx); err != nil {
		return err
	}
	return s.Send(ctx, ps01.BuildSetFrame(reg, value))
}

// GetParam reads reg
func (s *Stepper) GetParam(ctx context.Context, reg ps01.Register) (uint32, error) {
	v, err := s.Query(ctx, ps01.BuildGetFrame(reg))
	if err != nil {
		return 0, err
	}
	return ps01.Mask(reg, v), nil
}

// Lookup resolves a register name in the current mode
func (s *Stepper) Lookup(name string) (ps01.Register, bool) {
	return ps01.Lookup(name, s.mode)
}

// GetStatus reads and decodes the STATUS register. Reading it clears the
// latched flags.
func (s *Stepper) GetStatus(ctx context.Context) (ps01.StatusFlags, error) {
	v, err := s.Query(ctx, ps01.BuildFrame(ps01.GetStatus))
	if err != nil {
		return ps01.StatusFlags{}, err
	}
	return ps01.DecodeStatusWord(uint16(v), s.variant), nil
}

// Position reads ABS_POS as a signed step count
func (s *Stepper) Position(ctx context.Context) (int32, error) {
	v, err := s.GetParam(ctx, ps01.AbsPos)
	if err != nil {
		return 0, err
	}
	return ps01.DecodePosition(v), nil
}

// Run turns the motor at stepsPerSec
func (s *Stepper) Run(ctx context.Context, dir ps01.Direction, stepsPerSec float64) error {
	return s.Send(ctx, ps01.BuildMotionFrame(ps01.Run, dir, ps01.ActionReset, ps01.SpeedToReg(stepsPerSec)))
}

// Move makes steps microsteps in dir
func (s *Stepper) Move(ctx context.Context, dir ps01.Direction, steps uint32) error {
	return s.Send(ctx, ps01.BuildMotionFrame(ps01.Move, dir, ps01.ActionReset, steps))
}

// GoTo moves to an absolute position along the shortest path
func (s *Stepper) GoTo(ctx context.Context, pos int32) error {
	return s.Send(ctx, ps01.BuildMotionFrame(ps01.GoTo, ps01.Forward, ps01.ActionReset, ps01.EncodePosition(pos)))
}

// GoToDir moves to an absolute position turning in dir
func (s *Stepper) GoToDir(ctx context.Context, dir ps01.Direction, pos int32) error {
	return s.Send(ctx, ps01.BuildMotionFrame(ps01.GoToDir, dir, ps01.ActionReset, ps01.EncodePosition(pos)))
}

// GoUntil runs at stepsPerSec until the switch input closes
func (s *Stepper) GoUntil(ctx context.Context, act ps01.Action, dir ps01.Direction, stepsPerSec float64) error {
	return s.Send(ctx, ps01.BuildMotionFrame(ps01.GoUntil, dir, act, ps01.SpeedToReg(stepsPerSec)))
}

// ReleaseSwitch runs at minimum speed until the switch input opens
func (s *Stepper) ReleaseSwitch(ctx context.Context, act ps01.Action, dir ps01.Direction) error {
	return s.Send(ctx, ps01.BuildMotionFrame(ps01.ReleaseSW, dir, act, 0))
}

// Command sends a command without payload (stops, HiZ, home, reset)
func (s *Stepper) Command(ctx context.Context, cmd ps01.Command) error {
	return s.Send(ctx, ps01.BuildFrame(cmd))
}
