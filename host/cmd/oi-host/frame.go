package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"oihost/ps01"
)

func runFrame(args []string) error {
	if len(args) == 0 || args[0] == "help" {
		printFrameHelp()
		return nil
	}

	m, err := parseMode(*mode)
	if err != nil {
		return err
	}
	f, err := buildFrame(args, m)
	if err != nil {
		return err
	}
	fmt.Printf("%s  (opcode %#02x payload %#06x bytes % x)\n", f, f.Opcode(), f.Payload(), f.Bytes(3))
	return nil
}

func parseMode(s string) (ps01.Mode, error) {
	switch strings.ToLower(s) {
	case "voltage", "v":
		return ps01.ModeVoltage, nil
	case "current", "c":
		return ps01.ModeCurrent, nil
	}
	return 0, errors.Errorf("unknown control mode %q", s)
}

// buildFrame turns a frame description into a driver frame:
//
//	set <REGISTER> <value>
//	get <REGISTER>
//	run <fwd|rev> <steps/s>
//	move <fwd|rev> <steps>
//	goto <position>
//	status
//	<COMMAND>            (soft_stop, hard_hiz, go_home, ...)
func buildFrame(args []string, mode ps01.Mode) (ps01.CommandFrame, error) {
	op := strings.ToLower(args[0])
	rest := args[1:]

	need := func(n int) error {
		if len(rest) != n {
			return errors.Errorf("%s takes %d argument(s), got %d", op, n, len(rest))
		}
		return nil
	}

	switch op {
	case "set":
		if err := need(2); err != nil {
			return 0, err
		}
		reg, err := lookupRegister(rest[0], mode)
		if err != nil {
			return 0, err
		}
		v, err := strconv.ParseUint(rest[1], 0, 32)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid value %q", rest[1])
		}
		if v > uint64(reg.ValueMask()) {
			return 0, errors.Errorf("value %#x does not fit in %s (%d bits)", v, reg.Name, reg.Width)
		}
		return ps01.BuildSetFrame(reg, uint32(v)), nil

	case "get":
		if err := need(1); err != nil {
			return 0, err
		}
		reg, err := lookupRegister(rest[0], mode)
		if err != nil {
			return 0, err
		}
		return ps01.BuildGetFrame(reg), nil

	case "run":
		if err := need(2); err != nil {
			return 0, err
		}
		dir, err := parseDirection(rest[0])
		if err != nil {
			return 0, err
		}
		speed, err := strconv.ParseFloat(rest[1], 64)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid speed %q", rest[1])
		}
		return ps01.BuildMotionFrame(ps01.Run, dir, ps01.ActionReset, ps01.SpeedToReg(speed)), nil

	case "move":
		if err := need(2); err != nil {
			return 0, err
		}
		dir, err := parseDirection(rest[0])
		if err != nil {
			return 0, err
		}
		steps, err := strconv.ParseUint(rest[1], 0, 22)
		if err != nil {
			return 0, errors.Wrapf(err, "invalid step count %q", rest[1])
		}
		return ps01.BuildMotionFrame(ps01.Move, dir, ps01.ActionReset, uint32(steps)), nil

	case "goto":
		if err := need(1); err != nil {
			return 0, err
		}
		pos, err := strconv.ParseInt(rest[0], 0, 32)
		if err != nil || pos < ps01.PositionMin || pos > ps01.PositionMax {
			return 0, errors.Errorf("invalid position %q", rest[0])
		}
		return ps01.BuildMotionFrame(ps01.GoTo, ps01.Forward, ps01.ActionReset, ps01.EncodePosition(int32(pos))), nil

	case "status":
		if err := need(0); err != nil {
			return 0, err
		}
		return ps01.BuildFrame(ps01.GetStatus), nil
	}

	cmd, ok := lookupCommand(op)
	if !ok {
		return 0, errors.Errorf("unknown frame %q", args[0])
	}
	if err := need(0); err != nil {
		return 0, err
	}
	return ps01.BuildFrame(cmd), nil
}

func lookupRegister(name string, mode ps01.Mode) (ps01.Register, error) {
	reg, ok := ps01.Lookup(strings.ToUpper(name), mode)
	if !ok {
		return ps01.Register{}, errors.Errorf("no register %q in %s mode", name, mode)
	}
	return reg, nil
}

func lookupCommand(name string) (ps01.Command, bool) {
	name = strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
	for c := ps01.Nop; c <= ps01.GetStatus; c++ {
		if c.String() == name {
			return c, true
		}
	}
	return 0, false
}

func parseDirection(s string) (ps01.Direction, error) {
	switch strings.ToLower(s) {
	case "fwd", "forward", "+":
		return ps01.Forward, nil
	case "rev", "backward", "-":
		return ps01.Backward, nil
	}
	return 0, errors.Errorf("invalid direction %q", s)
}

func printFrameHelp() {
	fmt.Println("Frame operations:")
	fmt.Println("  set <REGISTER> <value>   - SET_PARAM (value in decimal or 0x hex)")
	fmt.Println("  get <REGISTER>           - GET_PARAM")
	fmt.Println("  run <fwd|rev> <steps/s>  - RUN")
	fmt.Println("  move <fwd|rev> <steps>   - MOVE")
	fmt.Println("  goto <position>          - GO_TO")
	fmt.Println("  status                   - GET_STATUS")
	fmt.Println("  <command>                - NOP, GO_HOME, GO_MARK, RESET_POS, RESET_DEVICE,")
	fmt.Println("                             SOFT_STOP, HARD_STOP, SOFT_HIZ, HARD_HIZ")
	fmt.Println("Registers are looked up in the -mode control mode.")
}
