package ps01

import (
	"strconv"

	"github.com/pkg/errors"
)

// Frame layout: one opcode byte followed by a 24-bit payload. The value is
// carried in a 40-bit container and sent to the module console as a decimal
// integer (ps01-device <motor> <frame>).
const (
	PayloadBits  = 24
	PayloadMask  = 1<<PayloadBits - 1
	FrameBytes   = 5
	opcodeShift  = PayloadBits
	frameMaxBits = 40
)

// CommandFrame is one driver command: opcode<<24 | payload
type CommandFrame uint64

// NewFrame assembles a frame. The payload is cut to 24 bits.
func NewFrame(opcode uint8, payload uint32) CommandFrame {
	return CommandFrame(uint64(opcode)<<opcodeShift | uint64(payload&PayloadMask))
}

// Opcode returns the command byte
func (f CommandFrame) Opcode() uint8 {
	return uint8(f >> opcodeShift)
}

// Payload returns the 24-bit argument
func (f CommandFrame) Payload() uint32 {
	return uint32(f & PayloadMask)
}

// String returns the decimal form used on the console
func (f CommandFrame) String() string {
	return strconv.FormatUint(uint64(f), 10)
}

// Bytes returns the opcode followed by the n least significant payload
// bytes, most significant first, the order in which the driver shifts them
// in. n is clamped to 0..3.
func (f CommandFrame) Bytes(n int) []byte {
	if n < 0 {
		n = 0
	}
	if n > 3 {
		n = 3
	}
	out := make([]byte, 1+n)
	out[0] = f.Opcode()
	p := f.Payload()
	for i := 0; i < n; i++ {
		out[1+i] = byte(p >> (8 * (n - 1 - i)))
	}
	return out
}

// ParseFrame parses the decimal form of a frame
func ParseFrame(s string) (CommandFrame, error) {
	v, err := strconv.ParseUint(s, 10, frameMaxBits)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid frame %q", s)
	}
	return CommandFrame(v), nil
}

// Mask returns value with every bit at or above the register width cleared.
// Out of range values are truncated, as the hardware does.
func Mask(reg Register, value uint32) uint32 {
	return value & reg.ValueMask()
}

// BuildSetFrame returns SET_PARAM for reg with the masked value. It does
// not check access rights; see AssertWritable.
func BuildSetFrame(reg Register, value uint32) CommandFrame {
	return NewFrame(opSetParam(reg.Address), Mask(reg, value))
}

// BuildGetFrame returns GET_PARAM for reg. The payload is zero.
func BuildGetFrame(reg Register) CommandFrame {
	return NewFrame(opGetParam(reg.Address), 0)
}

// BuildMotionFrame returns a motion command. value is the speed (RUN,
// GO_UNTIL), the step count (MOVE) or the target position (GO_TO,
// GO_TO_DIR), masked to the width of the matching register. act is only
// used by GO_UNTIL and RELEASE_SW.
func BuildMotionFrame(kind Motion, dir Direction, act Action, value uint32) CommandFrame {
	return NewFrame(kind.Opcode(dir, act), value&kind.payloadMask())
}

// BuildFrame returns a command without payload
func BuildFrame(cmd Command) CommandFrame {
	return NewFrame(cmd.Opcode(), 0)
}

// ParseReply turns the integer a device returns for GET_PARAM into the
// register value. Bits above the register width are dropped.
func ParseReply(reg Register, reply string) (uint32, error) {
	v, err := strconv.ParseUint(reply, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s reply %q", reg.Name, reply)
	}
	return uint32(v) & reg.ValueMask(), nil
}
