package ps01

import (
	"github.com/pkg/errors"
	"tinygo.org/x/drivers"
)

// Transfer is one frame and the number of payload bytes to clock for it.
// For GET_PARAM and GET_STATUS the payload positions carry the reply.
type Transfer struct {
	Frame CommandFrame
	Bytes int
}

// SetTransfer writes reg
func SetTransfer(reg Register, value uint32) Transfer {
	return Transfer{Frame: BuildSetFrame(reg, value), Bytes: reg.Bytes()}
}

// GetTransfer reads reg
func GetTransfer(reg Register) Transfer {
	return Transfer{Frame: BuildGetFrame(reg), Bytes: reg.Bytes()}
}

// MotionTransfer sends a motion command
func MotionTransfer(kind Motion, dir Direction, act Action, value uint32) Transfer {
	return Transfer{Frame: BuildMotionFrame(kind, dir, act, value), Bytes: kind.PayloadBytes()}
}

// CommandTransfer sends a command without payload. GET_STATUS clocks out
// the two status bytes.
func CommandTransfer(cmd Command) Transfer {
	t := Transfer{Frame: BuildFrame(cmd)}
	if cmd == GetStatus {
		t.Bytes = Status.Bytes()
	}
	return t
}

// ErrChainLength is returned when the number of transfers does not match the
// number of devices on the chain
var ErrChainLength = errors.New("transfer count does not match chain length")

// Transmitter sends frames to powerSTEP01 drivers daisy-chained on one SPI
// bus. Every byte position is one chip select cycle in which each device
// receives one byte; devices with nothing to do receive NOP.
type Transmitter struct {
	bus     drivers.SPI
	devices int
	cs      func(active bool)
}

// NewTransmitter returns a transmitter for a chain of n devices. cs drives
// the chip select line and may be nil when the bus handles it.
func NewTransmitter(bus drivers.SPI, n int, cs func(active bool)) *Transmitter {
	if n < 1 {
		n = 1
	}
	return &Transmitter{bus: bus, devices: n, cs: cs}
}

// Devices returns the chain length
func (t *Transmitter) Devices() int {
	return t.devices
}

// Send clocks one transfer per device, transfers[0] going to the device
// nearest the controller MOSI line. It returns, per device, the value
// assembled from the bytes received during its payload positions.
func (t *Transmitter) Send(transfers []Transfer) ([]uint32, error) {
	if len(transfers) != t.devices {
		return nil, errors.Wrapf(ErrChainLength, "%d transfers for %d devices", len(transfers), t.devices)
	}

	rows := 1
	frames := make([][]byte, t.devices)
	for i, tr := range transfers {
		frames[i] = tr.Frame.Bytes(tr.Bytes)
		if len(frames[i]) > rows {
			rows = len(frames[i])
		}
	}

	replies := make([]uint32, t.devices)
	tx := make([]byte, t.devices)
	rx := make([]byte, t.devices)
	for row := 0; row < rows; row++ {
		// The first byte shifted out ends in the device farthest down
		// the chain.
		for i := range frames {
			tx[t.devices-1-i] = Nop.Opcode()
			if row < len(frames[i]) {
				tx[t.devices-1-i] = frames[i][row]
			}
		}

		if err := t.cycle(tx, rx); err != nil {
			return nil, errors.Wrapf(err, "spi transfer, byte %d", row)
		}

		for i := range frames {
			if row > 0 && row < len(frames[i]) {
				replies[i] = replies[i]<<8 | uint32(rx[t.devices-1-i])
			}
		}
	}
	return replies, nil
}

// SendOne sends tr to every device of the chain and returns the replies
func (t *Transmitter) SendOne(tr Transfer) ([]uint32, error) {
	all := make([]Transfer, t.devices)
	for i := range all {
		all[i] = tr
	}
	return t.Send(all)
}

func (t *Transmitter) cycle(tx, rx []byte) error {
	if t.cs != nil {
		t.cs(true)
		defer t.cs(false)
	}
	return t.bus.Tx(tx, rx)
}
