//go:build !wasm

package serial

import (
	"io"
	"sort"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	bugst "go.bug.st/serial"
)

// BugstPort wraps go.bug.st/serial, which can change the read timeout on
// every call, so ReadAvailable does not need to poll in slices.
type BugstPort struct {
	port   bugst.Port
	cfg    *Config
	closed atomic.Bool
}

func openBugst(cfg *Config) (*BugstPort, error) {
	port, err := bugst.Open(cfg.Device, &bugst.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   bugst.NoParity,
		StopBits: bugst.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", cfg.Device)
	}

	return &BugstPort{port: port, cfg: cfg}, nil
}

// Read reads data from the serial port
func (p *BugstPort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// ReadAvailable sets the port read timeout and performs a single read
func (p *BugstPort) ReadAvailable(timeout time.Duration) ([]byte, error) {
	if p.closed.Load() {
		return nil, io.EOF
	}
	if timeout <= 0 {
		timeout = time.Millisecond
	}
	if err := p.port.SetReadTimeout(timeout); err != nil {
		return nil, p.mapError(err)
	}

	buf := make([]byte, readChunk)
	n, err := p.port.Read(buf)
	if err != nil {
		return nil, p.mapError(err)
	}
	return buf[:n], nil
}

// mapError turns disconnection errors into io.EOF
func (p *BugstPort) mapError(err error) error {
	if p.closed.Load() {
		return io.EOF
	}
	var portErr *bugst.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case bugst.PortClosed, bugst.PortNotFound, bugst.InvalidSerialPort:
			return io.EOF
		}
	}
	return errors.Wrap(err, "serial read")
}

// Write writes data to the serial port
func (p *BugstPort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port
func (p *BugstPort) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	return p.port.Close()
}

// Flush discards unread input
func (p *BugstPort) Flush() error {
	return p.port.ResetInputBuffer()
}

// ListPorts returns the serial devices present on this machine, sorted
func ListPorts() ([]string, error) {
	ports, err := bugst.GetPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "failed to enumerate serial ports")
	}
	sort.Strings(ports)
	return ports, nil
}
