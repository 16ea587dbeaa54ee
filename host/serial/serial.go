package serial

import (
	"io"
	"time"

	"github.com/pkg/errors"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - go.bug.st/serial, which supports per-read timeouts
// - Mock serial (for testing)
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error

	// ReadAvailable waits up to timeout for data and returns whatever
	// arrived. An empty result with a nil error means nothing arrived.
	// After Close it returns io.EOF.
	ReadAvailable(timeout time.Duration) ([]byte, error)
}

// Backend names accepted in Config.Backend
const (
	BackendTarm  = "tarm"
	BackendBugst = "bugst"
)

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyUSB0", "COM3")
	Device string

	// Baud rate (OpenIndus consoles run at 115200)
	Baud int

	// Read slice in milliseconds. ReadAvailable polls in slices of this
	// length so that it can honor longer timeouts on backends with a fixed
	// per-port timeout.
	ReadTimeout int

	// Backend selects the serial library (BackendTarm or BackendBugst)
	Backend string
}

// DefaultConfig returns a default configuration for an OpenIndus console
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        115200,
		ReadTimeout: 100,
		Backend:     BackendTarm,
	}
}

// ErrUnknownBackend is returned by Open for an unrecognized Config.Backend
var ErrUnknownBackend = errors.New("unknown serial backend")

const readChunk = 256

// pollRead calls r.Read until it yields data or timeout elapses. A zero-byte
// read is a slice timeout, not closure: tarm reports it as io.EOF through
// os.File. closed reports whether the port was closed locally, in which case
// any read error becomes io.EOF.
func pollRead(r io.Reader, timeout time.Duration, closed func() bool) ([]byte, error) {
	buf := make([]byte, readChunk)
	deadline := time.Now().Add(timeout)

	for {
		if closed() {
			return nil, io.EOF
		}

		n, err := r.Read(buf)
		if n > 0 {
			out := make([]byte, n)
			copy(out, buf[:n])
			return out, nil
		}
		if err != nil && err != io.EOF {
			if closed() {
				return nil, io.EOF
			}
			return nil, errors.Wrap(err, "serial read")
		}

		if !time.Now().Before(deadline) {
			return nil, nil
		}
	}
}
