//go:build !wasm

package serial

import (
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"github.com/tarm/serial"
)

// NativePort wraps the tarm/serial implementation
type NativePort struct {
	port   *serial.Port
	cfg    *Config
	closed atomic.Bool
}

// Open opens a serial port with the backend named in cfg
func Open(cfg *Config) (Port, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}

	switch cfg.Backend {
	case "", BackendTarm:
		return openNative(cfg)
	case BackendBugst:
		return openBugst(cfg)
	default:
		return nil, errors.Wrapf(ErrUnknownBackend, "backend %q", cfg.Backend)
	}
}

func openNative(cfg *Config) (*NativePort, error) {
	serialConfig := &serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Baud,
		ReadTimeout: time.Duration(cfg.ReadTimeout) * time.Millisecond,
	}

	port, err := serial.OpenPort(serialConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open serial port %s", cfg.Device)
	}

	return &NativePort{
		port: port,
		cfg:  cfg,
	}, nil
}

// Read reads data from the serial port
func (p *NativePort) Read(b []byte) (int, error) {
	return p.port.Read(b)
}

// ReadAvailable polls the port in ReadTimeout slices until data arrives
func (p *NativePort) ReadAvailable(timeout time.Duration) ([]byte, error) {
	return pollRead(p.port, timeout, p.closed.Load)
}

// Write writes data to the serial port
func (p *NativePort) Write(b []byte) (int, error) {
	return p.port.Write(b)
}

// Close closes the serial port
func (p *NativePort) Close() error {
	if p.closed.Swap(true) {
		return nil
	}
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Flush discards unread input
func (p *NativePort) Flush() error {
	return p.port.Flush()
}
