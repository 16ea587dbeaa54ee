package ps01

import (
	"fmt"

	"github.com/pkg/errors"
)

// WriteContext is the device state a caller declares before writing a
// register
type WriteContext uint8

const (
	// ContextHiZ: bridges in high impedance, motor stopped
	ContextHiZ WriteContext = iota
	// ContextStopped: motor stopped, bridges active
	ContextStopped
	// ContextAlways: motor possibly running
	ContextAlways
)

func (c WriteContext) String() string {
	switch c {
	case ContextHiZ:
		return "hiz"
	case ContextStopped:
		return "stopped"
	case ContextAlways:
		return "always"
	default:
		return fmt.Sprintf("context(%d)", uint8(c))
	}
}

// permits returns the write rights usable in the context. A state that is
// more restrictive allows every right of the less restrictive ones: with the
// bridges in HiZ the motor is stopped too.
func (c WriteContext) permits() Rights {
	switch c {
	case ContextHiZ:
		return WriteWhenHiZ | WriteWhenStopped | WriteAlways
	case ContextStopped:
		return WriteWhenStopped | WriteAlways
	case ContextAlways:
		return WriteAlways
	default:
		return 0
	}
}

// ErrAccessDenied is matched by every AccessDeniedError
var ErrAccessDenied = errors.New("register access denied")

// AccessDeniedError reports a write the register rights do not allow
type AccessDeniedError struct {
	Register Register
	Context  WriteContext
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("register %s (%s) is not writable in context %s",
		e.Register.Name, e.Register.Rights, e.Context)
}

// Is makes errors.Is(err, ErrAccessDenied) succeed
func (e *AccessDeniedError) Is(target error) bool {
	return target == ErrAccessDenied
}

// AssertWritable fails with ErrAccessDenied when reg grants no write right
// usable in ctx. Read-only registers are denied in every context.
func AssertWritable(reg Register, ctx WriteContext) error {
	if reg.Rights&ctx.permits() == 0 {
		return &AccessDeniedError{Register: reg, Context: ctx}
	}
	return nil
}
