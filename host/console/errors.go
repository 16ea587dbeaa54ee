package console

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrTimeout means the awaited pattern did not show up before the deadline
	ErrTimeout = errors.New("console: timeout")

	// ErrStreamClosed means the byte stream went away; the session is unusable
	ErrStreamClosed = errors.New("console: stream closed")
)

// TimeoutError reports what Expect was waiting for and what it had seen.
// The bytes in Pending are still in the session buffer.
type TimeoutError struct {
	Pattern string
	Timeout time.Duration
	Pending []byte
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("console: timeout after %v waiting for %s (%d bytes pending)",
		e.Timeout, e.Pattern, len(e.Pending))
}

// Is makes errors.Is(err, ErrTimeout) hold for a *TimeoutError
func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}
