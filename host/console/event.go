package console

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Event kinds recognized out of the box
const (
	KindDINInterrupt = "din-interrupt"
	KindLog          = "log"
)

// EventPattern recognizes one kind of line the module prints on its own,
// outside any command reply. Only complete lines are recognized, so the
// expression must consume the line terminator.
type EventPattern struct {
	Kind string
	re   *regexp.Regexp
}

// NewEventPattern compiles expr as an unsolicited line of the given kind
func NewEventPattern(kind, expr string) (EventPattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return EventPattern{}, errors.Wrapf(err, "invalid event pattern %q", expr)
	}
	return EventPattern{Kind: kind, re: re}, nil
}

var (
	// DINInterrupt is printed by discrete inputs with an attached interrupt
	DINInterrupt = EventPattern{
		Kind: KindDINInterrupt,
		re:   regexp.MustCompile(`Interrupt triggered on DIN_(\d+)[ \t]*\r?\n`),
	}

	// LogLine matches ESP-IDF log output ("I (1234) tag: message"), with or
	// without color codes. It is not registered by default because test
	// benches routinely wait for log text as a reply.
	LogLine = EventPattern{
		Kind: KindLog,
		re:   regexp.MustCompile(`(?m)^(?:\x1b\[[0-9;]*m)?([EWIDV]) \((\d+)\) ([^:\r\n]+): ([^\r\n]*?)(?:\x1b\[0m)?\r?\n`),
	}
)

// UnsolicitedEvent is a line the module printed on its own while the caller
// was waiting for something else. Events are immutable once queued.
type UnsolicitedEvent struct {
	// Kind is the EventPattern.Kind that recognized the line
	Kind string

	// Raw is the line without its terminator
	Raw string

	// Fields are the capture groups of the recognizing pattern
	Fields []string
}

// Pin returns the input number of a DIN interrupt event
func (e UnsolicitedEvent) Pin() (int, error) {
	if e.Kind != KindDINInterrupt || len(e.Fields) == 0 {
		return 0, errors.Errorf("event %q carries no pin", e.Kind)
	}
	pin, err := strconv.Atoi(e.Fields[0])
	if err != nil {
		return 0, errors.Wrapf(err, "bad pin in %q", e.Raw)
	}
	return pin, nil
}

// eventLoc is one event occurrence found in the pending bytes
type eventLoc struct {
	pattern EventPattern
	loc     []int
}

// findEarliest returns the event that starts first in data. Ties go to the
// pattern registered first.
func findEarliest(patterns []EventPattern, data []byte) *eventLoc {
	var best *eventLoc
	for _, p := range patterns {
		loc := p.re.FindSubmatchIndex(data)
		if loc == nil || loc[0] == loc[1] {
			continue
		}
		if best == nil || loc[0] < best.loc[0] {
			best = &eventLoc{pattern: p, loc: loc}
		}
	}
	return best
}

func (l *eventLoc) event(data []byte) UnsolicitedEvent {
	m := newMatch(data, l.loc)
	return UnsolicitedEvent{
		Kind:   l.pattern.Kind,
		Raw:    strings.TrimRight(m.Text, "\r\n"),
		Fields: m.Groups[1:],
	}
}
