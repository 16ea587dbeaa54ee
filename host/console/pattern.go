package console

import (
	"bytes"
	"regexp"
	"strconv"

	"github.com/pkg/errors"
)

// Pattern is what Expect waits for: either an exact substring or a regular
// expression. The zero Pattern matches nothing.
type Pattern struct {
	literal string
	re      *regexp.Regexp
}

// Literal matches s as an exact substring
func Literal(s string) Pattern {
	return Pattern{literal: s}
}

// Regexp compiles expr into a Pattern
func Regexp(expr string) (Pattern, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Pattern{}, errors.Wrapf(err, "invalid pattern %q", expr)
	}
	return Pattern{re: re}, nil
}

// MustRegexp is like Regexp but panics on a bad expression
func MustRegexp(expr string) Pattern {
	return Pattern{re: regexp.MustCompile(expr)}
}

// FromRegexp wraps an already compiled expression
func FromRegexp(re *regexp.Regexp) Pattern {
	return Pattern{re: re}
}

// IsZero reports whether p is the zero Pattern
func (p Pattern) IsZero() bool {
	return p.re == nil && p.literal == ""
}

func (p Pattern) String() string {
	if p.re != nil {
		return p.re.String()
	}
	return strconv.Quote(p.literal)
}

// find returns submatch index pairs for the leftmost match in data, or nil
func (p Pattern) find(data []byte) []int {
	if p.re != nil {
		return p.re.FindSubmatchIndex(data)
	}
	if p.literal == "" {
		return nil
	}
	i := bytes.Index(data, []byte(p.literal))
	if i < 0 {
		return nil
	}
	return []int{i, i + len(p.literal)}
}

// Match is the text consumed by a successful Expect
type Match struct {
	// Text is the full matched region
	Text string

	// Groups holds Text at index 0 followed by the capture groups.
	// Groups that did not participate are empty strings.
	Groups []string
}

// Group returns capture group i, or "" when it does not exist
func (m *Match) Group(i int) string {
	if m == nil || i < 0 || i >= len(m.Groups) {
		return ""
	}
	return m.Groups[i]
}

func newMatch(data []byte, loc []int) *Match {
	m := &Match{Groups: make([]string, len(loc)/2)}
	for i := range m.Groups {
		start, end := loc[2*i], loc[2*i+1]
		if start >= 0 && end >= 0 {
			m.Groups[i] = string(data[start:end])
		}
	}
	m.Text = m.Groups[0]
	return m
}
