// Package console drives the text console of an OpenIndus module: it sends
// command lines, waits for replies up to the prompt, and sets aside the
// lines the module prints on its own (interrupt notifications) so that they
// neither break nor get lost in the exchange.
package console

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"oihost/protocol"
)

// Stream is the byte transport underneath a Session. serial.Port satisfies
// it. ReadAvailable returns an empty slice and a nil error when nothing
// arrived within timeout, and io.EOF once the stream is gone.
type Stream interface {
	ReadAvailable(timeout time.Duration) ([]byte, error)
	Write(p []byte) (int, error)
}

// Session correlates commands with their replies on one module console.
//
// A Session has a single owner: Send, Expect and RecoverPrompt must not be
// called concurrently. DrainUnsolicited may be called from any goroutine.
type Session struct {
	stream Stream
	prompt string
	cfg    Config
	log    zerolog.Logger

	// Bytes read but not consumed by a match
	pending *protocol.PendingBuffer
	closed  bool

	queueMutex sync.Mutex
	queue      []UnsolicitedEvent
}

// New creates a session on stream. prompt is the literal the module prints
// when it is ready for the next command, e.g. protocol.PromptFor("core").
func New(stream Stream, prompt string, opts ...Option) (*Session, error) {
	if stream == nil {
		return nil, errors.New("console: stream cannot be nil")
	}
	if prompt == "" {
		return nil, errors.New("console: prompt cannot be empty")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Session{
		stream:  stream,
		prompt:  prompt,
		cfg:     cfg,
		log:     cfg.Logger.With().Str("prompt", prompt).Logger(),
		pending: protocol.NewPendingBuffer(512),
	}, nil
}

// Prompt returns the prompt literal of this session
func (s *Session) Prompt() string {
	return s.prompt
}

// Logger returns the session logger
func (s *Session) Logger() zerolog.Logger {
	return s.log
}

// Closed reports whether the stream has reported closure
func (s *Session) Closed() bool {
	return s.closed
}

// Send writes command followed by the line terminator. With awaitPrompt it
// then waits up to the configured reply timeout for the prompt.
func (s *Session) Send(ctx context.Context, command string, awaitPrompt bool) error {
	if err := s.writeLine(command); err != nil {
		return errors.Wrapf(err, "send %q", command)
	}

	if !awaitPrompt {
		return nil
	}

	if _, err := s.ExpectPrompt(ctx, s.cfg.ReplyTimeout); err != nil {
		return errors.Wrapf(err, "send %q", command)
	}
	return nil
}

// SendExpect sends command without waiting for the prompt and then waits for
// pattern. The prompt that follows the reply stays in the buffer.
func (s *Session) SendExpect(ctx context.Context, command string, pattern Pattern, timeout time.Duration) (*Match, error) {
	if err := s.Send(ctx, command, false); err != nil {
		return nil, err
	}
	return s.Expect(ctx, pattern, timeout)
}

// ExpectPrompt waits for the prompt literal
func (s *Session) ExpectPrompt(ctx context.Context, timeout time.Duration) (*Match, error) {
	return s.Expect(ctx, Literal(s.prompt), timeout)
}

// Expect waits until pattern shows up in the console output.
//
// Buffered bytes are scanned before anything is read, so a timeout of zero
// still matches output that already arrived. Unsolicited lines found ahead
// of the match are moved to the unsolicited queue, in order. The deadline is
// fixed when Expect starts and is not extended by those lines.
//
// On timeout the buffered bytes are kept for the next call and the error
// satisfies errors.Is(err, ErrTimeout). Closure of the stream yields
// ErrStreamClosed, cancellation of ctx yields ctx.Err().
func (s *Session) Expect(ctx context.Context, pattern Pattern, timeout time.Duration) (*Match, error) {
	if pattern.IsZero() {
		return nil, errors.New("console: empty pattern")
	}

	deadline := time.Now().Add(timeout)

	for {
		if m := s.scan(pattern); m != nil {
			return m, nil
		}

		if s.closed {
			s.log.Warn().Int("pending", s.pending.Available()).Msg("stream closed while waiting")
			return nil, errors.Wrapf(ErrStreamClosed, "waiting for %s", pattern)
		}

		if err := ctx.Err(); err != nil {
			return nil, errors.Wrapf(err, "waiting for %s", pattern)
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			s.log.Warn().
				Str("pattern", pattern.String()).
				Dur("timeout", timeout).
				Int("pending", s.pending.Available()).
				Msg("timeout waiting for pattern")
			return nil, &TimeoutError{
				Pattern: pattern.String(),
				Timeout: timeout,
				Pending: s.pending.Snapshot(),
			}
		}

		if err := s.fill(min(remaining, s.cfg.PollInterval)); err != nil {
			return nil, err
		}
	}
}

// DrainUnsolicited removes and returns every queued unsolicited event,
// oldest first. It never blocks on the stream.
func (s *Session) DrainUnsolicited() []UnsolicitedEvent {
	s.queueMutex.Lock()
	defer s.queueMutex.Unlock()

	events := s.queue
	s.queue = nil
	return events
}

// TakeUnsolicited removes the oldest queued event of the given kind. The
// other events keep their order.
func (s *Session) TakeUnsolicited(kind string) (UnsolicitedEvent, bool) {
	s.queueMutex.Lock()
	defer s.queueMutex.Unlock()

	for i, ev := range s.queue {
		if ev.Kind == kind {
			s.queue = append(s.queue[:i:i], s.queue[i+1:]...)
			return ev, true
		}
	}
	return UnsolicitedEvent{}, false
}

// RecoverPrompt writes an empty line and waits for the prompt. The module
// only reprints its prompt on new input after an unsolicited line was
// flushed to the console.
func (s *Session) RecoverPrompt(ctx context.Context, timeout time.Duration) (*Match, error) {
	if err := s.writeLine(""); err != nil {
		return nil, errors.Wrap(err, "recover prompt")
	}
	return s.ExpectPrompt(ctx, timeout)
}

// Discard drops the buffered bytes and anything read until the stream stays
// quiet for the given period, then returns the number of bytes dropped.
// Unsolicited lines among them are still queued. An unterminated last line
// is kept unless it ends with the prompt.
func (s *Session) Discard(ctx context.Context, quiet time.Duration) (int, error) {
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		before := s.pending.Available()
		if err := s.fill(quiet); err != nil {
			return 0, err
		}
		if s.pending.Available() == before {
			break
		}
	}

	s.extractEvents()
	dropped := s.stale()
	s.pending.Pop(dropped)
	if dropped > 0 {
		s.log.Debug().Int("bytes", dropped).Msg("discarded stale console output")
	}
	return dropped, nil
}

// stale returns how many leading pending bytes Discard may drop: every
// complete line, plus a trailing fragment only when it is a stale prompt.
// Any other fragment is a line still being printed.
func (s *Session) stale() int {
	data := s.pending.Data()
	if bytes.HasSuffix(data, []byte(s.prompt)) {
		return len(data)
	}
	return bytes.LastIndexByte(data, '\n') + 1
}

// Pending returns a copy of the bytes read but not yet consumed
func (s *Session) Pending() []byte {
	return s.pending.Snapshot()
}

// fill performs one read into the pending buffer
func (s *Session) fill(timeout time.Duration) error {
	data, err := s.stream.ReadAvailable(timeout)
	if len(data) > 0 {
		s.pending.Write(data)
	}
	if err != nil {
		if isClosed(err) {
			// Scan once more before reporting: the last chunk may hold the match
			s.closed = true
			return nil
		}
		return errors.Wrap(err, "console read")
	}
	return nil
}

// scan runs the matching policy over the pending buffer. An unsolicited
// line that starts before the awaited match is cut out and queued, even
// when the match lies inside it. A match starting at or before the line
// means the caller is waiting for that line itself, so the match wins.
func (s *Session) scan(pattern Pattern) *Match {
	for {
		data := s.pending.Data()
		loc := pattern.find(data)
		ev := findEarliest(s.cfg.Events, data)

		if ev != nil && (loc == nil || ev.loc[0] < loc[0]) {
			s.enqueue(ev.event(data))
			s.pending.Cut(ev.loc[0], ev.loc[1])
			continue
		}

		if loc == nil {
			return nil
		}

		m := newMatch(data, loc)
		s.pending.Pop(loc[1])
		return m
	}
}

// extractEvents queues every complete unsolicited line still buffered
func (s *Session) extractEvents() {
	for {
		data := s.pending.Data()
		ev := findEarliest(s.cfg.Events, data)
		if ev == nil {
			return
		}
		s.enqueue(ev.event(data))
		s.pending.Cut(ev.loc[0], ev.loc[1])
	}
}

func (s *Session) enqueue(ev UnsolicitedEvent) {
	s.queueMutex.Lock()
	s.queue = append(s.queue, ev)
	s.queueMutex.Unlock()

	s.log.Debug().Str("kind", ev.Kind).Str("line", ev.Raw).Msg("unsolicited event queued")
}

// writeLine sends line plus terminator in full
func (s *Session) writeLine(line string) error {
	if s.closed {
		return ErrStreamClosed
	}

	msg := []byte(line + s.cfg.LineTerminator)
	n, err := s.stream.Write(msg)
	if err != nil {
		if isClosed(err) {
			s.closed = true
			return ErrStreamClosed
		}
		return errors.Wrap(err, "console write")
	}
	if n != len(msg) {
		return errors.Errorf("incomplete write: %d/%d bytes", n, len(msg))
	}

	s.log.Debug().Str("command", line).Msg("sent")
	return nil
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, os.ErrClosed)
}
