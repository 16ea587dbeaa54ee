package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
)

// fakeStream replays scripted chunks, one per ReadAvailable call. Once the
// script is exhausted it either reports closure or behaves like an idle
// line. reply, when set, is consulted on every write and its output is
// queued for reading.
type fakeStream struct {
	mu       sync.Mutex
	chunks   []string
	written  bytes.Buffer
	closeEOF bool
	endless  string
	reply    func(line string) []string
	short    bool
	reads    int
}

func (f *fakeStream) ReadAvailable(timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	f.reads++
	if len(f.chunks) > 0 {
		chunk := f.chunks[0]
		f.chunks = f.chunks[1:]
		f.mu.Unlock()
		return []byte(chunk), nil
	}
	closeEOF, endless := f.closeEOF, f.endless
	f.mu.Unlock()

	if closeEOF {
		return nil, io.EOF
	}
	if endless != "" {
		time.Sleep(time.Millisecond)
		return []byte(endless), nil
	}
	time.Sleep(timeout)
	return nil, nil
}

func (f *fakeStream) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.short {
		return len(p) - 1, nil
	}
	f.written.Write(p)
	if f.reply != nil {
		f.chunks = append(f.chunks, f.reply(string(p))...)
	}
	return len(p), nil
}

func (f *fakeStream) push(chunks ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chunks = append(f.chunks, chunks...)
}

func (f *fakeStream) Written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.String()
}

func newTestSession(t *testing.T, stream *fakeStream, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithPollInterval(10 * time.Millisecond)}, opts...)
	s, err := New(stream, "Core>", opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return s
}

func pins(t *testing.T, events []UnsolicitedEvent) []int {
	t.Helper()
	var out []int
	for _, ev := range events {
		pin, err := ev.Pin()
		if err != nil {
			t.Fatalf("Pin() failed for %+v: %v", ev, err)
		}
		out = append(out, pin)
	}
	return out
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New(&fakeStream{}, ""); err == nil {
		t.Error("Expected error for empty prompt")
	}
	if _, err := New(nil, "Core>"); err == nil {
		t.Error("Expected error for nil stream")
	}
}

func TestSendAwaitsPrompt(t *testing.T) {
	stream := &fakeStream{reply: func(line string) []string {
		return []string{strings.TrimRight(line, "\r\n") + "\r\n", "Core>"}
	}}
	s := newTestSession(t, stream)

	if err := s.Send(context.Background(), "digital-write 1 1", true); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := stream.Written(); got != "digital-write 1 1\r\n" {
		t.Errorf("Written = %q", got)
	}
	if len(s.Pending()) != 0 {
		t.Errorf("Expected the echo and prompt consumed, pending %q", s.Pending())
	}
}

func TestSendWithoutPromptReturnsImmediately(t *testing.T) {
	stream := &fakeStream{}
	s := newTestSession(t, stream)

	if err := s.Send(context.Background(), "discover-slaves", false); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if stream.reads != 0 {
		t.Errorf("Send without prompt should not read, got %d reads", stream.reads)
	}
}

func TestSendShortWrite(t *testing.T) {
	s := newTestSession(t, &fakeStream{short: true})

	if err := s.Send(context.Background(), "ping", false); err == nil {
		t.Error("Expected error for incomplete write")
	}
}

func TestExpectDigitalReadReply(t *testing.T) {
	stream := &fakeStream{chunks: []string{"5\r\nCore>"}}
	s := newTestSession(t, stream)

	m, err := s.SendExpect(context.Background(), "digital-read 3", MustRegexp(`(\d+)\s*\nCore>`), 5*time.Second)
	if err != nil {
		t.Fatalf("Expect failed: %v", err)
	}
	if m.Group(1) != "5" {
		t.Errorf("Expected group 1 = %q, got %q", "5", m.Group(1))
	}
	if m.Text != "5\r\nCore>" {
		t.Errorf("Expected full match %q, got %q", "5\r\nCore>", m.Text)
	}
	if m.Group(7) != "" {
		t.Errorf("Missing group should be empty")
	}
}

func TestExpectQueuesEventsBeforePrompt(t *testing.T) {
	stream := &fakeStream{chunks: []string{
		"Interrupt triggered on DIN_1\r\n",
		"Interrupt triggered on DIN_2\r\nCore>",
	}}
	s := newTestSession(t, stream)

	m, err := s.ExpectPrompt(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Expect failed: %v", err)
	}
	if m.Text != "Core>" {
		t.Errorf("Expected prompt match, got %q", m.Text)
	}

	events := s.DrainUnsolicited()
	want := []UnsolicitedEvent{
		{Kind: KindDINInterrupt, Raw: "Interrupt triggered on DIN_1", Fields: []string{"1"}},
		{Kind: KindDINInterrupt, Raw: "Interrupt triggered on DIN_2", Fields: []string{"2"}},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Errorf("Unexpected events (-want +got):\n%s", diff)
	}

	if again := s.DrainUnsolicited(); len(again) != 0 {
		t.Errorf("Queue should be empty after drain, got %v", again)
	}
}

func TestExpectEventBetweenReplyAndPrompt(t *testing.T) {
	stream := &fakeStream{chunks: []string{
		"1\r\n",
		"Interrupt triggered on DIN_4\r\n",
		"Core>",
	}}
	s := newTestSession(t, stream)

	m, err := s.Expect(context.Background(), MustRegexp(`(\d+)\s*\nCore>`), time.Second)
	if err != nil {
		t.Fatalf("Expect failed: %v", err)
	}
	if m.Group(1) != "1" {
		t.Errorf("Expected reply 1, got %q", m.Group(1))
	}
	if diff := cmp.Diff([]int{4}, pins(t, s.DrainUnsolicited())); diff != "" {
		t.Errorf("Unexpected pins (-want +got):\n%s", diff)
	}
}

func TestExpectMatchInsideEventLine(t *testing.T) {
	stream := &fakeStream{chunks: []string{"Interrupt triggered on DIN_2\r\n42\r\nCore>"}}
	s := newTestSession(t, stream)

	m, err := s.Expect(context.Background(), MustRegexp(`(\d+)`), time.Second)
	if err != nil {
		t.Fatalf("Expect failed: %v", err)
	}
	if m.Group(1) != "42" {
		t.Errorf("Expected reply 42, got %q", m.Group(1))
	}
	if diff := cmp.Diff([]int{2}, pins(t, s.DrainUnsolicited())); diff != "" {
		t.Errorf("Unexpected pins (-want +got):\n%s", diff)
	}
	if got := string(s.Pending()); got != "\r\nCore>" {
		t.Errorf("Pending = %q, want the rest of the reply", got)
	}
}

func TestExpectEventSplitAcrossReads(t *testing.T) {
	stream := &fakeStream{chunks: []string{
		"Interrupt trig",
		"gered on DIN_1",
		"2\r\nCore>",
	}}
	s := newTestSession(t, stream)

	if _, err := s.ExpectPrompt(context.Background(), time.Second); err != nil {
		t.Fatalf("Expect failed: %v", err)
	}
	if diff := cmp.Diff([]int{12}, pins(t, s.DrainUnsolicited())); diff != "" {
		t.Errorf("Unexpected pins (-want +got):\n%s", diff)
	}
}

func TestExpectAwaitedEventThenRecoverPrompt(t *testing.T) {
	stream := &fakeStream{
		chunks: []string{"Interrupt triggered on DIN_2\r\n"},
		reply: func(line string) []string {
			if line == "\r\n" {
				return []string{"\r\nCore>"}
			}
			return nil
		},
	}
	s := newTestSession(t, stream)
	ctx := context.Background()

	m, err := s.Expect(ctx, MustRegexp(`Interrupt triggered on DIN_(\d+)`), 35*time.Second)
	if err != nil {
		t.Fatalf("Expect failed: %v", err)
	}
	if m.Group(1) != "2" {
		t.Errorf("Expected DIN 2, got %q", m.Group(1))
	}
	if events := s.DrainUnsolicited(); len(events) != 0 {
		t.Errorf("Awaited event must not be queued, got %v", events)
	}

	if _, err := s.RecoverPrompt(ctx, 5*time.Second); err != nil {
		t.Fatalf("RecoverPrompt failed: %v", err)
	}
	if got := stream.Written(); got != "\r\n" {
		t.Errorf("RecoverPrompt should write an empty line, wrote %q", got)
	}
}

func TestExpectZeroTimeoutMatchesBufferedData(t *testing.T) {
	stream := &fakeStream{chunks: []string{"5\r\nCore>"}}
	s := newTestSession(t, stream)
	ctx := context.Background()

	// Pull the bytes in without matching them
	if _, err := s.Expect(ctx, Literal("never"), 30*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected timeout, got %v", err)
	}

	readsBefore := stream.reads
	m, err := s.ExpectPrompt(ctx, 0)
	if err != nil {
		t.Fatalf("Zero timeout should match buffered data: %v", err)
	}
	if m.Text != "Core>" {
		t.Errorf("Expected prompt, got %q", m.Text)
	}
	if stream.reads != readsBefore {
		t.Errorf("Buffered match should not read")
	}
}

func TestExpectTimeoutPreservesPending(t *testing.T) {
	stream := &fakeStream{chunks: []string{"partial repl"}}
	s := newTestSession(t, stream)

	_, err := s.ExpectPrompt(context.Background(), 30*time.Millisecond)
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}

	var timeoutErr *TimeoutError
	if !errors.As(err, &timeoutErr) {
		t.Fatalf("Expected *TimeoutError, got %T", err)
	}
	if string(timeoutErr.Pending) != "partial repl" {
		t.Errorf("TimeoutError.Pending = %q", timeoutErr.Pending)
	}
	if string(s.Pending()) != "partial repl" {
		t.Errorf("Pending bytes lost after timeout: %q", s.Pending())
	}

	// The rest of the reply arrives later and completes the match
	stream.mu.Lock()
	stream.chunks = []string{"y\r\nCore>"}
	stream.mu.Unlock()

	m, err := s.Expect(context.Background(), MustRegexp(`partial (\w+)\r\n`), time.Second)
	if err != nil {
		t.Fatalf("Expect after timeout failed: %v", err)
	}
	if m.Group(1) != "reply" {
		t.Errorf("Expected recovered reply, got %q", m.Group(1))
	}
}

func TestExpectDeadlineNotExtendedByEvents(t *testing.T) {
	stream := &fakeStream{endless: "Interrupt triggered on DIN_1\r\n"}
	s := newTestSession(t, stream)

	start := time.Now()
	_, err := s.ExpectPrompt(context.Background(), 50*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("Expected ErrTimeout, got %v", err)
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("Events extended the deadline: took %v", elapsed)
	}
	if len(s.DrainUnsolicited()) == 0 {
		t.Error("Expected events to be queued while waiting")
	}
}

func TestExpectStreamClosed(t *testing.T) {
	s := newTestSession(t, &fakeStream{chunks: []string{"no prompt"}, closeEOF: true})

	_, err := s.ExpectPrompt(context.Background(), time.Second)
	if !errors.Is(err, ErrStreamClosed) {
		t.Fatalf("Expected ErrStreamClosed, got %v", err)
	}
	if !s.Closed() {
		t.Error("Session should report closure")
	}
	if err := s.Send(context.Background(), "ping", false); !errors.Is(err, ErrStreamClosed) {
		t.Errorf("Send on closed session should fail with ErrStreamClosed, got %v", err)
	}
}

func TestExpectMatchArrivingWithClosure(t *testing.T) {
	s := newTestSession(t, &fakeStream{chunks: []string{"bye\r\nCore>"}, closeEOF: true})

	if _, err := s.Expect(context.Background(), Literal("bye"), time.Second); err != nil {
		t.Fatalf("Expected match before closure, got %v", err)
	}
	if _, err := s.ExpectPrompt(context.Background(), time.Second); err != nil {
		t.Fatalf("Buffered prompt should still match, got %v", err)
	}
}

func TestExpectContextCancelled(t *testing.T) {
	s := newTestSession(t, &fakeStream{})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := s.ExpectPrompt(ctx, 10*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
}

func TestEventsPersistAcrossCalls(t *testing.T) {
	stream := &fakeStream{chunks: []string{
		"Interrupt triggered on DIN_1\r\nCore>",
		"Interrupt triggered on DIN_3\r\nCore>",
	}}
	s := newTestSession(t, stream)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := s.ExpectPrompt(ctx, time.Second); err != nil {
			t.Fatalf("Expect %d failed: %v", i, err)
		}
	}
	if diff := cmp.Diff([]int{1, 3}, pins(t, s.DrainUnsolicited())); diff != "" {
		t.Errorf("Unexpected pins (-want +got):\n%s", diff)
	}
}

func TestExtraEventPattern(t *testing.T) {
	stream := &fakeStream{chunks: []string{
		"W (1200) oi_core: bus voltage low\r\n",
		"3.30\r\nCore>",
	}}
	s := newTestSession(t, stream, WithEventPattern(LogLine))

	m, err := s.Expect(context.Background(), MustRegexp(`(\d+\.\d+)`), time.Second)
	if err != nil {
		t.Fatalf("Expect failed: %v", err)
	}
	if m.Group(1) != "3.30" {
		t.Errorf("Expected 3.30, got %q", m.Group(1))
	}

	want := []UnsolicitedEvent{{
		Kind:   KindLog,
		Raw:    "W (1200) oi_core: bus voltage low",
		Fields: []string{"W", "1200", "oi_core", "bus voltage low"},
	}}
	if diff := cmp.Diff(want, s.DrainUnsolicited()); diff != "" {
		t.Errorf("Unexpected events (-want +got):\n%s", diff)
	}
}

func TestWithoutEvents(t *testing.T) {
	stream := &fakeStream{chunks: []string{"Interrupt triggered on DIN_1\r\nCore>"}}
	s := newTestSession(t, stream, WithoutEvents())

	m, err := s.Expect(context.Background(), Literal("DIN_1\r\nCore>"), time.Second)
	if err != nil {
		t.Fatalf("Expect failed: %v", err)
	}
	if m.Text != "DIN_1\r\nCore>" {
		t.Errorf("Unexpected match %q", m.Text)
	}
	if len(s.DrainUnsolicited()) != 0 {
		t.Error("No events expected when recognition is disabled")
	}
}

func TestDiscard(t *testing.T) {
	stream := &fakeStream{chunks: []string{
		"boot log line\r\n",
		"Interrupt triggered on DIN_2\r\nstale Core>",
	}}
	s := newTestSession(t, stream)

	n, err := s.Discard(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if want := len("boot log line\r\nstale Core>"); n != want {
		t.Errorf("Expected %d bytes dropped, got %d", want, n)
	}
	if len(s.Pending()) != 0 {
		t.Errorf("Pending should be empty, got %q", s.Pending())
	}
	if diff := cmp.Diff([]int{2}, pins(t, s.DrainUnsolicited())); diff != "" {
		t.Errorf("Unexpected pins (-want +got):\n%s", diff)
	}
}

func TestDiscardKeepsUnfinishedLine(t *testing.T) {
	stream := &fakeStream{chunks: []string{
		"noise\r\nInterrupt triggered on DIN_",
	}}
	s := newTestSession(t, stream)

	n, err := s.Discard(context.Background(), 10*time.Millisecond)
	if err != nil {
		t.Fatalf("Discard failed: %v", err)
	}
	if n != len("noise\r\n") {
		t.Errorf("Expected %d bytes dropped, got %d", len("noise\r\n"), n)
	}
	if got := string(s.Pending()); got != "Interrupt triggered on DIN_" {
		t.Fatalf("Pending = %q, want the unfinished line", got)
	}

	stream.push("7\r\nCore>")
	if _, err := s.ExpectPrompt(context.Background(), time.Second); err != nil {
		t.Fatalf("ExpectPrompt failed: %v", err)
	}
	if diff := cmp.Diff([]int{7}, pins(t, s.DrainUnsolicited())); diff != "" {
		t.Errorf("Unexpected pins (-want +got):\n%s", diff)
	}
}

func TestTakeUnsolicitedKeepsOrder(t *testing.T) {
	stream := &fakeStream{chunks: []string{
		"Interrupt triggered on DIN_1\r\nI (42) main: ready\r\nInterrupt triggered on DIN_2\r\nCore>",
	}}
	s := newTestSession(t, stream, WithEventPattern(LogLine))

	if _, err := s.ExpectPrompt(context.Background(), time.Second); err != nil {
		t.Fatalf("ExpectPrompt failed: %v", err)
	}

	ev, ok := s.TakeUnsolicited(KindLog)
	if !ok || ev.Kind != KindLog {
		t.Fatalf("TakeUnsolicited(log) = %+v, %v", ev, ok)
	}
	if _, ok := s.TakeUnsolicited("none"); ok {
		t.Error("Unexpected event for an unknown kind")
	}
	if diff := cmp.Diff([]int{1, 2}, pins(t, s.DrainUnsolicited())); diff != "" {
		t.Errorf("Unexpected pins (-want +got):\n%s", diff)
	}
}
