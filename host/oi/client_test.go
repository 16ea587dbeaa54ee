package oi

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"

	"oihost/host/console"
)

// fakeModule behaves like a module console: every line written is echoed,
// followed by its scripted reply, the prompt, and an optional trailer
// printed after the prompt.
type fakeModule struct {
	mu      sync.Mutex
	prompt  string
	replies map[string]string
	after   map[string]string
	chunks  []string
	written []string
	closed  bool
}

func newFakeModule() *fakeModule {
	return &fakeModule{
		prompt:  "Core>",
		replies: make(map[string]string),
		after:   make(map[string]string),
	}
}

func (f *fakeModule) ReadAvailable(timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil, io.EOF
	}
	if len(f.chunks) > 0 {
		chunk := f.chunks[0]
		f.chunks = f.chunks[1:]
		f.mu.Unlock()
		return []byte(chunk), nil
	}
	f.mu.Unlock()

	time.Sleep(min(timeout, time.Millisecond))
	return nil, nil
}

func (f *fakeModule) Read(p []byte) (int, error) {
	data, err := f.ReadAvailable(time.Millisecond)
	return copy(p, data), err
}

func (f *fakeModule) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	line := strings.TrimRight(string(p), "\r\n")
	f.written = append(f.written, line)
	f.chunks = append(f.chunks, line+"\r\n"+f.replies[line]+f.prompt)
	if trailer := f.after[line]; trailer != "" {
		f.chunks = append(f.chunks, trailer)
	}
	return len(p), nil
}

func (f *fakeModule) Flush() error { return nil }

func (f *fakeModule) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeModule) Written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.written...)
}

func newTestClient(t *testing.T, m *fakeModule, opts ...Option) *Client {
	t.Helper()
	s, err := console.New(m, m.prompt, console.WithPollInterval(5*time.Millisecond))
	if err != nil {
		t.Fatalf("console.New failed: %v", err)
	}
	opts = append([]Option{WithTimeout(500 * time.Millisecond)}, opts...)
	return NewClient(s, opts...)
}

func TestDigitalRead(t *testing.T) {
	m := newFakeModule()
	m.replies["digital-read 3"] = "5\r\n"
	c := newTestClient(t, m)

	v, err := c.DigitalRead(context.Background(), 3)
	if err != nil {
		t.Fatalf("DigitalRead failed: %v", err)
	}
	if v != 5 {
		t.Errorf("DigitalRead = %d, want 5", v)
	}
	if len(c.Session().Pending()) != 0 {
		t.Errorf("Expected reply consumed, pending %q", c.Session().Pending())
	}
}

func TestModuleAddressing(t *testing.T) {
	m := newFakeModule()
	c := newTestClient(t, m, WithModuleID(4))
	ctx := context.Background()

	if err := c.DigitalWrite(ctx, 1, 1); err != nil {
		t.Fatalf("DigitalWrite failed: %v", err)
	}
	if err := c.Module(7).ToggleOutput(ctx, 2); err != nil {
		t.Fatalf("ToggleOutput failed: %v", err)
	}
	if err := c.SetPWMDutyCycle(ctx, 3, 12.5); err != nil {
		t.Fatalf("SetPWMDutyCycle failed: %v", err)
	}

	want := []string{
		"digital-write 1 1 -i 4",
		"toggle-output -d 2 -i 7",
		"set-pwm-duty-cycle -d 3 -c 12.5 -i 4",
	}
	if diff := cmp.Diff(want, m.Written()); diff != "" {
		t.Errorf("Written commands mismatch (-want +got):\n%s", diff)
	}
	if c.ModuleID() != 4 {
		t.Errorf("Module() must not modify the receiver")
	}
}

func TestAnalogRead(t *testing.T) {
	m := newFakeModule()
	m.replies["analog-read 2 3"] = "3.30\r\n"
	c := newTestClient(t, m)

	v, err := c.AnalogRead(context.Background(), 2, DefaultADCChannel)
	if err != nil {
		t.Fatalf("AnalogRead failed: %v", err)
	}
	if v != 3.30 {
		t.Errorf("AnalogRead = %v, want 3.30", v)
	}
	if len(c.Session().Pending()) != 0 {
		t.Errorf("Prompt should be consumed, pending %q", c.Session().Pending())
	}
}

func TestDiscoverSlaves(t *testing.T) {
	m := newFakeModule()
	m.replies["discover-slaves"] = `[{"id":233,"type":3,"sn":563633},{"id":1,"type":1,"sn":12}]` + "\r\n"
	c := newTestClient(t, m)

	slaves, err := c.DiscoverSlaves(context.Background())
	if err != nil {
		t.Fatalf("DiscoverSlaves failed: %v", err)
	}
	want := []Slave{
		{ID: 233, Type: BoardStepper, SerialNumber: 563633},
		{ID: 1, Type: BoardDiscrete, SerialNumber: 12},
	}
	if diff := cmp.Diff(want, slaves); diff != "" {
		t.Errorf("DiscoverSlaves mismatch (-want +got):\n%s", diff)
	}
}

func TestDiscoverSlavesEmpty(t *testing.T) {
	m := newFakeModule()
	m.replies["discover-slaves"] = "[]\r\n"
	c := newTestClient(t, m)

	slaves, err := c.DiscoverSlaves(context.Background())
	if err != nil {
		t.Fatalf("DiscoverSlaves failed: %v", err)
	}
	if len(slaves) != 0 {
		t.Errorf("Expected no slaves, got %v", slaves)
	}
}

func TestBusCommandsIgnoreModuleID(t *testing.T) {
	m := newFakeModule()
	m.replies["discover-slaves"] = "[]\r\n"
	m.replies["get-slave-id 3 563633"] = "Slave ID: 233\r\n"
	m.replies["ping 3 563633"] = "Ping module: 563633 time: 800 us\r\n"
	c := newTestClient(t, m, WithModuleID(4))
	ctx := context.Background()

	if _, err := c.DiscoverSlaves(ctx); err != nil {
		t.Fatalf("DiscoverSlaves failed: %v", err)
	}
	if id, err := c.GetSlaveID(ctx, BoardStepper, 563633); err != nil || id != 233 {
		t.Errorf("GetSlaveID = %d, %v", id, err)
	}
	if _, err := c.Ping(ctx, BoardStepper, 563633); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	want := []string{"discover-slaves", "get-slave-id 3 563633", "ping 3 563633"}
	if diff := cmp.Diff(want, m.Written()); diff != "" {
		t.Errorf("Bus master commands must not be addressed (-want +got):\n%s", diff)
	}
}

func TestMalformedReply(t *testing.T) {
	m := newFakeModule()
	m.replies["discover-slaves"] = `[{"id":1,"type":"stepper"}]` + "\r\n"
	c := newTestClient(t, m)

	_, err := c.DiscoverSlaves(context.Background())
	if !errors.Is(err, ErrMalformedReply) {
		t.Fatalf("Expected ErrMalformedReply, got %v", err)
	}
	var mr *MalformedReplyError
	if !errors.As(err, &mr) || mr.Command != "discover-slaves" {
		t.Errorf("Expected *MalformedReplyError for discover-slaves, got %v", err)
	}
}

func TestGetSlaveID(t *testing.T) {
	m := newFakeModule()
	m.replies["get-slave-id 3 563633"] = "Slave ID: 233\r\n"
	m.replies["get-slave-id 3 1"] = "No slave found for board type 3 with SN 1\r\n"
	c := newTestClient(t, m)
	ctx := context.Background()

	id, err := c.GetSlaveID(ctx, BoardStepper, 563633)
	if err != nil {
		t.Fatalf("GetSlaveID failed: %v", err)
	}
	if id != 233 {
		t.Errorf("GetSlaveID = %d, want 233", id)
	}

	if _, err := c.GetSlaveID(ctx, BoardStepper, 1); !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("Expected ErrModuleNotFound, got %v", err)
	}
}

func TestPing(t *testing.T) {
	m := newFakeModule()
	m.replies["ping 1 12"] = "Ping module: 12 time: 1234 us\r\n"
	m.replies["ping 1 13"] = "Cannot ping module: 13\r\n"
	c := newTestClient(t, m)
	ctx := context.Background()

	d, err := c.Ping(ctx, BoardDiscrete, 12)
	if err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	if d != 1234*time.Microsecond {
		t.Errorf("Ping = %v, want 1.234ms", d)
	}
	if _, err := c.Ping(ctx, BoardDiscrete, 13); !errors.Is(err, ErrModuleNotFound) {
		t.Errorf("Expected ErrModuleNotFound, got %v", err)
	}
}

func TestGetSlaveInfo(t *testing.T) {
	m := newFakeModule()
	m.replies["get-slave-info 3 563633 -t -h -n -d -s"] = "3\r\n1\r\n563633\r\n1714000000\r\n1.4.2\r\n"
	c := newTestClient(t, m)

	info, err := c.GetSlaveInfo(context.Background(), BoardStepper, 563633)
	if err != nil {
		t.Fatalf("GetSlaveInfo failed: %v", err)
	}
	want := BoardInfo{
		Type:            BoardStepper,
		HardwareVariant: 1,
		SerialNumber:    563633,
		Timestamp:       1714000000,
		SoftwareVersion: "1.4.2",
	}
	if diff := cmp.Diff(want, info); diff != "" {
		t.Errorf("GetSlaveInfo mismatch (-want +got):\n%s", diff)
	}
}

func TestWaitForInterrupt(t *testing.T) {
	m := newFakeModule()
	m.after["attach-interrupt -d 2 -m rising"] = "Interrupt triggered on DIN_2\r\n"
	c := newTestClient(t, m)
	ctx := context.Background()

	if err := c.AttachInterrupt(ctx, 2, InterruptRising); err != nil {
		t.Fatalf("AttachInterrupt failed: %v", err)
	}
	pin, err := c.WaitForInterrupt(ctx, time.Second)
	if err != nil {
		t.Fatalf("WaitForInterrupt failed: %v", err)
	}
	if pin != 2 {
		t.Errorf("WaitForInterrupt = %d, want 2", pin)
	}

	written := m.Written()
	if written[len(written)-1] != "" {
		t.Errorf("Expected an empty line to recover the prompt, got %q", written)
	}
	if len(c.Session().DrainUnsolicited()) != 0 {
		t.Error("The awaited interrupt must not be queued")
	}
}

func TestWaitForInterruptAlreadyQueued(t *testing.T) {
	m := newFakeModule()
	m.replies["digital-write 1 1"] = "Interrupt triggered on DIN_4\r\n"
	c := newTestClient(t, m)
	ctx := context.Background()

	if err := c.DigitalWrite(ctx, 1, 1); err != nil {
		t.Fatalf("DigitalWrite failed: %v", err)
	}
	pin, err := c.WaitForInterrupt(ctx, 0)
	if err != nil {
		t.Fatalf("WaitForInterrupt failed: %v", err)
	}
	if pin != 4 {
		t.Errorf("WaitForInterrupt = %d, want 4", pin)
	}
}

func TestWaitForInterruptTimeout(t *testing.T) {
	m := newFakeModule()
	c := newTestClient(t, m)

	_, err := c.WaitForInterrupt(context.Background(), 20*time.Millisecond)
	if !errors.Is(err, console.ErrTimeout) {
		t.Errorf("Expected ErrTimeout, got %v", err)
	}
}

func TestParseBoardType(t *testing.T) {
	tests := []struct {
		in   string
		want BoardType
		ok   bool
	}{
		{"stepper", BoardStepper, true},
		{"relayhp", BoardRelayHP, true},
		{"5", BoardMixed, true},
		{"-1", 0, false},
		{"toaster", 0, false},
	}

	for _, tt := range tests {
		got, err := ParseBoardType(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseBoardType(%q) = %v, %v", tt.in, got, err)
		}
	}
	if BoardType(42).String() != "type42" {
		t.Errorf("Unexpected name for unknown type: %s", BoardType(42))
	}
}
