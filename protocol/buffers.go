package protocol

// InputBuffer provides an abstraction for reading incoming console data
type InputBuffer interface {
	// Data returns the available data slice
	Data() []byte

	// Available returns the number of bytes available
	Available() int

	// Pop removes n bytes from the front of the buffer
	Pop(n int)
}

// PendingBuffer accumulates console bytes that no completed match has
// consumed yet. It grows without bound: bytes are never dropped, reordered
// or duplicated. Only Pop (a consumed prefix) and Cut (an extracted
// unsolicited line) remove data.
type PendingBuffer struct {
	data []byte
}

// NewPendingBuffer creates an empty PendingBuffer with the given initial capacity
func NewPendingBuffer(capacity int) *PendingBuffer {
	return &PendingBuffer{data: make([]byte, 0, capacity)}
}

// Write appends data to the end of the buffer
func (p *PendingBuffer) Write(data []byte) int {
	p.data = append(p.data, data...)
	return len(data)
}

func (p *PendingBuffer) Data() []byte {
	return p.data
}

func (p *PendingBuffer) Available() int {
	return len(p.data)
}

func (p *PendingBuffer) Pop(n int) {
	if n > len(p.data) {
		n = len(p.data)
	}
	if n <= 0 {
		return
	}
	// Shift instead of reslicing so the backing array does not leak memory
	// over a long session.
	rest := copy(p.data, p.data[n:])
	p.data = p.data[:rest]
}

// Cut removes the region [start, end) and returns a copy of it. The bytes on
// either side keep their relative order.
func (p *PendingBuffer) Cut(start, end int) []byte {
	if start < 0 {
		start = 0
	}
	if end > len(p.data) {
		end = len(p.data)
	}
	if start >= end {
		return nil
	}
	region := make([]byte, end-start)
	copy(region, p.data[start:end])
	rest := copy(p.data[start:], p.data[end:])
	p.data = p.data[:start+rest]
	return region
}

// Snapshot returns a copy of the buffered bytes
func (p *PendingBuffer) Snapshot() []byte {
	out := make([]byte, len(p.data))
	copy(out, p.data)
	return out
}

// IsEmpty returns true if the buffer is empty
func (p *PendingBuffer) IsEmpty() bool {
	return len(p.data) == 0
}

// Reset clears the buffer
func (p *PendingBuffer) Reset() {
	p.data = p.data[:0]
}
