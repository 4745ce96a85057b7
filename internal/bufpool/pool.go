package bufpool

import "fmt"

// Status is the three-state tag attached to every buffer in a Pool.
type Status int

const (
	// StatusReadyForSubmit marks an idle buffer: its contents are not
	// valid user data and it is not in flight.
	StatusReadyForSubmit Status = iota

	// StatusReadyForProcess marks a buffer holding valid data: for the
	// reader, just-fetched disk bytes; for the writer, a just-completed
	// write that may now be refilled.
	StatusReadyForProcess

	// StatusInvalid is terminal for reader buffers past end-of-range.
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusReadyForSubmit:
		return "ReadyForSubmit"
	case StatusReadyForProcess:
		return "ReadyForProcess"
	case StatusInvalid:
		return "Invalid"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// DataPos is the consumer-side cursor into the pool: the next byte to
// copy out (reader) or copy into (writer).
type DataPos struct {
	BufIdx int
	Offset int
}

// Pool is a fixed-size, never-relocated, round-robin array of aligned
// buffers. Buffer addresses must stay stable for the pool's lifetime
// because in-flight completions reference them by raw address or index.
type Pool struct {
	buffers []*Buffer
	status  []Status
}

// NewPool allocates n page-aligned buffers of the given capacity.
func NewPool(n, capacity, pageSize int) (*Pool, error) {
	if n <= 0 {
		return nil, fmt.Errorf("bufpool: num buffers must be positive, got %d", n)
	}

	buffers := make([]*Buffer, n)
	for i := range buffers {
		buf, err := newBuffer(i, capacity, pageSize)
		if err != nil {
			return nil, err
		}
		buffers[i] = buf
	}

	return &Pool{
		buffers: buffers,
		status:  make([]Status, n),
	}, nil
}

// Len returns the number of buffers in the pool.
func (p *Pool) Len() int { return len(p.buffers) }

// Buffer returns the buffer at index i.
func (p *Pool) Buffer(i int) *Buffer { return p.buffers[i] }

// Status returns the current status of buffer i.
func (p *Pool) Status(i int) Status { return p.status[i] }

// SetStatus updates the status of buffer i.
func (p *Pool) SetStatus(i int, s Status) { p.status[i] = s }

// Next returns the next buffer index in round-robin order after i.
func (p *Pool) Next(i int) int { return (i + 1) % len(p.buffers) }

// Iovecs returns each buffer's full-capacity window in pool order.
func (p *Pool) Iovecs() [][]byte {
	out := make([][]byte, len(p.buffers))
	for i, b := range p.buffers {
		out[i] = b.Bytes()
	}
	return out
}
