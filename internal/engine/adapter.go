// Package engine defines the completion-engine adapter contract used by
// both seqio.Reader and seqio.Writer, and provides the concrete
// realizations: a Linux io_uring ring adapter, a Windows I/O-completion-
// port adapter, and an in-memory fake for tests.
package engine

import (
	"errors"
	"fmt"

	"github.com/fiox/seqio/internal/bufpool"
)

// ErrRingFull is returned when the submission queue rejects an entry.
// With a correctly sized engine (submission depth == buffer count) this
// should never happen in normal streaming; the caller treats it as fatal.
var ErrRingFull = errors.New("engine: submission queue full")

// Mode selects how Open treats a missing file.
type Mode int

const (
	// ModeReadOnly fails Open if the file does not exist.
	ModeReadOnly Mode = iota
	// ModeWriteCreate creates the file if it does not exist.
	ModeWriteCreate
)

// Completion reports the outcome of one previously submitted I/O.
type Completion struct {
	BufIdx           int
	BytesTransferred int
}

// Adapter is the minimal contract a completion engine must satisfy. It
// is intentionally narrow: open once, register once, submit read/write
// requests tagged by buffer index, and wait for completions one at a
// time. Completions may arrive out of order; callers must tolerate that.
type Adapter interface {
	// Open opens path under the given mode with the platform's
	// direct/un-cached, sequential-scan, completion-based attributes.
	Open(path string, mode Mode) error

	// Register performs any one-time binding the platform supports
	// (pre-registering buffers/file so submissions can use small integer
	// indices). Implementations without registration make this a no-op.
	Register(pool *bufpool.Pool) error

	// SubmitRead enqueues an asynchronous read into buffer bufIdx at the
	// given file offset. Must not block on the disk.
	SubmitRead(bufIdx int, fileOffset int64, length int) error

	// SubmitWrite enqueues an asynchronous write of buffer bufIdx's
	// first length bytes at the given file offset. Must not block.
	SubmitWrite(bufIdx int, fileOffset int64, length int) error

	// WaitOne blocks until at least one previously submitted I/O
	// completes and returns it.
	WaitOne() (Completion, error)

	// Close releases the engine's OS resources (ring/port, registrations,
	// file handle) in reverse order of acquisition.
	Close() error
}

// SubmitError wraps a failed submission with the operation that produced it.
type SubmitError struct {
	Op  string
	Err error
}

func (e *SubmitError) Error() string { return fmt.Sprintf("engine: submit %s: %v", e.Op, e.Err) }
func (e *SubmitError) Unwrap() error { return e.Err }

// CompletionError wraps a fatal completion-side invariant violation: the
// OS reported a non-success status, or a short transfer on a buffer that
// was expected to transfer in full.
type CompletionError struct {
	BufIdx int
	Msg    string
}

func (e *CompletionError) Error() string {
	return fmt.Sprintf("engine: completion invariant violation on buffer %d: %s", e.BufIdx, e.Msg)
}
