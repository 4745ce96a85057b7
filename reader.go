// Package seqio provides sequential, completion-queue-driven file streaming
// with page-aligned double (or N-way) buffering on top of direct/unbuffered
// I/O. On Linux it drives an io_uring submission/completion ring with
// registered buffers and files; on Windows it drives an I/O completion port
// over an overlapped handle opened with FILE_FLAG_NO_BUFFERING. Reader and
// Writer satisfy io.Reader and io.Writer: a short or zero Read return means
// end of stream, never io.EOF, and Write returns short only with an error.
package seqio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fiox/seqio/internal/bufpool"
	"github.com/fiox/seqio/internal/constants"
	"github.com/fiox/seqio/internal/engine"
	"github.com/fiox/seqio/internal/logging"
)

// Options configures a Reader or Writer. Zero values are replaced by
// DefaultOptions's fields at construction time.
type Options struct {
	// NumBuffers is the pool depth, which is also the engine's submission
	// depth: at most NumBuffers requests are ever in flight at once.
	NumBuffers int
	// BufferSize is the per-buffer capacity in bytes. Must be a multiple
	// of the platform page size.
	BufferSize int
	// StartPos is the byte offset streaming begins at.
	StartPos int64
	// EndPos bounds a Reader's stream; 0 means read to end of file. Unused
	// by Writer.
	EndPos int64
	// Logger receives debug/info/warn/error messages. Defaults to the
	// package default logger.
	Logger *logging.Logger
	// Observer receives metrics events. Defaults to a MetricsObserver
	// wrapping a fresh Metrics instance.
	Observer Observer
}

// DefaultOptions returns sensible defaults for stream construction.
func DefaultOptions() Options {
	return Options{
		NumBuffers: constants.DefaultNumBuffers,
		BufferSize: constants.DefaultBufferCapacity,
	}
}

func (o *Options) withDefaults() {
	if o.NumBuffers <= 0 {
		o.NumBuffers = constants.DefaultNumBuffers
	}
	if o.BufferSize <= 0 {
		o.BufferSize = constants.DefaultBufferCapacity
	}
	if o.Logger == nil {
		o.Logger = logging.Default()
	}
}

func pageSize() int {
	if ps := os.Getpagesize(); ps > 0 {
		return ps
	}
	return constants.DefaultPageSize
}

// Reader streams a file forward through a pool of page-aligned buffers kept
// full by asynchronous reads. Read never returns io.EOF; a return of
// (0, nil) signals the stream is exhausted.
type Reader struct {
	mu sync.Mutex

	path    string
	adapter engine.Adapter
	pool    *bufpool.Pool

	pos           bufpool.DataPos
	pendingIO     int
	initialized   bool
	filePosCursor int64
	endPos        int64
	bufferSize    int

	logger   *logging.Logger
	observer Observer
	metrics  *Metrics
	closed   bool
}

// NewReader opens path for sequential direct reads starting at
// opts.StartPos (or 0) and ending at opts.EndPos (or the file's size).
func NewReader(path string, opts *Options) (*Reader, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.withDefaults()

	ps := pageSize()
	if o.BufferSize%ps != 0 {
		return nil, NewError("open", CodeConfig, fmt.Sprintf("buffer size %d is not a multiple of page size %d", o.BufferSize, ps))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, WrapError("open", err)
	}

	adapter, err := newPlatformAdapter(o.NumBuffers, o.Logger)
	if err != nil {
		return nil, WrapError("open", err)
	}
	if err := adapter.Open(path, engine.ModeReadOnly); err != nil {
		return nil, WrapError("open", err)
	}

	return newReaderFromAdapter(path, o, adapter, info.Size(), ps)
}

// newReaderFromAdapter builds a Reader around an already-opened Adapter.
// Factored out so tests can exercise the buffer/DataPos state machine
// through engine.NewMemAdapter without a real O_DIRECT-capable filesystem.
func newReaderFromAdapter(path string, o Options, adapter engine.Adapter, fileSize int64, ps int) (*Reader, error) {
	endPos := o.EndPos
	if endPos == 0 {
		endPos = fileSize
	}
	if endPos > fileSize {
		adapter.Close()
		return nil, NewError("open", CodeConfig, fmt.Sprintf("end_pos %d exceeds file size %d", endPos, fileSize))
	}

	pool, err := bufpool.NewPool(o.NumBuffers, o.BufferSize, ps)
	if err != nil {
		adapter.Close()
		return nil, WrapError("open", err)
	}
	if err := adapter.Register(pool); err != nil {
		adapter.Close()
		return nil, WrapError("open", err)
	}

	offset := int(o.StartPos % int64(o.BufferSize))
	readStart := o.StartPos - int64(offset)

	metrics := NewMetrics()
	observer := o.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	return &Reader{
		path:          path,
		adapter:       adapter,
		pool:          pool,
		pos:           bufpool.DataPos{BufIdx: 0, Offset: offset},
		filePosCursor: readStart,
		endPos:        endPos,
		bufferSize:    o.BufferSize,
		logger:        o.Logger,
		observer:      observer,
		metrics:       metrics,
	}, nil
}

// Read fills p with the next sequential bytes of the stream. It returns
// (0, nil), never io.EOF, once the stream is exhausted.
func (r *Reader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	want := len(p)
	filled := 0

	for filled < want {
		bufIdx := r.pos.BufIdx
		if err := r.waitBufferReadyForProcess(bufIdx); err != nil {
			return filled, err
		}
		if r.pool.Status(bufIdx) == bufpool.StatusInvalid {
			return filled, nil
		}

		buf := r.pool.Buffer(bufIdx)
		remaining := buf.Len() - r.pos.Offset
		n := remaining
		if need := want - filled; need < n {
			n = need
		}
		copy(p[filled:filled+n], buf.Bytes()[r.pos.Offset:r.pos.Offset+n])

		r.pos.Offset += n
		filled += n

		if n >= remaining {
			nextIdx := r.pool.Next(bufIdx)
			r.pos.BufIdx = nextIdx
			r.pos.Offset = 0
			r.pool.SetStatus(bufIdx, bufpool.StatusReadyForSubmit)
			if err := r.submitRead(bufIdx); err != nil {
				return filled, err
			}
		}
	}

	r.observer.ObserveTransfer(uint64(filled))
	return filled, nil
}

// waitBufferReadyForProcess blocks until bufIdx holds data (or has been
// marked Invalid at end of stream), priming all buffers on first use.
func (r *Reader) waitBufferReadyForProcess(bufIdx int) error {
	if r.pool.Status(bufIdx) == bufpool.StatusReadyForProcess {
		return nil
	}
	if r.pool.Status(bufIdx) == bufpool.StatusInvalid {
		return nil
	}

	if !r.initialized {
		for idx := 0; idx < r.pool.Len(); idx++ {
			if err := r.submitRead(idx); err != nil {
				return err
			}
		}
		r.initialized = true
		// Priming may fill bufIdx through the tail path or mark it Invalid
		// without leaving a read in flight for it.
		if s := r.pool.Status(bufIdx); s == bufpool.StatusReadyForProcess || s == bufpool.StatusInvalid {
			return nil
		}
	}

	stallStart := time.Now()
	for r.pendingIO > 0 {
		completion, err := r.adapter.WaitOne()
		if err != nil {
			return r.fatal("wait_read", bufIdx, err)
		}
		r.pendingIO--

		idx := completion.BufIdx
		r.pool.SetStatus(idx, bufpool.StatusReadyForProcess)
		completedBuf := r.pool.Buffer(idx)
		if completion.BytesTransferred != completedBuf.Cap() && r.pool.Status(idx) != bufpool.StatusInvalid {
			return r.fatal("wait_read", idx, fmt.Errorf("short read: expected %d bytes, got %d", completedBuf.Cap(), completion.BytesTransferred))
		}
		completedBuf.SetLen(completion.BytesTransferred)

		if idx == bufIdx {
			r.observer.ObserveStall(uint64(time.Since(stallStart).Nanoseconds()))
			return nil
		}
	}

	return NewBufferError("wait_read", bufIdx, CodeCompletion, "buffer not ready after draining all pending reads")
}

// submitRead submits the next asynchronous read for bufIdx, or synthesizes
// the unaligned tail read through a conventional file handle, or marks the
// buffer Invalid once the stream is exhausted.
func (r *Reader) submitRead(bufIdx int) error {
	if r.filePosCursor >= r.endPos {
		r.pool.SetStatus(bufIdx, bufpool.StatusInvalid)
		return nil
	}

	if r.filePosCursor+int64(r.bufferSize) > r.endPos {
		return r.readTail(bufIdx)
	}

	buf := r.pool.Buffer(bufIdx)
	buf.SetLen(0)
	if err := r.adapter.SubmitRead(bufIdx, r.filePosCursor, buf.Cap()); err != nil {
		return NewBufferError("submit_read", bufIdx, CodeSubmit, err.Error())
	}
	r.observer.ObserveSubmission()
	r.pendingIO++
	r.filePosCursor += int64(r.bufferSize)
	return nil
}

// readTail handles the final, possibly sub-page-aligned read through a
// conventional (cached) file handle, since O_DIRECT/FILE_FLAG_NO_BUFFERING
// requires page-aligned length and the stream's last chunk rarely is.
func (r *Reader) readTail(bufIdx int) error {
	remaining := r.endPos - r.filePosCursor
	f, err := os.Open(r.path)
	if err != nil {
		return r.fatalCode("read_tail", bufIdx, CodeTailFlush, err)
	}
	defer f.Close()

	buf := r.pool.Buffer(bufIdx)
	n, err := f.ReadAt(buf.Bytes()[:remaining], r.filePosCursor)
	if err != nil && int64(n) != remaining {
		return r.fatalCode("read_tail", bufIdx, CodeTailFlush, err)
	}

	r.pool.SetStatus(bufIdx, bufpool.StatusReadyForProcess)
	buf.SetLen(n)
	r.filePosCursor += int64(n)
	r.observer.ObserveTailFlush()
	return nil
}

func (r *Reader) fatal(op string, bufIdx int, err error) error {
	r.observer.ObserveCompletionError()
	if se, ok := err.(*Error); ok {
		return se
	}
	return NewBufferError(op, bufIdx, CodeCompletion, err.Error())
}

func (r *Reader) fatalCode(op string, bufIdx int, code ErrorCode, err error) error {
	return NewBufferError(op, bufIdx, code, err.Error())
}

// Close releases the reader's engine resources. Close is idempotent.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.metrics.Stop()
	return r.adapter.Close()
}

// Metrics returns the reader's metrics instance.
func (r *Reader) Metrics() *Metrics { return r.metrics }
