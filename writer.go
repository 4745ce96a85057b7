package seqio

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/fiox/seqio/internal/bufpool"
	"github.com/fiox/seqio/internal/engine"
	"github.com/fiox/seqio/internal/logging"
)

// Writer streams data into a file forward through a pool of page-aligned
// buffers, submitting each buffer for asynchronous write as soon as it
// fills. Close drains any in-flight writes and flushes a final partial
// buffer through a conventional (cached) file handle.
type Writer struct {
	mu sync.Mutex

	path    string
	adapter engine.Adapter
	pool    *bufpool.Pool

	pos           bufpool.DataPos
	pendingIO     int
	filePosCursor int64
	bufferSize    int

	logger   *logging.Logger
	observer Observer
	metrics  *Metrics
	closed   bool
}

// NewWriter opens path for sequential direct writes starting at
// opts.StartPos (or 0), creating the file if it does not exist.
// opts.StartPos must be a multiple of the platform page size.
func NewWriter(path string, opts *Options) (*Writer, error) {
	var o Options
	if opts != nil {
		o = *opts
	}
	o.withDefaults()

	ps := pageSize()
	if o.BufferSize%ps != 0 {
		return nil, NewError("open", CodeConfig, fmt.Sprintf("buffer size %d is not a multiple of page size %d", o.BufferSize, ps))
	}
	if o.StartPos%int64(ps) != 0 {
		return nil, NewError("open", CodeConfig, fmt.Sprintf("start_pos %d is not page-aligned (page size %d)", o.StartPos, ps))
	}

	adapter, err := newPlatformAdapter(o.NumBuffers, o.Logger)
	if err != nil {
		return nil, WrapError("open", err)
	}
	if err := adapter.Open(path, engine.ModeWriteCreate); err != nil {
		return nil, WrapError("open", err)
	}

	return newWriterFromAdapter(path, o, adapter, ps)
}

// newWriterFromAdapter builds a Writer around an already-opened Adapter, so
// tests can exercise the fill/submit/finalize logic through
// engine.NewMemAdapter without a real O_DIRECT-capable filesystem.
func newWriterFromAdapter(path string, o Options, adapter engine.Adapter, ps int) (*Writer, error) {
	pool, err := bufpool.NewPool(o.NumBuffers, o.BufferSize, ps)
	if err != nil {
		adapter.Close()
		return nil, WrapError("open", err)
	}
	if err := adapter.Register(pool); err != nil {
		adapter.Close()
		return nil, WrapError("open", err)
	}

	// Every buffer starts empty and already ReadyForProcess: Write fills
	// into it directly, it is never waited on until it is submitted.
	for i := 0; i < pool.Len(); i++ {
		pool.SetStatus(i, bufpool.StatusReadyForProcess)
	}

	metrics := NewMetrics()
	observer := o.Observer
	if observer == nil {
		observer = NewMetricsObserver(metrics)
	}

	return &Writer{
		path:          path,
		adapter:       adapter,
		pool:          pool,
		pos:           bufpool.DataPos{BufIdx: 0, Offset: 0},
		filePosCursor: o.StartPos,
		bufferSize:    o.BufferSize,
		logger:        o.Logger,
		observer:      observer,
		metrics:       metrics,
	}, nil
}

// Write copies p into the stream's buffer pool, submitting each buffer for
// asynchronous write as soon as it fills. It always consumes all of p.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	want := len(p)
	filled := 0

	for filled < want {
		bufIdx := w.pos.BufIdx
		if err := w.waitBufferReadyForWrite(bufIdx); err != nil {
			return filled, err
		}

		buf := w.pool.Buffer(bufIdx)
		remaining := w.bufferSize - w.pos.Offset
		n := remaining
		if need := want - filled; need < n {
			n = need
		}
		copy(buf.Bytes()[w.pos.Offset:w.pos.Offset+n], p[filled:filled+n])

		w.pos.Offset += n
		filled += n

		if n >= remaining {
			nextIdx := w.pool.Next(bufIdx)
			w.pos.BufIdx = nextIdx
			w.pos.Offset = 0
			w.pool.SetStatus(bufIdx, bufpool.StatusReadyForSubmit)
			if err := w.submitWrite(bufIdx); err != nil {
				return filled, err
			}
		}
	}

	w.observer.ObserveTransfer(uint64(filled))
	return filled, nil
}

// waitBufferReadyForWrite blocks until bufIdx's previous submission (if
// any) has completed, so Write may safely overwrite it.
func (w *Writer) waitBufferReadyForWrite(bufIdx int) error {
	if w.pool.Status(bufIdx) == bufpool.StatusReadyForProcess {
		return nil
	}

	stallStart := time.Now()
	for w.pendingIO > 0 {
		completion, err := w.adapter.WaitOne()
		if err != nil {
			return w.fatal("wait_write", bufIdx, err)
		}
		w.pendingIO--

		idx := completion.BufIdx
		w.pool.SetStatus(idx, bufpool.StatusReadyForProcess)
		completedBuf := w.pool.Buffer(idx)
		if completion.BytesTransferred != completedBuf.Cap() {
			return w.fatal("wait_write", idx, fmt.Errorf("short write: expected %d bytes, got %d", completedBuf.Cap(), completion.BytesTransferred))
		}

		if idx == bufIdx {
			w.observer.ObserveStall(uint64(time.Since(stallStart).Nanoseconds()))
			return nil
		}
	}

	return NewBufferError("wait_write", bufIdx, CodeCompletion, "buffer not ready after draining all pending writes")
}

func (w *Writer) submitWrite(bufIdx int) error {
	buf := w.pool.Buffer(bufIdx)
	length := buf.Cap()
	if err := w.adapter.SubmitWrite(bufIdx, w.filePosCursor, length); err != nil {
		return NewBufferError("submit_write", bufIdx, CodeSubmit, err.Error())
	}
	w.observer.ObserveSubmission()
	w.pendingIO++
	w.filePosCursor += int64(length)
	return nil
}

func (w *Writer) fatal(op string, bufIdx int, err error) error {
	w.observer.ObserveCompletionError()
	if se, ok := err.(*Error); ok {
		return se
	}
	return NewBufferError(op, bufIdx, CodeCompletion, err.Error())
}

// Close drains any in-flight writes, flushes a final partial buffer through
// a conventional file handle if one exists, and releases engine resources.
// Close is idempotent.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	defer w.metrics.Stop()

	for w.pendingIO > 0 {
		if _, err := w.adapter.WaitOne(); err != nil {
			w.adapter.Close()
			return w.fatal("drain", w.pos.BufIdx, err)
		}
		w.pendingIO--
	}

	if w.pos.Offset > 0 {
		if err := w.flushTail(); err != nil {
			w.adapter.Close()
			return err
		}
	}

	return w.adapter.Close()
}

// flushTail writes the current buffer's unflushed prefix through a
// conventional (cached) file handle, since the buffer pool's tail rarely
// spans a whole page-aligned chunk.
func (w *Writer) flushTail() error {
	f, err := os.OpenFile(w.path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return NewBufferError("flush_tail", w.pos.BufIdx, CodeTailFlush, err.Error())
	}
	defer f.Close()

	buf := w.pool.Buffer(w.pos.BufIdx)
	if _, err := f.WriteAt(buf.Bytes()[:w.pos.Offset], w.filePosCursor); err != nil {
		return NewBufferError("flush_tail", w.pos.BufIdx, CodeTailFlush, err.Error())
	}
	w.observer.ObserveTailFlush()
	return nil
}

// Metrics returns the writer's metrics instance.
func (w *Writer) Metrics() *Metrics { return w.metrics }
