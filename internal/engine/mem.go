package engine

import (
	"fmt"

	"github.com/fiox/seqio/internal/bufpool"
)

// MemAdapter is an in-process fake completion engine over an in-memory
// byte slice. It exists purely as ambient test tooling: it shapes its
// submit/wait contract exactly like the real adapters (out-of-order-
// tolerant, one pending completion per buffer) without needing O_DIRECT,
// a real file, or a kernel ring, so Reader/Writer's buffer-lifecycle and
// data-position logic can be exercised in isolation.
type MemAdapter struct {
	data    []byte
	pool    *bufpool.Pool
	pending []pendingOp
}

type pendingOp struct {
	bufIdx int
	offset int64
	length int
	isRead bool
}

// NewMemAdapter creates a fake adapter backed by data. For ModeWriteCreate
// the adapter grows data as writes land past its current length.
func NewMemAdapter(data []byte) *MemAdapter {
	return &MemAdapter{data: data}
}

// Written returns the current contents of the backing slice.
func (a *MemAdapter) Written() []byte { return a.data }

func (a *MemAdapter) Open(path string, mode Mode) error { return nil }

func (a *MemAdapter) Register(pool *bufpool.Pool) error {
	a.pool = pool
	return nil
}

func (a *MemAdapter) SubmitRead(bufIdx int, fileOffset int64, length int) error {
	a.pending = append(a.pending, pendingOp{bufIdx, fileOffset, length, true})
	return nil
}

func (a *MemAdapter) SubmitWrite(bufIdx int, fileOffset int64, length int) error {
	a.pending = append(a.pending, pendingOp{bufIdx, fileOffset, length, false})
	return nil
}

func (a *MemAdapter) WaitOne() (Completion, error) {
	if len(a.pending) == 0 {
		return Completion{}, fmt.Errorf("engine: mem adapter has no pending operations")
	}
	// Complete out of order: take the last submitted first, exercising
	// the engine's tolerance for out-of-order completions.
	op := a.pending[len(a.pending)-1]
	a.pending = a.pending[:len(a.pending)-1]

	buf := a.pool.Buffer(op.bufIdx)
	if op.isRead {
		end := op.offset + int64(op.length)
		if end > int64(len(a.data)) {
			end = int64(len(a.data))
		}
		n := 0
		if end > op.offset {
			n = copy(buf.Bytes()[:op.length], a.data[op.offset:end])
		}
		return Completion{BufIdx: op.bufIdx, BytesTransferred: n}, nil
	}

	end := op.offset + int64(op.length)
	if end > int64(len(a.data)) {
		grown := make([]byte, end)
		copy(grown, a.data)
		a.data = grown
	}
	copy(a.data[op.offset:end], buf.Bytes()[:op.length])
	return Completion{BufIdx: op.bufIdx, BytesTransferred: op.length}, nil
}

func (a *MemAdapter) Close() error { return nil }
