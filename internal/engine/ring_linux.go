//go:build linux

package engine

import (
	"fmt"
	"syscall"
	"unsafe"

	"github.com/pawelgaczynski/giouring"
	"golang.org/x/sys/unix"

	"github.com/fiox/seqio/internal/bufpool"
	"github.com/fiox/seqio/internal/logging"
)

// RingAdapter drives a submission/completion ring sized to the buffer
// pool's depth. It registers the pool's buffers and the opened file once
// at construction so subsequent submissions can reference them by small
// integer indices (IORING_OP_READ_FIXED / IORING_OP_WRITE_FIXED).
type RingAdapter struct {
	ring       *giouring.Ring
	file       *syscallFile
	pool       *bufpool.Pool
	registered bool
	logger     *logging.Logger
}

// NewRingAdapter creates a ring-based adapter with the given submission
// queue depth. depth must be at least as large as the pool passed to
// Register.
func NewRingAdapter(depth int, logger *logging.Logger) (*RingAdapter, error) {
	ring, err := giouring.CreateRing(uint32(depth))
	if err != nil {
		return nil, fmt.Errorf("engine: create io_uring (depth %d): %w", depth, err)
	}
	return &RingAdapter{ring: ring, logger: logger}, nil
}

func (a *RingAdapter) Open(path string, mode Mode) error {
	flags := unix.O_DIRECT
	switch mode {
	case ModeReadOnly:
		flags |= unix.O_RDONLY
	case ModeWriteCreate:
		flags |= unix.O_WRONLY | unix.O_CREAT
	default:
		return fmt.Errorf("engine: unknown mode %d", mode)
	}

	fd, err := unix.Open(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("engine: open %s: %w", path, err)
	}
	_ = unix.Fadvise(fd, 0, 0, unix.FADV_SEQUENTIAL)

	a.file = &syscallFile{fd: fd, path: path}
	if a.logger != nil {
		a.logger.Debugf("opened %s fd=%d mode=%d with O_DIRECT", path, fd, mode)
	}
	return nil
}

func (a *RingAdapter) Register(pool *bufpool.Pool) error {
	a.pool = pool

	iovecs := make([]unix.Iovec, pool.Len())
	for i := 0; i < pool.Len(); i++ {
		b := pool.Buffer(i).Bytes()
		iovecs[i].SetLen(len(b))
		if len(b) > 0 {
			iovecs[i].Base = &b[0]
		}
	}

	if err := a.ring.RegisterBuffers(iovecs); err != nil {
		return fmt.Errorf("engine: register buffers: %w", err)
	}
	if err := a.ring.RegisterFiles([]int32{int32(a.file.fd)}); err != nil {
		return fmt.Errorf("engine: register file: %w", err)
	}
	a.registered = true
	return nil
}

func (a *RingAdapter) SubmitRead(bufIdx int, fileOffset int64, length int) error {
	return a.submit(bufIdx, fileOffset, length, true)
}

func (a *RingAdapter) SubmitWrite(bufIdx int, fileOffset int64, length int) error {
	return a.submit(bufIdx, fileOffset, length, false)
}

func (a *RingAdapter) submit(bufIdx int, fileOffset int64, length int, isRead bool) error {
	sqe := a.ring.GetSQE()
	if sqe == nil {
		return &SubmitError{Op: "get_sqe", Err: ErrRingFull}
	}

	buf := a.pool.Buffer(bufIdx).Bytes()
	addr := uint64(0)
	if len(buf) > 0 {
		addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}

	if isRead {
		sqe.PrepareReadFixed(int32(0), addr, uint32(length), uint64(fileOffset), bufIdx)
	} else {
		sqe.PrepareWriteFixed(int32(0), addr, uint32(length), uint64(fileOffset), bufIdx)
	}
	sqe.Flags |= giouring.SqeFixedFileBit
	sqe.SetUserData(uint64(bufIdx))

	if _, err := a.ring.Submit(); err != nil {
		return &SubmitError{Op: "submit", Err: err}
	}
	return nil
}

func (a *RingAdapter) WaitOne() (Completion, error) {
	cqe, err := a.ring.WaitCQE()
	if err != nil {
		if err == syscall.EINTR {
			return a.WaitOne()
		}
		return Completion{}, fmt.Errorf("engine: wait completion: %w", err)
	}
	bufIdx := int(cqe.UserData)
	res := cqe.Res
	a.ring.SeenCQE(cqe)

	if res < 0 {
		return Completion{}, &CompletionError{BufIdx: bufIdx, Msg: syscall.Errno(-res).Error()}
	}
	return Completion{BufIdx: bufIdx, BytesTransferred: int(res)}, nil
}

func (a *RingAdapter) Close() error {
	if a.ring != nil {
		a.ring.QueueExit()
	}
	if a.file != nil {
		return a.file.Close()
	}
	return nil
}

// syscallFile is the thin owner of the O_DIRECT file descriptor used for
// the registered-file ring path.
type syscallFile struct {
	fd   int
	path string
}

func (f *syscallFile) Close() error {
	if f.fd < 0 {
		return nil
	}
	err := unix.Close(f.fd)
	f.fd = -1
	return err
}

// Fd exposes the raw descriptor of the opened file, or -1 before Open.
func (a *RingAdapter) Fd() int {
	if a.file == nil {
		return -1
	}
	return a.file.fd
}
