//go:build windows

package engine

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/fiox/seqio/internal/bufpool"
	"github.com/fiox/seqio/internal/logging"
)

// overlappedSlot is the Windows completion context stored in each
// buffer's CompletionCtx. windows.Overlapped must be first so the
// pointer GetQueuedCompletionStatus hands back can be cast directly to
// *overlappedSlot, then back to the owning buffer index — the same
// layout trick used by DataDog's olreader and by the original fiox
// Rust implementation's ReaderBuffer.
type overlappedSlot struct {
	ol     windows.Overlapped
	bufIdx int32
}

// IOCPAdapter drives a Windows I/O completion port associated with the
// opened file handle. Each buffer carries an adjacent overlappedSlot
// where the 64-bit file offset is encoded as two 32-bit halves before
// each submission.
type IOCPAdapter struct {
	handle windows.Handle
	iocp   windows.Handle
	pool   *bufpool.Pool
	logger *logging.Logger
}

// NewIOCPAdapter creates an uninitialized completion-port adapter; Open
// creates the file handle and associates it with a fresh port.
func NewIOCPAdapter(logger *logging.Logger) (*IOCPAdapter, error) {
	return &IOCPAdapter{logger: logger}, nil
}

func (a *IOCPAdapter) Open(path string, mode Mode) error {
	p, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return fmt.Errorf("engine: encode path %s: %w", path, err)
	}

	var access, disposition uint32
	switch mode {
	case ModeReadOnly:
		access = windows.GENERIC_READ
		disposition = windows.OPEN_EXISTING
	case ModeWriteCreate:
		access = windows.GENERIC_WRITE
		disposition = windows.OPEN_ALWAYS
	default:
		return fmt.Errorf("engine: unknown mode %d", mode)
	}

	handle, err := windows.CreateFile(
		p,
		access,
		windows.FILE_SHARE_READ|windows.FILE_SHARE_WRITE,
		nil,
		disposition,
		windows.FILE_ATTRIBUTE_NORMAL|windows.FILE_FLAG_OVERLAPPED|
			windows.FILE_FLAG_NO_BUFFERING|windows.FILE_FLAG_SEQUENTIAL_SCAN,
		0,
	)
	if err != nil {
		return fmt.Errorf("engine: CreateFile %s: %w", path, err)
	}

	iocp, err := windows.CreateIoCompletionPort(handle, 0, 0, 0)
	if err != nil {
		windows.CloseHandle(handle)
		return fmt.Errorf("engine: CreateIoCompletionPort: %w", err)
	}

	a.handle = handle
	a.iocp = iocp
	if a.logger != nil {
		a.logger.Debugf("opened %s with FILE_FLAG_NO_BUFFERING|OVERLAPPED, associated with IOCP", path)
	}
	return nil
}

// Register is a no-op: the completion port has no separate buffer/file
// registration step the way io_uring does.
func (a *IOCPAdapter) Register(pool *bufpool.Pool) error {
	a.pool = pool
	return nil
}

func (a *IOCPAdapter) SubmitRead(bufIdx int, fileOffset int64, length int) error {
	return a.submit(bufIdx, fileOffset, length, true)
}

func (a *IOCPAdapter) SubmitWrite(bufIdx int, fileOffset int64, length int) error {
	return a.submit(bufIdx, fileOffset, length, false)
}

func (a *IOCPAdapter) submit(bufIdx int, fileOffset int64, length int, isRead bool) error {
	buf := a.pool.Buffer(bufIdx)
	slot := (*overlappedSlot)(unsafe.Pointer(buf.Ctx().Raw()))
	*slot = overlappedSlot{bufIdx: int32(bufIdx)}
	slot.ol.Offset = uint32(fileOffset & 0xFFFFFFFF)
	slot.ol.OffsetHigh = uint32(fileOffset >> 32)

	data := buf.Bytes()[:length]
	var err error
	if isRead {
		err = windows.ReadFile(a.handle, data, nil, &slot.ol)
	} else {
		err = windows.WriteFile(a.handle, data, nil, &slot.ol)
	}
	if err != nil && err != windows.ERROR_IO_PENDING {
		return &SubmitError{Op: opName(isRead), Err: err}
	}
	return nil
}

func opName(isRead bool) string {
	if isRead {
		return "ReadFile"
	}
	return "WriteFile"
}

func (a *IOCPAdapter) WaitOne() (Completion, error) {
	var bytesTransferred uint32
	var key uintptr
	var ol *windows.Overlapped

	err := windows.GetQueuedCompletionStatus(a.iocp, &bytesTransferred, &key, &ol, windows.INFINITE)
	if ol == nil {
		return Completion{}, fmt.Errorf("engine: GetQueuedCompletionStatus: %w", err)
	}

	slot := (*overlappedSlot)(unsafe.Pointer(ol))
	bufIdx := int(slot.bufIdx)

	if err != nil {
		return Completion{}, &CompletionError{BufIdx: bufIdx, Msg: err.Error()}
	}
	return Completion{BufIdx: bufIdx, BytesTransferred: int(bytesTransferred)}, nil
}

func (a *IOCPAdapter) Close() error {
	if a.iocp != 0 {
		windows.CloseHandle(a.iocp)
	}
	if a.handle != 0 {
		return windows.CloseHandle(a.handle)
	}
	return nil
}

// Handle exposes the raw file handle opened by Open.
func (a *IOCPAdapter) Handle() windows.Handle { return a.handle }
