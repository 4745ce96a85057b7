package seqio

import (
	"errors"
	"fmt"
	"syscall"
)

// Error represents a structured seqio error with operation context and
// errno mapping.
type Error struct {
	Op     string    // Operation that failed (e.g., "open", "submit_read")
	BufIdx int       // Buffer index involved, -1 if not applicable
	Code   ErrorCode // High-level error category
	Errno  syscall.Errno
	Msg    string
	Inner  error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.BufIdx >= 0 {
		parts = append(parts, fmt.Sprintf("buf=%d", e.BufIdx))
	}
	if e.Errno != 0 {
		parts = append(parts, fmt.Sprintf("errno=%d", e.Errno))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("seqio: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("seqio: %s", msg)
}

func (e *Error) Unwrap() error { return e.Inner }

func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}
	if te, ok := target.(*Error); ok {
		return e.Code == te.Code
	}
	return false
}

// ErrorCode represents high-level error categories returned by Reader and
// Writer. It intentionally has no end-of-stream member: a short or zero
// Read return is the durable end-of-stream signal, not an *Error.
type ErrorCode string

const (
	// CodeConfig flags an invalid NumBuffers/BufferSize/alignment combination.
	CodeConfig ErrorCode = "invalid configuration"
	// CodeOpen flags a failure opening or registering the underlying file.
	CodeOpen ErrorCode = "open failed"
	// CodeSubmit flags a failure enqueuing a read or write.
	CodeSubmit ErrorCode = "submit failed"
	// CodeCompletion flags a fatal completion-side invariant violation:
	// a non-success status or an unexpected short transfer.
	CodeCompletion ErrorCode = "completion invariant violation"
	// CodeTailFlush flags a failure handling the unaligned tail (the
	// Reader's final read or the Writer's final partial buffer) through the
	// conventional (non-direct) file handle.
	CodeTailFlush ErrorCode = "tail flush failed"
)

// NewError creates a structured error with no buffer context.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, BufIdx: -1, Code: code, Msg: msg}
}

// NewErrorWithErrno creates a structured error carrying a kernel errno.
func NewErrorWithErrno(op string, code ErrorCode, errno syscall.Errno) *Error {
	return &Error{Op: op, BufIdx: -1, Code: code, Errno: errno, Msg: errno.Error()}
}

// NewBufferError creates a structured error tied to a specific buffer index.
func NewBufferError(op string, bufIdx int, code ErrorCode, msg string) *Error {
	return &Error{Op: op, BufIdx: bufIdx, Code: code, Msg: msg}
}

// WrapError wraps an existing error with seqio operation context.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}

	if se, ok := inner.(*Error); ok {
		return &Error{Op: op, BufIdx: se.BufIdx, Code: se.Code, Errno: se.Errno, Msg: se.Msg, Inner: se.Inner}
	}

	code := CodeSubmit
	if errno, ok := inner.(syscall.Errno); ok {
		code = mapErrnoToCode(errno)
		return &Error{Op: op, BufIdx: -1, Code: code, Errno: errno, Msg: errno.Error(), Inner: inner}
	}

	return &Error{Op: op, BufIdx: -1, Code: code, Msg: inner.Error(), Inner: inner}
}

// asCompletionInvariant converts a recovered panic value into a *Error with
// CodeCompletion, for a deferred recover() that hands a fatal completion-side
// invariant violation back to the caller as an ordinary error. Reader and
// Writer do not call it: their wait loops return such violations (a failed
// completion or a short transfer) as *Error values directly.
func asCompletionInvariant(op string, bufIdx int, recovered any) *Error {
	msg := fmt.Sprintf("%v", recovered)
	if err, ok := recovered.(error); ok {
		msg = err.Error()
	}
	return &Error{Op: op, BufIdx: bufIdx, Code: CodeCompletion, Msg: msg}
}

func mapErrnoToCode(errno syscall.Errno) ErrorCode {
	switch errno {
	case syscall.EINVAL, syscall.E2BIG:
		return CodeConfig
	case syscall.ENOENT, syscall.EACCES, syscall.EPERM:
		return CodeOpen
	case syscall.ENOSYS, syscall.EOPNOTSUPP:
		return CodeOpen
	default:
		return CodeSubmit
	}
}

// IsCode reports whether err is a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsErrno reports whether err is a *Error carrying the given errno.
func IsErrno(err error, errno syscall.Errno) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Errno == errno
	}
	return false
}
