package bufpool

import "unsafe"

// addressOf returns the starting address of b's backing array, used only
// to compute alignment offsets. Grounded on the same technique as
// oddmario-directio's align() helper.
func addressOf(b []byte) uintptr {
	return uintptr(unsafe.Pointer(&b[0]))
}
