package bufpool

import (
	"testing"
	"unsafe"
)

func TestNewBuffer_Alignment(t *testing.T) {
	tests := []struct {
		name     string
		cap      int
		pageSize int
		wantErr  bool
	}{
		{"one page", 4096, 4096, false},
		{"multi page", 1 << 20, 4096, false},
		{"unaligned cap", 4097, 4096, true},
		{"zero page size", 4096, 0, true},
		{"zero cap", 0, 4096, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf, err := newBuffer(0, tt.cap, tt.pageSize)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("newBuffer(%d, %d) = nil error, want error", tt.cap, tt.pageSize)
				}
				return
			}
			if err != nil {
				t.Fatalf("newBuffer(%d, %d) unexpected error: %v", tt.cap, tt.pageSize, err)
			}
			if buf.Cap() != tt.cap {
				t.Errorf("Cap() = %d, want %d", buf.Cap(), tt.cap)
			}
			addr := uintptr(unsafe.Pointer(&buf.Bytes()[0]))
			if addr%uintptr(tt.pageSize) != 0 {
				t.Errorf("buffer address %#x not aligned to page size %d", addr, tt.pageSize)
			}
		})
	}
}

func TestBuffer_LenAndValid(t *testing.T) {
	buf, err := newBuffer(3, 4096, 4096)
	if err != nil {
		t.Fatalf("newBuffer failed: %v", err)
	}
	if buf.Index() != 3 {
		t.Errorf("Index() = %d, want 3", buf.Index())
	}
	copy(buf.Bytes(), []byte("hello"))
	buf.SetLen(5)
	if buf.Len() != 5 {
		t.Errorf("Len() = %d, want 5", buf.Len())
	}
	if string(buf.Valid()) != "hello" {
		t.Errorf("Valid() = %q, want %q", buf.Valid(), "hello")
	}
}
