package seqio

import (
	"bytes"
	"os"
	"testing"

	"github.com/fiox/seqio/internal/engine"
)

func patternBytes(n int) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(i % 251)
	}
	return b
}

func TestReader_AlignedWholeFile(t *testing.T) {
	const bufSize = 4096
	data := patternBytes(bufSize * 3)

	f, err := os.CreateTemp(t.TempDir(), "seqio-reader-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("Write temp file: %v", err)
	}
	f.Close()

	adapter := engine.NewMemAdapter(append([]byte(nil), data...))
	opts := Options{NumBuffers: 2, BufferSize: bufSize}
	opts.withDefaults()

	r, err := newReaderFromAdapter(f.Name(), opts, adapter, int64(len(data)), bufSize)
	if err != nil {
		t.Fatalf("newReaderFromAdapter: %v", err)
	}
	defer r.Close()

	got := make([]byte, 0, len(data))
	chunk := make([]byte, 777) // deliberately not buffer-aligned
	for {
		n, err := r.Read(chunk)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if n == 0 {
			break
		}
		got = append(got, chunk[:n]...)
	}

	if !bytes.Equal(got, data) {
		t.Errorf("read %d bytes, content mismatch (got len=%d, want len=%d)", len(got), len(got), len(data))
	}
}

func TestReader_UnalignedStart(t *testing.T) {
	const bufSize = 4096
	data := patternBytes(bufSize * 2)

	f, err := os.CreateTemp(t.TempDir(), "seqio-reader-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("Write temp file: %v", err)
	}
	f.Close()

	adapter := engine.NewMemAdapter(append([]byte(nil), data...))
	opts := Options{NumBuffers: 2, BufferSize: bufSize, StartPos: 100}
	opts.withDefaults()

	r, err := newReaderFromAdapter(f.Name(), opts, adapter, int64(len(data)), bufSize)
	if err != nil {
		t.Fatalf("newReaderFromAdapter: %v", err)
	}
	defer r.Close()

	got := make([]byte, 0, len(data)-100)
	buf := make([]byte, 500)
	for {
		n, err := r.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}

	want := data[100:]
	if !bytes.Equal(got, want) {
		t.Errorf("content mismatch starting at offset 100: got len=%d, want len=%d", len(got), len(want))
	}
}

func TestReader_UnalignedTail(t *testing.T) {
	const bufSize = 4096
	data := patternBytes(bufSize + 777) // one full buffer + a short tail

	f, err := os.CreateTemp(t.TempDir(), "seqio-reader-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("Write temp file: %v", err)
	}
	f.Close()

	adapter := engine.NewMemAdapter(append([]byte(nil), data...))
	opts := Options{NumBuffers: 2, BufferSize: bufSize}
	opts.withDefaults()

	r, err := newReaderFromAdapter(f.Name(), opts, adapter, int64(len(data)), bufSize)
	if err != nil {
		t.Fatalf("newReaderFromAdapter: %v", err)
	}
	defer r.Close()

	got := make([]byte, 0, len(data))
	buf := make([]byte, 1000)
	for {
		n, err := r.Read(buf)
		if err != nil {
			t.Fatalf("Read: %v", err)
		}
		if n == 0 {
			break
		}
		got = append(got, buf[:n]...)
	}

	if !bytes.Equal(got, data) {
		t.Errorf("content mismatch across unaligned tail: got len=%d, want len=%d", len(got), len(data))
	}
}

func TestReader_EmptyReadAfterExhausted(t *testing.T) {
	const bufSize = 4096
	data := patternBytes(bufSize)

	f, err := os.CreateTemp(t.TempDir(), "seqio-reader-*")
	if err != nil {
		t.Fatalf("CreateTemp: %v", err)
	}
	if _, err := f.Write(data); err != nil {
		t.Fatalf("Write temp file: %v", err)
	}
	f.Close()

	adapter := engine.NewMemAdapter(append([]byte(nil), data...))
	opts := Options{NumBuffers: 2, BufferSize: bufSize}
	opts.withDefaults()

	r, err := newReaderFromAdapter(f.Name(), opts, adapter, int64(len(data)), bufSize)
	if err != nil {
		t.Fatalf("newReaderFromAdapter: %v", err)
	}
	defer r.Close()

	buf := make([]byte, bufSize)
	if n, err := r.Read(buf); err != nil || n != bufSize {
		t.Fatalf("first Read: n=%d err=%v", n, err)
	}
	n, err := r.Read(buf)
	if err != nil {
		t.Fatalf("Read at EOF returned error: %v", err)
	}
	if n != 0 {
		t.Errorf("Read at EOF: n=%d, want 0", n)
	}
}

func TestReader_CloseIdempotent(t *testing.T) {
	const bufSize = 4096
	data := patternBytes(bufSize)
	adapter := engine.NewMemAdapter(data)
	opts := Options{NumBuffers: 1, BufferSize: bufSize}
	opts.withDefaults()

	r, err := newReaderFromAdapter("unused", opts, adapter, int64(len(data)), bufSize)
	if err != nil {
		t.Fatalf("newReaderFromAdapter: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("second Close should be a no-op, got: %v", err)
	}
}
