// Package constants holds default configuration values shared across
// the stream engine, its platform adapters, and the public package.
package constants

// Default configuration constants for Reader/Writer construction.
const (
	// DefaultBufferCapacity is the default per-buffer capacity in bytes (1 MiB).
	// Must remain a multiple of the platform page size.
	DefaultBufferCapacity = 1 << 20

	// DefaultNumBuffers is the default pool depth, which is also the
	// submission depth: the engine never has more requests in flight
	// than it has buffers for.
	DefaultNumBuffers = 8

	// DefaultPageSize is used when the platform page size cannot be queried.
	DefaultPageSize = 4096
)

// Linux ring adapter defaults.
const (
	// DefaultQueueDepth is the default io_uring submission/completion queue
	// depth. The ring adapter is created with Options.NumBuffers as its
	// depth, which defaults to the same value. Must be at least NumBuffers.
	DefaultQueueDepth = DefaultNumBuffers
)
