package container

// InputStream is the seekable, abortable byte source the reading stage consumes.
// Implementations live in backend/inputstream; this package only depends on the
// interface so that container stays free of concrete transport dependencies.
type InputStream interface {
	// Read reads up to len(buf) bytes, returning the number of bytes actually read.
	// A short read that is not EOF indicates an I/O error or an AbortRead call.
	Read(buf []byte) (n int, err error)

	// Seek moves the stream's cursor to the given absolute file offset.
	Seek(offset int64) error

	// ReadAll reads exactly len(buf) bytes into buf, or returns an error.
	ReadAll(buf []byte) error

	// AbortRead asks a Read call blocked in another goroutine to return early with a
	// short read. It is a best-effort wakeup, not a guarantee; file-backed streams may
	// be no-ops since local reads never block indefinitely.
	AbortRead()

	// Close releases the underlying resource.
	Close() error
}

// StreamingInputStream is an optional extension for network-backed streams that can
// prefetch byte ranges ahead of the sequential reader.
type StreamingInputStream interface {
	InputStream

	// StreamRange hints that bytes [from, to) will be needed soon, optionally
	// extending the request up to maxSize bytes past `to` to reduce request
	// round-trips if allowExtend is set.
	StreamRange(from, to int64, allowExtend bool, maxSize int64) error

	// DropPendingRequests cancels any in-flight prefetch requests, e.g. after a seek.
	DropPendingRequests()
}
