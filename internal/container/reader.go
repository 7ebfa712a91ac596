package container

import (
	"fmt"
	"io"

	"github.com/scannedreality/xrvideo/internal/xrerror"
)

// Reader sequentially parses an XRVideo file's chunk stream out of an InputStream.
// It is not safe for concurrent use except for AbortRead, which may be called from
// another goroutine to interrupt a blocked Read.
type Reader struct {
	stream      InputStream
	isStreaming bool

	peek   []byte // bytes already read from stream but not yet consumed by the caller
	offset int64  // current logical file offset (past any bytes already delivered)
}

// NewReader takes ownership of stream for reading an XRVideo file. isStreaming must
// be true iff stream also implements StreamingInputStream, so that streaming-specific
// prefetch hints can be issued without a type assertion on every call.
func NewReader(stream InputStream, isStreaming bool) *Reader {
	return &Reader{stream: stream, isStreaming: isStreaming}
}

// Close closes the underlying input stream.
func (r *Reader) Close() error {
	if r.stream == nil {
		return nil
	}
	err := r.stream.Close()
	r.stream = nil
	return err
}

// IsOpen reports whether the reader has an open input stream.
func (r *Reader) IsOpen() bool { return r.stream != nil }

// Offset returns the reader's current logical file offset.
func (r *Reader) Offset() int64 { return r.offset }

// UsesStreamingInputStream reports whether the wrapped stream supports StreamRange hints.
func (r *Reader) UsesStreamingInputStream() bool { return r.isStreaming }

// StreamingInputStream returns the wrapped stream as a StreamingInputStream, or nil if
// UsesStreamingInputStream is false.
func (r *Reader) StreamingInputStream() StreamingInputStream {
	if !r.isStreaming {
		return nil
	}
	s, _ := r.stream.(StreamingInputStream)
	return s
}

// AbortRead asks a Read call in progress on another goroutine to return early.
func (r *Reader) AbortRead() {
	if r.stream != nil {
		r.stream.AbortRead()
	}
}

// Seek moves the reader to the given absolute file offset, discarding any peeked bytes.
func (r *Reader) Seek(offset int64) error {
	if err := r.stream.Seek(offset); err != nil {
		return xrerror.New("container.Seek", xrerror.Io, err)
	}
	r.peek = r.peek[:0]
	r.offset = offset
	return nil
}

// Read reads exactly len(dest) bytes, first draining any previously peeked bytes.
// Returns the number of bytes actually read, which is short of len(dest) on error,
// EOF, or an aborted read.
func (r *Reader) Read(dest []byte) (int, error) {
	n := 0
	if len(r.peek) > 0 {
		n = copy(dest, r.peek)
		r.peek = r.peek[n:]
		r.offset += int64(n)
		dest = dest[n:]
	}
	for len(dest) > 0 {
		m, err := r.stream.Read(dest)
		n += m
		r.offset += int64(m)
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, io.ErrUnexpectedEOF
		}
		dest = dest[m:]
	}
	return n, nil
}

// peekAhead ensures at least `bytes` are buffered in r.peek without advancing r.offset.
func (r *Reader) peekAhead(bytes int) error {
	if len(r.peek) >= bytes {
		return nil
	}
	need := bytes - len(r.peek)
	grown := make([]byte, len(r.peek), bytes)
	copy(grown, r.peek)
	tmp := make([]byte, need)
	read := 0
	for read < need {
		m, err := r.stream.Read(tmp[read:])
		read += m
		if err != nil {
			grown = append(grown, tmp[:read]...)
			r.peek = grown
			return err
		}
		if m == 0 {
			grown = append(grown, tmp[:read]...)
			r.peek = grown
			return io.ErrUnexpectedEOF
		}
	}
	grown = append(grown, tmp...)
	r.peek = grown
	return nil
}

// ParseChunkHeader peeks at the chunk header starting at the current cursor position
// without consuming it, returning its fields. The caller is expected to still be
// positioned at the chunk header start afterward (use ReadNextFrame or Seek to advance).
func (r *Reader) ParseChunkHeader() (ChunkHeader, error) {
	if err := r.peekAhead(ChunkHeaderSize); err != nil {
		return ChunkHeader{}, xrerror.New("container.ParseChunkHeader", xrerror.Truncated, err)
	}
	return ParseChunkHeader(r.peek[:ChunkHeaderSize])
}

// FindNextChunk searches for the next chunk of the given type. If chunkType is a known
// header chunk type, the search always restarts from the file's beginning; otherwise it
// continues from the current cursor position. On success, the cursor is left at the
// start of that chunk's header.
func (r *Reader) FindNextChunk(chunkType uint8) error {
	if IsHeaderChunk(chunkType) {
		if err := r.Seek(0); err != nil {
			return err
		}
	}

	for {
		hdr, err := r.ParseChunkHeader()
		if err != nil {
			return xrerror.New("container.FindNextChunk", xrerror.Io, fmt.Errorf("chunk type %d not found: %w", chunkType, err))
		}
		if hdr.Type == chunkType {
			return nil
		}
		if IsFrameChunk(hdr.Type) && IsHeaderChunk(chunkType) {
			// Header chunks never appear after the first frame chunk.
			return xrerror.New("container.FindNextChunk", xrerror.UnexpectedChunk,
				fmt.Errorf("reached frame chunks while searching for header chunk type %d", chunkType))
		}
		skip := int64(ChunkHeaderSize) + int64(hdr.Size)
		if err := r.Seek(r.offset + skip); err != nil {
			return err
		}
	}
}

// ReadMetadata reads the metadata header chunk, if present. ok is false (with a nil
// error) if the file has no metadata chunk.
func (r *Reader) ReadMetadata() (meta Metadata, ok bool, err error) {
	if err := r.FindNextChunk(ChunkMetadata); err != nil {
		return Metadata{}, false, nil
	}
	hdr, err := r.ParseChunkHeader()
	if err != nil {
		return Metadata{}, false, err
	}
	if err := r.Seek(r.offset + ChunkHeaderSize); err != nil {
		return Metadata{}, false, err
	}
	body := make([]byte, hdr.Size)
	if _, err := r.Read(body); err != nil {
		return Metadata{}, false, xrerror.New("container.ReadMetadata", xrerror.Truncated, err)
	}
	meta, err = decodeMetadata(body)
	if err != nil {
		return Metadata{}, false, err
	}
	return meta, true, nil
}

// ReadNextFrame reads the next frame chunk's payload (the bytes following the chunk
// header). It assumes the cursor is already positioned at a frame chunk header, e.g.
// via a prior FindNextChunk(ChunkFrame) call or sequential reading. fileOffset reports
// the frame payload's starting file offset.
func (r *Reader) ReadNextFrame() (data []byte, fileOffset int64, err error) {
	hdr, err := r.ParseChunkHeader()
	if err != nil {
		return nil, 0, err
	}
	if !IsFrameChunk(hdr.Type) {
		return nil, 0, xrerror.New("container.ReadNextFrame", xrerror.UnexpectedChunk,
			fmt.Errorf("expected frame chunk, found type %d", hdr.Type))
	}
	if err := r.Seek(r.offset + ChunkHeaderSize); err != nil {
		return nil, 0, err
	}
	fileOffset = r.offset
	data = make([]byte, hdr.Size)
	if _, err := r.Read(data); err != nil {
		return nil, 0, xrerror.New("container.ReadNextFrame", xrerror.Truncated, err)
	}
	return data, fileOffset, nil
}
