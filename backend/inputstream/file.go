// Package inputstream provides concrete container.InputStream implementations: a
// local-file stream and an HTTP range-request stream, so the container package
// itself stays free of any transport dependency.
package inputstream

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
)

// File is a container.InputStream backed by a local *os.File. AbortRead is a no-op
// since local file reads never block indefinitely.
type File struct {
	f       *os.File
	aborted atomic.Bool
}

// Open opens path for reading and wraps it as a File input stream.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("inputstream: open %s: %w", path, err)
	}
	return &File{f: f}, nil
}

func (s *File) Read(buf []byte) (int, error) {
	return s.f.Read(buf)
}

func (s *File) Seek(offset int64) error {
	_, err := s.f.Seek(offset, 0)
	if err != nil {
		return fmt.Errorf("inputstream: seek: %w", err)
	}
	return nil
}

func (s *File) ReadAll(buf []byte) error {
	_, err := io.ReadFull(s.f, buf)
	if err != nil {
		return fmt.Errorf("inputstream: read: %w", err)
	}
	return nil
}

func (s *File) AbortRead() { s.aborted.Store(true) }

func (s *File) Close() error { return s.f.Close() }
