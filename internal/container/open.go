package container

import (
	"fmt"

	"github.com/scannedreality/xrvideo/internal/xrerror"
)

// File bundles an open Reader with its parsed metadata and frame index, the result of
// fully opening an XRVideo container.
type File struct {
	Reader   *Reader
	Metadata Metadata
	HasMeta  bool
	Index    *FrameIndex
}

// Open reads an XRVideo file's metadata and index (building the index by a full scan
// if no index chunk is present, or if the index chunk fails to parse), and validates
// that the first frame is a keyframe. stream is consumed; Open takes ownership of it
// on success, and closes it on failure.
func Open(stream InputStream, isStreaming bool) (*File, error) {
	const op = "container.Open"

	r := NewReader(stream, isStreaming)

	meta, hasMeta, err := r.ReadMetadata()
	if err != nil {
		_ = r.Close()
		return nil, err
	}

	index, err := loadIndex(r)
	if err != nil {
		_ = r.Close()
		return nil, err
	}

	if index.FrameCount() == 0 {
		_ = r.Close()
		return nil, xrerror.New(op, xrerror.MissingKeyframe, fmt.Errorf("file contains no frames"))
	}
	if !index.At(0).IsKeyframe {
		_ = r.Close()
		return nil, xrerror.New(op, xrerror.MissingKeyframe, fmt.Errorf("first frame is not a keyframe"))
	}

	return &File{Reader: r, Metadata: meta, HasMeta: hasMeta, Index: index}, nil
}

func loadIndex(r *Reader) (*FrameIndex, error) {
	if err := r.FindNextChunk(ChunkIndex); err == nil {
		indexChunkStart := r.Offset()
		if index, decodeErr := CreateIndexFromChunk(r); decodeErr == nil {
			if index.sortedByTimestamp() {
				return index, nil
			}
			// An index that decodes cleanly but isn't monotonic would silently break the
			// binary search in FindFrameIndexForTimestamp; fall through to a full scan.
		}
		// Fall through to a full scan: a corrupt or unsorted index chunk should not sink
		// the file. CreateIndexFromChunk may have stopped inside the index chunk, so
		// rewind to its start; the search below skips it by size.
		if err := r.Seek(indexChunkStart); err != nil {
			return nil, err
		}
	}

	if err := r.FindNextChunk(ChunkFrame); err != nil {
		return nil, xrerror.New("container.loadIndex", xrerror.UnexpectedChunk, fmt.Errorf("no frame chunks found: %w", err))
	}
	return BuildIndexByScanning(r)
}

// Close closes the underlying reader.
func (f *File) Close() error { return f.Reader.Close() }
