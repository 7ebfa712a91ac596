// Package container implements the XRVideo chunked file format: chunk headers, the
// metadata and index header chunks, and sequential/random-access frame reading.
package container

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/scannedreality/xrvideo/internal/xrerror"
)

// Chunk type identifiers. Header chunks (Metadata, Index) may only appear at the start
// of the file, before any Frame chunk; Frame chunks may only appear after them.
const (
	ChunkFrame    uint8 = 0
	ChunkMetadata uint8 = 1
	ChunkIndex    uint8 = 2
)

// ChunkHeaderSize is the on-disk size of a chunk header: u32 size + u8 type.
const ChunkHeaderSize = 5

// IsHeaderChunk reports whether chunkType is known to be a header chunk. As in the
// original format, an unknown chunkType is neither a header chunk nor a frame chunk.
func IsHeaderChunk(chunkType uint8) bool {
	return chunkType == ChunkMetadata || chunkType == ChunkIndex
}

// IsFrameChunk reports whether chunkType is known to be a frame chunk.
func IsFrameChunk(chunkType uint8) bool {
	return chunkType == ChunkFrame
}

// ChunkHeader is the 5-byte header preceding every chunk.
type ChunkHeader struct {
	// Size is the chunk's payload size in bytes, excluding this header.
	Size uint32
	Type uint8
}

// ParseChunkHeader decodes a ChunkHeaderSize-byte buffer into a ChunkHeader.
func ParseChunkHeader(buf []byte) (ChunkHeader, error) {
	if len(buf) < ChunkHeaderSize {
		return ChunkHeader{}, xrerror.New("container.ParseChunkHeader", xrerror.Truncated, io.ErrUnexpectedEOF)
	}
	return ChunkHeader{
		Size: binary.LittleEndian.Uint32(buf[0:4]),
		Type: buf[4],
	}, nil
}

// Metadata holds the content of an optional metadata header chunk: the suggested
// initial orbit-camera view for the video.
type Metadata struct {
	LookAtX, LookAtY, LookAtZ float32
	Radius                    float32
	Yaw, Pitch                float32
}

const metadataChunkVersion = 0
const metadataBodySize = 1 + 6*4 // version + 6 floats

func decodeMetadata(buf []byte) (Metadata, error) {
	if len(buf) < metadataBodySize {
		return Metadata{}, xrerror.New("container.decodeMetadata", xrerror.Truncated, io.ErrUnexpectedEOF)
	}
	version := buf[0]
	if version != metadataChunkVersion {
		return Metadata{}, xrerror.New("container.decodeMetadata", xrerror.FormatVersion,
			fmt.Errorf("unknown metadata chunk version %d", version))
	}
	readF32 := func(off int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4]))
	}
	return Metadata{
		LookAtX: readF32(1),
		LookAtY: readF32(5),
		LookAtZ: readF32(9),
		Radius:  readF32(13),
		Yaw:     readF32(17),
		Pitch:   readF32(21),
	}, nil
}
