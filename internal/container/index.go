package container

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/klauspost/compress/zstd"

	"github.com/scannedreality/xrvideo/internal/xrerror"
)

// indexArrayItemSize is the on-disk size of one XRVideoIndexArrayItemScheme entry:
// u32 frameSizeInBytesAndIsKeyframeFlag + i64 frameStartTimestamp.
const indexArrayItemSize = 4 + 8

const indexArrayKeyframeBit = uint32(1) << 31

// FrameIndexItem describes one frame's position in the file.
type FrameIndexItem struct {
	Timestamp  int64 // nanoseconds
	Offset     int64 // file offset of the frame's chunk header
	IsKeyframe bool
}

// FrameIndex maps timestamps to frames and resolves a frame's keyframe/predecessor
// dependencies. It holds one extra, non-keyframe "dummy" entry past the last real
// frame recording the video's end timestamp and end offset.
type FrameIndex struct {
	frames []FrameIndexItem
}

// FrameCount returns the number of real (non-dummy) frames in the index.
func (fi *FrameIndex) FrameCount() int {
	if len(fi.frames) == 0 {
		return 0
	}
	return len(fi.frames) - 1
}

// At returns the index item for the given frame index, which may also be FrameCount()
// to retrieve the dummy end-of-video entry.
func (fi *FrameIndex) At(frameIndex int) FrameIndexItem { return fi.frames[frameIndex] }

// VideoStartTimestamp returns the first frame's start timestamp.
func (fi *FrameIndex) VideoStartTimestamp() int64 { return fi.frames[0].Timestamp }

// VideoEndTimestamp returns the last frame's end timestamp.
func (fi *FrameIndex) VideoEndTimestamp() int64 { return fi.frames[len(fi.frames)-1].Timestamp }

// FrameTimeRange returns the [start, end) timestamp span of frameIndex, satisfying
// the cache package's frameTimestamps interface.
func (fi *FrameIndex) FrameTimeRange(frameIndex int) (start, end int64) {
	return fi.frames[frameIndex].Timestamp, fi.frames[frameIndex+1].Timestamp
}

// PushFrame appends one frame entry.
func (fi *FrameIndex) PushFrame(timestamp, offset int64, isKeyframe bool) {
	fi.frames = append(fi.frames, FrameIndexItem{Timestamp: timestamp, Offset: offset, IsKeyframe: isKeyframe})
}

// PushVideoEnd appends the dummy end-of-video entry. Must be called exactly once,
// after all real frames have been pushed.
func (fi *FrameIndex) PushVideoEnd(endTimestamp, endOffset int64) {
	fi.frames = append(fi.frames, FrameIndexItem{Timestamp: endTimestamp, Offset: endOffset, IsKeyframe: false})
}

// FindFrameIndexForTimestamp returns the index of the frame that should be displayed
// at the given timestamp, or -1 if timestamp falls outside the video's range.
func (fi *FrameIndex) FindFrameIndexForTimestamp(timestamp int64) int {
	if timestamp < fi.VideoStartTimestamp() || timestamp > fi.VideoEndTimestamp() {
		return -1
	}

	lowest, highest := 0, len(fi.frames)-2 // exclude the dummy entry
	for lowest < highest {
		mid := (lowest + highest + 1) / 2
		if fi.frames[mid].Timestamp > timestamp {
			highest = mid - 1
		} else {
			lowest = mid
		}
	}
	return lowest
}

// FindDependencyFrames returns the base keyframe index and predecessor index required
// to display frameIndex, or -1 for both when frameIndex is itself a keyframe. The base
// keyframe and predecessor may be the same frame (for the frame immediately after a
// keyframe, both are that keyframe).
func (fi *FrameIndex) FindDependencyFrames(frameIndex int) (baseKeyframe, predecessor int) {
	baseKeyframe = frameIndex
	for baseKeyframe >= 0 && !fi.At(baseKeyframe).IsKeyframe {
		baseKeyframe--
	}
	if baseKeyframe < 0 {
		// The first frame of a well-formed file is always a keyframe.
		return -1, -1
	}
	if frameIndex == baseKeyframe {
		return -1, -1
	}
	return baseKeyframe, frameIndex - 1
}

// FindKeyframeFor returns the base keyframe index whose GOP frameIndex belongs to,
// or -1 if frameIndex is itself a keyframe: the same keyframe FindDependencyFrames
// reports, without the predecessor. Used by the render lock, which must hold a direct
// read-lock on the keyframe regardless of GOP depth.
func (fi *FrameIndex) FindKeyframeFor(frameIndex int) int {
	i := frameIndex
	for i >= 0 && !fi.At(i).IsKeyframe {
		i--
	}
	if i == frameIndex {
		return -1
	}
	return i
}

// CreateIndexFromChunk reads and decodes the index header chunk that r's cursor must
// currently be positioned at (e.g. via r.FindNextChunk(ChunkIndex)).
func CreateIndexFromChunk(r *Reader) (*FrameIndex, error) {
	const op = "container.CreateIndexFromChunk"

	if err := r.Seek(r.Offset() + ChunkHeaderSize); err != nil {
		return nil, err
	}

	const schemeSize = 1 + 4 // version + u32 compressed size
	scheme := make([]byte, schemeSize)
	if _, err := r.Read(scheme); err != nil {
		return nil, xrerror.New(op, xrerror.Truncated, err)
	}
	version := scheme[0]
	if version != 0 {
		return nil, xrerror.New(op, xrerror.FormatVersion, fmt.Errorf("unknown index chunk version %d", version))
	}
	compressedSize := binary.LittleEndian.Uint32(scheme[1:5])

	compressed := make([]byte, compressedSize)
	if _, err := r.Read(compressed); err != nil {
		return nil, xrerror.New(op, xrerror.Truncated, err)
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, xrerror.NewDecode(op, xrerror.CodecZstd, err)
	}
	defer dec.Close()
	indexArray, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return nil, xrerror.NewDecode(op, xrerror.CodecZstd, err)
	}
	if len(indexArray) < 8 {
		return nil, xrerror.New(op, xrerror.Truncated, fmt.Errorf("index array too small (%d bytes)", len(indexArray)))
	}

	if err := r.FindNextChunk(ChunkFrame); err != nil {
		return nil, xrerror.New(op, xrerror.UnexpectedChunk, fmt.Errorf("no frame chunk follows the index: %w", err))
	}

	frameCount := (len(indexArray) - 8) / indexArrayItemSize
	fi := &FrameIndex{frames: make([]FrameIndexItem, 0, frameCount+1)}

	currentOffset := r.Offset()
	for i := 0; i < frameCount; i++ {
		item := indexArray[i*indexArrayItemSize:]
		sizeAndFlag := binary.LittleEndian.Uint32(item[0:4])
		startTimestamp := int64(binary.LittleEndian.Uint64(item[4:12]))

		isKeyframe := sizeAndFlag&indexArrayKeyframeBit != 0
		size := sizeAndFlag &^ indexArrayKeyframeBit

		fi.PushFrame(startTimestamp, currentOffset, isKeyframe)
		currentOffset += int64(ChunkHeaderSize) + int64(size)
	}

	lastFrameEndTimestamp := int64(binary.LittleEndian.Uint64(indexArray[len(indexArray)-8:]))
	fi.PushVideoEnd(lastFrameEndTimestamp, currentOffset)

	return fi, nil
}

// BuildIndexByScanning rebuilds a FrameIndex by sequentially scanning every frame
// chunk in the file, for files with no index chunk (or with a corrupt one). r's
// cursor must be positioned at the first frame chunk.
func BuildIndexByScanning(r *Reader) (*FrameIndex, error) {
	const op = "container.BuildIndexByScanning"

	fi := &FrameIndex{}
	var lastEndTimestamp int64
	var lastOffset int64

	for {
		chunkStart := r.Offset()
		hdr, err := r.ParseChunkHeader()
		if err != nil {
			break // reached EOF
		}
		if !IsFrameChunk(hdr.Type) {
			return nil, xrerror.New(op, xrerror.UnexpectedChunk, fmt.Errorf("unexpected chunk type %d while scanning frames", hdr.Type))
		}
		nextChunkStart := chunkStart + ChunkHeaderSize + int64(hdr.Size)

		frameStart := chunkStart + ChunkHeaderSize
		if err := r.Seek(frameStart); err != nil {
			return nil, err
		}
		header := make([]byte, frameHeaderSize)
		if _, err := r.Read(header); err != nil {
			return nil, xrerror.New(op, xrerror.Truncated, err)
		}

		fh, err := decodeFrameHeader(header)
		if err != nil {
			return nil, err
		}

		fi.PushFrame(fh.StartTimestamp, chunkStart, fh.IsKeyframe)
		lastEndTimestamp = fh.EndTimestamp
		lastOffset = nextChunkStart

		if err := r.Seek(nextChunkStart); err != nil {
			return nil, err
		}
	}

	if len(fi.frames) == 0 {
		return nil, xrerror.New(op, xrerror.MissingKeyframe, fmt.Errorf("no frames found"))
	}
	if !fi.frames[0].IsKeyframe {
		return nil, xrerror.New(op, xrerror.MissingKeyframe, fmt.Errorf("first frame is not a keyframe"))
	}

	fi.PushVideoEnd(lastEndTimestamp, lastOffset)
	return fi, nil
}

// sortedByTimestamp reports whether the index's frames are in non-decreasing timestamp
// order, a sanity check run once after loading an index from a (possibly corrupt) file.
func (fi *FrameIndex) sortedByTimestamp() bool {
	return sort.SliceIsSorted(fi.frames, func(i, j int) bool { return fi.frames[i].Timestamp < fi.frames[j].Timestamp })
}
