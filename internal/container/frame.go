package container

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/scannedreality/xrvideo/internal/xrerror"
)

// Frame bitflags, per the on-disk bitflags byte.
const (
	FlagIsKeyframe     uint8 = 1 << 0
	FlagHasVertexAlpha uint8 = 1 << 1
	FlagZStdRGBTexture uint8 = 1 << 2
)

const frameHeaderVersion = 0

// frameHeaderSize is the fixed on-disk size of the frame header scheme:
// u8 version, u8 bitflags, u16 deformationNodeCount, i64 startTs, i64 endTs,
// u32 texW, u32 texH, u32 compressedDeformationStateSize, u32 compressedTextureSize.
const frameHeaderSize = 1 + 1 + 2 + 8 + 8 + 4 + 4 + 4 + 4

// keyframeHeaderSize is the fixed on-disk size of the keyframe sub-header:
// u16 uniqueVertexCount, u16 vertexCount, u32 triangleCount, 6xf32 bbox,
// u32 compressedMeshSize, u32 encodedVertexWeightsSize.
const keyframeHeaderSize = 2 + 2 + 4 + 6*4 + 4 + 4

// FrameHeader is the fixed-layout header present in every frame chunk.
type FrameHeader struct {
	Bitflags                       uint8
	DeformationNodeCount           uint16
	StartTimestamp, EndTimestamp    int64
	TextureWidth, TextureHeight    uint32
	CompressedDeformationStateSize uint32
	CompressedTextureSize          uint32
}

func (h FrameHeader) IsKeyframe() bool     { return h.Bitflags&FlagIsKeyframe != 0 }
func (h FrameHeader) HasVertexAlpha() bool { return h.Bitflags&FlagHasVertexAlpha != 0 }
func (h FrameHeader) ZStdRGBTexture() bool { return h.Bitflags&FlagZStdRGBTexture != 0 }

// KeyframeHeader is the additional header present only on keyframes.
type KeyframeHeader struct {
	UniqueVertexCount, VertexCount uint32
	TriangleCount                  uint32
	// BBoxMin and BBoxFactor quantize vertex positions: decoded = BBoxMin + BBoxFactor*q,
	// where q is the u16 quantized coordinate and the max corner is BBoxMin + BBoxFactor*65535.
	BBoxMin    [3]float32
	BBoxFactor [3]float32

	CompressedMeshSize       uint32
	EncodedVertexWeightsSize uint32
}

// IndexCount returns the number of triangle-list indices: three per triangle.
func (k KeyframeHeader) IndexCount() uint32 { return 3 * k.TriangleCount }

func decodeFrameHeader(buf []byte) (FrameHeader, error) {
	if len(buf) < frameHeaderSize {
		return FrameHeader{}, xrerror.New("container.decodeFrameHeader", xrerror.Truncated, io.ErrUnexpectedEOF)
	}
	version := buf[0]
	if version != frameHeaderVersion {
		return FrameHeader{}, xrerror.New("container.decodeFrameHeader", xrerror.FormatVersion,
			fmt.Errorf("unknown frame header version %d", version))
	}
	return FrameHeader{
		Bitflags:                       buf[1],
		DeformationNodeCount:           binary.LittleEndian.Uint16(buf[2:4]),
		StartTimestamp:                 int64(binary.LittleEndian.Uint64(buf[4:12])),
		EndTimestamp:                   int64(binary.LittleEndian.Uint64(buf[12:20])),
		TextureWidth:                   binary.LittleEndian.Uint32(buf[20:24]),
		TextureHeight:                  binary.LittleEndian.Uint32(buf[24:28]),
		CompressedDeformationStateSize: binary.LittleEndian.Uint32(buf[28:32]),
		CompressedTextureSize:          binary.LittleEndian.Uint32(buf[32:36]),
	}, nil
}

func decodeKeyframeHeader(buf []byte) (KeyframeHeader, error) {
	if len(buf) < keyframeHeaderSize {
		return KeyframeHeader{}, xrerror.New("container.decodeKeyframeHeader", xrerror.Truncated, io.ErrUnexpectedEOF)
	}
	readF32 := func(off int) float32 { return math.Float32frombits(binary.LittleEndian.Uint32(buf[off : off+4])) }
	return KeyframeHeader{
		UniqueVertexCount: uint32(binary.LittleEndian.Uint16(buf[0:2])),
		VertexCount:       uint32(binary.LittleEndian.Uint16(buf[2:4])),
		TriangleCount:     binary.LittleEndian.Uint32(buf[4:8]),
		BBoxMin:           [3]float32{readF32(8), readF32(12), readF32(16)},
		BBoxFactor:        [3]float32{readF32(20), readF32(24), readF32(28)},
		CompressedMeshSize:       binary.LittleEndian.Uint32(buf[32:36]),
		EncodedVertexWeightsSize: binary.LittleEndian.Uint32(buf[36:40]),
	}, nil
}

// ParsedFrame is a frame chunk's payload split into its header(s) and the raw,
// still-compressed data sections that follow. Slicing is zero-copy into data.
type ParsedFrame struct {
	Frame    FrameHeader
	Keyframe *KeyframeHeader // non-nil iff Frame.IsKeyframe()

	Mesh                 []byte // keyframes only
	CompressedDeformation []byte
	Texture              []byte
	VertexAlpha          []byte // present iff Frame.HasVertexAlpha()
}

// ParseFrame splits a frame chunk payload (as returned by Reader.ReadNextFrame) into
// its header(s) and section byte ranges.
func ParseFrame(data []byte) (*ParsedFrame, error) {
	const op = "container.ParseFrame"

	fh, err := decodeFrameHeader(data)
	if err != nil {
		return nil, err
	}
	off := frameHeaderSize

	pf := &ParsedFrame{Frame: fh}

	if fh.IsKeyframe() {
		if len(data) < off+keyframeHeaderSize {
			return nil, xrerror.New(op, xrerror.Truncated, io.ErrUnexpectedEOF)
		}
		kh, err := decodeKeyframeHeader(data[off:])
		if err != nil {
			return nil, err
		}
		off += keyframeHeaderSize
		pf.Keyframe = &kh

		if len(data) < off+int(kh.CompressedMeshSize) {
			return nil, xrerror.New(op, xrerror.Truncated, fmt.Errorf("mesh section truncated"))
		}
		pf.Mesh = data[off : off+int(kh.CompressedMeshSize)]
		off += int(kh.CompressedMeshSize)
	}

	if len(data) < off+int(fh.CompressedDeformationStateSize) {
		return nil, xrerror.New(op, xrerror.Truncated, fmt.Errorf("deformation section truncated"))
	}
	pf.CompressedDeformation = data[off : off+int(fh.CompressedDeformationStateSize)]
	off += int(fh.CompressedDeformationStateSize)

	if len(data) < off+int(fh.CompressedTextureSize) {
		return nil, xrerror.New(op, xrerror.Truncated, fmt.Errorf("texture section truncated"))
	}
	pf.Texture = data[off : off+int(fh.CompressedTextureSize)]
	off += int(fh.CompressedTextureSize)

	if fh.HasVertexAlpha() {
		if off > len(data) {
			return nil, xrerror.New(op, xrerror.Truncated, fmt.Errorf("vertex alpha section missing"))
		}
		pf.VertexAlpha = data[off:]
	}

	return pf, nil
}
