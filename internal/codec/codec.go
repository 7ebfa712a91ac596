// Package codec decodes a parsed frame chunk's payload sections (mesh, deformation
// state, texture, vertex alpha) into renderer-ready buffers. It holds no state beyond
// a caller-owned, reusable DecodingContext; every decode function is a pure function
// of its inputs, in line with the stage pipeline's contiguity and retry requirements.
package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/scannedreality/xrvideo/internal/container"
	"github.com/scannedreality/xrvideo/internal/xrerror"
)

// VertexK is the number of deformation graph nodes a vertex may reference.
const VertexK = 4

// Vertex is the renderable vertex layout consumed by the GPU backend: 24 bytes,
// matching the on-GPU vertex buffer format.
type Vertex struct {
	X, Y, Z, _Pad uint16
	TX, TY        uint16
	NodeIndices   [VertexK]uint16
	NodeWeights   [VertexK]uint8
}

// DecodedMesh holds a keyframe's decoded, renderable geometry.
type DecodedMesh struct {
	Vertices []Vertex
	Indices  []uint16 // triangle list, 3 per triangle
}

// DecodedFrame is the result of fully decoding one frame chunk's payload.
type DecodedFrame struct {
	// Mesh is only set for keyframes.
	Mesh *DecodedMesh

	// DeformationState is 12*nodeCount float32s: nodeCount column-major 3x4 affine
	// matrices, identity already added back in.
	DeformationState []float32

	// Texture is the raw, decoded texture: I420 (YUV 4:2:0) planes if !ZStdRGBTexture,
	// packed RGB otherwise. Plane layout is described by TextureWidth/TextureHeight.
	Texture        []byte
	TextureWidth   uint32
	TextureHeight  uint32
	ZStdRGBTexture bool

	// VertexAlpha holds one u8 per rendered vertex, or nil if the frame has none.
	VertexAlpha []byte
}

// DecodingContext owns the reusable ZStd decompression state used across frame
// decodes, avoiding a fresh allocation per frame.
type DecodingContext struct {
	zstd *zstd.Decoder
}

// NewDecodingContext builds a DecodingContext with a single reusable zstd.Decoder.
func NewDecodingContext() (*DecodingContext, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, xrerror.NewDecode("codec.NewDecodingContext", xrerror.CodecZstd, err)
	}
	return &DecodingContext{zstd: dec}, nil
}

// Close releases the context's zstd decoder.
func (c *DecodingContext) Close() { c.zstd.Close() }

func (c *DecodingContext) decompress(op string, src []byte, expectedSize int) ([]byte, error) {
	dst, err := c.zstd.DecodeAll(src, make([]byte, 0, expectedSize))
	if err != nil {
		return nil, xrerror.NewDecode(op, xrerror.CodecZstd, err)
	}
	if expectedSize >= 0 && len(dst) != expectedSize {
		return nil, xrerror.NewDecode(op, xrerror.CodecZstd,
			fmt.Errorf("decompressed to %d bytes, expected %d", len(dst), expectedSize))
	}
	return dst, nil
}

// TexturePicture is an already video-decoded I420 picture, as produced by the video
// decode stage and threaded through to DecodeContent for non-ZStd-RGB frames.
type TexturePicture struct {
	Y, U, V       []byte
	Width, Height uint32
}

// DecodeContent decodes a parsed frame's geometry and deformation sections, plus (for
// ZStd RGB frames only) its texture section; AV1-coded textures are decoded upstream
// by the video-decode stage and passed in via picture. ctx is mutated (its zstd
// decoder keeps per-call state) but DecodeContent itself holds no state across calls.
func DecodeContent(ctx *DecodingContext, pf *container.ParsedFrame, picture *TexturePicture) (*DecodedFrame, error) {
	const op = "codec.DecodeContent"

	out := &DecodedFrame{
		TextureWidth:   pf.Frame.TextureWidth,
		TextureHeight:  pf.Frame.TextureHeight,
		ZStdRGBTexture: pf.Frame.ZStdRGBTexture(),
	}

	if pf.Frame.IsKeyframe() {
		if pf.Keyframe == nil {
			return nil, xrerror.New(op, xrerror.ContractViolation, fmt.Errorf("keyframe flag set but no keyframe header parsed"))
		}
		mesh, err := decodeMesh(ctx, pf.Frame, *pf.Keyframe, pf.Mesh)
		if err != nil {
			return nil, err
		}
		out.Mesh = mesh
	}

	deform, err := decodeDeformationState(ctx, pf.Frame, pf.CompressedDeformation)
	if err != nil {
		return nil, err
	}
	out.DeformationState = deform

	switch {
	case pf.Frame.CompressedTextureSize == 0:
		// Empty texture frame: no pixel data to carry, video-decode stage delivers this
		// as a sentinel "empty" promise rather than engaging the AV1 decoder or ZStd.
	case pf.Frame.ZStdRGBTexture():
		expected := int(pf.Frame.TextureWidth) * int(pf.Frame.TextureHeight) * 3
		rgb, err := ctx.decompress(op, pf.Texture, expected)
		if err != nil {
			return nil, err
		}
		out.Texture = rgb
	default:
		if picture == nil {
			return nil, xrerror.New(op, xrerror.ContractViolation, fmt.Errorf("AV1 texture frame requires a decoded picture"))
		}
		out.Texture = packI420(*picture)
	}

	if pf.Frame.HasVertexAlpha() {
		alpha, err := ctx.decompress(op, pf.VertexAlpha, -1)
		if err != nil {
			return nil, err
		}
		out.VertexAlpha = alpha
	}

	return out, nil
}

func packI420(p TexturePicture) []byte {
	out := make([]byte, 0, len(p.Y)+len(p.U)+len(p.V))
	out = append(out, p.Y...)
	out = append(out, p.U...)
	out = append(out, p.V...)
	return out
}
