package codec

import (
	"encoding/binary"
	"math"

	"github.com/scannedreality/xrvideo/internal/container"
	"github.com/scannedreality/xrvideo/internal/xrerror"
)

// deformationStateValueCount returns the number of float values encoded for the given
// node count: 12 values (a column-major 3x4 affine matrix) per node.
func deformationStateValueCount(nodeCount uint16) int { return int(nodeCount) * 12 }

// decodeDeformationState decompresses a frame's deformation state into a float32
// buffer, adding back the identity diagonal that was subtracted at encode time.
func decodeDeformationState(ctx *DecodingContext, fh container.FrameHeader, compressed []byte) ([]float32, error) {
	const op = "codec.decodeDeformationState"

	valueCount := deformationStateValueCount(fh.DeformationNodeCount)
	encodedSize := valueCount * 2 // float16, 2 bytes each

	encoded, err := ctx.decompress(op, compressed, encodedSize)
	if err != nil {
		return nil, err
	}

	out := make([]float32, valueCount)
	for i := 0; i < valueCount; i++ {
		bits := binary.LittleEndian.Uint16(encoded[i*2:])
		v := float16ToFloat32(bits)

		// Matrix coefficients 0, 4, 8 are the diagonal of the 3x3 rotation/scale block
		// in a column-major 3x4 matrix; the encoder subtracts 1 from them to improve
		// compressibility of near-identity transforms.
		coeffIdx := i % 12
		if coeffIdx == 0 || coeffIdx == 4 || coeffIdx == 8 {
			v += 1
		}
		out[i] = v
	}

	if len(out) == 0 && fh.DeformationNodeCount != 0 {
		return nil, xrerror.New(op, xrerror.DecodeFailure, nil)
	}
	return out, nil
}

// float16ToFloat32 converts an IEEE 754 binary16 value to float32. No ecosystem
// library in reach decodes half-precision floats standalone, so this is hand-rolled
// bit manipulation rather than a third-party dependency.
func float16ToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h&0x7c00) >> 10
	frac := uint32(h & 0x03ff)

	switch exp {
	case 0:
		if frac == 0 {
			return math.Float32frombits(sign)
		}
		// Subnormal: normalize by shifting the fraction left until the implicit bit appears.
		e := 0
		for frac&0x0400 == 0 {
			frac <<= 1
			e--
		}
		frac &= 0x03ff
		exp32 := uint32(127 - 15 + e + 1)
		return math.Float32frombits(sign | (exp32 << 23) | (frac << 13))
	case 0x1f:
		// Inf / NaN
		return math.Float32frombits(sign | 0x7f800000 | (frac << 13))
	default:
		exp32 := exp - 15 + 127
		return math.Float32frombits(sign | (exp32 << 23) | (frac << 13))
	}
}
