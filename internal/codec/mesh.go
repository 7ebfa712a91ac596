package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/scannedreality/xrvideo/internal/container"
	"github.com/scannedreality/xrvideo/internal/xrerror"
)

// vertexWeights is one vertex's decoded (nodeIndex, nodeWeight) assignment, before
// dequantization.
type vertexWeights struct {
	nodeIndices [VertexK]uint16
	nodeWeights [VertexK]uint8
}

// decodeVertexWeights parses the variable-length vertex weight encoding: for each of
// the mesh's uniqueVertexCount vertices, a u16 packing (count-1) in its top 2 bits and
// the first node index in its low 14 bits, followed by (count-1) more u16 node indices
// and then count u8 weights. 0xFFFF is a sentinel meaning "no nodes assigned".
func decodeVertexWeights(uniqueVertexCount uint32, data []byte) ([]vertexWeights, error) {
	const op = "codec.decodeVertexWeights"

	out := make([]vertexWeights, uniqueVertexCount)
	pos := 0

	for i := uint32(0); i < uniqueVertexCount; i++ {
		if pos+2 > len(data) {
			return nil, xrerror.NewDecode(op, xrerror.CodecVertexWeights, fmt.Errorf("truncated vertex weight stream at vertex %d", i))
		}
		first := binary.LittleEndian.Uint16(data[pos:])
		pos += 2

		vw := &out[i]
		if first == 0xFFFF {
			continue // all-zero assignment, already the zero value
		}

		count := int((first&0xc000)>>14) + 1
		vw.nodeIndices[0] = first & 0x3fff

		for k := 1; k < count; k++ {
			if pos+2 > len(data) {
				return nil, xrerror.NewDecode(op, xrerror.CodecVertexWeights, fmt.Errorf("truncated vertex weight stream at vertex %d", i))
			}
			vw.nodeIndices[k] = binary.LittleEndian.Uint16(data[pos:])
			pos += 2
		}
		for k := count; k < VertexK; k++ {
			vw.nodeIndices[k] = vw.nodeIndices[count-1]
		}

		if pos+count > len(data) {
			return nil, xrerror.NewDecode(op, xrerror.CodecVertexWeights, fmt.Errorf("truncated vertex weight stream at vertex %d", i))
		}
		for k := 0; k < count; k++ {
			vw.nodeWeights[k] = data[pos]
			pos++
		}
		// weights beyond count stay zero, matching the zero value of vw
	}

	if pos != len(data) {
		return nil, xrerror.NewDecode(op, xrerror.CodecVertexWeights, fmt.Errorf("vertex weight stream has %d trailing bytes", len(data)-pos))
	}
	return out, nil
}

// DequantizeWeight maps an encoded u8 weight to its renormalization input value, per
// the format's quantization table: 0 -> 0, 1 -> 0.5*(0.5/254), 255 -> 253.75/254,
// otherwise (w-1)/254. The GPU backend applies this (and RenormalizeWeights) at draw
// time; the wire format and DecodedMesh both keep the raw packed u8 weights.
func DequantizeWeight(w uint8) float32 {
	switch w {
	case 0:
		return 0
	case 1:
		return 0.5 * (0.5 / 254)
	case 255:
		return 253.75 / 254
	default:
		return float32(w-1) / 254
	}
}

// RenormalizeWeights dequantizes a vertex's four packed weights and rescales them so
// they sum to 1 (a no-op, yielding all zeros, when every weight is zero).
func RenormalizeWeights(packed [VertexK]uint8) [VertexK]float32 {
	var vals [VertexK]float32
	var sum float32
	for k := 0; k < VertexK; k++ {
		vals[k] = DequantizeWeight(packed[k])
		sum += vals[k]
	}
	if sum == 0 {
		return vals
	}
	for k := 0; k < VertexK; k++ {
		vals[k] /= sum
	}
	return vals
}

// decodeMesh decompresses a keyframe's mesh section and expands it into the
// renderable vertex/index buffers the GPU backend consumes.
func decodeMesh(ctx *DecodingContext, fh container.FrameHeader, kh container.KeyframeHeader, compressed []byte) (*DecodedMesh, error) {
	const op = "codec.decodeMesh"

	if kh.UniqueVertexCount > kh.VertexCount {
		return nil, xrerror.New(op, xrerror.ContractViolation,
			fmt.Errorf("uniqueVertexCount (%d) > vertexCount (%d)", kh.UniqueVertexCount, kh.VertexCount))
	}

	duplicatedCount := kh.VertexCount - kh.UniqueVertexCount
	texcoordSize := int(kh.VertexCount) * 2 * 2 // u16x2 per vertex
	positionSize := int(kh.UniqueVertexCount) * 3 * 2
	dupSourceSize := int(duplicatedCount) * 2
	indexSize := int(kh.IndexCount()) * 2

	meshSize := positionSize + dupSourceSize + texcoordSize + indexSize + int(kh.EncodedVertexWeightsSize)
	meshData, err := ctx.decompress(op, compressed, meshSize)
	if err != nil {
		return nil, err
	}

	off := 0
	positions := meshData[off : off+positionSize]
	off += positionSize
	dupSources := meshData[off : off+dupSourceSize]
	off += dupSourceSize
	texcoords := meshData[off : off+texcoordSize]
	off += texcoordSize
	indicesRaw := meshData[off : off+indexSize]
	off += indexSize
	vertexWeightsRaw := meshData[off : off+int(kh.EncodedVertexWeightsSize)]

	weights, err := decodeVertexWeights(kh.UniqueVertexCount, vertexWeightsRaw)
	if err != nil {
		return nil, err
	}

	readU16 := func(buf []byte, i int) uint16 { return binary.LittleEndian.Uint16(buf[i*2:]) }

	vertices := make([]Vertex, kh.VertexCount)
	for i := uint32(0); i < kh.UniqueVertexCount; i++ {
		v := &vertices[i]
		v.X = readU16(positions, int(3*i+0))
		v.Y = readU16(positions, int(3*i+1))
		v.Z = readU16(positions, int(3*i+2))
		v.TX = readU16(texcoords, int(2*i+0))
		v.TY = readU16(texcoords, int(2*i+1))
		v.NodeIndices = weights[i].nodeIndices
		v.NodeWeights = weights[i].nodeWeights
	}
	for i := kh.UniqueVertexCount; i < kh.VertexCount; i++ {
		source := uint32(readU16(dupSources, int(i-kh.UniqueVertexCount)))
		v := &vertices[i]
		v.X = readU16(positions, int(3*source+0))
		v.Y = readU16(positions, int(3*source+1))
		v.Z = readU16(positions, int(3*source+2))
		v.TX = readU16(texcoords, int(2*i+0))
		v.TY = readU16(texcoords, int(2*i+1))
		v.NodeIndices = weights[source].nodeIndices
		v.NodeWeights = weights[source].nodeWeights
	}

	indices := make([]uint16, kh.IndexCount())
	for i := range indices {
		indices[i] = readU16(indicesRaw, i)
	}

	return &DecodedMesh{Vertices: vertices, Indices: indices}, nil
}

// BBoxMax returns the mesh bounding box's max corner for the given header, since only
// the min corner and per-axis quantization factor are stored on disk.
func BBoxMax(kh container.KeyframeHeader) [3]float32 {
	return [3]float32{
		kh.BBoxMin[0] + kh.BBoxFactor[0]*65535,
		kh.BBoxMin[1] + kh.BBoxFactor[1]*65535,
		kh.BBoxMin[2] + kh.BBoxFactor[2]*65535,
	}
}
