package codec

import (
	"encoding/binary"
	"testing"
)

func TestDecodeVertexWeightsSingleNode(t *testing.T) {
	// One vertex, one node assignment: nodeIndex=5, weight=200.
	data := make([]byte, 3)
	binary.LittleEndian.PutUint16(data[0:2], 5) // count-1 bits == 0 -> count == 1
	data[2] = 200

	weights, err := decodeVertexWeights(1, data)
	if err != nil {
		t.Fatalf("decodeVertexWeights: %v", err)
	}
	if len(weights) != 1 {
		t.Fatalf("len(weights) = %d, want 1", len(weights))
	}
	w := weights[0]
	if w.nodeIndices[0] != 5 {
		t.Errorf("nodeIndices[0] = %d, want 5", w.nodeIndices[0])
	}
	for k := 1; k < VertexK; k++ {
		if w.nodeIndices[k] != 5 {
			t.Errorf("nodeIndices[%d] = %d, want 5 (repeated)", k, w.nodeIndices[k])
		}
		if w.nodeWeights[k] != 0 {
			t.Errorf("nodeWeights[%d] = %d, want 0", k, w.nodeWeights[k])
		}
	}
	if w.nodeWeights[0] != 200 {
		t.Errorf("nodeWeights[0] = %d, want 200", w.nodeWeights[0])
	}
}

func TestDecodeVertexWeightsNoneAssigned(t *testing.T) {
	data := make([]byte, 2)
	binary.LittleEndian.PutUint16(data[0:2], 0xFFFF)

	weights, err := decodeVertexWeights(1, data)
	if err != nil {
		t.Fatalf("decodeVertexWeights: %v", err)
	}
	for k := 0; k < VertexK; k++ {
		if weights[0].nodeIndices[k] != 0 || weights[0].nodeWeights[k] != 0 {
			t.Errorf("expected all-zero assignment, got %+v", weights[0])
		}
	}
}

func TestDecodeVertexWeightsFourNodes(t *testing.T) {
	// count-1 == 3 (top bits 11) packed with first node index 10.
	first := uint16(3<<14) | 10
	data := make([]byte, 2+3*2+4) // first u16 + 3 more u16 indices + 4 u8 weights
	binary.LittleEndian.PutUint16(data[0:2], first)
	binary.LittleEndian.PutUint16(data[2:4], 11)
	binary.LittleEndian.PutUint16(data[4:6], 12)
	binary.LittleEndian.PutUint16(data[6:8], 13)
	copy(data[8:12], []byte{64, 64, 64, 62})

	weights, err := decodeVertexWeights(1, data)
	if err != nil {
		t.Fatalf("decodeVertexWeights: %v", err)
	}
	w := weights[0]
	want := [VertexK]uint16{10, 11, 12, 13}
	if w.nodeIndices != want {
		t.Errorf("nodeIndices = %v, want %v", w.nodeIndices, want)
	}
	wantW := [VertexK]uint8{64, 64, 64, 62}
	if w.nodeWeights != wantW {
		t.Errorf("nodeWeights = %v, want %v", w.nodeWeights, wantW)
	}
}

func TestRenormalizeWeightsSumsToOne(t *testing.T) {
	vals := RenormalizeWeights([VertexK]uint8{64, 64, 64, 62})
	var sum float32
	for _, v := range vals {
		sum += v
	}
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("renormalized weights sum to %v, want ~1.0", sum)
	}
}

func TestRenormalizeWeightsAllZero(t *testing.T) {
	vals := RenormalizeWeights([VertexK]uint8{0, 0, 0, 0})
	for _, v := range vals {
		if v != 0 {
			t.Errorf("expected all-zero renormalization, got %v", vals)
		}
	}
}

func TestFloat16ToFloat32(t *testing.T) {
	cases := []struct {
		bits uint16
		want float32
	}{
		{0x0000, 0},
		{0x3C00, 1.0},
		{0xBC00, -1.0},
		{0x4000, 2.0},
	}
	for _, c := range cases {
		if got := float16ToFloat32(c.bits); got != c.want {
			t.Errorf("float16ToFloat32(0x%04x) = %v, want %v", c.bits, got, c.want)
		}
	}
}
