package container

import (
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"testing"
)

// memStream is a minimal in-memory InputStream for exercising the Reader against
// hand-built chunk bytes, without needing a real file on disk.
type memStream struct {
	data   []byte
	cursor int64
}

func newMemStream(data []byte) *memStream { return &memStream{data: data} }

func (m *memStream) Read(buf []byte) (int, error) {
	if m.cursor >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(buf, m.data[m.cursor:])
	m.cursor += int64(n)
	return n, nil
}

func (m *memStream) Seek(offset int64) error {
	m.cursor = offset
	return nil
}

func (m *memStream) ReadAll(buf []byte) error {
	n, err := m.Read(buf)
	if n == len(buf) {
		return nil
	}
	if err != nil {
		return err
	}
	return io.ErrUnexpectedEOF
}

func (m *memStream) AbortRead() {}
func (m *memStream) Close() error { return nil }

func appendChunk(buf *bytes.Buffer, chunkType uint8, payload []byte) {
	var hdr [ChunkHeaderSize]byte
	binary.LittleEndian.PutUint32(hdr[0:4], uint32(len(payload)))
	hdr[4] = chunkType
	buf.Write(hdr[:])
	buf.Write(payload)
}

func metadataPayload() []byte {
	buf := make([]byte, metadataBodySize)
	buf[0] = metadataChunkVersion
	putF32 := func(off int, v float32) { binary.LittleEndian.PutUint32(buf[off:], math.Float32bits(v)) }
	putF32(1, 1.0)
	putF32(5, 2.0)
	putF32(9, 3.0)
	putF32(13, 4.0)
	putF32(17, 0.5)
	putF32(21, -0.5)
	return buf
}

func frameHeaderPayload(h FrameHeader) []byte {
	buf := make([]byte, frameHeaderSize)
	buf[0] = frameHeaderVersion
	buf[1] = h.Bitflags
	binary.LittleEndian.PutUint16(buf[2:4], h.DeformationNodeCount)
	binary.LittleEndian.PutUint64(buf[4:12], uint64(h.StartTimestamp))
	binary.LittleEndian.PutUint64(buf[12:20], uint64(h.EndTimestamp))
	binary.LittleEndian.PutUint32(buf[20:24], h.TextureWidth)
	binary.LittleEndian.PutUint32(buf[24:28], h.TextureHeight)
	binary.LittleEndian.PutUint32(buf[28:32], h.CompressedDeformationStateSize)
	binary.LittleEndian.PutUint32(buf[32:36], h.CompressedTextureSize)
	return buf
}

func TestReaderFindNextChunkSkipsUnknownChunks(t *testing.T) {
	var buf bytes.Buffer
	appendChunk(&buf, 99, []byte{1, 2, 3, 4}) // unknown chunk type, skipped by size
	appendChunk(&buf, ChunkMetadata, metadataPayload())

	r := NewReader(newMemStream(buf.Bytes()), false)
	if err := r.FindNextChunk(ChunkMetadata); err != nil {
		t.Fatalf("FindNextChunk: %v", err)
	}
	hdr, err := r.ParseChunkHeader()
	if err != nil {
		t.Fatalf("ParseChunkHeader: %v", err)
	}
	if hdr.Type != ChunkMetadata {
		t.Errorf("hdr.Type = %d, want ChunkMetadata", hdr.Type)
	}
}

func TestReaderReadMetadataAbsent(t *testing.T) {
	var buf bytes.Buffer
	appendChunk(&buf, ChunkFrame, frameHeaderPayload(FrameHeader{Bitflags: FlagIsKeyframe}))

	r := NewReader(newMemStream(buf.Bytes()), false)
	_, ok, err := r.ReadMetadata()
	if err != nil {
		t.Fatalf("ReadMetadata: %v", err)
	}
	if ok {
		t.Errorf("ReadMetadata reported a metadata chunk where there is none")
	}
}

func TestReaderReadMetadataPresent(t *testing.T) {
	var buf bytes.Buffer
	appendChunk(&buf, ChunkMetadata, metadataPayload())
	appendChunk(&buf, ChunkFrame, frameHeaderPayload(FrameHeader{Bitflags: FlagIsKeyframe}))

	r := NewReader(newMemStream(buf.Bytes()), false)
	meta, ok, err := r.ReadMetadata()
	if err != nil || !ok {
		t.Fatalf("ReadMetadata: ok=%v err=%v", ok, err)
	}
	if meta.LookAtX != 1.0 || meta.Radius != 4.0 || meta.Pitch != -0.5 {
		t.Errorf("unexpected metadata: %+v", meta)
	}
}

func TestReaderReadNextFrameRoundTrip(t *testing.T) {
	fh := FrameHeader{
		Bitflags:               FlagIsKeyframe,
		DeformationNodeCount:   3,
		StartTimestamp:         1000,
		EndTimestamp:           2000,
		TextureWidth:           64,
		TextureHeight:          64,
		CompressedTextureSize:  8,
	}
	payload := append(frameHeaderPayload(fh), make([]byte, keyframeHeaderSize)...) // all-zero keyframe sub-header: empty mesh
	payload = append(payload, []byte{0xAA, 0xBB, 0xCC, 0xDD, 1, 2, 3, 4}...)

	var buf bytes.Buffer
	appendChunk(&buf, ChunkFrame, payload)

	r := NewReader(newMemStream(buf.Bytes()), false)
	if err := r.FindNextChunk(ChunkFrame); err != nil {
		t.Fatalf("FindNextChunk: %v", err)
	}
	data, offset, err := r.ReadNextFrame()
	if err != nil {
		t.Fatalf("ReadNextFrame: %v", err)
	}
	if offset != ChunkHeaderSize {
		t.Errorf("offset = %d, want %d", offset, ChunkHeaderSize)
	}
	if len(data) != len(payload) {
		t.Fatalf("len(data) = %d, want %d", len(data), len(payload))
	}

	parsed, err := ParseFrame(data)
	if err != nil {
		t.Fatalf("ParseFrame: %v", err)
	}
	if !parsed.Frame.IsKeyframe() {
		t.Errorf("expected keyframe flag to survive round trip")
	}
	if len(parsed.Texture) != 8 {
		t.Errorf("len(Texture) = %d, want 8", len(parsed.Texture))
	}
}

func TestBuildIndexByScanningRequiresLeadingKeyframe(t *testing.T) {
	var buf bytes.Buffer
	appendChunk(&buf, ChunkFrame, frameHeaderPayload(FrameHeader{StartTimestamp: 0, EndTimestamp: 100}))

	r := NewReader(newMemStream(buf.Bytes()), false)
	if err := r.FindNextChunk(ChunkFrame); err != nil {
		t.Fatalf("FindNextChunk: %v", err)
	}
	if _, err := BuildIndexByScanning(r); err == nil {
		t.Errorf("expected an error for a file whose first frame is not a keyframe")
	}
}

func TestBuildIndexByScanningWalksAllFrames(t *testing.T) {
	var buf bytes.Buffer
	appendChunk(&buf, ChunkFrame, frameHeaderPayload(FrameHeader{Bitflags: FlagIsKeyframe, StartTimestamp: 0, EndTimestamp: 100}))
	appendChunk(&buf, ChunkFrame, frameHeaderPayload(FrameHeader{StartTimestamp: 100, EndTimestamp: 200}))
	appendChunk(&buf, ChunkFrame, frameHeaderPayload(FrameHeader{StartTimestamp: 200, EndTimestamp: 300}))

	r := NewReader(newMemStream(buf.Bytes()), false)
	if err := r.FindNextChunk(ChunkFrame); err != nil {
		t.Fatalf("FindNextChunk: %v", err)
	}
	fi, err := BuildIndexByScanning(r)
	if err != nil {
		t.Fatalf("BuildIndexByScanning: %v", err)
	}
	if fi.FrameCount() != 3 {
		t.Fatalf("FrameCount() = %d, want 3", fi.FrameCount())
	}
	if fi.VideoEndTimestamp() != 300 {
		t.Errorf("VideoEndTimestamp() = %d, want 300", fi.VideoEndTimestamp())
	}
}
