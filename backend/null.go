package backend

import (
	"context"
	"sync/atomic"

	"github.com/scannedreality/xrvideo/internal/codec"
)

// NullBackend is a reference GpuFrameBackend that performs no actual GPU work: every
// upload completes immediately, uploads and draws are counted, and the other record
// calls do nothing. It
// exists so the engine and its tests can exercise the full render-lock protocol
// without a real graphics API bound in, and as a template for a concrete backend.
type NullBackend struct {
	framesInFlight int
	lateMVP        bool

	uploads  atomic.Int64
	draws    atomic.Int64
	nextTok  atomic.Int64
}

// NewNullBackend creates a NullBackend. framesInFlight and lateMVP mirror the values
// a real backend would advertise (e.g. 2-3 for double/triple buffering, lateMVP true
// for APIs that allow updating a descriptor after encoding the draw).
func NewNullBackend(framesInFlight int, lateMVP bool) *NullBackend {
	if framesInFlight < 1 {
		framesInFlight = 1
	}
	return &NullBackend{framesInFlight: framesInFlight, lateMVP: lateMVP}
}

type nullUploadToken int64

func (b *NullBackend) UploadFrameResources(ctx context.Context, slot int, frame *codec.DecodedFrame) (UploadToken, error) {
	_ = slot
	_ = frame
	b.uploads.Add(1)
	return nullUploadToken(b.nextTok.Add(1)), nil
}

func (b *NullBackend) AwaitUpload(ctx context.Context, token UploadToken) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (b *NullBackend) RecordInterpolateDeformationState(cmd any, displaySlot, predecessorSlot int, factor float32, dstBufferIndex int) error {
	return nil
}

func (b *NullBackend) RecordPrepareView(cmd any, viewIndex int, useNormalShading bool) error {
	return nil
}

func (b *NullBackend) SetModelViewProjection(cmd any, viewIndex int, mv, mvp [16]float32) error {
	return nil
}

func (b *NullBackend) RecordDraw(cmd any, viewIndex, slot, keyframeSlot int, intraFrameFactor float32) error {
	b.draws.Add(1)
	return nil
}

func (b *NullBackend) FramesInFlight() int { return b.framesInFlight }

func (b *NullBackend) SupportsLateMVP() bool { return b.lateMVP }

// UploadCount and DrawCount let tests assert the backend was actually exercised.
func (b *NullBackend) UploadCount() int64 { return b.uploads.Load() }
func (b *NullBackend) DrawCount() int64   { return b.draws.Load() }
