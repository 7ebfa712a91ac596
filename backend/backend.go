// Package backend defines the external collaborator interfaces consumed by the
// playback engine's video-decode and transfer stages: the AV1 decoder contract and
// the GPU resource backend, neither of which this module implements concretely
// except for a pass-through reference decoder and a no-op GPU backend (see
// backend/dav1d and NullBackend).
package backend

import (
	"context"

	"github.com/scannedreality/xrvideo/internal/codec"
)

// Picture is one decoded I420, 8-bit-per-component video frame, matching the AV1
// decoder contract's output format.
type Picture struct {
	FrameIndex                 int
	Width, Height              int
	Y, U, V                    []byte
	YStride, UStride, VStride  int
}

// DecodeError pairs a decode failure with the frame index it occurred for, when
// known (a decoder-internal failure not attributable to one frame uses -1).
type DecodeError struct {
	FrameIndex int
	Err        error
}

// AV1Decoder wraps an external AV1 decoder exposing the "low-overhead bitstream"
// contract: one encoded chunk in, one I420 picture out, FIFO, with possible internal
// reordering delay.
type AV1Decoder interface {
	// Decode submits one frame's encoded payload. It does not block for the decoded
	// picture; pictures are delivered, in FIFO submission order, on Pictures().
	Decode(frameIndex int, payload []byte) error

	// Pictures yields decoded pictures as they become available.
	Pictures() <-chan Picture

	// Errors yields decode failures.
	Errors() <-chan DecodeError

	// Flush drains any pictures the decoder is holding internally for reordering.
	// After a flush, the next submitted frame must be a keyframe.
	Flush() error

	// Close releases the decoder. No further calls are valid afterward.
	Close() error
}

// UploadToken is an opaque handle for an in-flight GPU resource upload, returned by
// GpuFrameBackend.UploadFrameResources and consumed by AwaitUpload.
type UploadToken any

// GpuFrameBackend uploads decoded frame resources and records draws, implemented per
// GPU API (Vulkan/Metal/OpenGL/D3D11). This module defines the contract only.
type GpuFrameBackend interface {
	// UploadFrameResources records (or performs) a transfer of the decoded frame's
	// mesh, deformation state, vertex alpha, and texture into GPU-resident storage
	// for the given cache slot index.
	UploadFrameResources(ctx context.Context, slot int, frame *codec.DecodedFrame) (UploadToken, error)

	// AwaitUpload blocks until a prior upload completes, bounded by ctx.
	AwaitUpload(ctx context.Context, token UploadToken) error

	// RecordInterpolateDeformationState records a GPU job interpolating deformation
	// state between predecessorSlot (or identity, if predecessorSlot < 0) and
	// displaySlot, writing the result into per-in-flight-frame buffer dstBufferIndex.
	// This is render-lock step 1, prepare_frame.
	RecordInterpolateDeformationState(cmd any, displaySlot, predecessorSlot int, factor float32, dstBufferIndex int) error

	// RecordPrepareView records per-view draw setup (descriptor binding, pipeline
	// selection) for viewIndex. This is render-lock step 2, prepare_view.
	RecordPrepareView(cmd any, viewIndex int, useNormalShading bool) error

	// SetModelViewProjection supplies the view/projection matrices for viewIndex. Per
	// SupportsLateMVP, may be called either before or after RecordDraw for the same
	// view. This is render-lock step 3, set_model_view_projection.
	SetModelViewProjection(cmd any, viewIndex int, mv, mvp [16]float32) error

	// RecordDraw records the indexed draw for slot, shaded against keyframeSlot's
	// texture/material, interpolated by intraFrameFactor. This is render-lock step 4,
	// render_view.
	RecordDraw(cmd any, viewIndex, slot, keyframeSlot int, intraFrameFactor float32) error

	// FramesInFlight reports how many render frames may be in flight concurrently;
	// the render lock must be kept alive across that many frames.
	FramesInFlight() int

	// SupportsLateMVP reports whether SetModelViewProjection may be called after
	// RecordDraw (late-bind) rather than only before (early-bind).
	SupportsLateMVP() bool
}
