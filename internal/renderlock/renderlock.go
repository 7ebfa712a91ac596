// Package renderlock implements the render lock: the short-lived handle an external
// renderer holds while drawing one frame, guaranteeing the display frame and its
// keyframe/predecessor dependencies stay read-locked (and therefore un-writable) for
// as long as the GPU might still be consuming them.
package renderlock

import (
	"context"
	"fmt"

	"github.com/scannedreality/xrvideo/backend"
	"github.com/scannedreality/xrvideo/internal/cache"
	"github.com/scannedreality/xrvideo/internal/container"
)

// Lock holds read-locks on a display frame and (if distinct) its base keyframe and
// predecessor, for the duration of one render. Dropping it releases every lock it
// holds; a Lock must not be used after Drop.
type Lock[Frame any] struct {
	display     *cache.ReadLock[Frame]
	keyframe    *cache.ReadLock[Frame] // nil if same slot as display
	predecessor *cache.ReadLock[Frame] // nil if same slot as display or keyframe

	intraFrameTime float32
}

// Create atomically read-locks displayFrame and its dependencies (per index), per
// §4.J. Returns nil if any of the three is not currently resident in c — the caller's
// signal to start buffering instead of rendering this tick.
func Create[Frame any](c *cache.Cache[Frame], index *container.FrameIndex, displayFrame int, playbackTimeNs int64) *Lock[Frame] {
	baseKeyframe := index.FindKeyframeFor(displayFrame)
	predecessor := displayFrame - 1
	if baseKeyframe < 0 {
		predecessor = -1 // displayFrame is itself a keyframe
	}

	wanted := []int{displayFrame}
	keyframeIdx, predecessorIdx := -1, -1
	if baseKeyframe >= 0 && baseKeyframe != displayFrame {
		keyframeIdx = len(wanted)
		wanted = append(wanted, baseKeyframe)
	}
	if predecessor >= 0 && predecessor != displayFrame && predecessor != baseKeyframe {
		predecessorIdx = len(wanted)
		wanted = append(wanted, predecessor)
	}

	locks := c.LockForReading(wanted)
	if locks == nil {
		return nil
	}

	l := &Lock[Frame]{display: locks[0]}
	if keyframeIdx >= 0 {
		l.keyframe = locks[keyframeIdx]
	}
	if predecessorIdx >= 0 {
		l.predecessor = locks[predecessorIdx]
	}

	start, end := index.FrameTimeRange(displayFrame)
	if end > start {
		l.intraFrameTime = float32(playbackTimeNs-start) / float32(end-start)
	}
	if l.intraFrameTime < 0 {
		l.intraFrameTime = 0
	} else if l.intraFrameTime > 1 {
		l.intraFrameTime = 1
	}

	return l
}

// Drop releases every read-lock this Lock holds. Safe to call more than once.
func (l *Lock[Frame]) Drop() {
	if l.display != nil {
		l.display.Unlock()
		l.display = nil
	}
	if l.keyframe != nil {
		l.keyframe.Unlock()
		l.keyframe = nil
	}
	if l.predecessor != nil {
		l.predecessor.Unlock()
		l.predecessor = nil
	}
}

// DisplaySlot returns the cache slot index backing the display frame.
func (l *Lock[Frame]) DisplaySlot() int { return l.display.SlotIndex() }

// KeyframeSlot returns the cache slot backing the display frame's base keyframe, or
// its own display slot if the display frame is itself a keyframe.
func (l *Lock[Frame]) KeyframeSlot() int {
	if l.keyframe != nil {
		return l.keyframe.SlotIndex()
	}
	return l.DisplaySlot()
}

// PredecessorSlot returns the cache slot backing the display frame's immediate
// predecessor, or -1 if the display frame is a keyframe (no interpolation needed).
func (l *Lock[Frame]) PredecessorSlot() int {
	if l.predecessor != nil {
		return l.predecessor.SlotIndex()
	}
	if l.keyframe != nil {
		// Display frame is the one frame immediately after a keyframe: its predecessor
		// is the keyframe itself.
		return l.keyframe.SlotIndex()
	}
	return -1 // display frame is a keyframe
}

// IntraFrameTime returns (playback_time - frame.startTs) / (frame.endTs - frame.startTs),
// clamped to [0, 1].
func (l *Lock[Frame]) IntraFrameTime() float32 { return l.intraFrameTime }

// PrepareFrame records step 1 of the render protocol: interpolating deformation
// state from the predecessor (or identity, for a keyframe) into dstBufferIndex.
func (l *Lock[Frame]) PrepareFrame(cmd any, gpu backend.GpuFrameBackend, dstBufferIndex int) error {
	predecessorSlot := l.PredecessorSlot()
	if predecessorSlot == l.DisplaySlot() {
		predecessorSlot = -1 // keyframe: identity, no interpolation source
	}
	return gpu.RecordInterpolateDeformationState(cmd, l.DisplaySlot(), predecessorSlot, l.intraFrameTime, dstBufferIndex)
}

// PrepareView records step 2: per-view draw setup.
func (l *Lock[Frame]) PrepareView(cmd any, gpu backend.GpuFrameBackend, viewIndex int, useNormalShading bool) error {
	return gpu.RecordPrepareView(cmd, viewIndex, useNormalShading)
}

// SetModelViewProjection records step 3. Per backend.SupportsLateMVP, callers may
// invoke this before or after RenderView for the same view.
func (l *Lock[Frame]) SetModelViewProjection(cmd any, gpu backend.GpuFrameBackend, viewIndex int, mv, mvp [16]float32) error {
	return gpu.SetModelViewProjection(cmd, viewIndex, mv, mvp)
}

// RenderView records step 4: the indexed draw.
func (l *Lock[Frame]) RenderView(cmd any, gpu backend.GpuFrameBackend, viewIndex int) error {
	return gpu.RecordDraw(cmd, viewIndex, l.DisplaySlot(), l.KeyframeSlot(), l.intraFrameTime)
}

// AwaitGpuDone blocks, bounded by ctx, until the backend reports it is done
// consuming this render's resources, for backends that need the lock kept alive via
// a fence rather than a delete queue (see §4.J). Multi-in-flight-frame backends that
// rely on their own delete queue may ignore this and just Drop once queued.
func AwaitGpuDone(ctx context.Context, gpu backend.GpuFrameBackend, token backend.UploadToken) error {
	if err := gpu.AwaitUpload(ctx, token); err != nil {
		return fmt.Errorf("renderlock: await gpu completion: %w", err)
	}
	return nil
}
