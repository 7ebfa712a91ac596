package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/scannedreality/xrvideo/internal/clock"
	"github.com/scannedreality/xrvideo/internal/container"
	"github.com/scannedreality/xrvideo/internal/reporter"
)

// clockWaitTimeout bounds how long the reading stage waits on the clock's change
// condvar before rechecking, so that a read-lock release elsewhere (which doesn't
// itself broadcast the clock) is still noticed promptly.
const clockWaitTimeout = 250 * time.Millisecond

// streamLookaheadNs and streamLookaheadMaxFrames bound how far ahead the reading
// stage pre-requests byte ranges from a streaming input stream.
const streamLookaheadNs = 5 * int64(time.Second)
const streamLookaheadMaxFrames = 150

// ReadingStage owns the container reader and is the sole goroutine that reads frame
// bytes off the input stream. It decides what to decode next via the cache's
// admission algorithm, then sequentially reads and parses frames, handing each off
// to the video-decode and content-decode stages.
type ReadingStage struct {
	file    *container.File
	clk     *clock.Clock
	cache   *Cache
	video   *VideoDecodeStage
	content *ContentDecodeStage
	permits *DecodePermits
	rep     reporter.Reporter

	lastQueuedFrame int // reading stage's own bookkeeping, for "start from here if contiguous"

	aborting atomic.Bool
	quit     chan struct{}
	wg       sync.WaitGroup
}

// NewReadingStage constructs a reading stage but does not start its goroutine; call
// Start once the clock has been seeded with the video's range. permits is shared with
// the transfer stage, which releases a permit once a frame finishes (or fails) GPU
// upload; it bounds how many frames the reading stage pulls off disk before the rest
// of the pipeline has caught up.
func NewReadingStage(file *container.File, clk *clock.Clock, c *Cache, video *VideoDecodeStage, content *ContentDecodeStage, permits *DecodePermits, rep reporter.Reporter) *ReadingStage {
	return &ReadingStage{
		file:            file,
		clk:             clk,
		cache:           c,
		video:           video,
		content:         content,
		permits:         permits,
		rep:             rep,
		lastQueuedFrame: -1,
		quit:            make(chan struct{}),
	}
}

// Start launches the reading stage's main-loop goroutine.
func (r *ReadingStage) Start() {
	r.wg.Add(1)
	go r.threadMain()
}

// RequestStop asks the main loop to exit and waits for it to do so. Any read
// currently blocked is interrupted first so the loop can observe the quit signal, and
// the clock's change condvar is broadcast so a parked waitForClockChange goroutine
// wakes immediately instead of idling until the next real clock change (or leaking
// past RequestStop if none ever comes).
func (r *ReadingStage) RequestStop() {
	close(r.quit)
	r.file.Reader.AbortRead()
	r.clk.Lock()
	r.clk.Cond().Broadcast()
	r.clk.Unlock()
	r.wg.Wait()
}

// AbortCurrentFrames interrupts any in-progress read, drops pending streaming
// prefetch requests, and causes the current readFramesForDecoding pass (if any) to
// stop queuing further frames. Used for seeks.
func (r *ReadingStage) AbortCurrentFrames() {
	r.aborting.Store(true)
	r.file.Reader.AbortRead()
	if s := r.file.Reader.StreamingInputStream(); s != nil {
		s.DropPendingRequests()
	}
}

func (r *ReadingStage) stopping() bool {
	select {
	case <-r.quit:
		return true
	default:
		return false
	}
}

func (r *ReadingStage) threadMain() {
	defer r.wg.Done()
	for !r.stopping() {
		r.aborting.Store(false)

		r.clk.Lock()
		it := clock.NewIterator(r.clk, r.file.Index)
		r.clk.Unlock()

		locks := r.cache.LockForDecodingNext(&it, r.file.Index)
		if len(locks) == 0 {
			if s := r.file.Reader.StreamingInputStream(); s != nil {
				r.preScheduleStreaming(it, s)
			}
			r.waitForClockChange(clockWaitTimeout)
			continue
		}

		r.readFramesForDecoding(locks)
	}
}

// readFramesForDecoding reads every frame from the decode-start frame through the
// highest-requested frame, queuing each to the video-decode and content-decode
// stages. Frames before the lowest requested frame (read only to keep the stateful
// decoders contiguous) are queued with a nil write-lock.
func (r *ReadingStage) readFramesForDecoding(locks []*WriteLock) {
	locksByFrame := make(map[int]*WriteLock, len(locks))
	minRequested, maxRequested := locks[0].FrameIndex(), locks[0].FrameIndex()
	for _, l := range locks {
		locksByFrame[l.FrameIndex()] = l
		if l.FrameIndex() < minRequested {
			minRequested = l.FrameIndex()
		}
		if l.FrameIndex() > maxRequested {
			maxRequested = l.FrameIndex()
		}
	}

	start := r.decodeStartFrame(minRequested)

	for frameIndex := start; frameIndex <= maxRequested; frameIndex++ {
		if r.stopping() || r.aborting.Load() {
			r.invalidateUnqueued(locksByFrame, frameIndex, maxRequested)
			return
		}
		if !r.readOneFrame(frameIndex, locksByFrame[frameIndex]) {
			r.invalidateUnqueued(locksByFrame, frameIndex, maxRequested)
			return
		}
	}
}

// decodeStartFrame finds the earliest frame the reading stage must read to end up
// contiguous at minRequested: either the frame after the last one it queued (when
// that frame is at or before minRequested), or minRequested's base keyframe.
func (r *ReadingStage) decodeStartFrame(minRequested int) int {
	if r.lastQueuedFrame >= 0 && r.lastQueuedFrame+1 <= minRequested {
		return r.lastQueuedFrame + 1
	}
	baseKeyframe, _ := r.file.Index.FindDependencyFrames(minRequested)
	if baseKeyframe < 0 {
		return minRequested // minRequested is itself a keyframe
	}
	return baseKeyframe
}

// invalidateUnqueued drops cache reservations for frames in [from, to] that were
// never read due to an abort or I/O failure, so a later admission pass retries them.
func (r *ReadingStage) invalidateUnqueued(locksByFrame map[int]*WriteLock, from, to int) {
	for frameIndex := from; frameIndex <= to; frameIndex++ {
		if lock, ok := locksByFrame[frameIndex]; ok {
			lock.Invalidate()
		}
	}
	r.lastQueuedFrame = -1
}

func (r *ReadingStage) readOneFrame(frameIndex int, lock *WriteLock) bool {
	item := r.file.Index.At(frameIndex)
	if err := r.file.Reader.Seek(item.Offset); err != nil {
		r.warnf("reading: seek to frame %d: %v", frameIndex, err)
		return false
	}

	readStart := time.Now()
	data, _, err := r.file.Reader.ReadNextFrame()
	readNs := time.Since(readStart).Nanoseconds()
	if err != nil {
		r.warnf("reading: read frame %d: %v", frameIndex, err)
		return false
	}

	parsed, err := container.ParseFrame(data)
	if err != nil {
		r.warnf("reading: parse frame %d: %v", frameIndex, err)
		return false
	}

	bypass := parsed.Frame.ZStdRGBTexture() || parsed.Frame.CompressedTextureSize == 0
	promise := NewTextureFramePromise()

	// Only frames the cache actually requested (lock != nil) consume an in-flight
	// decode permit: those are the ones that will ride all the way through to a GPU
	// upload in the transfer stage, which releases the permit. State-advance-only
	// frames complete quickly and never reach the transfer stage.
	if lock != nil {
		if err := r.permits.Acquire(context.Background()); err != nil {
			r.warnf("reading: acquire decode permit for frame %d: %v", frameIndex, err)
			return false
		}
	}

	if !r.video.Queue(frameIndex, parsed.Frame.IsKeyframe(), parsed.Texture, bypass, promise) {
		r.warnf("reading: frame %d not contiguous with video-decode state", frameIndex)
		if lock != nil {
			r.permits.Release()
		}
		return false
	}

	r.content.Queue(readWorkItem{
		frameIndex: frameIndex,
		parsed:     parsed,
		lock:       lock,
		readStart:  readStart.UnixNano(),
		readNs:     readNs,
	}, promise)

	r.lastQueuedFrame = frameIndex
	return true
}

// preScheduleStreaming hints the next ~5 seconds (capped at 150 frames) of upcoming
// frames' byte ranges to the streaming transport, merging contiguous ranges so
// adjacent frames collapse into a single request.
func (r *ReadingStage) preScheduleStreaming(it clock.FrameIterator, s container.StreamingInputStream) {
	startTime := r.clk.CurrentTime()
	var rangeStart, rangeEnd int64 = -1, -1
	frames := 0

	flush := func() {
		if rangeStart < 0 {
			return
		}
		_ = s.StreamRange(rangeStart, rangeEnd, true, 0)
		rangeStart, rangeEnd = -1, -1
	}

	for !it.AtEnd() && frames < streamLookaheadMaxFrames {
		frameIndex := it.Frame()
		item := r.file.Index.At(frameIndex)
		if item.Timestamp-startTime > streamLookaheadNs {
			break
		}

		next := r.file.Index.At(frameIndex + 1)
		from, to := item.Offset, next.Offset

		if rangeStart >= 0 && from == rangeEnd {
			rangeEnd = to
		} else {
			flush()
			rangeStart, rangeEnd = from, to
		}

		frames++
		it.Next()
	}
	flush()
}

// waitForClockChange blocks until the clock's change condvar broadcasts or timeout
// elapses. Only the reading stage waits on this condvar, so a spurious wake from the
// timeout firing concurrently with a real broadcast is harmless.
func (r *ReadingStage) waitForClockChange(timeout time.Duration) {
	woke := make(chan struct{})
	go func() {
		r.clk.Lock()
		r.clk.Cond().Wait()
		r.clk.Unlock()
		close(woke)
	}()

	select {
	case <-woke:
	case <-time.After(timeout):
	}
}

func (r *ReadingStage) warnf(format string, args ...any) {
	if r.rep == nil {
		return
	}
	r.rep.Verbose(fmt.Sprintf(format, args...))
}
