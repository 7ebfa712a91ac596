package pipeline

import (
	"fmt"
	"sync"

	"github.com/scannedreality/xrvideo/backend"
	"github.com/scannedreality/xrvideo/internal/reporter"
)

// videoJob is one unit of work submitted to the video-decode stage by the reading
// stage: either an AV1 payload to submit to the decoder, or a bypass marker for a
// ZStd-RGB or empty-texture frame that never touches the AV1 decoder at all.
type videoJob struct {
	frameIndex int
	isKeyframe bool
	payload    []byte // AV1 bitstream chunk; nil for a bypass job
	bypass     bool
	promise    *TextureFramePromise
}

// VideoDecodeStage wraps an AV1Decoder, matching its FIFO picture output against the
// frame indices submitted to it and delivering each result through a
// TextureFramePromise.
type VideoDecodeStage struct {
	decoder  backend.AV1Decoder
	reporter reporter.Reporter

	work chan videoJob
	done chan struct{}
	wg   sync.WaitGroup

	mu              sync.Mutex
	pendingAV1      []*TextureFramePromise // FIFO, one entry per payload submitted to decoder, not yet matched to a picture
	lastQueuedFrame int
}

// NewVideoDecodeStage starts the stage's worker goroutines. decoder is owned by the
// stage from this point; Close closes it.
func NewVideoDecodeStage(decoder backend.AV1Decoder, rep reporter.Reporter) *VideoDecodeStage {
	s := &VideoDecodeStage{
		decoder:         decoder,
		reporter:        rep,
		work:            make(chan videoJob, 64),
		done:            make(chan struct{}),
		lastQueuedFrame: -1,
	}
	s.wg.Add(2)
	go s.submitLoop()
	go s.collectLoop()
	return s
}

// Queue submits one frame for video-decoding. Fails (returning false) if a non-
// keyframe is not contiguous with the last frame queued, per the stateful-decoder
// contiguity rule; the caller must invalidate its cache reservation in that case.
func (s *VideoDecodeStage) Queue(frameIndex int, isKeyframe bool, payload []byte, bypass bool, promise *TextureFramePromise) bool {
	s.mu.Lock()
	if !isKeyframe && frameIndex != s.lastQueuedFrame+1 {
		s.mu.Unlock()
		return false
	}
	s.lastQueuedFrame = frameIndex
	s.mu.Unlock()

	select {
	case s.work <- videoJob{frameIndex: frameIndex, isKeyframe: isKeyframe, payload: payload, bypass: bypass, promise: promise}:
		return true
	case <-s.done:
		promise.Abort()
		return false
	}
}

func (s *VideoDecodeStage) submitLoop() {
	defer s.wg.Done()
	for {
		select {
		case job, ok := <-s.work:
			if !ok {
				return
			}
			if job.bypass {
				// ZStd-RGB and empty-texture frames never touch the AV1 decoder; the
				// content-decode stage discovers which case from the frame header itself
				// and performs the actual decompression there.
				job.promise.FulfillEmpty()
				continue
			}
			s.mu.Lock()
			s.pendingAV1 = append(s.pendingAV1, job.promise)
			s.mu.Unlock()
			if err := s.decoder.Decode(job.frameIndex, job.payload); err != nil {
				s.failPending(job.frameIndex, err)
			}
		case <-s.done:
			return
		}
	}
}

func (s *VideoDecodeStage) collectLoop() {
	defer s.wg.Done()
	pictures := s.decoder.Pictures()
	errs := s.decoder.Errors()
	for {
		select {
		case pic, ok := <-pictures:
			if !ok {
				return
			}
			s.deliverPicture(pic)
		case derr, ok := <-errs:
			if !ok {
				return
			}
			s.failPending(derr.FrameIndex, derr.Err)
		case <-s.done:
			return
		}
	}
}

func (s *VideoDecodeStage) deliverPicture(pic backend.Picture) {
	promise := s.popPending()
	if promise == nil {
		return
	}
	if pic.Width == 0 || pic.Height == 0 || pic.Y == nil {
		promise.Abort()
		if s.reporter != nil {
			s.reporter.Warning(fmt.Sprintf("video-decode: malformed picture for frame %d", pic.FrameIndex))
		}
		return
	}
	promise.FulfillPicture(pic)
}

func (s *VideoDecodeStage) failPending(frameIndex int, err error) {
	promise := s.popPending()
	if promise == nil {
		return
	}
	promise.Abort()
	if s.reporter != nil {
		s.reporter.DecodeError(reporter.DecodeErrorEvent{FrameIndex: frameIndex, Stage: "video-decode", Err: err.Error()})
	}
}

func (s *VideoDecodeStage) popPending() *TextureFramePromise {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.pendingAV1) == 0 {
		return nil
	}
	p := s.pendingAV1[0]
	s.pendingAV1 = s.pendingAV1[1:]
	return p
}

// Abort flushes the decoder's internal state and aborts every promise still
// awaiting a picture; the next frame queued after this must be a keyframe.
func (s *VideoDecodeStage) Abort() {
	s.mu.Lock()
	pending := s.pendingAV1
	s.pendingAV1 = nil
	s.lastQueuedFrame = -1
	s.mu.Unlock()

	for _, p := range pending {
		p.Abort()
	}
	_ = s.decoder.Flush()
}

// Close stops the stage's goroutines, aborts any promise still waiting on a picture
// that will now never arrive (so a blocked content-decode worker can return), and
// releases the decoder.
func (s *VideoDecodeStage) Close() error {
	close(s.done)
	s.wg.Wait()

	s.mu.Lock()
	pending := s.pendingAV1
	s.pendingAV1 = nil
	s.mu.Unlock()
	for _, p := range pending {
		p.Abort()
	}

	return s.decoder.Close()
}
