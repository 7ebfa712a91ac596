package pipeline

import (
	"sync"
	"time"

	"github.com/scannedreality/xrvideo/internal/codec"
	"github.com/scannedreality/xrvideo/internal/reporter"
)

// contentJob is one unit of work submitted to the content-decode stage: a parsed
// frame chunk, its texture promise, and (for frames actually requested by the
// cache's admission algorithm) the write-lock to populate.
type contentJob struct {
	item    readWorkItem
	promise *TextureFramePromise
}

// ContentDecodeStage runs decode_content against each parsed frame chunk, waiting on
// the matching TextureFramePromise for AV1-decoded frames, and hands the populated
// slot off to the transfer stage.
type ContentDecodeStage struct {
	ctx      *codec.DecodingContext
	transfer *TransferStage
	permits  *DecodePermits
	reporter reporter.Reporter

	work chan contentJob
	done chan struct{}
	wg   sync.WaitGroup
}

// NewContentDecodeStage starts the stage's single worker goroutine. Frames must be
// processed in strictly increasing index order within a GOP (enforced upstream by
// the reading stage's contiguity rule and the FIFO work queue), since decode_content
// has no per-frame concurrency of its own. permits is the same pool the reading stage
// acquires from; every job that held a permit must release it on every exit path,
// whether or not the job reaches the transfer stage.
func NewContentDecodeStage(ctx *codec.DecodingContext, transfer *TransferStage, permits *DecodePermits, rep reporter.Reporter) *ContentDecodeStage {
	s := &ContentDecodeStage{
		ctx:      ctx,
		transfer: transfer,
		permits:  permits,
		reporter: rep,
		work:     make(chan contentJob, 64),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

// Queue submits a parsed frame for content-decoding.
func (s *ContentDecodeStage) Queue(item readWorkItem, promise *TextureFramePromise) {
	select {
	case s.work <- contentJob{item: item, promise: promise}:
	case <-s.done:
	}
}

func (s *ContentDecodeStage) loop() {
	defer s.wg.Done()
	for {
		select {
		case job, ok := <-s.work:
			if !ok {
				return
			}
			s.process(job)
		case <-s.done:
			return
		}
	}
}

func (s *ContentDecodeStage) process(job contentJob) {
	aborted, kind, pic, _ := job.promise.Wait()

	if job.item.lock == nil {
		// State-advance-only: the decoder needed this frame to stay contiguous, but
		// nothing downstream requested it. Discard once the promise settles.
		return
	}

	if aborted {
		job.item.lock.Invalidate()
		s.permits.Release()
		if s.reporter != nil {
			s.reporter.DecodeError(reporter.DecodeErrorEvent{FrameIndex: job.item.frameIndex, Stage: "content-decode", Err: "texture promise aborted"})
		}
		return
	}

	var picturePtr *codec.TexturePicture
	if kind == textureKindPicture {
		picturePtr = &codec.TexturePicture{
			Y: pic.Y, U: pic.U, V: pic.V,
			Width: uint32(pic.Width), Height: uint32(pic.Height),
		}
	}

	decodeStart := time.Now()
	decoded, err := codec.DecodeContent(s.ctx, job.item.parsed, picturePtr)
	decodeNs := time.Since(decodeStart).Nanoseconds()
	if err != nil {
		job.item.lock.Invalidate()
		s.permits.Release()
		if s.reporter != nil {
			s.reporter.DecodeError(reporter.DecodeErrorEvent{FrameIndex: job.item.frameIndex, Stage: "content-decode", Err: err.Error()})
		}
		return
	}

	*job.item.lock.Frame() = Slot{Decoded: decoded}

	s.transfer.Queue(transferJob{
		frameIndex: job.item.frameIndex,
		lock:       job.item.lock,
		readNs:     job.item.readNs,
		decodeNs:   decodeNs,
	})
}

// Close stops the stage's worker goroutine.
func (s *ContentDecodeStage) Close() {
	close(s.done)
	s.wg.Wait()
}
