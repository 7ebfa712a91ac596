package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scannedreality/xrvideo/backend"
	"github.com/scannedreality/xrvideo/internal/reporter"
)

// transferJob is one populated, still write-locked slot ready for GPU upload.
type transferJob struct {
	frameIndex int
	lock       *WriteLock
	readNs     int64
	decodeNs   int64
}

// latencyWindowSize bounds the rolling decode-latency sample window the buffering
// controller reads from.
const latencyWindowSize = 32

// gpuFenceTimeout bounds how long the transfer stage waits for a GPU upload to
// complete before giving up and logging.
const gpuFenceTimeout = 3 * time.Second

// TransferStage uploads a decoded slot's resources to the GPU backend, then releases
// its write-lock. It also tracks a rolling window of effective per-frame decode
// latency (max of read/decode/transfer time), consumed by the buffering controller.
type TransferStage struct {
	backend  backend.GpuFrameBackend
	permits  *DecodePermits
	reporter reporter.Reporter

	work chan transferJob
	done chan struct{}
	wg   sync.WaitGroup

	latMu    sync.Mutex
	latency  [latencyWindowSize]int64
	latCount int
	latNext  int
}

// NewTransferStage starts the stage's worker goroutine. permits is released exactly
// once per job processed, matching the acquire in the reading stage.
func NewTransferStage(gpu backend.GpuFrameBackend, permits *DecodePermits, rep reporter.Reporter) *TransferStage {
	s := &TransferStage{
		backend:  gpu,
		permits:  permits,
		reporter: rep,
		work:     make(chan transferJob, 64),
		done:     make(chan struct{}),
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

// Queue hands off a populated slot for GPU upload.
func (s *TransferStage) Queue(job transferJob) {
	select {
	case s.work <- job:
	case <-s.done:
		job.lock.Invalidate()
		s.permits.Release()
	}
}

func (s *TransferStage) loop() {
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

func (s *TransferStage) process(job transferJob) {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), gpuFenceTimeout)
	defer cancel()

	slot := job.lock.Frame()
	token, err := s.backend.UploadFrameResources(ctx, job.lock.SlotIndex(), slot.Decoded)
	if err == nil {
		err = s.backend.AwaitUpload(ctx, token)
	}
	transferNs := time.Since(start).Nanoseconds()

	if err != nil {
		job.lock.Invalidate()
		s.permits.Release()
		if s.reporter != nil {
			s.reporter.DecodeError(reporter.DecodeErrorEvent{FrameIndex: job.frameIndex, Stage: "transfer", Err: fmt.Sprintf("gpu upload: %v", err)})
		}
		return
	}

	slot.Upload = token
	job.lock.Unlock()
	s.permits.Release()
	s.recordLatency(maxI64(job.readNs, job.decodeNs, transferNs))
}

func (s *TransferStage) recordLatency(ns int64) {
	s.latMu.Lock()
	defer s.latMu.Unlock()
	s.latency[s.latNext] = ns
	s.latNext = (s.latNext + 1) % latencyWindowSize
	if s.latCount < latencyWindowSize {
		s.latCount++
	}
}

// AverageLatencyNs returns the rolling average of recorded per-frame latencies, or 0
// if no samples have been recorded yet.
func (s *TransferStage) AverageLatencyNs() int64 {
	s.latMu.Lock()
	defer s.latMu.Unlock()
	if s.latCount == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < s.latCount; i++ {
		sum += s.latency[i]
	}
	return sum / int64(s.latCount)
}

// SampleCount returns how many latency samples are currently recorded.
func (s *TransferStage) SampleCount() int {
	s.latMu.Lock()
	defer s.latMu.Unlock()
	return s.latCount
}

// Close stops the stage's worker goroutine.
func (s *TransferStage) Close() {
	close(s.done)
	s.wg.Wait()
}

func maxI64(values ...int64) int64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
