package pipeline

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// DecodePermits bounds how many frames may be mid-flight through the video-decode /
// content-decode / transfer stages at once, independent of the cache's own slot
// capacity: a frame holds a permit from the moment the reading stage submits it to
// the video-decode stage until the content-decode stage drops it or the transfer
// stage finishes with it (successfully or not), so a slow GPU upload throttles how fast the reading stage pulls more frames
// off disk rather than only throttling on cache slot exhaustion.
type DecodePermits struct {
	sem *semaphore.Weighted
}

// NewDecodePermits creates a permit pool sized to max concurrent in-flight decodes.
func NewDecodePermits(max int) *DecodePermits {
	if max < 1 {
		max = 1
	}
	return &DecodePermits{sem: semaphore.NewWeighted(int64(max))}
}

// Acquire blocks until a permit is available or ctx is done.
func (p *DecodePermits) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

// Release returns a permit to the pool.
func (p *DecodePermits) Release() {
	p.sem.Release(1)
}
