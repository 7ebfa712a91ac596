package buffering

import (
	"testing"

	"github.com/scannedreality/xrvideo/internal/cache"
	"github.com/scannedreality/xrvideo/internal/clock"
	"github.com/scannedreality/xrvideo/internal/container"
	"github.com/scannedreality/xrvideo/internal/reporter"
)

// fakeLatency is a fixed-value LatencySource for controller tests.
type fakeLatency struct {
	avgNs   int64
	samples int
}

func (f fakeLatency) AverageLatencyNs() int64 { return f.avgNs }
func (f fakeLatency) SampleCount() int        { return f.samples }

// buildIndex creates a 10-frame index, one keyframe every 5 frames, 100ms apart.
func buildIndex(t *testing.T) *container.FrameIndex {
	t.Helper()
	idx := &container.FrameIndex{}
	for i := 0; i < 10; i++ {
		idx.PushFrame(int64(i)*100_000_000, int64(i)*1000, i%5 == 0)
	}
	idx.PushVideoEnd(1_000_000_000, 10_000)
	return idx
}

func TestControllerStartsBuffering(t *testing.T) {
	c := cache.New[int](4)
	idx := buildIndex(t)
	clk := clock.New(idx.VideoStartTimestamp(), idx.VideoEndTimestamp())
	bc := NewController(c, clk, idx, fakeLatency{}, reporter.NullReporter{})

	if !bc.IsBuffering() {
		t.Fatal("controller should start in the buffering state")
	}
}

func TestControllerStaysBufferingWithEmptyCache(t *testing.T) {
	c := cache.New[int](4)
	idx := buildIndex(t)
	clk := clock.New(idx.VideoStartTimestamp(), idx.VideoEndTimestamp())
	bc := NewController(c, clk, idx, fakeLatency{}, reporter.NullReporter{})

	advance := bc.Update(AsyncLoadReady)
	if advance {
		t.Fatal("Update should refuse to advance the clock with nothing decoded")
	}
	if !bc.IsBuffering() {
		t.Fatal("controller should remain buffering with an empty cache")
	}
}

func TestControllerForcesBufferingWhenNotReady(t *testing.T) {
	c := cache.New[int](4)
	idx := buildIndex(t)
	clk := clock.New(idx.VideoStartTimestamp(), idx.VideoEndTimestamp())
	bc := NewController(c, clk, idx, fakeLatency{}, reporter.NullReporter{})

	if advance := bc.Update(AsyncLoadLoading); advance {
		t.Fatal("Update must not advance while the container is still loading")
	}

	bc.exitBuffering() // simulate having exited
	bc.ForceBuffering()
	if !bc.IsBuffering() {
		t.Fatal("ForceBuffering should re-enter the buffering state")
	}
}

func TestControllerExitsWhenCacheNearlyFull(t *testing.T) {
	c := cache.New[int](3) // capacity - nearFullSlack(2) == 1 required frame counts as near-full
	idx := buildIndex(t)

	// Fill the cache to capacity: frame 0 (keyframe), then 1, then 2, each depending
	// only on the previous, exactly saturating 3 slots.
	for decoded := 0; decoded < 3; decoded++ {
		clk := clock.New(idx.VideoStartTimestamp(), idx.VideoEndTimestamp())
		clk.Lock()
		it := clock.NewIterator(clk, idx)
		clk.Unlock()
		locks := c.LockForDecodingNext(&it, idx)
		if locks == nil {
			t.Fatalf("LockForDecodingNext returned nil filling slot %d", decoded)
		}
		for _, l := range locks {
			l.Unlock()
		}
	}

	clk := clock.New(idx.VideoStartTimestamp(), idx.VideoEndTimestamp())
	bc := NewController(c, clk, idx, fakeLatency{avgNs: 1, samples: 4}, reporter.NullReporter{})
	advance := bc.Update(AsyncLoadReady)
	if !advance {
		t.Fatal("expected Update to exit buffering once required frames nearly fill the cache")
	}
	if bc.IsBuffering() {
		t.Fatal("controller should no longer report buffering")
	}
}
