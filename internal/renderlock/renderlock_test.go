package renderlock

import (
	"testing"

	"github.com/scannedreality/xrvideo/internal/cache"
	"github.com/scannedreality/xrvideo/internal/clock"
	"github.com/scannedreality/xrvideo/internal/container"
)

// buildFilledCache decodes frames 0..n-1 (in order) into a capacity-n cache using the
// real admission algorithm, so dependency bookkeeping matches production behavior.
func buildFilledCache(t *testing.T, idx *container.FrameIndex, n int) *cache.Cache[int] {
	t.Helper()
	c := cache.New[int](n)
	for decoded := 0; decoded < n; decoded++ {
		clk := clock.New(idx.VideoStartTimestamp(), idx.VideoEndTimestamp())
		clk.Lock()
		it := clock.NewIterator(clk, idx)
		clk.Unlock()
		locks := c.LockForDecodingNext(&it, idx)
		if locks == nil {
			t.Fatalf("LockForDecodingNext returned nil filling frame %d", decoded)
		}
		for _, l := range locks {
			l.Unlock()
		}
	}
	return c
}

func buildIndex(t *testing.T, n int) *container.FrameIndex {
	t.Helper()
	idx := &container.FrameIndex{}
	for i := 0; i < n; i++ {
		idx.PushFrame(int64(i)*100, int64(i)*1000, i%5 == 0)
	}
	idx.PushVideoEnd(int64(n)*100, int64(n)*1000)
	return idx
}

func TestCreateOnKeyframeLocksOnlyDisplaySlot(t *testing.T) {
	idx := buildIndex(t, 3)
	c := buildFilledCache(t, idx, 3)

	l := Create(c, idx, 0, 50)
	if l == nil {
		t.Fatal("expected a render lock on a fully cached keyframe")
	}
	defer l.Drop()

	if l.KeyframeSlot() != l.DisplaySlot() {
		t.Errorf("keyframe slot should equal display slot for a keyframe display frame")
	}
	if l.PredecessorSlot() != -1 {
		t.Errorf("PredecessorSlot() = %d, want -1 for a keyframe", l.PredecessorSlot())
	}
}

func TestCreateOnDependentFrameLocksDependencyChain(t *testing.T) {
	idx := buildIndex(t, 3)
	c := buildFilledCache(t, idx, 3)

	l := Create(c, idx, 2, 250)
	if l == nil {
		t.Fatal("expected a render lock: frames 0, 1, 2 are all cached")
	}
	defer l.Drop()

	if l.DisplaySlot() < 0 {
		t.Errorf("DisplaySlot() should be valid")
	}
	if l.KeyframeSlot() == l.DisplaySlot() {
		t.Errorf("frame 2's keyframe slot should differ from its display slot")
	}
	if l.PredecessorSlot() == l.DisplaySlot() {
		t.Errorf("frame 2's predecessor slot should differ from its display slot")
	}
	if l.PredecessorSlot() == l.KeyframeSlot() {
		t.Errorf("frame 2's predecessor (frame 1) should differ from its keyframe (frame 0)")
	}
}

func TestCreateReturnsNilWhenDependencyMissing(t *testing.T) {
	idx := buildIndex(t, 3)
	c := cache.New[int](3) // nothing decoded

	if l := Create(c, idx, 2, 250); l != nil {
		t.Fatal("expected nil render lock with an empty cache")
	}
}

func TestIntraFrameTimeClampedToUnitRange(t *testing.T) {
	idx := buildIndex(t, 3)
	c := buildFilledCache(t, idx, 3)

	l := Create(c, idx, 1, 100) // frame 1 spans [100, 200)
	if l == nil {
		t.Fatal("expected a render lock")
	}
	defer l.Drop()

	if got := l.IntraFrameTime(); got != 0 {
		t.Errorf("IntraFrameTime() = %v, want 0 at the frame's start timestamp", got)
	}
}
