package cache

import "testing"

// fakeFrameIndex is a minimal frameIndex for admission tests: frame i always depends
// on keyframe 0 and predecessor i-1, except the keyframe itself which has no deps.
type fakeFrameIndex struct{}

func (fakeFrameIndex) FindDependencyFrames(frameIndex int) (baseKeyframe, predecessor int) {
	if frameIndex == 0 {
		return -1, -1
	}
	if frameIndex-1 == 0 {
		return 0, -1
	}
	return 0, frameIndex - 1
}

// fakeIterator is a minimal frameIterator walking frames 0..n-1 forward, never ending.
type fakeIterator struct {
	current, n int
}

func (f *fakeIterator) AtEnd() bool { return false }
func (f *fakeIterator) Frame() int  { return f.current }
func (f *fakeIterator) Next()       { f.current = (f.current + 1) % f.n }
func (f *fakeIterator) DurationTo(frameIndex int) int {
	d := frameIndex - f.current
	if d < 0 {
		d += f.n
	}
	return d
}

type fakeTimestamps struct{}

func (fakeTimestamps) FrameTimeRange(frameIndex int) (start, end int64) {
	return int64(frameIndex) * 100, int64(frameIndex)*100 + 100
}

func TestLockForDecodingNextFillsEmptyCache(t *testing.T) {
	c := New[int](4)
	it := &fakeIterator{current: 0, n: 10}
	idx := fakeFrameIndex{}

	locks := c.LockForDecodingNext(it, idx)
	if len(locks) != 1 {
		t.Fatalf("expected 1 lock for the keyframe at frame 0, got %d", len(locks))
	}
	if locks[0].FrameIndex() != 0 {
		t.Errorf("FrameIndex() = %d, want 0", locks[0].FrameIndex())
	}
	locks[0].Unlock()
}

func TestLockForDecodingNextOrdersKeyframeBeforePredecessorBeforeTarget(t *testing.T) {
	c := New[int](4)
	it := &fakeIterator{current: 2, n: 10}
	idx := fakeFrameIndex{}

	// Frame 2 depends on keyframe 0 and predecessor 1; none are cached yet.
	locks := c.LockForDecodingNext(it, idx)
	if len(locks) != 3 {
		t.Fatalf("expected 3 locks (keyframe, predecessor, target), got %d", len(locks))
	}
	want := []int{0, 1, 2}
	for i, l := range locks {
		if l.FrameIndex() != want[i] {
			t.Errorf("locks[%d].FrameIndex() = %d, want %d", i, l.FrameIndex(), want[i])
		}
	}
	for _, l := range locks {
		l.Unlock()
	}
}

func TestLockForDecodingNextSkipsAlreadyCachedFrames(t *testing.T) {
	c := New[int](4)
	it := &fakeIterator{current: 0, n: 10}
	idx := fakeFrameIndex{}

	lock0 := c.LockForDecodingNext(it, idx)
	if len(lock0) != 1 {
		t.Fatalf("setup: expected 1 lock, got %d", len(lock0))
	}
	lock0[0].Unlock()

	// A single-frame trajectory that only ever revisits frame 0, which is already
	// cached: nothing new needs to be decoded.
	it2 := &fakeIterator{current: 0, n: 1}
	locks := c.LockForDecodingNext(it2, idx)
	if locks != nil {
		t.Fatalf("expected no locks once the only required frame is already cached, got %d", len(locks))
	}
}

func TestLockForDecodingNextReturnsNilWhenCacheFull(t *testing.T) {
	c := New[int](1)
	it := &fakeIterator{current: 2, n: 10}
	idx := fakeFrameIndex{}

	// Frame 2 needs 3 slots (keyframe, predecessor, target) but the cache only has 1.
	locks := c.LockForDecodingNext(it, idx)
	if locks != nil {
		t.Fatalf("expected nil when the cache cannot fit all dependencies, got %d locks", len(locks))
	}
}

func TestLockForReadingAtomicFailure(t *testing.T) {
	c := New[int](4)
	it := &fakeIterator{current: 0, n: 10}
	idx := fakeFrameIndex{}

	locks := c.LockForDecodingNext(it, idx)
	locks[0].Unlock()

	// Frame 0 is cached, frame 5 is not: the whole request must fail.
	readLocks := c.LockForReading([]int{0, 5})
	if readLocks != nil {
		t.Fatalf("expected nil (atomic failure) when one requested frame is uncached")
	}

	readLocks = c.LockForReading([]int{0})
	if readLocks == nil || len(readLocks) != 1 {
		t.Fatalf("expected a single read lock on frame 0")
	}
	readLocks[0].Unlock()
}

func TestCheckDecodingProgressCountsReadyFrames(t *testing.T) {
	c := New[int](4)
	idx := fakeFrameIndex{}
	ts := fakeTimestamps{}

	for _, frame := range []int{0, 1, 2} {
		it := &fakeIterator{current: frame, n: 10}
		locks := c.LockForDecodingNext(it, idx)
		for _, l := range locks {
			l.Unlock()
		}
	}

	it := &fakeIterator{current: 0, n: 10}
	report := c.CheckDecodingProgress(it, ts)
	if report.ReadyFramesCount != 3 {
		t.Errorf("ReadyFramesCount = %d, want 3", report.ReadyFramesCount)
	}
	if report.ReadyFramesStartTime != 0 {
		t.Errorf("ReadyFramesStartTime = %d, want 0", report.ReadyFramesStartTime)
	}
	if report.ReadyFramesEndTime != 300 {
		t.Errorf("ReadyFramesEndTime = %d, want 300", report.ReadyFramesEndTime)
	}
}

func TestCheckDecodingProgressStopsAtWriteLockedFrame(t *testing.T) {
	c := New[int](4)
	idx := fakeFrameIndex{}
	ts := fakeTimestamps{}

	it0 := &fakeIterator{current: 0, n: 10}
	locks := c.LockForDecodingNext(it0, idx)
	for _, l := range locks {
		l.Unlock()
	}

	it1 := &fakeIterator{current: 1, n: 10}
	locks = c.LockForDecodingNext(it1, idx)
	// Leave frame 1 write-locked (decode still "in flight").

	it := &fakeIterator{current: 0, n: 10}
	report := c.CheckDecodingProgress(it, ts)
	if report.ReadyFramesCount != 1 {
		t.Errorf("ReadyFramesCount = %d, want 1 (stops before the write-locked frame)", report.ReadyFramesCount)
	}
	for _, l := range locks {
		l.Invalidate()
	}
}

func TestDebugSnapshotReflectsLockedSlots(t *testing.T) {
	c := New[int](2)
	it := &fakeIterator{current: 0, n: 10}
	idx := fakeFrameIndex{}

	locks := c.LockForDecodingNext(it, idx)
	snap := c.DebugSnapshot()
	if len(snap) != 1 {
		t.Fatalf("expected 1 occupied slot, got %d", len(snap))
	}
	if !snap[0].WriteLocked {
		t.Errorf("expected slot to report write-locked while held")
	}
	for _, l := range locks {
		l.Unlock()
	}

	snap = c.DebugSnapshot()
	if snap[0].WriteLocked {
		t.Errorf("expected slot to report unlocked after Unlock")
	}
}
