package clock

import "testing"

func TestAdvanceSingleShotClamps(t *testing.T) {
	c := New(0, 1000)
	c.SetPlaybackConditions(0, 1000, SingleShot, 1)

	got := c.Advance(2000)
	if got != 1000 {
		t.Errorf("Advance() = %d, want 1000 (clamped)", got)
	}
	if c.PlayingForward() != true {
		t.Errorf("PlayingForward() = false, want true (SingleShot does not flip)")
	}
}

func TestAdvanceLoopWraps(t *testing.T) {
	c := New(0, 1000)
	c.SetPlaybackConditions(0, 1000, Loop, 1)

	got := c.Advance(1200)
	if got != 200 {
		t.Errorf("Advance() = %d, want 200 (wrapped)", got)
	}
}

func TestAdvanceBackAndForthReflects(t *testing.T) {
	c := New(0, 1000)
	c.SetPlaybackConditions(0, 1000, BackAndForth, 1)

	got := c.Advance(1200)
	if got != 800 {
		t.Errorf("Advance() = %d, want 800 (reflected)", got)
	}
	if c.PlayingForward() {
		t.Errorf("PlayingForward() = true, want false after reflecting off the end boundary")
	}
}

func TestAdvanceBackwardPastStartReflects(t *testing.T) {
	c := New(500, 1000)
	c.SetPlaybackConditions(0, 1000, BackAndForth, 1)
	c.Seek(100, false)

	got := c.Advance(300)
	if got != 200 {
		t.Errorf("Advance() = %d, want 200 (reflected off the start boundary)", got)
	}
	if !c.PlayingForward() {
		t.Errorf("PlayingForward() = false, want true after reflecting off the start boundary")
	}
}

func TestSeekClampsToRange(t *testing.T) {
	c := New(0, 1000)
	c.SetPlaybackConditions(0, 1000, SingleShot, 1)

	got := c.Seek(5000, true)
	if got != 1000 {
		t.Errorf("Seek() = %d, want 1000 (clamped)", got)
	}
}

// fakeIndex is a minimal frameIndex for iterator tests, independent of the container
// package's on-disk format.
type fakeIndex struct {
	frames []int64 // per-frame start timestamps
}

func (f fakeIndex) FrameCount() int { return len(f.frames) }

func (f fakeIndex) FindFrameIndexForTimestamp(ts int64) int {
	best := -1
	for i, t := range f.frames {
		if t <= ts {
			best = i
		}
	}
	return best
}

func TestFrameIteratorSingleShotEndsAtLastFrame(t *testing.T) {
	c := New(0, 400)
	c.SetPlaybackConditions(0, 400, SingleShot, 1)
	idx := fakeIndex{frames: []int64{0, 100, 200, 300, 400}}

	c.Lock()
	it := NewIterator(c, idx)
	c.Unlock()

	count := 0
	for !it.AtEnd() && count < 10 {
		it.Next()
		count++
	}
	if it.Frame() != 4 {
		t.Errorf("final frame = %d, want 4", it.Frame())
	}
	if count != 5 {
		t.Errorf("iterated %d times before AtEnd, want 5", count)
	}
}

func TestFrameIteratorLoopWrapsAroundForever(t *testing.T) {
	c := New(0, 300)
	c.SetPlaybackConditions(0, 300, Loop, 1)
	idx := fakeIndex{frames: []int64{0, 100, 200, 300}}

	c.Lock()
	it := NewIterator(c, idx)
	c.Unlock()

	for i := 0; i < 10; i++ {
		it.Next()
	}
	if it.AtEnd() {
		t.Errorf("Loop iterator should never reach AtEnd")
	}
}

func TestFrameIteratorDurationToSelf(t *testing.T) {
	c := New(100, 400)
	c.SetPlaybackConditions(0, 400, SingleShot, 1)
	idx := fakeIndex{frames: []int64{0, 100, 200, 300, 400}}

	c.Lock()
	it := NewIterator(c, idx)
	c.Unlock()

	if got := it.DurationTo(it.Frame()); got != 0 {
		t.Errorf("DurationTo(current frame) = %d, want 0", got)
	}
}
