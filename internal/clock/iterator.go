package clock

import "math"

// frameIndex is the minimal slice of container.FrameIndex the iterator needs, kept as
// an interface so this package does not depend on internal/container.
type frameIndex interface {
	FindFrameIndexForTimestamp(timestamp int64) int
	FrameCount() int
}

// FrameIterator is a virtual cursor over a video's frame index that yields the
// sequence of frames a linear continuation of current playback will visit. Used by
// the reading stage to decide what to decode next, and by the cache to score which
// cached frame is least likely to be needed soon.
type FrameIterator struct {
	atEnd   bool
	current int
	forward bool
	mode    Mode
	index   frameIndex
}

// NewIterator builds a FrameIterator positioned at c's current frame, per index. The
// caller must hold c's lock (see Clock.Lock) for a consistent read of time/mode/speed.
func NewIterator(c *Clock, index frameIndex) FrameIterator {
	return FrameIterator{
		current: index.FindFrameIndexForTimestamp(c.current),
		forward: c.forward,
		mode:    c.mode,
		index:   index,
	}
}

// AtEnd reports whether the last Next call had no effect because the end of a
// SingleShot iterator was reached. Loop and BackAndForth iterators never end.
func (it *FrameIterator) AtEnd() bool { return it.atEnd }

// Frame returns the iterator's current frame index.
func (it *FrameIterator) Frame() int { return it.current }

// Next advances to the next frame that will be played back.
func (it *FrameIterator) Next() {
	frameCount := it.index.FrameCount()
	if it.forward {
		it.current++
	} else {
		it.current--
	}

	switch it.mode {
	case SingleShot:
		if it.current < 0 || it.current >= frameCount {
			it.atEnd = true
		}
		it.current = clampInt(it.current, 0, frameCount-1)
	case Loop:
		if it.current < 0 || it.current >= frameCount {
			it.current = ((it.current % frameCount) + frameCount) % frameCount
		}
	case BackAndForth:
		if it.current < 0 {
			it.current = 0
			it.forward = true
		} else if it.current >= frameCount {
			it.current = frameCount - 1
			it.forward = false
		}
	}
}

// DurationTo computes the number of frames from the iterator's current position
// until frameIndex is reached along the iterator's playback trajectory. Returns
// math.MaxInt32 if frameIndex will never be (re)visited (a SingleShot frame behind
// the current position), or 0 if frameIndex is the current frame.
func (it *FrameIterator) DurationTo(frameIndex int) int {
	frameCount := it.index.FrameCount()
	if frameIndex < 0 || frameIndex >= frameCount {
		return math.MaxInt32
	}

	if it.forward {
		if frameIndex-it.current >= 0 {
			return frameIndex - it.current
		}
		switch it.mode {
		case SingleShot:
			return math.MaxInt32
		case Loop:
			return frameCount - (it.current - frameIndex)
		case BackAndForth:
			return 2*(frameCount-it.current) - 1 + (it.current - frameIndex)
		}
	} else {
		if it.current-frameIndex >= 0 {
			return it.current - frameIndex
		}
		switch it.mode {
		case SingleShot:
			return math.MaxInt32
		case Loop:
			return frameCount - (frameIndex - it.current)
		case BackAndForth:
			return 2*it.current + 1 + (frameIndex - it.current)
		}
	}
	return -1
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
