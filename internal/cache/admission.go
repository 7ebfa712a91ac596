package cache

import "math"

// LockForDecodingNext is the central admission algorithm. Given an iterator over the
// frames that upcoming playback will visit (in order) and the file's frame index, it
// finds the next frame that is not fully resident in the cache (itself and its
// base-keyframe/predecessor dependencies), reserves write-locked slots for whichever
// of those three are missing, and returns them ordered by increasing frame index
// (callers rely on this: decode the keyframe, then the predecessor, then the target).
//
// Returns nil if every upcoming frame (up to Capacity() of them) is already cached, or
// if there is no free, unrequired slot available for a frame that does need decoding.
func (c *Cache[Frame]) LockForDecodingNext(it frameIterator, index frameIndex) []*WriteLock[Frame] {
	c.mu.Lock()
	defer c.mu.Unlock()

	required := make([]bool, len(c.slots))
	requiredCount := 0
	frameToDecode := -1

	for !it.AtEnd() {
		nextFrame := it.Frame()

		slotIdx, ok := c.frameIndexToSlot[nextFrame]
		if !ok {
			frameToDecode = nextFrame
			break
		}

		// Intentionally not de-duplicated: back-and-forth playback may revisit a frame,
		// and over-counting here only guards against looping forever below.
		requiredCount++
		required[slotIdx] = true

		missingDependency := false
		for _, dep := range c.slots[slotIdx].dependsOn {
			if dep < 0 {
				continue
			}
			depSlot, ok := c.frameIndexToSlot[dep]
			if !ok {
				frameToDecode = nextFrame
				missingDependency = true
				break
			}
			if !required[depSlot] {
				requiredCount++
				required[depSlot] = true
			}
		}
		if missingDependency {
			break
		}

		if requiredCount >= len(c.slots) {
			return nil
		}

		it.Next()
	}

	if frameToDecode < 0 {
		return nil
	}

	baseKeyframe, predecessor := index.FindDependencyFrames(frameToDecode)

	frameIfNeeded := frameToDecode
	if c.frameIsCached(frameToDecode) {
		frameIfNeeded = -1
	}
	baseKeyframeIfNeeded := -1
	if baseKeyframe >= 0 && !c.frameIsCached(baseKeyframe) {
		baseKeyframeIfNeeded = baseKeyframe
	}
	predecessorIfNeeded := -1
	if predecessor >= 0 && predecessor != baseKeyframe && !c.frameIsCached(predecessor) {
		predecessorIfNeeded = predecessor
	}

	findFreeSlot := func() int {
		longest := math.MinInt32
		selected := -1
		for slotIdx := range c.slots {
			s := &c.slots[slotIdx]
			if required[slotIdx] || s.isWriteOrReadLocked() {
				continue
			}
			duration := math.MaxInt32
			if s.hasValidData() {
				duration = it.DurationTo(s.frameIndex)
			}
			if duration > longest {
				longest = duration
				selected = slotIdx
			}
		}
		return selected
	}

	baseKeyframeSlot := -1
	if baseKeyframeIfNeeded >= 0 {
		baseKeyframeSlot = findFreeSlot()
		if baseKeyframeSlot < 0 {
			return nil
		}
		c.slots[baseKeyframeSlot].writeLocked = true
	}

	predecessorSlot := -1
	if predecessorIfNeeded >= 0 {
		predecessorSlot = findFreeSlot()
		if predecessorSlot < 0 {
			if baseKeyframeIfNeeded >= 0 {
				c.slots[baseKeyframeSlot].writeLocked = false
			}
			return nil
		}
		c.slots[predecessorSlot].writeLocked = true
	}

	frameSlot := -1
	if frameIfNeeded >= 0 {
		frameSlot = findFreeSlot()
		if frameSlot < 0 {
			if baseKeyframeIfNeeded >= 0 {
				c.slots[baseKeyframeSlot].writeLocked = false
			}
			if predecessorIfNeeded >= 0 {
				c.slots[predecessorSlot].writeLocked = false
			}
			return nil
		}
	}

	if baseKeyframeIfNeeded >= 0 {
		c.configureSlot(baseKeyframeSlot, baseKeyframeIfNeeded, [maxDependencyCount]int{-1, -1})
	}
	if predecessorIfNeeded >= 0 {
		dep2 := -1
		if predecessor-1 != baseKeyframe {
			dep2 = predecessor - 1
		}
		c.configureSlot(predecessorSlot, predecessorIfNeeded, [maxDependencyCount]int{baseKeyframe, dep2})
	}
	if frameIfNeeded >= 0 {
		dep2 := -1
		if predecessor != baseKeyframe {
			dep2 = predecessor
		}
		deps := [maxDependencyCount]int{-1, -1}
		if baseKeyframe >= 0 {
			deps[0] = baseKeyframe
		}
		if dep2 >= 0 {
			if deps[0] < 0 {
				deps[0] = dep2
			} else {
				deps[1] = dep2
			}
		}
		c.configureSlot(frameSlot, frameIfNeeded, deps)
	}

	var locked []*WriteLock[Frame]
	if baseKeyframeIfNeeded >= 0 {
		locked = append(locked, &WriteLock[Frame]{cache: c, slotIndex: baseKeyframeSlot, frameIdx: baseKeyframeIfNeeded})
	}
	if predecessorIfNeeded >= 0 {
		locked = append(locked, &WriteLock[Frame]{cache: c, slotIndex: predecessorSlot, frameIdx: predecessorIfNeeded})
	}
	if frameIfNeeded >= 0 {
		c.slots[frameSlot].writeLocked = true
		locked = append(locked, &WriteLock[Frame]{cache: c, slotIndex: frameSlot, frameIdx: frameIfNeeded})
	}
	return locked
}

// ProgressReport summarizes CheckDecodingProgress's result.
type ProgressReport struct {
	// RequiredFramesCount is the number of distinct slots on the iterator's upcoming
	// path that are already cached (ready or not).
	RequiredFramesCount int
	// ReadyFramesCount is how many consecutive upcoming frames (from the iterator's
	// current position) are Filled, not write-locked, and have their dependencies
	// resident and unlocked too.
	ReadyFramesCount int
	// ReadyFramesStartTime/EndTime bound the timestamps of the ready frames, valid
	// only if ReadyFramesCount > 0. Caller supplies timestamps via frameTimestamps.
	ReadyFramesStartTime, ReadyFramesEndTime int64
}

// frameTimestamps resolves a frame's [start, end) timestamp range, used to compute the
// ready-frame time span. Implemented by the caller (the cache does not store
// timestamps itself; they live in the caller's Frame payload or the container index).
type frameTimestamps interface {
	FrameTimeRange(frameIndex int) (start, end int64)
}

// CheckDecodingProgress walks it (bounded by Capacity() steps to avoid looping forever
// on a cyclic iterator), counting how many consecutive upcoming frames are ready to
// display with currently cached data.
func (c *Cache[Frame]) CheckDecodingProgress(it frameIterator, ts frameTimestamps) ProgressReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	var report ProgressReport
	report.ReadyFramesStartTime = math.MaxInt64
	report.ReadyFramesEndTime = math.MinInt64

	required := make([]bool, len(c.slots))

	for !it.AtEnd() {
		nextFrame := it.Frame()

		slotIdx, ok := c.frameIndexToSlot[nextFrame]
		if !ok || c.slots[slotIdx].writeLocked {
			break
		}
		if !required[slotIdx] {
			report.RequiredFramesCount++
			required[slotIdx] = true
		}

		ready := true
		for _, dep := range c.slots[slotIdx].dependsOn {
			if dep < 0 {
				continue
			}
			depSlot, ok := c.frameIndexToSlot[dep]
			if !ok || c.slots[depSlot].writeLocked {
				ready = false
				break
			}
			if !required[depSlot] {
				report.RequiredFramesCount++
				required[depSlot] = true
			}
		}
		if !ready {
			break
		}

		report.ReadyFramesCount++
		start, end := ts.FrameTimeRange(nextFrame)
		if start < report.ReadyFramesStartTime {
			report.ReadyFramesStartTime = start
		}
		if end > report.ReadyFramesEndTime {
			report.ReadyFramesEndTime = end
		}

		if report.ReadyFramesCount >= len(c.slots) {
			return report
		}
		it.Next()
	}

	return report
}
