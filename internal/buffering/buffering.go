// Package buffering implements the run-vs-wait decision that gates the playback
// clock: whether enough of the upcoming frames are decoded and uploaded to let
// playback advance, or whether the engine should hold the current frame on screen
// and let the pipeline catch up.
package buffering

import (
	"math"
	"sync"
	"time"

	"github.com/scannedreality/xrvideo/internal/cache"
	"github.com/scannedreality/xrvideo/internal/clock"
	"github.com/scannedreality/xrvideo/internal/container"
	"github.com/scannedreality/xrvideo/internal/reporter"
)

// readyFrameTarget is the number of consecutive ready frames the controller wants
// resident before it will consider exiting buffering, capped by cache capacity and
// how many frames remain to be visited in the current playback mode.
const readyFrameTarget = 5

// decodeHeadroom is the fraction below 1.0 average decode latency must sit relative
// to average inter-frame duration (or remaining playback time) to count as
// comfortably real-time.
const decodeHeadroom = 0.85

// nearFullSlack is how close to capacity the required-frame count must get before
// the cache itself is treated as the limiting resource rather than decode speed.
const nearFullSlack = 2

// visibleDelay is how long the controller waits before reporting a buffering state
// to the caller, to absorb brief, imperceptible stalls.
const visibleDelay = 100 * time.Millisecond

// AsyncLoadState mirrors the engine's container-open state machine.
type AsyncLoadState int

const (
	AsyncLoadLoading AsyncLoadState = iota
	AsyncLoadReady
	AsyncLoadError
)

// LatencySource is the rolling per-frame latency estimate the transfer stage
// maintains (read_time, decode_time, transfer_time maximum).
type LatencySource interface {
	AverageLatencyNs() int64
	SampleCount() int
}

// Controller owns the buffering/playing decision for one open video. It is generic
// over the cache's frame payload type purely to match cache.Cache[Frame]; it never
// inspects a slot's contents.
type Controller[Frame any] struct {
	cache    *cache.Cache[Frame]
	clk      *clock.Clock
	index    *container.FrameIndex
	latency  LatencySource
	reporter reporter.Reporter

	mu              sync.Mutex
	buffering       bool
	reportedVisible bool
	since           time.Time
	progressPercent float32
}

// NewController creates a controller that starts in the buffering state, as the
// engine has not yet had a chance to fill the cache.
func NewController[Frame any](c *cache.Cache[Frame], clk *clock.Clock, index *container.FrameIndex, latency LatencySource, rep reporter.Reporter) *Controller[Frame] {
	return &Controller[Frame]{
		cache:     c,
		clk:       clk,
		index:     index,
		latency:   latency,
		reporter:  rep,
		buffering: true,
		since:     time.Now(),
	}
}

// ForceBuffering re-enters the buffering state immediately, e.g. when the render
// lock fails to acquire a display/keyframe/predecessor triple.
func (bc *Controller[Frame]) ForceBuffering() {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	if !bc.buffering {
		bc.buffering = true
		bc.since = time.Now()
		bc.reportedVisible = false
	}
}

// Update evaluates the current decode progress and decides whether the clock may
// advance this tick. Returns true if the caller should call Clock.Advance.
func (bc *Controller[Frame]) Update(asyncState AsyncLoadState) bool {
	if asyncState != AsyncLoadReady {
		bc.enterOrStayBuffering(false)
		return false
	}

	bc.clk.Lock()
	it := clock.NewIterator(bc.clk, bc.index)
	mode := bc.clk.ModeSnapshot()
	forward := bc.clk.PlayingForward()
	current := bc.clk.CurrentTime()
	startNs, endNs := bc.clk.RangeSnapshot()
	bc.clk.Unlock()

	remainingFrames := math.MaxInt32
	if mode == clock.SingleShot {
		boundary := bc.index.FrameCount() - 1
		if !forward {
			boundary = 0
		}
		remainingFrames = it.DurationTo(boundary)
	}

	capacity := bc.cache.Capacity()
	minReady := readyFrameTarget
	if capacity < minReady {
		minReady = capacity
	}
	if remainingFrames < minReady {
		minReady = remainingFrames
	}

	report := bc.cache.CheckDecodingProgress(&it, bc.index)

	lAvg := bc.latency.AverageLatencyNs()
	sampleCount := bc.latency.SampleCount()

	var dAvg int64
	if report.ReadyFramesCount > 0 {
		dAvg = (report.ReadyFramesEndTime - report.ReadyFramesStartTime) / int64(report.ReadyFramesCount)
	}

	var remainingPlaybackNs int64
	if mode == clock.SingleShot {
		if forward {
			remainingPlaybackNs = endNs - current
		} else {
			remainingPlaybackNs = current - startNs
		}
	}
	projectedDecodeNs := lAvg * int64(clampInt(remainingFrames, 0, bc.index.FrameCount()))

	realTimeWithHeadroom := dAvg > 0 && lAvg <= int64(decodeHeadroom*float64(dAvg))
	aheadOfPlayback := mode == clock.SingleShot && remainingPlaybackNs > 0 &&
		projectedDecodeNs <= int64(decodeHeadroom*float64(remainingPlaybackNs))
	cacheNearFull := report.RequiredFramesCount >= capacity-nearFullSlack
	nothingLeftToDecode := remainingFrames == 0

	exit := report.ReadyFramesCount >= minReady &&
		(realTimeWithHeadroom || aheadOfPlayback || cacheNearFull || nothingLeftToDecode)

	fastStall := dAvg > 0 && lAvg > int64(decodeHeadroom*float64(dAvg)) && sampleCount >= 2

	percent := progressPercent(report, minReady, lAvg, dAvg, projectedDecodeNs, remainingPlaybackNs, mode)
	bc.mu.Lock()
	bc.progressPercent = percent
	bc.mu.Unlock()

	if exit {
		bc.exitBuffering()
		return true
	}
	bc.enterOrStayBuffering(fastStall)
	return false
}

func (bc *Controller[Frame]) enterOrStayBuffering(immediate bool) {
	bc.mu.Lock()
	wasBuffering := bc.buffering
	if !wasBuffering {
		bc.since = time.Now()
	}
	bc.buffering = true
	elapsed := time.Since(bc.since)
	bc.mu.Unlock()

	if immediate || elapsed >= visibleDelay {
		bc.reportVisible(true)
	}
}

func (bc *Controller[Frame]) exitBuffering() {
	bc.mu.Lock()
	was := bc.buffering
	bc.buffering = false
	bc.mu.Unlock()
	if was {
		bc.reportVisible(false)
	}
}

func (bc *Controller[Frame]) reportVisible(buffering bool) {
	bc.mu.Lock()
	if bc.reportedVisible == buffering {
		bc.mu.Unlock()
		return
	}
	bc.reportedVisible = buffering
	percent := bc.progressPercent
	bc.mu.Unlock()

	if bc.reporter != nil {
		bc.reporter.BufferingStateChanged(reporter.BufferingEvent{
			Buffering:       buffering,
			ProgressPercent: percent,
		})
	}
}

// IsBuffering reports whether the controller is currently withholding clock
// advancement.
func (bc *Controller[Frame]) IsBuffering() bool {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.buffering
}

// ProgressPercent returns the last computed buffering progress, in [0, 1].
func (bc *Controller[Frame]) ProgressPercent() float32 {
	bc.mu.Lock()
	defer bc.mu.Unlock()
	return bc.progressPercent
}

// progressPercent reports the max of three normalized indicators: how full the
// ready-frame window is relative to its target, how much decode-latency headroom
// remains relative to frame duration, and how far ahead of realtime playback the
// projected remaining decode time is.
func progressPercent(report cache.ProgressReport, minReady int, lAvg, dAvg, projectedDecodeNs, remainingPlaybackNs int64, mode clock.Mode) float32 {
	var ready float32
	if minReady > 0 {
		ready = clampF(float32(report.ReadyFramesCount)/float32(minReady), 0, 1)
	} else {
		ready = 1
	}

	var decodeBudget float32
	if dAvg > 0 {
		decodeBudget = clampF(float32(decodeHeadroom*float64(dAvg))/float32(maxI64(lAvg, 1)), 0, 1)
	}

	var aheadOfPlayback float32
	if mode == clock.SingleShot && remainingPlaybackNs > 0 {
		aheadOfPlayback = clampF(float32(decodeHeadroom*float64(remainingPlaybackNs))/float32(maxI64(projectedDecodeNs, 1)), 0, 1)
	}

	result := ready
	if decodeBudget > result {
		result = decodeBudget
	}
	if aheadOfPlayback > result {
		result = aheadOfPlayback
	}
	return result
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

func clampF(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func maxI64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
