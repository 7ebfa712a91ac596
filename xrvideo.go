// Package xrvideo provides a Go engine for playing back XRVideo volumetric video
// files: chunked container parsing, a bounded decoded-frame cache, a four-stage
// async decode pipeline, and the buffering/render-lock protocol an external renderer
// drives each frame.
package xrvideo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/scannedreality/xrvideo/backend"
	"github.com/scannedreality/xrvideo/internal/buffering"
	"github.com/scannedreality/xrvideo/internal/cache"
	"github.com/scannedreality/xrvideo/internal/clock"
	"github.com/scannedreality/xrvideo/internal/codec"
	"github.com/scannedreality/xrvideo/internal/config"
	"github.com/scannedreality/xrvideo/internal/container"
	"github.com/scannedreality/xrvideo/internal/pipeline"
	"github.com/scannedreality/xrvideo/internal/renderlock"
	"github.com/scannedreality/xrvideo/internal/reporter"
	"github.com/scannedreality/xrvideo/internal/sysinfo"
)

// maxKeyframeHintsReported bounds OpenedSummary.HasKeyframeAt so a long video doesn't
// produce an enormous event payload.
const maxKeyframeHintsReported = 64

// Mode selects playback boundary behavior; see internal/clock.Mode.
type Mode = clock.Mode

const (
	SingleShot   = clock.SingleShot
	Loop         = clock.Loop
	BackAndForth = clock.BackAndForth
)

// AsyncLoadState mirrors the engine's overall container-open/load state, reported to
// the buffering controller alongside pipeline readiness.
type AsyncLoadState = buffering.AsyncLoadState

const (
	AsyncLoadLoading = buffering.AsyncLoadLoading
	AsyncLoadReady   = buffering.AsyncLoadReady
	AsyncLoadError   = buffering.AsyncLoadError
)

// Option configures an Engine before it opens a file.
type Option func(*config.Config)

// WithCacheCapacity fixes the decoded-frame cache size instead of auto-sizing it from
// available system memory and the video's texture resolution.
func WithCacheCapacity(n int) Option { return func(c *config.Config) { c.CacheCapacity = n } }

// WithMaxInFlightDecodes caps how many frames may be mid-flight through the decode
// pipeline at once.
func WithMaxInFlightDecodes(n int) Option {
	return func(c *config.Config) { c.MaxInFlightDecodes = n }
}

// WithPlaybackSpeed sets the initial clock speed multiplier.
func WithPlaybackSpeed(speed float64) Option {
	return func(c *config.Config) { c.PlaybackSpeed = speed }
}

// WithVerbose enables Reporter.Verbose output.
func WithVerbose() Option { return func(c *config.Config) { c.Verbose = true } }

// Engine owns one open XRVideo file's full playback pipeline: the container reader,
// decoded-frame cache, four decode stages, playback clock, and buffering controller.
// An Engine must be closed with Close once the caller is done with it.
type Engine struct {
	cfg *config.Config
	rep reporter.Reporter

	file        *container.File
	decodingCtx *codec.DecodingContext
	clk         *clock.Clock
	cache       *pipeline.Cache

	transfer *pipeline.TransferStage
	content  *pipeline.ContentDecodeStage
	video    *pipeline.VideoDecodeStage
	reading  *pipeline.ReadingStage
	permits  *pipeline.DecodePermits
	buf      *buffering.Controller[pipeline.Slot]

	mu              sync.Mutex
	asyncState      buffering.AsyncLoadState
	lastUpdate      time.Time
	playbackStart   time.Time
	framesDisplayed int
	completeSeen    bool
}

// Open parses path's container, starts the decode pipeline, and returns a ready
// Engine. decoder and gpu are supplied by the caller: this module defines their
// contracts (backend.AV1Decoder, backend.GpuFrameBackend) but implements neither
// concretely beyond a reference pass-through decoder and a no-op GPU backend. rep may
// be nil, in which case events are discarded.
func Open(stream container.InputStream, isStreaming bool, decoder backend.AV1Decoder, gpu backend.GpuFrameBackend, rep Reporter, opts ...Option) (*Engine, error) {
	cfg := config.NewConfig("")
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rep == nil {
		rep = reporter.NullReporter{}
	}

	file, err := container.Open(stream, isStreaming)
	if err != nil {
		rep.Error(reporter.ReporterError{Title: "open failed", Message: err.Error()})
		return nil, err
	}

	texW, texH, err := peekTextureDimensions(file)
	if err != nil {
		_ = file.Close()
		rep.Error(reporter.ReporterError{Title: "open failed", Message: err.Error()})
		return nil, err
	}

	decodingCtx, err := codec.NewDecodingContext()
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	capacity := cfg.CacheCapacity
	if capacity == 0 {
		capacity = sysinfo.DefaultCacheCapacity(texW, texH, config.MinCacheCapacity, 64)
	}
	c := cache.New[pipeline.Slot](capacity)

	clk := clock.New(file.Index.VideoStartTimestamp(), file.Index.VideoEndTimestamp())
	clk.SetSpeed(cfg.PlaybackSpeed)

	permits := pipeline.NewDecodePermits(cfg.MaxInFlightDecodes)
	transfer := pipeline.NewTransferStage(gpu, permits, rep)
	content := pipeline.NewContentDecodeStage(decodingCtx, transfer, permits, rep)
	video := pipeline.NewVideoDecodeStage(decoder, rep)
	reading := pipeline.NewReadingStage(file, clk, c, video, content, permits, rep)
	buf := buffering.NewController(c, clk, file.Index, transfer, rep)

	e := &Engine{
		cfg:         cfg,
		rep:         rep,
		file:        file,
		decodingCtx: decodingCtx,
		clk:         clk,
		cache:       c,
		transfer:    transfer,
		content:     content,
		video:       video,
		reading:     reading,
		permits:     permits,
		buf:         buf,
		asyncState:  buffering.AsyncLoadReady,
	}

	duration := time.Duration(file.Index.VideoEndTimestamp() - file.Index.VideoStartTimestamp())
	rep.Opened(reporter.OpenedSummary{
		Duration:      duration.String(),
		DurationMs:    duration.Milliseconds(),
		FrameCount:    file.Index.FrameCount(),
		HasKeyframeAt: keyframeHints(file.Index),
		CacheCapacity: capacity,
	})

	reading.Start()
	return e, nil
}

func peekTextureDimensions(file *container.File) (width, height uint32, err error) {
	first := file.Index.At(0)
	if err := file.Reader.Seek(first.Offset); err != nil {
		return 0, 0, fmt.Errorf("xrvideo: seek to first frame: %w", err)
	}
	data, _, err := file.Reader.ReadNextFrame()
	if err != nil {
		return 0, 0, fmt.Errorf("xrvideo: read first frame: %w", err)
	}
	parsed, err := container.ParseFrame(data)
	if err != nil {
		return 0, 0, fmt.Errorf("xrvideo: parse first frame: %w", err)
	}
	return parsed.Frame.TextureWidth, parsed.Frame.TextureHeight, nil
}

func keyframeHints(index *container.FrameIndex) []int {
	var hints []int
	for i := 0; i < index.FrameCount() && len(hints) < maxKeyframeHintsReported; i++ {
		if index.At(i).IsKeyframe {
			hints = append(hints, i)
		}
	}
	return hints
}

// Tick advances playback by the wall-clock time elapsed since the previous Tick
// (zero on the first call), gated by the buffering controller: if not enough of the
// upcoming frames are ready, the clock holds at its current position instead.
// Callers drive this once per render frame.
func (e *Engine) Tick() {
	now := time.Now()
	e.mu.Lock()
	var elapsed time.Duration
	if !e.lastUpdate.IsZero() {
		elapsed = now.Sub(e.lastUpdate)
	}
	e.lastUpdate = now
	if e.playbackStart.IsZero() {
		e.playbackStart = now
	}
	asyncState := e.asyncState
	e.mu.Unlock()

	if !e.buf.Update(asyncState) || asyncState != buffering.AsyncLoadReady {
		return
	}

	newTime := e.clk.Advance(elapsed.Nanoseconds())
	if e.clk.ModeSnapshot() != clock.SingleShot {
		return
	}

	startNs, endNs := e.clk.RangeSnapshot()
	atEnd := (e.clk.PlayingForward() && newTime >= endNs) || (!e.clk.PlayingForward() && newTime <= startNs)
	if atEnd {
		e.reportPlaybackCompleteOnce()
	}
}

func (e *Engine) reportPlaybackCompleteOnce() {
	e.mu.Lock()
	if e.completeSeen {
		e.mu.Unlock()
		return
	}
	e.completeSeen = true
	displayed := e.framesDisplayed
	elapsed := time.Since(e.playbackStart)
	e.mu.Unlock()

	e.rep.PlaybackComplete(reporter.PlaybackCompleteSummary{FramesDisplayed: displayed, TotalTime: elapsed})
}

// CreateRenderLock resolves the current playback time to a display frame and
// atomically read-locks it plus its dependencies, per the render lock protocol. It
// returns nil (and forces the engine back into the buffering state) if the frame or
// a dependency is not yet resident in the cache; the caller should hold its previous
// frame on screen and retry next Tick.
func (e *Engine) CreateRenderLock() *renderlock.Lock[pipeline.Slot] {
	playbackTime := e.clk.CurrentTime()
	displayFrame := e.file.Index.FindFrameIndexForTimestamp(playbackTime)
	if displayFrame < 0 {
		return nil
	}

	lock := renderlock.Create(e.cache, e.file.Index, displayFrame, playbackTime)
	if lock == nil {
		e.buf.ForceBuffering()
		return nil
	}

	e.mu.Lock()
	e.framesDisplayed++
	e.mu.Unlock()
	return lock
}

// Seek moves the playback clock to timestampNs (clamped to the video's range),
// playing forward afterward iff forward is true, and cancels in-flight decode work
// per the pipeline's cancellation protocol: the reading stage aborts its current
// read, and the video-decode stage flushes its internal reorder state so the next
// frame submitted after the seek must be a keyframe. Returns the resolved (possibly
// clamped) timestamp.
func (e *Engine) Seek(timestampNs int64, forward bool) int64 {
	resolved := e.clk.Seek(timestampNs, forward)

	e.reading.AbortCurrentFrames()
	e.video.Abort()

	e.mu.Lock()
	e.completeSeen = false
	e.mu.Unlock()

	e.rep.SeekPerformed(reporter.SeekEvent{
		RequestedMs: timestampNs / int64(time.Millisecond),
		ResolvedMs:  resolved / int64(time.Millisecond),
		Forward:     forward,
	})
	return resolved
}

// SetMode changes the playback boundary behavior.
func (e *Engine) SetMode(mode Mode) {
	e.clk.SetMode(mode)
	e.mu.Lock()
	e.completeSeen = false
	e.mu.Unlock()
}

// SetSpeed changes the clock's speed multiplier.
func (e *Engine) SetSpeed(speed float64) { e.clk.SetSpeed(speed) }

// SetAsyncLoadState lets the caller report an external asynchronous-load condition
// (e.g. a streaming transport still prefetching initial data) that should hold
// playback in the buffering state regardless of the pipeline's own readiness.
func (e *Engine) SetAsyncLoadState(state AsyncLoadState) {
	e.mu.Lock()
	e.asyncState = state
	e.mu.Unlock()
}

// GetAsyncLoadState returns the load state last set via SetAsyncLoadState (AsyncLoadReady
// by default, once Open succeeds).
func (e *Engine) GetAsyncLoadState() AsyncLoadState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.asyncState
}

// GetPlaybackTime returns the clock's current timestamp, in nanoseconds.
func (e *Engine) GetPlaybackTime() int64 { return e.clk.CurrentTime() }

// GetBufferingState reports whether playback is currently paused waiting for the
// decode pipeline, and the buffering controller's progress estimate in [0, 1].
func (e *Engine) GetBufferingState() (isBuffering bool, progress float32) {
	return e.buf.IsBuffering(), e.buf.ProgressPercent()
}

// FrameCount returns the number of frames in the open video.
func (e *Engine) FrameCount() int { return e.file.Index.FrameCount() }

// Duration returns the video's total playback duration.
func (e *Engine) Duration() time.Duration {
	return time.Duration(e.file.Index.VideoEndTimestamp() - e.file.Index.VideoStartTimestamp())
}

// Close shuts the pipeline down in dependency order — reading, then video-decode,
// then content-decode, then transfer — so that each stage stops feeding the next
// before that next stage is torn down, and finally releases the container and
// decoding context.
func (e *Engine) Close() error {
	e.reading.RequestStop()
	videoErr := e.video.Close()
	e.content.Close()
	e.transfer.Close()
	e.decodingCtx.Close()

	fileErr := e.file.Close()
	if videoErr != nil {
		return videoErr
	}
	return fileErr
}

// AwaitRenderDone blocks, bounded by ctx, until the GPU backend reports it is done
// consuming the resources a render lock's draw depended on. See renderlock.AwaitGpuDone.
func AwaitRenderDone(ctx context.Context, gpu backend.GpuFrameBackend, token backend.UploadToken) error {
	return renderlock.AwaitGpuDone(ctx, gpu, token)
}
