// Package reporter defines the event-reporting interface for xrvideo playback
// sessions, and two implementations: a colored terminal reporter and a flat-file
// logger, mirroring the dual log/terminal output of the encoding CLI this engine's
// reporting style is descended from.
package reporter

import "time"

// Reporter receives events as a playback session progresses. All methods must be
// safe to call from multiple goroutines (the pipeline, buffering controller, and
// clock each report independently).
type Reporter interface {
	// Opened reports a successfully opened container.
	Opened(summary OpenedSummary)

	// StageProgress reports a one-line status update from a pipeline stage, e.g.
	// "reading" or "content-decode".
	StageProgress(update StageProgress)

	// SeekPerformed reports a completed Seek call.
	SeekPerformed(event SeekEvent)

	// BufferingStateChanged reports a transition in/out of the paused-for-buffering
	// state, as decided by the buffering controller.
	BufferingStateChanged(event BufferingEvent)

	// DecodeError reports a recoverable decode failure for a single frame; playback
	// continues with the previous frame held on screen.
	DecodeError(event DecodeErrorEvent)

	// PlaybackComplete reports a SingleShot video reaching its end timestamp.
	PlaybackComplete(summary PlaybackCompleteSummary)

	// Warning reports a non-fatal condition worth surfacing to the user.
	Warning(message string)

	// Error reports a fatal condition that ended the session.
	Error(err ReporterError)

	// Verbose reports a debug-level message, shown only when verbose mode is on.
	Verbose(message string)
}

// NullReporter is a no-op Reporter that discards all updates.
type NullReporter struct{}

func (NullReporter) Opened(OpenedSummary)                     {}
func (NullReporter) StageProgress(StageProgress)               {}
func (NullReporter) SeekPerformed(SeekEvent)                   {}
func (NullReporter) BufferingStateChanged(BufferingEvent)      {}
func (NullReporter) DecodeError(DecodeErrorEvent)              {}
func (NullReporter) PlaybackComplete(PlaybackCompleteSummary)  {}
func (NullReporter) Warning(string)                            {}
func (NullReporter) Error(ReporterError)                       {}
func (NullReporter) Verbose(string)                            {}

// OpenedSummary describes a newly opened container.
type OpenedSummary struct {
	Path          string
	Duration      string
	DurationMs    int64
	FrameCount    int
	HasKeyframeAt []int // frame indices of keyframes; may be truncated by the caller
	CacheCapacity int
}

// StageProgress is a generic status update from one pipeline stage.
type StageProgress struct {
	Stage   string
	Message string
}

// SeekEvent reports where playback landed after a seek request.
type SeekEvent struct {
	RequestedMs int64
	ResolvedMs  int64
	Forward     bool
}

// BufferingEvent reports the buffering controller's run/wait decision.
type BufferingEvent struct {
	Buffering       bool
	ProgressPercent float32 // in [0, 1]; the controller's estimate when this transition fired
}

// DecodeErrorEvent reports a single frame's decode failure.
type DecodeErrorEvent struct {
	FrameIndex int
	Stage      string
	Err        string
}

// PlaybackCompleteSummary reports end-of-stream for SingleShot playback.
type PlaybackCompleteSummary struct {
	FramesDisplayed int
	TotalTime       time.Duration
}

// ReporterError contains error information, e.g. a fatal container-open failure.
type ReporterError struct {
	Title      string
	Message    string
	Context    string
	Suggestion string
}
