// This file re-exports the internal Reporter interface and associated types so
// callers can receive playback events directly, and adapts an EventHandler into one.

package xrvideo

import "github.com/scannedreality/xrvideo/internal/reporter"

// Reporter defines the interface for progress reporting during playback. Implement
// this interface to receive detailed events as a session progresses.
type Reporter = reporter.Reporter

// NullReporter is a no-op reporter that discards all updates.
type NullReporter = reporter.NullReporter

// OpenedSummary describes a newly opened container.
type OpenedSummary = reporter.OpenedSummary

// StageProgress is a generic status update from one pipeline stage.
type StageProgress = reporter.StageProgress

// SeekEvent reports where playback landed after a seek request.
type SeekEvent = reporter.SeekEvent

// BufferingEvent reports the buffering controller's run/wait decision.
type BufferingEvent = reporter.BufferingEvent

// ReporterDecodeErrorEvent reports a single frame's decode failure. Named with a
// "Reporter" prefix because it would otherwise collide with this package's own
// DecodeErrorEvent (the serializable form consumed by EventHandler).
type ReporterDecodeErrorEvent = reporter.DecodeErrorEvent

// PlaybackCompleteSummary reports end-of-stream for SingleShot playback.
type PlaybackCompleteSummary = reporter.PlaybackCompleteSummary

// ReporterError contains error information, e.g. a fatal container-open failure.
type ReporterError = reporter.ReporterError

// eventReporter adapts EventHandler to the Reporter interface.
type eventReporter struct {
	handler EventHandler
}

func newEventReporter(handler EventHandler) *eventReporter {
	return &eventReporter{handler: handler}
}

func (r *eventReporter) Opened(s reporter.OpenedSummary) {
	_ = r.handler(OpenedEvent{
		BaseEvent:     BaseEvent{EventType: EventTypeOpened, Time: NewTimestamp()},
		Path:          s.Path,
		FrameCount:    s.FrameCount,
		DurationMs:    s.DurationMs,
		CacheCapacity: s.CacheCapacity,
	})
}

func (r *eventReporter) StageProgress(p reporter.StageProgress) {
	_ = r.handler(StageProgressEvent{
		BaseEvent: BaseEvent{EventType: EventTypeStageProgress, Time: NewTimestamp()},
		Stage:     p.Stage,
		Message:   p.Message,
	})
}

func (r *eventReporter) SeekPerformed(e reporter.SeekEvent) {
	_ = r.handler(SeekPerformedEvent{
		BaseEvent:   BaseEvent{EventType: EventTypeSeekPerformed, Time: NewTimestamp()},
		RequestedMs: e.RequestedMs,
		ResolvedMs:  e.ResolvedMs,
		Forward:     e.Forward,
	})
}

func (r *eventReporter) BufferingStateChanged(e reporter.BufferingEvent) {
	_ = r.handler(BufferingChangedEvent{
		BaseEvent:       BaseEvent{EventType: EventTypeBufferingChanged, Time: NewTimestamp()},
		Buffering:       e.Buffering,
		ProgressPercent: e.ProgressPercent,
	})
}

func (r *eventReporter) DecodeError(e reporter.DecodeErrorEvent) {
	_ = r.handler(DecodeErrorEvent{
		BaseEvent:  BaseEvent{EventType: EventTypeDecodeError, Time: NewTimestamp()},
		FrameIndex: e.FrameIndex,
		Stage:      e.Stage,
		Message:    e.Err,
	})
}

func (r *eventReporter) PlaybackComplete(s reporter.PlaybackCompleteSummary) {
	_ = r.handler(PlaybackCompleteEvent{
		BaseEvent:       BaseEvent{EventType: EventTypePlaybackComplete, Time: NewTimestamp()},
		FramesDisplayed: s.FramesDisplayed,
		TotalTime:       s.TotalTime,
	})
}

func (r *eventReporter) Warning(message string) {
	_ = r.handler(WarningEvent{
		BaseEvent: BaseEvent{EventType: EventTypeWarning, Time: NewTimestamp()},
		Message:   message,
	})
}

func (r *eventReporter) Error(e reporter.ReporterError) {
	_ = r.handler(ErrorEvent{
		BaseEvent:  BaseEvent{EventType: EventTypeError, Time: NewTimestamp()},
		Title:      e.Title,
		Message:    e.Message,
		Context:    e.Context,
		Suggestion: e.Suggestion,
	})
}

func (r *eventReporter) Verbose(string) {}
