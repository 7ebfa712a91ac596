// Package xrvideo provides a Go engine for playing back XRVideo volumetric video
// files: chunked container parsing, a bounded decoded-frame cache, a four-stage
// async decode pipeline, and the buffering/render-lock protocol an external renderer
// drives each frame.
package xrvideo

import "time"

// Event types, for host applications that want a serializable event stream rather
// than direct Reporter callbacks (e.g. forwarding playback telemetry over IPC).
const (
	EventTypeOpened           = "opened"
	EventTypeStageProgress    = "stage_progress"
	EventTypeSeekPerformed    = "seek_performed"
	EventTypeBufferingChanged = "buffering_changed"
	EventTypeDecodeError      = "decode_error"
	EventTypePlaybackComplete = "playback_complete"
	EventTypeWarning          = "warning"
	EventTypeError            = "error"
)

// Event is the interface for all xrvideo events.
type Event interface {
	Type() string
	Timestamp() int64
}

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventType string `json:"type"`
	Time      int64  `json:"timestamp"`
}

func (e BaseEvent) Type() string     { return e.EventType }
func (e BaseEvent) Timestamp() int64 { return e.Time }

// OpenedEvent reports a successfully opened container.
type OpenedEvent struct {
	BaseEvent
	Path          string `json:"path"`
	FrameCount    int    `json:"frame_count"`
	DurationMs    int64  `json:"duration_ms"`
	CacheCapacity int    `json:"cache_capacity"`
}

// StageProgressEvent is a generic status update from one pipeline stage.
type StageProgressEvent struct {
	BaseEvent
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// SeekPerformedEvent reports where playback landed after a seek request.
type SeekPerformedEvent struct {
	BaseEvent
	RequestedMs int64 `json:"requested_ms"`
	ResolvedMs  int64 `json:"resolved_ms"`
	Forward     bool  `json:"forward"`
}

// BufferingChangedEvent reports a transition in/out of the paused-for-buffering state.
type BufferingChangedEvent struct {
	BaseEvent
	Buffering      bool    `json:"buffering"`
	ProgressPercent float32 `json:"progress_percent"`
}

// DecodeErrorEvent reports a single frame's recoverable decode failure.
type DecodeErrorEvent struct {
	BaseEvent
	FrameIndex int    `json:"frame_index"`
	Stage      string `json:"stage"`
	Message    string `json:"message"`
}

// PlaybackCompleteEvent reports a SingleShot video reaching its end timestamp.
type PlaybackCompleteEvent struct {
	BaseEvent
	FramesDisplayed int           `json:"frames_displayed"`
	TotalTime       time.Duration `json:"total_time"`
}

// WarningEvent represents a non-fatal warning message.
type WarningEvent struct {
	BaseEvent
	Message string `json:"message"`
}

// ErrorEvent represents a fatal condition that ended the session.
type ErrorEvent struct {
	BaseEvent
	Title      string `json:"title"`
	Message    string `json:"message"`
	Context    string `json:"context"`
	Suggestion string `json:"suggestion"`
}

// EventHandler is called with events during playback.
type EventHandler func(Event) error

// NewTimestamp returns the current Unix timestamp.
func NewTimestamp() int64 {
	return time.Now().Unix()
}
