package reporter

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// LogReporter writes playback events to a log file.
type LogReporter struct {
	w  io.Writer
	mu sync.Mutex
}

// NewLogReporter creates a new log reporter that writes to the given writer.
func NewLogReporter(w io.Writer) *LogReporter {
	return &LogReporter{w: w}
}

func (r *LogReporter) log(level, format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	msg := fmt.Sprintf(format, args...)
	_, _ = fmt.Fprintf(r.w, "%s [%s] %s\n", timestamp, level, msg)
}

func (r *LogReporter) Opened(summary OpenedSummary) {
	r.log("INFO", "=== OPENED ===")
	r.log("INFO", "File: %s", summary.Path)
	r.log("INFO", "Duration: %s", summary.Duration)
	r.log("INFO", "Frames: %d", summary.FrameCount)
	r.log("INFO", "Cache capacity: %d frames", summary.CacheCapacity)
}

func (r *LogReporter) StageProgress(update StageProgress) {
	r.log("INFO", "[%s] %s", update.Stage, update.Message)
}

func (r *LogReporter) SeekPerformed(event SeekEvent) {
	r.log("INFO", "Seek: requested %dms, resolved %dms (forward=%v)",
		event.RequestedMs, event.ResolvedMs, event.Forward)
}

func (r *LogReporter) BufferingStateChanged(event BufferingEvent) {
	if event.Buffering {
		r.log("WARN", "Buffering: paused (%.0f%% ready)", event.ProgressPercent*100)
	} else {
		r.log("INFO", "Buffering: resumed (%.0f%% ready)", event.ProgressPercent*100)
	}
}

func (r *LogReporter) DecodeError(event DecodeErrorEvent) {
	r.log("WARN", "Decode error: frame %d in %s stage: %s", event.FrameIndex, event.Stage, event.Err)
}

func (r *LogReporter) PlaybackComplete(summary PlaybackCompleteSummary) {
	r.log("INFO", "=== PLAYBACK COMPLETE ===")
	r.log("INFO", "Frames displayed: %d", summary.FramesDisplayed)
	r.log("INFO", "Wall time: %s", summary.TotalTime.Round(time.Millisecond))
}

func (r *LogReporter) Warning(message string) {
	r.log("WARN", "%s", message)
}

func (r *LogReporter) Error(err ReporterError) {
	r.log("ERROR", "%s: %s", err.Title, err.Message)
	if err.Context != "" {
		r.log("ERROR", "  Context: %s", err.Context)
	}
	if err.Suggestion != "" {
		r.log("ERROR", "  Suggestion: %s", err.Suggestion)
	}
}

func (r *LogReporter) Verbose(message string) {
	r.log("DEBUG", "%s", message)
}
