package reporter

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
)

// TerminalReporter outputs human-friendly text to the terminal.
type TerminalReporter struct {
	mu        sync.Mutex
	progress  *progressbar.ProgressBar
	lastStage string
	buffering bool
	verbose   bool
	cyan      *color.Color
	green     *color.Color
	yellow    *color.Color
	red       *color.Color
	magenta   *color.Color
	bold      *color.Color
	dim       *color.Color
}

// NewTerminalReporter creates a new terminal reporter with verbose mode disabled.
func NewTerminalReporter() *TerminalReporter {
	return NewTerminalReporterVerbose(false)
}

// NewTerminalReporterVerbose creates a new terminal reporter with configurable verbose mode.
func NewTerminalReporterVerbose(verbose bool) *TerminalReporter {
	return &TerminalReporter{
		verbose: verbose,
		cyan:    color.New(color.FgCyan, color.Bold),
		green:   color.New(color.FgGreen),
		yellow:  color.New(color.FgYellow, color.Bold),
		red:     color.New(color.FgRed, color.Bold),
		magenta: color.New(color.FgMagenta),
		bold:    color.New(color.Bold),
		dim:     color.New(color.Faint),
	}
}

const labelWidth = 18

func (r *TerminalReporter) printLabel(label, value string) {
	paddedLabel := fmt.Sprintf("%-*s", labelWidth, label)
	fmt.Printf("  %s %s\n", r.bold.Sprint(paddedLabel), value)
}

func (r *TerminalReporter) Opened(summary OpenedSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("OPENED")
	r.printLabel("File:", summary.Path)
	r.printLabel("Duration:", summary.Duration)
	r.printLabel("Frames:", fmt.Sprintf("%d", summary.FrameCount))
	r.printLabel("Cache:", fmt.Sprintf("%d frames", summary.CacheCapacity))
}

func (r *TerminalReporter) StageProgress(update StageProgress) {
	r.mu.Lock()
	if r.lastStage != update.Stage {
		r.mu.Unlock()
		fmt.Println()
		_, _ = r.cyan.Println(strings.ToUpper(update.Stage))
		r.mu.Lock()
		r.lastStage = update.Stage
	}
	r.mu.Unlock()
	fmt.Printf("  %s %s\n", r.magenta.Sprint("›"), update.Message)
}

func (r *TerminalReporter) SeekPerformed(event SeekEvent) {
	fmt.Printf("  %s seek -> %dms\n", r.dim.Sprint("›"), event.ResolvedMs)
}

func (r *TerminalReporter) BufferingStateChanged(event BufferingEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if event.Buffering && !r.buffering {
		r.buffering = true
		r.progress = progressbar.NewOptions64(
			100,
			progressbar.OptionSetDescription("buffering"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionShowDescriptionAtLineEnd(),
			progressbar.OptionSetElapsedTime(false),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
		return
	}
	if !event.Buffering && r.buffering {
		r.buffering = false
		if r.progress != nil {
			_ = r.progress.Finish()
			r.progress = nil
		}
		return
	}
	if r.buffering && r.progress != nil {
		_ = r.progress.Set64(int64(event.ProgressPercent * 100))
	}
}

func (r *TerminalReporter) DecodeError(event DecodeErrorEvent) {
	_, _ = r.yellow.Printf("WARN: frame %d failed to decode in %s: %s\n", event.FrameIndex, event.Stage, event.Err)
}

func (r *TerminalReporter) PlaybackComplete(summary PlaybackCompleteSummary) {
	fmt.Println()
	_, _ = r.cyan.Println("COMPLETE")
	r.printLabel("Frames:", fmt.Sprintf("%d", summary.FramesDisplayed))
	r.printLabel("Time:", summary.TotalTime.Round(time.Millisecond).String())
}

func (r *TerminalReporter) Warning(message string) {
	fmt.Println()
	_, _ = r.yellow.Printf("WARN: %s\n", message)
}

func (r *TerminalReporter) Error(err ReporterError) {
	_, _ = fmt.Fprintln(os.Stderr)
	_, _ = r.red.Fprintf(os.Stderr, "ERROR %s\n", err.Title)
	_, _ = fmt.Fprintf(os.Stderr, "  %s\n", err.Message)
	if err.Context != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Context: %s\n", err.Context)
	}
	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(os.Stderr, "  Suggestion: %s\n", err.Suggestion)
	}
}

func (r *TerminalReporter) Verbose(message string) {
	if !r.verbose {
		return
	}
	fmt.Printf("  %s %s\n", r.dim.Sprint("›"), r.dim.Sprint(message))
}
