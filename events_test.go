package xrvideo

import (
	"testing"
	"time"

	"github.com/scannedreality/xrvideo/internal/reporter"
)

func collectEvents(t *testing.T, f func(EventHandler)) []Event {
	t.Helper()
	var got []Event
	f(func(e Event) error {
		got = append(got, e)
		return nil
	})
	return got
}

func TestEventReporterOpenedCarriesSummary(t *testing.T) {
	events := collectEvents(t, func(h EventHandler) {
		newEventReporter(h).Opened(reporter.OpenedSummary{
			Path:          "movie.xrv",
			DurationMs:    1500,
			FrameCount:    42,
			CacheCapacity: 8,
		})
	})
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	evt, ok := events[0].(OpenedEvent)
	if !ok {
		t.Fatalf("event type = %T, want OpenedEvent", events[0])
	}
	if evt.Type() != EventTypeOpened {
		t.Errorf("Type() = %q, want %q", evt.Type(), EventTypeOpened)
	}
	if evt.Path != "movie.xrv" || evt.FrameCount != 42 || evt.CacheCapacity != 8 || evt.DurationMs != 1500 {
		t.Errorf("unexpected event contents: %+v", evt)
	}
}

func TestEventReporterBufferingStateChangedCarriesProgress(t *testing.T) {
	events := collectEvents(t, func(h EventHandler) {
		newEventReporter(h).BufferingStateChanged(reporter.BufferingEvent{Buffering: true, ProgressPercent: 0.5})
	})
	evt := events[0].(BufferingChangedEvent)
	if !evt.Buffering {
		t.Errorf("Buffering = false, want true")
	}
	if evt.ProgressPercent != 0.5 {
		t.Errorf("ProgressPercent = %v, want 0.5", evt.ProgressPercent)
	}
}

func TestEventReporterPlaybackCompleteCarriesSummary(t *testing.T) {
	events := collectEvents(t, func(h EventHandler) {
		newEventReporter(h).PlaybackComplete(reporter.PlaybackCompleteSummary{
			FramesDisplayed: 10,
			TotalTime:       2 * time.Second,
		})
	})
	evt := events[0].(PlaybackCompleteEvent)
	if evt.FramesDisplayed != 10 || evt.TotalTime != 2*time.Second {
		t.Errorf("unexpected event contents: %+v", evt)
	}
}

func TestEventReporterIgnoresHandlerErrors(t *testing.T) {
	// A handler's return value isn't propagated by any Reporter method (none of them
	// return an error), but the handler must still be invoked exactly once per event.
	calls := 0
	handler := func(Event) error {
		calls++
		return errHandlerStub
	}
	rep := newEventReporter(handler)
	rep.Warning("disk is getting full")
	rep.Warning("disk is getting full")
	if calls != 2 {
		t.Errorf("handler called %d times, want 2", calls)
	}
}

var errHandlerStub = errStub("stub")

type errStub string

func (e errStub) Error() string { return string(e) }
