package reporter

// CompositeReporter fans every event out to multiple Reporters, e.g. a terminal
// reporter and a log-file reporter receiving the same session's events.
type CompositeReporter struct {
	reporters []Reporter
}

// NewCompositeReporter creates a reporter that forwards each call to every given
// reporter, in order.
func NewCompositeReporter(reporters ...Reporter) *CompositeReporter {
	return &CompositeReporter{reporters: reporters}
}

func (r *CompositeReporter) Opened(s OpenedSummary) {
	for _, rep := range r.reporters {
		rep.Opened(s)
	}
}

func (r *CompositeReporter) StageProgress(u StageProgress) {
	for _, rep := range r.reporters {
		rep.StageProgress(u)
	}
}

func (r *CompositeReporter) SeekPerformed(e SeekEvent) {
	for _, rep := range r.reporters {
		rep.SeekPerformed(e)
	}
}

func (r *CompositeReporter) BufferingStateChanged(e BufferingEvent) {
	for _, rep := range r.reporters {
		rep.BufferingStateChanged(e)
	}
}

func (r *CompositeReporter) DecodeError(e DecodeErrorEvent) {
	for _, rep := range r.reporters {
		rep.DecodeError(e)
	}
}

func (r *CompositeReporter) PlaybackComplete(s PlaybackCompleteSummary) {
	for _, rep := range r.reporters {
		rep.PlaybackComplete(s)
	}
}

func (r *CompositeReporter) Warning(message string) {
	for _, rep := range r.reporters {
		rep.Warning(message)
	}
}

func (r *CompositeReporter) Error(e ReporterError) {
	for _, rep := range r.reporters {
		rep.Error(e)
	}
}

func (r *CompositeReporter) Verbose(message string) {
	for _, rep := range r.reporters {
		rep.Verbose(message)
	}
}
