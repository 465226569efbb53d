package initz

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/zoobzio/clockz"
)

// Option configures a Profiler.
type Option func(*Profiler)

// WithClock sets the clock used to stamp notifications.
// Enables clock injection for deterministic testing.
func WithClock(clock clockz.Clock) Option {
	return func(p *Profiler) {
		if clock != nil {
			p.clock = clock
		}
	}
}

// WithLogger sets the logger. The report goes to it at info level unless a
// report writer is configured.
func WithLogger(logger logrus.FieldLogger) Option {
	return func(p *Profiler) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithReportLimit sets how many entries each ranked list keeps.
func WithReportLimit(limit int) Option {
	return func(p *Profiler) {
		if limit > 0 {
			p.limit = limit
		}
	}
}

// WithReportWriter sends the rendered report to w instead of the logger.
func WithReportWriter(w io.Writer) Option {
	return func(p *Profiler) {
		p.reportWriter = w
	}
}

// WithJournal records every notification into j.
func WithJournal(j *Journal) Option {
	return func(p *Profiler) {
		p.journal = j
	}
}
