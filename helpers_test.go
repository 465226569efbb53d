package initz

import (
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/zoobzio/clockz"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// newTestProfiler returns a profiler on a fake clock whose logs are
// captured by the returned hook.
func newTestProfiler(t *testing.T, opts ...Option) (*Profiler, *clockz.FakeClock, *logtest.Hook) {
	t.Helper()

	clock := clockz.NewFakeClockAt(epoch)
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	all := append([]Option{WithClock(clock), WithLogger(logger)}, opts...)
	p := New(all...)
	t.Cleanup(p.Close)
	return p, clock, hook
}

// span runs start, advances the clock by d around fn, then end.
func span(s *Stack, clock *clockz.FakeClock, name string, d time.Duration, fn func()) {
	s.OnSpanStart(name)
	if fn != nil {
		fn()
	}
	clock.Advance(d)
	s.OnSpanEnd(name)
}

func mustLookup(t *testing.T, p *Profiler, name string) Record {
	t.Helper()
	r, ok := p.Registry().Lookup(name)
	if !ok {
		t.Fatalf("Expected record %q to exist", name)
	}
	return r
}
