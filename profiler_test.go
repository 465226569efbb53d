package initz

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewProfiler(t *testing.T) {
	p := New()
	defer p.Close()

	assert.NotEmpty(t, p.RunID())
	assert.NotNil(t, p.Registry())
	assert.False(t, p.Completed())
	assert.NotEqual(t, p.RunID(), New().RunID())
}

func TestOnAllCompleteWritesReport(t *testing.T) {
	var buf bytes.Buffer
	p, clock, _ := newTestProfiler(t, WithReportWriter(&buf))
	s := p.NewStack()

	span(s, clock, "cacheManager", 800*time.Millisecond, nil)

	report := p.OnAllComplete()
	assert.True(t, p.Completed())
	assert.Equal(t, 1, report.Count)
	assert.Equal(t, p.RunID(), report.RunID)
	assert.Equal(t, report.String(), buf.String())
	assert.Contains(t, buf.String(), "1. cacheManager: 800ms (self: 800ms)")
}

func TestOnAllCompleteLogsWithoutWriter(t *testing.T) {
	p, clock, hook := newTestProfiler(t)
	s := p.NewStack()

	span(s, clock, "dataSource", 1500*time.Millisecond, nil)
	p.OnAllComplete()

	var found bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.InfoLevel && strings.Contains(e.Message, "=== Bean Initialization Report ===") {
			found = true
			assert.Equal(t, p.RunID(), e.Data["run_id"])
		}
	}
	assert.True(t, found, "expected report at info level")
}

func TestOnAllCompleteRunsOnce(t *testing.T) {
	var buf bytes.Buffer
	p, clock, _ := newTestProfiler(t, WithReportWriter(&buf))
	s := p.NewStack()

	var calls atomic.Int32
	p.OnReport(func(Report) { calls.Add(1) })

	span(s, clock, "first", 10*time.Millisecond, nil)
	first := p.OnAllComplete()

	span(s, clock, "late", 10*time.Millisecond, nil)
	second := p.OnAllComplete()

	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, first.Count, second.Count)
	assert.Equal(t, 1, strings.Count(buf.String(), "=== End of Report ==="))

	// Report() still reflects the live registry.
	assert.Equal(t, 2, p.Report().Count)
}

func TestOnAllCompleteConcurrentCallers(t *testing.T) {
	p, clock, _ := newTestProfiler(t, WithReportWriter(&bytes.Buffer{}))
	span(p.NewStack(), clock, "only", time.Millisecond, nil)

	var calls atomic.Int32
	p.OnReport(func(Report) { calls.Add(1) })

	var wg sync.WaitGroup
	counts := make([]int, 10)
	for i := range counts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			counts[i] = p.OnAllComplete().Count
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, c := range counts {
		assert.Equal(t, 1, c)
	}
}

func TestReportLimitOption(t *testing.T) {
	p, clock, _ := newTestProfiler(t, WithReportLimit(2), WithReportWriter(&bytes.Buffer{}))
	s := p.NewStack()

	for _, name := range []string{"a", "b", "c", "d"} {
		span(s, clock, name, time.Millisecond, nil)
	}

	report := p.OnAllComplete()
	assert.Equal(t, 4, report.Count)
	assert.Len(t, report.ByTotal, 2)
	assert.Len(t, report.BySelf, 2)
}

func TestReportHandlers(t *testing.T) {
	p, clock, _ := newTestProfiler(t, WithReportWriter(&bytes.Buffer{}))
	span(p.NewStack(), clock, "bean", time.Millisecond, nil)

	var order []string
	var mu sync.Mutex
	record := func(name string) ReportHandler {
		return func(Report) {
			mu.Lock()
			defer mu.Unlock()
			order = append(order, name)
		}
	}

	p.OnReport(record("first"))
	removed := p.OnReport(record("removed"))
	p.OnReport(record("second"))
	assert.Equal(t, uint64(0), p.OnReport(nil))

	p.RemoveHandler(removed)
	p.OnAllComplete()

	assert.Equal(t, []string{"first", "second"}, order)
}

func TestAsyncReportHandlersWithWorkerPool(t *testing.T) {
	p, clock, _ := newTestProfiler(t, WithReportWriter(&bytes.Buffer{}))
	require.NoError(t, p.EnableWorkerPool(2, 4))
	span(p.NewStack(), clock, "bean", 3*time.Millisecond, nil)

	var got atomic.Int64
	p.OnReportAsync(func(r Report) {
		got.Store(int64(r.ByTotal[0].Total))
	})

	p.OnAllComplete()
	p.Close() // waits for queued handlers

	assert.Equal(t, int64(3*time.Millisecond), got.Load())
	assert.Equal(t, uint64(0), p.DroppedReports())
}

func TestAsyncReportHandlerWithoutPool(t *testing.T) {
	p, clock, _ := newTestProfiler(t, WithReportWriter(&bytes.Buffer{}))
	span(p.NewStack(), clock, "bean", time.Millisecond, nil)

	done := make(chan Report, 1)
	p.OnReportAsync(func(r Report) { done <- r })
	p.OnAllComplete()

	select {
	case r := <-done:
		assert.Equal(t, 1, r.Count)
	case <-time.After(time.Second):
		t.Fatal("async handler did not run")
	}
}

func TestEnableWorkerPoolValidation(t *testing.T) {
	p, _, _ := newTestProfiler(t)

	assert.Error(t, p.EnableWorkerPool(0, 1))
	assert.Error(t, p.EnableWorkerPool(1, 0))
	require.NoError(t, p.EnableWorkerPool(1, 1))
	assert.Error(t, p.EnableWorkerPool(1, 1))
}

func TestHandlerPanicIsRecovered(t *testing.T) {
	p, clock, hook := newTestProfiler(t, WithReportWriter(&bytes.Buffer{}))
	span(p.NewStack(), clock, "bean", time.Millisecond, nil)

	var hookID uint64
	var hookValue interface{}
	p.SetPanicHook(func(id uint64, r interface{}) {
		hookID = id
		hookValue = r
	})

	id := p.OnReport(func(Report) { panic("boom") })
	var after bool
	p.OnReport(func(Report) { after = true })

	assert.NotPanics(t, func() { p.OnAllComplete() })
	assert.Equal(t, id, hookID)
	assert.Equal(t, "boom", hookValue)
	assert.True(t, after, "handlers after a panicking one still run")

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && strings.Contains(e.Message, "boom") {
			logged = true
		}
	}
	assert.True(t, logged)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("sink closed")
}

func TestReportWriterFailureIsLogged(t *testing.T) {
	p, _, hook := newTestProfiler(t, WithReportWriter(failingWriter{}))

	assert.NotPanics(t, func() { p.OnAllComplete() })

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.EqualError(t, entry.Data[logrus.ErrorKey].(error), "sink closed")
}

func TestOnAllCompleteRecordsJournalEvent(t *testing.T) {
	j := NewJournal(16)
	j.SetSyncMode(true)
	p, clock, _ := newTestProfiler(t, WithJournal(j), WithReportWriter(&bytes.Buffer{}))

	s := p.NewStack()
	span(s, clock, "bean", time.Millisecond, nil)
	p.OnAllComplete()

	events := j.Export()
	require.Len(t, events, 3)
	assert.Equal(t, EventStart, events[0].Kind)
	assert.Equal(t, s.ID(), events[0].Context)
	assert.Equal(t, EventEnd, events[1].Kind)
	assert.Equal(t, EventComplete, events[2].Kind)
	assert.Equal(t, epoch.Add(time.Millisecond), events[2].At)
}
