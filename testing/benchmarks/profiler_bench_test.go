package benchmarks

import (
	"context"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/zoobzio/initz"
)

func newProfiler(b *testing.B, opts ...initz.Option) *initz.Profiler {
	b.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	p := initz.New(append([]initz.Option{
		initz.WithLogger(logger),
		initz.WithReportWriter(io.Discard),
	}, opts...)...)
	b.Cleanup(p.Close)
	return p
}

// BenchmarkSpanStartEnd measures a start/end pair on a single stack.
func BenchmarkSpanStartEnd(b *testing.B) {
	p := newProfiler(b)
	s := p.NewStack()

	b.ReportAllocs()
	b.ResetTimer()

	start := time.Now()
	for i := 0; i < b.N; i++ {
		s.OnSpanStart("bean")
		s.OnSpanEnd("bean")
	}

	elapsed := time.Since(start)
	b.ReportMetric(float64(b.N)/elapsed.Seconds(), "spans/sec")
}

// BenchmarkNestedSpans measures a three-level dependency chain.
func BenchmarkNestedSpans(b *testing.B) {
	p := newProfiler(b)
	s := p.NewStack()

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		s.OnSpanStart("service")
		s.OnSpanStart("repository")
		s.OnSpanStart("dataSource")
		s.OnSpanEnd("dataSource")
		s.OnSpanEnd("repository")
		s.OnSpanEnd("service")
	}
}

// BenchmarkParallelContexts measures contention on the shared registry
// with one stack per goroutine.
func BenchmarkParallelContexts(b *testing.B) {
	p := newProfiler(b)

	names := make([]string, 256)
	for i := range names {
		names[i] = fmt.Sprintf("bean-%03d", i)
	}

	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		s := p.NewStack()
		i := 0
		for pb.Next() {
			name := names[i%len(names)]
			s.OnSpanStart(name)
			s.OnSpanEnd(name)
			i++
		}
	})
}

// BenchmarkTrack measures the context-based API.
func BenchmarkTrack(b *testing.B) {
	p := newProfiler(b)
	ctx := p.Detach(context.Background())
	noop := func(context.Context) error { return nil }

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		_ = p.Track(ctx, "bean", noop)
	}
}

// BenchmarkJournalOverhead compares recording with and without a journal.
func BenchmarkJournalOverhead(b *testing.B) {
	b.Run("without", func(b *testing.B) {
		s := newProfiler(b).NewStack()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			s.OnSpanStart("bean")
			s.OnSpanEnd("bean")
		}
	})

	b.Run("with", func(b *testing.B) {
		j := initz.NewJournal(4096)
		s := newProfiler(b, initz.WithJournal(j)).NewStack()
		b.ResetTimer()
		for i := 0; i < b.N; i++ {
			s.OnSpanStart("bean")
			s.OnSpanEnd("bean")
		}
		b.StopTimer()
		b.ReportMetric(float64(j.DroppedCount()), "dropped")
	})
}

// BenchmarkBuildReport measures ranking over a large registry.
func BenchmarkBuildReport(b *testing.B) {
	for _, size := range []int{100, 1000, 10000} {
		b.Run(fmt.Sprintf("records-%d", size), func(b *testing.B) {
			p := newProfiler(b)
			s := p.NewStack()
			for i := 0; i < size; i++ {
				name := fmt.Sprintf("bean-%05d", i)
				s.OnSpanStart(name)
				s.OnSpanEnd(name)
			}

			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				_ = p.Report().String()
			}
		})
	}
}
