// Package otelexport replays finished initz records as OpenTelemetry spans.
package otelexport

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zoobzio/initz"
)

const (
	// TotalKey carries the total duration in milliseconds.
	TotalKey = attribute.Key("initz.total_ms")
	// SelfKey carries the self duration in milliseconds.
	SelfKey = attribute.Key("initz.self_ms")
)

// Export emits one span per ended record, nested the way the records were
// nested at start time, with the recorded start and end timestamps.
// Records that never ended are skipped together with their subtrees.
func Export(ctx context.Context, tracer trace.Tracer, records []initz.Record) {
	if ctx == nil {
		ctx = context.Background()
	}

	byName := make(map[string]initz.Record, len(records))
	for _, r := range records {
		byName[r.Name] = r
	}

	e := exporter{tracer: tracer, byName: byName, visited: make(map[string]bool, len(records))}

	for _, r := range records {
		if r.Parent == "" {
			e.emit(ctx, r)
		} else if parent, ok := byName[r.Parent]; !ok || !parent.Ended() {
			e.emit(ctx, r)
		}
	}

	// Records only reachable through a name-collision cycle.
	for _, r := range records {
		if !e.visited[r.Name] {
			e.emit(ctx, r)
		}
	}
}

// Handler adapts Export to a report handler.
func Handler(tracer trace.Tracer) initz.ReportHandler {
	return func(report initz.Report) {
		Export(context.Background(), tracer, report.Records)
	}
}

type exporter struct {
	tracer  trace.Tracer
	byName  map[string]initz.Record
	visited map[string]bool
}

func (e *exporter) emit(ctx context.Context, r initz.Record) {
	if e.visited[r.Name] {
		return
	}
	e.visited[r.Name] = true
	if !r.Ended() {
		return
	}

	ctx, span := e.tracer.Start(ctx, r.Name,
		trace.WithTimestamp(r.StartTime),
		trace.WithAttributes(
			TotalKey.Int64(r.Total.Milliseconds()),
			SelfKey.Int64(r.Self.Milliseconds()),
		),
	)
	for _, name := range r.Children {
		if child, ok := e.byName[name]; ok && child.Parent == r.Name {
			e.emit(ctx, child)
		}
	}
	span.End(trace.WithTimestamp(r.EndTime))
}
