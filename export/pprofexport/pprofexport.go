// Package pprofexport converts initz records into a pprof profile so that
// startup time can be browsed with `go tool pprof` flame graphs.
package pprofexport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/pprof/profile"

	"github.com/zoobzio/initz"
)

// ErrNoRecords is returned when no record has a positive total duration.
var ErrNoRecords = errors.New("no finished spans to export")

// Build creates a profile with one sample per finished record. A sample's
// stack is the record followed by its ancestors, and its value is the
// record's self time, so summing along a stack yields the total time.
func Build(records []initz.Record, at time.Time) (*profile.Profile, error) {
	byName := make(map[string]initz.Record, len(records))
	for _, r := range records {
		byName[r.Name] = r
	}

	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "spans", Unit: "count"},
			{Type: "self", Unit: "nanoseconds"},
		},
		DefaultSampleType: "self",
		PeriodType:        &profile.ValueType{Type: "wall", Unit: "nanoseconds"},
		Period:            1,
		TimeNanos:         at.UnixNano(),
	}

	b := builder{prof: p, locations: make(map[string]*profile.Location)}

	var earliest, latest time.Time
	for _, r := range records {
		if r.Total <= 0 {
			continue
		}
		if earliest.IsZero() || r.StartTime.Before(earliest) {
			earliest = r.StartTime
		}
		if r.EndTime.After(latest) {
			latest = r.EndTime
		}

		self := r.Self
		if self < 0 {
			self = 0
		}
		p.Sample = append(p.Sample, &profile.Sample{
			Location: b.stack(r, byName),
			Value:    []int64{1, int64(self)},
		})
	}

	if len(p.Sample) == 0 {
		return nil, ErrNoRecords
	}
	p.DurationNanos = int64(latest.Sub(earliest))

	if err := p.CheckValid(); err != nil {
		return nil, fmt.Errorf("build profile: %w", err)
	}
	return p, nil
}

// Write builds the profile and writes it gzip-compressed to w.
func Write(w io.Writer, records []initz.Record, at time.Time) error {
	p, err := Build(records, at)
	if err != nil {
		return err
	}
	if err := p.Write(w); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	return nil
}

type builder struct {
	prof      *profile.Profile
	locations map[string]*profile.Location
}

// stack returns leaf-first locations for r and its ancestors. The walk
// stops at the first repeated name.
func (b *builder) stack(r initz.Record, byName map[string]initz.Record) []*profile.Location {
	seen := make(map[string]bool)
	var locs []*profile.Location

	name := r.Name
	for name != "" && !seen[name] {
		seen[name] = true
		locs = append(locs, b.location(name))

		parent, ok := byName[name]
		if !ok {
			break
		}
		name = parent.Parent
	}
	return locs
}

func (b *builder) location(name string) *profile.Location {
	if loc, ok := b.locations[name]; ok {
		return loc
	}

	fn := &profile.Function{
		ID:         uint64(len(b.prof.Function) + 1),
		Name:       name,
		SystemName: name,
	}
	b.prof.Function = append(b.prof.Function, fn)

	loc := &profile.Location{
		ID:   uint64(len(b.prof.Location) + 1),
		Line: []profile.Line{{Function: fn}},
	}
	b.prof.Location = append(b.prof.Location, loc)
	b.locations[name] = loc
	return loc
}
