package initz

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
)

const shardCount = 32

// Registry stores one record per span name for the lifetime of a run.
// Safe for concurrent use by multiple goroutines. Names are spread over
// independently locked shards so unrelated spans never contend.
type Registry struct {
	shards [shardCount]registryShard
	seq    atomic.Uint64
}

type registryShard struct {
	entries map[string]*entry
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].entries = make(map[string]*entry)
	}
	return r
}

func (r *Registry) shard(name string) *registryShard {
	return &r.shards[xxhash.Sum64String(name)%shardCount]
}

// getOrCreate returns the entry for name, creating it on first use.
func (r *Registry) getOrCreate(name string) *entry {
	s := r.shard(name)

	s.mu.RLock()
	e, ok := s.entries[name]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Another goroutine may have won the race.
	if e, ok = s.entries[name]; ok {
		return e
	}
	e = &entry{name: name, seq: r.seq.Add(1)}
	s.entries[name] = e
	return e
}

func (r *Registry) lookup(name string) (*entry, bool) {
	s := r.shard(name)
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[name]
	return e, ok
}

// Lookup returns a copy of the record for name.
func (r *Registry) Lookup(name string) (Record, bool) {
	e, ok := r.lookup(name)
	if !ok {
		return Record{}, false
	}
	return e.snapshot(), true
}

// childTotals reads the current total of each named child.
// Unknown or unfinished children count as zero.
func (r *Registry) childTotals(children []string) []time.Duration {
	totals := make([]time.Duration, 0, len(children))
	for _, name := range children {
		if e, ok := r.lookup(name); ok {
			totals = append(totals, e.totalDuration())
		}
	}
	return totals
}

// Snapshot copies every record in the order the names were first seen.
// Spans still in flight are included with whatever state they have.
func (r *Registry) Snapshot() []Record {
	entries := make([]*entry, 0, r.Len())
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, e := range s.entries {
			entries = append(entries, e)
		}
		s.mu.RUnlock()
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].seq < entries[j].seq
	})

	records := make([]Record, len(entries))
	for i, e := range entries {
		records[i] = e.snapshot()
	}
	return records
}

// Len returns the number of distinct span names seen so far.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.entries)
		s.mu.RUnlock()
	}
	return n
}
