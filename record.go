package initz

import (
	"slices"
	"sync"
	"time"
)

// Record is a point-in-time copy of one span's bookkeeping.
// Parent and Children refer to other records by name.
//
//nolint:govet // Field order follows JSON output order
type Record struct {
	Name      string        `json:"name"`
	Parent    string        `json:"parent,omitempty"`
	Children  []string      `json:"children,omitempty"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time,omitempty"`
	Total     time.Duration `json:"total"`
	Self      time.Duration `json:"self"`
}

// Ended reports whether the most recent cycle of the span received its
// end notification.
func (r Record) Ended() bool {
	return !r.EndTime.IsZero()
}

// entry is the mutable registry slot behind a Record.
//
//nolint:govet // Field order optimized for readability over memory
type entry struct {
	name     string
	seq      uint64
	mu       sync.Mutex
	parent   string
	children []string
	start    time.Time
	end      time.Time
	total    time.Duration
	self     time.Duration
}

// begin starts a new cycle at the given time. Timing from any previous
// cycle is discarded. The parent link is only taken when none exists yet;
// the return value reports whether parent is (now) the recorded parent.
func (e *entry) begin(at time.Time, parent string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.start = at
	e.end = time.Time{}
	e.total = 0
	e.self = 0

	if parent == "" || parent == e.name {
		return false
	}
	if e.parent == "" {
		e.parent = parent
	}
	return e.parent == parent
}

// adopt adds child to the children set.
func (e *entry) adopt(child string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !slices.Contains(e.children, child) {
		e.children = append(e.children, child)
	}
}

// stop stamps the end time and returns what the duration calculation needs.
func (e *entry) stop(at time.Time) (start time.Time, children []string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.end = at
	return e.start, slices.Clone(e.children)
}

func (e *entry) settle(total, self time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.total = total
	e.self = self
}

func (e *entry) totalDuration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total
}

func (e *entry) snapshot() Record {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Record{
		Name:      e.name,
		Parent:    e.parent,
		Children:  slices.Clone(e.children),
		StartTime: e.start,
		EndTime:   e.end,
		Total:     e.total,
		Self:      e.self,
	}
}
