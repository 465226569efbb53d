package initz

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"
)

// EventKind names a profiler notification.
type EventKind string

const (
	EventStart    EventKind = "start"
	EventEnd      EventKind = "end"
	EventComplete EventKind = "complete"
)

// Event is one raw notification as seen by the profiler.
type Event struct {
	Kind    EventKind `json:"kind"`
	Context string    `json:"context,omitempty"`
	Name    string    `json:"name,omitempty"`
	At      time.Time `json:"at"`
}

// Journal buffers notifications so a run can be replayed later.
// Safe for concurrent use by multiple goroutines. Recording never blocks:
// when the internal queue is full the event is dropped and counted.
//
//nolint:govet // Field alignment optimized for readability over memory efficiency
type Journal struct {
	events       []Event
	eventsCh     chan Event
	stopCh       chan struct{}
	done         chan struct{}
	droppedCount atomic.Int64
	mu           sync.Mutex
	closeOnce    sync.Once
	closed       atomic.Bool
	syncMode     atomic.Bool
}

// NewJournal creates a journal whose queue holds bufferSize events.
func NewJournal(bufferSize int) *Journal {
	if bufferSize < 1 {
		bufferSize = 1
	}
	j := &Journal{
		events:   make([]Event, 0, 64),
		eventsCh: make(chan Event, bufferSize),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go j.start()
	return j
}

func (j *Journal) start() {
	defer close(j.done)

	for {
		select {
		case <-j.stopCh:
			// Drain remaining events before shutdown.
			for {
				select {
				case ev := <-j.eventsCh:
					j.append(ev)
				default:
					return
				}
			}
		case ev := <-j.eventsCh:
			j.append(ev)
		}
	}
}

func (j *Journal) append(ev Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.events = append(j.events, ev)
}

// Record queues an event. Events recorded after Close are dropped.
func (j *Journal) Record(ev Event) {
	if j.closed.Load() {
		j.droppedCount.Add(1)
		return
	}

	if j.syncMode.Load() {
		j.append(ev)
		return
	}

	select {
	case j.eventsCh <- ev:
	default:
		j.droppedCount.Add(1)
	}
}

// Close stops the background goroutine after draining the queue.
// Safe to call multiple times.
func (j *Journal) Close() {
	j.closeOnce.Do(func() {
		j.closed.Store(true)
		close(j.stopCh)
		select {
		case <-j.done:
		case <-time.After(100 * time.Millisecond):
		}
	})
}

// Export returns the buffered events and clears the buffer.
func (j *Journal) Export() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()

	if len(j.events) == 0 {
		return nil
	}

	result := make([]Event, len(j.events))
	copy(result, j.events)
	j.events = j.events[:0]
	return result
}

// Count returns the number of buffered events.
func (j *Journal) Count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.events)
}

// DroppedCount returns the number of events lost to backpressure or
// recorded after Close.
func (j *Journal) DroppedCount() int64 {
	return j.droppedCount.Load()
}

// SetSyncMode makes Record append directly instead of going through the
// queue. This makes tests deterministic by eliminating async behavior.
func (j *Journal) SetSyncMode(sync bool) {
	j.syncMode.Store(sync)
}

// Reset clears buffered events and the drop counter.
func (j *Journal) Reset() {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.events = j.events[:0]
	j.droppedCount.Store(0)
}

// WriteEvents encodes events as JSON Lines.
func WriteEvents(w io.Writer, events []Event) error {
	enc := json.NewEncoder(w)
	for i := range events {
		if err := enc.Encode(&events[i]); err != nil {
			return fmt.Errorf("encode event %d: %w", i, err)
		}
	}
	return nil
}

// ReadEvents decodes JSON Lines produced by WriteEvents. Blank lines are
// skipped.
func ReadEvents(r io.Reader) ([]Event, error) {
	var events []Event

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		data := bytes.TrimSpace(scanner.Bytes())
		if len(data) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode event on line %d: %w", line, err)
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read events: %w", err)
	}
	return events, nil
}
