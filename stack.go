package initz

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Stack is the call stack of one execution context.
// Stacks are NOT thread-safe - only the owning goroutine may use one.
type Stack struct {
	profiler *Profiler
	id       string
	frames   []*entry
}

// ID returns the identifier of the execution context owning this stack.
func (s *Stack) ID() string {
	return s.id
}

// Depth returns the number of spans currently open on the stack.
func (s *Stack) Depth() int {
	return len(s.frames)
}

// Top returns the name of the innermost open span.
func (s *Stack) Top() (Key, bool) {
	if len(s.frames) == 0 {
		return "", false
	}
	return s.frames[len(s.frames)-1].name, true
}

// OnSpanStart records the entry of the unit of work called name.
// The span becomes a child of the current top of the stack, if any.
func (s *Stack) OnSpanStart(name Key) {
	s.startAt(name, s.profiler.clock.Now())
}

// OnSpanEnd records the exit of the unit of work called name.
// It must fire on every exit path, failures included. Ends that do not
// match the top of the stack are ignored and leave the stack untouched.
func (s *Stack) OnSpanEnd(name Key) {
	s.endAt(name, s.profiler.clock.Now())
}

func (s *Stack) startAt(name Key, at time.Time) {
	p := s.profiler
	e := p.registry.getOrCreate(name)

	var parent *entry
	if n := len(s.frames); n > 0 {
		parent = s.frames[n-1]
	}

	if parent != nil {
		if e.begin(at, parent.name) {
			parent.adopt(e.name)
		}
	} else {
		e.begin(at, "")
	}
	s.frames = append(s.frames, e)

	p.journalEvent(Event{Kind: EventStart, Context: s.id, Name: name, At: at})
}

func (s *Stack) endAt(name Key, at time.Time) bool {
	p := s.profiler
	p.journalEvent(Event{Kind: EventEnd, Context: s.id, Name: name, At: at})

	n := len(s.frames)
	if n == 0 || s.frames[n-1].name != name {
		top, _ := s.Top()
		p.logger.WithFields(logrus.Fields{
			"stack": s.id,
			"span":  name,
			"top":   top,
		}).Debug("ignoring end without matching start")
		return false
	}

	e := s.frames[n-1]
	s.frames[n-1] = nil
	s.frames = s.frames[:n-1]

	start, children := e.stop(at)
	total, self := measure(start, at, p.registry.childTotals(children))
	e.settle(total, self)
	return true
}
