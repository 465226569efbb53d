package initz

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// ErrUnknownEvent is returned by Replay for events of an unrecognized kind.
var ErrUnknownEvent = errors.New("unknown event kind")

// Replay feeds recorded notifications back into the profiler using their
// recorded timestamps. Events are grouped by context and each group runs
// on its own stack and goroutine, in recorded order. Complete events are
// skipped; call OnAllComplete once Replay returns.
func (p *Profiler) Replay(ctx context.Context, events []Event) error {
	order := make([]string, 0)
	groups := make(map[string][]Event)
	for i, ev := range events {
		switch ev.Kind {
		case EventStart, EventEnd:
		case EventComplete:
			continue
		default:
			return fmt.Errorf("event %d (%q): %w", i, ev.Kind, ErrUnknownEvent)
		}
		if _, ok := groups[ev.Context]; !ok {
			order = append(order, ev.Context)
		}
		groups[ev.Context] = append(groups[ev.Context], ev)
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, id := range order {
		stack := p.newStackWithID(id)
		group := groups[id]
		g.Go(func() error {
			for _, ev := range group {
				if err := ctx.Err(); err != nil {
					return err
				}
				if ev.Kind == EventStart {
					stack.startAt(ev.Name, ev.At)
				} else {
					stack.endAt(ev.Name, ev.At)
				}
			}
			return nil
		})
	}
	return g.Wait()
}
