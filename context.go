package initz

import (
	"context"
	"fmt"
)

// stackKeyType is a private type for context keys to avoid collisions.
type stackKeyType string

const (
	stackKey stackKeyType = "initz"
)

// ContextWithStack returns a context carrying stack.
func ContextWithStack(ctx context.Context, stack *Stack) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, stackKey, stack)
}

// StackFromContext extracts the stack from a context.
// Returns nil if no stack is present.
func StackFromContext(ctx context.Context) *Stack {
	if ctx == nil {
		return nil
	}
	if stack, ok := ctx.Value(stackKey).(*Stack); ok {
		return stack
	}
	return nil
}

// Start opens span name on the stack carried by ctx. A new stack is
// installed when ctx has none (or one from another profiler); use the
// returned context for nested work.
func (p *Profiler) Start(ctx context.Context, name Key) context.Context {
	stack := StackFromContext(ctx)
	if stack == nil || stack.profiler != p {
		stack = p.NewStack()
		ctx = ContextWithStack(ctx, stack)
	}
	stack.OnSpanStart(name)
	return ctx
}

// End closes span name on the stack carried by ctx.
// No-op when ctx carries no stack of this profiler.
func (p *Profiler) End(ctx context.Context, name Key) {
	stack := StackFromContext(ctx)
	if stack == nil || stack.profiler != p {
		return
	}
	stack.OnSpanEnd(name)
}

// Detach returns a context with a fresh stack, for work handed to a new
// goroutine. Spans opened there will not be linked to the caller's spans.
func (p *Profiler) Detach(ctx context.Context) context.Context {
	return ContextWithStack(ctx, p.NewStack())
}

// Track runs fn inside span name. The span is ended whether fn returns
// normally, returns an error or panics; panics are re-raised.
func (p *Profiler) Track(ctx context.Context, name Key, fn func(context.Context) error) error {
	ctx = p.Start(ctx, name)
	defer p.End(ctx, name)

	if fn == nil {
		return fmt.Errorf("track %q: nil function", name)
	}
	return fn(ctx)
}
