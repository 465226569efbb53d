// Package initz profiles initialization work as a tree of named spans.
//
// An instrumentation hook reports three things: a span started, a span
// ended, and the whole startup finished. initz rebuilds the call tree of
// every execution context from those notifications, computes total and
// self duration for each span, merges the results into one registry and
// renders a ranked report once startup is over.
//
// Core Components:
//   - Profiler: Owns the registry, the clock and the report handlers.
//   - Stack: Per-context call stack that links children to parents.
//   - Registry: Concurrency-safe store of one Record per span name.
//   - Report: Ranked view of the registry, rendered as plain text.
//   - Journal: Optional capture of raw notifications for later replay.
//
// Basic Usage:
//
//	profiler := initz.New()
//	defer profiler.Close()
//
//	stack := profiler.NewStack()
//	stack.OnSpanStart("dataSource")
//	// ... initialize ...
//	stack.OnSpanEnd("dataSource")
//
//	profiler.OnAllComplete()
//
// Context Propagation:
//
// A Stack may be carried in a context.Context instead of being passed
// explicitly. Profiler.Start and Profiler.End find the stack in the
// context, and Profiler.Track wraps a function so the end notification
// fires on success, error and panic alike. A goroutine that leaves its
// parent's context must call Profiler.Detach to get a stack of its own.
//
// Thread Safety:
//
// Profiler and Registry are safe for concurrent use. A Stack belongs to
// exactly one goroutine and must not be shared.
//
// Name Collisions:
//
// The registry holds a single record per name. Starting a span whose
// name was already used overwrites the earlier timings in place.
package initz

// Key represents a span name.
type Key = string
