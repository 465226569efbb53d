package initz

import (
	"errors"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/zoobzio/clockz"
)

// ReportHandler is called with the final report once startup completes.
type ReportHandler func(report Report)

type handlerEntry struct {
	handler ReportHandler
	id      uint64
	async   bool
}

// Profiler aggregates span timings from any number of execution contexts.
// Safe for concurrent use by multiple goroutines.
//
//nolint:govet // Field order optimized for functionality over memory
type Profiler struct {
	registry       *Registry
	clock          clockz.Clock
	logger         logrus.FieldLogger
	reportWriter   io.Writer
	journal        *Journal
	handlers       []handlerEntry
	panicHook      func(handlerID uint64, r interface{})
	workers        *workerPool
	stackIDs       *IDPool
	runID          string
	limit          int
	final          Report
	handlersLock   sync.RWMutex
	idPoolOnce     sync.Once
	completeOnce   sync.Once
	completed      atomic.Bool
	nextID         atomic.Uint64
	droppedReports atomic.Uint64
}

// New creates a profiler with an empty registry.
// Uses the real clock and the standard logrus logger unless overridden.
func New(opts ...Option) *Profiler {
	p := &Profiler{
		registry: NewRegistry(),
		clock:    clockz.RealClock,
		logger:   logrus.StandardLogger(),
		handlers: make([]handlerEntry, 0),
		runID:    uuid.NewString(),
		limit:    DefaultReportLimit,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.WithField("run_id", p.runID)
	return p
}

// RunID returns the identifier of this profiling run.
func (p *Profiler) RunID() string {
	return p.runID
}

// Registry exposes the shared span registry.
func (p *Profiler) Registry() *Registry {
	return p.registry
}

// NewStack creates the call stack for a new execution context.
func (p *Profiler) NewStack() *Stack {
	p.ensureIDPool()
	return &Stack{profiler: p, id: p.stackIDs.Get()}
}

func (p *Profiler) newStackWithID(id string) *Stack {
	return &Stack{profiler: p, id: id}
}

// ensureIDPool initializes the stack ID pool if not already created.
func (p *Profiler) ensureIDPool() {
	p.idPoolOnce.Do(func() {
		p.stackIDs = NewIDPool(runtime.NumCPU()*16, uuid.NewString)
	})
}

func (p *Profiler) journalEvent(ev Event) {
	if p.journal != nil {
		p.journal.Record(ev)
	}
}

// Report builds a report from the current registry without side effects.
func (p *Profiler) Report() Report {
	report := BuildReport(p.registry.Snapshot(), p.limit)
	report.RunID = p.runID
	report.GeneratedAt = p.clock.Now()
	return report
}

// OnAllComplete marks the end of startup. The first call renders the
// report, hands it to the registered handlers and returns it; later calls
// return the same report and do nothing else.
func (p *Profiler) OnAllComplete() Report {
	first := false
	p.completeOnce.Do(func() {
		first = true
		p.journalEvent(Event{Kind: EventComplete, At: p.clock.Now()})

		p.final = p.Report()
		p.completed.Store(true)
		p.emit(p.final)
		p.executeHandlers(p.final)
	})
	if !first {
		p.logger.Debug("startup already marked complete")
	}
	return p.final
}

// Completed reports whether OnAllComplete has run.
func (p *Profiler) Completed() bool {
	return p.completed.Load()
}

func (p *Profiler) emit(report Report) {
	if p.reportWriter != nil {
		if _, err := report.WriteTo(p.reportWriter); err != nil {
			p.logger.WithError(err).Error("failed to write initialization report")
		}
		return
	}
	p.logger.Info("\n" + report.String())
}

// OnReport registers a synchronous handler called with the final report.
func (p *Profiler) OnReport(handler ReportHandler) uint64 {
	return p.registerHandler(handler, false)
}

// OnReportAsync registers an asynchronous handler called with the final report.
func (p *Profiler) OnReportAsync(handler ReportHandler) uint64 {
	return p.registerHandler(handler, true)
}

func (p *Profiler) registerHandler(handler ReportHandler, async bool) uint64 {
	if handler == nil {
		return 0
	}

	id := p.nextID.Add(1)

	p.handlersLock.Lock()
	defer p.handlersLock.Unlock()

	p.handlers = append(p.handlers, handlerEntry{
		id:      id,
		handler: handler,
		async:   async,
	})

	return id
}

// RemoveHandler removes a handler by ID.
func (p *Profiler) RemoveHandler(id uint64) {
	p.handlersLock.Lock()
	defer p.handlersLock.Unlock()

	// Preserve order
	for i, h := range p.handlers {
		if h.id == id {
			copy(p.handlers[i:], p.handlers[i+1:])
			p.handlers = p.handlers[:len(p.handlers)-1]
			return
		}
	}
}

// SetPanicHook sets a function to be called when a handler panics.
func (p *Profiler) SetPanicHook(hook func(handlerID uint64, r interface{})) {
	p.panicHook = hook
}

func (p *Profiler) executeHandlers(report Report) {
	p.handlersLock.RLock()
	if len(p.handlers) == 0 {
		p.handlersLock.RUnlock()
		return
	}

	handlers := make([]handlerEntry, len(p.handlers))
	copy(handlers, p.handlers)
	p.handlersLock.RUnlock()

	for _, h := range handlers {
		if h.async {
			entry := h
			if p.workers != nil {
				p.workers.submit(func() {
					p.safeCall(entry, report)
				})
			} else {
				go p.safeCall(entry, report)
			}
		} else {
			p.safeCall(h, report)
		}
	}
}

func (p *Profiler) safeCall(entry handlerEntry, report Report) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithField("handler", entry.id).Errorf("report handler panicked: %v", r)
			if p.panicHook != nil {
				p.panicHook(entry.id, r)
			}
		}
	}()
	entry.handler(report)
}

// EnableWorkerPool creates a bounded worker pool for async handlers.
func (p *Profiler) EnableWorkerPool(workers, queueSize int) error {
	if p.workers != nil {
		return errors.New("worker pool already enabled")
	}
	if workers <= 0 {
		return errors.New("workers must be > 0")
	}
	if queueSize <= 0 {
		return errors.New("queueSize must be > 0")
	}

	p.workers = &workerPool{
		tasks:   make(chan func(), queueSize),
		stop:    make(chan struct{}),
		dropped: &p.droppedReports,
	}

	p.workers.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.workers.run()
	}

	return nil
}

// DroppedReports returns the number of handler calls dropped due to a full
// worker queue.
func (p *Profiler) DroppedReports() uint64 {
	return p.droppedReports.Load()
}

// Close waits for queued async handlers and releases background resources.
func (p *Profiler) Close() {
	p.handlersLock.Lock()
	p.handlers = nil
	p.handlersLock.Unlock()

	if p.workers != nil {
		p.workers.shutdown()
		p.workers = nil
	}

	if p.stackIDs != nil {
		p.stackIDs.Close()
	}
	if p.journal != nil {
		p.journal.Close()
	}
}

// workerPool manages a fixed number of workers for processing async handlers.
//
//nolint:govet // Field order optimized for functionality over memory
type workerPool struct {
	tasks   chan func()
	stop    chan struct{}
	dropped *atomic.Uint64
	wg      sync.WaitGroup
}

func (w *workerPool) run() {
	defer w.wg.Done()
	for {
		select {
		case task := <-w.tasks:
			task()
		case <-w.stop:
			// Drain what was queued before shutdown.
			for {
				select {
				case task := <-w.tasks:
					task()
				default:
					return
				}
			}
		}
	}
}

func (w *workerPool) submit(task func()) {
	select {
	case w.tasks <- task:
	default:
		w.dropped.Add(1)
	}
}

func (w *workerPool) shutdown() {
	close(w.stop)
	w.wg.Wait()
}
