package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zoobzio/initz"
)

// component is a simulated unit of startup work with its dependencies.
type component struct {
	name string
	cost time.Duration
	deps []string
}

// demoComponents models a small service: a database layer, a cache layer
// and two services built on top of them.
var demoComponents = []component{
	{name: "databaseConfig"},
	{name: "dataSource", cost: 1500 * time.Millisecond, deps: []string{"databaseConfig"}},
	{name: "entityManagerFactory", cost: 2000 * time.Millisecond, deps: []string{"dataSource"}},
	{name: "cacheConfig"},
	{name: "cacheManager", cost: 800 * time.Millisecond, deps: []string{"cacheConfig"}},
	{name: "userService", cost: 1000 * time.Millisecond, deps: []string{"entityManagerFactory"}},
	{name: "cacheableUserService", cost: 500 * time.Millisecond, deps: []string{"userService", "cacheManager"}},
}

// container creates each component once, resolving dependencies inside
// the dependent's span the way a DI container does.
type container struct {
	profiler   *initz.Profiler
	components map[string]component
	scale      float64
	mu         sync.Mutex
	once       map[string]*sync.Once
}

func newContainer(p *initz.Profiler, components []component, scale float64) *container {
	c := &container{
		profiler:   p,
		components: make(map[string]component, len(components)),
		scale:      scale,
		once:       make(map[string]*sync.Once, len(components)),
	}
	for _, comp := range components {
		c.components[comp.name] = comp
		c.once[comp.name] = &sync.Once{}
	}
	return c
}

func (c *container) get(ctx context.Context, name string) error {
	comp, ok := c.components[name]
	if !ok {
		return fmt.Errorf("unknown component %q", name)
	}

	c.mu.Lock()
	once := c.once[name]
	c.mu.Unlock()

	var err error
	once.Do(func() {
		err = c.profiler.Track(ctx, name, func(ctx context.Context) error {
			for _, dep := range comp.deps {
				if err := c.get(ctx, dep); err != nil {
					return err
				}
			}
			return sleep(ctx, time.Duration(float64(comp.cost)*c.scale))
		})
	})
	return err
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newDemoCommand(root *rootOptions) *cobra.Command {
	var (
		scale       float64
		parallel    int
		journalPath string
	)

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Profile a simulated service startup",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			if parallel < 1 {
				return fmt.Errorf("parallel must be >= 1, got %d", parallel)
			}

			var extra []initz.Option
			var journal *initz.Journal
			if journalPath != "" {
				journal = initz.NewJournal(cfg.JournalBuffer)
				extra = append(extra, initz.WithJournal(journal))
			}

			p, logger, err := newProfiler(cmd, cfg, extra...)
			if err != nil {
				return err
			}
			defer p.Close()

			c := newContainer(p, demoComponents, scale)

			// Each worker owns a stack and starts from a different component.
			g, ctx := errgroup.WithContext(cmd.Context())
			for i := 0; i < parallel; i++ {
				worker := i
				g.Go(func() error {
					wctx := p.Detach(ctx)
					for j := range demoComponents {
						name := demoComponents[(j+worker)%len(demoComponents)].name
						if err := c.get(wctx, name); err != nil {
							return err
						}
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return fmt.Errorf("demo startup: %w", err)
			}

			p.OnAllComplete()

			if journal != nil {
				journal.Close()
				events := journal.Export()
				if err := writeJournal(journalPath, events); err != nil {
					return err
				}
				logger.WithField("events", len(events)).Infof("wrote journal to %s", journalPath)
			}
			return nil
		},
	}
	cmd.Flags().Float64Var(&scale, "scale", 0.01, "Multiplier applied to simulated component costs")
	cmd.Flags().IntVar(&parallel, "parallel", 1, "Number of goroutines initializing components")
	cmd.Flags().StringVar(&journalPath, "journal", "", "Record notifications to this JSON Lines file")
	return cmd
}

func writeJournal(path string, events []initz.Event) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	if err := initz.WriteEvents(f, events); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
