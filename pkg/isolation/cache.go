package isolation

import (
	"fmt"
	"sync"

	"github.com/StbLinux/Fody/pkg/interfaces"
	"github.com/StbLinux/Fody/pkg/logger"
	"github.com/StbLinux/Fody/pkg/state"
)

// DetectorFactory yields the change detector for one solution
type DetectorFactory func(solutionPath string) interfaces.ChangeDetector

// Cache maps solution identity (case-insensitive path) to a live
// isolation context and owns the single process-wide execution lock.
// Cache replacement is atomic with respect to execution: a run either
// sees the context of the immediately preceding run or a fresh one,
// never one mid-teardown.
type Cache struct {
	logger      logger.Logger
	factory     interfaces.WorkerFactory
	newDetector DetectorFactory

	mu       sync.Mutex // process-wide lock, held for acquire+execute
	contexts map[string]*Context
}

// NewCache creates a new context cache
func NewCache(log logger.Logger, factory interfaces.WorkerFactory, newDetector DetectorFactory) *Cache {
	return &Cache{
		logger:      log,
		factory:     factory,
		newDetector: newDetector,
		contexts:    make(map[string]*Context),
	}
}

// Run executes fn against the context for the solution while holding the
// process-wide lock. Only one run may be inside any isolation context at
// a time, even across different solutions; acquisition blocks until the
// previous run completes.
func (c *Cache) Run(solutionPath string, weaverAssemblies []string, fn func(*Context) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, err := c.acquire(solutionPath, weaverAssemblies)
	if err != nil {
		return err
	}
	return fn(ctx)
}

// acquire returns the context for the solution, creating it on first use
// and replacing it when any candidate weaver assembly changed since the
// existing context was created. Callers must hold the lock.
func (c *Cache) acquire(solutionPath string, weaverAssemblies []string) (*Context, error) {
	key := state.Identity(solutionPath)
	detector := c.newDetector(solutionPath)

	existing, ok := c.contexts[key]
	if ok {
		changed, err := detector.HasChanged(weaverAssemblies)
		if err != nil {
			return nil, fmt.Errorf("change detection failed for %s: %w", solutionPath, err)
		}

		if !changed {
			c.logger.Debug("Reusing isolation context",
				logger.WithField("context", existing.ID()),
				logger.WithField("solution", solutionPath))
			return existing, nil
		}

		// A weaver assembly changed on disk. The boundary cannot reload
		// it in place, so tear the context down and start over.
		c.logger.Info("Weaver assemblies changed, recreating isolation context",
			logger.WithField("solution", solutionPath))
		if err := existing.Unload(); err != nil {
			c.logger.Warn("Failed to unload isolation context", logger.WithField("error", err))
		}
		delete(c.contexts, key)
	}

	fresh := newContext(solutionPath, weaverAssemblies, c.factory)
	if err := detector.Observe(weaverAssemblies); err != nil {
		return nil, fmt.Errorf("failed to record observation baseline: %w", err)
	}
	c.contexts[key] = fresh

	c.logger.Debug("Created isolation context",
		logger.WithField("context", fresh.ID()),
		logger.WithField("solution", solutionPath))
	return fresh, nil
}

// Len returns the number of live contexts
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.contexts)
}

// UnloadAll tears down every cached context, e.g. at process shutdown
func (c *Cache) UnloadAll() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, ctx := range c.contexts {
		if err := ctx.Unload(); err != nil {
			c.logger.Warn("Failed to unload isolation context",
				logger.WithField("context", ctx.ID()),
				logger.WithField("error", err))
		}
		delete(c.contexts, key)
	}
}
