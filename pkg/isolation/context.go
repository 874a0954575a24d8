// Package isolation manages the per-solution isolation contexts that
// weaver code executes inside.
package isolation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/StbLinux/Fody/pkg/interfaces"
)

// Context is the isolation boundary for one solution. It owns at most
// one live worker at a time; weaver assemblies loaded into the boundary
// cannot be reloaded in place, so a changed assembly forces a fresh
// context rather than a reload.
type Context struct {
	id               string
	solutionPath     string
	weaverAssemblies []string
	factory          interfaces.WorkerFactory
	createdAt        time.Time

	mu       sync.Mutex
	unloaded bool
}

func newContext(solutionPath string, weaverAssemblies []string, factory interfaces.WorkerFactory) *Context {
	return &Context{
		id:               uuid.NewString(),
		solutionPath:     solutionPath,
		weaverAssemblies: append([]string(nil), weaverAssemblies...),
		factory:          factory,
		createdAt:        time.Now(),
	}
}

// ID returns the unique identifier of this context instance
func (c *Context) ID() string { return c.id }

// SolutionPath returns the solution this context serves
func (c *Context) SolutionPath() string { return c.solutionPath }

// WeaverAssemblies returns the assemblies loaded into the boundary
func (c *Context) WeaverAssemblies() []string {
	return append([]string(nil), c.weaverAssemblies...)
}

// CreatedAt returns the creation time of the context
func (c *Context) CreatedAt() time.Time { return c.createdAt }

// Unloaded reports whether the context has been torn down
func (c *Context) Unloaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unloaded
}

// NewWorker spawns a fresh worker inside the boundary. The worker is
// scoped to a single run; the context persists across runs.
func (c *Context) NewWorker() (interfaces.Worker, error) {
	c.mu.Lock()
	if c.unloaded {
		c.mu.Unlock()
		return nil, fmt.Errorf("isolation context %s is unloaded", c.id)
	}
	c.mu.Unlock()

	return c.factory.Spawn(c.id, c.weaverAssemblies)
}

// ContextReleaser is implemented by worker factories that hold resources
// per context and need a teardown signal when it is invalidated.
type ContextReleaser interface {
	Release(contextID string) error
}

// Unload tears the context down. Idempotent.
func (c *Context) Unload() error {
	c.mu.Lock()
	if c.unloaded {
		c.mu.Unlock()
		return nil
	}
	c.unloaded = true
	c.mu.Unlock()

	if releaser, ok := c.factory.(ContextReleaser); ok {
		return releaser.Release(c.id)
	}
	return nil
}
