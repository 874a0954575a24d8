// Package interfaces provides abstractions for dependency injection and testability
package interfaces

import (
	"context"

	"github.com/StbLinux/Fody/pkg/types"
)

// ConfigService locates, synthesizes and parses weaver configuration files
type ConfigService interface {
	// Find returns every configuration file that applies to the build,
	// project-level first, then solution-level and machine-wide globals.
	Find(solutionDir, projectDir string) ([]types.ConfigFile, error)

	// GenerateDefault writes a default project-level configuration file
	// referencing the installed weavers and returns it.
	GenerateDefault(projectDir string, weavers []types.WeaverEntry, generateSchema bool) (types.ConfigFile, error)

	// Parse merges the files into one entry per element name.
	Parse(files []types.ConfigFile) (map[string]types.ConfigEntry, error)

	// EnsureSchemaCurrent refreshes the XML schema next to the project
	// configuration. Best-effort; callers treat failures as diagnostics.
	EnsureSchemaCurrent(projectDir string, weavers []types.WeaverEntry, generateSchema bool) error
}

// ChangeDetector decides whether any of the given files changed since the
// detector's prior observation of those exact paths.
type ChangeDetector interface {
	HasChanged(paths []string) (bool, error)

	// Observe records the current state of the paths as the new baseline.
	Observe(paths []string) error
}

// Worker is one transformation-engine instance living inside an isolation
// context. It is scoped to a single run: configure, execute, close.
type Worker interface {
	// Configure copies the run parameters and the ordered weaver list
	// into the worker, field by field. The boundary forbids live object
	// sharing, so implementations must not retain references into params.
	Configure(params types.RunParams, weavers []types.WeaverEntry) error

	// Execute performs the weave. Single attempt; any failure is returned
	// as-is and never retried.
	Execute(ctx context.Context) (*types.RunResult, error)

	// Cancel asks the engine to stop. Advisory; it does not tear down the
	// isolation boundary.
	Cancel() error

	// Close releases the instance. Must be safe on every exit path.
	Close() error
}

// WorkerFactory creates workers inside an isolation context. Platforms
// can satisfy this via subprocesses, dynamic libraries or in-process
// modules, as long as host and plugin code share no mutable state.
type WorkerFactory interface {
	Spawn(contextID string, weaverAssemblies []string) (Worker, error)
}

// WeaveNotifier surfaces run outcomes to the user
type WeaveNotifier interface {
	NotifyWeaveStart(project string)
	NotifyWeaveSuccess(project string, result *types.RunResult)
	NotifyWeaveFailure(project string, err error)
}
