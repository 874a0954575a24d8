// Package resolver matches discovered configuration entries to installed
// weavers and fixes their execution order.
package resolver

import (
	"fmt"
	"sort"

	"github.com/StbLinux/Fody/pkg/interfaces"
	"github.com/StbLinux/Fody/pkg/logger"
	"github.com/StbLinux/Fody/pkg/types"
)

// Resolver binds configuration entries to weavers. Inputs are provided
// by external collaborators: the installed weaver list by discovery, the
// merged entries and file list by the configuration service.
type Resolver struct {
	logger        logger.Logger
	configService interfaces.ConfigService
}

// New creates a new resolver
func New(log logger.Logger, configService interfaces.ConfigService) *Resolver {
	return &Resolver{
		logger:        log,
		configService: configService,
	}
}

// Resolve assigns each bound weaver its payload and execution-order rank
// and returns the bound subset sorted by ascending rank, ties broken by
// original discovery order. Unbound entries from non-global files are a
// hard error; weavers without an entry are skipped with a diagnostic.
//
// After binding it triggers a best-effort schema refresh so editor
// completion stays in sync with the active weavers.
func (r *Resolver) Resolve(
	weavers []types.WeaverEntry,
	entries map[string]types.ConfigEntry,
	files []types.ConfigFile,
	projectDir string,
	generateSchema bool,
) ([]types.WeaverEntry, error) {
	installed := make(map[string]bool, len(weavers))
	for _, w := range weavers {
		installed[w.ElementName] = true
	}

	// Unbound entries that came from a non-global file were clearly
	// intended to activate a weaver. Failing loudly beats silently
	// ignoring them.
	var missing []string
	for name, entry := range entries {
		if installed[name] {
			continue
		}
		if entry.File != nil && entry.File.IsGlobal {
			r.logger.Debug(fmt.Sprintf("Ignoring global directive %q with no installed weaver", name))
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &WeaverNotFoundError{ElementNames: missing}
	}

	// Bind payloads and ranks, preserving discovery order for the
	// stable-sort tie break below.
	bound := make([]types.WeaverEntry, 0, len(weavers))
	for _, w := range weavers {
		entry, ok := entries[w.ElementName]
		if !ok {
			r.logger.Warn(fmt.Sprintf("Weaver %s is installed but has no configuration entry, skipping", w.ElementName))
			continue
		}

		w.Config = entry.Content
		if w.Config == nil {
			// An empty element still counts as configured.
			w.Config = []byte{}
		}
		w.ExecutionOrder = entry.ExecutionOrder
		bound = append(bound, w)
	}

	if len(bound) == 0 {
		return nil, ErrNoWeaversConfigured
	}

	// Downstream transformation correctness can depend on order, so the
	// sort must be deterministic across runs: stable, ascending rank.
	sort.SliceStable(bound, func(i, j int) bool {
		return bound[i].ExecutionOrder < bound[j].ExecutionOrder
	})

	if r.configService != nil {
		if err := r.configService.EnsureSchemaCurrent(projectDir, bound, generateSchema); err != nil {
			r.logger.Warn("Failed to refresh configuration schema", logger.WithField("error", err))
		}
	}

	for _, w := range bound {
		r.logger.Debug(fmt.Sprintf("Resolved weaver %s", w.ElementName),
			logger.WithField("order", w.ExecutionOrder),
			logger.WithField("assembly", w.AssemblyPath))
	}

	return bound, nil
}
