// Package engine provides the core weaving orchestration
package engine

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/StbLinux/Fody/pkg/interfaces"
	"github.com/StbLinux/Fody/pkg/isolation"
	"github.com/StbLinux/Fody/pkg/logger"
	"github.com/StbLinux/Fody/pkg/resolver"
	"github.com/StbLinux/Fody/pkg/state"
	"github.com/StbLinux/Fody/pkg/types"
	"github.com/StbLinux/Fody/pkg/validation"
)

// Request describes one weave invocation
type Request struct {
	SolutionDir string
	ProjectDir  string

	// Params is the parameter snapshot for the worker. Params.AssemblyPath
	// is the target assembly to weave.
	Params types.RunParams

	// Weavers is the list of installed weavers, as discovered by the
	// packaging layer.
	Weavers []types.WeaverEntry

	GenerateSchema bool
}

// Processor sequences a weave run: validate paths, discover and parse
// configuration, resolve weavers, acquire the isolation context and
// execute. Every failure is caught here, logged once and converted into
// a boolean result; a weaver error must never crash the build process.
type Processor struct {
	logger      logger.Logger
	validator   *validation.PathValidator
	config      interfaces.ConfigService
	notifier    interfaces.WeaveNotifier
	cache       *isolation.Cache
	coordinator *Coordinator
	store       *state.Store
}

// New creates a new processor
func New(
	log logger.Logger,
	config interfaces.ConfigService,
	notifier interfaces.WeaveNotifier,
	cache *isolation.Cache,
	store *state.Store,
) *Processor {
	return &Processor{
		logger:      log,
		validator:   validation.NewPathValidator(),
		config:      config,
		notifier:    notifier,
		cache:       cache,
		coordinator: NewCoordinator(log),
		store:       store,
	}
}

// Run performs one weave and reports success. The run fails when an
// error surfaced from any stage or when an error-level diagnostic was
// logged, even without an accompanying error value.
func (p *Processor) Run(ctx context.Context, req Request) bool {
	log := p.logger.NewRunScope()
	start := time.Now()

	if p.notifier != nil {
		p.notifier.NotifyWeaveStart(req.ProjectDir)
	}

	result, err := p.runGuarded(ctx, log, req)
	elapsed := time.Since(start)

	success := err == nil && !log.ErrorOccurred()

	if err != nil {
		log.Error("Weaving failed", logger.WithField("error", err))
	}

	status := types.WeaveStatusSucceeded
	if !success {
		status = types.WeaveStatusFailed
	}
	if recErr := p.store.RecordRun(req.SolutionDir, status, elapsed, err); recErr != nil {
		log.Warn("Failed to record run state", logger.WithField("error", recErr))
	}

	if success {
		log.Success(fmt.Sprintf("Finished weaving in %dms", elapsed.Milliseconds()))
		if p.notifier != nil {
			p.notifier.NotifyWeaveSuccess(req.ProjectDir, result)
		}
	} else {
		log.Info(fmt.Sprintf("Weaving failed after %dms", elapsed.Milliseconds()))
		if p.notifier != nil {
			p.notifier.NotifyWeaveFailure(req.ProjectDir, err)
		}
	}

	return success
}

// Cancel forwards a cancellation request to the run in flight, if any
func (p *Processor) Cancel() error {
	return p.coordinator.Cancel()
}

// runGuarded turns a panicking stage into an ordinary run failure
func (p *Processor) runGuarded(ctx context.Context, log logger.Logger, req Request) (result *types.RunResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Panic during weaving",
				logger.WithField("panic", r),
				logger.WithField("stack_trace", string(debug.Stack())))
			err = fmt.Errorf("panic during weaving: %v", r)
		}
	}()

	return p.run(ctx, log, req)
}

// run is the inner sequencing logic. Failure is an explicit error
// return, propagated by early-return and logged exactly once in Run.
func (p *Processor) run(ctx context.Context, log logger.Logger, req Request) (*types.RunResult, error) {
	if err := p.validator.ValidateRun(req.SolutionDir, req.ProjectDir, req.Params.AssemblyPath); err != nil {
		return nil, err
	}

	files, err := p.config.Find(req.SolutionDir, req.ProjectDir)
	if err != nil {
		return nil, fmt.Errorf("configuration discovery failed: %w", err)
	}

	if len(files) == 0 {
		log.Warn(fmt.Sprintf("Could not find a FodyWeavers.xml for the project, generating a default at %s", req.ProjectDir))
		defaultFile, err := p.config.GenerateDefault(req.ProjectDir, req.Weavers, req.GenerateSchema)
		if err != nil {
			return nil, fmt.Errorf("failed to generate default configuration: %w", err)
		}
		files = []types.ConfigFile{defaultFile}
	}

	entries, err := p.config.Parse(files)
	if err != nil {
		return nil, fmt.Errorf("configuration parsing failed: %w", err)
	}

	res := resolver.New(log, p.config)
	weavers, err := res.Resolve(req.Weavers, entries, files, req.ProjectDir, req.GenerateSchema)
	if err != nil {
		return nil, err
	}

	log.Info(fmt.Sprintf("Executing %d weaver(s)", len(weavers)))

	assemblies := make([]string, 0, len(weavers))
	for _, w := range weavers {
		assemblies = append(assemblies, w.AssemblyPath)
	}

	var result *types.RunResult
	err = p.cache.Run(req.SolutionDir, assemblies, func(isoCtx *isolation.Context) error {
		var execErr error
		result, execErr = p.coordinator.Execute(ctx, log, isoCtx, req.Params, weavers)
		return execErr
	})
	if err != nil {
		return nil, err
	}

	if result != nil && len(result.ExecutedWeavers) > 0 {
		log.Debug(fmt.Sprintf("Weavers executed: %v", result.ExecutedWeavers))
	}

	return result, nil
}
