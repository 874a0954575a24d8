package engine

import (
	"context"
	"sync"

	"github.com/StbLinux/Fody/pkg/interfaces"
	"github.com/StbLinux/Fody/pkg/isolation"
	"github.com/StbLinux/Fody/pkg/logger"
	"github.com/StbLinux/Fody/pkg/types"
)

// Coordinator runs the weaving engine inside an isolation context. The
// worker instance is scoped to a single run and released on every exit
// path; the context itself persists across runs.
type Coordinator struct {
	logger logger.Logger

	mu     sync.Mutex
	active interfaces.Worker
}

// NewCoordinator creates a new execution coordinator
func NewCoordinator(log logger.Logger) *Coordinator {
	return &Coordinator{logger: log}
}

// Execute spawns a worker inside the context, copies the run parameters
// into it and invokes the engine once. Failures are returned unchanged;
// there is no retry, the engine already reports partial-failure detail
// through its own diagnostics.
func (c *Coordinator) Execute(
	ctx context.Context,
	log logger.Logger,
	isoCtx *isolation.Context,
	params types.RunParams,
	weavers []types.WeaverEntry,
) (result *types.RunResult, err error) {
	worker, err := isoCtx.NewWorker()
	if err != nil {
		return nil, err
	}
	defer func() {
		c.mu.Lock()
		c.active = nil
		c.mu.Unlock()

		if closeErr := worker.Close(); closeErr != nil {
			log.Warn("Failed to release worker", logger.WithField("error", closeErr))
		}
	}()

	c.mu.Lock()
	c.active = worker
	c.mu.Unlock()

	if err := worker.Configure(params, weavers); err != nil {
		return nil, err
	}

	result, err = worker.Execute(ctx)
	if result != nil {
		c.replayDiagnostics(log, result.Diagnostics)
	}
	return result, err
}

// replayDiagnostics surfaces engine log entries in the host sink. An
// error-level entry flips the run's error flag, which fails the run
// even when the engine itself exited cleanly.
func (c *Coordinator) replayDiagnostics(log logger.Logger, diags []types.Diagnostic) {
	for _, d := range diags {
		switch d.Level {
		case types.DiagnosticError:
			log.Error(d.Message)
		case types.DiagnosticWarning:
			log.Warn(d.Message)
		case types.DiagnosticDebug:
			log.Debug(d.Message)
		default:
			log.Info(d.Message)
		}
	}
}

// Cancel forwards a cancellation request to the worker of the run in
// flight. Best-effort and a no-op when no run is active; it signals the
// engine without tearing down the isolation boundary.
func (c *Coordinator) Cancel() error {
	c.mu.Lock()
	worker := c.active
	c.mu.Unlock()

	if worker == nil {
		return nil
	}
	c.logger.Info("Cancelling weave in progress")
	return worker.Cancel()
}
