// Package worker provides the subprocess-backed isolation boundary. The
// weaving engine runs in a helper process; parameters cross the boundary
// as JSON, so host and weaver code never share memory.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/StbLinux/Fody/pkg/interfaces"
	"github.com/StbLinux/Fody/pkg/logger"
	"github.com/StbLinux/Fody/pkg/types"
)

// request is the payload written to the helper process on stdin
type request struct {
	ContextID        string              `json:"contextId"`
	WeaverAssemblies []string            `json:"weaverAssemblies"`
	Params           types.RunParams     `json:"params"`
	Weavers          []types.WeaverEntry `json:"weavers"`
}

// response is the payload the helper process writes to stdout
type response struct {
	Result *types.RunResult `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// SubprocessFactory spawns workers as child processes running the
// configured helper command.
type SubprocessFactory struct {
	logger  logger.Logger
	command string
	args    []string

	// gracePeriod is how long Close waits after a cancel signal before
	// force-killing the helper.
	gracePeriod time.Duration
}

// NewSubprocessFactory creates a factory that runs the given command.
// The command may include arguments, e.g. "dotnet FodyIsolated.dll".
func NewSubprocessFactory(log logger.Logger, command string) *SubprocessFactory {
	parts := strings.Fields(command)
	var name string
	var args []string
	if len(parts) > 0 {
		name = parts[0]
		args = parts[1:]
	}
	return &SubprocessFactory{
		logger:      log,
		command:     name,
		args:        args,
		gracePeriod: 2 * time.Second,
	}
}

// Spawn creates a worker bound to one isolation context
func (f *SubprocessFactory) Spawn(contextID string, weaverAssemblies []string) (interfaces.Worker, error) {
	if f.command == "" {
		return nil, fmt.Errorf("no worker command configured")
	}
	return &subprocessWorker{
		logger:           f.logger,
		command:          f.command,
		args:             f.args,
		contextID:        contextID,
		weaverAssemblies: weaverAssemblies,
		gracePeriod:      f.gracePeriod,
	}, nil
}

type subprocessWorker struct {
	logger           logger.Logger
	command          string
	args             []string
	contextID        string
	weaverAssemblies []string
	gracePeriod      time.Duration

	mu         sync.Mutex
	configured bool
	closed     bool
	req        request
	cmd        *exec.Cmd
}

// Configure snapshots the parameters for the run. Slices are cloned so
// the worker holds no references into host state.
func (w *subprocessWorker) Configure(params types.RunParams, weavers []types.WeaverEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("worker is closed")
	}

	cloned := make([]types.WeaverEntry, len(weavers))
	for i, entry := range weavers {
		entry.Config = append([]byte(nil), entry.Config...)
		cloned[i] = entry
	}

	w.req = request{
		ContextID:        w.contextID,
		WeaverAssemblies: append([]string(nil), w.weaverAssemblies...),
		Params:           params.Clone(),
		Weavers:          cloned,
	}
	w.configured = true
	return nil
}

// Execute runs the helper process once and decodes its result. Single
// attempt; the helper reports partial-failure detail on its own stderr.
func (w *subprocessWorker) Execute(ctx context.Context) (*types.RunResult, error) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil, fmt.Errorf("worker is closed")
	}
	if !w.configured {
		w.mu.Unlock()
		return nil, fmt.Errorf("worker not configured")
	}
	if w.cmd != nil {
		w.mu.Unlock()
		return nil, fmt.Errorf("worker already executing")
	}

	input, err := json.Marshal(w.req)
	if err != nil {
		w.mu.Unlock()
		return nil, fmt.Errorf("failed to encode run request: %w", err)
	}

	cmd := exec.Command(w.command, w.args...)
	cmd.Stdin = bytes.NewReader(input)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = os.Stderr
	cmd.Dir = w.req.Params.ProjectDir

	if err := cmd.Start(); err != nil {
		w.mu.Unlock()
		return nil, fmt.Errorf("failed to start worker process: %w", err)
	}
	w.cmd = cmd
	w.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	select {
	case waitErr = <-done:
	case <-ctx.Done():
		// Forward the cancellation, then give the helper a moment to
		// exit before killing it.
		w.signalCancel()
		select {
		case waitErr = <-done:
		case <-time.After(w.gracePeriod):
			_ = cmd.Process.Kill()
			waitErr = <-done
		}
		if waitErr == nil {
			waitErr = ctx.Err()
		}
	}

	w.mu.Lock()
	w.cmd = nil
	w.mu.Unlock()

	if waitErr != nil {
		return nil, fmt.Errorf("weaving engine failed: %w", waitErr)
	}

	var resp response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("failed to decode worker response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("weaving engine failed: %s", resp.Error)
	}
	return resp.Result, nil
}

// Cancel forwards a cancellation request to the running helper. No-op
// when no execution is in flight.
func (w *subprocessWorker) Cancel() error {
	return w.signalCancel()
}

func (w *subprocessWorker) signalCancel() error {
	w.mu.Lock()
	cmd := w.cmd
	w.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	w.logger.Debug("Forwarding cancellation to weaving engine",
		logger.WithField("pid", cmd.Process.Pid))
	return cmd.Process.Signal(os.Interrupt)
}

// Close releases the worker. If the helper is still running it is
// signalled and then killed after the grace period.
func (w *subprocessWorker) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	cmd := w.cmd
	w.cmd = nil
	w.mu.Unlock()

	if cmd == nil || cmd.Process == nil {
		return nil
	}

	if err := cmd.Process.Signal(os.Interrupt); err != nil {
		return cmd.Process.Kill()
	}

	deadline := time.After(w.gracePeriod)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case <-deadline:
			return cmd.Process.Kill()
		case <-tick.C:
			if cmd.ProcessState != nil {
				return nil
			}
		}
	}
}
