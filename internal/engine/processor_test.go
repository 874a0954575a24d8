package engine_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/StbLinux/Fody/internal/engine"
	"github.com/StbLinux/Fody/pkg/interfaces"
	"github.com/StbLinux/Fody/pkg/isolation"
	"github.com/StbLinux/Fody/pkg/logger"
	"github.com/StbLinux/Fody/pkg/state"
	"github.com/StbLinux/Fody/pkg/types"
)

// fakeConfigService serves scripted configuration files and entries
type fakeConfigService struct {
	mu               sync.Mutex
	files            []types.ConfigFile
	entries          map[string]types.ConfigEntry
	generatedDefault bool
}

func (f *fakeConfigService) Find(solutionDir, projectDir string) ([]types.ConfigFile, error) {
	return f.files, nil
}

func (f *fakeConfigService) GenerateDefault(projectDir string, weavers []types.WeaverEntry, generateSchema bool) (types.ConfigFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generatedDefault = true

	entries := make(map[string]types.ConfigEntry)
	file := types.ConfigFile{Path: filepath.Join(projectDir, "FodyWeavers.xml")}
	for _, w := range weavers {
		entries[w.ElementName] = types.ConfigEntry{
			ElementName: w.ElementName,
			File:        &file,
			Content:     []byte{},
		}
	}
	f.entries = entries
	return file, nil
}

func (f *fakeConfigService) Parse(files []types.ConfigFile) (map[string]types.ConfigEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entries, nil
}

func (f *fakeConfigService) EnsureSchemaCurrent(string, []types.WeaverEntry, bool) error {
	return nil
}

// scriptedWorker is a controllable worker double
type scriptedWorker struct {
	mu          sync.Mutex
	execErr     error
	result      *types.RunResult
	blockCancel chan struct{} // when set, Execute blocks until Cancel
	configured  bool
	executed    bool
	cancelled   bool
	closed      bool
}

func (w *scriptedWorker) Configure(params types.RunParams, weavers []types.WeaverEntry) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.configured = true
	return nil
}

func (w *scriptedWorker) Execute(ctx context.Context) (*types.RunResult, error) {
	w.mu.Lock()
	w.executed = true
	block := w.blockCancel
	w.mu.Unlock()

	if block != nil {
		select {
		case <-block:
			return nil, errors.New("weaving cancelled")
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return nil, errors.New("cancellation never arrived")
		}
	}

	if w.execErr != nil {
		return nil, w.execErr
	}
	if w.result != nil {
		return w.result, nil
	}
	return &types.RunResult{}, nil
}

func (w *scriptedWorker) Cancel() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.cancelled = true
	if w.blockCancel != nil {
		close(w.blockCancel)
		w.blockCancel = nil
	}
	return nil
}

func (w *scriptedWorker) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

type scriptedFactory struct {
	mu      sync.Mutex
	worker  interfaces.Worker
	spawned int
}

func (f *scriptedFactory) Spawn(string, []string) (interfaces.Worker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.spawned++
	return f.worker, nil
}

type noopDetector struct{}

func (noopDetector) HasChanged([]string) (bool, error) { return false, nil }
func (noopDetector) Observe([]string) error            { return nil }

// fixture builds a processor over temp directories with one installed,
// configured weaver.
type fixture struct {
	processor *engine.Processor
	request   engine.Request
	config    *fakeConfigService
	factory   *scriptedFactory
	worker    *scriptedWorker
	logOutput *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	tmp := t.TempDir()
	solutionDir := filepath.Join(tmp, "solution")
	projectDir := filepath.Join(solutionDir, "app")
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		t.Fatal(err)
	}
	assemblyPath := filepath.Join(projectDir, "App.dll")
	if err := os.WriteFile(assemblyPath, []byte("assembly"), 0644); err != nil {
		t.Fatal(err)
	}
	weaverPath := filepath.Join(tmp, "PropertyChanged.Fody.dll")
	if err := os.WriteFile(weaverPath, []byte("weaver"), 0644); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	log := logger.CreateLoggerWithOutput("debug", &buf)

	configFile := types.ConfigFile{Path: filepath.Join(projectDir, "FodyWeavers.xml")}
	config := &fakeConfigService{
		files: []types.ConfigFile{configFile},
		entries: map[string]types.ConfigEntry{
			"PropertyChanged": {
				ElementName: "PropertyChanged",
				File:        &configFile,
				Content:     []byte("<PropertyChanged/>"),
			},
		},
	}

	worker := &scriptedWorker{}
	factory := &scriptedFactory{worker: worker}
	cache := isolation.NewCache(log, factory, func(string) interfaces.ChangeDetector {
		return noopDetector{}
	})
	store := state.NewStore(tmp, log)

	proc := engine.New(log, config, nil, cache, store)

	return &fixture{
		processor: proc,
		config:    config,
		factory:   factory,
		worker:    worker,
		logOutput: &buf,
		request: engine.Request{
			SolutionDir: solutionDir,
			ProjectDir:  projectDir,
			Params: types.RunParams{
				AssemblyPath: assemblyPath,
				SolutionDir:  solutionDir,
				ProjectDir:   projectDir,
			},
			Weavers: []types.WeaverEntry{
				{ElementName: "PropertyChanged", AssemblyPath: weaverPath},
			},
		},
	}
}

func TestProcessor_SuccessfulRun(t *testing.T) {
	f := newFixture(t)

	if !f.processor.Run(context.Background(), f.request) {
		t.Fatalf("expected success, log output:\n%s", f.logOutput.String())
	}
	if !f.worker.configured || !f.worker.executed {
		t.Error("worker must be configured and executed")
	}
	if !f.worker.closed {
		t.Error("worker must be released after the run")
	}
}

func TestProcessor_EngineFailureYieldsFalse(t *testing.T) {
	f := newFixture(t)
	f.worker.execErr = errors.New("weaver blew up")

	// The failure must be converted, not propagated; Run returning at
	// all is part of the contract.
	if f.processor.Run(context.Background(), f.request) {
		t.Fatal("expected failure")
	}
	if !f.worker.closed {
		t.Error("worker must be released even when execution fails")
	}
	if !strings.Contains(f.logOutput.String(), "weaver blew up") {
		t.Error("engine failure must be captured in the diagnostics sink")
	}
}

func TestProcessor_ErrorDiagnosticWithoutErrorFailsRun(t *testing.T) {
	f := newFixture(t)
	f.worker.result = &types.RunResult{
		Diagnostics: []types.Diagnostic{
			{Level: types.DiagnosticError, Message: "could not resolve reference"},
		},
	}

	if f.processor.Run(context.Background(), f.request) {
		t.Fatal("a logged error-level diagnostic must fail the run even without an error value")
	}
}

func TestProcessor_ValidationFailureSkipsPluginWork(t *testing.T) {
	f := newFixture(t)
	f.request.Params.AssemblyPath = filepath.Join(f.request.ProjectDir, "missing.dll")

	if f.processor.Run(context.Background(), f.request) {
		t.Fatal("expected validation failure")
	}
	if f.factory.spawned != 0 {
		t.Error("no worker may be spawned when validation fails")
	}
	if f.config.generatedDefault {
		t.Error("no config work may happen when validation fails")
	}
}

func TestProcessor_MissingConfigSynthesizesDefault(t *testing.T) {
	f := newFixture(t)
	f.config.files = nil
	f.config.entries = nil

	if !f.processor.Run(context.Background(), f.request) {
		t.Fatalf("run must proceed with a synthesized default, log output:\n%s", f.logOutput.String())
	}
	if !f.config.generatedDefault {
		t.Error("a default configuration must be generated")
	}

	warnings := strings.Count(f.logOutput.String(), "generating a default")
	if warnings != 1 {
		t.Errorf("expected exactly one warning about the missing config, got %d", warnings)
	}
}

func TestProcessor_MissingWeaverFailsRun(t *testing.T) {
	f := newFixture(t)
	file := f.config.files[0]
	f.config.entries["Costura"] = types.ConfigEntry{
		ElementName: "Costura",
		File:        &file,
		Content:     []byte("<Costura/>"),
	}

	if f.processor.Run(context.Background(), f.request) {
		t.Fatal("expected failure for a configured but uninstalled weaver")
	}
	if f.factory.spawned != 0 {
		t.Error("no worker may be spawned when resolution fails")
	}
	if !strings.Contains(f.logOutput.String(), "Costura") {
		t.Error("failure must name the missing weaver")
	}
}

func TestProcessor_CancelReachesActiveWorker(t *testing.T) {
	f := newFixture(t)
	f.worker.blockCancel = make(chan struct{})

	done := make(chan bool, 1)
	go func() {
		done <- f.processor.Run(context.Background(), f.request)
	}()

	// Wait for the run to be inside the worker.
	deadline := time.After(2 * time.Second)
	for {
		f.worker.mu.Lock()
		executing := f.worker.executed
		f.worker.mu.Unlock()
		if executing {
			break
		}
		select {
		case <-deadline:
			t.Fatal("worker never started executing")
		case <-time.After(time.Millisecond):
		}
	}

	if err := f.processor.Cancel(); err != nil {
		t.Fatalf("cancel failed: %v", err)
	}

	if success := <-done; success {
		t.Error("a cancelled run must report failure")
	}
	if !f.worker.cancelled {
		t.Error("cancellation must reach the active worker")
	}
}

func TestProcessor_CancelWithNoActiveRunIsNoop(t *testing.T) {
	f := newFixture(t)

	if err := f.processor.Cancel(); err != nil {
		t.Fatalf("idle cancel must be a no-op, got %v", err)
	}
}

func TestProcessor_SequentialRunsReuseContext(t *testing.T) {
	f := newFixture(t)

	if !f.processor.Run(context.Background(), f.request) {
		t.Fatal("first run failed")
	}
	if !f.processor.Run(context.Background(), f.request) {
		t.Fatal("second run failed")
	}

	// Same context, one worker per run.
	if f.factory.spawned != 2 {
		t.Errorf("expected 2 workers, got %d", f.factory.spawned)
	}
}
