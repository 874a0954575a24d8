// Package types defines the core data model for the weaving pipeline
package types

import (
	"time"
)

// WeaverEntry describes an installed weaver and, once resolved, the
// configuration bound to it. Discovery constructs entries with a nil
// Config; the resolver assigns Config and ExecutionOrder exactly once,
// after which the entry is treated as immutable for the run.
type WeaverEntry struct {
	// ElementName is the weaver's identity, e.g. "PropertyChanged" for
	// PropertyChanged.Fody.
	ElementName string `json:"elementName"`

	// AssemblyPath is the on-disk location of the weaver assembly.
	AssemblyPath string `json:"assemblyPath"`

	// ExecutionOrder is the rank assigned during resolution. Lower runs
	// first. Meaningless until Config is non-nil.
	ExecutionOrder int `json:"executionOrder"`

	// Config is the raw configuration payload bound to this weaver, nil
	// until the resolver matches a configuration entry to it.
	Config []byte `json:"config,omitempty"`
}

// HasConfig reports whether a configuration entry was bound to this weaver.
func (w *WeaverEntry) HasConfig() bool {
	return w.Config != nil
}

// ConfigEntry is a single weaver element parsed out of a configuration
// file. Produced by the discovery service per run; read-only afterwards.
type ConfigEntry struct {
	ElementName    string
	File           *ConfigFile
	Content        []byte
	ExecutionOrder int
}

// ConfigFile is a discovered configuration file. Global files carry
// directives that apply across weavers and are not required to match an
// installed weaver one-to-one.
type ConfigFile struct {
	Path     string `json:"path"`
	IsGlobal bool   `json:"isGlobal"`
}

// DebugSymbolMode controls how debug symbols are handled by the worker.
type DebugSymbolMode string

const (
	DebugSymbolsFull     DebugSymbolMode = "full"
	DebugSymbolsPortable DebugSymbolMode = "portable"
	DebugSymbolsEmbedded DebugSymbolMode = "embedded"
	DebugSymbolsNone     DebugSymbolMode = "none"
)

// RunParams is the full parameter snapshot handed to the worker for a
// single weave. It crosses the isolation boundary by value only; the
// worker never shares memory with the host.
type RunParams struct {
	AssemblyPath            string          `json:"assemblyPath"`
	SolutionDir             string          `json:"solutionDir"`
	ProjectDir              string          `json:"projectDir"`
	ProjectFilePath         string          `json:"projectFilePath,omitempty"`
	IntermediateDir         string          `json:"intermediateDir,omitempty"`
	KeyFilePath             string          `json:"keyFilePath,omitempty"`
	SignAssembly            bool            `json:"signAssembly"`
	References              []string        `json:"references,omitempty"`
	ReferenceCopyLocalPaths []string        `json:"referenceCopyLocalPaths,omitempty"`
	DefineConstants         []string        `json:"defineConstants,omitempty"`
	DebugSymbols            DebugSymbolMode `json:"debugSymbols,omitempty"`
}

// Clone returns a deep copy. Parameters are copied field-by-field into
// the worker, so the host-side snapshot must not alias slices the caller
// may still mutate.
func (p RunParams) Clone() RunParams {
	out := p
	out.References = append([]string(nil), p.References...)
	out.ReferenceCopyLocalPaths = append([]string(nil), p.ReferenceCopyLocalPaths...)
	out.DefineConstants = append([]string(nil), p.DefineConstants...)
	return out
}

// DiagnosticLevel classifies a diagnostic emitted by the weaving engine.
type DiagnosticLevel string

const (
	DiagnosticDebug   DiagnosticLevel = "debug"
	DiagnosticInfo    DiagnosticLevel = "info"
	DiagnosticWarning DiagnosticLevel = "warning"
	DiagnosticError   DiagnosticLevel = "error"
)

// Diagnostic is one log entry produced inside the isolation boundary.
// Error-level diagnostics fail the run even when the engine exits
// without an error.
type Diagnostic struct {
	Level   DiagnosticLevel `json:"level"`
	Message string          `json:"message"`
}

// RunResult carries worker output back across the boundary.
type RunResult struct {
	// ReferenceCopyLocalPaths is the updated set of side-effect file
	// paths the worker produced, if any.
	ReferenceCopyLocalPaths []string `json:"referenceCopyLocalPaths,omitempty"`

	// ExecutedWeavers lists the weavers that actually ran, in order.
	ExecutedWeavers []string `json:"executedWeavers,omitempty"`

	// Diagnostics are the engine's log entries, replayed into the host
	// diagnostics sink after the run.
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`

	Duration time.Duration `json:"duration,omitempty"`
}

// WeaveStatus represents the status of a weave run
type WeaveStatus string

const (
	WeaveStatusIdle      WeaveStatus = "idle"
	WeaveStatusRunning   WeaveStatus = "running"
	WeaveStatusSucceeded WeaveStatus = "succeeded"
	WeaveStatusFailed    WeaveStatus = "failed"
	WeaveStatusCancelled WeaveStatus = "cancelled"
)
