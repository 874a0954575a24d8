// Package state provides persistent per-solution state for Fody
package state

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/StbLinux/Fody/pkg/logger"
	"github.com/StbLinux/Fody/pkg/types"
)

// FileObservation is the recorded state of one weaver assembly at the
// time the current isolation context was created.
type FileObservation struct {
	Path    string    `json:"path"`
	Hash    string    `json:"hash,omitempty"`
	ModTime time.Time `json:"modTime"`
	Size    int64     `json:"size"`
}

// SolutionState is the persistent state of one solution
type SolutionState struct {
	SolutionPath  string                     `json:"solutionPath"`
	Observations  map[string]FileObservation `json:"observations,omitempty"`
	WeaveStatus   types.WeaveStatus          `json:"weaveStatus"`
	LastWeaveTime time.Time                  `json:"lastWeaveTime"`
	WeaveCount    int                        `json:"weaveCount"`
	FailureCount  int                        `json:"failureCount"`
	LastError     string                     `json:"lastError,omitempty"`
	WeaveDuration time.Duration              `json:"weaveDuration,omitempty"`
	ProcessID     int                        `json:"processId"`
}

// Store handles persistent solution state files under <root>/.fody/state.
// The change detector keys its prior observations off this store, so the
// observation baseline survives process restarts.
type Store struct {
	stateDir string
	logger   logger.Logger
	mu       sync.RWMutex
	states   map[string]*SolutionState
}

// NewStore creates a new state store rooted at the given directory
func NewStore(root string, log logger.Logger) *Store {
	stateDir := filepath.Join(root, ".fody", "state")

	if err := os.MkdirAll(stateDir, 0755); err != nil && log != nil {
		log.Error("Failed to create state directory", logger.WithField("error", err))
	}

	return &Store{
		stateDir: stateDir,
		logger:   log,
		states:   make(map[string]*SolutionState),
	}
}

// Load returns the state for a solution, reading it from disk on first
// access. A missing state file yields a fresh zero state, not an error.
func (s *Store) Load(solutionPath string) (*SolutionState, error) {
	key := Identity(solutionPath)

	s.mu.RLock()
	if st, ok := s.states[key]; ok {
		s.mu.RUnlock()
		return st, nil
	}
	s.mu.RUnlock()

	st, err := s.loadFile(key)
	if err != nil {
		if os.IsNotExist(err) {
			st = &SolutionState{
				SolutionPath: solutionPath,
				WeaveStatus:  types.WeaveStatusIdle,
				Observations: make(map[string]FileObservation),
			}
		} else {
			return nil, fmt.Errorf("failed to load state for %s: %w", solutionPath, err)
		}
	}

	s.mu.Lock()
	s.states[key] = st
	s.mu.Unlock()
	return st, nil
}

// SetObservations replaces the observation baseline for a solution
func (s *Store) SetObservations(solutionPath string, obs map[string]FileObservation) error {
	st, err := s.Load(solutionPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	st.Observations = obs
	return s.saveFile(st)
}

// RecordRun updates the weave statistics after a run
func (s *Store) RecordRun(solutionPath string, status types.WeaveStatus, duration time.Duration, runErr error) error {
	st, err := s.Load(solutionPath)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	st.WeaveStatus = status
	st.LastWeaveTime = time.Now()
	st.WeaveDuration = duration
	st.WeaveCount++
	st.ProcessID = os.Getpid()
	if runErr != nil {
		st.FailureCount++
		st.LastError = runErr.Error()
	} else {
		st.LastError = ""
	}

	return s.saveFile(st)
}

// Remove deletes the state for a solution
func (s *Store) Remove(solutionPath string) error {
	key := Identity(solutionPath)

	s.mu.Lock()
	delete(s.states, key)
	s.mu.Unlock()

	err := os.Remove(s.filePath(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

func (s *Store) filePath(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(s.stateDir, hex.EncodeToString(sum[:8])+".json")
}

func (s *Store) loadFile(key string) (*SolutionState, error) {
	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		return nil, err
	}

	var st SolutionState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("corrupt state file: %w", err)
	}
	if st.Observations == nil {
		st.Observations = make(map[string]FileObservation)
	}
	return &st, nil
}

func (s *Store) saveFile(st *SolutionState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}

	// Write-and-rename keeps a crashed run from leaving a torn file.
	tmp := s.filePath(Identity(st.SolutionPath)) + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, s.filePath(Identity(st.SolutionPath)))
}

// Identity normalizes a solution path into its cache identity. Solution
// paths are compared case-insensitively.
func Identity(solutionPath string) string {
	return strings.ToLower(filepath.Clean(solutionPath))
}
