// Package changes decides whether weaver assemblies changed since a
// prior observation, and watches them for live re-weaving.
package changes

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/StbLinux/Fody/pkg/state"
)

// Policy selects the change-detection granularity. Content hashing is
// the safe default; mtime comparison trades accuracy for speed on large
// weaver assemblies.
type Policy string

const (
	PolicyHash  Policy = "hash"
	PolicyMtime Policy = "mtime"
)

// Detector compares the current on-disk state of weaver assemblies with
// the baseline recorded in the solution state store.
type Detector struct {
	store        *state.Store
	solutionPath string
	policy       Policy
}

// NewDetector creates a detector for one solution
func NewDetector(store *state.Store, solutionPath string, policy Policy) *Detector {
	if policy != PolicyMtime {
		policy = PolicyHash
	}
	return &Detector{
		store:        store,
		solutionPath: solutionPath,
		policy:       policy,
	}
}

// HasChanged reports whether any of the paths differs from the prior
// observation of those exact paths. A path with no prior observation
// counts as changed, as does one that disappeared.
func (d *Detector) HasChanged(paths []string) (bool, error) {
	st, err := d.store.Load(d.solutionPath)
	if err != nil {
		return false, err
	}

	for _, path := range paths {
		prior, ok := st.Observations[path]
		if !ok {
			return true, nil
		}

		current, err := d.observe(path)
		if err != nil {
			if os.IsNotExist(err) {
				return true, nil
			}
			return false, fmt.Errorf("failed to inspect %s: %w", path, err)
		}

		if d.policy == PolicyHash {
			if current.Hash != prior.Hash {
				return true, nil
			}
			continue
		}
		if !current.ModTime.Equal(prior.ModTime) || current.Size != prior.Size {
			return true, nil
		}
	}

	return false, nil
}

// Observe records the current state of the paths as the new baseline
func (d *Detector) Observe(paths []string) error {
	obs := make(map[string]state.FileObservation, len(paths))
	for _, path := range paths {
		o, err := d.observe(path)
		if err != nil {
			return fmt.Errorf("failed to observe %s: %w", path, err)
		}
		obs[path] = o
	}
	return d.store.SetObservations(d.solutionPath, obs)
}

func (d *Detector) observe(path string) (state.FileObservation, error) {
	info, err := os.Stat(path)
	if err != nil {
		return state.FileObservation{}, err
	}

	obs := state.FileObservation{
		Path:    path,
		ModTime: info.ModTime(),
		Size:    info.Size(),
	}

	if d.policy == PolicyHash {
		hash, err := hashFile(path)
		if err != nil {
			return state.FileObservation{}, err
		}
		obs.Hash = hash
	}

	return obs, nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
