// Package discovery locates installed weaver assemblies on disk
package discovery

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/StbLinux/Fody/pkg/logger"
	"github.com/StbLinux/Fody/pkg/types"
)

// suffix identifies a weaver assembly: PropertyChanged.Fody.dll exposes
// the element name "PropertyChanged".
const suffix = ".Fody.dll"

// Finder scans package directories for weaver assemblies
type Finder struct {
	logger logger.Logger
}

// NewFinder creates a new weaver finder
func NewFinder(log logger.Logger) *Finder {
	return &Finder{logger: log}
}

// Find walks the given directories and returns one entry per weaver
// element name. When the same weaver appears more than once the first
// occurrence wins; directory order therefore expresses precedence.
// The returned order is deterministic: sorted by element name within
// each directory, directories in argument order.
func (f *Finder) Find(dirs []string) ([]types.WeaverEntry, error) {
	seen := make(map[string]bool)
	var weavers []types.WeaverEntry

	for _, dir := range dirs {
		if dir == "" {
			continue
		}

		var found []types.WeaverEntry
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() || !strings.HasSuffix(info.Name(), suffix) {
				return nil
			}

			name := strings.TrimSuffix(info.Name(), suffix)
			found = append(found, types.WeaverEntry{
				ElementName:  name,
				AssemblyPath: path,
			})
			return nil
		})
		if err != nil {
			if os.IsNotExist(err) {
				f.logger.Debug(fmt.Sprintf("Weaver directory %s does not exist, skipping", dir))
				continue
			}
			return nil, fmt.Errorf("failed to scan %s: %w", dir, err)
		}

		sort.Slice(found, func(i, j int) bool {
			return found[i].ElementName < found[j].ElementName
		})

		for _, w := range found {
			if seen[w.ElementName] {
				continue
			}
			seen[w.ElementName] = true
			weavers = append(weavers, w)
		}
	}

	f.logger.Debug(fmt.Sprintf("Discovered %d weaver(s)", len(weavers)))
	return weavers, nil
}
