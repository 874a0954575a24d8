package discovery_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/StbLinux/Fody/pkg/discovery"
	"github.com/StbLinux/Fody/pkg/logger"
)

func newFinder() *discovery.Finder {
	return discovery.NewFinder(logger.CreateLoggerWithOutput("error", io.Discard))
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("assembly"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFind_ExtractsElementNames(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "PropertyChanged.Fody.dll")
	touch(t, dir, "Costura.Fody.dll")
	touch(t, dir, "NotAWeaver.dll")
	touch(t, dir, "readme.txt")

	weavers, err := newFinder().Find([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(weavers) != 2 {
		t.Fatalf("expected 2 weavers, got %d", len(weavers))
	}
	// Sorted by element name within a directory.
	if weavers[0].ElementName != "Costura" || weavers[1].ElementName != "PropertyChanged" {
		t.Errorf("unexpected order: %v %v", weavers[0].ElementName, weavers[1].ElementName)
	}
}

func TestFind_WalksNestedPackageDirs(t *testing.T) {
	dir := t.TempDir()
	path := touch(t, dir, filepath.Join("PropertyChanged.Fody.1.2.0", "build", "PropertyChanged.Fody.dll"))

	weavers, err := newFinder().Find([]string{dir})
	if err != nil {
		t.Fatal(err)
	}
	if len(weavers) != 1 {
		t.Fatalf("expected 1 weaver, got %d", len(weavers))
	}
	if weavers[0].AssemblyPath != path {
		t.Errorf("AssemblyPath = %q, want %q", weavers[0].AssemblyPath, path)
	}
}

func TestFind_FirstDirectoryWins(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	wanted := touch(t, first, "PropertyChanged.Fody.dll")
	touch(t, second, "PropertyChanged.Fody.dll")
	touch(t, second, "Costura.Fody.dll")

	weavers, err := newFinder().Find([]string{first, second})
	if err != nil {
		t.Fatal(err)
	}
	if len(weavers) != 2 {
		t.Fatalf("expected 2 weavers, got %d", len(weavers))
	}
	for _, w := range weavers {
		if w.ElementName == "PropertyChanged" && w.AssemblyPath != wanted {
			t.Errorf("duplicate weaver must resolve to the first directory, got %q", w.AssemblyPath)
		}
	}
}

func TestFind_MissingDirectoryIsSkipped(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir, "Costura.Fody.dll")

	weavers, err := newFinder().Find([]string{filepath.Join(dir, "nope"), dir, ""})
	if err != nil {
		t.Fatal(err)
	}
	if len(weavers) != 1 {
		t.Fatalf("expected 1 weaver, got %d", len(weavers))
	}
}
