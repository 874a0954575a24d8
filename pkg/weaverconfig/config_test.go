package weaverconfig_test

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/StbLinux/Fody/pkg/logger"
	"github.com/StbLinux/Fody/pkg/types"
	"github.com/StbLinux/Fody/pkg/weaverconfig"
)

func newService() *weaverconfig.Service {
	return weaverconfig.NewService(logger.CreateLoggerWithOutput("error", io.Discard))
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, weaverconfig.FileName)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFind_ProjectFileBeforeSolutionFile(t *testing.T) {
	tmp := t.TempDir()
	solutionDir := tmp
	projectDir := filepath.Join(tmp, "app")
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeConfig(t, solutionDir, "<Weavers/>")
	writeConfig(t, projectDir, "<Weavers/>")

	files, err := newService().Find(solutionDir, projectDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("expected 2 files, got %d", len(files))
	}
	if files[0].IsGlobal {
		t.Error("the project-level file must come first and is not global")
	}
	if !files[1].IsGlobal {
		t.Error("the solution-level file is global")
	}
}

func TestFind_SameDirCountsOnce(t *testing.T) {
	tmp := t.TempDir()
	writeConfig(t, tmp, "<Weavers/>")

	files, err := newService().Find(tmp, tmp)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("expected 1 file when solution and project dirs coincide, got %d", len(files))
	}
}

func TestFind_NoFiles(t *testing.T) {
	files, err := newService().Find(t.TempDir(), t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 0 {
		t.Fatalf("expected no files, got %d", len(files))
	}
}

func TestParse_ExtractsEntriesAndOrder(t *testing.T) {
	tmp := t.TempDir()
	path := writeConfig(t, tmp, `<?xml version="1.0" encoding="utf-8"?>
<Weavers>
  <PropertyChanged ExecutionOrder="2">
    <EventInvokerNames>OnPropertyChanged</EventInvokerNames>
  </PropertyChanged>
  <Costura/>
</Weavers>
`)

	entries, err := newService().Parse([]types.ConfigFile{{Path: path}})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	pc, ok := entries["PropertyChanged"]
	if !ok {
		t.Fatal("missing PropertyChanged entry")
	}
	if pc.ExecutionOrder != 2 {
		t.Errorf("ExecutionOrder = %d, want 2", pc.ExecutionOrder)
	}
	if !strings.Contains(string(pc.Content), "OnPropertyChanged") {
		t.Errorf("entry content lost: %q", pc.Content)
	}

	costura, ok := entries["Costura"]
	if !ok {
		t.Fatal("missing Costura entry")
	}
	if costura.ExecutionOrder != 0 {
		t.Errorf("entries without an order attribute default to 0, got %d", costura.ExecutionOrder)
	}
	if len(costura.Content) != 0 {
		t.Errorf("self-closed element must yield empty content, got %q", costura.Content)
	}
}

func TestParse_FirstOccurrenceWins(t *testing.T) {
	tmp := t.TempDir()
	projectDir := filepath.Join(tmp, "app")
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		t.Fatal(err)
	}
	projectPath := writeConfig(t, projectDir, `<Weavers>
  <PropertyChanged><Scope>project</Scope></PropertyChanged>
</Weavers>`)
	solutionPath := writeConfig(t, tmp, `<Weavers>
  <PropertyChanged><Scope>solution</Scope></PropertyChanged>
  <Costura/>
</Weavers>`)

	entries, err := newService().Parse([]types.ConfigFile{
		{Path: projectPath, IsGlobal: false},
		{Path: solutionPath, IsGlobal: true},
	})
	if err != nil {
		t.Fatal(err)
	}

	pc := entries["PropertyChanged"]
	if !strings.Contains(string(pc.Content), "project") {
		t.Errorf("project-level entry must win, got %q", pc.Content)
	}
	if pc.File == nil || pc.File.IsGlobal {
		t.Error("winning entry must point at the project-level file")
	}
	if _, ok := entries["Costura"]; !ok {
		t.Error("entries unique to the global file must still be merged in")
	}
}

func TestParse_MalformedXMLIsAnError(t *testing.T) {
	tmp := t.TempDir()
	path := writeConfig(t, tmp, "<Weavers><Broken</Weavers>")

	if _, err := newService().Parse([]types.ConfigFile{{Path: path}}); err == nil {
		t.Error("malformed configuration must surface as an error")
	}
}

func TestGenerateDefault_ListsInstalledWeavers(t *testing.T) {
	tmp := t.TempDir()
	svc := newService()

	weavers := []types.WeaverEntry{
		{ElementName: "PropertyChanged"},
		{ElementName: "Costura"},
	}
	file, err := svc.GenerateDefault(tmp, weavers, true)
	if err != nil {
		t.Fatal(err)
	}
	if file.IsGlobal {
		t.Error("the generated default is project-level")
	}

	data, err := os.ReadFile(file.Path)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	if !strings.Contains(content, "<Costura/>") || !strings.Contains(content, "<PropertyChanged/>") {
		t.Errorf("default config must reference all installed weavers:\n%s", content)
	}
	if strings.Index(content, "Costura") > strings.Index(content, "PropertyChanged") {
		t.Error("weaver elements must be sorted by name")
	}

	// Round-trip: the generated file must parse into one entry per weaver.
	entries, err := svc.Parse([]types.ConfigFile{file})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries from the generated file, got %d", len(entries))
	}

	if _, err := os.Stat(filepath.Join(tmp, weaverconfig.SchemaFileName)); err != nil {
		t.Errorf("schema file must be written alongside the default config: %v", err)
	}
}

func TestEnsureSchemaCurrent_RespectsToggle(t *testing.T) {
	tmp := t.TempDir()
	svc := newService()

	weavers := []types.WeaverEntry{{ElementName: "PropertyChanged", Config: []byte("<PropertyChanged/>")}}

	if err := svc.EnsureSchemaCurrent(tmp, weavers, false); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(tmp, weaverconfig.SchemaFileName)); !os.IsNotExist(err) {
		t.Error("no schema may be written when generation is disabled")
	}

	if err := svc.EnsureSchemaCurrent(tmp, weavers, true); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(tmp, weaverconfig.SchemaFileName))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `name="PropertyChanged"`) {
		t.Error("schema must list the configured weaver elements")
	}
}
