// Package weaverconfig discovers, parses and synthesizes FodyWeavers
// configuration files.
package weaverconfig

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/StbLinux/Fody/pkg/logger"
	"github.com/StbLinux/Fody/pkg/types"
)

const (
	// FileName is the canonical configuration file name.
	FileName = "FodyWeavers.xml"

	// SchemaFileName sits next to the project configuration and gives
	// editors completion for weaver elements.
	SchemaFileName = "FodyWeavers.xsd"
)

// Service implements configuration discovery and parsing. Project-level
// files are scoped to one project; solution-level files are global and
// their unmatched entries are not an error.
type Service struct {
	logger logger.Logger
}

// NewService creates a new configuration service
func NewService(log logger.Logger) *Service {
	return &Service{logger: log}
}

// Find returns the configuration files that apply to the build. The
// project-level file comes first so its entries win during parsing.
func (s *Service) Find(solutionDir, projectDir string) ([]types.ConfigFile, error) {
	var files []types.ConfigFile

	projectFile := filepath.Join(projectDir, FileName)
	if fileExists(projectFile) {
		files = append(files, types.ConfigFile{Path: projectFile, IsGlobal: false})
	}

	solutionFile := filepath.Join(solutionDir, FileName)
	if solutionFile != projectFile && fileExists(solutionFile) {
		files = append(files, types.ConfigFile{Path: solutionFile, IsGlobal: true})
	}

	return files, nil
}

// GenerateDefault writes a project-level configuration referencing every
// installed weaver and returns it.
func (s *Service) GenerateDefault(projectDir string, weavers []types.WeaverEntry, generateSchema bool) (types.ConfigFile, error) {
	path := filepath.Join(projectDir, FileName)

	names := make([]string, 0, len(weavers))
	for _, w := range weavers {
		names = append(names, w.ElementName)
	}
	sort.Strings(names)

	content := renderWeaversXML(names, generateSchema)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return types.ConfigFile{}, fmt.Errorf("failed to write default config: %w", err)
	}

	file := types.ConfigFile{Path: path, IsGlobal: false}

	if generateSchema {
		if err := s.writeSchema(projectDir, names); err != nil {
			s.logger.Warn("Failed to write configuration schema", logger.WithField("error", err))
		}
	}

	return file, nil
}

// weaversDoc mirrors the on-disk FodyWeavers.xml shape. Child elements
// are weaver entries; their names are not known ahead of time.
type weaversDoc struct {
	XMLName xml.Name        `xml:"Weavers"`
	Items   []weaverElement `xml:",any"`
}

type weaverElement struct {
	XMLName        xml.Name
	ExecutionOrder *int   `xml:"ExecutionOrder,attr"`
	Inner          []byte `xml:",innerxml"`
}

// Parse merges the files into one entry per element name. Files are
// processed in discovery order and the first occurrence of an element
// name wins, so the project-level file overrides global directives.
func (s *Service) Parse(files []types.ConfigFile) (map[string]types.ConfigEntry, error) {
	entries := make(map[string]types.ConfigEntry)

	for i := range files {
		file := &files[i]

		data, err := os.ReadFile(file.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", file.Path, err)
		}

		var doc weaversDoc
		if err := xml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file.Path, err)
		}

		for _, item := range doc.Items {
			name := item.XMLName.Local
			if _, seen := entries[name]; seen {
				continue
			}

			order := 0
			if item.ExecutionOrder != nil {
				order = *item.ExecutionOrder
			}

			entries[name] = types.ConfigEntry{
				ElementName:    name,
				File:           file,
				Content:        append([]byte(nil), item.Inner...),
				ExecutionOrder: order,
			}
		}
	}

	return entries, nil
}

// EnsureSchemaCurrent refreshes the schema next to the project config.
// Best-effort; the caller logs failures as diagnostics.
func (s *Service) EnsureSchemaCurrent(projectDir string, weavers []types.WeaverEntry, generateSchema bool) error {
	if !generateSchema {
		return nil
	}

	names := make([]string, 0, len(weavers))
	for _, w := range weavers {
		if w.HasConfig() {
			names = append(names, w.ElementName)
		}
	}
	sort.Strings(names)

	return s.writeSchema(projectDir, names)
}

func (s *Service) writeSchema(projectDir string, names []string) error {
	var b []byte
	b = append(b, `<?xml version="1.0" encoding="utf-8"?>`+"\n"...)
	b = append(b, `<xs:schema attributeFormDefault="unqualified" elementFormDefault="qualified" xmlns:xs="http://www.w3.org/2001/XMLSchema">`+"\n"...)
	b = append(b, `  <xs:element name="Weavers">`+"\n"...)
	b = append(b, `    <xs:complexType>`+"\n"...)
	b = append(b, `      <xs:all>`+"\n"...)
	for _, name := range names {
		b = append(b, fmt.Sprintf(`        <xs:element name=%q minOccurs="0" maxOccurs="1"/>`+"\n", name)...)
	}
	b = append(b, `      </xs:all>`+"\n"...)
	b = append(b, `    </xs:complexType>`+"\n"...)
	b = append(b, `  </xs:element>`+"\n"...)
	b = append(b, `</xs:schema>`+"\n"...)

	return os.WriteFile(filepath.Join(projectDir, SchemaFileName), b, 0644)
}

func renderWeaversXML(names []string, withSchema bool) string {
	out := `<?xml version="1.0" encoding="utf-8"?>` + "\n"
	if withSchema {
		out += fmt.Sprintf(`<Weavers xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" xsi:noNamespaceSchemaLocation=%q>`+"\n", SchemaFileName)
	} else {
		out += "<Weavers>\n"
	}
	for _, name := range names {
		out += fmt.Sprintf("  <%s/>\n", name)
	}
	out += "</Weavers>\n"
	return out
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
