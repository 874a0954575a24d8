package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// settingsFile mirrors the .fody.yaml shape read through viper
type settingsFile struct {
	ChangeDetection string `yaml:"changeDetection"`
	GenerateSchema  bool   `yaml:"generateSchema"`
	Worker          struct {
		Command string `yaml:"command"`
	} `yaml:"worker"`
	Notifications struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"notifications"`
	WeaverDirs []string `yaml:"weaverDirs,omitempty"`
}

func newInitCmd() *cobra.Command {
	var (
		solutionDir   string
		projectDir    string
		weaverDirs    []string
		writeSettings bool
	)

	cmd := &cobra.Command{
		Use:          "init",
		Short:        "Generate a default FodyWeavers.xml for the project",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			solutionDir, err := filepath.Abs(solutionDir)
			if err != nil {
				return err
			}
			projectDir, err := filepath.Abs(projectDir)
			if err != nil {
				return err
			}

			rt := newRuntime(solutionDir)

			weavers, err := rt.discoverWeavers(solutionDir, weaverDirs)
			if err != nil {
				return err
			}
			if len(weavers) == 0 {
				return fmt.Errorf("no weavers found; pass --weaver-dir or install weaver packages first")
			}

			file, err := rt.config.GenerateDefault(projectDir, weavers, viper.GetBool("generateSchema"))
			if err != nil {
				return err
			}

			rt.logger.Success(fmt.Sprintf("Wrote %s with %d weaver(s)", file.Path, len(weavers)))

			if writeSettings {
				path, err := writeDefaultSettings(solutionDir, weaverDirs)
				if err != nil {
					return err
				}
				rt.logger.Success(fmt.Sprintf("Wrote %s", path))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&solutionDir, "solution", "s", ".", "solution directory")
	cmd.Flags().StringVarP(&projectDir, "project", "p", ".", "project directory")
	cmd.Flags().StringSliceVar(&weaverDirs, "weaver-dir", nil, "directories to scan for weaver assemblies")
	cmd.Flags().BoolVar(&writeSettings, "settings", false, "also write a starter .fody.yaml in the solution directory")

	return cmd
}

// writeDefaultSettings writes a .fody.yaml seeded with the current
// effective settings. Refuses to overwrite an existing file.
func writeDefaultSettings(solutionDir string, weaverDirs []string) (string, error) {
	path := filepath.Join(solutionDir, ".fody.yaml")
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	}

	var s settingsFile
	s.ChangeDetection = viper.GetString("changeDetection")
	s.GenerateSchema = viper.GetBool("generateSchema")
	s.Worker.Command = viper.GetString("worker.command")
	s.Notifications.Enabled = viper.GetBool("notifications.enabled")
	s.WeaverDirs = weaverDirs

	data, err := yaml.Marshal(&s)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", err
	}
	return path, nil
}
