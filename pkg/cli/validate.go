package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/StbLinux/Fody/pkg/logger"
	"github.com/StbLinux/Fody/pkg/resolver"
	"github.com/StbLinux/Fody/pkg/validation"
)

func newValidateCmd() *cobra.Command {
	var (
		solutionDir  string
		projectDir   string
		assemblyPath string
		weaverDirs   []string
	)

	cmd := &cobra.Command{
		Use:          "validate",
		Short:        "Validate paths and weaver resolution without executing",
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
			if assemblyPath != "" {
				assemblyPath, err = filepath.Abs(assemblyPath)
				if err != nil {
					return err
				}
			}

			rt := newRuntime(solutionDir)

			v := validation.NewPathValidator()
			if assemblyPath != "" {
				if err := v.ValidateRun(solutionDir, projectDir, assemblyPath); err != nil {
					return err
				}
			}

			weavers, err := rt.discoverWeavers(solutionDir, weaverDirs)
			if err != nil {
				return err
			}

			files, err := rt.config.Find(solutionDir, projectDir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no FodyWeavers.xml found for %s", projectDir)
			}

			entries, err := rt.config.Parse(files)
			if err != nil {
				return err
			}

			res := resolver.New(rt.logger, rt.config)
			resolved, err := res.Resolve(weavers, entries, files, projectDir, viper.GetBool("generateSchema"))
			if err != nil {
				return err
			}

			rt.logger.Success(fmt.Sprintf("Configuration valid: %d weaver(s) would execute", len(resolved)))
			for _, w := range resolved {
				rt.logger.Info(fmt.Sprintf("  %s", w.ElementName),
					logger.WithField("order", w.ExecutionOrder))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&solutionDir, "solution", "s", ".", "solution directory")
	cmd.Flags().StringVarP(&projectDir, "project", "p", ".", "project directory")
	cmd.Flags().StringVarP(&assemblyPath, "assembly", "a", "", "target assembly (optional, enables path validation)")
	cmd.Flags().StringSliceVar(&weaverDirs, "weaver-dir", nil, "directories to scan for weaver assemblies")

	return cmd
}
