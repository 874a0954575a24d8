package cli

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/StbLinux/Fody/internal/engine"
	"github.com/StbLinux/Fody/pkg/changes"
	"github.com/StbLinux/Fody/pkg/types"
)

func newWatchCmd() *cobra.Command {
	var (
		solutionDir  string
		projectDir   string
		assemblyPath string
		weaverDirs   []string
		settling     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Weave, then re-weave when weavers or configuration change",
		Long: `Runs an initial weave and then watches the weaver assemblies and
configuration files. A changed weaver assembly invalidates the cached
isolation context, so the next run loads the fresh binary.`,
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
			assemblyPath, err := filepath.Abs(assemblyPath)
			if err != nil {
				return err
			}

			rt := newRuntime(solutionDir)
			defer rt.cache.UnloadAll()

			weavers, err := rt.discoverWeavers(solutionDir, weaverDirs)
			if err != nil {
				return err
			}

			req := engine.Request{
				SolutionDir: solutionDir,
				ProjectDir:  projectDir,
				Weavers:     weavers,
				Params: types.RunParams{
					AssemblyPath: assemblyPath,
					SolutionDir:  solutionDir,
					ProjectDir:   projectDir,
				},
				GenerateSchema: viper.GetBool("generateSchema"),
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			rt.processor.Run(ctx, req)

			// Watch weaver assemblies plus the configuration files so a
			// configuration edit also triggers a re-weave.
			watchFiles := make([]string, 0, len(weavers)+2)
			for _, w := range weavers {
				watchFiles = append(watchFiles, w.AssemblyPath)
			}
			files, err := rt.config.Find(solutionDir, projectDir)
			if err != nil {
				return err
			}
			for _, f := range files {
				watchFiles = append(watchFiles, f.Path)
			}
			if len(watchFiles) == 0 {
				return fmt.Errorf("nothing to watch: no weavers or configuration files found")
			}

			watcher, err := changes.NewWatcher(rt.logger)
			if err != nil {
				return err
			}
			defer watcher.Close()
			watcher.SetSettlingDelay(settling)

			runs := make(chan struct{}, 1)
			err = watcher.Watch(ctx, watchFiles, func(changed []string) {
				rt.logger.Info(fmt.Sprintf("Change detected: %v", changed))
				select {
				case runs <- struct{}{}:
				default: // a re-weave is already pending
				}
			})
			if err != nil {
				return err
			}

			rt.logger.Info("Watching for weaver and configuration changes...")
			for {
				select {
				case <-ctx.Done():
					// Forward the cancellation to any run in flight
					// before the contexts are unloaded.
					rt.processor.Cancel()
					rt.logger.Info("Stopping watch")
					return nil
				case <-runs:
					rt.processor.Run(ctx, req)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&solutionDir, "solution", "s", ".", "solution directory")
	cmd.Flags().StringVarP(&projectDir, "project", "p", "", "project directory")
	cmd.Flags().StringVarP(&assemblyPath, "assembly", "a", "", "target assembly to weave")
	cmd.Flags().StringSliceVar(&weaverDirs, "weaver-dir", nil, "directories to scan for weaver assemblies")
	cmd.Flags().DurationVar(&settling, "settling", 500*time.Millisecond, "delay before reacting to a burst of changes")
	cmd.MarkFlagRequired("project")
	cmd.MarkFlagRequired("assembly")

	return cmd
}
