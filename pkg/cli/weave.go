package cli

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/StbLinux/Fody/internal/engine"
	"github.com/StbLinux/Fody/pkg/types"
)

// weaveTarget is one project/assembly pair to weave
type weaveTarget struct {
	projectDir   string
	assemblyPath string
}

func newWeaveCmd() *cobra.Command {
	var (
		solutionDir     string
		projectDir      string
		assemblyPath    string
		weaverDirs      []string
		references      []string
		defines         []string
		keyFile         string
		signAssembly    bool
		debugSymbols    string
		intermediateDir string
		parallel        int
	)

	cmd := &cobra.Command{
		Use:   "weave [projectDir:assemblyPath ...]",
		Short: "Run the weaving pipeline",
		Long: `Weave one or more target assemblies. With positional arguments, each
"projectDir:assemblyPath" pair is woven as a separate run; preparation
runs concurrently while executions serialize on the isolation cache.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			solutionDir, err := filepath.Abs(solutionDir)
			if err != nil {
				return err
			}

			targets, err := collectTargets(args, projectDir, assemblyPath)
			if err != nil {
				return err
			}

			rt := newRuntime(solutionDir)
			defer rt.cache.UnloadAll()

			weavers, err := rt.discoverWeavers(solutionDir, weaverDirs)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			makeRequest := func(t weaveTarget) engine.Request {
				return engine.Request{
					SolutionDir: solutionDir,
					ProjectDir:  t.projectDir,
					Weavers:     weavers,
					Params: types.RunParams{
						AssemblyPath:    t.assemblyPath,
						SolutionDir:     solutionDir,
						ProjectDir:      t.projectDir,
						IntermediateDir: intermediateDir,
						KeyFilePath:     keyFile,
						SignAssembly:    signAssembly,
						References:      references,
						DefineConstants: defines,
						DebugSymbols:    types.DebugSymbolMode(debugSymbols),
					},
					GenerateSchema: viper.GetBool("generateSchema"),
				}
			}

			if len(targets) == 1 {
				if !rt.processor.Run(ctx, makeRequest(targets[0])) {
					return fmt.Errorf("weaving failed")
				}
				return nil
			}

			var failures int64
			g, gctx := engine.NewSafeGroup(ctx, rt.logger)
			g.SetLimit(parallel)
			for _, t := range targets {
				t := t
				g.Go(func() error {
					if !rt.processor.Run(gctx, makeRequest(t)) {
						atomic.AddInt64(&failures, 1)
					}
					// Keep weaving the remaining targets; failures are
					// tallied, not propagated.
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			if n := atomic.LoadInt64(&failures); n > 0 {
				return fmt.Errorf("weaving failed for %d of %d target(s)", n, len(targets))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&solutionDir, "solution", "s", ".", "solution directory")
	cmd.Flags().StringVarP(&projectDir, "project", "p", "", "project directory")
	cmd.Flags().StringVarP(&assemblyPath, "assembly", "a", "", "target assembly to weave")
	cmd.Flags().StringSliceVar(&weaverDirs, "weaver-dir", nil, "directories to scan for weaver assemblies")
	cmd.Flags().StringSliceVar(&references, "reference", nil, "assembly references")
	cmd.Flags().StringSliceVar(&defines, "define", nil, "preprocessor constants")
	cmd.Flags().StringVar(&keyFile, "key-file", "", "strong-name key file")
	cmd.Flags().BoolVar(&signAssembly, "sign", false, "re-sign the assembly after weaving")
	cmd.Flags().StringVar(&debugSymbols, "debug-symbols", string(types.DebugSymbolsPortable), "debug symbol mode (full, portable, embedded, none)")
	cmd.Flags().StringVar(&intermediateDir, "intermediate-dir", "", "intermediate output directory")
	cmd.Flags().IntVar(&parallel, "parallel", 2, "concurrent run preparations in batch mode")

	return cmd
}

func collectTargets(args []string, projectDir, assemblyPath string) ([]weaveTarget, error) {
	if len(args) == 0 {
		if projectDir == "" || assemblyPath == "" {
			return nil, fmt.Errorf("either positional projectDir:assemblyPath pairs or --project and --assembly are required")
		}
		project, err := filepath.Abs(projectDir)
		if err != nil {
			return nil, err
		}
		assembly, err := filepath.Abs(assemblyPath)
		if err != nil {
			return nil, err
		}
		return []weaveTarget{{projectDir: project, assemblyPath: assembly}}, nil
	}

	targets := make([]weaveTarget, 0, len(args))
	for _, arg := range args {
		parts := strings.SplitN(arg, ":", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid target %q, expected projectDir:assemblyPath", arg)
		}
		project, err := filepath.Abs(parts[0])
		if err != nil {
			return nil, err
		}
		assembly, err := filepath.Abs(parts[1])
		if err != nil {
			return nil, err
		}
		targets = append(targets, weaveTarget{projectDir: project, assemblyPath: assembly})
	}
	return targets, nil
}
