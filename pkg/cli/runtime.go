package cli

import (
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/StbLinux/Fody/internal/engine"
	"github.com/StbLinux/Fody/internal/worker"
	"github.com/StbLinux/Fody/pkg/changes"
	"github.com/StbLinux/Fody/pkg/discovery"
	"github.com/StbLinux/Fody/pkg/interfaces"
	"github.com/StbLinux/Fody/pkg/isolation"
	"github.com/StbLinux/Fody/pkg/logger"
	"github.com/StbLinux/Fody/pkg/notifier"
	"github.com/StbLinux/Fody/pkg/state"
	"github.com/StbLinux/Fody/pkg/types"
	"github.com/StbLinux/Fody/pkg/weaverconfig"
)

// runtime is the composition root for the weaving pipeline. Commands
// build one runtime per invocation; the isolation cache it owns lives
// for the whole process so sequential weaves can reuse contexts.
type runtime struct {
	logger    logger.Logger
	store     *state.Store
	config    *weaverconfig.Service
	finder    *discovery.Finder
	cache     *isolation.Cache
	processor *engine.Processor
}

func newRuntime(solutionDir string) *runtime {
	log := logger.CreateLogger("", verbosity)
	store := state.NewStore(solutionDir, log)
	configService := weaverconfig.NewService(log)
	finder := discovery.NewFinder(log)

	policy := changes.Policy(viper.GetString("changeDetection"))
	detectorFor := func(solutionPath string) interfaces.ChangeDetector {
		return changes.NewDetector(store, solutionPath, policy)
	}

	factory := worker.NewSubprocessFactory(log, viper.GetString("worker.command"))
	cache := isolation.NewCache(log, factory, detectorFor)

	notify := notifier.New(notifier.Config{
		Enabled: viper.GetBool("notifications.enabled"),
	}, log)

	proc := engine.New(log, configService, notify, cache, store)

	return &runtime{
		logger:    log,
		store:     store,
		config:    configService,
		finder:    finder,
		cache:     cache,
		processor: proc,
	}
}

// discoverWeavers returns the installed weavers for a solution. It scans
// the configured weaver directories, defaulting to the solution-level
// packages directory.
func (r *runtime) discoverWeavers(solutionDir string, extraDirs []string) ([]types.WeaverEntry, error) {
	dirs := append([]string(nil), extraDirs...)
	dirs = append(dirs, viper.GetStringSlice("weaverDirs")...)
	if len(dirs) == 0 {
		dirs = []string{filepath.Join(solutionDir, "packages")}
	}
	return r.finder.Find(dirs)
}
