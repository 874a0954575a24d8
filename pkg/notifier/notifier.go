// Package notifier provides desktop notifications for weave outcomes
package notifier

import (
	"fmt"
	"path/filepath"

	"github.com/gen2brain/beeep"

	"github.com/StbLinux/Fody/pkg/logger"
	"github.com/StbLinux/Fody/pkg/types"
)

// WeaveNotifier surfaces weave results as desktop notifications
type WeaveNotifier struct {
	enabled bool
	logger  logger.Logger
}

// Config represents notification configuration
type Config struct {
	Enabled bool
}

// New creates a new weave notifier
func New(config Config, log logger.Logger) *WeaveNotifier {
	return &WeaveNotifier{
		enabled: config.Enabled,
		logger:  log,
	}
}

// NotifyWeaveStart notifies that a weave has started
func (n *WeaveNotifier) NotifyWeaveStart(project string) {
	if !n.enabled {
		return
	}
	n.send("Fody", fmt.Sprintf("Weaving %s...", filepath.Base(project)))
}

// NotifyWeaveSuccess notifies that a weave succeeded
func (n *WeaveNotifier) NotifyWeaveSuccess(project string, result *types.RunResult) {
	if !n.enabled {
		return
	}

	message := fmt.Sprintf("%s woven", filepath.Base(project))
	if result != nil && len(result.ExecutedWeavers) > 0 {
		message = fmt.Sprintf("%s woven with %d weaver(s)", filepath.Base(project), len(result.ExecutedWeavers))
	}
	n.send("✅ Weave Succeeded", message)
}

// NotifyWeaveFailure notifies that a weave failed
func (n *WeaveNotifier) NotifyWeaveFailure(project string, err error) {
	if !n.enabled {
		return
	}

	message := fmt.Sprintf("%s failed", filepath.Base(project))
	if err != nil {
		message = fmt.Sprintf("%s failed: %v", filepath.Base(project), err)
	}
	n.send("❌ Weave Failed", message)
}

func (n *WeaveNotifier) send(title, message string) {
	if err := beeep.Notify(title, message, ""); err != nil {
		n.logger.Debug("Failed to send notification", logger.WithField("error", err))
	}
}
