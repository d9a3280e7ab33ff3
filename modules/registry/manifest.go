package registry

import (
	"context"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/models"
)

// Manifest describes one pluggable module: a mail provider, an analyzer or a
// notifier. All hooks are optional; a missing hook is treated as a no-op
// (IsConfigured missing means always configured).
type Manifest struct {
	Key         string
	Name        string
	Type        enum.ModuleType
	Version     string
	Description string
	Priority    int
	// PreEnabled makes the module start enabled when its config row is first
	// created. Operator toggles always win afterwards.
	PreEnabled bool

	// Lifecycle hooks, invoked on enable/disable and process start/stop.
	Startup      func(ctx context.Context) error
	Shutdown     func(ctx context.Context) error
	IsConfigured func(ctx context.Context) (bool, error)
	Status       func(ctx context.Context) (models.JSONMap, error)

	// Analyze is set on analyzer modules. It returns the structured analysis,
	// the raw output to store on the queue item, and an error only for
	// transport-level failures. Parse or validation failures return a nil
	// analysis with the failure recorded in the raw map.
	Analyze func(ctx context.Context, raw models.JSONMap) (*models.Analysis, models.JSONMap, error)

	// Notify is set on notifier modules.
	Notify func(ctx context.Context, event *models.OrderEvent, config *models.NotificationConfig) error
}

// Configured runs the IsConfigured hook, defaulting to true without one.
func (m *Manifest) Configured(ctx context.Context) bool {
	if m.IsConfigured == nil {
		return true
	}
	ok, err := m.IsConfigured(ctx)
	if err != nil {
		return false
	}
	return ok
}
