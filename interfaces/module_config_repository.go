package interfaces

import (
	"context"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/models"
)

type ModuleConfigRepository interface {
	GetByKey(ctx context.Context, moduleKey string) (*models.ModuleConfig, error)
	GetAll(ctx context.Context) ([]*models.ModuleConfig, error)
	ListEnabledByType(ctx context.Context, moduleType enum.ModuleType) ([]*models.ModuleConfig, error)
	// Ensure creates the row when missing and returns it; an existing row is
	// returned untouched so operator toggles survive restarts.
	Ensure(ctx context.Context, moduleKey string, moduleType enum.ModuleType, enabled bool, priority int) (*models.ModuleConfig, error)
	SetEnabled(ctx context.Context, moduleKey string, enabled bool) error
}
