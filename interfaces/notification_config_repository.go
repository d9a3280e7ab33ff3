package interfaces

import (
	"context"

	"github.com/parceltrace/parceltrace/internal/models"
)

type NotificationConfigRepository interface {
	Save(ctx context.Context, config *models.NotificationConfig) error
	ListByUser(ctx context.Context, userID string) ([]*models.NotificationConfig, error)
	// ListEnabledForUserAndNotifier returns the user's enabled subscriptions
	// to the given notifier module.
	ListEnabledForUserAndNotifier(ctx context.Context, userID, notifierKey string) ([]*models.NotificationConfig, error)
	Delete(ctx context.Context, id string) error
}
