package interfaces

import (
	"context"

	"github.com/parceltrace/parceltrace/internal/models"
)

type GlobalMailRepository interface {
	GetActive(ctx context.Context) (*models.GlobalMailConfig, error)
	Save(ctx context.Context, config *models.GlobalMailConfig) error
	SaveLastSeenUID(ctx context.Context, id string, uid uint32) error
	ResetLastSeenUID(ctx context.Context, id string, uidValidity uint32) error
	SaveUIDValidity(ctx context.Context, id string, uidValidity uint32) error
	// SaveIdleCapability records what the server advertised after login.
	// When the server lacks IDLE the mailbox is switched to polling for good.
	SaveIdleCapability(ctx context.Context, id string, capable bool) error
}

type SenderBindingRepository interface {
	Create(ctx context.Context, binding *models.SenderBinding) error
	// GetByAddress looks up a binding by lowercased bare address.
	GetByAddress(ctx context.Context, address string) (*models.SenderBinding, error)
	ListByUser(ctx context.Context, userID string) ([]*models.SenderBinding, error)
	Delete(ctx context.Context, id string) error
}
