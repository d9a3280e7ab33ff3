package interfaces

import (
	"context"

	"github.com/parceltrace/parceltrace/internal/models"
)

type EmailAccountRepository interface {
	Create(ctx context.Context, account *models.EmailAccount) error
	GetByID(ctx context.Context, id string) (*models.EmailAccount, error)
	// GetActive returns active accounts with their watched folders preloaded.
	GetActive(ctx context.Context) ([]*models.EmailAccount, error)
	Save(ctx context.Context, account *models.EmailAccount) error
	// SaveIdleCapability records what the server advertised after login.
	// When the server lacks IDLE the account is switched to polling for good.
	SaveIdleCapability(ctx context.Context, accountID string, capable bool) error
	Delete(ctx context.Context, id string) error
}

type WatchedFolderRepository interface {
	Create(ctx context.Context, folder *models.WatchedFolder) error
	GetByID(ctx context.Context, id string) (*models.WatchedFolder, error)
	GetActiveByAccount(ctx context.Context, accountID string) ([]*models.WatchedFolder, error)
	// SaveLastSeenUID persists the high-water mark. The stored value never
	// moves backwards except through ResetLastSeenUID.
	SaveLastSeenUID(ctx context.Context, folderID string, uid uint32) error
	// ResetLastSeenUID zeroes the high-water mark and stores the new
	// UIDVALIDITY after a mailbox reset.
	ResetLastSeenUID(ctx context.Context, folderID string, uidValidity uint32) error
	SaveUIDValidity(ctx context.Context, folderID string, uidValidity uint32) error
	Save(ctx context.Context, folder *models.WatchedFolder) error
}
