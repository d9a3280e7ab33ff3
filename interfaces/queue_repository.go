package interfaces

import (
	"context"
	"time"

	"github.com/parceltrace/parceltrace/internal/models"
)

type QueueRepository interface {
	Create(ctx context.Context, item *models.QueueItem) error
	GetByID(ctx context.Context, id string) (*models.QueueItem, error)

	// ClaimNext atomically moves the oldest queued item to processing and
	// returns it. Returns (nil, nil) when the queue is empty. Concurrent
	// claimers never receive the same item.
	ClaimNext(ctx context.Context) (*models.QueueItem, error)

	SaveExtractedData(ctx context.Context, id string, extracted models.JSONMap) error
	MarkCompleted(ctx context.Context, id string, orderID *string) error
	MarkFailed(ctx context.Context, id string, errorMessage string) error

	// RetryClone creates a fresh queued item copying the raw data of a failed
	// one, with ClonedFromID pointing back at it.
	RetryClone(ctx context.Context, id string) (*models.QueueItem, error)

	CountQueued(ctx context.Context) (int64, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.QueueItem, int64, error)

	// Retention. Both operate on every status, age and cap alike.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
	EnforcePerUserCap(ctx context.Context, maxPerUser int) (int64, error)
}
