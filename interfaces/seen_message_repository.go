package interfaces

import (
	"context"

	"github.com/parceltrace/parceltrace/internal/models"
)

type SeenMessageRepository interface {
	// CheckDedupAndEnqueue inserts the seen-message marker and the queue item
	// in one transaction. Returns false with no error when the message id was
	// already recorded; nothing is enqueued in that case.
	CheckDedupAndEnqueue(ctx context.Context, seen *models.SeenMessage, item *models.QueueItem) (bool, error)
	IsSeen(ctx context.Context, messageID string) (bool, error)
}
