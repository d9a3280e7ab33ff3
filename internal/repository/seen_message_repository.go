package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/parceltrace/parceltrace/interfaces"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/tracing"
)

type seenMessageRepository struct {
	db *gorm.DB
}

func NewSeenMessageRepository(db *gorm.DB) interfaces.SeenMessageRepository {
	return &seenMessageRepository{db: db}
}

// CheckDedupAndEnqueue inserts the seen marker and the queue item in one
// transaction. The unique index on message_id is the arbiter: a duplicate
// insert rolls everything back and the message is reported as already seen.
func (r *seenMessageRepository) CheckDedupAndEnqueue(ctx context.Context, seen *models.SeenMessage, item *models.QueueItem) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "seenMessageRepository.CheckDedupAndEnqueue")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if seen == nil || seen.MessageID == "" {
		return false, ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// The queue item goes first so the seen marker can link to it. A
		// duplicate seen insert rolls the item back with it.
		if item != nil {
			if err := tx.Create(item).Error; err != nil {
				return err
			}
			seen.QueueItemID = &item.ID
		}
		return tx.Create(seen).Error
	})
	if err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		tracing.TraceErr(span, err)
		return false, err
	}
	return true, nil
}

func (r *seenMessageRepository) IsSeen(ctx context.Context, messageID string) (bool, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "seenMessageRepository.IsSeen")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var count int64
	err := r.db.WithContext(ctx).Model(&models.SeenMessage{}).
		Where("message_id = ?", messageID).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return false, err
	}
	return count > 0, nil
}
