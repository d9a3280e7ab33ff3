package repository

import (
	"context"
	"errors"
	"time"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/parceltrace/parceltrace/interfaces"
	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/internal/utils"
)

type queueRepository struct {
	db *gorm.DB
}

func NewQueueRepository(db *gorm.DB) interfaces.QueueRepository {
	return &queueRepository{db: db}
}

func (r *queueRepository) Create(ctx context.Context, item *models.QueueItem) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "queueRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if item == nil {
		return ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Create(item).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *queueRepository) GetByID(ctx context.Context, id string) (*models.QueueItem, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "queueRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var item models.QueueItem
	err := r.db.WithContext(ctx).First(&item, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &item, nil
}

// ClaimNext moves the oldest queued item to processing inside one
// transaction. On postgres the row is locked with SKIP LOCKED so concurrent
// workers never claim the same item.
func (r *queueRepository) ClaimNext(ctx context.Context) (*models.QueueItem, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "queueRepository.ClaimNext")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var claimed *models.QueueItem
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.
			Where("status = ?", enum.QueueStatusQueued).
			Order("created_at ASC")
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		var item models.QueueItem
		if err := query.First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil
			}
			return err
		}

		item.Status = enum.QueueStatusProcessing
		item.UpdatedAt = utils.Now()
		if err := tx.Model(&models.QueueItem{}).
			Where("id = ?", item.ID).
			Updates(map[string]interface{}{
				"status":     enum.QueueStatusProcessing,
				"updated_at": item.UpdatedAt,
			}).Error; err != nil {
			return err
		}

		claimed = &item
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return claimed, nil
}

func (r *queueRepository) SaveExtractedData(ctx context.Context, id string, extracted models.JSONMap) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "queueRepository.SaveExtractedData")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Model(&models.QueueItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"extracted_data": extracted,
			"updated_at":     utils.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *queueRepository) MarkCompleted(ctx context.Context, id string, orderID *string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "queueRepository.MarkCompleted")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	now := utils.Now()
	updates := map[string]interface{}{
		"status":       enum.QueueStatusCompleted,
		"processed_at": now,
		"updated_at":   now,
	}
	if orderID != nil {
		updates["order_id"] = *orderID
	}

	err := r.db.WithContext(ctx).Model(&models.QueueItem{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *queueRepository) MarkFailed(ctx context.Context, id string, errorMessage string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "queueRepository.MarkFailed")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	now := utils.Now()
	err := r.db.WithContext(ctx).Model(&models.QueueItem{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":        enum.QueueStatusFailed,
			"error_message": errorMessage,
			"processed_at":  now,
			"updated_at":    now,
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// RetryClone creates a fresh queued item carrying the raw data of a failed
// one. The original row keeps its terminal status.
func (r *queueRepository) RetryClone(ctx context.Context, id string) (*models.QueueItem, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "queueRepository.RetryClone")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	original, err := r.GetByID(ctx, id)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	if original.Status != enum.QueueStatusFailed {
		return nil, ErrInvalidInput
	}

	clone := &models.QueueItem{
		UserID:       original.UserID,
		Status:       enum.QueueStatusQueued,
		SourceType:   original.SourceType,
		RawData:      original.RawData,
		ClonedFromID: &original.ID,
	}
	if err := r.db.WithContext(ctx).Create(clone).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return clone, nil
}

func (r *queueRepository) CountQueued(ctx context.Context) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "queueRepository.CountQueued")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var count int64
	err := r.db.WithContext(ctx).Model(&models.QueueItem{}).
		Where("status = ?", enum.QueueStatusQueued).
		Count(&count).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}
	return count, nil
}

func (r *queueRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.QueueItem, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "queueRepository.ListByUser")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var totalCount int64
	if err := r.db.WithContext(ctx).Model(&models.QueueItem{}).
		Where("user_id = ?", userID).
		Count(&totalCount).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 25
	}

	var items []*models.QueueItem
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}
	return items, totalCount, nil
}

// DeleteOlderThan removes every item created before the cutoff, regardless
// of status. An item that sat queued past the retention window is stale
// intake and goes with the rest.
func (r *queueRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "queueRepository.DeleteOlderThan")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.QueueItem{})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// EnforcePerUserCap deletes the oldest items of every user holding more than
// maxPerUser rows, counting every status.
func (r *queueRepository) EnforcePerUserCap(ctx context.Context, maxPerUser int) (int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "queueRepository.EnforcePerUserCap")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if maxPerUser <= 0 {
		return 0, ErrInvalidInput
	}

	var userIDs []string
	err := r.db.WithContext(ctx).Model(&models.QueueItem{}).
		Select("user_id").
		Group("user_id").
		Having("COUNT(*) > ?", maxPerUser).
		Pluck("user_id", &userIDs).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return 0, err
	}

	var deleted int64
	for _, userID := range userIDs {
		var ids []string
		if err := r.db.WithContext(ctx).Model(&models.QueueItem{}).
			Where("user_id = ?", userID).
			Order("created_at ASC").
			Pluck("id", &ids).Error; err != nil {
			tracing.TraceErr(span, err)
			return deleted, err
		}
		if len(ids) <= maxPerUser {
			continue
		}

		excess := ids[:len(ids)-maxPerUser]
		result := r.db.WithContext(ctx).Delete(&models.QueueItem{}, "id IN ?", excess)
		if result.Error != nil {
			tracing.TraceErr(span, result.Error)
			return deleted, result.Error
		}
		deleted += result.RowsAffected
	}
	return deleted, nil
}
