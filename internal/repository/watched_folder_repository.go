package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/parceltrace/parceltrace/interfaces"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/internal/utils"
)

type watchedFolderRepository struct {
	db *gorm.DB
}

func NewWatchedFolderRepository(db *gorm.DB) interfaces.WatchedFolderRepository {
	return &watchedFolderRepository{db: db}
}

func (r *watchedFolderRepository) Create(ctx context.Context, folder *models.WatchedFolder) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "watchedFolderRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if folder == nil {
		return ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Create(folder).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *watchedFolderRepository) GetByID(ctx context.Context, id string) (*models.WatchedFolder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "watchedFolderRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var folder models.WatchedFolder
	err := r.db.WithContext(ctx).First(&folder, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &folder, nil
}

func (r *watchedFolderRepository) GetActiveByAccount(ctx context.Context, accountID string) ([]*models.WatchedFolder, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "watchedFolderRepository.GetActiveByAccount")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var folders []*models.WatchedFolder
	err := r.db.WithContext(ctx).
		Where("account_id = ? AND active = ?", accountID, true).
		Find(&folders).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return folders, nil
}

func (r *watchedFolderRepository) SaveLastSeenUID(ctx context.Context, folderID string, uid uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "watchedFolderRepository.SaveLastSeenUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	// Guard keeps the high-water mark monotonic under concurrent drains.
	err := r.db.WithContext(ctx).Model(&models.WatchedFolder{}).
		Where("id = ? AND last_seen_uid < ?", folderID, uid).
		Updates(map[string]interface{}{
			"last_seen_uid": uid,
			"updated_at":    utils.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *watchedFolderRepository) ResetLastSeenUID(ctx context.Context, folderID string, uidValidity uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "watchedFolderRepository.ResetLastSeenUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Model(&models.WatchedFolder{}).
		Where("id = ?", folderID).
		Updates(map[string]interface{}{
			"last_seen_uid": 0,
			"uid_validity":  uidValidity,
			"updated_at":    utils.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *watchedFolderRepository) SaveUIDValidity(ctx context.Context, folderID string, uidValidity uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "watchedFolderRepository.SaveUIDValidity")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Model(&models.WatchedFolder{}).
		Where("id = ?", folderID).
		Updates(map[string]interface{}{
			"uid_validity": uidValidity,
			"updated_at":   utils.Now(),
		}).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *watchedFolderRepository) Save(ctx context.Context, folder *models.WatchedFolder) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "watchedFolderRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Save(folder).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
