package repository

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/parceltrace/parceltrace/interfaces"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/tracing"
)

type notificationConfigRepository struct {
	db *gorm.DB
}

func NewNotificationConfigRepository(db *gorm.DB) interfaces.NotificationConfigRepository {
	return &notificationConfigRepository{db: db}
}

func (r *notificationConfigRepository) Save(ctx context.Context, config *models.NotificationConfig) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "notificationConfigRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if config == nil {
		return ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Save(config).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *notificationConfigRepository) ListByUser(ctx context.Context, userID string) ([]*models.NotificationConfig, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "notificationConfigRepository.ListByUser")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var configs []*models.NotificationConfig
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("notifier_key ASC").
		Find(&configs).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return configs, nil
}

func (r *notificationConfigRepository) ListEnabledForUserAndNotifier(ctx context.Context, userID, notifierKey string) ([]*models.NotificationConfig, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "notificationConfigRepository.ListEnabledForUserAndNotifier")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var configs []*models.NotificationConfig
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND notifier_key = ? AND enabled = ?", userID, notifierKey, true).
		Find(&configs).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return configs, nil
}

func (r *notificationConfigRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "notificationConfigRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Delete(&models.NotificationConfig{}, "id = ?", id).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
