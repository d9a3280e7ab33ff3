package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/parceltrace/parceltrace/interfaces"
	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/internal/utils"
)

type moduleConfigRepository struct {
	db *gorm.DB
}

func NewModuleConfigRepository(db *gorm.DB) interfaces.ModuleConfigRepository {
	return &moduleConfigRepository{db: db}
}

func (r *moduleConfigRepository) GetByKey(ctx context.Context, moduleKey string) (*models.ModuleConfig, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "moduleConfigRepository.GetByKey")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var config models.ModuleConfig
	err := r.db.WithContext(ctx).First(&config, "module_key = ?", moduleKey).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &config, nil
}

func (r *moduleConfigRepository) GetAll(ctx context.Context) ([]*models.ModuleConfig, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "moduleConfigRepository.GetAll")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var configs []*models.ModuleConfig
	err := r.db.WithContext(ctx).
		Order("priority ASC, module_key ASC").
		Find(&configs).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return configs, nil
}

func (r *moduleConfigRepository) ListEnabledByType(ctx context.Context, moduleType enum.ModuleType) ([]*models.ModuleConfig, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "moduleConfigRepository.ListEnabledByType")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var configs []*models.ModuleConfig
	err := r.db.WithContext(ctx).
		Where("type = ? AND enabled = ?", moduleType, true).
		Order("priority ASC, module_key ASC").
		Find(&configs).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return configs, nil
}

func (r *moduleConfigRepository) Ensure(ctx context.Context, moduleKey string, moduleType enum.ModuleType, enabled bool, priority int) (*models.ModuleConfig, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "moduleConfigRepository.Ensure")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	existing, err := r.GetByKey(ctx, moduleKey)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, ErrNotFound) {
		tracing.TraceErr(span, err)
		return nil, err
	}

	config := &models.ModuleConfig{
		ModuleKey: moduleKey,
		Type:      moduleType,
		Enabled:   enabled,
		Priority:  priority,
	}
	if err := r.db.WithContext(ctx).Create(config).Error; err != nil {
		// Concurrent Ensure of the same key: read back the winner.
		if isUniqueViolation(err) {
			return r.GetByKey(ctx, moduleKey)
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return config, nil
}

func (r *moduleConfigRepository) SetEnabled(ctx context.Context, moduleKey string, enabled bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "moduleConfigRepository.SetEnabled")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	result := r.db.WithContext(ctx).Model(&models.ModuleConfig{}).
		Where("module_key = ?", moduleKey).
		Updates(map[string]interface{}{
			"enabled":    enabled,
			"updated_at": utils.Now(),
		})
	if result.Error != nil {
		tracing.TraceErr(span, result.Error)
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
