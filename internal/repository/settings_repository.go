package repository

import (
	"context"
	"errors"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/parceltrace/parceltrace/interfaces"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/tracing"
)

type settingsRepository struct {
	db *gorm.DB
}

func NewSettingsRepository(db *gorm.DB) interfaces.SettingsRepository {
	return &settingsRepository{db: db}
}

// GetImapSettings returns the stored row, or defaults when none exists.
func (r *settingsRepository) GetImapSettings(ctx context.Context) (*models.ImapSettings, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "settingsRepository.GetImapSettings")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var settings models.ImapSettings
	err := r.db.WithContext(ctx).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.ImapSettings{
				MaxEmailAgeDays:  7,
				CheckUIDValidity: true,
			}, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &settings, nil
}

func (r *settingsRepository) SaveImapSettings(ctx context.Context, settings *models.ImapSettings) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "settingsRepository.SaveImapSettings")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Save(settings).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *settingsRepository) GetQueueSettings(ctx context.Context) (*models.QueueSettings, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "settingsRepository.GetQueueSettings")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var settings models.QueueSettings
	err := r.db.WithContext(ctx).First(&settings).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.QueueSettings{
				MaxAgeDays: 7,
				MaxPerUser: 5000,
			}, nil
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &settings, nil
}

func (r *settingsRepository) SaveQueueSettings(ctx context.Context, settings *models.QueueSettings) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "settingsRepository.SaveQueueSettings")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Save(settings).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *settingsRepository) GetActiveLLMConfig(ctx context.Context) (*models.LLMConfig, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "settingsRepository.GetActiveLLMConfig")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var config models.LLMConfig
	err := r.db.WithContext(ctx).First(&config, "active = ?", true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &config, nil
}

func (r *settingsRepository) SaveLLMConfig(ctx context.Context, config *models.LLMConfig) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "settingsRepository.SaveLLMConfig")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Save(config).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *settingsRepository) GetSMTPConfig(ctx context.Context) (*models.SMTPConfig, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "settingsRepository.GetSMTPConfig")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var config models.SMTPConfig
	err := r.db.WithContext(ctx).First(&config).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &config, nil
}

func (r *settingsRepository) SaveSMTPConfig(ctx context.Context, config *models.SMTPConfig) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "settingsRepository.SaveSMTPConfig")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Save(config).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
