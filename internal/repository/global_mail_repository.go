package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/opentracing/opentracing-go"
	"gorm.io/gorm"

	"github.com/parceltrace/parceltrace/interfaces"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/tracing"
	"github.com/parceltrace/parceltrace/internal/utils"
)

type globalMailRepository struct {
	db *gorm.DB
}

func NewGlobalMailRepository(db *gorm.DB) interfaces.GlobalMailRepository {
	return &globalMailRepository{db: db}
}

func (r *globalMailRepository) GetActive(ctx context.Context) (*models.GlobalMailConfig, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "globalMailRepository.GetActive")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var config models.GlobalMailConfig
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

func (r *globalMailRepository) Save(ctx context.Context, config *models.GlobalMailConfig) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "globalMailRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Save(config).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *globalMailRepository) SaveLastSeenUID(ctx context.Context, id string, uid uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "globalMailRepository.SaveLastSeenUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Model(&models.GlobalMailConfig{}).
		Where("id = ? AND last_seen_uid < ?", id, uid).
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

func (r *globalMailRepository) ResetLastSeenUID(ctx context.Context, id string, uidValidity uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "globalMailRepository.ResetLastSeenUID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Model(&models.GlobalMailConfig{}).
		Where("id = ?", id).
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

func (r *globalMailRepository) SaveUIDValidity(ctx context.Context, id string, uidValidity uint32) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "globalMailRepository.SaveUIDValidity")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Model(&models.GlobalMailConfig{}).
		Where("id = ?", id).
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

// SaveIdleCapability stores the probed IDLE support. A server without IDLE
// flips the mailbox to polling permanently.
func (r *globalMailRepository) SaveIdleCapability(ctx context.Context, id string, capable bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "globalMailRepository.SaveIdleCapability")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	updates := map[string]interface{}{
		"idle_capable": capable,
		"updated_at":   utils.Now(),
	}
	if !capable {
		updates["prefer_polling"] = true
	}
	err := r.db.WithContext(ctx).Model(&models.GlobalMailConfig{}).
		Where("id = ?", id).
		Updates(updates).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

type senderBindingRepository struct {
	db *gorm.DB
}

func NewSenderBindingRepository(db *gorm.DB) interfaces.SenderBindingRepository {
	return &senderBindingRepository{db: db}
}

func (r *senderBindingRepository) Create(ctx context.Context, binding *models.SenderBinding) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "senderBindingRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if binding == nil {
		return ErrInvalidInput
	}
	binding.EmailAddress = strings.ToLower(strings.TrimSpace(binding.EmailAddress))

	err := r.db.WithContext(ctx).Create(binding).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *senderBindingRepository) GetByAddress(ctx context.Context, address string) (*models.SenderBinding, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "senderBindingRepository.GetByAddress")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var binding models.SenderBinding
	err := r.db.WithContext(ctx).
		First(&binding, "email_address = ?", strings.ToLower(strings.TrimSpace(address))).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &binding, nil
}

func (r *senderBindingRepository) ListByUser(ctx context.Context, userID string) ([]*models.SenderBinding, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "senderBindingRepository.ListByUser")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var bindings []*models.SenderBinding
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("email_address ASC").
		Find(&bindings).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return bindings, nil
}

func (r *senderBindingRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "senderBindingRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Delete(&models.SenderBinding{}, "id = ?", id).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
