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

type emailAccountRepository struct {
	db *gorm.DB
}

func NewEmailAccountRepository(db *gorm.DB) interfaces.EmailAccountRepository {
	return &emailAccountRepository{db: db}
}

func (r *emailAccountRepository) Create(ctx context.Context, account *models.EmailAccount) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if account == nil {
		return ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Create(account).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *emailAccountRepository) GetByID(ctx context.Context, id string) (*models.EmailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var account models.EmailAccount
	err := r.db.WithContext(ctx).Preload("WatchedFolders").First(&account, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &account, nil
}

func (r *emailAccountRepository) GetActive(ctx context.Context) ([]*models.EmailAccount, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.GetActive")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var accounts []*models.EmailAccount
	err := r.db.WithContext(ctx).
		Preload("WatchedFolders", "active = ?", true).
		Where("active = ?", true).
		Find(&accounts).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return accounts, nil
}

func (r *emailAccountRepository) Save(ctx context.Context, account *models.EmailAccount) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Save(account).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// SaveIdleCapability stores the probed IDLE support. A server without IDLE
// flips the account to polling permanently.
func (r *emailAccountRepository) SaveIdleCapability(ctx context.Context, accountID string, capable bool) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.SaveIdleCapability")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	updates := map[string]interface{}{
		"idle_capable": capable,
	}
	if !capable {
		updates["prefer_polling"] = true
	}
	err := r.db.WithContext(ctx).Model(&models.EmailAccount{}).
		Where("id = ?", accountID).
		Updates(updates).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *emailAccountRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "emailAccountRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Delete(&models.EmailAccount{}, "id = ?", id).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
