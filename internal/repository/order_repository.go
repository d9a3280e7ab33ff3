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

type orderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) interfaces.OrderRepository {
	return &orderRepository{db: db}
}

func (r *orderRepository) WithTx(tx *gorm.DB) interfaces.OrderRepository {
	return &orderRepository{db: tx}
}

func (r *orderRepository) Create(ctx context.Context, order *models.Order) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orderRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if order == nil {
		return ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Create(order).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orderRepository.GetByID")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Preload("States").
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) Save(ctx context.Context, order *models.Order) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orderRepository.Save")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	// Omit associations so Save never duplicates item or state rows.
	err := r.db.WithContext(ctx).Omit("Items", "States").Save(order).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *orderRepository) Delete(ctx context.Context, id string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orderRepository.Delete")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *orderRepository) GetByOrderNumber(ctx context.Context, userID, orderNumber string) (*models.Order, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orderRepository.GetByOrderNumber")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if orderNumber == "" {
		return nil, ErrInvalidInput
	}

	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "user_id = ? AND order_number = ?", userID, orderNumber).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) GetByTrackingNumber(ctx context.Context, userID, trackingNumber string) (*models.Order, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orderRepository.GetByTrackingNumber")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if trackingNumber == "" {
		return nil, ErrInvalidInput
	}

	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		First(&order, "user_id = ? AND tracking_number = ?", userID, trackingNumber).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		tracing.TraceErr(span, err)
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) RecentByVendorDomain(ctx context.Context, userID, vendorDomain string, limit int) ([]*models.Order, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orderRepository.RecentByVendorDomain")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if vendorDomain == "" {
		return nil, ErrInvalidInput
	}
	if limit <= 0 {
		limit = 5
	}

	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ? AND vendor_domain = ?", userID, vendorDomain).
		Order("created_at DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return orders, nil
}

func (r *orderRepository) ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, int64, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orderRepository.ListByUser")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var totalCount int64
	if err := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("user_id = ?", userID).
		Count(&totalCount).Error; err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}

	if limit <= 0 {
		limit = 25
	}

	var orders []*models.Order
	err := r.db.WithContext(ctx).
		Preload("Items").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&orders).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, 0, err
	}
	return orders, totalCount, nil
}

func (r *orderRepository) ReplaceItems(ctx context.Context, orderID string, items []models.OrderItem) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orderRepository.ReplaceItems")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.OrderItem{}, "order_id = ?", orderID).Error; err != nil {
			return err
		}
		for i := range items {
			items[i].ID = ""
			items[i].OrderID = orderID
			if err := tx.Create(&items[i]).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

type orderStateRepository struct {
	db *gorm.DB
}

func NewOrderStateRepository(db *gorm.DB) interfaces.OrderStateRepository {
	return &orderStateRepository{db: db}
}

func (r *orderStateRepository) WithTx(tx *gorm.DB) interfaces.OrderStateRepository {
	return &orderStateRepository{db: tx}
}

func (r *orderStateRepository) Create(ctx context.Context, state *models.OrderState) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orderStateRepository.Create")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	if state == nil {
		return ErrInvalidInput
	}

	err := r.db.WithContext(ctx).Create(state).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

func (r *orderStateRepository) ListByOrder(ctx context.Context, orderID string) ([]*models.OrderState, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orderStateRepository.ListByOrder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	var states []*models.OrderState
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&states).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return states, nil
}

func (r *orderStateRepository) ReassignOrder(ctx context.Context, fromOrderID, toOrderID string) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "orderStateRepository.ReassignOrder")
	defer span.Finish()
	tracing.TagComponentPostgresRepository(span)

	err := r.db.WithContext(ctx).Model(&models.OrderState{}).
		Where("order_id = ?", fromOrderID).
		Update("order_id", toOrderID).Error
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}
