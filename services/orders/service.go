package orders

import (
	"context"
	"fmt"

	"github.com/opentracing/opentracing-go"
	tracingLog "github.com/opentracing/opentracing-go/log"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/parceltrace/parceltrace/interfaces"
	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/logger"
	"github.com/parceltrace/parceltrace/internal/models"
	"github.com/parceltrace/parceltrace/internal/tracing"
)

// ProcessResult reports what ProcessAnalysis did with the analysis.
type ProcessResult struct {
	Order         *models.Order
	Created       bool
	StatusChanged bool
}

// Service owns order creation, updates and merges. ProcessAnalysis runs the
// matcher and the write in one transaction so two concurrently processed
// emails for the same order cannot both create it.
type Service struct {
	log    logger.Logger
	db     *gorm.DB
	orders interfaces.OrderRepository
	states interfaces.OrderStateRepository
}

func NewService(log logger.Logger, db *gorm.DB, orderRepo interfaces.OrderRepository, stateRepo interfaces.OrderStateRepository) *Service {
	return &Service{
		log:    log,
		db:     db,
		orders: orderRepo,
		states: stateRepo,
	}
}

// ProcessAnalysis applies an analysis on behalf of the queue item that
// produced it; the item stamps the provenance of any state row written.
func (s *Service) ProcessAnalysis(ctx context.Context, userID string, analysis *models.Analysis, item *models.QueueItem) (*ProcessResult, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OrdersService.ProcessAnalysis")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagUser(span, userID)

	if analysis == nil {
		return nil, errors.New("analysis is nil")
	}
	if analysis.OrderNumber == "" && analysis.TrackingNumber == "" {
		return nil, errors.New("analysis carries neither order number nor tracking number")
	}

	var result *ProcessResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)
		stateRepo := s.states.WithTx(tx)

		matched, err := NewMatcher(orderRepo).Match(ctx, userID, analysis)
		if err != nil {
			return err
		}

		if matched == nil {
			order, err := s.createOrder(ctx, orderRepo, stateRepo, userID, analysis, item)
			if err != nil {
				return err
			}
			result = &ProcessResult{Order: order, Created: true, StatusChanged: false}
			return nil
		}

		statusChanged, err := s.updateOrder(ctx, orderRepo, stateRepo, matched, analysis, item)
		if err != nil {
			return err
		}
		result = &ProcessResult{Order: matched, Created: false, StatusChanged: statusChanged}
		return nil
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	span.LogFields(
		tracingLog.String("result.orderId", result.Order.ID),
		tracingLog.Bool("result.created", result.Created),
		tracingLog.Bool("result.statusChanged", result.StatusChanged))
	return result, nil
}

func (s *Service) createOrder(ctx context.Context, orderRepo interfaces.OrderRepository, stateRepo interfaces.OrderStateRepository, userID string, analysis *models.Analysis, item *models.QueueItem) (*models.Order, error) {
	status := enum.OrderStatusOrdered
	if analysis.Status.IsValid() {
		status = analysis.Status
	}

	order := &models.Order{
		UserID:            userID,
		OrderNumber:       analysis.OrderNumber,
		TrackingNumber:    analysis.TrackingNumber,
		Carrier:           analysis.Carrier,
		Vendor:            analysis.Vendor,
		VendorDomain:      analysis.VendorDomain,
		Status:            status,
		OrderDate:         analysis.OrderDate,
		Total:             analysis.TotalAmount,
		Currency:          analysis.Currency,
		EstimatedDelivery: analysis.EstimatedDelivery,
	}
	for _, item := range analysis.Items {
		order.Items = append(order.Items, models.OrderItem{
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}

	if err := orderRepo.Create(ctx, order); err != nil {
		return nil, errors.Wrap(err, "failed to create order")
	}

	if err := stateRepo.Create(ctx, stateFromItem(order.ID, status, analysis, item)); err != nil {
		return nil, errors.Wrap(err, "failed to record order state")
	}

	s.log.Infof("created order %s for user %s (vendor %s)", order.ID, userID, order.VendorDomain)
	return order, nil
}

// stateFromItem stamps a state row with the provenance of the queue item
// that produced it.
func stateFromItem(orderID string, status enum.OrderStatus, analysis *models.Analysis, item *models.QueueItem) *models.OrderState {
	state := &models.OrderState{
		OrderID:     orderID,
		Status:      status,
		SourceType:  enum.SourceTypeEmail,
		Description: stateDescription(analysis),
	}
	if item != nil {
		state.QueueItemID = &item.ID
		state.SourceType = item.SourceType
		state.SourceInfo = item.SourceInfo
	}
	return state
}

// updateOrder merges the analysis into an existing order. Identifiers,
// carrier, order date and total only fill blanks, the estimated delivery
// always takes the newer value, and the status is overwritten when the
// analysis states one.
func (s *Service) updateOrder(ctx context.Context, orderRepo interfaces.OrderRepository, stateRepo interfaces.OrderStateRepository, order *models.Order, analysis *models.Analysis, item *models.QueueItem) (bool, error) {
	if order.OrderNumber == "" {
		order.OrderNumber = analysis.OrderNumber
	}
	if order.TrackingNumber == "" {
		order.TrackingNumber = analysis.TrackingNumber
	}
	if order.Carrier == "" {
		order.Carrier = analysis.Carrier
	}
	if order.Vendor == "" {
		order.Vendor = analysis.Vendor
	}
	if order.VendorDomain == "" {
		order.VendorDomain = analysis.VendorDomain
	}
	if order.OrderDate == nil {
		order.OrderDate = analysis.OrderDate
	}
	if order.Total == 0 && analysis.TotalAmount > 0 {
		order.Total = analysis.TotalAmount
		order.Currency = analysis.Currency
	}
	if analysis.EstimatedDelivery != nil {
		order.EstimatedDelivery = analysis.EstimatedDelivery
	}

	statusChanged := false
	if analysis.Status.IsValid() && analysis.Status != order.Status {
		order.Status = analysis.Status
		statusChanged = true
	}

	if err := orderRepo.Save(ctx, order); err != nil {
		return false, errors.Wrap(err, "failed to update order")
	}

	if len(order.Items) == 0 && len(analysis.Items) > 0 {
		items := make([]models.OrderItem, 0, len(analysis.Items))
		for _, item := range analysis.Items {
			items = append(items, models.OrderItem{
				OrderID:  order.ID,
				Name:     item.Name,
				Quantity: item.Quantity,
				Price:    item.Price,
			})
		}
		if err := orderRepo.ReplaceItems(ctx, order.ID, items); err != nil {
			return false, errors.Wrap(err, "failed to store order items")
		}
		order.Items = items
	}

	if statusChanged {
		if err := stateRepo.Create(ctx, stateFromItem(order.ID, order.Status, analysis, item)); err != nil {
			return false, errors.Wrap(err, "failed to record order state")
		}
	}

	return statusChanged, nil
}

func stateDescription(analysis *models.Analysis) string {
	if analysis.EmailType != "" {
		return fmt.Sprintf("from %s email", analysis.EmailType)
	}
	return ""
}

// CreateOrder stores a manually entered order with its initial state row.
func (s *Service) CreateOrder(ctx context.Context, order *models.Order) error {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OrdersService.CreateOrder")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagUser(span, order.UserID)

	if !order.Status.IsValid() {
		order.Status = enum.OrderStatusOrdered
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return err
		}
		return s.states.WithTx(tx).Create(ctx, &models.OrderState{
			OrderID:     order.ID,
			Status:      order.Status,
			SourceType:  enum.SourceTypeManual,
			Description: "created manually",
		})
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return err
	}
	return nil
}

// UpdateStatus sets a new status on an order and appends a state row. A no-op
// when the order already has the status.
func (s *Service) UpdateStatus(ctx context.Context, userID, orderID string, status enum.OrderStatus) (*models.Order, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OrdersService.UpdateStatus")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagUser(span, userID)
	tracing.TagEntity(span, orderID)

	if !status.IsValid() {
		return nil, errors.Errorf("invalid order status %s", status)
	}

	var order *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)

		var err error
		order, err = orderRepo.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.UserID != userID {
			return errors.New("order belongs to another user")
		}
		if order.Status == status {
			return nil
		}

		order.Status = status
		if err := orderRepo.Save(ctx, order); err != nil {
			return err
		}
		return s.states.WithTx(tx).Create(ctx, &models.OrderState{
			OrderID:     order.ID,
			Status:      status,
			SourceType:  enum.SourceTypeManual,
			Description: "set manually",
		})
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return order, nil
}

// LinkOrders merges the secondary order into the primary one. The primary
// keeps its values, blanks are filled from the secondary, state rows and queue
// items move over, and the secondary is deleted.
func (s *Service) LinkOrders(ctx context.Context, userID, primaryID, secondaryID string) (*models.Order, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "OrdersService.LinkOrders")
	defer span.Finish()
	tracing.TagComponentService(span)
	tracing.TagUser(span, userID)

	if primaryID == secondaryID {
		return nil, errors.New("cannot link an order to itself")
	}

	var primary *models.Order
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orderRepo := s.orders.WithTx(tx)

		var err error
		primary, err = orderRepo.GetByID(ctx, primaryID)
		if err != nil {
			return errors.Wrap(err, "primary order")
		}
		secondary, err := orderRepo.GetByID(ctx, secondaryID)
		if err != nil {
			return errors.Wrap(err, "secondary order")
		}
		if primary.UserID != userID || secondary.UserID != userID {
			return errors.New("orders belong to another user")
		}

		if primary.OrderNumber == "" {
			primary.OrderNumber = secondary.OrderNumber
		}
		if primary.TrackingNumber == "" {
			primary.TrackingNumber = secondary.TrackingNumber
		}
		if primary.Carrier == "" {
			primary.Carrier = secondary.Carrier
		}
		if primary.Vendor == "" {
			primary.Vendor = secondary.Vendor
		}
		if primary.VendorDomain == "" {
			primary.VendorDomain = secondary.VendorDomain
		}
		if primary.OrderDate == nil {
			primary.OrderDate = secondary.OrderDate
		}
		if primary.Total == 0 && secondary.Total > 0 {
			primary.Total = secondary.Total
			primary.Currency = secondary.Currency
		}
		if primary.EstimatedDelivery == nil {
			primary.EstimatedDelivery = secondary.EstimatedDelivery
		}
		if secondary.Status != enum.OrderStatusOrdered {
			primary.Status = secondary.Status
		}
		if err := orderRepo.Save(ctx, primary); err != nil {
			return err
		}

		if err := s.states.WithTx(tx).ReassignOrder(ctx, secondaryID, primaryID); err != nil {
			return err
		}
		if err := tx.Model(&models.QueueItem{}).
			Where("order_id = ?", secondaryID).
			Update("order_id", primaryID).Error; err != nil {
			return errors.Wrap(err, "failed to reassign queue items")
		}

		return orderRepo.Delete(ctx, secondaryID)
	})
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	s.log.Infof("merged order %s into %s for user %s", secondaryID, primaryID, userID)
	return primary, nil
}
