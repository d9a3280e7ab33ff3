package interfaces

import (
	"context"

	"github.com/parceltrace/parceltrace/internal/models"
	"gorm.io/gorm"
)

type OrderRepository interface {
	// WithTx returns a copy of the repository bound to the given transaction
	// so matching and updating can share one unit of work.
	WithTx(tx *gorm.DB) OrderRepository

	Create(ctx context.Context, order *models.Order) error
	GetByID(ctx context.Context, id string) (*models.Order, error)
	Save(ctx context.Context, order *models.Order) error
	Delete(ctx context.Context, id string) error

	GetByOrderNumber(ctx context.Context, userID, orderNumber string) (*models.Order, error)
	GetByTrackingNumber(ctx context.Context, userID, trackingNumber string) (*models.Order, error)
	// RecentByVendorDomain returns the newest orders for the vendor domain,
	// items preloaded, newest first.
	RecentByVendorDomain(ctx context.Context, userID, vendorDomain string, limit int) ([]*models.Order, error)

	ListByUser(ctx context.Context, userID string, limit, offset int) ([]*models.Order, int64, error)
	ReplaceItems(ctx context.Context, orderID string, items []models.OrderItem) error
}

type OrderStateRepository interface {
	WithTx(tx *gorm.DB) OrderStateRepository

	Create(ctx context.Context, state *models.OrderState) error
	ListByOrder(ctx context.Context, orderID string) ([]*models.OrderState, error)
	// ReassignOrder moves all states from one order to another (order merge).
	ReassignOrder(ctx context.Context, fromOrderID, toOrderID string) error
}
