package models

import (
	"time"

	"github.com/parceltrace/parceltrace/internal/enum"
)

// Analysis is what an analyzer module extracted from one message. It is not
// persisted as-is; the raw analyzer output lands in QueueItem.ExtractedData.
type Analysis struct {
	IsRelevant bool           `json:"is_relevant"`
	EmailType  enum.EmailType `json:"email_type,omitempty"`

	OrderNumber    string `json:"order_number,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	Vendor         string `json:"vendor,omitempty"`
	VendorDomain   string `json:"vendor_domain,omitempty"`

	OrderDate   *time.Time `json:"order_date,omitempty"`
	TotalAmount float64    `json:"total_amount,omitempty"`
	Currency    string     `json:"currency,omitempty"`

	// Empty means the message did not state a status.
	Status            enum.OrderStatus `json:"status,omitempty"`
	EstimatedDelivery *time.Time       `json:"estimated_delivery,omitempty"`

	Items []AnalysisItem `json:"items,omitempty"`
}

type AnalysisItem struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price,omitempty"`
}

// OrderEvent is handed to notifier modules after queue processing changed an
// order.
type OrderEvent struct {
	Event  enum.NotificationEvent `json:"event"`
	UserID string                 `json:"userId"`
	Order  *Order                 `json:"order"`
}
