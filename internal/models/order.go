package models

import (
	"time"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/utils"
	"gorm.io/gorm"
)

type Order struct {
	ID     string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(50);index;not null" json:"userId"`

	OrderNumber    string           `gorm:"column:order_number;type:varchar(255);index" json:"orderNumber"`
	TrackingNumber string           `gorm:"column:tracking_number;type:varchar(255);index" json:"trackingNumber"`
	Carrier        string           `gorm:"column:carrier;type:varchar(255)" json:"carrier"`
	Vendor         string           `gorm:"column:vendor;type:varchar(255)" json:"vendor"`
	VendorDomain   string           `gorm:"column:vendor_domain;type:varchar(255);index" json:"vendorDomain"`
	Status         enum.OrderStatus `gorm:"column:status;type:varchar(50);not null;default:ordered" json:"status"`

	OrderDate *time.Time `gorm:"column:order_date;type:timestamp" json:"orderDate"`
	Total     float64    `gorm:"column:total" json:"total"`
	Currency  string     `gorm:"column:currency;type:varchar(10)" json:"currency"`

	EstimatedDelivery *time.Time `gorm:"column:estimated_delivery;type:timestamp" json:"estimatedDelivery"`

	Items  []OrderItem  `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	States []OrderState `gorm:"foreignKey:OrderID" json:"states,omitempty"`

	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp;index" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = utils.GenerateNanoIDWithPrefix("ordr", 16)
	}
	return nil
}

type OrderItem struct {
	ID      string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	OrderID string `gorm:"column:order_id;type:varchar(50);index;not null" json:"orderId"`

	Name     string  `gorm:"column:name;type:varchar(512);not null" json:"name"`
	Quantity int     `gorm:"column:quantity;not null;default:1" json:"quantity"`
	Price    float64 `gorm:"column:price" json:"price"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = utils.GenerateNanoIDWithPrefix("item", 16)
	}
	return nil
}

// OrderState is one row per observed status change. No row is written when an
// update reports the status the order already has.
type OrderState struct {
	ID      string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	OrderID string `gorm:"column:order_id;type:varchar(50);index;not null" json:"orderId"`

	Status      enum.OrderStatus `gorm:"column:status;type:varchar(50);not null" json:"status"`
	QueueItemID *string          `gorm:"column:queue_item_id;type:varchar(50)" json:"queueItemId"`
	SourceType  enum.SourceType  `gorm:"column:source_type;type:varchar(50);not null;default:manual" json:"sourceType"`
	SourceInfo  string           `gorm:"column:source_info;type:varchar(512)" json:"sourceInfo"`
	Description string           `gorm:"column:description;type:text" json:"description"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

func (OrderState) TableName() string {
	return "order_states"
}

func (s *OrderState) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = utils.GenerateNanoIDWithPrefix("ostate", 16)
	}
	return nil
}
