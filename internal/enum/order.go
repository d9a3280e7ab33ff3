package enum

type OrderStatus string

const (
	OrderStatusOrdered           OrderStatus = "ordered"
	OrderStatusShipmentPreparing OrderStatus = "shipment_preparing"
	OrderStatusShipped           OrderStatus = "shipped"
	OrderStatusInTransit         OrderStatus = "in_transit"
	OrderStatusOutForDelivery    OrderStatus = "out_for_delivery"
	OrderStatusDelivered         OrderStatus = "delivered"
)

func (t OrderStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is one of the enumerated order statuses.
func (t OrderStatus) IsValid() bool {
	switch t {
	case OrderStatusOrdered,
		OrderStatusShipmentPreparing,
		OrderStatusShipped,
		OrderStatusInTransit,
		OrderStatusOutForDelivery,
		OrderStatusDelivered:
		return true
	}
	return false
}

type EmailType string

const (
	EmailTypeOrderConfirmation    EmailType = "order_confirmation"
	EmailTypeShipmentConfirmation EmailType = "shipment_confirmation"
	EmailTypeShipmentUpdate       EmailType = "shipment_update"
	EmailTypeDeliveryConfirmation EmailType = "delivery_confirmation"
)

func (t EmailType) String() string {
	return string(t)
}

func (t EmailType) IsValid() bool {
	switch t {
	case EmailTypeOrderConfirmation,
		EmailTypeShipmentConfirmation,
		EmailTypeShipmentUpdate,
		EmailTypeDeliveryConfirmation:
		return true
	}
	return false
}
