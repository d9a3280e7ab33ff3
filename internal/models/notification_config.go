package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/parceltrace/parceltrace/internal/utils"
	"gorm.io/gorm"
)

// NotificationConfig subscribes a user to a notifier module. An empty Events
// list means the user receives every event type.
type NotificationConfig struct {
	ID          string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID      string `gorm:"column:user_id;type:varchar(50);index;not null" json:"userId"`
	NotifierKey string `gorm:"column:notifier_key;type:varchar(255);index;not null" json:"notifierKey"`

	Enabled bool           `gorm:"column:enabled;not null;default:true" json:"enabled"`
	Events  pq.StringArray `gorm:"column:events;type:text[]" json:"events"`

	// Notifier-specific settings, e.g. the webhook URL or target address.
	Config JSONMap `gorm:"column:config;type:jsonb" json:"config"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (NotificationConfig) TableName() string {
	return "notification_configs"
}

func (n *NotificationConfig) BeforeCreate(tx *gorm.DB) error {
	if n.ID == "" {
		n.ID = utils.GenerateNanoIDWithPrefix("notif", 16)
	}
	return nil
}

// WantsEvent reports whether the subscription covers the given event type.
func (n *NotificationConfig) WantsEvent(event string) bool {
	if len(n.Events) == 0 {
		return true
	}
	for _, e := range n.Events {
		if e == event {
			return true
		}
	}
	return false
}
