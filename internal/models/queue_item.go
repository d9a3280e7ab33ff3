package models

import (
	"time"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/utils"
	"gorm.io/gorm"
)

// QueueItem is one unit of analysis work. RawData carries the parsed message
// (subject, sender, body, message_id, email_uid, email_date); ExtractedData
// stores whatever the analyzer returned, including parse-failure payloads.
type QueueItem struct {
	ID     string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(50);index;not null" json:"userId"`

	Status     enum.QueueStatus `gorm:"column:status;type:varchar(20);index;not null;default:queued" json:"status"`
	SourceType enum.SourceType  `gorm:"column:source_type;type:varchar(20);not null;default:email" json:"sourceType"`
	// SourceInfo names where the item came from, e.g. "imap:acct_x/INBOX".
	SourceInfo string `gorm:"column:source_info;type:varchar(512)" json:"sourceInfo"`

	RawData       JSONMap `gorm:"column:raw_data;type:jsonb" json:"rawData"`
	ExtractedData JSONMap `gorm:"column:extracted_data;type:jsonb" json:"extractedData"`

	OrderID      *string `gorm:"column:order_id;type:varchar(50);index" json:"orderId"`
	ErrorMessage string  `gorm:"column:error_message;type:text" json:"errorMessage"`

	// Set on rows created by a retry of a failed item.
	ClonedFromID *string `gorm:"column:cloned_from_id;type:varchar(50)" json:"clonedFromId"`

	ProcessedAt *time.Time `gorm:"column:processed_at;type:timestamp" json:"processedAt"`
	CreatedAt   time.Time  `gorm:"column:created_at;type:timestamp;default:current_timestamp;index" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (QueueItem) TableName() string {
	return "queue_items"
}

func (q *QueueItem) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = utils.GenerateNanoIDWithPrefix("qitm", 16)
	}
	return nil
}
