package models

import (
	"time"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/utils"
	"gorm.io/gorm"
)

// SeenMessage records every message id that has ever been enqueued. The
// unique index on message_id is the dedup gate: inserting a duplicate fails
// the enqueue transaction and the message is skipped.
type SeenMessage struct {
	ID        string          `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	MessageID string          `gorm:"column:message_id;type:varchar(512);uniqueIndex;not null" json:"messageId"`
	UserID    string          `gorm:"column:user_id;type:varchar(50);index;not null" json:"userId"`
	Source    enum.MailSource `gorm:"column:source;type:varchar(50);not null" json:"source"`

	// Provenance of the sighting: the mailbox (account or global config) and
	// folder it came from, the IMAP UID, and the queue item it produced.
	MailboxID   *string `gorm:"column:mailbox_id;type:varchar(50);index" json:"mailboxId"`
	FolderPath  string  `gorm:"column:folder_path;type:varchar(255)" json:"folderPath"`
	SourceUID   uint32  `gorm:"column:source_uid;not null;default:0" json:"sourceUid"`
	QueueItemID *string `gorm:"column:queue_item_id;type:varchar(50)" json:"queueItemId"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

func (SeenMessage) TableName() string {
	return "seen_messages"
}

func (s *SeenMessage) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = utils.GenerateNanoIDWithPrefix("seen", 16)
	}
	return nil
}
