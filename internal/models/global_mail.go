package models

import (
	"time"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/utils"
	"gorm.io/gorm"
)

// GlobalMailConfig is the shared catch-all mailbox watched on behalf of all
// users. A single row is expected; messages are routed to users through
// SenderBinding rows.
type GlobalMailConfig struct {
	ID string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`

	ImapServer   string             `gorm:"column:imap_server;type:varchar(255);not null" json:"imapServer"`
	ImapPort     int                `gorm:"column:imap_port;not null" json:"imapPort"`
	ImapUsername string             `gorm:"column:imap_username;type:varchar(255);not null" json:"imapUsername"`
	ImapPassword string             `gorm:"column:imap_password;type:text;not null" json:"-"`
	ImapSecurity enum.EmailSecurity `gorm:"column:imap_security;type:varchar(20);not null;default:tls" json:"imapSecurity"`

	Folder           string `gorm:"column:folder;type:varchar(255);not null;default:INBOX" json:"folder"`
	PollIntervalSecs int    `gorm:"column:poll_interval_secs;not null;default:300" json:"pollIntervalSecs"`

	// PreferPolling forces polling even when IDLE is available; IdleCapable
	// caches the capability detected on the last login.
	PreferPolling bool  `gorm:"column:prefer_polling;not null;default:false" json:"preferPolling"`
	IdleCapable   *bool `gorm:"column:idle_capable" json:"idleCapable"`

	LastSeenUID uint32  `gorm:"column:last_seen_uid;not null;default:0" json:"lastSeenUid"`
	UIDValidity *uint32 `gorm:"column:uid_validity" json:"uidValidity"`

	Active bool `gorm:"column:active;not null;default:true" json:"active"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (GlobalMailConfig) TableName() string {
	return "global_mail_configs"
}

func (c *GlobalMailConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = utils.GenerateNanoIDWithPrefix("gmail", 16)
	}
	return nil
}

// SenderBinding maps a sender address seen in the global mailbox to the user
// that owns it. Addresses are stored lowercased and bare (no display name).
type SenderBinding struct {
	ID           string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID       string `gorm:"column:user_id;type:varchar(50);index;not null" json:"userId"`
	EmailAddress string `gorm:"column:email_address;type:varchar(255);uniqueIndex;not null" json:"emailAddress"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
}

func (SenderBinding) TableName() string {
	return "sender_bindings"
}

func (b *SenderBinding) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = utils.GenerateNanoIDWithPrefix("bind", 16)
	}
	return nil
}
