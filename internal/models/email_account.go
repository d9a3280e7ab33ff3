package models

import (
	"time"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/utils"
	"gorm.io/gorm"
)

// EmailAccount is a user-owned IMAP mailbox whose watched folders feed the
// intake pipeline. The IMAP password is stored encrypted.
type EmailAccount struct {
	ID     string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	UserID string `gorm:"column:user_id;type:varchar(50);index;not null" json:"userId"`

	EmailAddress string             `gorm:"column:email_address;type:varchar(255);index;not null" json:"emailAddress"`
	ImapServer   string             `gorm:"column:imap_server;type:varchar(255);not null" json:"imapServer"`
	ImapPort     int                `gorm:"column:imap_port;not null" json:"imapPort"`
	ImapUsername string             `gorm:"column:imap_username;type:varchar(255);not null" json:"imapUsername"`
	ImapPassword string             `gorm:"column:imap_password;type:text;not null" json:"-"`
	ImapSecurity enum.EmailSecurity `gorm:"column:imap_security;type:varchar(20);not null;default:tls" json:"imapSecurity"`

	// PreferPolling forces the watcher into polling mode even when the
	// server advertises IDLE. IdleCapable caches the capability detected on
	// the last login; nil means never probed.
	PreferPolling    bool  `gorm:"column:prefer_polling;not null;default:false" json:"preferPolling"`
	PollIntervalSecs int   `gorm:"column:poll_interval_secs;not null;default:120" json:"pollIntervalSecs"`
	IdleCapable      *bool `gorm:"column:idle_capable" json:"idleCapable"`

	Active bool `gorm:"column:active;not null;default:true" json:"active"`

	WatchedFolders []WatchedFolder `gorm:"foreignKey:AccountID" json:"watchedFolders,omitempty"`

	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

func (EmailAccount) TableName() string {
	return "email_accounts"
}

func (a *EmailAccount) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIDWithPrefix("acct", 16)
	}
	return nil
}

// WatchedFolder is one IMAP folder of an account watched for new mail. The
// watcher advances LastSeenUID monotonically and reconciles UIDValidity on
// every connect.
type WatchedFolder struct {
	ID        string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	AccountID string `gorm:"column:account_id;type:varchar(50);index;not null" json:"accountId"`

	Folder      string  `gorm:"column:folder;type:varchar(255);not null" json:"folder"`
	LastSeenUID uint32  `gorm:"column:last_seen_uid;not null;default:0" json:"lastSeenUid"`
	UIDValidity *uint32 `gorm:"column:uid_validity" json:"uidValidity"`

	// Overrides the global ImapSettings default when set.
	MaxEmailAgeDays *int `gorm:"column:max_email_age_days" json:"maxEmailAgeDays"`

	Active bool `gorm:"column:active;not null;default:true" json:"active"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (WatchedFolder) TableName() string {
	return "watched_folders"
}

func (f *WatchedFolder) BeforeCreate(tx *gorm.DB) error {
	if f.ID == "" {
		f.ID = utils.GenerateNanoIDWithPrefix("fold", 16)
	}
	return nil
}
