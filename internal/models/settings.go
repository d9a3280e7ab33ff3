package models

import (
	"time"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/utils"
	"gorm.io/gorm"
)

// LLMConfig points the analyzer at an OpenAI-compatible endpoint. Only the
// row with Active=true is used; the API key is stored encrypted.
type LLMConfig struct {
	ID string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`

	EndpointURL string `gorm:"column:endpoint_url;type:varchar(512);not null" json:"endpointUrl"`
	ModelName   string `gorm:"column:model_name;type:varchar(255);not null" json:"modelName"`
	APIKey      string `gorm:"column:api_key;type:text" json:"-"`

	Active bool `gorm:"column:active;not null;default:false" json:"active"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (LLMConfig) TableName() string {
	return "llm_configs"
}

func (c *LLMConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = utils.GenerateNanoIDWithPrefix("llm", 16)
	}
	return nil
}

// SMTPConfig is the singleton outbound server used by the email notifier.
type SMTPConfig struct {
	ID string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`

	Server       string             `gorm:"column:server;type:varchar(255);not null" json:"server"`
	Port         int                `gorm:"column:port;not null;default:587" json:"port"`
	Username     string             `gorm:"column:username;type:varchar(255)" json:"username"`
	Password     string             `gorm:"column:password;type:text" json:"-"`
	FromAddress  string             `gorm:"column:from_address;type:varchar(255);not null" json:"fromAddress"`
	SmtpSecurity enum.EmailSecurity `gorm:"column:smtp_security;type:varchar(20);not null;default:tls" json:"smtpSecurity"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (SMTPConfig) TableName() string {
	return "smtp_configs"
}

func (c *SMTPConfig) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = utils.GenerateNanoIDWithPrefix("smtp", 16)
	}
	return nil
}

// ImapSettings holds the global watcher knobs. A single row is expected;
// defaults apply when none exists.
type ImapSettings struct {
	ID string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`

	MaxEmailAgeDays  int  `gorm:"column:max_email_age_days;not null;default:7" json:"maxEmailAgeDays"`
	CheckUIDValidity bool `gorm:"column:check_uid_validity;not null;default:true" json:"checkUidValidity"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (ImapSettings) TableName() string {
	return "imap_settings"
}

func (s *ImapSettings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = utils.GenerateNanoIDWithPrefix("imapset", 10)
	}
	return nil
}

// QueueSettings holds the retention knobs for queue items.
type QueueSettings struct {
	ID string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`

	MaxAgeDays int `gorm:"column:max_age_days;not null;default:7" json:"maxAgeDays"`
	MaxPerUser int `gorm:"column:max_per_user;not null;default:5000" json:"maxPerUser"`

	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (QueueSettings) TableName() string {
	return "queue_settings"
}

func (s *QueueSettings) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = utils.GenerateNanoIDWithPrefix("queueset", 10)
	}
	return nil
}
