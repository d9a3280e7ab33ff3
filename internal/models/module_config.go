package models

import (
	"time"

	"github.com/parceltrace/parceltrace/internal/enum"
	"github.com/parceltrace/parceltrace/internal/utils"
	"gorm.io/gorm"
)

// ModuleConfig is the persisted enable/disable state of a registered module.
// Rows are created on startup for every manifest; unknown rows are left
// untouched so a temporarily removed module keeps its state.
type ModuleConfig struct {
	ID        string          `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	ModuleKey string          `gorm:"column:module_key;type:varchar(255);uniqueIndex;not null" json:"moduleKey"`
	Type      enum.ModuleType `gorm:"column:type;type:varchar(20);index;not null" json:"type"`

	Enabled  bool `gorm:"column:enabled;not null;default:false" json:"enabled"`
	Priority int  `gorm:"column:priority;not null;default:100" json:"priority"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (ModuleConfig) TableName() string {
	return "module_configs"
}

func (m *ModuleConfig) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = utils.GenerateNanoIDWithPrefix("mod", 16)
	}
	return nil
}
