package models

import (
	"time"

	"github.com/parceltrace/parceltrace/internal/utils"
	"gorm.io/gorm"
)

type User struct {
	ID             string `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Username       string `gorm:"column:username;type:varchar(255);uniqueIndex;not null" json:"username"`
	CredentialHash string `gorm:"column:credential_hash;type:varchar(255);not null" json:"-"`
	DisplayName    string `gorm:"column:display_name;type:varchar(255)" json:"displayName"`
	Admin          bool   `gorm:"column:admin;not null;default:false" json:"admin"`

	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = utils.GenerateNanoIDWithPrefix("user", 16)
	}
	return nil
}
