package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID                    uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	Email                 string     `gorm:"size:255;uniqueIndex;not null" json:"email"`
	PasswordHash          string     `gorm:"not null" json:"-"`
	IsStaff               bool       `gorm:"default:false" json:"is_staff"`
	ChangePasswordOnLogin bool       `gorm:"default:false" json:"change_password_on_login"`
	LastLogin             *time.Time `json:"last_login"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
