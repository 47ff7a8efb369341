package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DownloadEvent is one served download. Events go away with their file
// when the sweep removes it.
type DownloadEvent struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FileID    uuid.UUID  `gorm:"type:uuid;index;not null" json:"-"`
	File      *File      `gorm:"foreignKey:FileID;constraint:OnDelete:CASCADE" json:"-"`
	IPAddress string     `gorm:"size:64" json:"ip_address"`
	UserAgent string     `gorm:"size:512" json:"user_agent"`
	UserID    *uuid.UUID `gorm:"type:uuid" json:"user_id"`
	CreatedAt time.Time  `json:"created_at"`
}

func (e *DownloadEvent) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}
