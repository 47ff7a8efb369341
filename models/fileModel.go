package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File is one uploaded file. Expiry is never stored as a flag; it is derived
// from ExpiresAt on every query.
type File struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey" json:"-"`
	PublicToken string     `gorm:"size:32;uniqueIndex;not null" json:"token"`
	OwnerID     *uuid.UUID `gorm:"type:uuid;index" json:"-"`
	DisplayName string     `gorm:"size:255;not null" json:"filename"`
	Size        int64      `json:"size"`
	ContentType string     `gorm:"size:255" json:"content_type"`
	UploadedAt  time.Time  `gorm:"not null;index" json:"upload_datetime"`
	ExpiresAt   *time.Time `gorm:"index" json:"expiry_datetime"`
	ContentHash *string    `gorm:"size:32" json:"file_hash"`
	BlobRef     string     `gorm:"size:1024;not null" json:"-"`

	Owner *User `gorm:"foreignKey:OwnerID;constraint:OnDelete:SET NULL" json:"-"`
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// IsExpired reports whether the file is past its expiry at now. Files
// without an expiry never expire.
func (f *File) IsExpired(now time.Time) bool {
	return f.ExpiresAt != nil && !now.Before(*f.ExpiresAt)
}
