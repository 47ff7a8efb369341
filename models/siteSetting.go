package models

// SiteSetting is a persisted override of one schema-defined site setting.
type SiteSetting struct {
	Name  string `gorm:"primaryKey;size:255" json:"name"`
	Value string `gorm:"size:255;not null" json:"value"`
}
