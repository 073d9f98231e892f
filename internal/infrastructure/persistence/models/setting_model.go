package models

import "time"

// SettingModel is a single keystore entry.
type SettingModel struct {
	Key       string    `gorm:"primaryKey;size:128"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TableName overrides the gorm table name.
func (SettingModel) TableName() string {
	return "settings"
}
