package models

import "time"

// ScanRecord tracks one capture session from start to stop. UserID is nil
// when the session ran without a logged-in user; the detections then stay in
// the device-local cart only.
type ScanRecord struct {
	ID         uint `gorm:"primaryKey"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
	UserID     *uint  `gorm:"index"`
	Market     string `gorm:"size:255"`
	Latitude   *float64
	Longitude  *float64
	Label      string `gorm:"size:255"` // reverse-geocoded place label, if any
	RawText    string `gorm:"size:350"` // last recognized snippet, for diagnosis
	ItemsAdded int    `gorm:"not null;default:0"`
	Status     string `gorm:"size:16;not null;default:draft"` // draft or confirmed
}
