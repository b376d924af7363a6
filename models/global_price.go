package models

import "time"

// GlobalPrice is a crowd-sourced price observation: one product seen at one
// market at one moment. Amounts are centavos.
type GlobalPrice struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	ProductName string `gorm:"size:255;not null;index"`
	Price       int64  `gorm:"not null"`
	PriceKind   string `gorm:"size:32"`
	Market      string `gorm:"size:255;index"`
	Latitude    *float64
	Longitude   *float64
	UserID      *uint `gorm:"index"` // nil for anonymous observations
}
