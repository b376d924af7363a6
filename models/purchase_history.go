package models

import "time"

// PurchaseHistory is one checked-out cart. Total is centavos.
type PurchaseHistory struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UserID    uint           `gorm:"index;not null"`
	Market    string         `gorm:"size:255"`
	Total     int64          `gorm:"not null"`
	ItemCount int            `gorm:"not null"`
	Items     []PurchaseItem `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// PurchaseItem is one cart line frozen at checkout time.
type PurchaseItem struct {
	ID                uint   `gorm:"primaryKey"`
	PurchaseHistoryID uint   `gorm:"index;not null"`
	Name              string `gorm:"size:255;not null"`
	Quantity          int    `gorm:"not null;default:1"`
	PrecoAvulso       int64  `gorm:"not null"`
	Unit              string `gorm:"size:32"`
}
