package models

import "time"

// CartItem is one product in a user's active cart. All prices are stored as
// integer centavos; PrecoAvulso is the price the totals are computed with.
type CartItem struct {
	ID           uint `gorm:"primaryKey"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
	UserID       uint   `gorm:"index;not null"`
	Name         string `gorm:"size:255;not null"`
	Quantity     int    `gorm:"not null;default:1"`
	PrecoAvulso  int64  `gorm:"not null"`
	PrecoCartao  int64
	PrecoAtacado int64
	Unit         string `gorm:"size:32"`
	Market       string `gorm:"size:255"`
	ScannedFrom  string `gorm:"size:64"` // scan record id when added by the scanner
}
