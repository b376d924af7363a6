package models

import "time"

// SavedList is a named shopping list a user keeps for reuse.
type SavedList struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    uint            `gorm:"index;not null"`
	Name      string          `gorm:"size:255;not null"`
	Items     []SavedListItem `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}

// SavedListItem is one line of a saved list. Prices are centavos and reflect
// what the item cost when the list was saved.
type SavedListItem struct {
	ID          uint `gorm:"primaryKey"`
	CreatedAt   time.Time
	SavedListID uint   `gorm:"index;not null"`
	Name        string `gorm:"size:255;not null"`
	Quantity    int    `gorm:"not null;default:1"`
	PrecoAvulso int64
	Unit        string `gorm:"size:32"`
}
