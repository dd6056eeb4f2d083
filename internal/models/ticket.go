package models

import (
	"time"
)

// TicketType is a catalog entry. It is only consulted for name and price when
// an order is created.
type TicketType struct {
	TicketID    string    `gorm:"primaryKey;size:64" json:"ticket_id"`
	Name        string    `gorm:"not null" json:"name"`
	Price       Money     `gorm:"not null" json:"price"`
	Description string    `json:"description"`
	Features    []string  `gorm:"serializer:json" json:"features"`
	IsActive    bool      `gorm:"not null" json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
