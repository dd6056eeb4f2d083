package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Staff struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Name      string    `gorm:"not null" json:"name"`
	Password  string    `gorm:"not null" json:"-"`
	Role      string    `gorm:"not null;size:16" json:"role"`
	IsActive  bool      `gorm:"not null" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (staff *Staff) BeforeCreate(tx *gorm.DB) (err error) {
	if staff.ID == uuid.Nil {
		staff.ID = uuid.New()
	}
	return
}

type Customer struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name"`
	Email     string    `gorm:"uniqueIndex;not null" json:"email"`
	Phone     string    `json:"phone"`
	Document  string    `json:"document"`
	Password  string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (customer *Customer) BeforeCreate(tx *gorm.DB) (err error) {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	return
}

func (customer *Customer) Snapshot() CustomerSnapshot {
	return CustomerSnapshot{
		Name:     customer.Name,
		Email:    customer.Email,
		Phone:    customer.Phone,
		Document: customer.Document,
	}
}
