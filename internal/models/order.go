package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CustomerSnapshot is copied onto the order at checkout and never follows later
// changes to the customer account.
type CustomerSnapshot struct {
	Name     string `gorm:"not null" json:"name"`
	Email    string `gorm:"not null" json:"email"`
	Phone    string `json:"phone"`
	Document string `json:"document"`
}

type Order struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	OrderID           string           `gorm:"uniqueIndex;not null;size:32" json:"order_id"`
	CustomerID        *uuid.UUID       `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	Customer          CustomerSnapshot `gorm:"embedded;embeddedPrefix:customer_" json:"customer"`
	Items             []OrderItem      `gorm:"foreignKey:OrderRef;constraint:OnDelete:CASCADE" json:"items"`
	VisitDate         string           `gorm:"index;not null;size:10" json:"visit_date"`
	TotalAmount       Money            `gorm:"not null" json:"total_amount"`
	PaymentStatus     PaymentStatus    `gorm:"index;not null;default:'pending';size:16" json:"payment_status"`
	PaymentProvider   string           `gorm:"size:32" json:"payment_provider,omitempty"`
	PaymentID         *string          `json:"payment_id,omitempty"`
	ProviderReference *string          `json:"provider_reference,omitempty"`
	RedirectURL       string           `json:"redirect_url,omitempty"`
	TicketCode        *string          `gorm:"uniqueIndex;size:32" json:"ticket_code,omitempty"`
	Validated         bool             `gorm:"not null;default:false" json:"validated"`
	ValidatedAt       *time.Time       `json:"validated_at,omitempty"`
	ValidatedBy       *uuid.UUID       `gorm:"type:uuid" json:"validated_by,omitempty"`
	ValidatedByName   *string          `json:"validated_by_name,omitempty"`
	NeedsReview       bool             `gorm:"index;not null;default:false" json:"needs_review"`
	ReviewReason      string           `json:"review_reason,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

func (order *Order) BeforeCreate(tx *gorm.DB) (err error) {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	return
}

func (order *Order) TotalQuantity() int {
	total := 0
	for _, item := range order.Items {
		total += item.Quantity
	}
	return total
}

type OrderItem struct {
	ID           uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	OrderRef     uuid.UUID `gorm:"type:uuid;index;not null" json:"-"`
	TicketTypeID string    `gorm:"not null" json:"ticket_id"`
	Name         string    `json:"name"`
	Quantity     int       `gorm:"not null" json:"quantity"`
	UnitPrice    Money     `gorm:"not null" json:"unit_price"`
}

func (item *OrderItem) BeforeCreate(tx *gorm.DB) (err error) {
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	return
}

func (item OrderItem) Subtotal() Money {
	return item.UnitPrice * Money(item.Quantity)
}
