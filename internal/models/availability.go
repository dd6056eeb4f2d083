package models

import "time"

// DateLayout is the calendar-day format used as the availability key.
const DateLayout = "2006-01-02"

type TicketAvailability struct {
	Date         string    `gorm:"primaryKey;size:10" json:"date"`
	TotalTickets int       `gorm:"not null" json:"total_tickets"`
	TicketsSold  int       `gorm:"not null;default:0" json:"tickets_sold"`
	IsActive     bool      `gorm:"not null" json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (TicketAvailability) TableName() string {
	return "ticket_availability"
}

func (a *TicketAvailability) Remaining() int {
	return a.TotalTickets - a.TicketsSold
}

// ParseDate validates a YYYY-MM-DD calendar day and returns it normalised.
func ParseDate(s string) (string, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return "", ErrInvalidDate
	}
	return t.Format(DateLayout), nil
}
