package models

// All lists every persisted model, in migration order.
func All() []interface{} {
	return []interface{}{
		&TicketType{},
		&TicketAvailability{},
		&Order{},
		&OrderItem{},
		&Staff{},
		&Customer{},
	}
}
