package services

import "github.com/farellandr/aquapark/internal/payment"

// Registry bundles the services handlers reach through the request context.
type Registry struct {
	Availability *AvailabilityService
	Orders       *OrderService
	Redemption   *RedemptionService
	Processor    payment.Processor
}
