package models

import "errors"

var (
	ErrDateNotFound      = errors.New("availability not found for date")
	ErrDateExists        = errors.New("availability already exists for date")
	ErrDateInUse         = errors.New("date is referenced by open orders")
	ErrInvalidDate       = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidQuantity   = errors.New("quantity must be at least 1")
	ErrInvalidCapacity   = errors.New("total tickets must not be negative")
	ErrCapacityBelowSold = errors.New("total tickets cannot be lower than tickets already sold")
	ErrCapacityExceeded  = errors.New("not enough tickets left for date")
	ErrDateUnavailable   = errors.New("date is not available for booking")

	ErrOrderNotFound     = errors.New("order not found")
	ErrInvalidTransition = errors.New("invalid payment status transition")
	ErrEmptyOrder        = errors.New("order must contain at least one item")
	ErrInvalidCustomer   = errors.New("customer name and email are required")
	ErrUnknownTicketType = errors.New("unknown or inactive ticket type")
	ErrAmountMismatch    = errors.New("submitted amount does not match current prices")
	ErrTicketAlreadyUsed = errors.New("ticket has already been validated")
	ErrPaymentProvider   = errors.New("payment provider unavailable, try again")
	ErrTicketNotIssued   = errors.New("ticket code has not been issued for this order")
	ErrTicketCodeInUse   = errors.New("ticket code collision")

	ErrTicketTypeExists = errors.New("ticket type already exists")
	ErrStaffExists      = errors.New("email already registered")
	ErrInvalidLogin     = errors.New("invalid credentials")
	ErrAccountDisabled  = errors.New("account disabled")
)
