package store

import "errors"

var (
	ErrTicketNotFound     = errors.New("ticket not found")
	ErrRestaurantNotFound = errors.New("restaurant not found")
	ErrCustomerNotFound   = errors.New("customer not found")
	ErrInvalidState       = errors.New("invalid ticket state")
	ErrPartySizeTooLarge  = errors.New("party size exceeds restaurant maximum")
	ErrInvalidPartySize   = errors.New("party size must be at least 1")
)
