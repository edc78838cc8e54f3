package models

import "time"

// Ticket is a single walk-in party's queue entry. QueuePosition is the
// restaurant-scoped monotonic enqueue counter; the per-band rank shown to
// guests is derived at read time and never stored.
type Ticket struct {
	TicketID      string     `json:"ticket_id"`
	RestaurantID  string     `json:"restaurant_id"`
	CustomerID    *string    `json:"customer_id,omitempty"`
	CustomerName  string     `json:"customer_name"`
	Phone         string     `json:"phone,omitempty"`
	PartySize     int        `json:"party_size"`
	Priority      string     `json:"priority"`
	Status        string     `json:"status"`
	QueuePosition int64      `json:"queue_position"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	RequestID     string     `json:"request_id"`
	CalledAt      *time.Time `json:"called_at,omitempty"`
	SeatedAt      *time.Time `json:"seated_at,omitempty"`
	TerminalAt    *time.Time `json:"terminal_at,omitempty"`
}

const (
	StatusWaiting  = "waiting"
	StatusCalled   = "called"
	StatusSeated   = "seated"
	StatusCanceled = "canceled"
	StatusNoShow   = "no_show"
)

const (
	PriorityNormal = "normal"
	PriorityHigh   = "high"
	PriorityVIP    = "vip"
)

func ValidPriority(priority string) bool {
	switch priority {
	case PriorityNormal, PriorityHigh, PriorityVIP:
		return true
	}
	return false
}
