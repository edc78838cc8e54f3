package store

import (
	"context"
	"encoding/json"
	"time"

	"dinequeue/waitlist-service/internal/models"
	"dinequeue/waitlist-service/internal/queue"
)

type CreateTicketInput struct {
	RequestID    string
	RestaurantID string
	CustomerID   string
	CustomerName string
	Phone        string
	PartySize    int
	Priority     string
	Notes        string
	CreatedAt    time.Time
}

type TicketActionInput struct {
	RequestID    string
	RestaurantID string
	TicketID     string
	OccurredAt   time.Time
}

type ClearQueueInput struct {
	RequestID    string
	RestaurantID string
	OccurredAt   time.Time
}

// TicketStore is the persistence boundary of the waitlist. The second return
// of the transition methods reports whether this call mutated the ticket;
// idempotent replays return the recorded ticket with false.
type TicketStore interface {
	CreateTicket(ctx context.Context, input CreateTicketInput) (models.Ticket, bool, error)
	GetTicket(ctx context.Context, restaurantID, ticketID string) (models.Ticket, error)
	ListWaiting(ctx context.Context, restaurantID string, since time.Time) ([]models.Ticket, error)
	CallTicket(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	SeatTicket(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	CancelTicket(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	NoShowTicket(ctx context.Context, input TicketActionInput) (models.Ticket, bool, error)
	ClearQueue(ctx context.Context, input ClearQueueInput) (int, error)
	AutoNoShow(ctx context.Context, grace time.Duration, batchSize int) (int, error)
	ListWaitSamples(ctx context.Context, restaurantID string, from, to time.Time) ([]queue.WaitSample, error)
	GetSettings(ctx context.Context, restaurantID string) (models.Settings, error)
	IncrementVisit(ctx context.Context, customerID string, visitedAt time.Time) error
	ListOutboxEvents(ctx context.Context, restaurantID string, after time.Time, limit int) ([]OutboxEvent, error)
	ListTicketEvents(ctx context.Context, restaurantID, ticketID string) ([]TicketEvent, error)
}

type OutboxEvent struct {
	EventID      string          `json:"event_id"`
	RestaurantID string          `json:"restaurant_id"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	CreatedAt    time.Time       `json:"created_at"`
}
