package store

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"

	"dinequeue/waitlist-service/internal/models"
)

// TicketEvent is one link of a ticket's hash-chained transition log. The
// chain lets downstream consumers (status page, CRM counters) verify they
// replayed the full lifecycle in order.
type TicketEvent struct {
	TicketID  string          `json:"ticket_id"`
	TicketSeq int             `json:"ticket_seq"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
	PrevHash  string          `json:"prev_hash"`
	Hash      string          `json:"hash"`
}

type eventPayload struct {
	TicketID      string     `json:"ticket_id"`
	RestaurantID  string     `json:"restaurant_id"`
	CustomerID    *string    `json:"customer_id"`
	PartySize     int        `json:"party_size"`
	Priority      string     `json:"priority"`
	Status        string     `json:"status"`
	QueuePosition int64      `json:"queue_position"`
	CreatedAt     *time.Time `json:"created_at"`
	CalledAt      *time.Time `json:"called_at"`
	SeatedAt      *time.Time `json:"seated_at"`
	TerminalAt    *time.Time `json:"terminal_at"`
}

func ComputeTicketEventHash(prevHash, ticketID, eventType string, payload json.RawMessage, createdAt time.Time, seq int) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%d|%s", prevHash, ticketID, eventType, createdAt.UTC().Format(time.RFC3339Nano), seq, payload)
	sum := sha256.Sum256([]byte(raw))
	return fmt.Sprintf("%x", sum)
}

// RehydrateTicket folds an event chain back into the ticket it describes.
func RehydrateTicket(events []TicketEvent) (models.Ticket, error) {
	var ticket models.Ticket
	for _, event := range events {
		if len(event.Payload) == 0 {
			continue
		}
		var payload eventPayload
		if err := json.Unmarshal(event.Payload, &payload); err != nil {
			return models.Ticket{}, err
		}
		if payload.TicketID != "" {
			ticket.TicketID = payload.TicketID
		}
		if payload.RestaurantID != "" {
			ticket.RestaurantID = payload.RestaurantID
		}
		if payload.CustomerID != nil {
			ticket.CustomerID = payload.CustomerID
		}
		if payload.PartySize != 0 {
			ticket.PartySize = payload.PartySize
		}
		if payload.Priority != "" {
			ticket.Priority = payload.Priority
		}
		if payload.Status != "" {
			ticket.Status = payload.Status
		}
		if payload.QueuePosition != 0 {
			ticket.QueuePosition = payload.QueuePosition
		}
		if payload.CreatedAt != nil {
			ticket.CreatedAt = *payload.CreatedAt
		}
		if payload.CalledAt != nil {
			ticket.CalledAt = payload.CalledAt
		}
		if payload.SeatedAt != nil {
			ticket.SeatedAt = payload.SeatedAt
		}
		if payload.TerminalAt != nil {
			ticket.TerminalAt = payload.TerminalAt
		}
	}
	return ticket, nil
}
