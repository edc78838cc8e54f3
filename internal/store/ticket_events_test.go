package store

import (
	"encoding/json"
	"testing"
	"time"

	"dinequeue/waitlist-service/internal/models"
)

func TestComputeTicketEventHashChains(t *testing.T) {
	at := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	payload := json.RawMessage(`{"ticket_id":"t1","status":"waiting"}`)

	first := ComputeTicketEventHash("", "t1", "ticket.created", payload, at, 1)
	second := ComputeTicketEventHash(first, "t1", "ticket.called", payload, at.Add(time.Minute), 2)

	if first == "" || second == "" {
		t.Fatal("hashes must not be empty")
	}
	if first == second {
		t.Fatal("chained hashes must differ")
	}
	if again := ComputeTicketEventHash("", "t1", "ticket.created", payload, at, 1); again != first {
		t.Fatal("hash must be deterministic")
	}
}

func TestRehydrateTicket(t *testing.T) {
	created := time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)
	called := created.Add(12 * time.Minute)
	seated := created.Add(20 * time.Minute)

	mustPayload := func(v interface{}) json.RawMessage {
		raw, err := json.Marshal(v)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		return raw
	}

	events := []TicketEvent{
		{TicketID: "t1", TicketSeq: 1, Type: "ticket.created", Payload: mustPayload(map[string]interface{}{
			"ticket_id": "t1", "restaurant_id": "r1", "party_size": 4,
			"priority": "normal", "status": "waiting", "queue_position": 7,
			"created_at": created,
		})},
		{TicketID: "t1", TicketSeq: 2, Type: "ticket.called", Payload: mustPayload(map[string]interface{}{
			"status": "called", "called_at": called,
		})},
		{TicketID: "t1", TicketSeq: 3, Type: "ticket.seated", Payload: mustPayload(map[string]interface{}{
			"status": "seated", "seated_at": seated,
		})},
	}

	ticket, err := RehydrateTicket(events)
	if err != nil {
		t.Fatalf("rehydrate: %v", err)
	}
	if ticket.Status != models.StatusSeated {
		t.Fatalf("status=%q, want seated", ticket.Status)
	}
	if ticket.PartySize != 4 || ticket.QueuePosition != 7 {
		t.Fatalf("lost creation fields: %+v", ticket)
	}
	if ticket.SeatedAt == nil || !ticket.SeatedAt.Equal(seated) {
		t.Fatalf("seated_at=%v, want %v", ticket.SeatedAt, seated)
	}
	if ticket.CalledAt == nil || !ticket.CalledAt.Equal(called) {
		t.Fatalf("called_at=%v, want %v", ticket.CalledAt, called)
	}
}
