package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"dinequeue/waitlist-service/internal/store"

	"github.com/hibiken/asynq"
)

const TypeIncrementVisit = "crm:increment_visit"

type IncrementVisitPayload struct {
	CustomerID   string    `json:"customer_id"`
	RestaurantID string    `json:"restaurant_id"`
	SeatedAt     time.Time `json:"seated_at"`
}

// Enqueuer hands visit-counter updates to the CRM worker queue. Seating
// stays committed even when the enqueue fails; callers log and move on.
type Enqueuer struct {
	client *asynq.Client
}

func NewEnqueuer(client *asynq.Client) *Enqueuer {
	return &Enqueuer{client: client}
}

func (e *Enqueuer) RecordSeatedVisit(ctx context.Context, customerID, restaurantID string, seatedAt time.Time) error {
	payload, err := json.Marshal(IncrementVisitPayload{
		CustomerID:   customerID,
		RestaurantID: restaurantID,
		SeatedAt:     seatedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal visit payload: %w", err)
	}

	task := asynq.NewTask(TypeIncrementVisit, payload, asynq.MaxRetry(5), asynq.Queue("default"))
	if _, err := e.client.EnqueueContext(ctx, task); err != nil {
		return fmt.Errorf("enqueue visit task: %w", err)
	}
	return nil
}

// VisitStore is the slice of the persistence layer the worker needs.
type VisitStore interface {
	IncrementVisit(ctx context.Context, customerID string, visitedAt time.Time) error
}

type Handlers struct {
	store VisitStore
}

func NewHandlers(store VisitStore) *Handlers {
	return &Handlers{store: store}
}

func (h *Handlers) HandleIncrementVisit(ctx context.Context, t *asynq.Task) error {
	var payload IncrementVisitPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal visit payload: %w", err)
	}
	if payload.CustomerID == "" {
		return fmt.Errorf("visit payload missing customer_id: %w", asynq.SkipRetry)
	}

	visitedAt := payload.SeatedAt
	if visitedAt.IsZero() {
		visitedAt = time.Now().UTC()
	}

	if err := h.store.IncrementVisit(ctx, payload.CustomerID, visitedAt); err != nil {
		// A vanished customer row is not worth retrying.
		if errors.Is(err, store.ErrCustomerNotFound) {
			log.Printf("visit skip customer=%s restaurant=%s: %v", payload.CustomerID, payload.RestaurantID, err)
			return fmt.Errorf("customer gone: %w", asynq.SkipRetry)
		}
		return err
	}

	log.Printf("visit recorded customer=%s restaurant=%s", payload.CustomerID, payload.RestaurantID)
	return nil
}
