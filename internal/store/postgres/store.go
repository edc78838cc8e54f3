package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dinequeue/waitlist-service/internal/models"
	"dinequeue/waitlist-service/internal/queue"
	"dinequeue/waitlist-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const ticketColumns = `ticket_id, restaurant_id, customer_id, customer_name, phone, party_size,
	priority, status, queue_position, notes, created_at, called_at, seated_at, terminal_at`

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, bool, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, err := findTicketByRequestID(ctx, tx, input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		return existing, false, nil
	}

	if input.PartySize < 1 {
		err = store.ErrInvalidPartySize
		return models.Ticket{}, false, err
	}

	settings, err := getSettings(ctx, tx, input.RestaurantID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if settings.MaxPartySize > 0 && input.PartySize > settings.MaxPartySize {
		err = store.ErrPartySizeTooLarge
		return models.Ticket{}, false, err
	}

	position, err := nextQueuePosition(ctx, tx, input.RestaurantID)
	if err != nil {
		return models.Ticket{}, false, err
	}

	ticketID := uuid.NewString()
	createdAt := input.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	priority := input.Priority
	if priority == "" {
		priority = models.PriorityNormal
	}

	var ticket models.Ticket
	row := tx.QueryRow(ctx, `
		INSERT INTO tickets (
			ticket_id, request_id, restaurant_id, customer_id, customer_name, phone,
			party_size, priority, status, queue_position, notes, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		ON CONFLICT (request_id) DO NOTHING
		RETURNING `+ticketColumns,
		ticketID, input.RequestID, input.RestaurantID, nullIfEmpty(input.CustomerID),
		input.CustomerName, nullIfEmpty(input.Phone), input.PartySize, priority,
		models.StatusWaiting, position, input.Notes, createdAt)
	if err = scanTicket(row, &ticket); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, err
		}
		// A concurrent enqueue with the same request_id committed between
		// the replay lookup and the insert; its ticket is the outcome.
		var found bool
		ticket, found, err = findTicketByRequestID(ctx, tx, input.RequestID)
		if err != nil {
			return models.Ticket{}, false, err
		}
		if !found {
			err = pgx.ErrNoRows
			return models.Ticket{}, false, err
		}
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		return ticket, false, nil
	}
	ticket.RequestID = input.RequestID

	if err = insertOutboxEvent(ctx, tx, "ticket.created", ticket); err != nil {
		return models.Ticket{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) GetTicket(ctx context.Context, restaurantID, ticketID string) (models.Ticket, error) {
	var ticket models.Ticket
	row := s.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE ticket_id = $1 AND restaurant_id = $2
	`, ticketID, restaurantID)
	if err := scanTicket(row, &ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func (s *Store) ListWaiting(ctx context.Context, restaurantID string, since time.Time) ([]models.Ticket, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE restaurant_id = $1 AND status = 'waiting' AND created_at >= $2
		ORDER BY created_at ASC, ticket_id ASC
	`, restaurantID, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tickets []models.Ticket
	for rows.Next() {
		var ticket models.Ticket
		if err := scanTicket(rows, &ticket); err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

func (s *Store) CallTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	return s.applyTransition(ctx, input, "call", models.StatusWaiting, "called_at", "ticket.called")
}

func (s *Store) SeatTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	return s.applyTransition(ctx, input, "seat", models.StatusCalled, "seated_at", "ticket.seated")
}

func (s *Store) CancelTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	return s.applyTransition(ctx, input, "cancel", "", "terminal_at", "ticket.canceled")
}

func (s *Store) NoShowTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	return s.applyTransition(ctx, input, "no_show", "", "terminal_at", "ticket.no_show")
}

// applyTransition is the single guarded-update path for all per-ticket
// transitions. The UPDATE matches only the statuses the transition table
// allows; when it matches no row the current state is loaded to tell
// not-found from invalid-transition, and a ticket already in the target
// status is returned as a successful no-op (first write wins).
func (s *Store) applyTransition(ctx context.Context, input store.TicketActionInput, action, requireStatus, timestampColumn, eventType string) (models.Ticket, bool, error) {
	target := store.TargetStatus(action)
	if target == "" {
		return models.Ticket{}, false, store.ErrInvalidState
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Ticket{}, false, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	existing, found, empty, err := findActionRequest(ctx, tx, action, input.RequestID)
	if err != nil {
		return models.Ticket{}, false, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return models.Ticket{}, false, err
		}
		if empty {
			return models.Ticket{}, false, store.ErrInvalidState
		}
		return existing, false, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	allowed := []string{requireStatus}
	if requireStatus == "" {
		allowed = store.AllowedFrom(action)
	}

	var ticket models.Ticket
	row := tx.QueryRow(ctx, fmt.Sprintf(`
		UPDATE tickets
		SET status = $1, %s = $2
		WHERE ticket_id = $3 AND restaurant_id = $4 AND status = ANY($5)
		RETURNING `+ticketColumns, timestampColumn),
		target, occurredAt, input.TicketID, input.RestaurantID, allowed)
	if err = scanTicket(row, &ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			var current models.Ticket
			current, err = getTicketByID(ctx, tx, input.TicketID, input.RestaurantID)
			if err != nil {
				return models.Ticket{}, false, err
			}
			if current.Status == target {
				// Either a concurrent duplicate of the same action (the
				// earlier write holds) or, for call, a deliberate
				// re-announce. Report success without mutating.
				current.RequestID = input.RequestID
				if action == "call" {
					if err = insertActionRequest(ctx, tx, action, input.RequestID, input.RestaurantID, current.TicketID); err != nil {
						return models.Ticket{}, false, err
					}
					if err = insertOutboxEvent(ctx, tx, "ticket.recalled", current); err != nil {
						return models.Ticket{}, false, err
					}
				}
				if err = tx.Commit(ctx); err != nil {
					return models.Ticket{}, false, err
				}
				return current, false, nil
			}
			err = store.ErrInvalidState
			return models.Ticket{}, false, err
		}
		return models.Ticket{}, false, err
	}
	ticket.RequestID = input.RequestID

	if err = insertActionRequest(ctx, tx, action, input.RequestID, input.RestaurantID, ticket.TicketID); err != nil {
		return models.Ticket{}, false, err
	}
	if err = insertOutboxEvent(ctx, tx, eventType, ticket); err != nil {
		return models.Ticket{}, false, err
	}

	if err = tx.Commit(ctx); err != nil {
		return models.Ticket{}, false, err
	}
	return ticket, true, nil
}

func (s *Store) ClearQueue(ctx context.Context, input store.ClearQueueInput) (int, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	recorded, found, err := findClearRequest(ctx, tx, input.RequestID)
	if err != nil {
		return 0, err
	}
	if found {
		if err = tx.Commit(ctx); err != nil {
			return 0, err
		}
		return recorded, nil
	}

	occurredAt := input.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	rows, err := tx.Query(ctx, `
		UPDATE tickets
		SET status = 'canceled', terminal_at = $1
		WHERE restaurant_id = $2 AND status = 'waiting'
		RETURNING `+ticketColumns, occurredAt, input.RestaurantID)
	if err != nil {
		return 0, err
	}
	var cleared []models.Ticket
	for rows.Next() {
		var ticket models.Ticket
		if err = scanTicket(rows, &ticket); err != nil {
			rows.Close()
			return 0, err
		}
		cleared = append(cleared, ticket)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return 0, err
	}

	for i := range cleared {
		if err = insertOutboxEvent(ctx, tx, "ticket.canceled", cleared[i]); err != nil {
			return 0, err
		}
	}

	if err = insertClearRequest(ctx, tx, input.RequestID, input.RestaurantID, len(cleared)); err != nil {
		return 0, err
	}

	payload, err := json.Marshal(map[string]interface{}{
		"restaurant_id": input.RestaurantID,
		"cleared":       len(cleared),
		"occurred_at":   occurredAt,
	})
	if err != nil {
		return 0, err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, restaurant_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), input.RestaurantID, "queue.cleared", payload, time.Now().UTC())
	if err != nil {
		return 0, err
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(cleared), nil
}

// AutoNoShow walks called tickets whose grace period expired and marks them
// no_show. The restaurant's tolerance_minutes, when set, overrides the
// fallback grace.
func (s *Store) AutoNoShow(ctx context.Context, grace time.Duration, batchSize int) (int, error) {
	if grace <= 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = 100
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	now := time.Now().UTC()
	rows, err := tx.Query(ctx, `
		SELECT t.ticket_id, t.restaurant_id, t.called_at, COALESCE(s.tolerance_minutes, 0)
		FROM tickets t
		LEFT JOIN restaurant_settings s ON s.restaurant_id = t.restaurant_id
		WHERE t.status = 'called' AND t.called_at IS NOT NULL
		ORDER BY t.called_at ASC
		FOR UPDATE OF t SKIP LOCKED
		LIMIT $1
	`, batchSize)
	if err != nil {
		return 0, err
	}

	type candidate struct {
		ticketID     string
		restaurantID string
		calledAt     time.Time
		tolerance    int
	}
	var candidates []candidate
	for rows.Next() {
		var c candidate
		var calledAt sql.NullTime
		if err = rows.Scan(&c.ticketID, &c.restaurantID, &calledAt, &c.tolerance); err != nil {
			rows.Close()
			return 0, err
		}
		if calledAt.Valid {
			c.calledAt = calledAt.Time
		}
		candidates = append(candidates, c)
	}
	rows.Close()
	if err = rows.Err(); err != nil {
		return 0, err
	}

	processed := 0
	for _, c := range candidates {
		effectiveGrace := grace
		if c.tolerance > 0 {
			effectiveGrace = time.Duration(c.tolerance) * time.Minute
		}
		if c.calledAt.IsZero() || now.Sub(c.calledAt) < effectiveGrace {
			continue
		}

		var ticket models.Ticket
		row := tx.QueryRow(ctx, `
			UPDATE tickets
			SET status = 'no_show', terminal_at = $1
			WHERE ticket_id = $2 AND status = 'called'
			RETURNING `+ticketColumns, now, c.ticketID)
		if err = scanTicket(row, &ticket); err != nil {
			return 0, err
		}
		if err = insertOutboxEvent(ctx, tx, "ticket.no_show", ticket); err != nil {
			return 0, err
		}
		processed++
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return processed, nil
}

func (s *Store) ListWaitSamples(ctx context.Context, restaurantID string, from, to time.Time) ([]queue.WaitSample, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT party_size, created_at, seated_at
		FROM tickets
		WHERE restaurant_id = $1 AND status = 'seated' AND seated_at IS NOT NULL
			AND created_at >= $2 AND created_at < $3
	`, restaurantID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []queue.WaitSample
	for rows.Next() {
		var sample queue.WaitSample
		if err := rows.Scan(&sample.PartySize, &sample.CreatedAt, &sample.SeatedAt); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return samples, nil
}

func (s *Store) GetSettings(ctx context.Context, restaurantID string) (models.Settings, error) {
	return getSettingsFrom(ctx, s.pool, restaurantID)
}

func (s *Store) IncrementVisit(ctx context.Context, customerID string, visitedAt time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE customers
		SET visit_count = visit_count + 1, last_visit_at = $1
		WHERE customer_id = $2
	`, visitedAt, customerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrCustomerNotFound
	}
	return nil
}

func (s *Store) ListOutboxEvents(ctx context.Context, restaurantID string, after time.Time, limit int) ([]store.OutboxEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `
		SELECT event_id, restaurant_id, type, payload_json, created_at
		FROM outbox_events
		WHERE restaurant_id = $1
	`
	args := []interface{}{restaurantID}
	if !after.IsZero() {
		query += " AND created_at > $2 ORDER BY created_at ASC LIMIT $3"
		args = append(args, after, limit)
	} else {
		query += " ORDER BY created_at ASC LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.OutboxEvent
	for rows.Next() {
		var event store.OutboxEvent
		if err := rows.Scan(&event.EventID, &event.RestaurantID, &event.Type, &event.Payload, &event.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

func (s *Store) ListTicketEvents(ctx context.Context, restaurantID, ticketID string) ([]store.TicketEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT e.ticket_id, e.ticket_seq, e.type, e.payload, e.created_at, e.prev_hash, e.hash
		FROM ticket_events e
		JOIN tickets t ON t.ticket_id = e.ticket_id
		WHERE t.restaurant_id = $1 AND e.ticket_id = $2
		ORDER BY e.ticket_seq ASC
	`, restaurantID, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []store.TicketEvent
	for rows.Next() {
		var event store.TicketEvent
		if err := rows.Scan(&event.TicketID, &event.TicketSeq, &event.Type, &event.Payload, &event.CreatedAt, &event.PrevHash, &event.Hash); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTicket(row rowScanner, ticket *models.Ticket) error {
	var customerID sql.NullString
	var phone sql.NullString
	var notes sql.NullString
	var calledAt sql.NullTime
	var seatedAt sql.NullTime
	var terminalAt sql.NullTime
	if err := row.Scan(
		&ticket.TicketID, &ticket.RestaurantID, &customerID, &ticket.CustomerName,
		&phone, &ticket.PartySize, &ticket.Priority, &ticket.Status,
		&ticket.QueuePosition, &notes, &ticket.CreatedAt, &calledAt, &seatedAt, &terminalAt,
	); err != nil {
		return err
	}
	ticket.CustomerID = nullStringPtr(customerID)
	if phone.Valid {
		ticket.Phone = phone.String
	}
	if notes.Valid {
		ticket.Notes = notes.String
	}
	ticket.CalledAt = nullTimePtr(calledAt)
	ticket.SeatedAt = nullTimePtr(seatedAt)
	ticket.TerminalAt = nullTimePtr(terminalAt)
	return nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

func getSettings(ctx context.Context, tx pgx.Tx, restaurantID string) (models.Settings, error) {
	return getSettingsFrom(ctx, tx, restaurantID)
}

func getSettingsFrom(ctx context.Context, q queryRower, restaurantID string) (models.Settings, error) {
	var settings models.Settings
	row := q.QueryRow(ctx, `
		SELECT restaurant_id, max_party_size, queue_capacity, tolerance_minutes
		FROM restaurant_settings
		WHERE restaurant_id = $1
	`, restaurantID)
	if err := row.Scan(&settings.RestaurantID, &settings.MaxPartySize, &settings.QueueCapacity, &settings.ToleranceMinutes); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Settings{}, store.ErrRestaurantNotFound
		}
		return models.Settings{}, err
	}
	return settings, nil
}

// nextQueuePosition hands out the restaurant-scoped enqueue counter in a
// single atomic read-modify-write; two concurrent enqueues can never observe
// the same value.
func nextQueuePosition(ctx context.Context, tx pgx.Tx, restaurantID string) (int64, error) {
	var next int64
	row := tx.QueryRow(ctx, `
		INSERT INTO queue_sequences (restaurant_id, next_position)
		VALUES ($1, 1)
		ON CONFLICT (restaurant_id)
		DO UPDATE SET next_position = queue_sequences.next_position + 1
		RETURNING next_position
	`, restaurantID)
	if err := row.Scan(&next); err != nil {
		return 0, err
	}
	return next, nil
}

func findTicketByRequestID(ctx context.Context, tx pgx.Tx, requestID string) (models.Ticket, bool, error) {
	var ticket models.Ticket
	row := tx.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE request_id = $1
	`, requestID)
	if err := scanTicket(row, &ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, nil
		}
		return models.Ticket{}, false, err
	}
	ticket.RequestID = requestID
	return ticket, true, nil
}

func findActionRequest(ctx context.Context, tx pgx.Tx, action, requestID string) (models.Ticket, bool, bool, error) {
	var ticketID sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT ticket_id
		FROM ticket_action_requests
		WHERE request_id = $1 AND action = $2
	`, requestID, action)
	if err := row.Scan(&ticketID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, false, false, nil
		}
		return models.Ticket{}, false, false, err
	}

	if !ticketID.Valid {
		return models.Ticket{}, true, true, nil
	}

	var ticket models.Ticket
	row = tx.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE ticket_id = $1
	`, ticketID.String)
	if err := scanTicket(row, &ticket); err != nil {
		return models.Ticket{}, false, false, err
	}
	ticket.RequestID = requestID
	return ticket, true, false, nil
}

// findClearRequest looks up a recorded queue clear so replays report the
// count the original request cleared, not zero.
func findClearRequest(ctx context.Context, tx pgx.Tx, requestID string) (int, bool, error) {
	var count int
	row := tx.QueryRow(ctx, `
		SELECT cleared_count
		FROM ticket_action_requests
		WHERE request_id = $1 AND action = 'clear'
	`, requestID)
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, err
	}
	return count, true, nil
}

func insertClearRequest(ctx context.Context, tx pgx.Tx, requestID, restaurantID string, cleared int) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ticket_action_requests (request_id, action, restaurant_id, ticket_id, cleared_count)
		VALUES ($1, 'clear', $2, NULL, $3)
		ON CONFLICT (request_id) DO NOTHING
	`, requestID, restaurantID, cleared)
	return err
}

func insertActionRequest(ctx context.Context, tx pgx.Tx, action, requestID, restaurantID, ticketID string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO ticket_action_requests (request_id, action, restaurant_id, ticket_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (request_id) DO NOTHING
	`, requestID, action, restaurantID, nullIfEmpty(ticketID))
	return err
}

func getTicketByID(ctx context.Context, tx pgx.Tx, ticketID, restaurantID string) (models.Ticket, error) {
	var ticket models.Ticket
	row := tx.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets
		WHERE ticket_id = $1 AND restaurant_id = $2
	`, ticketID, restaurantID)
	if err := scanTicket(row, &ticket); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Ticket{}, store.ErrTicketNotFound
		}
		return models.Ticket{}, err
	}
	return ticket, nil
}

func insertOutboxEvent(ctx context.Context, tx pgx.Tx, eventType string, ticket models.Ticket) error {
	payload := map[string]interface{}{
		"ticket_id":      ticket.TicketID,
		"restaurant_id":  ticket.RestaurantID,
		"customer_id":    ticket.CustomerID,
		"party_size":     ticket.PartySize,
		"priority":       ticket.Priority,
		"status":         ticket.Status,
		"queue_position": ticket.QueuePosition,
		"created_at":     ticket.CreatedAt,
		"called_at":      ticket.CalledAt,
		"seated_at":      ticket.SeatedAt,
		"terminal_at":    ticket.TerminalAt,
		"request_id":     ticket.RequestID,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO outbox_events (event_id, restaurant_id, type, payload_json, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, uuid.NewString(), ticket.RestaurantID, eventType, payloadJSON, time.Now().UTC())
	if err != nil {
		return err
	}
	return insertTicketEvent(ctx, tx, ticket.TicketID, eventType, payloadJSON)
}

func insertTicketEvent(ctx context.Context, tx pgx.Tx, ticketID, eventType string, payload []byte) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ticketID); err != nil {
		return err
	}

	var lastSeq int
	var prevHash sql.NullString
	row := tx.QueryRow(ctx, `
		SELECT ticket_seq, hash
		FROM ticket_events
		WHERE ticket_id = $1
		ORDER BY ticket_seq DESC
		LIMIT 1
		FOR UPDATE
	`, ticketID)
	if err := row.Scan(&lastSeq, &prevHash); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	nextSeq := lastSeq + 1
	prev := ""
	if prevHash.Valid {
		prev = prevHash.String
	}
	createdAt := time.Now().UTC()
	hash := store.ComputeTicketEventHash(prev, ticketID, eventType, payload, createdAt, nextSeq)

	_, err := tx.Exec(ctx, `
		INSERT INTO ticket_events (ticket_id, ticket_seq, type, payload, created_at, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, ticketID, nextSeq, eventType, payload, createdAt, prev, hash)
	return err
}

func nullIfEmpty(value string) interface{} {
	if value == "" {
		return nil
	}
	return value
}

func nullTimePtr(value sql.NullTime) *time.Time {
	if !value.Valid {
		return nil
	}
	return &value.Time
}

func nullStringPtr(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	return &value.String
}
