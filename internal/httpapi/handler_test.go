package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dinequeue/waitlist-service/internal/models"
	"dinequeue/waitlist-service/internal/queue"
	"dinequeue/waitlist-service/internal/store"
)

type fakeStore struct {
	createFn      func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, bool, error)
	getTicketFn   func(ctx context.Context, restaurantID, ticketID string) (models.Ticket, error)
	listWaitingFn func(ctx context.Context, restaurantID string, since time.Time) ([]models.Ticket, error)
	callFn        func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error)
	seatFn        func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error)
	cancelFn      func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error)
	noShowFn      func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error)
	clearFn       func(ctx context.Context, input store.ClearQueueInput) (int, error)
	autoNoShowFn  func(ctx context.Context, grace time.Duration, batchSize int) (int, error)
	samplesFn     func(ctx context.Context, restaurantID string, from, to time.Time) ([]queue.WaitSample, error)
	settingsFn    func(ctx context.Context, restaurantID string) (models.Settings, error)
	visitFn       func(ctx context.Context, customerID string, visitedAt time.Time) error
	outboxFn      func(ctx context.Context, restaurantID string, after time.Time, limit int) ([]store.OutboxEvent, error)
	eventsFn      func(ctx context.Context, restaurantID, ticketID string) ([]store.TicketEvent, error)
}

func (f fakeStore) CreateTicket(ctx context.Context, input store.CreateTicketInput) (models.Ticket, bool, error) {
	if f.createFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.createFn(ctx, input)
}

func (f fakeStore) GetTicket(ctx context.Context, restaurantID, ticketID string) (models.Ticket, error) {
	if f.getTicketFn == nil {
		return models.Ticket{}, nil
	}
	return f.getTicketFn(ctx, restaurantID, ticketID)
}

func (f fakeStore) ListWaiting(ctx context.Context, restaurantID string, since time.Time) ([]models.Ticket, error) {
	if f.listWaitingFn == nil {
		return nil, nil
	}
	return f.listWaitingFn(ctx, restaurantID, since)
}

func (f fakeStore) CallTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if f.callFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.callFn(ctx, input)
}

func (f fakeStore) SeatTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if f.seatFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.seatFn(ctx, input)
}

func (f fakeStore) CancelTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if f.cancelFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.cancelFn(ctx, input)
}

func (f fakeStore) NoShowTicket(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
	if f.noShowFn == nil {
		return models.Ticket{}, false, nil
	}
	return f.noShowFn(ctx, input)
}

func (f fakeStore) ClearQueue(ctx context.Context, input store.ClearQueueInput) (int, error) {
	if f.clearFn == nil {
		return 0, nil
	}
	return f.clearFn(ctx, input)
}

func (f fakeStore) AutoNoShow(ctx context.Context, grace time.Duration, batchSize int) (int, error) {
	if f.autoNoShowFn == nil {
		return 0, nil
	}
	return f.autoNoShowFn(ctx, grace, batchSize)
}

func (f fakeStore) ListWaitSamples(ctx context.Context, restaurantID string, from, to time.Time) ([]queue.WaitSample, error) {
	if f.samplesFn == nil {
		return nil, nil
	}
	return f.samplesFn(ctx, restaurantID, from, to)
}

func (f fakeStore) GetSettings(ctx context.Context, restaurantID string) (models.Settings, error) {
	if f.settingsFn == nil {
		return models.Settings{}, nil
	}
	return f.settingsFn(ctx, restaurantID)
}

func (f fakeStore) IncrementVisit(ctx context.Context, customerID string, visitedAt time.Time) error {
	if f.visitFn == nil {
		return nil
	}
	return f.visitFn(ctx, customerID, visitedAt)
}

func (f fakeStore) ListOutboxEvents(ctx context.Context, restaurantID string, after time.Time, limit int) ([]store.OutboxEvent, error) {
	if f.outboxFn == nil {
		return nil, nil
	}
	return f.outboxFn(ctx, restaurantID, after, limit)
}

func (f fakeStore) ListTicketEvents(ctx context.Context, restaurantID, ticketID string) ([]store.TicketEvent, error) {
	if f.eventsFn == nil {
		return nil, nil
	}
	return f.eventsFn(ctx, restaurantID, ticketID)
}

const (
	testRequestID    = "11111111-1111-1111-1111-111111111111"
	testRestaurantID = "22222222-2222-2222-2222-222222222222"
	testCustomerID   = "33333333-3333-3333-3333-333333333333"
	testTicketID     = "aaaaaaaa-aaaa-aaaa-aaaa-aaaaaaaaaaaa"
)

func TestCreateTicketSuccess(t *testing.T) {
	createdAt := time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)
	st := fakeStore{
		createFn: func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, bool, error) {
			return models.Ticket{
				TicketID:      testTicketID,
				RestaurantID:  input.RestaurantID,
				CustomerName:  input.CustomerName,
				PartySize:     input.PartySize,
				Status:        models.StatusWaiting,
				QueuePosition: 7,
				CreatedAt:     createdAt,
				RequestID:     input.RequestID,
			}, true, nil
		},
	}
	h := NewHandler(st, Options{})

	payload := map[string]interface{}{
		"request_id":    testRequestID,
		"restaurant_id": testRestaurantID,
		"customer_name": "Alina",
		"party_size":    4,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var ticket models.Ticket
	if err := json.NewDecoder(resp.Body).Decode(&ticket); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if ticket.TicketID == "" || ticket.Status != models.StatusWaiting || ticket.QueuePosition != 7 {
		t.Fatalf("unexpected ticket response: %+v", ticket)
	}
}

func TestCreateTicketRejectsZeroPartySize(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})

	payload := map[string]interface{}{
		"request_id":    testRequestID,
		"restaurant_id": testRestaurantID,
		"customer_name": "Alina",
		"party_size":    0,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}

func TestCreateTicketPartyTooLarge(t *testing.T) {
	st := fakeStore{
		createFn: func(ctx context.Context, input store.CreateTicketInput) (models.Ticket, bool, error) {
			return models.Ticket{}, false, store.ErrPartySizeTooLarge
		},
	}
	h := NewHandler(st, Options{})

	payload := map[string]interface{}{
		"request_id":    testRequestID,
		"restaurant_id": testRestaurantID,
		"customer_name": "Alina",
		"party_size":    30,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", resp.Code)
	}
}

func TestCallTicketInvalidState(t *testing.T) {
	st := fakeStore{
		callFn: func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
			return models.Ticket{}, false, store.ErrInvalidState
		},
	}
	h := NewHandler(st, Options{})

	payload := map[string]string{
		"request_id":    testRequestID,
		"restaurant_id": testRestaurantID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/"+testTicketID+"/actions/call", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", resp.Code)
	}
}

type recordedVisit struct {
	customerID   string
	restaurantID string
}

type fakeVisits struct {
	recorded []recordedVisit
	err      error
}

func (f *fakeVisits) RecordSeatedVisit(ctx context.Context, customerID, restaurantID string, seatedAt time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.recorded = append(f.recorded, recordedVisit{customerID: customerID, restaurantID: restaurantID})
	return nil
}

func TestSeatTicketRecordsVisit(t *testing.T) {
	customerID := testCustomerID
	seatedAt := time.Date(2026, 3, 2, 19, 0, 0, 0, time.UTC)
	st := fakeStore{
		seatFn: func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
			return models.Ticket{
				TicketID:     input.TicketID,
				RestaurantID: input.RestaurantID,
				CustomerID:   &customerID,
				Status:       models.StatusSeated,
				SeatedAt:     &seatedAt,
			}, true, nil
		},
	}
	visits := &fakeVisits{}
	h := NewHandler(st, Options{Visits: visits})

	payload := map[string]string{
		"request_id":    testRequestID,
		"restaurant_id": testRestaurantID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/"+testTicketID+"/actions/seat", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if len(visits.recorded) != 1 || visits.recorded[0].customerID != customerID {
		t.Fatalf("expected one recorded visit, got %+v", visits.recorded)
	}
}

func TestSeatReplayDoesNotRecordVisit(t *testing.T) {
	customerID := testCustomerID
	st := fakeStore{
		seatFn: func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
			return models.Ticket{
				TicketID:     input.TicketID,
				RestaurantID: input.RestaurantID,
				CustomerID:   &customerID,
				Status:       models.StatusSeated,
			}, false, nil
		},
	}
	visits := &fakeVisits{}
	h := NewHandler(st, Options{Visits: visits})

	payload := map[string]string{
		"request_id":    testRequestID,
		"restaurant_id": testRestaurantID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/"+testTicketID+"/actions/seat", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	if len(visits.recorded) != 0 {
		t.Fatalf("replay must not record a visit, got %+v", visits.recorded)
	}
}

func TestSeatVisitFailureWarnsButSucceeds(t *testing.T) {
	customerID := testCustomerID
	st := fakeStore{
		seatFn: func(ctx context.Context, input store.TicketActionInput) (models.Ticket, bool, error) {
			return models.Ticket{
				TicketID:     input.TicketID,
				RestaurantID: input.RestaurantID,
				CustomerID:   &customerID,
				Status:       models.StatusSeated,
			}, true, nil
		},
	}
	visits := &fakeVisits{err: context.DeadlineExceeded}
	h := NewHandler(st, Options{Visits: visits})

	payload := map[string]string{
		"request_id":    testRequestID,
		"restaurant_id": testRestaurantID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/"+testTicketID+"/actions/seat", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("seat must succeed even when visit recording fails, got %d", resp.Code)
	}
	if resp.Header().Get("Warning") == "" {
		t.Fatalf("expected a Warning header on deferred visit update")
	}
}

func TestQueueInfoForeignTicketPositionNull(t *testing.T) {
	base := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	st := fakeStore{
		listWaitingFn: func(ctx context.Context, restaurantID string, since time.Time) ([]models.Ticket, error) {
			return []models.Ticket{
				{TicketID: "t1", PartySize: 2, Status: models.StatusWaiting, CreatedAt: base},
				{TicketID: "t2", PartySize: 5, Status: models.StatusWaiting, CreatedAt: base.Add(time.Minute)},
			}, nil
		},
		settingsFn: func(ctx context.Context, restaurantID string) (models.Settings, error) {
			return models.Settings{RestaurantID: restaurantID, MaxPartySize: 12, QueueCapacity: 50, ToleranceMinutes: 10}, nil
		},
	}
	h := NewHandler(st, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/queue/info?restaurant_id="+testRestaurantID+"&ticket_id="+testTicketID, nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", resp.Code, resp.Body.String())
	}

	var info queueInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if info.TotalGroups != 2 || info.TotalPeople != 7 {
		t.Fatalf("unexpected totals: %+v", info)
	}
	if info.Position != nil {
		t.Fatalf("foreign ticket must have null position, got %d", *info.Position)
	}
}

func TestQueueInfoKnownTicketPosition(t *testing.T) {
	base := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	st := fakeStore{
		listWaitingFn: func(ctx context.Context, restaurantID string, since time.Time) ([]models.Ticket, error) {
			return []models.Ticket{
				{TicketID: "t1", PartySize: 2, Status: models.StatusWaiting, CreatedAt: base},
				{TicketID: testTicketID, PartySize: 4, Status: models.StatusWaiting, CreatedAt: base.Add(time.Minute)},
				{TicketID: "t3", PartySize: 6, Status: models.StatusWaiting, CreatedAt: base.Add(2 * time.Minute)},
			}, nil
		},
		settingsFn: func(ctx context.Context, restaurantID string) (models.Settings, error) {
			return models.Settings{RestaurantID: restaurantID, MaxPartySize: 12, QueueCapacity: 50, ToleranceMinutes: 10}, nil
		},
	}
	h := NewHandler(st, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/queue/info?restaurant_id="+testRestaurantID+"&ticket_id="+testTicketID, nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var info queueInfoResponse
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if info.Position == nil || *info.Position != 2 {
		t.Fatalf("expected position 2, got %+v", info.Position)
	}
	if info.Ticket == nil || info.Ticket.TicketID != testTicketID {
		t.Fatalf("expected ticket snapshot, got %+v", info.Ticket)
	}
}

func TestClearQueueEmptyIsNoOp(t *testing.T) {
	st := fakeStore{
		clearFn: func(ctx context.Context, input store.ClearQueueInput) (int, error) {
			return 0, nil
		},
	}
	h := NewHandler(st, Options{})

	payload := map[string]string{
		"request_id":    testRequestID,
		"restaurant_id": testRestaurantID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/queue/actions/clear", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if cleared, ok := result["cleared"].(float64); !ok || cleared != 0 {
		t.Fatalf("expected cleared=0, got %+v", result)
	}
}

func TestEstimatesStrictParam(t *testing.T) {
	base := time.Now().UTC().Add(-2 * time.Hour)
	samples := []queue.WaitSample{
		{PartySize: 2, CreatedAt: base, SeatedAt: base.Add(15 * time.Minute)},
		{PartySize: 2, CreatedAt: base, SeatedAt: base.Add(21 * time.Minute)},
	}
	st := fakeStore{
		samplesFn: func(ctx context.Context, restaurantID string, from, to time.Time) ([]queue.WaitSample, error) {
			return samples, nil
		},
	}
	h := NewHandler(st, Options{MinSamples: 5})

	req := httptest.NewRequest(http.MethodGet, "/api/queue/estimates?restaurant_id="+testRestaurantID, nil)
	resp := httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var loose estimatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&loose); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := loose.Estimates[queue.Band1to2]; !ok {
		t.Fatalf("expected a 1-2 estimate in lenient mode, got %+v", loose.Estimates)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/queue/estimates?restaurant_id="+testRestaurantID+"&strict=true", nil)
	resp = httptest.NewRecorder()
	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}
	var strict estimatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&strict); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if _, ok := strict.Estimates[queue.Band1to2]; ok {
		t.Fatalf("two samples must be unavailable in strict mode, got %+v", strict.Estimates)
	}
}

func TestBoardRanksPerBand(t *testing.T) {
	base := time.Date(2026, 3, 2, 17, 0, 0, 0, time.UTC)
	st := fakeStore{
		listWaitingFn: func(ctx context.Context, restaurantID string, since time.Time) ([]models.Ticket, error) {
			return []models.Ticket{
				{TicketID: "t1", PartySize: 2, Status: models.StatusWaiting, CreatedAt: base},
				{TicketID: "t2", PartySize: 2, Status: models.StatusWaiting, CreatedAt: base.Add(time.Minute)},
				{TicketID: "t3", PartySize: 5, Status: models.StatusWaiting, CreatedAt: base.Add(2 * time.Minute)},
			}, nil
		},
	}
	h := NewHandler(st, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/queue/board?restaurant_id="+testRestaurantID, nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.Code)
	}

	var entries []boardEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].BandRank != 1 || entries[1].BandRank != 2 {
		t.Fatalf("expected 1-2 band ranks 1 and 2, got %d and %d", entries[0].BandRank, entries[1].BandRank)
	}
	if entries[2].Band != queue.Band5to6 || entries[2].BandRank != 1 {
		t.Fatalf("expected party of five at rank 1 in band 5-6, got %+v", entries[2])
	}
}

func TestTicketActionUnknownAction(t *testing.T) {
	h := NewHandler(fakeStore{}, Options{})

	payload := map[string]string{
		"request_id":    testRequestID,
		"restaurant_id": testRestaurantID,
	}
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/api/tickets/"+testTicketID+"/actions/promote", bytes.NewReader(body))
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}

func TestGetTicketNotFound(t *testing.T) {
	st := fakeStore{
		getTicketFn: func(ctx context.Context, restaurantID, ticketID string) (models.Ticket, error) {
			return models.Ticket{}, store.ErrTicketNotFound
		},
	}
	h := NewHandler(st, Options{})

	req := httptest.NewRequest(http.MethodGet, "/api/tickets/"+testTicketID+"?restaurant_id="+testRestaurantID, nil)
	resp := httptest.NewRecorder()

	h.Routes().ServeHTTP(resp, req)

	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected status 404, got %d", resp.Code)
	}
}
