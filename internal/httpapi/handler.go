package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"dinequeue/waitlist-service/internal/models"
	"dinequeue/waitlist-service/internal/queue"
	"dinequeue/waitlist-service/internal/store"

	"github.com/google/uuid"
)

// VisitRecorder is the follow-up hook Seat fires for tickets linked to a
// customer record. Failures are logged and surfaced as a warning; they never
// undo the seating.
type VisitRecorder interface {
	RecordSeatedVisit(ctx context.Context, customerID, restaurantID string, seatedAt time.Time) error
}

// EstimateCache fronts the wait-time aggregation. Nil is a valid cache.
type EstimateCache interface {
	Get(ctx context.Context, restaurantID string, strict bool) (map[queue.Band]queue.Estimate, bool)
	Set(ctx context.Context, restaurantID string, strict bool, estimates map[queue.Band]queue.Estimate)
	Invalidate(ctx context.Context, restaurantID string)
}

type Handler struct {
	store      store.TicketStore
	visits     VisitRecorder
	cache      EstimateCache
	lookback   time.Duration
	minSamples int
	location   *time.Location
}

type Options struct {
	Visits     VisitRecorder
	Cache      EstimateCache
	Lookback   time.Duration
	MinSamples int
	Location   *time.Location
}

func NewHandler(store store.TicketStore, options Options) *Handler {
	lookback := options.Lookback
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}
	minSamples := options.MinSamples
	if minSamples <= 0 {
		minSamples = queue.DefaultMinSample
	}
	location := options.Location
	if location == nil {
		location = time.UTC
	}
	return &Handler{
		store:      store,
		visits:     options.Visits,
		cache:      options.Cache,
		lookback:   lookback,
		minSamples: minSamples,
		location:   location,
	}
}

func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", h.handleHealth)
	mux.HandleFunc("/api/tickets", h.handleTickets)
	mux.HandleFunc("/api/tickets/", h.handleTicketSubtree)
	mux.HandleFunc("/api/queue/info", h.handleQueueInfo)
	mux.HandleFunc("/api/queue/estimates", h.handleEstimates)
	mux.HandleFunc("/api/queue/board", h.handleBoard)
	mux.HandleFunc("/api/queue/actions/clear", h.handleClearQueue)
	mux.HandleFunc("/api/events", h.handleEvents)
	return mux
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.WriteHeader(http.StatusOK)
}

type createTicketRequest struct {
	RequestID    string `json:"request_id"`
	RestaurantID string `json:"restaurant_id"`
	CustomerID   string `json:"customer_id"`
	CustomerName string `json:"customer_name"`
	Phone        string `json:"phone"`
	PartySize    int    `json:"party_size"`
	Priority     string `json:"priority"`
	Notes        string `json:"notes"`
}

func (h *Handler) handleTickets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req createTicketRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}

	req.RequestID = strings.TrimSpace(req.RequestID)
	req.RestaurantID = strings.TrimSpace(req.RestaurantID)
	req.CustomerID = strings.TrimSpace(req.CustomerID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Priority = strings.TrimSpace(req.Priority)

	if req.RequestID == "" || req.RestaurantID == "" || req.CustomerName == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id, restaurant_id, and customer_name are required")
		return
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.RestaurantID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and restaurant_id must be UUIDs")
		return
	}
	if req.CustomerID != "" && !isValidUUID(req.CustomerID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "customer_id must be a UUID when provided")
		return
	}
	if req.PartySize < 1 {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "party_size must be at least 1")
		return
	}
	if req.Phone != "" && !isValidPhone(req.Phone) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "phone must be 8-16 digits")
		return
	}
	if req.Priority == "" {
		req.Priority = models.PriorityNormal
	}
	if !models.ValidPriority(req.Priority) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "priority must be normal, high, or vip")
		return
	}

	ticket, _, err := h.store.CreateTicket(r.Context(), store.CreateTicketInput{
		RequestID:    req.RequestID,
		RestaurantID: req.RestaurantID,
		CustomerID:   req.CustomerID,
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		PartySize:    req.PartySize,
		Priority:     req.Priority,
		Notes:        req.Notes,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketSubtree(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/tickets/")
	parts := strings.Split(strings.Trim(path, "/"), "/")

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		h.handleGetTicket(w, r, parts[0])
	case len(parts) == 2 && parts[1] == "events" && r.Method == http.MethodGet:
		h.handleTicketEvents(w, r, parts[0])
	case len(parts) == 3 && parts[1] == "actions" && r.Method == http.MethodPost:
		h.handleTicketAction(w, r, parts[0], parts[2])
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (h *Handler) handleGetTicket(w http.ResponseWriter, r *http.Request, ticketID string) {
	restaurantID := strings.TrimSpace(r.URL.Query().Get("restaurant_id"))
	if restaurantID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "restaurant_id is required")
		return
	}
	if !isValidUUID(restaurantID) || !isValidUUID(ticketID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "restaurant_id and ticket_id must be UUIDs")
		return
	}

	ticket, err := h.store.GetTicket(r.Context(), restaurantID, ticketID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, ticket)
}

func (h *Handler) handleTicketEvents(w http.ResponseWriter, r *http.Request, ticketID string) {
	restaurantID := strings.TrimSpace(r.URL.Query().Get("restaurant_id"))
	if restaurantID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "restaurant_id is required")
		return
	}
	if !isValidUUID(restaurantID) || !isValidUUID(ticketID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "restaurant_id and ticket_id must be UUIDs")
		return
	}

	events, err := h.store.ListTicketEvents(r.Context(), restaurantID, ticketID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

type ticketActionRequest struct {
	RequestID    string `json:"request_id"`
	RestaurantID string `json:"restaurant_id"`
}

func (h *Handler) handleTicketAction(w http.ResponseWriter, r *http.Request, ticketID, action string) {
	if !isValidUUID(ticketID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID")
		return
	}

	var req ticketActionRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.RestaurantID = strings.TrimSpace(req.RestaurantID)
	if req.RequestID == "" || req.RestaurantID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and restaurant_id are required")
		return
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.RestaurantID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and restaurant_id must be UUIDs")
		return
	}

	input := store.TicketActionInput{
		RequestID:    req.RequestID,
		RestaurantID: req.RestaurantID,
		TicketID:     ticketID,
		OccurredAt:   time.Now().UTC(),
	}

	var ticket models.Ticket
	var changed bool
	var err error
	switch action {
	case "call":
		ticket, changed, err = h.store.CallTicket(r.Context(), input)
	case "seat":
		ticket, changed, err = h.store.SeatTicket(r.Context(), input)
	case "cancel":
		ticket, changed, err = h.store.CancelTicket(r.Context(), input)
	case "no-show":
		ticket, changed, err = h.store.NoShowTicket(r.Context(), input)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	if action == "seat" && changed {
		h.afterSeat(r.Context(), w, ticket)
	}

	writeJSON(w, http.StatusOK, ticket)
}

// afterSeat runs Seat's dependent side effects: invalidate the estimate
// cache and hand the visit-counter update to the CRM worker. Only a changed
// transition triggers them, so replays can never double-count a visit.
func (h *Handler) afterSeat(ctx context.Context, w http.ResponseWriter, ticket models.Ticket) {
	if h.cache != nil {
		h.cache.Invalidate(ctx, ticket.RestaurantID)
	}
	if h.visits == nil || ticket.CustomerID == nil {
		return
	}
	seatedAt := time.Now().UTC()
	if ticket.SeatedAt != nil {
		seatedAt = *ticket.SeatedAt
	}
	if err := h.visits.RecordSeatedVisit(ctx, *ticket.CustomerID, ticket.RestaurantID, seatedAt); err != nil {
		log.Printf("visit record enqueue failed ticket=%s customer=%s: %v", ticket.TicketID, *ticket.CustomerID, err)
		w.Header().Set("Warning", `199 - "visit counter update deferred"`)
	}
}

type clearQueueRequest struct {
	RequestID    string `json:"request_id"`
	RestaurantID string `json:"restaurant_id"`
}

func (h *Handler) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var req clearQueueRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, "", http.StatusBadRequest, "invalid_json", "invalid JSON payload")
		return
	}
	req.RequestID = strings.TrimSpace(req.RequestID)
	req.RestaurantID = strings.TrimSpace(req.RestaurantID)
	if req.RequestID == "" || req.RestaurantID == "" {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and restaurant_id are required")
		return
	}
	if !isValidUUID(req.RequestID) || !isValidUUID(req.RestaurantID) {
		writeError(w, req.RequestID, http.StatusBadRequest, "invalid_request", "request_id and restaurant_id must be UUIDs")
		return
	}

	cleared, err := h.store.ClearQueue(r.Context(), store.ClearQueueInput{
		RequestID:    req.RequestID,
		RestaurantID: req.RestaurantID,
		OccurredAt:   time.Now().UTC(),
	})
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, req.RequestID, status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"restaurant_id": req.RestaurantID,
		"cleared":       cleared,
	})
}

type queueInfoResponse struct {
	TotalGroups      int            `json:"total_groups"`
	TotalPeople      int            `json:"total_people"`
	Position         *int           `json:"position"`
	Ticket           *models.Ticket `json:"ticket,omitempty"`
	ToleranceMinutes int            `json:"tolerance_minutes"`
	MaxPartySize     int            `json:"max_party_size"`
	QueueCapacity    int            `json:"queue_capacity"`
}

func (h *Handler) handleQueueInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	restaurantID := strings.TrimSpace(r.URL.Query().Get("restaurant_id"))
	ticketID := strings.TrimSpace(r.URL.Query().Get("ticket_id"))
	if restaurantID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "restaurant_id is required")
		return
	}
	if !isValidUUID(restaurantID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "restaurant_id must be a UUID")
		return
	}
	if ticketID != "" && !isValidUUID(ticketID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "ticket_id must be a UUID")
		return
	}

	since := time.Now().UTC().Add(-h.lookback)
	tickets, err := h.store.ListWaiting(r.Context(), restaurantID, since)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}
	settings, err := h.store.GetSettings(r.Context(), restaurantID)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	response := queueInfoResponse{
		TotalGroups:      len(tickets),
		ToleranceMinutes: settings.ToleranceMinutes,
		MaxPartySize:     settings.MaxPartySize,
		QueueCapacity:    settings.QueueCapacity,
	}
	for _, ticket := range tickets {
		response.TotalPeople += ticket.PartySize
	}

	// A ticket_id that does not resolve within the window is a normal
	// outcome: position stays null, no error.
	if ticketID != "" {
		if index, ok := queue.Index(tickets, ticketID); ok {
			response.Position = &index
			for i := range tickets {
				if tickets[i].TicketID == ticketID {
					response.Ticket = &tickets[i]
					break
				}
			}
		}
	}

	writeJSON(w, http.StatusOK, response)
}

type estimatesResponse struct {
	RestaurantID string                        `json:"restaurant_id"`
	Strict       bool                          `json:"strict"`
	Estimates    map[queue.Band]queue.Estimate `json:"estimates"`
}

func (h *Handler) handleEstimates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	restaurantID := strings.TrimSpace(r.URL.Query().Get("restaurant_id"))
	if restaurantID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "restaurant_id is required")
		return
	}
	if !isValidUUID(restaurantID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "restaurant_id must be a UUID")
		return
	}
	strict := false
	if raw := strings.TrimSpace(r.URL.Query().Get("strict")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "strict must be a boolean")
			return
		}
		strict = parsed
	}

	estimates, err := h.bandEstimates(r.Context(), restaurantID, strict)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, estimatesResponse{
		RestaurantID: restaurantID,
		Strict:       strict,
		Estimates:    estimates,
	})
}

func (h *Handler) bandEstimates(ctx context.Context, restaurantID string, strict bool) (map[queue.Band]queue.Estimate, error) {
	if h.cache != nil {
		if cached, ok := h.cache.Get(ctx, restaurantID, strict); ok {
			return cached, nil
		}
	}

	now := time.Now().UTC()
	local := now.In(h.location)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, h.location)
	from := dayStart.AddDate(0, 0, -7)
	to := dayStart.AddDate(0, 0, 1)

	samples, err := h.store.ListWaitSamples(ctx, restaurantID, from, to)
	if err != nil {
		return nil, err
	}

	minSamples := 0
	if strict {
		minSamples = h.minSamples
	}
	estimates := queue.Estimates(samples, now, h.location, minSamples)
	if h.cache != nil {
		h.cache.Set(ctx, restaurantID, strict, estimates)
	}
	return estimates, nil
}

type boardEntry struct {
	Ticket   models.Ticket   `json:"ticket"`
	Band     queue.Band      `json:"band"`
	BandRank int             `json:"band_rank"`
	Estimate *queue.Estimate `json:"estimate,omitempty"`
}

func (h *Handler) handleBoard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	restaurantID := strings.TrimSpace(r.URL.Query().Get("restaurant_id"))
	if restaurantID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "restaurant_id is required")
		return
	}
	if !isValidUUID(restaurantID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "restaurant_id must be a UUID")
		return
	}

	since := time.Now().UTC().Add(-h.lookback)
	tickets, err := h.store.ListWaiting(r.Context(), restaurantID, since)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	estimates, err := h.bandEstimates(r.Context(), restaurantID, false)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	ranks := queue.BandRanks(tickets)
	entries := make([]boardEntry, 0, len(tickets))
	for _, ticket := range queue.SortWaiting(tickets) {
		band, ok := queue.ClassifyPartySize(ticket.PartySize)
		if !ok {
			continue
		}
		entry := boardEntry{
			Ticket:   ticket,
			Band:     band,
			BandRank: ranks[band][ticket.TicketID],
		}
		if estimate, ok := estimates[band]; ok {
			entry.Estimate = &estimate
		}
		entries = append(entries, entry)
	}

	writeJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	restaurantID := strings.TrimSpace(r.URL.Query().Get("restaurant_id"))
	if restaurantID == "" {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "restaurant_id is required")
		return
	}
	if !isValidUUID(restaurantID) {
		writeError(w, "", http.StatusBadRequest, "invalid_request", "restaurant_id must be a UUID")
		return
	}

	afterRaw := strings.TrimSpace(r.URL.Query().Get("after"))
	var after time.Time
	if afterRaw != "" {
		parsed, err := time.Parse(time.RFC3339, afterRaw)
		if err != nil {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "after must be RFC3339 timestamp")
			return
		}
		after = parsed
	}

	limit := 100
	if limitRaw := strings.TrimSpace(r.URL.Query().Get("limit")); limitRaw != "" {
		parsed, err := strconv.Atoi(limitRaw)
		if err != nil || parsed <= 0 {
			writeError(w, "", http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	events, err := h.store.ListOutboxEvents(r.Context(), restaurantID, after, limit)
	if err != nil {
		status, code, msg := mapError(err)
		writeError(w, "", status, code, msg)
		return
	}

	writeJSON(w, http.StatusOK, events)
}

func isValidUUID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func isValidPhone(value string) bool {
	if len(value) < 8 || len(value) > 16 {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func mapError(err error) (int, string, string) {
	switch {
	case errors.Is(err, store.ErrTicketNotFound):
		return http.StatusNotFound, "ticket_not_found", "ticket not found"
	case errors.Is(err, store.ErrRestaurantNotFound):
		return http.StatusNotFound, "restaurant_not_found", "restaurant not found"
	case errors.Is(err, store.ErrCustomerNotFound):
		return http.StatusNotFound, "customer_not_found", "customer not found"
	case errors.Is(err, store.ErrInvalidState):
		return http.StatusConflict, "invalid_state", "ticket state does not allow this action"
	case errors.Is(err, store.ErrPartySizeTooLarge):
		return http.StatusUnprocessableEntity, "party_too_large", "party size exceeds restaurant maximum"
	case errors.Is(err, store.ErrInvalidPartySize):
		return http.StatusBadRequest, "invalid_request", "party_size must be at least 1"
	default:
		return http.StatusInternalServerError, "internal_error", "internal server error"
	}
}

type errorResponse struct {
	RequestID string        `json:"request_id"`
	Error     responseError `json:"error"`
}

type responseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, requestID string, status int, code, message string) {
	writeJSON(w, status, errorResponse{
		RequestID: requestID,
		Error: responseError{
			Code:    code,
			Message: message,
		},
	})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}
