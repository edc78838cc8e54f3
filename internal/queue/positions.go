package queue

import (
	"sort"

	"dinequeue/waitlist-service/internal/models"
)

// SortWaiting returns the waiting tickets from the given set in queue order:
// created_at ascending, ticket id as the deterministic tiebreak. The input is
// not modified.
func SortWaiting(tickets []models.Ticket) []models.Ticket {
	waiting := make([]models.Ticket, 0, len(tickets))
	for _, ticket := range tickets {
		if ticket.Status == models.StatusWaiting {
			waiting = append(waiting, ticket)
		}
	}
	sort.SliceStable(waiting, func(i, j int) bool {
		if waiting[i].CreatedAt.Equal(waiting[j].CreatedAt) {
			return waiting[i].TicketID < waiting[j].TicketID
		}
		return waiting[i].CreatedAt.Before(waiting[j].CreatedAt)
	})
	return waiting
}

// BandRanks assigns each waiting ticket its 1-based rank within its own band.
// Ranks are recomputed on every read; they are never stored.
func BandRanks(tickets []models.Ticket) map[Band]map[string]int {
	ranks := make(map[Band]map[string]int)
	counts := make(map[Band]int)
	for _, ticket := range SortWaiting(tickets) {
		band, ok := ClassifyPartySize(ticket.PartySize)
		if !ok {
			continue
		}
		counts[band]++
		if ranks[band] == nil {
			ranks[band] = make(map[string]int)
		}
		ranks[band][ticket.TicketID] = counts[band]
	}
	return ranks
}

// Index returns the restaurant-wide chronological 1-based index of ticketID
// among the waiting tickets. This is the coarser position used by the public
// queue-info surface; it is distinct from the per-band rank.
func Index(tickets []models.Ticket, ticketID string) (int, bool) {
	for i, ticket := range SortWaiting(tickets) {
		if ticket.TicketID == ticketID {
			return i + 1, true
		}
	}
	return 0, false
}
