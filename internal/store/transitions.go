package store

import "dinequeue/waitlist-service/internal/models"

// transitionMap lists, per action, the statuses the ticket may be in when the
// action is applied. Call is legal on an already-called ticket (re-announce).
// The terminal statuses appear in no entry: once seated, canceled, or no_show
// a ticket accepts nothing further.
var transitionMap = map[string][]string{
	"call":    {models.StatusWaiting, models.StatusCalled},
	"seat":    {models.StatusCalled},
	"cancel":  {models.StatusWaiting, models.StatusCalled},
	"no_show": {models.StatusWaiting, models.StatusCalled},
	"clear":   {models.StatusWaiting},
}

func ValidTransition(action, fromStatus string) bool {
	allowed, ok := transitionMap[action]
	if !ok {
		return false
	}
	for _, status := range allowed {
		if status == fromStatus {
			return true
		}
	}
	return false
}

// AllowedFrom returns the statuses an action accepts, in declaration order.
func AllowedFrom(action string) []string {
	return transitionMap[action]
}

// TargetStatus maps an action to the status it produces.
func TargetStatus(action string) string {
	switch action {
	case "call":
		return models.StatusCalled
	case "seat":
		return models.StatusSeated
	case "cancel", "clear":
		return models.StatusCanceled
	case "no_show":
		return models.StatusNoShow
	}
	return ""
}
