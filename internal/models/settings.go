package models

// Settings are the per-restaurant operational knobs consumed by the queue.
// They are owned by the back-office settings screens; this service only
// reads them.
type Settings struct {
	RestaurantID     string `json:"restaurant_id"`
	MaxPartySize     int    `json:"max_party_size"`
	QueueCapacity    int    `json:"queue_capacity"`
	ToleranceMinutes int    `json:"tolerance_minutes"`
}
