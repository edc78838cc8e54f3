package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"dinequeue/waitlist-service/internal/queue"

	"github.com/redis/go-redis/v9"
)

const defaultTTL = 30 * time.Second

// EstimateCache keeps recent per-band wait estimates in Redis so the board
// and estimate endpoints do not re-aggregate a week of seatings on every
// poll. Entries expire on their own; Seat invalidates eagerly so fresh
// samples show up right away. All failures degrade to a cache miss.
type EstimateCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewEstimateCache(client *redis.Client, ttl time.Duration) *EstimateCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &EstimateCache{client: client, ttl: ttl}
}

func estimateKey(restaurantID string, strict bool) string {
	return fmt.Sprintf("estimates:%s:strict=%t", restaurantID, strict)
}

func (c *EstimateCache) Get(ctx context.Context, restaurantID string, strict bool) (map[queue.Band]queue.Estimate, bool) {
	raw, err := c.client.Get(ctx, estimateKey(restaurantID, strict)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("estimate cache get restaurant=%s: %v", restaurantID, err)
		}
		return nil, false
	}

	var estimates map[queue.Band]queue.Estimate
	if err := json.Unmarshal(raw, &estimates); err != nil {
		log.Printf("estimate cache decode restaurant=%s: %v", restaurantID, err)
		return nil, false
	}
	return estimates, true
}

func (c *EstimateCache) Set(ctx context.Context, restaurantID string, strict bool, estimates map[queue.Band]queue.Estimate) {
	raw, err := json.Marshal(estimates)
	if err != nil {
		log.Printf("estimate cache encode restaurant=%s: %v", restaurantID, err)
		return
	}
	if err := c.client.Set(ctx, estimateKey(restaurantID, strict), raw, c.ttl).Err(); err != nil {
		log.Printf("estimate cache set restaurant=%s: %v", restaurantID, err)
	}
}

func (c *EstimateCache) Invalidate(ctx context.Context, restaurantID string) {
	keys := []string{
		estimateKey(restaurantID, false),
		estimateKey(restaurantID, true),
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("estimate cache invalidate restaurant=%s: %v", restaurantID, err)
	}
}
