package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"counselgo/internal/models"
	"counselgo/internal/redis"
)

const sessionListTTL = 5 * time.Minute

// sessionListCache keeps the sidebar session list per student in redis.
// Every write path for a student invalidates their entry; a cache failure
// only costs a database round trip.
type sessionListCache struct {
	client *redis.Client
}

func newSessionListCache(client *redis.Client) *sessionListCache {
	return &sessionListCache{client: client}
}

func sessionListKey(email string) string {
	return fmt.Sprintf("practice:sessions:%s", email)
}

func (c *sessionListCache) get(ctx context.Context, email string) ([]models.SessionSummary, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, sessionListKey(email))
	if err != nil {
		if !errors.Is(err, redis.ErrCacheMiss) {
			log.Printf("session list cache get failed: %v", err)
		}
		return nil, false
	}
	var summaries []models.SessionSummary
	if err := json.Unmarshal([]byte(raw), &summaries); err != nil {
		log.Printf("session list cache decode failed: %v", err)
		return nil, false
	}
	return summaries, true
}

func (c *sessionListCache) put(ctx context.Context, email string, summaries []models.SessionSummary) {
	if c == nil || c.client == nil {
		return
	}
	data, err := json.Marshal(summaries)
	if err != nil {
		log.Printf("session list cache encode failed: %v", err)
		return
	}
	if err := c.client.Set(ctx, sessionListKey(email), data, sessionListTTL); err != nil {
		log.Printf("session list cache set failed: %v", err)
	}
}

func (c *sessionListCache) invalidate(ctx context.Context, email string) {
	if c == nil || c.client == nil || email == "" {
		return
	}
	if err := c.client.Del(ctx, sessionListKey(email)); err != nil {
		log.Printf("session list cache invalidate failed: %v", err)
	}
}
