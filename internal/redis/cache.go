package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"coteri/internal/domain/verification"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Cache key patterns:
// - verify_result:/verify:{staff_user_id} - 60s TTL, removed on first read

const (
	resultScope      = "/verify"
	DefaultResultTTL = 60 * time.Second
)

// ResultCache holds the latest verification result per staff member so the
// scanner page can show it once after a redirect.
type ResultCache struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewResultCache(client *goredis.Client, ttl time.Duration) *ResultCache {
	if ttl <= 0 {
		ttl = DefaultResultTTL
	}
	return &ResultCache{client: client, ttl: ttl}
}

func resultKey(staffUserID uuid.UUID) string {
	return fmt.Sprintf("verify_result:%s:%s", resultScope, staffUserID.String())
}

// Put overwrites any previous result for the staff member.
func (c *ResultCache) Put(ctx context.Context, staffUserID uuid.UUID, result verification.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, resultKey(staffUserID), data, c.ttl).Err()
}

// Take returns and deletes the stored result. A miss returns nil, nil.
func (c *ResultCache) Take(ctx context.Context, staffUserID uuid.UUID) (*verification.Result, error) {
	data, err := c.client.GetDel(ctx, resultKey(staffUserID)).Result()
	if err == goredis.Nil {
		return nil, nil // Cache miss
	}
	if err != nil {
		return nil, err
	}

	var result verification.Result
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, err
	}
	return &result, nil
}
