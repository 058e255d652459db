package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"coteri/internal/domain/verification"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// FeedPattern matches every venue verification channel.
const FeedPattern = "venue:*:verifications"

func FeedChannel(venueID uuid.UUID) string {
	return fmt.Sprintf("venue:%s:verifications", venueID.String())
}

type Publisher struct {
	client *redis.Client
}

func NewPublisher(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func (p *Publisher) Publish(ctx context.Context, channel string, payload []byte) error {
	return p.client.Publish(ctx, channel, payload).Err()
}

// PublishVerification announces an attempt on the venue feed.
func (p *Publisher) PublishVerification(ctx context.Context, venueID uuid.UUID, item verification.FeedItem) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return p.Publish(ctx, FeedChannel(venueID), payload)
}
