package redis

import (
	"context"
	"encoding/json"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/example/stay-scheduler/internal/domain/notification"
)

const DefaultChannel = "reservation-notifications"

// Publisher is a notification sink that publishes each notification as JSON
// on a pub/sub channel for live subscribers.
type Publisher struct {
	client  goredis.UniversalClient
	channel string
}

func NewPublisher(client goredis.UniversalClient, channel string) *Publisher {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Publisher{client: client, channel: channel}
}

func (p *Publisher) Deliver(ctx context.Context, n notification.Notification) error {
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return nil
}

// Open parses a redis:// URL and checks the server answers.
func Open(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse REDIS_URL: %w", err)
	}
	c := goredis.NewClient(opts)
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return c, nil
}
