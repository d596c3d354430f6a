// Package pubsub wraps the Redis client used to fan workflow events out to
// other processes.
package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/civica-api/pkg/config"
)

// NewRedis returns a configured and reachable Redis client.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	return client, nil
}

type publishClient interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher JSON-encodes messages onto one channel.
type Publisher struct {
	client  publishClient
	channel string
}

// NewPublisher binds a client to a channel.
func NewPublisher(client publishClient, channel string) *Publisher {
	return &Publisher{client: client, channel: channel}
}

// Channel returns the bound channel name.
func (p *Publisher) Channel() string {
	return p.channel
}

// Publish encodes v and returns the number of subscribers that received it.
func (p *Publisher) Publish(ctx context.Context, v interface{}) (int64, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return 0, fmt.Errorf("encode message: %w", err)
	}
	receivers, err := p.client.Publish(ctx, p.channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("publish to %s: %w", p.channel, err)
	}
	return receivers, nil
}

// Subscribe delivers raw payloads from channel to fn until ctx is done.
func Subscribe(ctx context.Context, client *redis.Client, channel string, fn func([]byte) error) error {
	sub := client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe to %s: %w", channel, err)
	}
	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			if err := fn([]byte(msg.Payload)); err != nil {
				return err
			}
		}
	}
}
