// Package notify delivers rehearsal events to band-scoped subscribers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/example/rehearsal-scheduler/internal/application"
)

// DefaultChannelPrefix scopes channels per band, e.g. "band:<id>".
const DefaultChannelPrefix = "band:"

const defaultPublishTimeout = 2 * time.Second

// RedisPublisher publishes JSON encoded events on a Redis channel per band.
type RedisPublisher struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

// NewRedisPublisher wraps client. An empty prefix uses DefaultChannelPrefix.
func NewRedisPublisher(client redis.UniversalClient, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	return &RedisPublisher{client: client, prefix: prefix, timeout: defaultPublishTimeout}
}

// Channel returns the channel events for bandID are published on.
func (p *RedisPublisher) Channel(bandID string) string {
	return p.prefix + bandID
}

// Publish implements application.Notifier.
func (p *RedisPublisher) Publish(ctx context.Context, event application.Event) error {
	if p == nil || p.client == nil {
		return errors.New("notify: redis client not configured")
	}
	if event.BandID == "" {
		return fmt.Errorf("notify: event %s has no band", event.Type)
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("notify: encode %s: %w", event.Type, err)
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.Channel(event.BandID), payload).Err(); err != nil {
		return fmt.Errorf("notify: publish %s: %w", event.Type, err)
	}
	return nil
}

// Ping checks the Redis connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	if p == nil || p.client == nil {
		return errors.New("notify: redis client not configured")
	}
	return p.client.Ping(ctx).Err()
}

// LogPublisher writes events to a logger. It stands in when Redis is not configured.
type LogPublisher struct {
	logger *zerolog.Logger
}

// NewLogPublisher returns a publisher logging at debug level. A nil logger discards events.
func NewLogPublisher(logger *zerolog.Logger) *LogPublisher {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &LogPublisher{logger: logger}
}

// Publish implements application.Notifier.
func (p *LogPublisher) Publish(_ context.Context, event application.Event) error {
	p.logger.Debug().
		Str("event_type", string(event.Type)).
		Str("band_id", event.BandID).
		Str("rehearsal_id", event.RehearsalID).
		Str("user_id", event.UserID).
		Time("occurred_at", event.OccurredAt).
		Msg("rehearsal event")
	return nil
}
