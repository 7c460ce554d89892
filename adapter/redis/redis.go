// Package redis publishes conversion completion events to a Redis pub/sub
// channel.
//
// The channel may contain a {source} placeholder, giving each bench or
// vehicle its own channel. With LatestTTL set, the event is also stored
// under a per-source key in the same transaction, so consumers that were
// not subscribed can read the last completion.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/canlog/adapter"
)

const (
	// DefaultChannel is the default pub/sub channel name.
	DefaultChannel = "canlog:conversion_completed"
	// DefaultTimeout is the default per-publish timeout.
	DefaultTimeout = 5 * time.Second

	// SourcePlaceholder in a channel name is replaced by the event source.
	SourcePlaceholder = "{source}"
	// latestKeyPrefix prefixes the per-source latest event key.
	latestKeyPrefix = "canlog:latest:"
)

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is redis://[:password@]host:port[/db] (required).
	URL string
	// Channel defaults to DefaultChannel. May contain SourcePlaceholder.
	Channel string
	// LatestTTL, when positive, keeps the event under LatestKey for this long.
	LatestTTL time.Duration
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retries after the first attempt.
	Retries int
	// Backoff is the delay before the first retry (default 500ms).
	Backoff time.Duration
}

// Adapter publishes events via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis pub/sub adapter.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
	}
	if cfg.Retries < 0 {
		return nil, fmt.Errorf("redis: %w, got %d", adapter.ErrNegativeRetries, cfg.Retries)
	}
	if cfg.Channel == "" {
		cfg.Channel = DefaultChannel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// ChannelFor returns the channel an event from source is published on.
func (a *Adapter) ChannelFor(source string) string {
	return strings.ReplaceAll(a.config.Channel, SourcePlaceholder, source)
}

// LatestKey returns the key holding the latest event of source.
func LatestKey(source string) string {
	return latestKeyPrefix + source
}

// Publish sends the event as JSON, retrying transient failures.
func (a *Adapter) Publish(ctx context.Context, event *adapter.ConversionCompletedEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("redis: marshal event: %w", err)
	}
	channel := a.ChannelFor(event.Source)

	return adapter.Retry(ctx, "redis", a.config.Retries, a.config.Backoff, isClosed,
		func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
			defer cancel()
			if a.config.LatestTTL <= 0 {
				return a.client.Publish(ctx, channel, body).Err()
			}
			_, err := a.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
				pipe.Set(ctx, LatestKey(event.Source), body, a.config.LatestTTL)
				pipe.Publish(ctx, channel, body)
				return nil
			})
			return err
		})
}

func isClosed(err error) bool {
	return errors.Is(err, goredis.ErrClosed)
}

// Close releases the connection pool.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
