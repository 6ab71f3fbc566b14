package changefeed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "docs:"

// Redis is a Feed over Redis pub/sub. Every server process sharing one
// database publishes its writes here and pattern-subscribes to all of them.
type Redis struct {
	rdb    *redis.Client
	logger *slog.Logger
}

var _ Feed = (*Redis)(nil)

func NewRedis(rdb *redis.Client, logger *slog.Logger) *Redis {
	return &Redis{rdb: rdb, logger: logger}
}

// Connect parses a redis:// URL and verifies the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("changefeed: parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("changefeed: pinging redis: %w", err)
	}
	return rdb, nil
}

func (r *Redis) Publish(ctx context.Context, collection string) error {
	if err := r.rdb.Publish(ctx, channelPrefix+collection, collection).Err(); err != nil {
		return fmt.Errorf("changefeed: publishing %s: %w", collection, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context, fn func(collection string)) error {
	sub := r.rdb.PSubscribe(ctx, channelPrefix+"*")

	// Wait for the subscription confirmation so a Publish issued right after
	// Subscribe returns is not missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("changefeed: subscribing: %w", err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				collection := msg.Payload
				if collection == "" {
					collection = strings.TrimPrefix(msg.Channel, channelPrefix)
				}
				deliver(r.logger, fn, collection)
			}
		}
	}()

	return nil
}
