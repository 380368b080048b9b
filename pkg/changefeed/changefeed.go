// Package changefeed announces collection changes over Redis Pub/Sub.
package changefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Collection names carried by notices.
const (
	CollectionLeads      = "leads"
	CollectionStaff      = "staff"
	CollectionSystemLogs = "system_logs"
)

// Notice says a collection changed; subscribers reload it in full.
type Notice struct {
	Collection string    `json:"collection"`
	At         time.Time `json:"at"`
}

// Feed publishes and subscribes to one channel.
type Feed struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// New returns a Feed on channel.
func New(client *redis.Client, channel string, logger *zap.Logger) *Feed {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = "leaddesk:changes"
	}
	return &Feed{client: client, channel: channel, logger: logger}
}

// Publish announces that collection changed.
func (f *Feed) Publish(ctx context.Context, collection string) error {
	payload, err := json.Marshal(Notice{Collection: collection, At: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode notice: %w", err)
	}
	if err := f.client.Publish(ctx, f.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish %s notice: %w", collection, err)
	}
	return nil
}

// Subscribe streams notices until ctx ends. The returned channel is closed on exit.
func (f *Feed) Subscribe(ctx context.Context) (<-chan Notice, error) {
	ps := f.client.Subscribe(ctx, f.channel)
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", f.channel, err)
	}

	out := make(chan Notice, 16)
	go func() {
		defer close(out)
		defer ps.Close() //nolint:errcheck
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var notice Notice
				if err := json.Unmarshal([]byte(msg.Payload), &notice); err != nil {
					f.logger.Warn("discarding malformed change notice", zap.String("channel", f.channel), zap.Error(err))
					continue
				}
				select {
				case out <- notice:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}
