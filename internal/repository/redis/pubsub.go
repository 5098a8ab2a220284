package redisrepo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/kirinyoku/tablego/internal/events"
)

// ChangesPubSub broadcasts committed changes to every instance sharing the
// Redis server, so each can drop its own cached views.
type ChangesPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewChangesPubSub(rdb *redis.Client) *ChangesPubSub {
	return &ChangesPubSub{
		rdb:     rdb,
		channel: ChannelChanges(),
	}
}

// Publish implements events.Publisher.
func (p *ChangesPubSub) Publish(ctx context.Context, ev events.Event) error {
	const op = "redisrepo.ChangesPubSub.Publish"

	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := p.rdb.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// Subscribe calls handler for every event received until ctx is done.
// Malformed messages are skipped.
func (p *ChangesPubSub) Subscribe(ctx context.Context, handler func(ctx context.Context, ev events.Event)) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}
			var ev events.Event
			if err := json.Unmarshal([]byte(m.Payload), &ev); err == nil && ev.Type != "" {
				handler(ctx, ev)
			}
		}
	}
}
