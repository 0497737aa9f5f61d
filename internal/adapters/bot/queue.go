package bot

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/liangshengmoran/Nine-chat-backend/internal/core"
	"github.com/liangshengmoran/Nine-chat-backend/internal/domain"
	"github.com/valkey-io/valkey-go"
)

const DefaultQueueCap = 100

// Queue keeps the latest updates per room in a capped Valkey list so bots
// can long-poll them.
type Queue struct {
	client valkey.Client
	prefix string
	cap    int64
}

func NewQueue(client valkey.Client, prefix string, capacity int) *Queue {
	if capacity <= 0 {
		capacity = DefaultQueueCap
	}
	if prefix == "" {
		prefix = "nine:bot:updates"
	}
	return &Queue{client: client, prefix: prefix, cap: int64(capacity)}
}

func (q *Queue) key(id domain.RoomID) string {
	return fmt.Sprintf("%s:%d", q.prefix, id)
}

func (q *Queue) Publish(ctx context.Context, u core.BotUpdate) error {
	body, err := json.Marshal(u)
	if err != nil {
		return err
	}
	k := q.key(u.RoomID)
	for _, res := range q.client.DoMulti(ctx,
		q.client.B().Rpush().Key(k).Element(string(body)).Build(),
		q.client.B().Ltrim().Key(k).Start(-q.cap).Stop(-1).Build(),
	) {
		if err := res.Error(); err != nil {
			return fmt.Errorf("bot queue %s: %w", k, err)
		}
	}
	return nil
}

// Poll returns the buffered updates for a room, oldest first.
func (q *Queue) Poll(ctx context.Context, id domain.RoomID) ([]json.RawMessage, error) {
	items, err := q.client.Do(ctx, q.client.B().Lrange().Key(q.key(id)).Start(0).Stop(-1).Build()).AsStrSlice()
	if err != nil {
		return nil, err
	}
	out := make([]json.RawMessage, 0, len(items))
	for _, it := range items {
		out = append(out, json.RawMessage(it))
	}
	return out, nil
}
