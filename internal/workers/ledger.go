package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"veridraw-backend/internal/chain"
)

const (
	keyPrefixSeenEvent = "chain:seen:"
	keyChainEventLog   = "chain:events:log"
)

// EventLedger records which chain events have been applied and keeps the raw
// event log for replay and audit.
type EventLedger interface {
	Seen(ctx context.Context, ref string) (bool, error)
	// MarkApplied is called only after an event was dispatched to a terminal
	// outcome; a crash before the mark replays the event.
	MarkApplied(ctx context.Context, event *chain.Event) error
}

type redisEventLedger struct {
	client *redis.Client
}

func NewRedisEventLedger(client *redis.Client) EventLedger {
	return &redisEventLedger{client: client}
}

func (l *redisEventLedger) Seen(ctx context.Context, ref string) (bool, error) {
	n, err := l.client.Exists(ctx, keyPrefixSeenEvent+ref).Result()
	return n > 0, err
}

func (l *redisEventLedger) MarkApplied(ctx context.Context, event *chain.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal chain event: %w", err)
	}

	pipe := l.client.Pipeline()
	pipe.Set(ctx, keyPrefixSeenEvent+event.Ref(), event.TxHash, 0)
	pipe.RPush(ctx, keyChainEventLog, data)
	_, err = pipe.Exec(ctx)
	return err
}

// memoryEventLedger backs tests.
type memoryEventLedger struct {
	seen map[string]bool
}

func NewMemoryEventLedger() EventLedger {
	return &memoryEventLedger{seen: make(map[string]bool)}
}

func (l *memoryEventLedger) Seen(ctx context.Context, ref string) (bool, error) {
	return l.seen[ref], nil
}

func (l *memoryEventLedger) MarkApplied(ctx context.Context, event *chain.Event) error {
	l.seen[event.Ref()] = true
	return nil
}
