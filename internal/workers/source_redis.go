package workers

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"veridraw-backend/internal/chain"
	"veridraw-backend/internal/common/logger"
)

// RedisStreamSource consumes chain events relayed onto a redis stream. Each
// stream entry carries one JSON-encoded chain.Event under the "event" field.
type RedisStreamSource struct {
	client       *redis.Client
	stream       string
	group        string
	consumer     string
	blockTimeout time.Duration
	log          zerolog.Logger
}

func NewRedisStreamSource(client *redis.Client, stream, group, consumer string, blockTimeout time.Duration) *RedisStreamSource {
	return &RedisStreamSource{
		client:       client,
		stream:       stream,
		group:        group,
		consumer:     consumer,
		blockTimeout: blockTimeout,
		log:          logger.Component("redis_stream_source"),
	}
}

func (s *RedisStreamSource) Run(ctx context.Context, handle func(context.Context, *chain.Event) error) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return err
	}

	s.log.Info().Str("stream", s.stream).Str("group", s.group).Msg("redis stream source started")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("redis stream source stopping")
			return ctx.Err()
		default:
		}

		entries, err := s.client.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    s.group,
			Consumer: s.consumer,
			Streams:  []string{s.stream, ">"},
			Count:    16,
			Block:    s.blockTimeout,
		}).Result()
		if err != nil {
			if err == redis.Nil || ctx.Err() != nil {
				continue
			}
			s.log.Error().Err(err).Msg("failed to read from stream, backing off")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		for _, stream := range entries {
			for _, msg := range stream.Messages {
				event, ok := s.decode(msg)
				if !ok {
					// Undecodable entries are acked so they do not wedge
					// the consumer group.
					s.client.XAck(ctx, s.stream, s.group, msg.ID)
					continue
				}
				if err := handle(ctx, event); err != nil {
					// Left pending for redelivery via XAUTOCLAIM / restart.
					continue
				}
				s.client.XAck(ctx, s.stream, s.group, msg.ID)
			}
		}
	}
}

func (s *RedisStreamSource) decode(msg redis.XMessage) (*chain.Event, bool) {
	raw, ok := msg.Values["event"].(string)
	if !ok {
		s.log.Warn().Str("msg_id", msg.ID).Msg("stream entry missing event field")
		return nil, false
	}

	event := &chain.Event{}
	if err := json.Unmarshal([]byte(raw), event); err != nil {
		s.log.Warn().Err(err).Str("msg_id", msg.ID).Msg("undecodable stream entry")
		return nil, false
	}
	return event, true
}

func (s *RedisStreamSource) Close() error {
	return nil
}
