package workers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"veridraw-backend/internal/chain"
	"veridraw-backend/internal/common/logger"
)

// KafkaSource consumes chain events from a kafka topic. Message values are
// JSON-encoded chain.Event records; offsets are committed only after the
// handler reports a terminal outcome.
type KafkaSource struct {
	reader *kafka.Reader
	log    zerolog.Logger
}

func NewKafkaSource(brokers []string, topic, groupID string) *KafkaSource {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // synchronous commits
	})
	return &KafkaSource{
		reader: reader,
		log:    logger.Component("kafka_source"),
	}
}

func (s *KafkaSource) Run(ctx context.Context, handle func(context.Context, *chain.Event) error) error {
	s.log.Info().Str("topic", s.reader.Config().Topic).Msg("kafka source started")

	for {
		msg, err := s.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.log.Info().Msg("kafka source stopping")
				return ctx.Err()
			}
			s.log.Error().Err(err).Msg("failed to fetch kafka message, backing off")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
			continue
		}

		event := &chain.Event{}
		if err := json.Unmarshal(msg.Value, event); err != nil {
			s.log.Warn().
				Err(err).
				Int64("offset", msg.Offset).
				Msg("undecodable kafka message, committing past it")
			if err := s.reader.CommitMessages(ctx, msg); err != nil {
				return err
			}
			continue
		}

		if err := handle(ctx, event); err != nil {
			// Offset stays uncommitted; the message is redelivered after
			// restart or rebalance.
			s.log.Error().Err(err).Str("ref", event.Ref()).Msg("handler failed, not committing offset")
			continue
		}

		if err := s.reader.CommitMessages(ctx, msg); err != nil {
			return err
		}
	}
}

func (s *KafkaSource) Close() error {
	return s.reader.Close()
}
