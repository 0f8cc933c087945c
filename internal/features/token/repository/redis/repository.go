package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/features/token/models"
	"veridraw-backend/internal/features/token/repository"
)

const (
	keyPrefixAccount = "token:account:"
	keyPrefixSeen    = "token:reward:seen:"
	keyPrefixEvents  = "token:events:"

	txAttempts = 3
)

type redisRepository struct {
	client *redis.Client
}

func NewTokenRepository(client *redis.Client) repository.TokenRepository {
	return &redisRepository{client: client}
}

func makeAccountKey(userID string) string {
	return keyPrefixAccount + userID
}

func makeSeenKey(reason models.RewardReason, sourceRef string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefixSeen, reason, sourceRef)
}

func makeEventsKey(userID string) string {
	return keyPrefixEvents + userID
}

func (r *redisRepository) Credit(ctx context.Context, event *models.RewardEvent) error {
	accountKey := makeAccountKey(event.UserID)
	seenKey := makeSeenKey(event.Reason, event.SourceRef)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal reward event: %w", err)
	}

	txFn := func(tx *redis.Tx) error {
		seen, err := tx.Exists(ctx, seenKey).Result()
		if err != nil {
			return err
		}
		if seen > 0 {
			return repository.ErrDuplicateEvent
		}

		account, err := getAccount(ctx, tx, event.UserID)
		if err != nil {
			return err
		}
		account.Balance += event.Amount
		account.TotalEarned += event.Amount
		account.UpdatedAt = event.CreatedAt

		accountData, err := json.Marshal(account)
		if err != nil {
			return fmt.Errorf("failed to marshal token account: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, seenKey, event.ID, 0)
			pipe.Set(ctx, accountKey, accountData, 0)
			pipe.RPush(ctx, makeEventsKey(event.UserID), data)
			return nil
		})
		return err
	}

	return runWatch(ctx, r.client, txFn, accountKey, seenKey)
}

func (r *redisRepository) Debit(ctx context.Context, userID string, amount int64, ref string) error {
	accountKey := makeAccountKey(userID)

	txFn := func(tx *redis.Tx) error {
		account, err := getAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		if account.Balance < amount {
			return repository.ErrInsufficient
		}
		account.Balance -= amount
		account.UpdatedAt = time.Now().UTC()

		accountData, err := json.Marshal(account)
		if err != nil {
			return fmt.Errorf("failed to marshal token account: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, accountKey, accountData, 0)
			return nil
		})
		return err
	}

	return runWatch(ctx, r.client, txFn, accountKey)
}

func (r *redisRepository) GetAccount(ctx context.Context, userID string) (*models.TokenAccount, error) {
	return getAccount(ctx, r.client, userID)
}

func (r *redisRepository) GetEvents(ctx context.Context, userID string) ([]*models.RewardEvent, error) {
	items, err := r.client.LRange(ctx, makeEventsKey(userID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	events := make([]*models.RewardEvent, 0, len(items))
	for _, item := range items {
		event := &models.RewardEvent{}
		if err := json.Unmarshal([]byte(item), event); err != nil {
			return nil, fmt.Errorf("failed to unmarshal reward event: %w", err)
		}
		events = append(events, event)
	}
	return events, nil
}

// getAccount works over both the plain client and a WATCHed transaction.
func getAccount(ctx context.Context, c redis.Cmdable, userID string) (*models.TokenAccount, error) {
	data, err := c.Get(ctx, makeAccountKey(userID)).Bytes()
	if err == redis.Nil {
		return &models.TokenAccount{UserID: userID}, nil
	}
	if err != nil {
		return nil, err
	}

	account := &models.TokenAccount{}
	if err := json.Unmarshal(data, account); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token account: %w", err)
	}
	return account, nil
}

// runWatch retries the optimistic transaction on CAS failure and maps
// exhaustion to a contention error the caller may retry with backoff.
func runWatch(ctx context.Context, client *redis.Client, fn func(*redis.Tx) error, keys ...string) error {
	for attempt := 0; attempt < txAttempts; attempt++ {
		err := client.Watch(ctx, fn, keys...)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return apperrors.Wrap(redis.TxFailedErr, apperrors.CodeContention, "token account transaction contention")
}
