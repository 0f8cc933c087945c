package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/features/draw/models"
	"veridraw-backend/internal/features/draw/repository"
)

const (
	keyPrefixDraw        = "draw:"
	keyPrefixOrder       = "draw:participants:"
	keyPrefixParticipant = "draw:participant:"
	keyAllDraws          = "draws:all"
	keyPrefixUserEntries = "user:draw_entries:"
	keyPrefixUserWins    = "user:draw_wins:"

	txAttempts = 3
)

type redisRepository struct {
	client *redis.Client
}

func NewDrawRepository(client *redis.Client) repository.DrawRepository {
	return &redisRepository{client: client}
}

func makeDrawKey(id string) string {
	return keyPrefixDraw + id
}

func makeOrderKey(id string) string {
	return keyPrefixOrder + id
}

func makeParticipantKey(drawID, userID string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefixParticipant, drawID, userID)
}

func (r *redisRepository) Create(ctx context.Context, draw *models.Draw) error {
	drawKey := makeDrawKey(draw.ID)

	data, err := json.Marshal(draw)
	if err != nil {
		return fmt.Errorf("failed to marshal draw: %w", err)
	}

	txFn := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, drawKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return apperrors.Newf(apperrors.CodeConflict, "draw %s already exists", draw.ID)
		}

		// Record and index entry commit together; a draw can never exist
		// without being visible to List and the scheduler.
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, drawKey, data, 0)
			pipe.SAdd(ctx, keyAllDraws, draw.ID)
			return nil
		})
		return err
	}

	return runWatch(ctx, r.client, txFn, drawKey)
}

func (r *redisRepository) GetByID(ctx context.Context, id string) (*models.Draw, error) {
	return getDraw(ctx, r.client, id)
}

func (r *redisRepository) List(ctx context.Context) ([]*models.Draw, error) {
	ids, err := r.client.SMembers(ctx, keyAllDraws).Result()
	if err != nil {
		return nil, err
	}

	draws := make([]*models.Draw, 0, len(ids))
	for _, id := range ids {
		draw, err := getDraw(ctx, r.client, id)
		if errors.Is(err, repository.ErrDrawNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		draws = append(draws, draw)
	}
	return draws, nil
}

func (r *redisRepository) AddParticipant(ctx context.Context, p *models.Participant, maxParticipants int, now time.Time) (*models.Participant, error) {
	drawKey := makeDrawKey(p.DrawID)
	participantKey := makeParticipantKey(p.DrawID, p.UserID)

	var existing *models.Participant

	txFn := func(tx *redis.Tx) error {
		draw, err := getDraw(ctx, tx, p.DrawID)
		if err != nil {
			return err
		}
		if !draw.AcceptsEntries(now) {
			return repository.ErrDrawClosed
		}

		data, err := tx.Get(ctx, participantKey).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			stored := &models.Participant{}
			if err := json.Unmarshal(data, stored); err != nil {
				return fmt.Errorf("failed to unmarshal participant: %w", err)
			}
			existing = stored
			return repository.ErrAlreadyEntered
		}

		if maxParticipants > 0 && draw.ParticipantCount >= maxParticipants {
			return repository.ErrCapacity
		}

		p.EntrySeq = draw.ParticipantCount
		draw.ParticipantCount++

		drawData, err := json.Marshal(draw)
		if err != nil {
			return fmt.Errorf("failed to marshal draw: %w", err)
		}
		participantData, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal participant: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, drawKey, drawData, 0)
			pipe.Set(ctx, participantKey, participantData, 0)
			pipe.RPush(ctx, makeOrderKey(p.DrawID), p.UserID)
			pipe.SAdd(ctx, keyPrefixUserEntries+p.UserID, p.DrawID)
			return nil
		})
		return err
	}

	err := runWatch(ctx, r.client, txFn, drawKey, participantKey)
	if errors.Is(err, repository.ErrAlreadyEntered) {
		return existing, err
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (r *redisRepository) GetParticipants(ctx context.Context, drawID string) ([]*models.Participant, error) {
	userIDs, err := r.client.LRange(ctx, makeOrderKey(drawID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	participants := make([]*models.Participant, 0, len(userIDs))
	for _, userID := range userIDs {
		data, err := r.client.Get(ctx, makeParticipantKey(drawID, userID)).Bytes()
		if err == redis.Nil {
			return nil, apperrors.Newf(apperrors.CodeUpstream, "participant record missing for %s in draw %s", userID, drawID)
		}
		if err != nil {
			return nil, err
		}
		p := &models.Participant{}
		if err := json.Unmarshal(data, p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal participant: %w", err)
		}
		participants = append(participants, p)
	}
	return participants, nil
}

func (r *redisRepository) IsParticipant(ctx context.Context, drawID, userID string) (bool, error) {
	n, err := r.client.Exists(ctx, makeParticipantKey(drawID, userID)).Result()
	return n > 0, err
}

func (r *redisRepository) CompleteDraw(ctx context.Context, drawID, winnerID, randomSeed string) error {
	drawKey := makeDrawKey(drawID)

	txFn := func(tx *redis.Tx) error {
		draw, err := getDraw(ctx, tx, drawID)
		if err != nil {
			return err
		}
		if draw.WinnerID != "" {
			return repository.ErrAlreadyExecuted
		}

		draw.WinnerID = winnerID
		draw.RandomSeed = randomSeed

		data, err := json.Marshal(draw)
		if err != nil {
			return fmt.Errorf("failed to marshal draw: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, drawKey, data, 0)
			pipe.SAdd(ctx, keyPrefixUserWins+winnerID, drawID)
			return nil
		})
		return err
	}

	return runWatch(ctx, r.client, txFn, drawKey)
}

func (r *redisRepository) SetPrizeClaimed(ctx context.Context, drawID string) error {
	drawKey := makeDrawKey(drawID)

	txFn := func(tx *redis.Tx) error {
		draw, err := getDraw(ctx, tx, drawID)
		if err != nil {
			return err
		}
		if draw.PrizeClaimed {
			return apperrors.New(apperrors.CodeAlreadyClaimed, "prize already claimed")
		}

		draw.PrizeClaimed = true
		data, err := json.Marshal(draw)
		if err != nil {
			return fmt.Errorf("failed to marshal draw: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, drawKey, data, 0)
			return nil
		})
		return err
	}

	return runWatch(ctx, r.client, txFn, drawKey)
}

func (r *redisRepository) Cancel(ctx context.Context, drawID string) error {
	drawKey := makeDrawKey(drawID)

	txFn := func(tx *redis.Tx) error {
		draw, err := getDraw(ctx, tx, drawID)
		if err != nil {
			return err
		}
		if draw.Cancelled {
			return nil
		}

		draw.Cancelled = true
		data, err := json.Marshal(draw)
		if err != nil {
			return fmt.Errorf("failed to marshal draw: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, drawKey, data, 0)
			return nil
		})
		return err
	}

	return runWatch(ctx, r.client, txFn, drawKey)
}

func (r *redisRepository) GetEnteredDrawIDs(ctx context.Context, userID string) ([]string, error) {
	return r.client.SMembers(ctx, keyPrefixUserEntries+userID).Result()
}

func (r *redisRepository) GetWonDrawIDs(ctx context.Context, userID string) ([]string, error) {
	return r.client.SMembers(ctx, keyPrefixUserWins+userID).Result()
}

func (r *redisRepository) GetPendingExecution(ctx context.Context, now time.Time) ([]*models.Draw, error) {
	draws, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]*models.Draw, 0)
	for _, draw := range draws {
		if draw.Executable(now) && now.After(draw.DrawTimestamp) {
			pending = append(pending, draw)
		}
	}
	return pending, nil
}

func getDraw(ctx context.Context, c redis.Cmdable, id string) (*models.Draw, error) {
	data, err := c.Get(ctx, makeDrawKey(id)).Bytes()
	if err == redis.Nil {
		return nil, repository.ErrDrawNotFound
	}
	if err != nil {
		return nil, err
	}

	draw := &models.Draw{}
	if err := json.Unmarshal(data, draw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal draw: %w", err)
	}
	return draw, nil
}

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
	return apperrors.Wrap(redis.TxFailedErr, apperrors.CodeContention, "draw transaction contention")
}
