package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/features/voting/models"
	"veridraw-backend/internal/features/voting/repository"
)

const (
	keyPrefixInitiative  = "initiative:"
	keyPrefixVoter       = "initiative:voter:"
	keyPrefixVoterOrder  = "initiative:voters:"
	keyAllInitiatives    = "initiatives:all"
	keyPrefixUserVotes   = "user:initiative_votes:"
	keyPrefixUserCreated = "user:initiatives_created:"

	txAttempts = 3
)

type redisRepository struct {
	client *redis.Client
}

func NewVotingRepository(client *redis.Client) repository.VotingRepository {
	return &redisRepository{client: client}
}

func makeInitiativeKey(id string) string {
	return keyPrefixInitiative + id
}

func makeVoterKey(initiativeID, userID string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefixVoter, initiativeID, userID)
}

func makeVoterOrderKey(initiativeID string) string {
	return keyPrefixVoterOrder + initiativeID
}

func (r *redisRepository) Create(ctx context.Context, initiative *models.Initiative) error {
	initiativeKey := makeInitiativeKey(initiative.ID)

	data, err := json.Marshal(initiative)
	if err != nil {
		return fmt.Errorf("failed to marshal initiative: %w", err)
	}

	txFn := func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, initiativeKey).Result()
		if err != nil {
			return err
		}
		if n > 0 {
			return apperrors.Newf(apperrors.CodeConflict, "initiative %s already exists", initiative.ID)
		}

		// Record and index entries commit together; an initiative can never
		// exist without being visible to List and the scheduler.
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, initiativeKey, data, 0)
			pipe.SAdd(ctx, keyAllInitiatives, initiative.ID)
			pipe.SAdd(ctx, keyPrefixUserCreated+initiative.CreatorID, initiative.ID)
			return nil
		})
		return err
	}

	return runWatch(ctx, r.client, txFn, initiativeKey)
}

func (r *redisRepository) GetByID(ctx context.Context, id string) (*models.Initiative, error) {
	return getInitiative(ctx, r.client, id)
}

func (r *redisRepository) List(ctx context.Context) ([]*models.Initiative, error) {
	ids, err := r.client.SMembers(ctx, keyAllInitiatives).Result()
	if err != nil {
		return nil, err
	}

	initiatives := make([]*models.Initiative, 0, len(ids))
	for _, id := range ids {
		initiative, err := getInitiative(ctx, r.client, id)
		if errors.Is(err, repository.ErrInitiativeNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		initiatives = append(initiatives, initiative)
	}
	return initiatives, nil
}

func (r *redisRepository) AddVote(ctx context.Context, voter *models.Voter, now time.Time) (*models.Voter, error) {
	initiativeKey := makeInitiativeKey(voter.InitiativeID)
	voterKey := makeVoterKey(voter.InitiativeID, voter.UserID)

	var existing *models.Voter

	txFn := func(tx *redis.Tx) error {
		initiative, err := getInitiative(ctx, tx, voter.InitiativeID)
		if err != nil {
			return err
		}
		if !initiative.AcceptsVotes(now) {
			return repository.ErrVotingClosed
		}

		data, err := tx.Get(ctx, voterKey).Bytes()
		if err != nil && err != redis.Nil {
			return err
		}
		if err == nil {
			stored := &models.Voter{}
			if err := json.Unmarshal(data, stored); err != nil {
				return fmt.Errorf("failed to unmarshal voter: %w", err)
			}
			existing = stored
			return repository.ErrAlreadyVoted
		}

		option := initiative.Option(voter.OptionID)
		if option == nil {
			return apperrors.Newf(apperrors.CodeInvalidOption, "option %s does not exist on initiative %s", voter.OptionID, voter.InitiativeID)
		}

		option.Votes++
		option.VoteWeight += voter.Weight
		initiative.TotalVotes++
		initiative.TotalWeight += voter.Weight

		initiativeData, err := json.Marshal(initiative)
		if err != nil {
			return fmt.Errorf("failed to marshal initiative: %w", err)
		}
		voterData, err := json.Marshal(voter)
		if err != nil {
			return fmt.Errorf("failed to marshal voter: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, initiativeKey, initiativeData, 0)
			pipe.Set(ctx, voterKey, voterData, 0)
			pipe.RPush(ctx, makeVoterOrderKey(voter.InitiativeID), voter.UserID)
			pipe.SAdd(ctx, keyPrefixUserVotes+voter.UserID, voter.InitiativeID)
			return nil
		})
		return err
	}

	err := runWatch(ctx, r.client, txFn, initiativeKey, voterKey)
	if errors.Is(err, repository.ErrAlreadyVoted) {
		return existing, err
	}
	if err != nil {
		return nil, err
	}
	return voter, nil
}

func (r *redisRepository) GetVoters(ctx context.Context, initiativeID string) ([]*models.Voter, error) {
	userIDs, err := r.client.LRange(ctx, makeVoterOrderKey(initiativeID), 0, -1).Result()
	if err != nil {
		return nil, err
	}

	voters := make([]*models.Voter, 0, len(userIDs))
	for _, userID := range userIDs {
		data, err := r.client.Get(ctx, makeVoterKey(initiativeID, userID)).Bytes()
		if err == redis.Nil {
			return nil, apperrors.Newf(apperrors.CodeUpstream, "voter record missing for %s on initiative %s", userID, initiativeID)
		}
		if err != nil {
			return nil, err
		}
		voter := &models.Voter{}
		if err := json.Unmarshal(data, voter); err != nil {
			return nil, fmt.Errorf("failed to unmarshal voter: %w", err)
		}
		voters = append(voters, voter)
	}
	return voters, nil
}

func (r *redisRepository) Complete(ctx context.Context, initiativeID, winningOptionID string) error {
	initiativeKey := makeInitiativeKey(initiativeID)

	txFn := func(tx *redis.Tx) error {
		initiative, err := getInitiative(ctx, tx, initiativeID)
		if err != nil {
			return err
		}
		if initiative.Completed {
			return repository.ErrAlreadyCompleted
		}

		initiative.Completed = true
		initiative.WinningOptionID = winningOptionID

		data, err := json.Marshal(initiative)
		if err != nil {
			return fmt.Errorf("failed to marshal initiative: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, initiativeKey, data, 0)
			return nil
		})
		return err
	}

	return runWatch(ctx, r.client, txFn, initiativeKey)
}

func (r *redisRepository) Cancel(ctx context.Context, initiativeID string) error {
	initiativeKey := makeInitiativeKey(initiativeID)

	txFn := func(tx *redis.Tx) error {
		initiative, err := getInitiative(ctx, tx, initiativeID)
		if err != nil {
			return err
		}
		if initiative.Cancelled {
			return nil
		}

		initiative.Cancelled = true
		data, err := json.Marshal(initiative)
		if err != nil {
			return fmt.Errorf("failed to marshal initiative: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, initiativeKey, data, 0)
			return nil
		})
		return err
	}

	return runWatch(ctx, r.client, txFn, initiativeKey)
}

func (r *redisRepository) GetVotedInitiativeIDs(ctx context.Context, userID string) ([]string, error) {
	return r.client.SMembers(ctx, keyPrefixUserVotes+userID).Result()
}

func (r *redisRepository) GetCreatedInitiativeIDs(ctx context.Context, userID string) ([]string, error) {
	return r.client.SMembers(ctx, keyPrefixUserCreated+userID).Result()
}

func (r *redisRepository) GetPendingCompletion(ctx context.Context, now time.Time) ([]*models.Initiative, error) {
	initiatives, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	pending := make([]*models.Initiative, 0)
	for _, initiative := range initiatives {
		if initiative.StatusAt(now) == models.InitiativeStatusVotingClosed {
			pending = append(pending, initiative)
		}
	}
	return pending, nil
}

func getInitiative(ctx context.Context, c redis.Cmdable, id string) (*models.Initiative, error) {
	data, err := c.Get(ctx, makeInitiativeKey(id)).Bytes()
	if err == redis.Nil {
		return nil, repository.ErrInitiativeNotFound
	}
	if err != nil {
		return nil, err
	}

	initiative := &models.Initiative{}
	if err := json.Unmarshal(data, initiative); err != nil {
		return nil, fmt.Errorf("failed to unmarshal initiative: %w", err)
	}
	return initiative, nil
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
	return apperrors.Wrap(redis.TxFailedErr, apperrors.CodeContention, "initiative transaction contention")
}
