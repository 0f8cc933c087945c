package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/common/logger"
	"veridraw-backend/internal/features/token/models"
	"veridraw-backend/internal/features/token/repository"
)

type rewardService struct {
	repo     repository.TokenRepository
	schedule models.Schedule
	log      zerolog.Logger
}

func NewRewardService(repo repository.TokenRepository, schedule models.Schedule) RewardService {
	return &rewardService{
		repo:     repo,
		schedule: schedule,
		log:      logger.Component("reward_service"),
	}
}

func (s *rewardService) Credit(ctx context.Context, userID string, amount int64, reason models.RewardReason, sourceRef string) (*models.RewardEvent, error) {
	if amount <= 0 {
		return nil, apperrors.Newf(apperrors.CodeInvalidAmount, "reward amount must be positive, got %d", amount)
	}
	if !reason.Valid() {
		return nil, apperrors.Newf(apperrors.CodeValidation, "unknown reward reason %q", reason)
	}
	if userID == "" || sourceRef == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "reward requires a recipient and a source reference")
	}

	event := &models.RewardEvent{
		ID:        uuid.New().String(),
		UserID:    userID,
		Amount:    amount,
		Reason:    reason,
		SourceRef: sourceRef,
		CreatedAt: time.Now().UTC(),
	}

	if err := s.repo.Credit(ctx, event); err != nil {
		return nil, err
	}

	s.log.Debug().
		Str("user_id", userID).
		Int64("amount", amount).
		Str("reason", string(reason)).
		Str("source_ref", sourceRef).
		Msg("reward credited")

	return event, nil
}

func (s *rewardService) CreditScheduled(ctx context.Context, userID string, reason models.RewardReason, sourceRef string) (*models.RewardEvent, error) {
	return s.Credit(ctx, userID, s.schedule.AmountFor(reason), reason, sourceRef)
}

func (s *rewardService) Spend(ctx context.Context, userID string, amount int64, ref string) error {
	if amount <= 0 {
		return apperrors.Newf(apperrors.CodeInvalidAmount, "debit amount must be positive, got %d", amount)
	}
	return s.repo.Debit(ctx, userID, amount, ref)
}

func (s *rewardService) GetAccount(ctx context.Context, userID string) (*models.TokenAccount, error) {
	return s.repo.GetAccount(ctx, userID)
}

func (s *rewardService) GetEvents(ctx context.Context, userID string) ([]*models.RewardEvent, error) {
	return s.repo.GetEvents(ctx, userID)
}
