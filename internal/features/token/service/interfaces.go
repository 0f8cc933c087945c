package service

import (
	"context"

	"veridraw-backend/internal/features/token/models"
)

// RewardService is the Reward Ledger: it credits fixed-schedule token rewards
// for qualifying actions and serves balance queries.
type RewardService interface {
	// Credit applies an explicit amount. Duplicate (sourceRef, reason) pairs
	// are rejected with a DuplicateEvent error and change nothing.
	Credit(ctx context.Context, userID string, amount int64, reason models.RewardReason, sourceRef string) (*models.RewardEvent, error)

	// CreditScheduled looks the amount up in the injected reward schedule.
	CreditScheduled(ctx context.Context, userID string, reason models.RewardReason, sourceRef string) (*models.RewardEvent, error)

	// Spend debits tokens outside the reward path; balances never go negative.
	Spend(ctx context.Context, userID string, amount int64, ref string) error

	GetAccount(ctx context.Context, userID string) (*models.TokenAccount, error)
	GetEvents(ctx context.Context, userID string) ([]*models.RewardEvent, error)
}
