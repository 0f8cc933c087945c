package repository

import (
	"context"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/features/token/models"
)

var (
	ErrDuplicateEvent = apperrors.New(apperrors.CodeDuplicateEvent, "reward already credited for this source")
	ErrInsufficient   = apperrors.New(apperrors.CodeInsufficientBalance, "balance too low")
	ErrContention     = apperrors.New(apperrors.CodeContention, "token account transaction contention")
)

// TokenRepository owns token accounts and the append-only reward event log.
// Credit and Debit are atomic per account: the balance mutation, the
// idempotency marker and the event append commit together or not at all.
type TokenRepository interface {
	// Credit applies one reward event. A second event with the same
	// (sourceRef, reason) returns ErrDuplicateEvent and changes nothing.
	Credit(ctx context.Context, event *models.RewardEvent) error

	// Debit removes tokens for a non-reward transfer, keeping balance >= 0.
	Debit(ctx context.Context, userID string, amount int64, ref string) error

	// GetAccount returns the account, or a zero-balance account for users
	// that have never been credited.
	GetAccount(ctx context.Context, userID string) (*models.TokenAccount, error)

	GetEvents(ctx context.Context, userID string) ([]*models.RewardEvent, error)
}
