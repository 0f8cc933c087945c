package repository

import (
	"context"
	"time"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/features/voting/models"
)

var (
	ErrInitiativeNotFound = apperrors.New(apperrors.CodeInitiativeNotFound, "initiative not found")
	ErrVotingClosed       = apperrors.New(apperrors.CodeVotingClosed, "initiative is not accepting votes")
	ErrAlreadyVoted       = apperrors.New(apperrors.CodeAlreadyVoted, "user already voted on this initiative")
	ErrAlreadyCompleted   = apperrors.New(apperrors.CodeConflict, "initiative already completed")
	ErrContention         = apperrors.New(apperrors.CodeContention, "initiative transaction contention")
)

// VotingRepository owns the initiative aggregate: the initiative record with
// its option tallies and the voter records.
type VotingRepository interface {
	Create(ctx context.Context, initiative *models.Initiative) error
	GetByID(ctx context.Context, id string) (*models.Initiative, error)
	List(ctx context.Context) ([]*models.Initiative, error)

	// AddVote admits one ballot atomically: the deadline re-check, voter
	// membership, option tally and totals all commit together. On
	// ErrAlreadyVoted the stored voter is returned alongside the error.
	AddVote(ctx context.Context, voter *models.Voter, now time.Time) (*models.Voter, error)

	GetVoters(ctx context.Context, initiativeID string) ([]*models.Voter, error)

	// Complete records the winning option exactly once.
	Complete(ctx context.Context, initiativeID, winningOptionID string) error

	Cancel(ctx context.Context, initiativeID string) error

	GetVotedInitiativeIDs(ctx context.Context, userID string) ([]string, error)
	GetCreatedInitiativeIDs(ctx context.Context, userID string) ([]string, error)

	// GetPendingCompletion lists initiatives past their deadline that are
	// neither completed nor cancelled.
	GetPendingCompletion(ctx context.Context, now time.Time) ([]*models.Initiative, error)
}
