package repository

import (
	"context"
	"time"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/features/draw/models"
)

var (
	ErrDrawNotFound    = apperrors.New(apperrors.CodeDrawNotFound, "draw not found")
	ErrDrawClosed      = apperrors.New(apperrors.CodeDrawClosed, "draw is not accepting entries")
	ErrAlreadyEntered  = apperrors.New(apperrors.CodeAlreadyEntered, "user already entered this draw")
	ErrCapacity        = apperrors.New(apperrors.CodeCapacity, "draw reached maximum participants")
	ErrAlreadyExecuted = apperrors.New(apperrors.CodeAlreadyDone, "draw already executed")
	ErrContention      = apperrors.New(apperrors.CodeContention, "draw transaction contention")
)

// DrawRepository owns the draw aggregate: the draw record, its
// insertion-ordered participant list and the per-user history indexes.
// Mutating methods serialize per draw; each is all-or-nothing.
type DrawRepository interface {
	Create(ctx context.Context, draw *models.Draw) error
	GetByID(ctx context.Context, id string) (*models.Draw, error)
	List(ctx context.Context) ([]*models.Draw, error)

	// AddParticipant admits one entry atomically: membership check, capacity
	// check against maxParticipants (0 = unlimited), deadline re-check at
	// `now`, sequence assignment and count increment commit together.
	// On ErrAlreadyEntered the stored participant is returned alongside the
	// error so callers can distinguish a replay from a genuine duplicate.
	AddParticipant(ctx context.Context, p *models.Participant, maxParticipants int, now time.Time) (*models.Participant, error)

	GetParticipants(ctx context.Context, drawID string) ([]*models.Participant, error)
	IsParticipant(ctx context.Context, drawID, userID string) (bool, error)

	// CompleteDraw stores the winner and seed exactly once; a second call
	// returns ErrAlreadyExecuted and leaves the stored winner unchanged.
	CompleteDraw(ctx context.Context, drawID, winnerID, randomSeed string) error

	// SetPrizeClaimed flips the claim flag exactly once under concurrent
	// claim attempts.
	SetPrizeClaimed(ctx context.Context, drawID string) error

	// Cancel marks the draw cancelled; terminal.
	Cancel(ctx context.Context, drawID string) error

	// Per-user history indexes for profile queries.
	GetEnteredDrawIDs(ctx context.Context, userID string) ([]string, error)
	GetWonDrawIDs(ctx context.Context, userID string) ([]string, error)

	// GetPendingExecution lists draws past their draw timestamp with no
	// winner and not cancelled; the scheduler turns these into execute
	// commands.
	GetPendingExecution(ctx context.Context, now time.Time) ([]*models.Draw, error)
}
