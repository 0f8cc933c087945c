package service

import (
	"context"

	"veridraw-backend/internal/features/voting/models"
)

// VotingService is the Voting Engine: initiative lifecycle, vote admission
// with balance-derived weights, and tally queries.
type VotingService interface {
	Create(ctx context.Context, input *models.InitiativeCreate) (*models.Initiative, error)

	// CastVote admits one ballot weighted by the voter's balance snapshot at
	// cast time. Redelivery of the same chain transaction is recognized by
	// txRef and absorbed.
	CastVote(ctx context.Context, initiativeID, userID, optionID string, balanceSnapshot int64, txRef string) (*models.Voter, error)

	// Complete closes the initiative and records the winning option: maximal
	// vote weight, ties to the first-created option.
	Complete(ctx context.Context, initiativeID string) (*models.Initiative, error)

	Cancel(ctx context.Context, initiativeID string) error

	GetByID(ctx context.Context, initiativeID string) (*models.Initiative, error)
	List(ctx context.Context, status models.InitiativeStatus) ([]*models.Initiative, error)
	GetVoters(ctx context.Context, initiativeID string) ([]*models.Voter, error)
}
