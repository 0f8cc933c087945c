package service

import (
	"context"

	"veridraw-backend/internal/features/draw/models"
)

// DrawService is the Draw Engine: lifecycle commands plus the read-only
// queries served from the store's derived state.
type DrawService interface {
	Create(ctx context.Context, input *models.DrawCreate) (*models.Draw, error)

	// Enter admits one paid entry and credits the entry reward. Redelivery
	// of the same chain transaction is recognized by txRef and absorbed.
	Enter(ctx context.Context, drawID, userID string, paidFee int64, txRef string) (*models.Participant, error)

	// Execute consumes an externally sourced 256-bit random seed and selects
	// the winner as seed mod participantCount over entry order.
	Execute(ctx context.Context, drawID, randomSeed string) (*models.Draw, error)

	ClaimPrize(ctx context.Context, drawID, userID string) (*models.Draw, error)
	Cancel(ctx context.Context, drawID string) error

	GetByID(ctx context.Context, drawID string) (*models.Draw, error)
	List(ctx context.Context, status models.DrawStatus) ([]*models.Draw, error)
	GetParticipants(ctx context.Context, drawID string) ([]*models.Participant, error)
}
