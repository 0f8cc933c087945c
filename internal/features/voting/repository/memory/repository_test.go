package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/features/voting/models"
)

func TestCreateIsImmediatelyVisible(t *testing.T) {
	repo := NewVotingRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, &models.Initiative{
		ID:             "i1",
		Name:           "Initiative",
		VotingDeadline: now.Add(-time.Hour),
		CreatorID:      "creator",
		Options:        []models.VotingOption{{ID: "1", Text: "Yes"}, {ID: "2", Text: "No"}},
	}))

	// The record and its indexes commit together: a created initiative shows
	// up in List, the creator history and the scheduler's pending sweep with
	// no intermediate state.
	initiatives, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, initiatives, 1)
	assert.Equal(t, "i1", initiatives[0].ID)

	created, err := repo.GetCreatedInitiativeIDs(ctx, "creator")
	require.NoError(t, err)
	assert.Equal(t, []string{"i1"}, created)

	pending, err := repo.GetPendingCompletion(ctx, now)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "i1", pending[0].ID)
}

func TestCreateDuplicateIDConflicts(t *testing.T) {
	repo := NewVotingRepository()
	ctx := context.Background()

	initiative := &models.Initiative{
		ID:             "i1",
		Name:           "Initiative",
		VotingDeadline: time.Now().Add(time.Hour),
		CreatorID:      "creator",
		Options:        []models.VotingOption{{ID: "1", Text: "Yes"}, {ID: "2", Text: "No"}},
	}
	require.NoError(t, repo.Create(ctx, initiative))

	err := repo.Create(ctx, initiative)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	created, err := repo.GetCreatedInitiativeIDs(ctx, "creator")
	require.NoError(t, err)
	assert.Equal(t, []string{"i1"}, created, "duplicate create must not double-index")
}
