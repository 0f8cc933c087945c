package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/features/draw/models"
)

func TestCreateIsImmediatelyVisible(t *testing.T) {
	repo := NewDrawRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, repo.Create(ctx, &models.Draw{
		ID:            "d1",
		Name:          "Draw",
		EntryDeadline: now.Add(-2 * time.Hour),
		DrawTimestamp: now.Add(-time.Hour),
	}))

	// The record and its index commit together: a created draw shows up in
	// List and in the scheduler's pending sweep with no intermediate state.
	draws, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, draws, 1)
	assert.Equal(t, "d1", draws[0].ID)

	pending, err := repo.GetPendingExecution(ctx, now)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "d1", pending[0].ID)
}

func TestCreateDuplicateIDConflicts(t *testing.T) {
	repo := NewDrawRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	draw := &models.Draw{
		ID:            "d1",
		Name:          "Draw",
		EntryDeadline: now.Add(time.Hour),
		DrawTimestamp: now.Add(2 * time.Hour),
	}
	require.NoError(t, repo.Create(ctx, draw))

	err := repo.Create(ctx, draw)
	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))

	draws, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, draws, 1)
}
