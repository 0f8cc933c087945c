package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	drawmodels "veridraw-backend/internal/features/draw/models"
	drawmemory "veridraw-backend/internal/features/draw/repository/memory"
	tokenmodels "veridraw-backend/internal/features/token/models"
	tokenmemory "veridraw-backend/internal/features/token/repository/memory"
	votingmodels "veridraw-backend/internal/features/voting/models"
	votingmemory "veridraw-backend/internal/features/voting/repository/memory"
)

func TestGetProfileAggregatesAcrossFeatures(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	drawRepo := drawmemory.NewDrawRepository()
	votingRepo := votingmemory.NewVotingRepository()
	tokenRepo := tokenmemory.NewTokenRepository()

	require.NoError(t, drawRepo.Create(ctx, &drawmodels.Draw{
		ID:            "d1",
		Name:          "Draw",
		EntryDeadline: now.Add(time.Hour),
		DrawTimestamp: now.Add(2 * time.Hour),
	}))
	_, err := drawRepo.AddParticipant(ctx, &drawmodels.Participant{DrawID: "d1", UserID: "alice"}, 0, now)
	require.NoError(t, err)
	require.NoError(t, drawRepo.CompleteDraw(ctx, "d1", "alice", "0x01"))

	require.NoError(t, votingRepo.Create(ctx, &votingmodels.Initiative{
		ID:             "i1",
		Name:           "Initiative",
		VotingDeadline: now.Add(time.Hour),
		CreatorID:      "alice",
		Options:        []votingmodels.VotingOption{{ID: "1", Text: "Yes"}, {ID: "2", Text: "No"}},
	}))
	_, err = votingRepo.AddVote(ctx, &votingmodels.Voter{
		InitiativeID: "i1",
		UserID:       "alice",
		OptionID:     "1",
		Weight:       10,
	}, now)
	require.NoError(t, err)

	require.NoError(t, tokenRepo.Credit(ctx, &tokenmodels.RewardEvent{
		ID:        "ev1",
		UserID:    "alice",
		Amount:    110,
		Reason:    tokenmodels.ReasonDrawWin,
		SourceRef: tokenmodels.WinSourceRef("d1"),
		CreatedAt: now,
	}))

	svc := NewProfileService(drawRepo, votingRepo, tokenRepo)

	profile, err := svc.GetProfile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", profile.UserID)
	assert.EqualValues(t, 110, profile.Balance)
	assert.EqualValues(t, 110, profile.TotalEarned)
	assert.Equal(t, 1, profile.Stats.TotalEntries)
	assert.Equal(t, 1, profile.Stats.TotalVotes)
	assert.Equal(t, 1, profile.Stats.WinsCount)
	assert.Equal(t, 1, profile.Stats.InitiativesCreated)
	assert.Equal(t, []string{"d1"}, profile.EnteredDrawIDs)
	assert.Equal(t, []string{"d1"}, profile.WonDrawIDs)
	assert.Equal(t, []string{"i1"}, profile.VotedInitiativeIDs)
	assert.Equal(t, []string{"i1"}, profile.CreatedInitiativeIDs)
}

func TestGetProfileForUnknownUserIsEmpty(t *testing.T) {
	svc := NewProfileService(drawmemory.NewDrawRepository(), votingmemory.NewVotingRepository(), tokenmemory.NewTokenRepository())

	profile, err := svc.GetProfile(context.Background(), "nobody")
	require.NoError(t, err)
	assert.EqualValues(t, 0, profile.Balance)
	assert.Empty(t, profile.EnteredDrawIDs)
	assert.Equal(t, 0, profile.Stats.TotalEntries)
}
