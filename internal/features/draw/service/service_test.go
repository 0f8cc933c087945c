package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/features/draw/models"
	"veridraw-backend/internal/features/draw/repository"
	"veridraw-backend/internal/features/draw/repository/memory"
	tokenmodels "veridraw-backend/internal/features/token/models"
	tokenmemory "veridraw-backend/internal/features/token/repository/memory"
	tokenservice "veridraw-backend/internal/features/token/service"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

var testLimits = models.DrawLimits{
	MinPrizePool:    100,
	MinEntryFee:     1,
	MaxEntryFee:     50,
	MaxDuration:     30 * 24 * time.Hour,
	MaxParticipants: 3,
}

var testSchedule = tokenmodels.Schedule{
	tokenmodels.ReasonDrawEntry:          10,
	tokenmodels.ReasonVoting:             5,
	tokenmodels.ReasonDrawWin:            100,
	tokenmodels.ReasonInitiativeCreation: 25,
}

type testEnv struct {
	svc     *drawService
	repo    repository.DrawRepository
	rewards tokenservice.RewardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := memory.NewDrawRepository()
	rewards := tokenservice.NewRewardService(tokenmemory.NewTokenRepository(), testSchedule)
	svc := NewDrawService(repo, rewards, testLimits).(*drawService)
	svc.now = func() time.Time { return testNow }

	return &testEnv{svc: svc, repo: repo, rewards: rewards}
}

func validCreate() *models.DrawCreate {
	return &models.DrawCreate{
		Name:          "Weekly Draw",
		Description:   "Weekly community draw",
		PrizePool:     1000,
		EntryFee:      10,
		EntryDeadline: testNow.Add(time.Hour),
		DrawTimestamp: testNow.Add(2 * time.Hour),
		CreatorID:     "creator",
	}
}

func (e *testEnv) createDraw(t *testing.T) *models.Draw {
	t.Helper()
	draw, err := e.svc.Create(context.Background(), validCreate())
	require.NoError(t, err)
	return draw
}

func (e *testEnv) balance(t *testing.T, userID string) int64 {
	t.Helper()
	account, err := e.rewards.GetAccount(context.Background(), userID)
	require.NoError(t, err)
	return account.Balance
}

func TestCreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.DrawCreate)
	}{
		{"empty name", func(c *models.DrawCreate) { c.Name = "  " }},
		{"prize pool at minimum", func(c *models.DrawCreate) { c.PrizePool = testLimits.MinPrizePool }},
		{"entry fee below minimum", func(c *models.DrawCreate) { c.EntryFee = 0 }},
		{"entry fee above maximum", func(c *models.DrawCreate) { c.EntryFee = testLimits.MaxEntryFee + 1 }},
		{"deadline in the past", func(c *models.DrawCreate) { c.EntryDeadline = testNow.Add(-time.Minute) }},
		{"draw before deadline", func(c *models.DrawCreate) { c.DrawTimestamp = c.EntryDeadline.Add(-time.Minute) }},
		{"duration beyond maximum", func(c *models.DrawCreate) { c.DrawTimestamp = testNow.Add(31 * 24 * time.Hour) }},
		{"opens after deadline", func(c *models.DrawCreate) { c.EntryOpensAt = c.EntryDeadline.Add(time.Minute) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			input := validCreate()
			tt.mutate(input)

			_, err := env.svc.Create(context.Background(), input)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestCreateAssignsIDWhenEmpty(t *testing.T) {
	env := newTestEnv(t)

	draw := env.createDraw(t)
	assert.NotEmpty(t, draw.ID)
	assert.Equal(t, models.DrawStatusActive, draw.StatusAt(testNow))

	input := validCreate()
	input.ID = "chain-assigned"
	draw, err := env.svc.Create(context.Background(), input)
	require.NoError(t, err)
	assert.Equal(t, "chain-assigned", draw.ID)
}

func TestEnterCreditsEntryReward(t *testing.T) {
	env := newTestEnv(t)
	draw := env.createDraw(t)

	p, err := env.svc.Enter(context.Background(), draw.ID, "alice", 10, "0xaaa:0")
	require.NoError(t, err)
	assert.Equal(t, 0, p.EntrySeq)
	assert.EqualValues(t, 10, env.balance(t, "alice"))
}

func TestEnterRejectsFeeMismatch(t *testing.T) {
	env := newTestEnv(t)
	draw := env.createDraw(t)

	_, err := env.svc.Enter(context.Background(), draw.ID, "alice", 9, "0xaaa:0")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeFeeMismatch, apperrors.CodeOf(err))
	assert.EqualValues(t, 0, env.balance(t, "alice"), "no reward on rejection")
}

func TestEnterRejectsAfterDeadline(t *testing.T) {
	env := newTestEnv(t)
	draw := env.createDraw(t)

	env.svc.now = func() time.Time { return testNow.Add(90 * time.Minute) }
	_, err := env.svc.Enter(context.Background(), draw.ID, "alice", 10, "0xaaa:0")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeDrawClosed, apperrors.CodeOf(err))
}

func TestEnterSameTransactionReplayIsAbsorbed(t *testing.T) {
	env := newTestEnv(t)
	draw := env.createDraw(t)

	first, err := env.svc.Enter(context.Background(), draw.ID, "alice", 10, "0xaaa:0")
	require.NoError(t, err)

	// Redelivery of the same chain transaction: succeeds, credits nothing new.
	replayed, err := env.svc.Enter(context.Background(), draw.ID, "alice", 10, "0xaaa:0")
	require.NoError(t, err)
	assert.Equal(t, first.EntrySeq, replayed.EntrySeq)
	assert.EqualValues(t, 10, env.balance(t, "alice"))

	participants, err := env.svc.GetParticipants(context.Background(), draw.ID)
	require.NoError(t, err)
	assert.Len(t, participants, 1)
}

func TestEnterSecondTransactionIsRejected(t *testing.T) {
	env := newTestEnv(t)
	draw := env.createDraw(t)

	_, err := env.svc.Enter(context.Background(), draw.ID, "alice", 10, "0xaaa:0")
	require.NoError(t, err)

	// A genuinely new transaction from the same user is a duplicate entry.
	_, err = env.svc.Enter(context.Background(), draw.ID, "alice", 10, "0xbbb:0")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeAlreadyEntered, apperrors.CodeOf(err))
	assert.EqualValues(t, 10, env.balance(t, "alice"))
}

func TestEnterCapacity(t *testing.T) {
	env := newTestEnv(t)
	draw := env.createDraw(t)

	for i, user := range []string{"u1", "u2", "u3"} {
		_, err := env.svc.Enter(context.Background(), draw.ID, user, 10, "0xaaa:"+user)
		require.NoError(t, err, "entry %d", i)
	}

	_, err := env.svc.Enter(context.Background(), draw.ID, "u4", 10, "0xaaa:u4")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeCapacity, apperrors.CodeOf(err))
}

func TestExecuteSelectsWinnerBySeed(t *testing.T) {
	env := newTestEnv(t)
	draw := env.createDraw(t)

	for _, user := range []string{"u1", "u2", "u3"} {
		_, err := env.svc.Enter(context.Background(), draw.ID, user, 10, "0xaaa:"+user)
		require.NoError(t, err)
	}

	env.svc.now = func() time.Time { return testNow.Add(3 * time.Hour) }

	// 0x05 mod 3 == 2: the third entrant wins.
	executed, err := env.svc.Execute(context.Background(), draw.ID, "0x05")
	require.NoError(t, err)
	assert.Equal(t, "u3", executed.WinnerID)
	assert.Equal(t, "0x05", executed.RandomSeed)
	assert.EqualValues(t, 110, env.balance(t, "u3"), "entry plus win reward")
}

func TestExecuteGuards(t *testing.T) {
	env := newTestEnv(t)
	draw := env.createDraw(t)
	_, err := env.svc.Enter(context.Background(), draw.ID, "u1", 10, "0xaaa:0")
	require.NoError(t, err)

	// Entry window still open.
	_, err = env.svc.Execute(context.Background(), draw.ID, "0x05")
	assert.Equal(t, apperrors.CodeNotYetClosed, apperrors.CodeOf(err))

	env.svc.now = func() time.Time { return testNow.Add(3 * time.Hour) }

	_, err = env.svc.Execute(context.Background(), draw.ID, "not-hex")
	assert.True(t, apperrors.IsValidation(err), "malformed seed must be rejected")

	_, err = env.svc.Execute(context.Background(), draw.ID, "0x05")
	require.NoError(t, err)

	// Second execution leaves the stored winner unchanged.
	_, err = env.svc.Execute(context.Background(), draw.ID, "0x06")
	assert.Equal(t, apperrors.CodeAlreadyDone, apperrors.CodeOf(err))

	stored, err := env.svc.GetByID(context.Background(), draw.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", stored.WinnerID)
	assert.Equal(t, "0x05", stored.RandomSeed)
}

func TestExecuteReplayRecoversWinReward(t *testing.T) {
	env := newTestEnv(t)
	draw := env.createDraw(t)
	ctx := context.Background()

	_, err := env.svc.Enter(ctx, draw.ID, "u1", 10, "0xaaa:0")
	require.NoError(t, err)

	// Completion committed but the win credit did not land.
	require.NoError(t, env.repo.CompleteDraw(ctx, draw.ID, "u1", "0x05"))
	assert.EqualValues(t, 10, env.balance(t, "u1"))

	env.svc.now = func() time.Time { return testNow.Add(3 * time.Hour) }
	_, err = env.svc.Execute(ctx, draw.ID, "0x05")
	assert.Equal(t, apperrors.CodeAlreadyDone, apperrors.CodeOf(err))
	assert.EqualValues(t, 110, env.balance(t, "u1"), "replay recovers the missing win credit")

	// Further replays credit nothing new.
	_, err = env.svc.Execute(ctx, draw.ID, "0x05")
	assert.Equal(t, apperrors.CodeAlreadyDone, apperrors.CodeOf(err))
	assert.EqualValues(t, 110, env.balance(t, "u1"))
}

func TestExecuteNoParticipants(t *testing.T) {
	env := newTestEnv(t)
	draw := env.createDraw(t)

	env.svc.now = func() time.Time { return testNow.Add(3 * time.Hour) }
	_, err := env.svc.Execute(context.Background(), draw.ID, "0x05")
	assert.Equal(t, apperrors.CodeNoParticipants, apperrors.CodeOf(err))
}

func TestClaimPrize(t *testing.T) {
	env := newTestEnv(t)
	draw := env.createDraw(t)
	_, err := env.svc.Enter(context.Background(), draw.ID, "u1", 10, "0xaaa:0")
	require.NoError(t, err)

	_, err = env.svc.ClaimPrize(context.Background(), draw.ID, "u1")
	assert.Equal(t, apperrors.CodeState, apperrors.CodeOf(err), "cannot claim before execution")

	env.svc.now = func() time.Time { return testNow.Add(3 * time.Hour) }
	_, err = env.svc.Execute(context.Background(), draw.ID, "0x00")
	require.NoError(t, err)

	_, err = env.svc.ClaimPrize(context.Background(), draw.ID, "u2")
	assert.Equal(t, apperrors.CodeNotWinner, apperrors.CodeOf(err))

	claimed, err := env.svc.ClaimPrize(context.Background(), draw.ID, "u1")
	require.NoError(t, err)
	assert.True(t, claimed.PrizeClaimed)

	_, err = env.svc.ClaimPrize(context.Background(), draw.ID, "u1")
	assert.Equal(t, apperrors.CodeAlreadyClaimed, apperrors.CodeOf(err))
}

func TestCancel(t *testing.T) {
	env := newTestEnv(t)
	draw := env.createDraw(t)

	require.NoError(t, env.svc.Cancel(context.Background(), draw.ID))
	// Cancelling a cancelled draw is a no-op.
	require.NoError(t, env.svc.Cancel(context.Background(), draw.ID))

	stored, err := env.svc.GetByID(context.Background(), draw.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DrawStatusCancelled, stored.StatusAt(testNow))
}

func TestCancelRejectedOnceEntriesClose(t *testing.T) {
	env := newTestEnv(t)
	draw := env.createDraw(t)
	_, err := env.svc.Enter(context.Background(), draw.ID, "u1", 10, "0xaaa:0")
	require.NoError(t, err)

	env.svc.now = func() time.Time { return testNow.Add(90 * time.Minute) }
	err = env.svc.Cancel(context.Background(), draw.ID)
	assert.Equal(t, apperrors.CodeState, apperrors.CodeOf(err))
}

func TestListFiltersByDerivedStatus(t *testing.T) {
	env := newTestEnv(t)
	active := env.createDraw(t)

	input := validCreate()
	input.Name = "Later Draw"
	input.EntryOpensAt = testNow.Add(30 * time.Minute)
	upcoming, err := env.svc.Create(context.Background(), input)
	require.NoError(t, err)

	activeList, err := env.svc.List(context.Background(), models.DrawStatusActive)
	require.NoError(t, err)
	require.Len(t, activeList, 1)
	assert.Equal(t, active.ID, activeList[0].ID)

	upcomingList, err := env.svc.List(context.Background(), models.DrawStatusUpcoming)
	require.NoError(t, err)
	require.Len(t, upcomingList, 1)
	assert.Equal(t, upcoming.ID, upcomingList[0].ID)

	all, err := env.svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestWinnerIndexIsDeterministic(t *testing.T) {
	index, err := winnerIndex("0xff", 10)
	require.NoError(t, err)
	assert.Equal(t, 5, index) // 255 mod 10

	again, err := winnerIndex("0xff", 10)
	require.NoError(t, err)
	assert.Equal(t, index, again)

	_, err = winnerIndex("", 10)
	require.Error(t, err)
}
