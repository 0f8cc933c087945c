package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veridraw-backend/internal/chain"
	drawmodels "veridraw-backend/internal/features/draw/models"
	drawrepo "veridraw-backend/internal/features/draw/repository"
	drawmemory "veridraw-backend/internal/features/draw/repository/memory"
	drawservice "veridraw-backend/internal/features/draw/service"
	tokenmodels "veridraw-backend/internal/features/token/models"
	tokenmemory "veridraw-backend/internal/features/token/repository/memory"
	tokenservice "veridraw-backend/internal/features/token/service"
	votingmodels "veridraw-backend/internal/features/voting/models"
	votingrepo "veridraw-backend/internal/features/voting/repository"
	votingmemory "veridraw-backend/internal/features/voting/repository/memory"
	votingservice "veridraw-backend/internal/features/voting/service"
)

var testSchedule = tokenmodels.Schedule{
	tokenmodels.ReasonDrawEntry:          10,
	tokenmodels.ReasonVoting:             5,
	tokenmodels.ReasonDrawWin:            100,
	tokenmodels.ReasonInitiativeCreation: 25,
}

type reconcilerEnv struct {
	reconciler *Reconciler
	ledger     EventLedger
	drawRepo   drawrepo.DrawRepository
	votingRepo votingrepo.VotingRepository
	rewards    tokenservice.RewardService
}

func newReconcilerEnv(t *testing.T, addresses *chain.Addresses) *reconcilerEnv {
	t.Helper()

	drawRepo := drawmemory.NewDrawRepository()
	votingRepo := votingmemory.NewVotingRepository()
	rewards := tokenservice.NewRewardService(tokenmemory.NewTokenRepository(), testSchedule)

	draws := drawservice.NewDrawService(drawRepo, rewards, drawmodels.DrawLimits{
		MinPrizePool: 100,
		MinEntryFee:  1,
		MaxEntryFee:  1000,
		MaxDuration:  30 * 24 * time.Hour,
	})
	voting := votingservice.NewVotingService(votingRepo, rewards, votingmodels.VotingLimits{
		MinLeadTime:    time.Minute,
		MaxDuration:    30 * 24 * time.Hour,
		MinOptions:     2,
		MaxOptions:     10,
		MinVoteBalance: 1,
	})

	ledger := NewMemoryEventLedger()
	return &reconcilerEnv{
		reconciler: NewReconciler(nil, ledger, addresses, draws, voting, rewards),
		ledger:     ledger,
		drawRepo:   drawRepo,
		votingRepo: votingRepo,
		rewards:    rewards,
	}
}

func event(t *testing.T, kind chain.EventKind, txHash string, logIndex int, payload interface{}) *chain.Event {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return &chain.Event{
		Kind:        kind,
		TxHash:      txHash,
		LogIndex:    logIndex,
		ChainID:     84532,
		BlockNumber: 1000,
		Payload:     raw,
		ObservedAt:  time.Now().UTC(),
	}
}

func TestProcessDrawCreateAndEnter(t *testing.T) {
	env := newReconcilerEnv(t, nil)
	ctx := context.Background()
	deadline := time.Now().Add(time.Hour)

	created := event(t, chain.EventDrawCreated, "0xc1", 0, chain.DrawCreatedPayload{
		DrawID:        "d1",
		Name:          "Chain Draw",
		PrizePool:     1000,
		EntryFee:      10,
		EntryDeadline: deadline.Unix(),
		DrawTimestamp: deadline.Add(time.Hour).Unix(),
		Creator:       "creator",
	})
	require.NoError(t, env.reconciler.Process(ctx, created))

	entered := event(t, chain.EventDrawEntered, "0xe1", 0, chain.DrawEnteredPayload{
		DrawID:      "d1",
		Participant: "alice",
		EntryFee:    10,
	})
	require.NoError(t, env.reconciler.Process(ctx, entered))

	participants, err := env.drawRepo.GetParticipants(ctx, "d1")
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "alice", participants[0].UserID)
	assert.Equal(t, "0xe1:0", participants[0].TxRef)

	account, err := env.rewards.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 10, account.Balance)
}

func TestProcessSkipsDuplicateTransaction(t *testing.T) {
	env := newReconcilerEnv(t, nil)
	ctx := context.Background()
	deadline := time.Now().Add(time.Hour)

	created := event(t, chain.EventDrawCreated, "0xc1", 0, chain.DrawCreatedPayload{
		DrawID:        "d1",
		Name:          "Chain Draw",
		PrizePool:     1000,
		EntryFee:      10,
		EntryDeadline: deadline.Unix(),
		DrawTimestamp: deadline.Add(time.Hour).Unix(),
	})
	require.NoError(t, env.reconciler.Process(ctx, created))

	entered := event(t, chain.EventDrawEntered, "0xe1", 0, chain.DrawEnteredPayload{
		DrawID:      "d1",
		Participant: "alice",
		EntryFee:    10,
	})
	require.NoError(t, env.reconciler.Process(ctx, entered))
	// Relay redelivers the exact same log: dedup short-circuits it.
	require.NoError(t, env.reconciler.Process(ctx, entered))

	participants, err := env.drawRepo.GetParticipants(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, participants, 1)

	account, err := env.rewards.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 10, account.Balance, "reward credited exactly once")
}

func TestProcessDrawCompletionAndClaim(t *testing.T) {
	env := newReconcilerEnv(t, nil)
	ctx := context.Background()
	now := time.Now().UTC()

	// Draw whose entry window already closed, with one admitted participant.
	require.NoError(t, env.drawRepo.Create(ctx, &drawmodels.Draw{
		ID:            "d1",
		Name:          "Closed Draw",
		PrizePool:     1000,
		EntryFee:      10,
		EntryDeadline: now.Add(-time.Hour),
		DrawTimestamp: now.Add(-30 * time.Minute),
		CreatedAt:     now.Add(-2 * time.Hour),
	}))
	_, err := env.drawRepo.AddParticipant(ctx, &drawmodels.Participant{
		DrawID: "d1",
		UserID: "alice",
	}, 0, now.Add(-90*time.Minute))
	require.NoError(t, err)

	completed := event(t, chain.EventDrawCompleted, "0xf1", 0, chain.DrawCompletedPayload{
		DrawID:     "d1",
		RandomSeed: "0x00",
	})
	require.NoError(t, env.reconciler.Process(ctx, completed))

	draw, err := env.drawRepo.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "alice", draw.WinnerID)

	claimed := event(t, chain.EventPrizeClaimed, "0xf2", 0, chain.PrizeClaimedPayload{
		DrawID: "d1",
		Winner: "alice",
		Amount: 1000,
	})
	require.NoError(t, env.reconciler.Process(ctx, claimed))

	draw, err = env.drawRepo.GetByID(ctx, "d1")
	require.NoError(t, err)
	assert.True(t, draw.PrizeClaimed)

	account, err := env.rewards.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 100, account.Balance, "win reward credited on completion")
}

func TestProcessInitiativeAndVote(t *testing.T) {
	env := newReconcilerEnv(t, nil)
	ctx := context.Background()

	created := event(t, chain.EventInitiativeCreated, "0xi1", 0, chain.InitiativeCreatedPayload{
		InitiativeID:   "i1",
		Name:           "Treasury",
		Description:    "Allocate the treasury",
		VotingDeadline: time.Now().Add(24 * time.Hour).Unix(),
		Options:        []string{"Grants", "Buyback"},
		Creator:        "creator",
	})
	require.NoError(t, env.reconciler.Process(ctx, created))

	vote := event(t, chain.EventVoteCast, "0xv1", 0, chain.VoteCastPayload{
		InitiativeID:    "i1",
		Voter:           "alice",
		OptionID:        "2",
		BalanceSnapshot: 40,
	})
	require.NoError(t, env.reconciler.Process(ctx, vote))

	initiative, err := env.votingRepo.GetByID(ctx, "i1")
	require.NoError(t, err)
	assert.EqualValues(t, 1, initiative.TotalVotes)
	assert.EqualValues(t, 40, initiative.Option("2").VoteWeight)

	creator, err := env.rewards.GetAccount(ctx, "creator")
	require.NoError(t, err)
	assert.EqualValues(t, 25, creator.Balance)

	voter, err := env.rewards.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 5, voter.Balance)
}

func TestProcessTokenMinted(t *testing.T) {
	env := newReconcilerEnv(t, nil)
	ctx := context.Background()

	mint := event(t, chain.EventTokenMinted, "0xm1", 0, chain.TokenMintedPayload{
		Recipient: "alice",
		Amount:    5,
		Reason:    "voting",
	})
	require.NoError(t, env.reconciler.Process(ctx, mint))

	account, err := env.rewards.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 5, account.Balance)

	// Non-reward mints (transfers, bridge moves) are acknowledged untouched.
	transfer := event(t, chain.EventTokenMinted, "0xm2", 0, chain.TokenMintedPayload{
		Recipient: "alice",
		Amount:    500,
		Reason:    "bridge_transfer",
	})
	require.NoError(t, env.reconciler.Process(ctx, transfer))

	account, err = env.rewards.GetAccount(ctx, "alice")
	require.NoError(t, err)
	assert.EqualValues(t, 5, account.Balance)
}

func TestProcessDropsMalformedEvent(t *testing.T) {
	env := newReconcilerEnv(t, nil)

	bad := &chain.Event{Kind: chain.EventDrawEntered, LogIndex: 0}
	require.NoError(t, env.reconciler.Process(context.Background(), bad))
}

func TestProcessDropsForeignContract(t *testing.T) {
	addresses := &chain.Addresses{
		DrawManager: map[int64]string{84532: "0xknown"},
	}
	env := newReconcilerEnv(t, addresses)
	ctx := context.Background()

	foreign := event(t, chain.EventDrawEntered, "0xe1", 0, chain.DrawEnteredPayload{
		DrawID: "d1", Participant: "alice", EntryFee: 10,
	})
	foreign.Contract = "0xsomeoneelse"
	require.NoError(t, env.reconciler.Process(ctx, foreign))

	seen, err := env.ledger.Seen(ctx, foreign.Ref())
	require.NoError(t, err)
	assert.False(t, seen, "dropped events are not recorded as applied")
}

func TestProcessDomainRejectionIsTerminal(t *testing.T) {
	env := newReconcilerEnv(t, nil)
	ctx := context.Background()

	// Entry for a draw that does not exist: rejected by the engine, but the
	// event still reaches a terminal outcome and is marked applied.
	orphan := event(t, chain.EventDrawEntered, "0xe9", 0, chain.DrawEnteredPayload{
		DrawID: "missing", Participant: "alice", EntryFee: 10,
	})
	require.NoError(t, env.reconciler.Process(ctx, orphan))

	seen, err := env.ledger.Seen(ctx, orphan.Ref())
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestProcessUnknownKindIsAcknowledged(t *testing.T) {
	env := newReconcilerEnv(t, nil)
	ctx := context.Background()

	unknown := event(t, chain.EventKind("StakeDeposited"), "0xs1", 0, map[string]string{"who": "alice"})
	require.NoError(t, env.reconciler.Process(ctx, unknown))

	seen, err := env.ledger.Seen(ctx, unknown.Ref())
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestProcessPropagatesLedgerFailure(t *testing.T) {
	env := newReconcilerEnv(t, nil)
	env.reconciler.ledger = failingLedger{}

	evt := event(t, chain.EventKind("StakeDeposited"), "0xs1", 0, map[string]string{})
	err := env.reconciler.Process(context.Background(), evt)
	require.Error(t, err, "store failures must leave the event for redelivery")
}

type failingLedger struct{}

func (failingLedger) Seen(ctx context.Context, ref string) (bool, error) {
	return false, errors.New("store unavailable")
}

func (failingLedger) MarkApplied(ctx context.Context, event *chain.Event) error {
	return errors.New("store unavailable")
}
