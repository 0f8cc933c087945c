package workers

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/common/logger"
	drawrepo "veridraw-backend/internal/features/draw/repository"
	drawservice "veridraw-backend/internal/features/draw/service"
	votingrepo "veridraw-backend/internal/features/voting/repository"
	votingservice "veridraw-backend/internal/features/voting/service"
)

// SeedSource produces the 256-bit random seed used when a draw reaches its
// timestamp without a completion event from the chain.
type SeedSource interface {
	Seed(ctx context.Context) (string, error)
}

type cryptoSeedSource struct{}

// NewCryptoSeedSource returns a SeedSource backed by crypto/rand.
func NewCryptoSeedSource() SeedSource {
	return cryptoSeedSource{}
}

func (cryptoSeedSource) Seed(_ context.Context) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random seed: %w", err)
	}
	return "0x" + hex.EncodeToString(buf), nil
}

// Scheduler sweeps the store on an interval and drives overdue aggregates to
// their terminal state: draws past their timestamp are executed, initiatives
// past their deadline are completed.
type Scheduler struct {
	interval time.Duration
	seeds    SeedSource
	draws    drawservice.DrawService
	drawRepo drawrepo.DrawRepository
	voting   votingservice.VotingService
	voteRepo votingrepo.VotingRepository
	now      func() time.Time
	log      zerolog.Logger

	// Draws with no participants stay pending forever; remember them so each
	// sweep does not re-log the same rejection.
	skipped map[string]bool
}

func NewScheduler(
	interval time.Duration,
	seeds SeedSource,
	draws drawservice.DrawService,
	drawRepo drawrepo.DrawRepository,
	voting votingservice.VotingService,
	voteRepo votingrepo.VotingRepository,
) *Scheduler {
	return &Scheduler{
		interval: interval,
		seeds:    seeds,
		draws:    draws,
		drawRepo: drawRepo,
		voting:   voting,
		voteRepo: voteRepo,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.Component("scheduler"),
		skipped:  make(map[string]bool),
	}
}

// Run sweeps until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("scheduler started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("scheduler stopping")
			return ctx.Err()
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass over both engines. Failures are logged and retried on
// the next tick; one bad aggregate never blocks the rest.
func (s *Scheduler) Sweep(ctx context.Context) {
	s.sweepDraws(ctx)
	s.sweepInitiatives(ctx)
}

func (s *Scheduler) sweepDraws(ctx context.Context) {
	pending, err := s.drawRepo.GetPendingExecution(ctx, s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list draws pending execution")
		return
	}

	for _, draw := range pending {
		if s.skipped[draw.ID] {
			continue
		}

		seed, err := s.seeds.Seed(ctx)
		if err != nil {
			s.log.Error().Err(err).Str("draw_id", draw.ID).Msg("failed to obtain random seed")
			continue
		}

		_, err = s.draws.Execute(ctx, draw.ID, seed)
		switch {
		case err == nil:
			s.log.Info().Str("draw_id", draw.ID).Msg("executed overdue draw")
		case apperrors.Is(err, apperrors.CodeNoParticipants):
			s.skipped[draw.ID] = true
			s.log.Warn().Str("draw_id", draw.ID).Msg("draw has no participants, leaving unresolved")
		case apperrors.Is(err, apperrors.CodeAlreadyDone):
			// Lost the race to a chain completion event; nothing to do.
		default:
			s.log.Error().Err(err).Str("draw_id", draw.ID).Msg("failed to execute overdue draw")
		}
	}
}

func (s *Scheduler) sweepInitiatives(ctx context.Context) {
	pending, err := s.voteRepo.GetPendingCompletion(ctx, s.now())
	if err != nil {
		s.log.Error().Err(err).Msg("failed to list initiatives pending completion")
		return
	}

	for _, initiative := range pending {
		_, err := s.voting.Complete(ctx, initiative.ID)
		switch {
		case err == nil:
			s.log.Info().Str("initiative_id", initiative.ID).Msg("completed overdue initiative")
		case apperrors.IsConflict(err):
			// Already completed by a concurrent sweep or command.
		default:
			s.log.Error().Err(err).Str("initiative_id", initiative.ID).Msg("failed to complete overdue initiative")
		}
	}
}
