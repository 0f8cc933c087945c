package service

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/common/logger"
	"veridraw-backend/internal/features/draw/models"
	"veridraw-backend/internal/features/draw/repository"
	tokenmodels "veridraw-backend/internal/features/token/models"
	tokenservice "veridraw-backend/internal/features/token/service"
)

type drawService struct {
	repo    repository.DrawRepository
	rewards tokenservice.RewardService
	limits  models.DrawLimits
	now     func() time.Time
	log     zerolog.Logger
}

func NewDrawService(repo repository.DrawRepository, rewards tokenservice.RewardService, limits models.DrawLimits) DrawService {
	return &drawService{
		repo:    repo,
		rewards: rewards,
		limits:  limits,
		now:     func() time.Time { return time.Now().UTC() },
		log:     logger.Component("draw_service"),
	}
}

func (s *drawService) Create(ctx context.Context, input *models.DrawCreate) (*models.Draw, error) {
	now := s.now()

	if strings.TrimSpace(input.Name) == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "draw name is required")
	}
	if input.PrizePool <= s.limits.MinPrizePool {
		return nil, apperrors.Newf(apperrors.CodeValidation, "prize pool must exceed %d", s.limits.MinPrizePool)
	}
	if input.EntryFee < s.limits.MinEntryFee || input.EntryFee > s.limits.MaxEntryFee {
		return nil, apperrors.Newf(apperrors.CodeValidation, "entry fee must be within [%d, %d]", s.limits.MinEntryFee, s.limits.MaxEntryFee)
	}
	if !input.EntryDeadline.After(now) {
		return nil, apperrors.New(apperrors.CodeValidation, "entry deadline must be in the future")
	}
	if !input.DrawTimestamp.After(input.EntryDeadline) {
		return nil, apperrors.New(apperrors.CodeValidation, "draw timestamp must be after the entry deadline")
	}
	if input.DrawTimestamp.Sub(now) > s.limits.MaxDuration {
		return nil, apperrors.Newf(apperrors.CodeValidation, "draw duration exceeds maximum %s", s.limits.MaxDuration)
	}
	if !input.EntryOpensAt.IsZero() && !input.EntryOpensAt.Before(input.EntryDeadline) {
		return nil, apperrors.New(apperrors.CodeValidation, "entry opening must precede the entry deadline")
	}

	draw := &models.Draw{
		ID:            input.ID,
		Name:          strings.TrimSpace(input.Name),
		Description:   strings.TrimSpace(input.Description),
		PrizePool:     input.PrizePool,
		EntryFee:      input.EntryFee,
		EntryOpensAt:  input.EntryOpensAt,
		EntryDeadline: input.EntryDeadline,
		DrawTimestamp: input.DrawTimestamp,
		CreatorID:     input.CreatorID,
		CreatedAt:     now,
	}
	if draw.ID == "" {
		draw.ID = uuid.New().String()
	}

	if err := s.repo.Create(ctx, draw); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("draw_id", draw.ID).
		Int64("prize_pool", draw.PrizePool).
		Time("entry_deadline", draw.EntryDeadline).
		Msg("draw created")

	return draw, nil
}

func (s *drawService) Enter(ctx context.Context, drawID, userID string, paidFee int64, txRef string) (*models.Participant, error) {
	now := s.now()

	draw, err := s.repo.GetByID(ctx, drawID)
	if err != nil {
		return nil, err
	}
	if !draw.AcceptsEntries(now) {
		return nil, repository.ErrDrawClosed
	}
	if paidFee != draw.EntryFee {
		return nil, apperrors.Newf(apperrors.CodeFeeMismatch, "paid fee %d does not match entry fee %d", paidFee, draw.EntryFee)
	}

	participant := &models.Participant{
		DrawID:    drawID,
		UserID:    userID,
		PaidFee:   paidFee,
		TxRef:     txRef,
		EnteredAt: now,
	}

	stored, err := s.repo.AddParticipant(ctx, participant, s.limits.MaxParticipants, now)
	if errors.Is(err, repository.ErrAlreadyEntered) {
		// Redelivery of the same transaction is a replay: the entry committed
		// but the reward credit may not have. Re-issue the idempotent credit
		// and report success.
		if stored != nil && stored.TxRef == txRef && txRef != "" {
			if err := s.creditEntry(ctx, userID, drawID, txRef); err != nil {
				return nil, err
			}
			return stored, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if err := s.creditEntry(ctx, userID, drawID, txRef); err != nil {
		// The entry is durable; the credit is recovered on event replay.
		return nil, err
	}

	s.log.Info().
		Str("draw_id", drawID).
		Str("user_id", userID).
		Int("entry_seq", stored.EntrySeq).
		Msg("draw entry admitted")

	return stored, nil
}

func (s *drawService) creditEntry(ctx context.Context, userID, drawID, txRef string) error {
	_, err := s.rewards.CreditScheduled(ctx, userID, tokenmodels.ReasonDrawEntry, tokenmodels.EntrySourceRef(drawID, txRef))
	if apperrors.IsConflict(err) {
		return nil
	}
	return err
}

func (s *drawService) creditWin(ctx context.Context, userID, drawID string) error {
	_, err := s.rewards.CreditScheduled(ctx, userID, tokenmodels.ReasonDrawWin, tokenmodels.WinSourceRef(drawID))
	if apperrors.IsConflict(err) {
		return nil
	}
	return err
}

func (s *drawService) Execute(ctx context.Context, drawID, randomSeed string) (*models.Draw, error) {
	now := s.now()

	draw, err := s.repo.GetByID(ctx, drawID)
	if err != nil {
		return nil, err
	}
	if draw.Cancelled {
		return nil, apperrors.New(apperrors.CodeState, "draw is cancelled")
	}
	if draw.WinnerID != "" {
		// The completion may have committed without its win credit (crash
		// between the two commits). The source ref is stable, so re-issuing
		// here recovers the credit on replay and dedups otherwise.
		if err := s.creditWin(ctx, draw.WinnerID, drawID); err != nil {
			return nil, err
		}
		return nil, repository.ErrAlreadyExecuted
	}
	if !now.After(draw.EntryDeadline) {
		return nil, apperrors.New(apperrors.CodeNotYetClosed, "entry window is still open")
	}

	participants, err := s.repo.GetParticipants(ctx, drawID)
	if err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		return nil, apperrors.New(apperrors.CodeNoParticipants, "draw has no participants")
	}

	index, err := winnerIndex(randomSeed, len(participants))
	if err != nil {
		return nil, err
	}
	winner := participants[index]

	if err := s.repo.CompleteDraw(ctx, drawID, winner.UserID, randomSeed); err != nil {
		return nil, err
	}

	if err := s.creditWin(ctx, winner.UserID, drawID); err != nil {
		// The completion is durable; the credit is recovered on event replay.
		return nil, err
	}

	s.log.Info().
		Str("draw_id", drawID).
		Str("winner_id", winner.UserID).
		Int("winner_index", index).
		Int("participants", len(participants)).
		Msg("draw executed")

	draw.WinnerID = winner.UserID
	draw.RandomSeed = randomSeed
	return draw, nil
}

// winnerIndex computes seed mod count over the opaque 256-bit seed. The seed
// comes from an external verifiable-randomness source; the engine only
// consumes and records it.
func winnerIndex(randomSeed string, count int) (int, error) {
	hexSeed := strings.TrimPrefix(strings.TrimSpace(randomSeed), "0x")
	seed, ok := new(big.Int).SetString(hexSeed, 16)
	if !ok || hexSeed == "" {
		return 0, apperrors.Newf(apperrors.CodeValidation, "random seed %q is not a hex value", randomSeed)
	}

	index := new(big.Int).Mod(seed, big.NewInt(int64(count)))
	return int(index.Int64()), nil
}

func (s *drawService) ClaimPrize(ctx context.Context, drawID, userID string) (*models.Draw, error) {
	draw, err := s.repo.GetByID(ctx, drawID)
	if err != nil {
		return nil, err
	}
	if draw.WinnerID == "" {
		return nil, apperrors.New(apperrors.CodeState, "draw is not completed")
	}
	if draw.WinnerID != userID {
		return nil, apperrors.New(apperrors.CodeNotWinner, "user is not the winner of this draw")
	}

	// The claim flag flips exactly once; prize pool release is delegated to
	// the settlement collaborator.
	if err := s.repo.SetPrizeClaimed(ctx, drawID); err != nil {
		return nil, err
	}

	s.log.Info().Str("draw_id", drawID).Str("user_id", userID).Msg("prize claimed")

	draw.PrizeClaimed = true
	return draw, nil
}

func (s *drawService) Cancel(ctx context.Context, drawID string) error {
	now := s.now()

	draw, err := s.repo.GetByID(ctx, drawID)
	if err != nil {
		return err
	}

	switch draw.StatusAt(now) {
	case models.DrawStatusCompleted:
		return apperrors.New(apperrors.CodeState, "draw already completed")
	case models.DrawStatusCancelled:
		return nil
	case models.DrawStatusEntryClosed:
		return apperrors.New(apperrors.CodeState, "entries closed, draw pending execution")
	}

	// Refund obligations are triggered by the settlement collaborator.
	if err := s.repo.Cancel(ctx, drawID); err != nil {
		return err
	}

	s.log.Info().Str("draw_id", drawID).Msg("draw cancelled")
	return nil
}

func (s *drawService) GetByID(ctx context.Context, drawID string) (*models.Draw, error) {
	return s.repo.GetByID(ctx, drawID)
}

func (s *drawService) List(ctx context.Context, status models.DrawStatus) ([]*models.Draw, error) {
	draws, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	filtered := make([]*models.Draw, 0, len(draws))
	for _, draw := range draws {
		if status != "" && draw.StatusAt(now) != status {
			continue
		}
		filtered = append(filtered, draw)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})
	return filtered, nil
}

func (s *drawService) GetParticipants(ctx context.Context, drawID string) ([]*models.Participant, error) {
	if _, err := s.repo.GetByID(ctx, drawID); err != nil {
		return nil, err
	}
	return s.repo.GetParticipants(ctx, drawID)
}
