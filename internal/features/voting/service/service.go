package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/common/logger"
	tokenmodels "veridraw-backend/internal/features/token/models"
	tokenservice "veridraw-backend/internal/features/token/service"
	"veridraw-backend/internal/features/voting/models"
	"veridraw-backend/internal/features/voting/repository"
)

type votingService struct {
	repo    repository.VotingRepository
	rewards tokenservice.RewardService
	limits  models.VotingLimits
	now     func() time.Time
	log     zerolog.Logger
}

func NewVotingService(repo repository.VotingRepository, rewards tokenservice.RewardService, limits models.VotingLimits) VotingService {
	return &votingService{
		repo:    repo,
		rewards: rewards,
		limits:  limits,
		now:     func() time.Time { return time.Now().UTC() },
		log:     logger.Component("voting_service"),
	}
}

func (s *votingService) Create(ctx context.Context, input *models.InitiativeCreate) (*models.Initiative, error) {
	now := s.now()

	name := strings.TrimSpace(input.Name)
	description := strings.TrimSpace(input.Description)
	if name == "" || description == "" {
		return nil, apperrors.New(apperrors.CodeValidation, "initiative name and description are required")
	}
	if len(input.OptionTexts) < s.limits.MinOptions || len(input.OptionTexts) > s.limits.MaxOptions {
		return nil, apperrors.Newf(apperrors.CodeValidation, "initiative requires between %d and %d options", s.limits.MinOptions, s.limits.MaxOptions)
	}
	if input.VotingDeadline.Before(now.Add(s.limits.MinLeadTime)) {
		return nil, apperrors.Newf(apperrors.CodeValidation, "voting deadline must be at least %s away", s.limits.MinLeadTime)
	}
	if input.VotingDeadline.Sub(now) > s.limits.MaxDuration {
		return nil, apperrors.Newf(apperrors.CodeValidation, "voting duration exceeds maximum %s", s.limits.MaxDuration)
	}
	if !input.VotingOpensAt.IsZero() && !input.VotingOpensAt.Before(input.VotingDeadline) {
		return nil, apperrors.New(apperrors.CodeValidation, "voting opening must precede the deadline")
	}

	options := make([]models.VotingOption, 0, len(input.OptionTexts))
	seen := make(map[string]struct{}, len(input.OptionTexts))
	for i, text := range input.OptionTexts {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil, apperrors.New(apperrors.CodeValidation, "option text cannot be empty")
		}
		folded := strings.ToLower(trimmed)
		if _, dup := seen[folded]; dup {
			return nil, apperrors.Newf(apperrors.CodeValidation, "duplicate option text %q", trimmed)
		}
		seen[folded] = struct{}{}
		options = append(options, models.VotingOption{
			ID:   strconv.Itoa(i + 1),
			Text: trimmed,
		})
	}

	initiative := &models.Initiative{
		ID:             input.ID,
		Name:           name,
		Description:    description,
		VotingOpensAt:  input.VotingOpensAt,
		VotingDeadline: input.VotingDeadline,
		CreatorID:      input.CreatorID,
		Options:        options,
		CreatedAt:      now,
	}
	if initiative.ID == "" {
		initiative.ID = uuid.New().String()
	}

	if err := s.repo.Create(ctx, initiative); err != nil {
		if apperrors.IsConflict(err) && input.ID != "" {
			// The record may have committed without its creation credit
			// (crash between the two commits). A replay carries the same id
			// and creator; re-issue the idempotent credit and report the
			// stored state. Anything else keeps the conflict.
			stored, getErr := s.repo.GetByID(ctx, input.ID)
			if getErr == nil && stored.CreatorID == input.CreatorID {
				if cerr := s.creditCreation(ctx, input.CreatorID, stored.ID); cerr != nil {
					return nil, cerr
				}
				return stored, nil
			}
		}
		return nil, err
	}

	if err := s.creditCreation(ctx, input.CreatorID, initiative.ID); err != nil {
		// The record is durable; the credit is recovered on event replay.
		return nil, err
	}

	s.log.Info().
		Str("initiative_id", initiative.ID).
		Int("options", len(options)).
		Time("voting_deadline", initiative.VotingDeadline).
		Msg("initiative created")

	return initiative, nil
}

func (s *votingService) CastVote(ctx context.Context, initiativeID, userID, optionID string, balanceSnapshot int64, txRef string) (*models.Voter, error) {
	now := s.now()

	initiative, err := s.repo.GetByID(ctx, initiativeID)
	if err != nil {
		return nil, err
	}
	if !initiative.AcceptsVotes(now) {
		return nil, repository.ErrVotingClosed
	}
	if initiative.Option(optionID) == nil {
		return nil, apperrors.Newf(apperrors.CodeInvalidOption, "option %s does not exist on initiative %s", optionID, initiativeID)
	}
	if balanceSnapshot < s.limits.MinVoteBalance {
		return nil, apperrors.Newf(apperrors.CodeInsufficientBalance, "balance %d below minimum voting balance %d", balanceSnapshot, s.limits.MinVoteBalance)
	}

	// One token, one vote-weight unit: the weight is the balance snapshot
	// the contract read at cast time.
	voter := &models.Voter{
		InitiativeID: initiativeID,
		UserID:       userID,
		OptionID:     optionID,
		Weight:       balanceSnapshot,
		TxRef:        txRef,
		VotedAt:      now,
	}

	stored, err := s.repo.AddVote(ctx, voter, now)
	if errors.Is(err, repository.ErrAlreadyVoted) {
		if stored != nil && stored.TxRef == txRef && txRef != "" {
			if err := s.creditVote(ctx, userID, initiativeID, txRef); err != nil {
				return nil, err
			}
			return stored, nil
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}

	if err := s.creditVote(ctx, userID, initiativeID, txRef); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("initiative_id", initiativeID).
		Str("user_id", userID).
		Str("option_id", optionID).
		Int64("weight", balanceSnapshot).
		Msg("vote admitted")

	return stored, nil
}

func (s *votingService) creditCreation(ctx context.Context, creatorID, initiativeID string) error {
	if creatorID == "" {
		return nil
	}
	_, err := s.rewards.CreditScheduled(ctx, creatorID, tokenmodels.ReasonInitiativeCreation, tokenmodels.CreationSourceRef(initiativeID))
	if apperrors.IsConflict(err) {
		return nil
	}
	return err
}

func (s *votingService) creditVote(ctx context.Context, userID, initiativeID, txRef string) error {
	_, err := s.rewards.CreditScheduled(ctx, userID, tokenmodels.ReasonVoting, tokenmodels.VoteSourceRef(initiativeID, txRef))
	if apperrors.IsConflict(err) {
		return nil
	}
	return err
}

func (s *votingService) Complete(ctx context.Context, initiativeID string) (*models.Initiative, error) {
	now := s.now()

	initiative, err := s.repo.GetByID(ctx, initiativeID)
	if err != nil {
		return nil, err
	}
	if initiative.Completed {
		return nil, repository.ErrAlreadyCompleted
	}
	if initiative.Cancelled {
		return nil, apperrors.New(apperrors.CodeState, "initiative is cancelled")
	}
	if !now.After(initiative.VotingDeadline) {
		return nil, apperrors.New(apperrors.CodeVotingStillOpen, "voting is still open")
	}

	// Votes are barred after the deadline, so the tally is frozen here.
	winning := initiative.WinningOption()
	winningID := ""
	if winning != nil {
		winningID = winning.ID
	}

	if err := s.repo.Complete(ctx, initiativeID, winningID); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("initiative_id", initiativeID).
		Str("winning_option", winningID).
		Int64("total_votes", initiative.TotalVotes).
		Msg("initiative completed")

	initiative.Completed = true
	initiative.WinningOptionID = winningID
	return initiative, nil
}

func (s *votingService) Cancel(ctx context.Context, initiativeID string) error {
	initiative, err := s.repo.GetByID(ctx, initiativeID)
	if err != nil {
		return err
	}
	if initiative.Completed {
		return repository.ErrAlreadyCompleted
	}

	if err := s.repo.Cancel(ctx, initiativeID); err != nil {
		return err
	}

	s.log.Info().Str("initiative_id", initiativeID).Msg("initiative cancelled")
	return nil
}

func (s *votingService) GetByID(ctx context.Context, initiativeID string) (*models.Initiative, error) {
	return s.repo.GetByID(ctx, initiativeID)
}

func (s *votingService) List(ctx context.Context, status models.InitiativeStatus) ([]*models.Initiative, error) {
	initiatives, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	filtered := make([]*models.Initiative, 0, len(initiatives))
	for _, initiative := range initiatives {
		if status != "" && initiative.StatusAt(now) != status {
			continue
		}
		filtered = append(filtered, initiative)
	}

	sort.Slice(filtered, func(i, j int) bool {
		return filtered[i].CreatedAt.Before(filtered[j].CreatedAt)
	})
	return filtered, nil
}

func (s *votingService) GetVoters(ctx context.Context, initiativeID string) ([]*models.Voter, error) {
	if _, err := s.repo.GetByID(ctx, initiativeID); err != nil {
		return nil, err
	}
	return s.repo.GetVoters(ctx, initiativeID)
}
