package service

import (
	"context"

	drawrepo "veridraw-backend/internal/features/draw/repository"
	tokenrepo "veridraw-backend/internal/features/token/repository"
	"veridraw-backend/internal/features/user/models"
	votingrepo "veridraw-backend/internal/features/voting/repository"
)

// ProfileService assembles user profiles from the derived tables. Reads only;
// it never touches engine state.
type ProfileService interface {
	GetProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}

type profileService struct {
	draws  drawrepo.DrawRepository
	voting votingrepo.VotingRepository
	tokens tokenrepo.TokenRepository
}

func NewProfileService(draws drawrepo.DrawRepository, voting votingrepo.VotingRepository, tokens tokenrepo.TokenRepository) ProfileService {
	return &profileService{draws: draws, voting: voting, tokens: tokens}
}

func (s *profileService) GetProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	account, err := s.tokens.GetAccount(ctx, userID)
	if err != nil {
		return nil, err
	}
	entered, err := s.draws.GetEnteredDrawIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	won, err := s.draws.GetWonDrawIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	voted, err := s.voting.GetVotedInitiativeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	created, err := s.voting.GetCreatedInitiativeIDs(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &models.UserProfile{
		UserID:      userID,
		Balance:     account.Balance,
		TotalEarned: account.TotalEarned,
		Stats: models.UserStats{
			TotalEntries:       len(entered),
			TotalVotes:         len(voted),
			WinsCount:          len(won),
			InitiativesCreated: len(created),
		},
		EnteredDrawIDs:       entered,
		WonDrawIDs:           won,
		VotedInitiativeIDs:   voted,
		CreatedInitiativeIDs: created,
	}, nil
}
