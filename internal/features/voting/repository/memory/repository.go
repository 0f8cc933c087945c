package memory

import (
	"context"
	"sync"
	"time"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/features/voting/models"
	"veridraw-backend/internal/features/voting/repository"
)

// memoryRepository is a mutex-guarded in-process implementation used by tests
// and local development.
type memoryRepository struct {
	mu          sync.Mutex
	initiatives map[string]*models.Initiative
	voters      map[string][]*models.Voter
	byUser      map[string]map[string]*models.Voter
	voted       map[string][]string
	created     map[string][]string
}

func NewVotingRepository() repository.VotingRepository {
	return &memoryRepository{
		initiatives: make(map[string]*models.Initiative),
		voters:      make(map[string][]*models.Voter),
		byUser:      make(map[string]map[string]*models.Voter),
		voted:       make(map[string][]string),
		created:     make(map[string][]string),
	}
}

func (r *memoryRepository) Create(ctx context.Context, initiative *models.Initiative) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.initiatives[initiative.ID]; ok {
		return apperrors.Newf(apperrors.CodeConflict, "initiative %s already exists", initiative.ID)
	}
	r.initiatives[initiative.ID] = cloneInitiative(initiative)
	r.created[initiative.CreatorID] = append(r.created[initiative.CreatorID], initiative.ID)
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*models.Initiative, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *memoryRepository) List(ctx context.Context) ([]*models.Initiative, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	initiatives := make([]*models.Initiative, 0, len(r.initiatives))
	for _, initiative := range r.initiatives {
		initiatives = append(initiatives, cloneInitiative(initiative))
	}
	return initiatives, nil
}

func (r *memoryRepository) AddVote(ctx context.Context, voter *models.Voter, now time.Time) (*models.Voter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	initiative, ok := r.initiatives[voter.InitiativeID]
	if !ok {
		return nil, repository.ErrInitiativeNotFound
	}
	if !initiative.AcceptsVotes(now) {
		return nil, repository.ErrVotingClosed
	}
	if existing, ok := r.byUser[voter.InitiativeID][voter.UserID]; ok {
		copied := *existing
		return &copied, repository.ErrAlreadyVoted
	}

	option := initiative.Option(voter.OptionID)
	if option == nil {
		return nil, apperrors.Newf(apperrors.CodeInvalidOption, "option %s does not exist on initiative %s", voter.OptionID, voter.InitiativeID)
	}

	option.Votes++
	option.VoteWeight += voter.Weight
	initiative.TotalVotes++
	initiative.TotalWeight += voter.Weight

	stored := *voter
	r.voters[voter.InitiativeID] = append(r.voters[voter.InitiativeID], &stored)
	if r.byUser[voter.InitiativeID] == nil {
		r.byUser[voter.InitiativeID] = make(map[string]*models.Voter)
	}
	r.byUser[voter.InitiativeID][voter.UserID] = &stored
	r.voted[voter.UserID] = append(r.voted[voter.UserID], voter.InitiativeID)

	copied := stored
	return &copied, nil
}

func (r *memoryRepository) GetVoters(ctx context.Context, initiativeID string) ([]*models.Voter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	voters := make([]*models.Voter, 0, len(r.voters[initiativeID]))
	for _, voter := range r.voters[initiativeID] {
		copied := *voter
		voters = append(voters, &copied)
	}
	return voters, nil
}

func (r *memoryRepository) Complete(ctx context.Context, initiativeID, winningOptionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	initiative, ok := r.initiatives[initiativeID]
	if !ok {
		return repository.ErrInitiativeNotFound
	}
	if initiative.Completed {
		return repository.ErrAlreadyCompleted
	}
	initiative.Completed = true
	initiative.WinningOptionID = winningOptionID
	return nil
}

func (r *memoryRepository) Cancel(ctx context.Context, initiativeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	initiative, ok := r.initiatives[initiativeID]
	if !ok {
		return repository.ErrInitiativeNotFound
	}
	initiative.Cancelled = true
	return nil
}

func (r *memoryRepository) GetVotedInitiativeIDs(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.voted[userID]...), nil
}

func (r *memoryRepository) GetCreatedInitiativeIDs(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.created[userID]...), nil
}

func (r *memoryRepository) GetPendingCompletion(ctx context.Context, now time.Time) ([]*models.Initiative, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]*models.Initiative, 0)
	for _, initiative := range r.initiatives {
		if initiative.StatusAt(now) == models.InitiativeStatusVotingClosed {
			pending = append(pending, cloneInitiative(initiative))
		}
	}
	return pending, nil
}

func (r *memoryRepository) get(id string) (*models.Initiative, error) {
	initiative, ok := r.initiatives[id]
	if !ok {
		return nil, repository.ErrInitiativeNotFound
	}
	return cloneInitiative(initiative), nil
}

func cloneInitiative(initiative *models.Initiative) *models.Initiative {
	copied := *initiative
	copied.Options = append([]models.VotingOption(nil), initiative.Options...)
	return &copied
}
