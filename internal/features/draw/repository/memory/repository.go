package memory

import (
	"context"
	"sync"
	"time"

	"veridraw-backend/internal/common/apperrors"
	"veridraw-backend/internal/features/draw/models"
	"veridraw-backend/internal/features/draw/repository"
)

// memoryRepository is a mutex-guarded in-process implementation used by tests
// and local development.
type memoryRepository struct {
	mu           sync.Mutex
	draws        map[string]*models.Draw
	participants map[string][]*models.Participant // drawID -> insertion order
	byUser       map[string]map[string]*models.Participant
	entries      map[string][]string // userID -> drawIDs
	wins         map[string][]string
}

func NewDrawRepository() repository.DrawRepository {
	return &memoryRepository{
		draws:        make(map[string]*models.Draw),
		participants: make(map[string][]*models.Participant),
		byUser:       make(map[string]map[string]*models.Participant),
		entries:      make(map[string][]string),
		wins:         make(map[string][]string),
	}
}

func (r *memoryRepository) Create(ctx context.Context, draw *models.Draw) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.draws[draw.ID]; ok {
		return apperrors.Newf(apperrors.CodeConflict, "draw %s already exists", draw.ID)
	}
	copied := *draw
	r.draws[draw.ID] = &copied
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*models.Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.get(id)
}

func (r *memoryRepository) List(ctx context.Context) ([]*models.Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	draws := make([]*models.Draw, 0, len(r.draws))
	for _, draw := range r.draws {
		copied := *draw
		draws = append(draws, &copied)
	}
	return draws, nil
}

func (r *memoryRepository) AddParticipant(ctx context.Context, p *models.Participant, maxParticipants int, now time.Time) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	draw, err := r.get(p.DrawID)
	if err != nil {
		return nil, err
	}
	if !draw.AcceptsEntries(now) {
		return nil, repository.ErrDrawClosed
	}
	if existing, ok := r.byUser[p.DrawID][p.UserID]; ok {
		copied := *existing
		return &copied, repository.ErrAlreadyEntered
	}
	if maxParticipants > 0 && draw.ParticipantCount >= maxParticipants {
		return nil, repository.ErrCapacity
	}

	stored := *p
	stored.EntrySeq = draw.ParticipantCount
	r.draws[p.DrawID].ParticipantCount++
	r.participants[p.DrawID] = append(r.participants[p.DrawID], &stored)
	if r.byUser[p.DrawID] == nil {
		r.byUser[p.DrawID] = make(map[string]*models.Participant)
	}
	r.byUser[p.DrawID][p.UserID] = &stored
	r.entries[p.UserID] = append(r.entries[p.UserID], p.DrawID)

	copied := stored
	return &copied, nil
}

func (r *memoryRepository) GetParticipants(ctx context.Context, drawID string) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	participants := make([]*models.Participant, 0, len(r.participants[drawID]))
	for _, p := range r.participants[drawID] {
		copied := *p
		participants = append(participants, &copied)
	}
	return participants, nil
}

func (r *memoryRepository) IsParticipant(ctx context.Context, drawID, userID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.byUser[drawID][userID]
	return ok, nil
}

func (r *memoryRepository) CompleteDraw(ctx context.Context, drawID, winnerID, randomSeed string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	draw, err := r.get(drawID)
	if err != nil {
		return err
	}
	if draw.WinnerID != "" {
		return repository.ErrAlreadyExecuted
	}

	r.draws[drawID].WinnerID = winnerID
	r.draws[drawID].RandomSeed = randomSeed
	r.wins[winnerID] = append(r.wins[winnerID], drawID)
	return nil
}

func (r *memoryRepository) SetPrizeClaimed(ctx context.Context, drawID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	draw, err := r.get(drawID)
	if err != nil {
		return err
	}
	if draw.PrizeClaimed {
		return apperrors.New(apperrors.CodeAlreadyClaimed, "prize already claimed")
	}
	r.draws[drawID].PrizeClaimed = true
	return nil
}

func (r *memoryRepository) Cancel(ctx context.Context, drawID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.get(drawID); err != nil {
		return err
	}
	r.draws[drawID].Cancelled = true
	return nil
}

func (r *memoryRepository) GetEnteredDrawIDs(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.entries[userID]...), nil
}

func (r *memoryRepository) GetWonDrawIDs(ctx context.Context, userID string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.wins[userID]...), nil
}

func (r *memoryRepository) GetPendingExecution(ctx context.Context, now time.Time) ([]*models.Draw, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	pending := make([]*models.Draw, 0)
	for _, draw := range r.draws {
		if draw.Executable(now) && now.After(draw.DrawTimestamp) {
			copied := *draw
			pending = append(pending, &copied)
		}
	}
	return pending, nil
}

func (r *memoryRepository) get(id string) (*models.Draw, error) {
	draw, ok := r.draws[id]
	if !ok {
		return nil, repository.ErrDrawNotFound
	}
	copied := *draw
	return &copied, nil
}
