package memory

import (
	"context"
	"fmt"
	"sync"

	"veridraw-backend/internal/features/token/models"
	"veridraw-backend/internal/features/token/repository"
)

// memoryRepository is a mutex-guarded in-process implementation used by tests
// and local development. The production store is redis.
type memoryRepository struct {
	mu       sync.Mutex
	accounts map[string]*models.TokenAccount
	seen     map[string]string
	events   map[string][]*models.RewardEvent
}

func NewTokenRepository() repository.TokenRepository {
	return &memoryRepository{
		accounts: make(map[string]*models.TokenAccount),
		seen:     make(map[string]string),
		events:   make(map[string][]*models.RewardEvent),
	}
}

func seenKey(reason models.RewardReason, sourceRef string) string {
	return fmt.Sprintf("%s:%s", reason, sourceRef)
}

func (r *memoryRepository) Credit(ctx context.Context, event *models.RewardEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := seenKey(event.Reason, event.SourceRef)
	if _, ok := r.seen[key]; ok {
		return repository.ErrDuplicateEvent
	}

	account := r.account(event.UserID)
	account.Balance += event.Amount
	account.TotalEarned += event.Amount
	account.UpdatedAt = event.CreatedAt

	r.seen[key] = event.ID
	copied := *event
	r.events[event.UserID] = append(r.events[event.UserID], &copied)
	return nil
}

func (r *memoryRepository) Debit(ctx context.Context, userID string, amount int64, ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account := r.account(userID)
	if account.Balance < amount {
		return repository.ErrInsufficient
	}
	account.Balance -= amount
	return nil
}

func (r *memoryRepository) GetAccount(ctx context.Context, userID string) (*models.TokenAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *r.account(userID)
	return &copied, nil
}

func (r *memoryRepository) GetEvents(ctx context.Context, userID string) ([]*models.RewardEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	events := make([]*models.RewardEvent, 0, len(r.events[userID]))
	for _, event := range r.events[userID] {
		copied := *event
		events = append(events, &copied)
	}
	return events, nil
}

func (r *memoryRepository) account(userID string) *models.TokenAccount {
	if account, ok := r.accounts[userID]; ok {
		return account
	}
	account := &models.TokenAccount{UserID: userID}
	r.accounts[userID] = account
	return account
}
