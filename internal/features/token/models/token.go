package models

import (
	"fmt"
	"time"
)

// RewardReason names the qualifying action behind a credit.
type RewardReason string

const (
	ReasonDrawEntry          RewardReason = "draw_entry"
	ReasonVoting             RewardReason = "voting"
	ReasonDrawWin            RewardReason = "draw_win"
	ReasonInitiativeCreation RewardReason = "initiative_creation"
)

// Valid reports whether the reason is one of the fixed schedule reasons.
func (r RewardReason) Valid() bool {
	switch r {
	case ReasonDrawEntry, ReasonVoting, ReasonDrawWin, ReasonInitiativeCreation:
		return true
	}
	return false
}

// Schedule maps reasons to fixed credit amounts. It is injected at
// construction; the amounts are configuration, not literals at call sites.
type Schedule map[RewardReason]int64

// AmountFor returns the scheduled amount, or 0 for an unknown reason.
func (s Schedule) AmountFor(reason RewardReason) int64 {
	return s[reason]
}

// TokenAccount is the derived balance state for one user.
type TokenAccount struct {
	UserID      string    `json:"user_id"`
	Balance     int64     `json:"balance"`
	TotalEarned int64     `json:"total_earned"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RewardEvent is one immutable credit in the audit trail. Account state is a
// fold over these events plus any non-reward transfers.
type RewardEvent struct {
	ID        string       `json:"id"`
	UserID    string       `json:"user_id"`
	Amount    int64        `json:"amount"`
	Reason    RewardReason `json:"reason"`
	SourceRef string       `json:"source_ref"`
	CreatedAt time.Time    `json:"created_at"`
}

// Source reference builders. The (sourceRef, reason) pair is the idempotency
// key, so the ref must pin both the aggregate and the originating transaction.

func EntrySourceRef(drawID, txRef string) string {
	return fmt.Sprintf("draw:%s:%s", drawID, txRef)
}

func WinSourceRef(drawID string) string {
	return fmt.Sprintf("draw:%s:winner", drawID)
}

func VoteSourceRef(initiativeID, txRef string) string {
	return fmt.Sprintf("initiative:%s:%s", initiativeID, txRef)
}

func CreationSourceRef(initiativeID string) string {
	return fmt.Sprintf("initiative:%s:created", initiativeID)
}
