package models

import (
	"time"
)

// InitiativeStatus is derived from the deadline and terminal flags, the same
// way draw status is.
type InitiativeStatus string

const (
	InitiativeStatusUpcoming InitiativeStatus = "upcoming"
	InitiativeStatusActive   InitiativeStatus = "active"
	// InitiativeStatusVotingClosed is the window after the deadline and
	// before the completion command lands: ballots barred, results pending.
	InitiativeStatusVotingClosed InitiativeStatus = "voting_closed"
	InitiativeStatusCompleted    InitiativeStatus = "completed"
	InitiativeStatusCancelled    InitiativeStatus = "cancelled"
)

// VotingOption is one choice on an initiative. Votes is the raw ballot count;
// VoteWeight is the sum of voter weights. They diverge because weight derives
// from token balance, and UIs show both.
type VotingOption struct {
	ID         string `json:"id"`
	Text       string `json:"text"`
	Votes      int64  `json:"votes"`
	VoteWeight int64  `json:"vote_weight"`
}

// Initiative is a community governance vote with multiple options and a
// deadline.
type Initiative struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	// VotingOpensAt is optional; zero means voting opens at creation.
	VotingOpensAt   time.Time      `json:"voting_opens_at,omitempty"`
	VotingDeadline  time.Time      `json:"voting_deadline"`
	CreatorID       string         `json:"creator_id"`
	Options         []VotingOption `json:"options"`
	TotalVotes      int64          `json:"total_votes"`
	TotalWeight     int64          `json:"total_weight"`
	Completed       bool           `json:"completed"`
	WinningOptionID string         `json:"winning_option_id,omitempty"`
	Cancelled       bool           `json:"cancelled"`
	CreatedAt       time.Time      `json:"created_at"`
}

// StatusAt computes the initiative status at the given instant.
func (i *Initiative) StatusAt(now time.Time) InitiativeStatus {
	if i.Cancelled {
		return InitiativeStatusCancelled
	}
	if i.Completed {
		return InitiativeStatusCompleted
	}
	if !i.VotingOpensAt.IsZero() && now.Before(i.VotingOpensAt) {
		return InitiativeStatusUpcoming
	}
	if !now.After(i.VotingDeadline) {
		return InitiativeStatusActive
	}
	return InitiativeStatusVotingClosed
}

// AcceptsVotes reports whether a ballot may be admitted at the instant.
func (i *Initiative) AcceptsVotes(now time.Time) bool {
	return i.StatusAt(now) == InitiativeStatusActive
}

// Option returns the option with the given id, or nil.
func (i *Initiative) Option(optionID string) *VotingOption {
	for idx := range i.Options {
		if i.Options[idx].ID == optionID {
			return &i.Options[idx]
		}
	}
	return nil
}

// WinningOption selects the option with maximal vote weight; ties break to
// the first-created option. Selection uses weight, never the raw count.
func (i *Initiative) WinningOption() *VotingOption {
	if len(i.Options) == 0 {
		return nil
	}
	best := &i.Options[0]
	for idx := 1; idx < len(i.Options); idx++ {
		if i.Options[idx].VoteWeight > best.VoteWeight {
			best = &i.Options[idx]
		}
	}
	return best
}

// Voter is one admitted ballot: unique per (initiative, user), immutable,
// no vote changes.
type Voter struct {
	InitiativeID string    `json:"initiative_id"`
	UserID       string    `json:"user_id"`
	OptionID     string    `json:"option_id"`
	Weight       int64     `json:"weight"`
	TxRef        string    `json:"tx_ref"`
	VotedAt      time.Time `json:"voted_at"`
}

// InitiativeCreate carries the parameters for a new initiative. ID is
// optional, as with draws.
type InitiativeCreate struct {
	ID             string    `json:"id,omitempty"`
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	VotingOpensAt  time.Time `json:"voting_opens_at,omitempty"`
	VotingDeadline time.Time `json:"voting_deadline"`
	OptionTexts    []string  `json:"option_texts"`
	CreatorID      string    `json:"creator_id"`
}

// VotingLimits is the validation envelope for the voting engine, injected
// from configuration.
type VotingLimits struct {
	MinLeadTime    time.Duration
	MaxDuration    time.Duration
	MinOptions     int
	MaxOptions     int
	MinVoteBalance int64
}
