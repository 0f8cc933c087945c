package models

import (
	"time"
)

// DrawStatus is derived from timestamps and terminal flags, never stored as a
// freely settable field. Cancellation is the only status a command sets.
type DrawStatus string

const (
	DrawStatusUpcoming DrawStatus = "upcoming" // entry window not yet open
	DrawStatusActive   DrawStatus = "active"   // accepting entries
	// DrawStatusEntryClosed is the window between entry close and draw
	// execution: entries barred, draw pending.
	DrawStatusEntryClosed DrawStatus = "entry_closed"
	DrawStatusCompleted   DrawStatus = "completed"
	DrawStatusCancelled   DrawStatus = "cancelled"
)

// Draw is a time-boxed prize lottery with paid entry and randomized winner
// selection. Monetary amounts are fixed-point integers in the smallest
// currency unit.
type Draw struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	PrizePool   int64  `json:"prize_pool"`
	EntryFee    int64  `json:"entry_fee"`
	// EntryOpensAt is optional; zero means entries open at creation.
	EntryOpensAt     time.Time `json:"entry_opens_at,omitempty"`
	EntryDeadline    time.Time `json:"entry_deadline"`
	DrawTimestamp    time.Time `json:"draw_timestamp"`
	CreatorID        string    `json:"creator_id"`
	WinnerID         string    `json:"winner_id,omitempty"`
	RandomSeed       string    `json:"random_seed,omitempty"`
	ParticipantCount int       `json:"participant_count"`
	PrizeClaimed     bool      `json:"prize_claimed"`
	Cancelled        bool      `json:"cancelled"`
	CreatedAt        time.Time `json:"created_at"`
}

// StatusAt computes the draw status at the given instant. This is the single
// place status is derived; the closed-pending window is reported as
// EntryClosed rather than collapsed into Upcoming or Active.
func (d *Draw) StatusAt(now time.Time) DrawStatus {
	if d.Cancelled {
		return DrawStatusCancelled
	}
	if d.WinnerID != "" {
		return DrawStatusCompleted
	}
	if now.After(d.DrawTimestamp) {
		// Execution overdue: completed-pending-settlement. The scheduler
		// emits the execute command.
		return DrawStatusCompleted
	}
	if !d.EntryOpensAt.IsZero() && now.Before(d.EntryOpensAt) {
		return DrawStatusUpcoming
	}
	if !now.After(d.EntryDeadline) {
		return DrawStatusActive
	}
	return DrawStatusEntryClosed
}

// AcceptsEntries reports whether an entry may be admitted at the instant.
func (d *Draw) AcceptsEntries(now time.Time) bool {
	status := d.StatusAt(now)
	return status == DrawStatusActive
}

// Executable reports whether the winner may be drawn: entries closed, no
// winner yet, not cancelled.
func (d *Draw) Executable(now time.Time) bool {
	return !d.Cancelled && d.WinnerID == "" && now.After(d.EntryDeadline)
}

// Participant is one admitted, fee-paid entry. Immutable once created;
// EntrySeq is the stable insertion order the winner index is computed over.
type Participant struct {
	DrawID    string    `json:"draw_id"`
	UserID    string    `json:"user_id"`
	PaidFee   int64     `json:"paid_fee"`
	TxRef     string    `json:"tx_ref"`
	EntrySeq  int       `json:"entry_seq"`
	EnteredAt time.Time `json:"entered_at"`
}

// DrawCreate carries the parameters for a new draw. ID is optional: chain
// events carry the contract-assigned id, direct commands leave it empty.
type DrawCreate struct {
	ID            string    `json:"id,omitempty"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	PrizePool     int64     `json:"prize_pool"`
	EntryFee      int64     `json:"entry_fee"`
	EntryOpensAt  time.Time `json:"entry_opens_at,omitempty"`
	EntryDeadline time.Time `json:"entry_deadline"`
	DrawTimestamp time.Time `json:"draw_timestamp"`
	CreatorID     string    `json:"creator_id"`
}

// DrawLimits is the validation envelope for draw creation, injected from
// configuration.
type DrawLimits struct {
	MinPrizePool    int64
	MinEntryFee     int64
	MaxEntryFee     int64
	MaxDuration     time.Duration
	MaxParticipants int // 0 = unlimited
}
