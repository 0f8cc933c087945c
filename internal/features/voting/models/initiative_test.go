package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestInitiativeStatusAt(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	initiative := func() *Initiative {
		return &Initiative{
			ID:             "i1",
			VotingDeadline: base.Add(time.Hour),
		}
	}

	tests := []struct {
		name   string
		mutate func(*Initiative)
		at     time.Time
		want   InitiativeStatus
	}{
		{
			name: "active while voting open",
			at:   base,
			want: InitiativeStatusActive,
		},
		{
			name: "active exactly at the deadline",
			at:   base.Add(time.Hour),
			want: InitiativeStatusActive,
		},
		{
			name: "voting closed past the deadline",
			at:   base.Add(time.Hour + time.Second),
			want: InitiativeStatusVotingClosed,
		},
		{
			name:   "upcoming before voting opens",
			mutate: func(i *Initiative) { i.VotingOpensAt = base.Add(30 * time.Minute) },
			at:     base,
			want:   InitiativeStatusUpcoming,
		},
		{
			name:   "active once the opening passes",
			mutate: func(i *Initiative) { i.VotingOpensAt = base.Add(30 * time.Minute) },
			at:     base.Add(30 * time.Minute),
			want:   InitiativeStatusActive,
		},
		{
			name:   "completed flag is terminal",
			mutate: func(i *Initiative) { i.Completed = true },
			at:     base,
			want:   InitiativeStatusCompleted,
		},
		{
			name:   "cancelled overrides everything",
			mutate: func(i *Initiative) { i.Cancelled = true; i.Completed = true },
			at:     base,
			want:   InitiativeStatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i := initiative()
			if tt.mutate != nil {
				tt.mutate(i)
			}
			assert.Equal(t, tt.want, i.StatusAt(tt.at))
		})
	}
}

func TestInitiativeAcceptsVotes(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	i := &Initiative{
		VotingOpensAt:  base.Add(30 * time.Minute),
		VotingDeadline: base.Add(time.Hour),
	}

	assert.False(t, i.AcceptsVotes(base), "ballots barred before voting opens")
	assert.True(t, i.AcceptsVotes(base.Add(30*time.Minute)))
	assert.True(t, i.AcceptsVotes(base.Add(time.Hour)))
	assert.False(t, i.AcceptsVotes(base.Add(time.Hour+time.Second)))

	i.Cancelled = true
	assert.False(t, i.AcceptsVotes(base.Add(45*time.Minute)))
}
