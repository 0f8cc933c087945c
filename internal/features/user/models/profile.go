package models

// UserStats summarizes a user's participation across the platform.
type UserStats struct {
	TotalEntries       int `json:"total_entries"`
	TotalVotes         int `json:"total_votes"`
	WinsCount          int `json:"wins_count"`
	InitiativesCreated int `json:"initiatives_created"`
}

// UserProfile is the read model served to the presentation layer: balances
// and participation history assembled from the store's derived tables.
type UserProfile struct {
	UserID      string    `json:"user_id"`
	Balance     int64     `json:"balance"`
	TotalEarned int64     `json:"total_earned"`
	Stats       UserStats `json:"stats"`

	EnteredDrawIDs       []string `json:"entered_draw_ids"`
	WonDrawIDs           []string `json:"won_draw_ids"`
	VotedInitiativeIDs   []string `json:"voted_initiative_ids"`
	CreatedInitiativeIDs []string `json:"created_initiative_ids"`
}
