package chain

import (
	"encoding/json"
	"fmt"
)

// Typed payloads for each event kind. The relay delivers contract log fields
// as JSON; decoding happens here, at the boundary, in one place.

type DrawCreatedPayload struct {
	DrawID        string `json:"draw_id"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	PrizePool     int64  `json:"prize_pool"`
	EntryFee      int64  `json:"entry_fee"`
	EntryOpensAt  int64  `json:"entry_opens_at,omitempty"` // unix seconds, 0 = opens at creation
	EntryDeadline int64  `json:"entry_deadline"`           // unix seconds
	DrawTimestamp int64  `json:"draw_timestamp"`           // unix seconds
	Creator       string `json:"creator"`
}

type DrawEnteredPayload struct {
	DrawID      string `json:"draw_id"`
	Participant string `json:"participant"`
	EntryFee    int64  `json:"entry_fee"`
}

type DrawCompletedPayload struct {
	DrawID     string `json:"draw_id"`
	RandomSeed string `json:"random_seed"` // 0x-prefixed 256-bit hex
}

type PrizeClaimedPayload struct {
	DrawID string `json:"draw_id"`
	Winner string `json:"winner"`
	Amount int64  `json:"amount"`
}

type VoteCastPayload struct {
	InitiativeID string `json:"initiative_id"`
	Voter        string `json:"voter"`
	OptionID     string `json:"option_id"`
	// BalanceSnapshot is the voter's token balance read by the contract at
	// cast time; it becomes the vote weight.
	BalanceSnapshot int64 `json:"balance_snapshot"`
}

type InitiativeCreatedPayload struct {
	InitiativeID   string   `json:"initiative_id"`
	Name           string   `json:"name"`
	Description    string   `json:"description"`
	VotingOpensAt  int64    `json:"voting_opens_at,omitempty"` // unix seconds, 0 = opens at creation
	VotingDeadline int64    `json:"voting_deadline"`           // unix seconds
	Options        []string `json:"options"`
	Creator        string   `json:"creator"`
}

type TokenMintedPayload struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
	Reason    string `json:"reason"`
}

func decode(e *Event, dst interface{}) error {
	if err := json.Unmarshal(e.Payload, dst); err != nil {
		return fmt.Errorf("decode %s payload (tx %s): %w", e.Kind, e.TxHash, err)
	}
	return nil
}

func DecodeDrawCreated(e *Event) (*DrawCreatedPayload, error) {
	p := &DrawCreatedPayload{}
	return p, decode(e, p)
}

func DecodeDrawEntered(e *Event) (*DrawEnteredPayload, error) {
	p := &DrawEnteredPayload{}
	return p, decode(e, p)
}

func DecodeDrawCompleted(e *Event) (*DrawCompletedPayload, error) {
	p := &DrawCompletedPayload{}
	return p, decode(e, p)
}

func DecodePrizeClaimed(e *Event) (*PrizeClaimedPayload, error) {
	p := &PrizeClaimedPayload{}
	return p, decode(e, p)
}

func DecodeVoteCast(e *Event) (*VoteCastPayload, error) {
	p := &VoteCastPayload{}
	return p, decode(e, p)
}

func DecodeInitiativeCreated(e *Event) (*InitiativeCreatedPayload, error) {
	p := &InitiativeCreatedPayload{}
	return p, decode(e, p)
}

func DecodeTokenMinted(e *Event) (*TokenMintedPayload, error) {
	p := &TokenMintedPayload{}
	return p, decode(e, p)
}
