package chain

import (
	"encoding/json"
	"fmt"
	"time"
)

// EventKind identifies a contract log type emitted on chain.
type EventKind string

const (
	EventDrawCreated       EventKind = "DrawCreated"
	EventDrawEntered       EventKind = "DrawEntered"
	EventDrawCompleted     EventKind = "DrawCompleted"
	EventPrizeClaimed      EventKind = "PrizeClaimed"
	EventVoteCast          EventKind = "VoteCast"
	EventInitiativeCreated EventKind = "InitiativeCreated"
	EventTokenMinted       EventKind = "TokenMinted"
)

// Event is one decoded chain log as delivered by the relay. The payload stays
// raw until the reconciler picks the typed decoder for the kind, so engines
// never see wire shapes.
type Event struct {
	Kind        EventKind       `json:"kind"`
	TxHash      string          `json:"tx_hash"`
	LogIndex    int             `json:"log_index"`
	ChainID     int64           `json:"chain_id"`
	BlockNumber uint64          `json:"block_number"`
	Contract    string          `json:"contract,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	ObservedAt  time.Time       `json:"observed_at"`
}

// Ref is the unique identity of an event within a chain: a transaction may
// emit several logs, so the log index is part of the key.
func (e *Event) Ref() string {
	return fmt.Sprintf("%s:%d", e.TxHash, e.LogIndex)
}

// Validate rejects events that cannot be attributed or deduplicated.
func (e *Event) Validate() error {
	if e.Kind == "" {
		return fmt.Errorf("chain event missing kind")
	}
	if e.TxHash == "" {
		return fmt.Errorf("chain event missing tx hash")
	}
	if e.LogIndex < 0 {
		return fmt.Errorf("chain event has negative log index %d", e.LogIndex)
	}
	return nil
}
