package chain

import "strings"

// Addresses holds the deployed contract addresses per chain id. It is built
// once at startup from configuration and passed to the ingest layer; nothing
// mutates it afterwards.
type Addresses struct {
	DrawManager map[int64]string
	Voting      map[int64]string
	Token       map[int64]string
}

// Known reports whether the event's emitting contract is one of ours on that
// chain. Events with no contract attribution are accepted; relays that do not
// forward the address cannot be filtered here.
func (a *Addresses) Known(e *Event) bool {
	if e.Contract == "" {
		return true
	}
	addr := strings.ToLower(e.Contract)
	for _, table := range []map[int64]string{a.DrawManager, a.Voting, a.Token} {
		if table == nil {
			continue
		}
		if known, ok := table[e.ChainID]; ok && known == addr {
			return true
		}
	}
	return false
}
