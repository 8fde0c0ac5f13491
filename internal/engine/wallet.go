package engine

import (
	"context"
	"fmt"
	"time"
)

// WalletSnapshot holds balances; a nil balance means it could not be read.
type WalletSnapshot struct {
	CharacterWallet   *float64  `json:"char_wallet"`
	CorporationWallet *float64  `json:"corp_wallet"`
	CharacterName     string    `json:"character_name,omitempty"`
	CorporationName   string    `json:"corporation_name,omitempty"`
	LastUpdated       time.Time `json:"last_updated"`
	Errors            []string  `json:"errors"`
}

// FetchWallet reads both wallets independently. A failure of one leaves its balance nil
// and records the reason; it never substitutes a figure.
func FetchWallet(ctx context.Context, api WalletAPI, now time.Time) (WalletSnapshot, error) {
	if !api.IsAuthenticated() {
		return WalletSnapshot{Errors: []string{}}, ErrNotAuthenticated
	}
	s := WalletSnapshot{LastUpdated: now, Errors: []string{}}
	if v, err := api.CharacterWallet(ctx); err != nil {
		s.Errors = append(s.Errors, fmt.Sprintf("character wallet: %v", err))
	} else {
		v = round2(v)
		s.CharacterWallet = &v
	}
	if v, err := api.CorporationWallet(ctx); err != nil {
		s.Errors = append(s.Errors, fmt.Sprintf("corporation wallet: %v", err))
	} else {
		v = round2(v)
		s.CorporationWallet = &v
	}
	return s, nil
}
