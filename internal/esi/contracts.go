package esi

import (
	"context"
	"fmt"
)

// Contract is a character or corporation contract header.
type Contract struct {
	ContractID      int32   `json:"contract_id"`
	Type            string  `json:"type"`   // item_exchange, auction, courier, loan, unknown
	Status          string  `json:"status"` // outstanding, in_progress, finished, ...
	Title           string  `json:"title"`
	IssuerID        int64   `json:"issuer_id"`
	AssigneeID      int64   `json:"assignee_id"`
	AcceptorID      int64   `json:"acceptor_id"`
	ForCorporation  bool    `json:"for_corporation"`
	StartLocationID int64   `json:"start_location_id"`
	EndLocationID   int64   `json:"end_location_id"`
	Collateral      float64 `json:"collateral"`
	Reward          float64 `json:"reward"`
	Price           float64 `json:"price"`
	Volume          float64 `json:"volume"`
	DaysToComplete  int     `json:"days_to_complete"`
	DateIssued      string  `json:"date_issued"`
	DateExpired     string  `json:"date_expired"`
	DateAccepted    string  `json:"date_accepted,omitempty"`
	DateCompleted   string  `json:"date_completed,omitempty"`
}

// CharacterContracts fetches all pages of the character's contracts.
func (a *AuthClient) CharacterContracts(ctx context.Context) ([]Contract, error) {
	rows, err := authPages[Contract](ctx, a, a.characterPath("/characters/%d/contracts/"))
	if err != nil {
		return nil, fmt.Errorf("character contracts: %w", err)
	}
	return rows, nil
}

// CorporationContracts fetches all pages of the corporation's contracts.
func (a *AuthClient) CorporationContracts(ctx context.Context) ([]Contract, error) {
	path, err := a.corporationPath("/corporations/%d/contracts/")
	if err != nil {
		return nil, fmt.Errorf("corporation contracts: %w", err)
	}
	rows, err := authPages[Contract](ctx, a, path)
	if err != nil {
		return nil, fmt.Errorf("corporation contracts: %w", err)
	}
	return rows, nil
}
