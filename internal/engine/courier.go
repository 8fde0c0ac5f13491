package engine

import (
	"context"
	"fmt"

	"eve-warehouse/internal/esi"
)

// CourierMetrics summarizes courier contracts.
type CourierMetrics struct {
	CourierContracts     int     `json:"courier_contracts"`
	OutstandingContracts int     `json:"outstanding_contracts"`
	InProgressContracts  int     `json:"in_progress_contracts"`
	TotalCollateral      float64 `json:"total_collateral"`
	TotalReward          float64 `json:"total_reward"`
}

// CourierReport is the courier view for one source.
type CourierReport struct {
	Source    Source         `json:"source"`
	Metrics   CourierMetrics `json:"metrics"`
	Contracts []esi.Contract `json:"contracts"`
}

// SummarizeCouriers keeps courier contracts. Collateral only counts contracts that are
// still outstanding or in progress; reward counts every courier contract.
func SummarizeCouriers(contracts []esi.Contract) ([]esi.Contract, CourierMetrics) {
	var m CourierMetrics
	out := make([]esi.Contract, 0)
	for _, c := range contracts {
		if c.Type != "courier" {
			continue
		}
		out = append(out, c)
		m.CourierContracts++
		m.TotalReward += c.Reward
		switch c.Status {
		case "outstanding":
			m.OutstandingContracts++
			m.TotalCollateral += c.Collateral
		case "in_progress":
			m.InProgressContracts++
			m.TotalCollateral += c.Collateral
		}
	}
	m.TotalCollateral = round2(m.TotalCollateral)
	m.TotalReward = round2(m.TotalReward)
	return out, m
}

// CourierContracts fetches and summarizes courier contracts for src.
func CourierContracts(ctx context.Context, api ContractAPI, src Source) (*CourierReport, error) {
	if !api.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	var rows []esi.Contract
	var err error
	switch src {
	case SourceCharacter:
		rows, err = api.CharacterContracts(ctx)
	case SourceCorporation:
		rows, err = api.CorporationContracts(ctx)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, src)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch %s contracts: %w", src, err)
	}
	contracts, m := SummarizeCouriers(rows)
	return &CourierReport{Source: src, Metrics: m, Contracts: contracts}, nil
}
