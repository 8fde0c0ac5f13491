package engine

import (
	"context"

	"eve-warehouse/internal/esi"
)

// ItemNames resolves display names for type ids.
type ItemNames interface {
	Lookup(typeID int32) (string, bool)
}

// MarketAPI reads public region order books.
type MarketAPI interface {
	FetchRegionOrdersByType(ctx context.Context, regionID, typeID int32) ([]esi.MarketOrder, error)
}

// AccountAPI is the authenticated character/corporation surface used for valuation.
// *esi.AuthClient implements it.
type AccountAPI interface {
	IsAuthenticated() bool
	CharacterAssets(ctx context.Context) ([]esi.Asset, error)
	CorporationAssets(ctx context.Context) ([]esi.Asset, error)
	CharacterOrders(ctx context.Context) ([]esi.CharacterOrder, error)
	CorporationOrders(ctx context.Context) ([]esi.CorporationOrder, error)
	CharacterTransactions(ctx context.Context) ([]esi.WalletTransaction, error)
	CorporationTransactions(ctx context.Context, division int) ([]esi.WalletTransaction, error)
}

// WalletAPI reads wallet balances.
type WalletAPI interface {
	IsAuthenticated() bool
	CharacterWallet(ctx context.Context) (float64, error)
	CorporationWallet(ctx context.Context) (float64, error)
}

// ContractAPI reads contracts.
type ContractAPI interface {
	IsAuthenticated() bool
	CharacterContracts(ctx context.Context) ([]esi.Contract, error)
	CorporationContracts(ctx context.Context) ([]esi.Contract, error)
}
