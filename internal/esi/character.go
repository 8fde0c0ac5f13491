package esi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
)

// ErrNotAuthenticated is returned by AuthClient calls made without a stored session.
var ErrNotAuthenticated = errors.New("esi: not authenticated")

// Identity is who the stored token belongs to.
type Identity struct {
	CharacterID     int64
	CharacterName   string
	CorporationID   int64
	CorporationName string
}

// TokenSource hands out valid access tokens for the logged-in character.
type TokenSource interface {
	Identity() (Identity, bool)
	EnsureValidToken(ctx context.Context) (string, error)
}

// Asset is one row of a character or corporation asset listing.
type Asset struct {
	ItemID       int64  `json:"item_id"`
	TypeID       int32  `json:"type_id"`
	LocationID   int64  `json:"location_id"`
	LocationType string `json:"location_type"`
	LocationFlag string `json:"location_flag"`
	Quantity     int64  `json:"quantity"`
	IsSingleton  bool   `json:"is_singleton"`
}

// CharacterOrder represents a character's open market order.
type CharacterOrder struct {
	OrderID      int64   `json:"order_id"`
	TypeID       int32   `json:"type_id"`
	LocationID   int64   `json:"location_id"`
	RegionID     int32   `json:"region_id"`
	Price        float64 `json:"price"`
	VolumeRemain int32   `json:"volume_remain"`
	VolumeTotal  int32   `json:"volume_total"`
	IsBuyOrder   bool    `json:"is_buy_order"`
	Escrow       float64 `json:"escrow"`
	Range        string  `json:"range"`
	Duration     int     `json:"duration"`
	Issued       string  `json:"issued"`
}

// CorporationOrder is an open corporation order. ESI omits is_buy_order on
// some response shapes, so it is kept as a pointer.
type CorporationOrder struct {
	OrderID      int64   `json:"order_id"`
	TypeID       int32   `json:"type_id"`
	LocationID   int64   `json:"location_id"`
	RegionID     int32   `json:"region_id"`
	Price        float64 `json:"price"`
	VolumeRemain int32   `json:"volume_remain"`
	VolumeTotal  int32   `json:"volume_total"`
	IsBuyOrder   *bool   `json:"is_buy_order"`
	Escrow       float64 `json:"escrow"`
	Range        string  `json:"range"`
	Duration     int     `json:"duration"`
	Issued       string  `json:"issued"`
	IssuedBy     int64   `json:"issued_by"`
	WalletDiv    int     `json:"wallet_division"`
}

// WalletTransaction represents a wallet transaction.
type WalletTransaction struct {
	TransactionID int64   `json:"transaction_id"`
	Date          string  `json:"date"`
	TypeID        int32   `json:"type_id"`
	LocationID    int64   `json:"location_id"`
	UnitPrice     float64 `json:"unit_price"`
	Quantity      int32   `json:"quantity"`
	IsBuy         bool    `json:"is_buy"`
	ClientID      int64   `json:"client_id"`
}

// AuthClient performs authenticated ESI calls for the logged-in character.
type AuthClient struct {
	esi    *Client
	tokens TokenSource
}

// NewAuthClient binds an ESI client to a token source.
func NewAuthClient(c *Client, tokens TokenSource) *AuthClient {
	return &AuthClient{esi: c, tokens: tokens}
}

// IsAuthenticated reports whether a session is stored.
func (a *AuthClient) IsAuthenticated() bool {
	_, ok := a.tokens.Identity()
	return ok
}

// Identity returns the logged-in identity.
func (a *AuthClient) Identity() (Identity, bool) {
	return a.tokens.Identity()
}

// CharacterID is 0 when logged out.
func (a *AuthClient) CharacterID() int64 {
	id, _ := a.tokens.Identity()
	return id.CharacterID
}

// CorporationID is 0 when logged out.
func (a *AuthClient) CorporationID() int64 {
	id, _ := a.tokens.Identity()
	return id.CorporationID
}

// EnsureValidToken refreshes the access token when it is close to expiry.
func (a *AuthClient) EnsureValidToken(ctx context.Context) (string, error) {
	if !a.IsAuthenticated() {
		return "", ErrNotAuthenticated
	}
	return a.tokens.EnsureValidToken(ctx)
}

// AuthGet fetches path (e.g. "/characters/1/wallet/") with the current token.
func (a *AuthClient) AuthGet(ctx context.Context, path string, dst interface{}) error {
	token, err := a.EnsureValidToken(ctx)
	if err != nil {
		return err
	}
	_, err = a.esi.do(ctx, a.esi.endpoint(path, nil), token, dst)
	return err
}

func authPages[T any](ctx context.Context, a *AuthClient, path string) ([]T, error) {
	token, err := a.EnsureValidToken(ctx)
	if err != nil {
		return nil, err
	}
	rows, _, err := getPages[T](ctx, a.esi, path, nil, token)
	return rows, err
}

func (a *AuthClient) characterPath(format string) string {
	return fmt.Sprintf(format, a.CharacterID())
}

func (a *AuthClient) corporationPath(format string) (string, error) {
	corp := a.CorporationID()
	if corp == 0 {
		return "", fmt.Errorf("corporation id unknown")
	}
	return fmt.Sprintf(format, corp), nil
}

// CharacterAssets fetches all pages of the character's assets.
func (a *AuthClient) CharacterAssets(ctx context.Context) ([]Asset, error) {
	rows, err := authPages[Asset](ctx, a, a.characterPath("/characters/%d/assets/"))
	if err != nil {
		return nil, fmt.Errorf("character assets: %w", err)
	}
	return rows, nil
}

// CorporationAssets fetches all pages of the corporation's assets.
func (a *AuthClient) CorporationAssets(ctx context.Context) ([]Asset, error) {
	path, err := a.corporationPath("/corporations/%d/assets/")
	if err != nil {
		return nil, fmt.Errorf("corporation assets: %w", err)
	}
	rows, err := authPages[Asset](ctx, a, path)
	if err != nil {
		return nil, fmt.Errorf("corporation assets: %w", err)
	}
	return rows, nil
}

// CharacterOrders fetches the character's open market orders.
func (a *AuthClient) CharacterOrders(ctx context.Context) ([]CharacterOrder, error) {
	var orders []CharacterOrder
	if err := a.AuthGet(ctx, a.characterPath("/characters/%d/orders/"), &orders); err != nil {
		return nil, fmt.Errorf("character orders: %w", err)
	}
	return orders, nil
}

// CorporationOrders fetches all pages of the corporation's open market orders.
func (a *AuthClient) CorporationOrders(ctx context.Context) ([]CorporationOrder, error) {
	path, err := a.corporationPath("/corporations/%d/orders/")
	if err != nil {
		return nil, fmt.Errorf("corporation orders: %w", err)
	}
	rows, err := authPages[CorporationOrder](ctx, a, path)
	if err != nil {
		return nil, fmt.Errorf("corporation orders: %w", err)
	}
	return rows, nil
}

// CharacterTransactions fetches the character's recent wallet transactions.
func (a *AuthClient) CharacterTransactions(ctx context.Context) ([]WalletTransaction, error) {
	var txns []WalletTransaction
	if err := a.AuthGet(ctx, a.characterPath("/characters/%d/wallet/transactions/"), &txns); err != nil {
		return nil, fmt.Errorf("character transactions: %w", err)
	}
	return txns, nil
}

// CorporationTransactions fetches one wallet division's recent transactions.
func (a *AuthClient) CorporationTransactions(ctx context.Context, division int) ([]WalletTransaction, error) {
	if division < 1 || division > 7 {
		return nil, fmt.Errorf("corporation transactions: division %d out of range", division)
	}
	path, err := a.corporationPath("/corporations/%d/wallets/" + strconv.Itoa(division) + "/transactions/")
	if err != nil {
		return nil, fmt.Errorf("corporation transactions: %w", err)
	}
	var txns []WalletTransaction
	if err := a.AuthGet(ctx, path, &txns); err != nil {
		return nil, fmt.Errorf("corporation transactions: %w", err)
	}
	return txns, nil
}

// CharacterWallet fetches the character's ISK balance.
func (a *AuthClient) CharacterWallet(ctx context.Context) (float64, error) {
	var balance float64
	if err := a.AuthGet(ctx, a.characterPath("/characters/%d/wallet/"), &balance); err != nil {
		return 0, fmt.Errorf("wallet: %w", err)
	}
	return balance, nil
}

// CorporationWallet returns the main corporation balance. The master wallet
// (division 1000) is tried first; on 403 division 1; if that fails too, the
// division listing is read and division 1 picked from it.
func (a *AuthClient) CorporationWallet(ctx context.Context) (float64, error) {
	corp := a.CorporationID()
	if corp == 0 {
		return 0, fmt.Errorf("corporation wallet: %w", ErrNotAuthenticated)
	}

	var balance float64
	err := a.AuthGet(ctx, fmt.Sprintf("/corporations/%d/wallets/1000/", corp), &balance)
	if err == nil {
		return balance, nil
	}
	if !IsStatus(err, http.StatusForbidden) {
		return 0, fmt.Errorf("corporation wallet: %w", err)
	}
	if err := a.AuthGet(ctx, fmt.Sprintf("/corporations/%d/wallets/1/", corp), &balance); err == nil {
		return balance, nil
	}

	var divisions []struct {
		Division int     `json:"division"`
		Balance  float64 `json:"balance"`
	}
	if err := a.AuthGet(ctx, fmt.Sprintf("/corporations/%d/wallets/", corp), &divisions); err != nil {
		return 0, fmt.Errorf("corporation wallet: %w", err)
	}
	for _, d := range divisions {
		if d.Division == 1 {
			return d.Balance, nil
		}
	}
	return 0, nil
}

// CorporationOf returns the character's corporation id and name. A failed
// name lookup is not an error.
func (c *Client) CorporationOf(ctx context.Context, characterID int64) (int64, string, error) {
	var info struct {
		CorporationID int64 `json:"corporation_id"`
	}
	if err := c.GetJSON(ctx, fmt.Sprintf("/characters/%d/", characterID), nil, &info); err != nil {
		return 0, "", fmt.Errorf("character info: %w", err)
	}
	var corp struct {
		Name string `json:"name"`
	}
	if err := c.GetJSON(ctx, fmt.Sprintf("/corporations/%d/", info.CorporationID), url.Values{}, &corp); err != nil {
		return info.CorporationID, "", nil
	}
	return info.CorporationID, corp.Name, nil
}
