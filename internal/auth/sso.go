package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAuthorizeURL = "https://login.eveonline.com/v2/oauth/authorize"
	defaultTokenURL     = "https://login.eveonline.com/v2/oauth/token"
	defaultVerifyURL    = "https://login.eveonline.com/oauth/verify"
)

// SSOConfig is the registered EVE SSO application.
type SSOConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       string

	// Overridable endpoints; empty means the public EVE SSO.
	AuthorizeURL string
	TokenURL     string
	VerifyURL    string
	HTTPClient   *http.Client
}

// TokenResponse is the SSO token endpoint payload.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// CharacterInfo is what the verify endpoint tells us about a token.
type CharacterInfo struct {
	CharacterID   int64  `json:"CharacterID"`
	CharacterName string `json:"CharacterName"`
	ExpiresOn     string `json:"ExpiresOn"`
	Scopes        string `json:"Scopes"`
}

func (c *SSOConfig) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func orDefault(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

// BuildAuthURL returns the browser URL that starts the authorization flow.
func (c *SSOConfig) BuildAuthURL(state string) string {
	q := url.Values{}
	q.Set("response_type", "code")
	q.Set("redirect_uri", c.CallbackURL)
	q.Set("client_id", c.ClientID)
	q.Set("scope", c.Scopes)
	q.Set("state", state)
	return orDefault(c.AuthorizeURL, defaultAuthorizeURL) + "?" + q.Encode()
}

// GenerateState returns a random CSRF state token.
func GenerateState() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}

// ExchangeCode trades an authorization code for tokens.
func (c *SSOConfig) ExchangeCode(ctx context.Context, code string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	return c.tokenRequest(ctx, form)
}

// RefreshToken trades a refresh token for a new access token.
func (c *SSOConfig) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	return c.tokenRequest(ctx, form)
}

func (c *SSOConfig) tokenRequest(ctx context.Context, form url.Values) (*TokenResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, orDefault(c.TokenURL, defaultTokenURL), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.ClientID, c.ClientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, fmt.Errorf("sso token %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tok TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return nil, fmt.Errorf("sso token decode: %w", err)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("sso token: empty access token")
	}
	return &tok, nil
}

// VerifyToken resolves the character behind an access token.
func (c *SSOConfig) VerifyToken(ctx context.Context, accessToken string) (*CharacterInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, orDefault(c.VerifyURL, defaultVerifyURL), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client().Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("sso verify %d", resp.StatusCode)
	}
	var info CharacterInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("sso verify decode: %w", err)
	}
	if info.CharacterID == 0 {
		return nil, fmt.Errorf("sso verify: no character id")
	}
	return &info, nil
}
