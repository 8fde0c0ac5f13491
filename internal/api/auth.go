package api

import (
	"fmt"
	"net/http"
	"time"

	"eve-warehouse/internal/auth"
	"eve-warehouse/internal/logger"
)

const ssoStateTTL = 10 * time.Minute

func (s *Server) handleAuthLogin(w http.ResponseWriter, r *http.Request) {
	if s.deps.SSO == nil || s.deps.Sessions == nil {
		writeError(w, http.StatusInternalServerError, "SSO not configured", nil)
		return
	}
	state := auth.GenerateState()

	s.ssoStatesMu.Lock()
	now := s.now()
	for k, exp := range s.ssoStates {
		if now.After(exp) {
			delete(s.ssoStates, k)
		}
	}
	s.ssoStates[state] = now.Add(ssoStateTTL)
	s.ssoStatesMu.Unlock()

	http.Redirect(w, r, s.deps.SSO.BuildAuthURL(state), http.StatusTemporaryRedirect)
}

func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	if s.deps.SSO == nil || s.deps.Sessions == nil {
		writeError(w, http.StatusInternalServerError, "SSO not configured", nil)
		return
	}
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	s.ssoStatesMu.Lock()
	exp, ok := s.ssoStates[state]
	if ok {
		delete(s.ssoStates, state)
	}
	s.ssoStatesMu.Unlock()

	if state == "" || !ok || s.now().After(exp) {
		writeError(w, http.StatusBadRequest, "invalid or expired state parameter", nil)
		return
	}

	tok, err := s.deps.SSO.ExchangeCode(r.Context(), code)
	if err != nil {
		logger.Error("AUTH", fmt.Sprintf("Exchange error: %v", err))
		writeError(w, http.StatusBadGateway, "token exchange failed: "+err.Error(), nil)
		return
	}
	info, err := s.deps.SSO.VerifyToken(r.Context(), tok.AccessToken)
	if err != nil {
		logger.Error("AUTH", fmt.Sprintf("Verify error: %v", err))
		writeError(w, http.StatusBadGateway, "token verify failed: "+err.Error(), nil)
		return
	}

	sess := &auth.Session{
		CharacterID:   info.CharacterID,
		CharacterName: info.CharacterName,
		AccessToken:   tok.AccessToken,
		RefreshToken:  tok.RefreshToken,
		ExpiresAt:     s.now().Add(time.Duration(tok.ExpiresIn) * time.Second),
	}
	if s.deps.Corporations != nil {
		corpID, corpName, err := s.deps.Corporations.CorporationOf(r.Context(), info.CharacterID)
		if err != nil {
			logger.Warn("AUTH", fmt.Sprintf("Corporation lookup failed: %v", err))
		}
		sess.CorporationID, sess.CorporationName = corpID, corpName
	}
	if err := s.deps.Sessions.Save(sess); err != nil {
		logger.Error("AUTH", fmt.Sprintf("Save session error: %v", err))
		writeError(w, http.StatusInternalServerError, "save session failed", nil)
		return
	}
	s.warehouseCache.Invalidate()

	logger.Success("AUTH", fmt.Sprintf("Logged in as %s (ID: %d)", info.CharacterName, info.CharacterID))
	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	var sess *auth.Session
	if s.deps.Sessions != nil {
		sess = s.deps.Sessions.Get()
	}
	if sess == nil {
		writeJSON(w, envelope{"logged_in": false})
		return
	}
	writeJSON(w, envelope{
		"logged_in":        true,
		"character_id":     sess.CharacterID,
		"character_name":   sess.CharacterName,
		"corporation_id":   sess.CorporationID,
		"corporation_name": sess.CorporationName,
	})
}

func (s *Server) handleAuthLogout(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions != nil {
		s.deps.Sessions.Delete()
	}
	s.warehouseCache.Invalidate()
	logger.Info("AUTH", "Logged out")
	writeJSON(w, envelope{"logged_in": false})
}
