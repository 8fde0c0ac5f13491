package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"github.com/gorilla/handlers"

	"eve-warehouse/internal/auth"
	"eve-warehouse/internal/cache"
	"eve-warehouse/internal/config"
	"eve-warehouse/internal/engine"
	"eve-warehouse/internal/esi"
	"eve-warehouse/internal/logger"
)

// Account is the authenticated ESI surface the handlers need. *esi.AuthClient implements it.
type Account interface {
	engine.AccountAPI
	engine.WalletAPI
	engine.ContractAPI
}

// CorporationResolver looks up a character's corporation at login.
type CorporationResolver interface {
	CorporationOf(ctx context.Context, characterID int64) (int64, string, error)
}

// HealthChecker reports whether ESI is reachable. *esi.Client implements it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// Deps are the collaborators of a Server. SSO, Sessions and Corporations may be nil
// when login is not configured. Health may be nil to leave ESI reachability out of /api/status.
type Deps struct {
	Account      Account
	Market       engine.MarketAPI
	Stats        engine.RegionStatsAPI
	SSO          *auth.SSOConfig
	Sessions     *auth.SessionStore
	Corporations CorporationResolver
	Health       HealthChecker
	Now          func() time.Time
}

// Server is the HTTP API that connects the ESI client, the engines and the caches.
type Server struct {
	cfg    *config.Config
	deps   Deps
	now    func() time.Time
	hubs   []engine.Hub
	skills *engine.SkillSet

	tradeCache     *cache.TTL[[]engine.HubMarketStat]
	warehouseCache *cache.TTL[[]byte]

	mu        sync.RWMutex
	names     engine.ItemNames
	itemCount int
	warehouse *engine.Warehouse
	scanner   *engine.Scanner
	ready     bool

	// SSO state tokens and their expiry; one-time use.
	ssoStatesMu sync.Mutex
	ssoStates   map[string]time.Time
}

// NewServer creates a Server. Handlers that need item names answer 503 until SetItems.
func NewServer(cfg *config.Config, deps Deps) *Server {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Server{
		cfg:            cfg,
		deps:           deps,
		now:            deps.Now,
		hubs:           engine.DefaultHubs(),
		skills:         engine.NewSkillSet(),
		tradeCache:     cache.NewTTL[[]engine.HubMarketStat](cfg.Cache.TradeTTL, deps.Now),
		warehouseCache: cache.NewTTL[[]byte](cfg.Cache.WarehouseTTL, deps.Now),
		ssoStates:      make(map[string]time.Time),
	}
}

// SetItems is called when the item reference table finishes loading.
func (s *Server) SetItems(names engine.ItemNames, count int) {
	w := engine.NewWarehouse(s.deps.Account, s.deps.Market, names, s.skills, engine.WarehouseOptions{
		TransactionDaysBack: s.cfg.Warehouse.TransactionDaysBack,
		RealizedWindowDays:  s.cfg.Warehouse.RealizedWindowDays,
		MinProfitMargin:     s.cfg.Warehouse.MinProfitMargin,
		MarketConcurrency:   s.cfg.Warehouse.MarketConcurrency,
		CorporationDivision: s.cfg.Warehouse.CorporationDivision,
		Hubs:                s.hubs,
		Now:                 s.now,
	})
	sc := engine.NewScanner(s.deps.Stats, s.hubs, s.tradeCache)

	s.mu.Lock()
	s.names, s.itemCount = names, count
	s.warehouse, s.scanner = w, sc
	s.ready = true
	s.mu.Unlock()

	s.warehouseCache.Invalidate()
}

func (s *Server) engines() (*engine.Warehouse, *engine.Scanner, engine.ItemNames, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.warehouse, s.scanner, s.names, s.ready
}

// Handler returns the HTTP handler with all API routes, CORS and access logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/status", s.handleStatus)
	mux.HandleFunc("GET /api/hubs", s.handleHubs)
	mux.HandleFunc("GET /api/trades", s.handleTrades)
	mux.HandleFunc("GET /api/wallet", s.handleWallet)
	mux.HandleFunc("GET /api/profit-history", s.handleProfitHistory)
	mux.HandleFunc("GET /api/warehouse", s.handleWarehouse)
	mux.HandleFunc("GET /api/warehouse/{hub}", s.handleWarehouseHub)
	mux.HandleFunc("GET /api/skills", s.handleGetSkills)
	mux.HandleFunc("POST /api/skills", s.handleSetSkills)
	mux.HandleFunc("GET /api/corp/orders", s.handleCorpOrders)
	mux.HandleFunc("GET /api/contracts/courier", s.handleCourierContracts)
	// Auth
	mux.HandleFunc("GET /api/auth/login", s.handleAuthLogin)
	mux.HandleFunc("GET /api/auth/callback", s.handleAuthCallback)
	mux.HandleFunc("GET /api/auth/status", s.handleAuthStatus)
	mux.HandleFunc("POST /api/auth/logout", s.handleAuthLogout)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)
	return handlers.CombinedLoggingHandler(logger.Writer(), cors(recoverMiddleware(mux)))
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Error("API", fmt.Sprintf("panic on %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack()))
				writeError(w, http.StatusInternalServerError, fmt.Sprintf("internal error: %v", rec), nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// envelope is a JSON response body; "success" is always set.
type envelope map[string]interface{}

func encode(code int, body envelope) ([]byte, error) {
	body["success"] = code < 400
	return json.Marshal(body)
}

func writeBytes(w http.ResponseWriter, code int, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(b)
}

func writeJSON(w http.ResponseWriter, body envelope) {
	b, err := encode(http.StatusOK, body)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "encode response: "+err.Error(), nil)
		return
	}
	writeBytes(w, http.StatusOK, b)
}

// writeError writes a failure envelope. empty carries the fields a successful
// response would have, at their zero value, so clients can render either.
func writeError(w http.ResponseWriter, code int, msg string, empty envelope) {
	body := envelope{"error": msg}
	for k, v := range empty {
		body[k] = v
	}
	b, _ := encode(code, body)
	writeBytes(w, code, b)
}

// statusFor maps engine and client errors onto HTTP codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrUnknownHub),
		errors.Is(err, engine.ErrUnknownSkill),
		errors.Is(err, engine.ErrUnknownSource):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrNotAuthenticated),
		errors.Is(err, esi.ErrNotAuthenticated),
		errors.Is(err, auth.ErrNotLoggedIn):
		return http.StatusUnauthorized
	default:
		return http.StatusBadGateway
	}
}

const statusPingTimeout = 5 * time.Second

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	_, _, _, ready := s.engines()
	s.mu.RLock()
	items := s.itemCount
	s.mu.RUnlock()

	body := envelope{
		"ready":         ready,
		"items":         items,
		"authenticated": s.deps.Account != nil && s.deps.Account.IsAuthenticated(),
	}
	if s.deps.Sessions != nil {
		if sess := s.deps.Sessions.Get(); sess != nil {
			body["character_name"] = sess.CharacterName
			body["corporation_name"] = sess.CorporationName
		}
	}

	ages := make(map[string]float64)
	for _, h := range s.hubs {
		if age, ok := s.tradeCache.Age(h.Name); ok {
			ages[h.Name] = age.Seconds()
		}
	}
	body["trade_cache_age_seconds"] = ages
	body["warehouse_cache_entries"] = s.warehouseCache.Len()
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), statusPingTimeout)
		body["esi_online"] = s.deps.Health.HealthCheck(ctx)
		cancel()
	}
	writeJSON(w, body)
}

func (s *Server) handleHubs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, envelope{"hubs": engine.HubNames(s.hubs), "details": s.hubs})
}
