package api

import (
	"net/http"
	"strconv"

	"eve-warehouse/internal/engine"
)

const maxProfitHistoryDays = 90

func (s *Server) handleWallet(w http.ResponseWriter, r *http.Request) {
	empty := envelope{"char_wallet": nil, "corp_wallet": nil, "character_name": nil}
	if s.deps.Account == nil {
		writeError(w, http.StatusUnauthorized, engine.ErrNotAuthenticated.Error(), empty)
		return
	}
	snap, err := engine.FetchWallet(r.Context(), s.deps.Account, s.now().UTC())
	if err != nil {
		writeError(w, statusFor(err), err.Error(), empty)
		return
	}
	body := envelope{
		"char_wallet":  snap.CharacterWallet,
		"corp_wallet":  snap.CorporationWallet,
		"last_updated": snap.LastUpdated,
		"errors":       snap.Errors,
	}
	if s.deps.Sessions != nil {
		if sess := s.deps.Sessions.Get(); sess != nil {
			body["character_name"] = sess.CharacterName
			body["corporation_name"] = sess.CorporationName
		}
	}
	writeJSON(w, body)
}

func (s *Server) handleProfitHistory(w http.ResponseWriter, r *http.Request) {
	empty := envelope{"daily_profits": []engine.DailyProfit{}, "total_profit": 0, "average_daily_profit": 0}
	wh, _, _, ready := s.engines()
	if !ready {
		writeError(w, http.StatusServiceUnavailable, notReady, empty)
		return
	}
	days := s.cfg.Warehouse.ProfitHistoryDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxProfitHistoryDays {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 90", empty)
			return
		}
		days = n
	}
	h, err := wh.ProfitHistory(r.Context(), days)
	if err != nil {
		writeError(w, statusFor(err), err.Error(), empty)
		return
	}
	writeJSON(w, envelope{
		"days":                 h.Days,
		"daily_profits":        h.DailyProfits,
		"total_profit":         h.TotalProfit,
		"average_daily_profit": h.AverageDailyProfit,
		"best_day":             h.BestDay,
		"worst_day":            h.WorstDay,
		"profitable_days":      h.ProfitableDays,
	})
}

func (s *Server) handleCorpOrders(w http.ResponseWriter, r *http.Request) {
	empty := envelope{"orders": []engine.Order{}, "total_orders": 0}
	wh, _, _, ready := s.engines()
	if !ready {
		writeError(w, http.StatusServiceUnavailable, notReady, empty)
		return
	}
	b, err := wh.CorporationOrders(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error(), empty)
		return
	}
	writeJSON(w, envelope{
		"total_orders":    b.TotalOrders,
		"buy_orders":      b.BuyOrders,
		"sell_orders":     b.SellOrders,
		"by_hub":          b.ByHub,
		"other_locations": b.OtherLocations,
		"inferred_side":   b.InferredSide,
		"orders":          b.Orders,
	})
}

func (s *Server) handleCourierContracts(w http.ResponseWriter, r *http.Request) {
	empty := envelope{"contracts": []interface{}{}, "metrics": engine.CourierMetrics{}}
	if s.deps.Account == nil {
		writeError(w, http.StatusUnauthorized, engine.ErrNotAuthenticated.Error(), empty)
		return
	}
	src, err := engine.ParseSource(r.URL.Query().Get("source"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), empty)
		return
	}
	rep, err := engine.CourierContracts(r.Context(), s.deps.Account, src)
	if err != nil {
		writeError(w, statusFor(err), err.Error(), empty)
		return
	}
	writeJSON(w, envelope{"source": rep.Source, "metrics": rep.Metrics, "contracts": rep.Contracts})
}
