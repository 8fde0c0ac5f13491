package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"eve-warehouse/internal/engine"
)

func decodeBody(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// queryHubs accepts both repeated and comma-separated hubs parameters.
func queryHubs(q url.Values) []string {
	var out []string
	for _, v := range q["hubs"] {
		for _, h := range strings.Split(v, ",") {
			if h = strings.TrimSpace(h); h != "" {
				out = append(out, h)
			}
		}
	}
	return out
}

func queryFloat(q url.Values, key string, dst *float64) error {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fmt.Errorf("invalid %s %q", key, v)
	}
	*dst = f
	return nil
}

func queryInt(q url.Values, key string, dst *int64) error {
	v := strings.TrimSpace(q.Get(key))
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return fmt.Errorf("invalid %s %q", key, v)
	}
	*dst = n
	return nil
}

// tradeFilter starts from the live defaults and applies query overrides.
func (s *Server) tradeFilter(q url.Values) (engine.DeltaFilter, error) {
	f := engine.LiveFilter()
	if s.cfg.Scanner.LiveLimit > 0 {
		f.Limit = s.cfg.Scanner.LiveLimit
	}
	f.Hubs = queryHubs(q)

	limit := int64(f.Limit)
	for _, p := range []struct {
		key string
		dst *float64
	}{
		{"min_margin", &f.MinDeltaPct},
		{"max_margin", &f.MaxDeltaPct},
		{"min_price", &f.MinPrice},
		{"min_profit", &f.MinProfit},
		{"max_profit", &f.MaxProfit},
	} {
		if err := queryFloat(q, p.key, p.dst); err != nil {
			return f, err
		}
	}
	if err := queryInt(q, "min_volume", &f.MinVolume); err != nil {
		return f, err
	}
	if err := queryInt(q, "max_volume", &f.MaxVolume); err != nil {
		return f, err
	}
	if err := queryInt(q, "limit", &limit); err != nil {
		return f, err
	}
	f.Limit = int(limit)
	if f.MinDeltaPct > f.MaxDeltaPct {
		return f, fmt.Errorf("min_margin %.2f exceeds max_margin %.2f", f.MinDeltaPct, f.MaxDeltaPct)
	}
	return f, nil
}

func (s *Server) handleTrades(w http.ResponseWriter, r *http.Request) {
	empty := envelope{"opportunities": []engine.PriceDelta{}, "count": 0, "errors": []string{}}
	_, sc, names, ready := s.engines()
	if !ready {
		writeError(w, http.StatusServiceUnavailable, notReady, empty)
		return
	}
	f, err := s.tradeFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), empty)
		return
	}
	res, err := sc.Scan(r.Context(), f, names)
	if err != nil {
		writeError(w, statusFor(err), err.Error(), empty)
		return
	}
	writeJSON(w, envelope{
		"opportunities": res.Opportunities,
		"count":         len(res.Opportunities),
		"hubs":          res.Hubs,
		"errors":        res.Errors,
		"timestamp":     s.now().UTC(),
	})
}
