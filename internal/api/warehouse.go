package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"eve-warehouse/internal/engine"
	"eve-warehouse/internal/logger"
)

const notReady = "item reference table is still loading"

func parseEnhanced(r *http.Request) (bool, error) {
	v := strings.TrimSpace(r.URL.Query().Get("enhanced"))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid enhanced %q", v)
	}
	return b, nil
}

const defaultAnalysisTimeout = 2 * time.Minute

// analysisContext detaches a cached analysis from the request that started it.
// Waiters share the load, so it must outlive any one of them.
func (s *Server) analysisContext(r *http.Request) (context.Context, context.CancelFunc) {
	timeout := s.cfg.Warehouse.AnalysisTimeout
	if timeout <= 0 {
		timeout = defaultAnalysisTimeout
	}
	return context.WithTimeout(context.WithoutCancel(r.Context()), timeout)
}

// warehouseKey identifies one cached warehouse response.
func warehouseKey(scope string, enhanced bool, src engine.Source) string {
	return fmt.Sprintf("%s|%t|%s", scope, enhanced, src)
}

func (s *Server) handleWarehouse(w http.ResponseWriter, r *http.Request) {
	empty := envelope{"warehouse_data": map[string]interface{}{}, "hubs": []string{}}
	wh, _, _, ready := s.engines()
	if !ready {
		writeError(w, http.StatusServiceUnavailable, notReady, empty)
		return
	}
	enhanced, err := parseEnhanced(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), empty)
		return
	}
	src, err := engine.ParseSource(r.URL.Query().Get("source"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), empty)
		return
	}

	body, hit, err := s.warehouseCache.GetOrComputeIf(warehouseKey("all", enhanced, src), func() ([]byte, bool, error) {
		ctx, cancel := s.analysisContext(r)
		defer cancel()
		sum, err := wh.AnalyzeAll(ctx, enhanced, src)
		if err != nil {
			return nil, false, err
		}
		b, err := encode(http.StatusOK, envelope{
			"analysis_id":    sum.AnalysisID,
			"source":         sum.Source,
			"hubs":           sum.Hubs,
			"warehouse_data": sum.WarehouseData,
			"summary":        sum.Summary,
		})
		// Partial results are served but not kept.
		return b, !sum.Degraded(), err
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error(), empty)
		return
	}
	if hit {
		logger.Debug("API", "warehouse served from cache")
	}
	writeBytes(w, http.StatusOK, body)
}

func (s *Server) handleWarehouseHub(w http.ResponseWriter, r *http.Request) {
	empty := envelope{"hub": nil}
	wh, _, _, ready := s.engines()
	if !ready {
		writeError(w, http.StatusServiceUnavailable, notReady, empty)
		return
	}
	hub, err := engine.FindHub(s.hubs, r.PathValue("hub"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), empty)
		return
	}
	enhanced, err := parseEnhanced(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), empty)
		return
	}
	src, err := engine.ParseSource(r.URL.Query().Get("source"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), empty)
		return
	}

	body, _, err := s.warehouseCache.GetOrComputeIf(warehouseKey(hub.Name, enhanced, src), func() ([]byte, bool, error) {
		ctx, cancel := s.analysisContext(r)
		defer cancel()
		report, err := wh.AnalyzeHub(ctx, hub.Name, enhanced, src)
		if err != nil {
			return nil, false, err
		}
		b, err := encode(http.StatusOK, envelope{"source": src, "hub": report})
		return b, !report.Degraded(), err
	})
	if err != nil {
		writeError(w, statusFor(err), err.Error(), empty)
		return
	}
	writeBytes(w, http.StatusOK, body)
}

func (s *Server) handleGetSkills(w http.ResponseWriter, r *http.Request) {
	fees := engine.FeesForSkills(s.skills)
	writeJSON(w, envelope{
		"skills":         s.skills.Snapshot(),
		"broker_fee":     fees.BrokerRate,
		"sales_tax_rate": fees.SalesTaxRate,
	})
}

func (s *Server) handleSetSkills(w http.ResponseWriter, r *http.Request) {
	empty := envelope{"skills": map[string]int{}}
	var levels map[string]int
	if err := decodeBody(r, &levels); err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), empty)
		return
	}
	if err := s.skills.Update(levels); err != nil {
		writeError(w, statusFor(err), err.Error(), empty)
		return
	}
	s.warehouseCache.Invalidate()
	logger.Info("API", fmt.Sprintf("Skills updated: %v", levels))
	s.handleGetSkills(w, r)
}
