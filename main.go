package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eve-warehouse/internal/api"
	"eve-warehouse/internal/auth"
	"eve-warehouse/internal/config"
	"eve-warehouse/internal/db"
	"eve-warehouse/internal/engine"
	"eve-warehouse/internal/esi"
	"eve-warehouse/internal/logger"
	"eve-warehouse/internal/mokaam"
	"eve-warehouse/internal/report"
	"eve-warehouse/internal/sde"
)

var version = "dev"

func main() {
	reportPath := flag.String("report", "", "write the region price-delta report to this CSV file and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Config", err.Error())
		os.Exit(1)
	}
	logger.SetLevel(cfg.LogLevel)
	logger.Banner(version)

	if err := os.MkdirAll(cfg.Data.DataDir, 0o755); err != nil {
		logger.Error("Data", fmt.Sprintf("Create %s: %v", cfg.Data.DataDir, err))
		os.Exit(1)
	}

	stats := mokaam.NewClient(cfg.Mokaam.BaseURL, cfg.ESI.UserAgent, cfg.Mokaam.Timeout)

	if *reportPath != "" {
		if err := runReport(cfg, stats, *reportPath); err != nil {
			logger.Error("Report", err.Error())
			os.Exit(1)
		}
		return
	}

	database, err := db.Open(cfg.Data.DBPath)
	if err != nil {
		logger.Error("DB", fmt.Sprintf("Failed to open database: %v", err))
		os.Exit(1)
	}
	defer database.Close()

	esiClient := esi.NewClient(esi.Options{
		BaseURL:        cfg.ESI.BaseURL,
		UserAgent:      cfg.ESI.UserAgent,
		Timeout:        cfg.ESI.RequestTimeout,
		MaxConcurrency: cfg.ESI.MaxConcurrency,
	})

	var ssoConfig *auth.SSOConfig
	if cfg.ESI.ClientID != "" {
		ssoConfig = &auth.SSOConfig{
			ClientID:     cfg.ESI.ClientID,
			ClientSecret: cfg.ESI.ClientSecret,
			CallbackURL:  cfg.ESI.CallbackURL,
			Scopes:       cfg.ESI.Scopes,
		}
	} else {
		logger.Warn("AUTH", "EVEWH_ESI_CLIENT_ID not set, login disabled")
	}
	var refresher auth.Refresher
	if ssoConfig != nil {
		refresher = ssoConfig
	}
	sessions := auth.NewSessionStore(database.SqlDB(), refresher)
	account := esi.NewAuthClient(esiClient, sessions)

	srv := api.NewServer(cfg, api.Deps{
		Account:      account,
		Market:       esiClient,
		Stats:        stats,
		SSO:          ssoConfig,
		Sessions:     sessions,
		Corporations: esiClient,
		Health:       esiClient,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		table, err := sde.Load(ctx, cfg.Data.ItemTable, cfg.Data.DataDir)
		if err != nil {
			logger.Error("SDE", fmt.Sprintf("Load failed: %v", err))
			return
		}
		srv.SetItems(table, table.Len())
		logger.Success("SDE", "Engines ready")
	}()

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Server(cfg.Server.Addr())
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server", fmt.Sprintf("Failed: %v", err))
		os.Exit(1)
	}
}

// runReport fetches every hub once, applies the report thresholds and writes the CSV.
func runReport(cfg *config.Config, stats engine.RegionStatsAPI, path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	table, err := sde.Load(ctx, cfg.Data.ItemTable, cfg.Data.DataDir)
	if err != nil {
		return fmt.Errorf("load item table: %w", err)
	}

	f := engine.ReportFilter()
	f.MinVolume = cfg.Scanner.ReportMinVolume
	f.MinDeltaPct = cfg.Scanner.ReportMinDelta
	f.MaxDeltaPct = cfg.Scanner.ReportMaxDelta
	f.MinPrice = cfg.Scanner.ReportMinPrice

	res, err := engine.NewScanner(stats, engine.DefaultHubs(), nil).Scan(ctx, f, table)
	if err != nil {
		return err
	}
	for _, e := range res.Errors {
		logger.Warn("Report", e)
	}
	if err := report.WriteFile(path, res.Opportunities); err != nil {
		return err
	}
	logger.Success("Report", fmt.Sprintf("Wrote %d opportunities to %s", len(res.Opportunities), path))
	return nil
}
