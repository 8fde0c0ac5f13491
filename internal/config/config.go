package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application settings.
type Config struct {
	LogLevel  string          `mapstructure:"log_level"`
	Server    ServerConfig    `mapstructure:"server"`
	ESI       ESIConfig       `mapstructure:"esi"`
	Mokaam    MokaamConfig    `mapstructure:"mokaam"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Warehouse WarehouseConfig `mapstructure:"warehouse"`
	Scanner   ScannerConfig   `mapstructure:"scanner"`
	Data      DataConfig      `mapstructure:"data"`
}

// ServerConfig is the HTTP listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns host:port.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ESIConfig covers the ESI transport and the SSO application.
type ESIConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	UserAgent      string        `mapstructure:"user_agent"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
	ClientID       string        `mapstructure:"client_id"`
	ClientSecret   string        `mapstructure:"client_secret"`
	CallbackURL    string        `mapstructure:"callback_url"`
	Scopes         string        `mapstructure:"scopes"`
}

// MokaamConfig is the daily market aggregate source used by the region scanner.
type MokaamConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// CacheConfig holds TTLs of the two process-wide caches.
type CacheConfig struct {
	TradeTTL     time.Duration `mapstructure:"trade_ttl"`
	WarehouseTTL time.Duration `mapstructure:"warehouse_ttl"`
}

// WarehouseConfig tunes the valuation engine.
type WarehouseConfig struct {
	TransactionDaysBack int     `mapstructure:"transaction_days_back"`
	RealizedWindowDays  int     `mapstructure:"realized_window_days"`
	MinProfitMargin     float64 `mapstructure:"min_profit_margin"`
	MarketConcurrency   int     `mapstructure:"market_concurrency"`
	CorporationDivision int     `mapstructure:"corporation_division"`
	ProfitHistoryDays   int     `mapstructure:"profit_history_days"`

	// AnalysisTimeout bounds one valuation run; it is detached from the request
	// that triggered it.
	AnalysisTimeout time.Duration `mapstructure:"analysis_timeout"`
}

// ScannerConfig holds the thresholds of the scheduled region report and the live endpoint limit.
type ScannerConfig struct {
	ReportMinVolume int64   `mapstructure:"report_min_volume"`
	ReportMinDelta  float64 `mapstructure:"report_min_delta"`
	ReportMaxDelta  float64 `mapstructure:"report_max_delta"`
	ReportMinPrice  float64 `mapstructure:"report_min_price"`
	LiveLimit       int     `mapstructure:"live_limit"`
}

// DataConfig locates on-disk inputs.
type DataConfig struct {
	DBPath    string `mapstructure:"db_path"`
	DataDir   string `mapstructure:"data_dir"`
	ItemTable string `mapstructure:"item_table"` // .xlsx or .csv; empty means download the SDE
}

const defaultScopes = "esi-wallet.read_character_wallet.v1 esi-wallet.read_corporation_wallets.v1 " +
	"esi-assets.read_assets.v1 esi-assets.read_corporation_assets.v1 " +
	"esi-markets.read_character_orders.v1 esi-markets.read_corporation_orders.v1 " +
	"esi-contracts.read_character_contracts.v1 esi-contracts.read_corporation_contracts.v1"

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server:   ServerConfig{Host: "127.0.0.1", Port: 5000},
		ESI: ESIConfig{
			BaseURL:        "https://esi.evetech.net/latest",
			UserAgent:      "eve-warehouse/1.0",
			RequestTimeout: 15 * time.Second,
			MaxConcurrency: 20,
			CallbackURL:    "http://localhost:5000/api/auth/callback",
			Scopes:         defaultScopes,
		},
		Mokaam: MokaamConfig{
			BaseURL: "https://mokaam.dk/API",
			Timeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			TradeTTL:     5 * time.Minute,
			WarehouseTTL: 5 * time.Minute,
		},
		Warehouse: WarehouseConfig{
			TransactionDaysBack: 30,
			RealizedWindowDays:  30,
			MinProfitMargin:     0.05,
			MarketConcurrency:   8,
			CorporationDivision: 1,
			ProfitHistoryDays:   7,
			AnalysisTimeout:     2 * time.Minute,
		},
		Scanner: ScannerConfig{
			ReportMinVolume: 75,
			ReportMinDelta:  20,
			ReportMaxDelta:  1500,
			ReportMinPrice:  100000,
			LiveLimit:       50,
		},
		Data: DataConfig{
			DBPath:  "warehouse.db",
			DataDir: "data",
		},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("log_level", d.LogLevel)

	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)

	v.SetDefault("esi.base_url", d.ESI.BaseURL)
	v.SetDefault("esi.user_agent", d.ESI.UserAgent)
	v.SetDefault("esi.request_timeout", d.ESI.RequestTimeout)
	v.SetDefault("esi.max_concurrency", d.ESI.MaxConcurrency)
	v.SetDefault("esi.client_id", d.ESI.ClientID)
	v.SetDefault("esi.client_secret", d.ESI.ClientSecret)
	v.SetDefault("esi.callback_url", d.ESI.CallbackURL)
	v.SetDefault("esi.scopes", d.ESI.Scopes)

	v.SetDefault("mokaam.base_url", d.Mokaam.BaseURL)
	v.SetDefault("mokaam.timeout", d.Mokaam.Timeout)

	v.SetDefault("cache.trade_ttl", d.Cache.TradeTTL)
	v.SetDefault("cache.warehouse_ttl", d.Cache.WarehouseTTL)

	v.SetDefault("warehouse.transaction_days_back", d.Warehouse.TransactionDaysBack)
	v.SetDefault("warehouse.realized_window_days", d.Warehouse.RealizedWindowDays)
	v.SetDefault("warehouse.min_profit_margin", d.Warehouse.MinProfitMargin)
	v.SetDefault("warehouse.market_concurrency", d.Warehouse.MarketConcurrency)
	v.SetDefault("warehouse.corporation_division", d.Warehouse.CorporationDivision)
	v.SetDefault("warehouse.profit_history_days", d.Warehouse.ProfitHistoryDays)
	v.SetDefault("warehouse.analysis_timeout", d.Warehouse.AnalysisTimeout)

	v.SetDefault("scanner.report_min_volume", d.Scanner.ReportMinVolume)
	v.SetDefault("scanner.report_min_delta", d.Scanner.ReportMinDelta)
	v.SetDefault("scanner.report_max_delta", d.Scanner.ReportMaxDelta)
	v.SetDefault("scanner.report_min_price", d.Scanner.ReportMinPrice)
	v.SetDefault("scanner.live_limit", d.Scanner.LiveLimit)

	v.SetDefault("data.db_path", d.Data.DBPath)
	v.SetDefault("data.data_dir", d.Data.DataDir)
	v.SetDefault("data.item_table", d.Data.ItemTable)
}

// Load reads .env (if present), config.yaml (if present) and EVEWH_* environment
// variables on top of Default().
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	setDefaults(v)

	v.SetEnvPrefix("EVEWH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("config: server.port %d out of range", c.Server.Port)
	case c.ESI.MaxConcurrency <= 0:
		return fmt.Errorf("config: esi.max_concurrency must be positive")
	case c.Warehouse.MarketConcurrency <= 0:
		return fmt.Errorf("config: warehouse.market_concurrency must be positive")
	case c.Warehouse.AnalysisTimeout <= 0:
		return fmt.Errorf("config: warehouse.analysis_timeout must be positive")
	case c.Warehouse.MinProfitMargin < 0:
		return fmt.Errorf("config: warehouse.min_profit_margin must not be negative")
	case c.Scanner.ReportMaxDelta > 0 && c.Scanner.ReportMaxDelta < c.Scanner.ReportMinDelta:
		return fmt.Errorf("config: scanner delta band [%v,%v] is empty", c.Scanner.ReportMinDelta, c.Scanner.ReportMaxDelta)
	}
	return nil
}
