package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	HistoryURL   string
	APIKey       string
	WatchAddress string
	Mint         string

	Symbol      string
	PriceURL    string
	PriceID     string
	ExplorerURL string

	Topic        string
	PageLimit    int
	MaxPages     int
	OverlapPages int
	MaxRetries   int
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
	HTTPTimeout  time.Duration
	PollInterval time.Duration

	TelegramToken  string
	TelegramSecret string
	CronSecret     string

	PGDSN     string
	CursorDir string

	ListenAddr string
	LogLevel   string
}

// Load merges config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BURNSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("history-url", "https://api.helius.xyz")
	v.SetDefault("price-url", "https://api.coingecko.com/api/v3")
	v.SetDefault("price-id", "render-token")
	v.SetDefault("symbol", "RNDR")
	v.SetDefault("explorer-url", "https://solscan.io")
	v.SetDefault("topic", "burn")
	v.SetDefault("page-limit", 100)
	v.SetDefault("max-pages", 10)
	v.SetDefault("overlap-pages", 1)
	v.SetDefault("max-retries", 4)
	v.SetDefault("retry-backoff", time.Second)
	v.SetDefault("max-backoff", 10*time.Second)
	v.SetDefault("http-timeout", 20*time.Second)
	v.SetDefault("poll-interval", 30*time.Second)
	v.SetDefault("cursor-dir", "./data")
	v.SetDefault("listen-addr", ":8080")
	v.SetDefault("log-level", "info")

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return Config{}, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return Config{}, fmt.Errorf("read config: %w", err)
			}
		}
	}

	cfg := Config{
		HistoryURL:     v.GetString("history-url"),
		APIKey:         v.GetString("api-key"),
		WatchAddress:   v.GetString("watch-address"),
		Mint:           v.GetString("mint"),
		Symbol:         v.GetString("symbol"),
		PriceURL:       v.GetString("price-url"),
		PriceID:        v.GetString("price-id"),
		ExplorerURL:    v.GetString("explorer-url"),
		Topic:          v.GetString("topic"),
		PageLimit:      v.GetInt("page-limit"),
		MaxPages:       v.GetInt("max-pages"),
		OverlapPages:   v.GetInt("overlap-pages"),
		MaxRetries:     v.GetInt("max-retries"),
		RetryBackoff:   v.GetDuration("retry-backoff"),
		MaxBackoff:     v.GetDuration("max-backoff"),
		HTTPTimeout:    v.GetDuration("http-timeout"),
		PollInterval:   v.GetDuration("poll-interval"),
		TelegramToken:  v.GetString("telegram-token"),
		TelegramSecret: v.GetString("telegram-secret"),
		CronSecret:     v.GetString("cron-secret"),
		PGDSN:          v.GetString("pg-dsn"),
		CursorDir:      v.GetString("cursor-dir"),
		ListenAddr:     v.GetString("listen-addr"),
		LogLevel:       v.GetString("log-level"),
	}

	return cfg, nil
}

// Validate checks the settings every ingestion mode needs. Missing
// credentials are configuration errors and fail fast, before any cycle
// runs.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("api key is required")
	}
	if c.WatchAddress == "" {
		return fmt.Errorf("watch address is required")
	}
	return nil
}
