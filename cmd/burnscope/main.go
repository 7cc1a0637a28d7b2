package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"burnscope/internal/bot"
	"burnscope/internal/config"
	"burnscope/internal/indexer"
	"burnscope/internal/notify"
	"burnscope/internal/price"
	"burnscope/internal/runner"
	"burnscope/internal/server"
	"burnscope/internal/storage"
	"burnscope/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "burnscope",
		Short:        "Token burn watcher and alert bot",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run one ingestion cycle and exit",
		RunE:  runOnce,
	}
	addRunFlags(runCmd)
	root.AddCommand(runCmd)

	watchCmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll for new burns on a fixed interval",
		RunE:  runWatch,
	}
	addRunFlags(watchCmd)
	root.AddCommand(watchCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the cron trigger, push webhook, and chat webhook",
		RunE:  runServe,
	}
	addRunFlags(serveCmd)
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().String("history-url", "https://api.helius.xyz", "transaction-history API base URL")
	cmd.Flags().String("api-key", "", "transaction-history API key")
	cmd.Flags().String("watch-address", "", "burn vault address to monitor")
	cmd.Flags().String("mint", "", "optional token mint gate for transfers")
	cmd.Flags().String("symbol", "RNDR", "token symbol used in alerts")
	cmd.Flags().String("price-url", "https://api.coingecko.com/api/v3", "price API base URL")
	cmd.Flags().String("price-id", "render-token", "price API token id")
	cmd.Flags().String("explorer-url", "https://solscan.io", "transaction explorer base URL")
	cmd.Flags().String("topic", "burn", "ingestion topic")
	cmd.Flags().Int("page-limit", 100, "transactions per history page")
	cmd.Flags().Int("max-pages", 10, "maximum history pages per cycle")
	cmd.Flags().Int("overlap-pages", 1, "pages scanned past the cursor barrier")
	cmd.Flags().Int("max-retries", 4, "maximum retry attempts per page")
	cmd.Flags().Duration("retry-backoff", time.Second, "initial retry backoff")
	cmd.Flags().Duration("max-backoff", 10*time.Second, "retry backoff cap")
	cmd.Flags().Duration("http-timeout", 20*time.Second, "history API request timeout")
	cmd.Flags().Duration("poll-interval", 30*time.Second, "watch mode polling interval")
	cmd.Flags().String("telegram-token", "", "Telegram bot token")
	cmd.Flags().String("telegram-secret", "", "Telegram webhook secret token")
	cmd.Flags().String("cron-secret", "", "secret guarding the trigger endpoints")
	cmd.Flags().String("pg-dsn", "", "Postgres DSN (memory + file cursor when empty)")
	cmd.Flags().String("cursor-dir", "./data", "cursor file directory (no-Postgres mode)")
	cmd.Flags().String("listen-addr", ":8080", "serve mode listen address")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
}

// app bundles everything a subcommand needs once wiring is done.
type app struct {
	runner   *runner.Runner
	commands *bot.Handler
	sender   notify.Sender
	cleanup  func()
}

func setup(cmd *cobra.Command) (config.Config, *zap.Logger, error) {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return config.Config{}, nil, err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return config.Config{}, nil, err
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, nil, err
	}
	return cfg, logger, nil
}

func build(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	var (
		events  storage.EventStore
		cursors storage.CursorStore
		subs    storage.SubscriberStore
		cleanup = func() {}
	)

	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		events, cursors, subs = store, store, store
		cleanup = store.Close
	} else {
		mem := storage.NewMemoryStore()
		events, subs = mem, mem
		cursors = storage.NewFileCursorStore(cfg.CursorDir)
		logger.Warn("no pg-dsn configured: events and subscribers are in-memory only")
	}

	history := indexer.NewClient(cfg.HistoryURL, cfg.APIKey, cfg.HTTPTimeout)
	prices := price.NewClient(cfg.PriceURL, cfg.PriceID, logger)

	fetcher := indexer.NewFetcher(indexer.FetchConfig{
		WatchAddress: cfg.WatchAddress,
		Mint:         cfg.Mint,
		PageLimit:    cfg.PageLimit,
		MaxPages:     cfg.MaxPages,
		OverlapPages: cfg.OverlapPages,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
		MaxBackoff:   cfg.MaxBackoff,
	}, history, prices, logger)

	var sender notify.Sender
	if cfg.TelegramToken != "" {
		telegram, err := notify.NewTelegramSender(cfg.TelegramToken)
		if err != nil {
			cleanup()
			return nil, fmt.Errorf("telegram init: %w", err)
		}
		sender = telegram
	} else {
		logger.Warn("no telegram token configured: alerts go to the log")
		sender = notify.LogSender{Logger: logger}
	}

	dispatcher := notify.NewDispatcher(sender, cfg.Symbol, cfg.ExplorerURL, logger)

	run := runner.New(runner.Config{Topic: cfg.Topic}, fetcher, events, cursors, subs, dispatcher, logger)
	commands := bot.NewHandler(cfg.Topic, cfg.Symbol, subs, events, logger)

	return &app{runner: run, commands: commands, sender: sender, cleanup: cleanup}, nil
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.cleanup()

	return a.runner.RunOnce(ctx)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.cleanup()

	logger.Info("watch start",
		zap.String("watch_address", cfg.WatchAddress),
		zap.String("topic", cfg.Topic),
		zap.Duration("interval", cfg.PollInterval),
	)

	err = a.runner.RunLoop(ctx, cfg.PollInterval)
	if err == context.Canceled {
		return nil
	}
	return err
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.CronSecret == "" {
		return fmt.Errorf("cron secret is required in serve mode")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.cleanup()

	srv := server.New(server.Config{
		Addr:           cfg.ListenAddr,
		CronSecret:     cfg.CronSecret,
		TelegramSecret: cfg.TelegramSecret,
	}, a.runner, a.commands, a.sender, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
