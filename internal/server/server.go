package server

import (
	"context"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"burnscope/internal/bot"
	"burnscope/internal/indexer"
	"burnscope/internal/notify"
	"burnscope/internal/runner"
)

// Config holds the HTTP surface settings.
type Config struct {
	Addr string
	// CronSecret guards the trigger and push endpoints. Empty means those
	// endpoints refuse all requests.
	CronSecret string
	// TelegramSecret, when set, must match the secret token header
	// Telegram sends with webhook updates.
	TelegramSecret string
}

// Server exposes the trigger and webhook surface over HTTP: a
// secret-guarded "run one cycle" endpoint for an external scheduler, a
// push webhook for pre-formed transaction batches, and the chat webhook.
type Server struct {
	cfg      Config
	echo     *echo.Echo
	runner   *runner.Runner
	commands *bot.Handler
	sender   notify.Sender
	logger   *zap.Logger
}

func New(cfg Config, run *runner.Runner, commands *bot.Handler, sender notify.Sender, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())

	s := &Server{
		cfg:      cfg,
		echo:     e,
		runner:   run,
		commands: commands,
		sender:   sender,
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.echo.GET("/healthz", s.handleHealth)
	s.echo.GET("/cron/burn", s.handleCron)
	s.echo.POST("/webhook/transactions", s.handleTransactions)
	s.echo.POST("/telegram/webhook", s.handleTelegram)
}

// Start blocks serving HTTP until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info("http server listening", zap.String("addr", s.cfg.Addr))
	err := s.echo.Start(s.cfg.Addr)
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// handleCron runs one ingestion cycle. Idempotent: a repeated trigger
// finds no new events and commits nothing new.
func (s *Server) handleCron(c echo.Context) error {
	if !s.authorized(c) {
		return c.String(http.StatusUnauthorized, "nope")
	}
	if err := s.runner.RunOnce(c.Request().Context()); err != nil {
		s.logger.Error("cron cycle failed", zap.Error(err))
		return c.String(http.StatusInternalServerError, "error")
	}
	return c.String(http.StatusOK, "ok")
}

// handleTransactions feeds a pushed transaction batch through the same
// extract/record/dispatch path as the poller.
func (s *Server) handleTransactions(c echo.Context) error {
	if !s.authorized(c) {
		return c.String(http.StatusUnauthorized, "nope")
	}

	var txs []indexer.Transaction
	if err := c.Bind(&txs); err != nil {
		return c.String(http.StatusBadRequest, "bad payload")
	}

	fresh, err := s.runner.ProcessBatch(c.Request().Context(), txs)
	if err != nil {
		s.logger.Error("webhook batch failed", zap.Error(err))
		return c.String(http.StatusInternalServerError, "error")
	}
	return c.JSON(http.StatusOK, map[string]int{"new_events": fresh})
}

func (s *Server) handleTelegram(c echo.Context) error {
	if s.cfg.TelegramSecret != "" &&
		c.Request().Header.Get("X-Telegram-Bot-Api-Secret-Token") != s.cfg.TelegramSecret {
		return c.NoContent(http.StatusUnauthorized)
	}

	var update tgbotapi.Update
	if err := c.Bind(&update); err != nil {
		return c.NoContent(http.StatusBadRequest)
	}
	if s.commands == nil || update.Message == nil || update.Message.Chat == nil {
		return c.NoContent(http.StatusOK)
	}

	chatID := update.Message.Chat.ID
	reply := s.commands.HandleMessage(c.Request().Context(), chatID, update.Message.Text)
	if reply != "" && s.sender != nil {
		if err := s.sender.Send(c.Request().Context(), chatID, reply); err != nil {
			s.logger.Warn("command reply failed", zap.Int64("chat_id", chatID), zap.Error(err))
		}
	}
	return c.NoContent(http.StatusOK)
}

func (s *Server) authorized(c echo.Context) bool {
	return s.cfg.CronSecret != "" && c.QueryParam("secret") == s.cfg.CronSecret
}
