package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/mirror-of-truth/internal/api"
	"github.com/satriahrh/mirror-of-truth/internal/auth"
	"github.com/satriahrh/mirror-of-truth/internal/catalog"
	"github.com/satriahrh/mirror-of-truth/internal/config"
	"github.com/satriahrh/mirror-of-truth/internal/history"
	"github.com/satriahrh/mirror-of-truth/internal/websocket"
	"github.com/satriahrh/mirror-of-truth/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mirror web server",
	Long: `Start the Mirror of Truth web server.
The browser page at / streams camera frames over a websocket and renders the
detected mood, tips and the emotion grid.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return errors.New("JWT_SECRET is required to serve")
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := catalog.Default()
	if err != nil {
		return fmt.Errorf("failed to load tip catalog: %w", err)
	}

	tokens, err := auth.NewTokenIssuer(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}

	gate, err := newGate(ctx, cfg.Detector, logger)
	if err != nil {
		return err
	}

	moodHistory, closeHistory, err := newHistory(ctx, cfg.History, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		closeHistory(closeCtx)
	}()

	cleanup := history.NewCleanupService(moodHistory, cfg.History.Retention, cfg.History.CleanupInterval, logger)
	cleanup.Start()
	defer cleanup.Stop()

	var narrator websocket.Narrator
	tipNarrator, err := newNarrator(cfg.ElevenLabs, logger)
	if err != nil {
		return err
	}
	if tipNarrator != nil {
		narrator = tipNarrator
	}

	mirrors := usecase.NewMirrorService(c, gate, moodHistory, mirrorConfig(cfg.Mirror), cfg.Detector.MockSeed, logger)

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := websocket.NewHub(mirrors, narrator, c, logger)
	go hub.Run(hubCtx)

	// Create Echo instance
	e := echo.New()
	e.HideBanner = true

	// Middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	api.InitRoutes(e, hub, mirrors, tokens, gate, c, logger)

	go func() {
		if err := e.Start(cfg.Server.Addr()); err != nil && err != http.ErrServerClosed {
			logger.Error("Server stopped unexpectedly", zap.Error(err))
			stop()
		}
	}()

	logger.Info("Mirror server started",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("detector", gate.Name()),
		zap.Bool("mongo", cfg.History.MongoURI != ""),
		zap.Bool("narration", narrator != nil))

	<-ctx.Done()
	logger.Info("Server is shutting down...")

	// Disconnect clients first so every controller releases its camera.
	stopHub()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.Info("Server exited")
	return nil
}
