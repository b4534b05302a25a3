// Package main is the entry point for the password reset mail service.
package main

import (
	"context"
	"errors"
	stdlog "log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sebasr/reset-mailer/internal/config"
	"github.com/sebasr/reset-mailer/internal/database"
	"github.com/sebasr/reset-mailer/internal/email"
	"github.com/sebasr/reset-mailer/internal/repository"
	"github.com/sebasr/reset-mailer/internal/server"
)

const (
	tokenCleanupInterval = time.Minute
	shutdownTimeout      = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("Failed to load configuration: %v", err)
	}

	logger := newLogger(cfg.IsProduction(), cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tokens, db, err := openTokenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if db != nil {
		defer func() {
			if err := db.Close(); err != nil {
				logger.Warn("error closing database", zap.Error(err))
			}
		}()
	}

	// Transport verification finishes before any request can be dispatched
	setup := email.NewConfigurator(cfg.Email, cfg.IsProduction(), logger).Configure(ctx)
	dispatcher := email.NewDispatcher(setup, email.DispatcherConfig{
		FrontendBaseURL:    cfg.Email.FrontendBaseURL,
		ProductName:        cfg.Email.ProductName,
		From:               cfg.Email.SMTPFrom,
		DefaultFromAddress: cfg.Email.SMTPUser,
		Production:         cfg.IsProduction(),
	}, logger)

	deps := &server.Dependencies{
		Config:         cfg,
		Logger:         logger,
		Mailer:         dispatcher,
		TransportState: setup.State,
		Tokens:         tokens,
	}
	if db != nil {
		deps.DB = db
	}

	go cleanupExpiredTokens(ctx, tokens, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           server.New(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server",
			zap.String("port", cfg.Server.Port),
			zap.String("env", cfg.Env),
			zap.String("transport", setup.State.String()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openTokenStore connects to PostgreSQL when DATABASE_URL is set and falls
// back to the in-memory store otherwise. db is nil for the memory store.
func openTokenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.ResetTokenRepository, *database.DB, error) {
	if cfg.Database.URL == "" {
		logger.Warn("DATABASE_URL not set, reset tokens are kept in memory")
		return repository.NewMemoryResetTokenRepository(), nil, nil
	}

	db, err := database.New(&cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	logger.Info("connected to database")
	return repository.NewPostgresResetTokenRepository(db.DB), db, nil
}

func cleanupExpiredTokens(ctx context.Context, tokens repository.ResetTokenRepository, logger *zap.Logger) {
	ticker := time.NewTicker(tokenCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := tokens.DeleteExpired(ctx)
			if err != nil {
				logger.Warn("failed to delete expired reset tokens", zap.Error(err))
				continue
			}
			if deleted > 0 {
				logger.Debug("deleted expired reset tokens", zap.Int64("count", deleted))
			}
		}
	}
}

func newLogger(production bool, level string) *zap.Logger {
	cfg := zap.NewProductionConfig()
	if !production {
		cfg = zap.NewDevelopmentConfig()
	}
	if lvl, err := zapcore.ParseLevel(level); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}
	cfg.DisableStacktrace = true
	cfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.UTC().Format(time.RFC3339))
	}
	cfg.EncoderConfig.TimeKey = "ts"
	logger, err := cfg.Build()
	if err != nil {
		stdlog.Fatalf("failed to set up logger: %v", err)
	}
	return logger
}
