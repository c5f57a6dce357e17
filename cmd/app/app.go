package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/glory2yahpub/marketplace/internal/api"
	"github.com/glory2yahpub/marketplace/internal/config"
	"github.com/glory2yahpub/marketplace/internal/db"
	"github.com/glory2yahpub/marketplace/internal/logger"
	"github.com/glory2yahpub/marketplace/internal/repository/dao"
)

const (
	configPath      = "./cmd/app/config.yml"
	shutdownTimeout = 10 * time.Second
)

func Start() error {
	conf, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize config -> %w", err)
	}

	if err = logger.Init(conf.API.Environment); err != nil {
		return fmt.Errorf("failed to initialize logger -> %w", err)
	}
	if err = logger.SetLevel(conf.Log.Level); err != nil {
		return fmt.Errorf("failed to set log level -> %w", err)
	}
	watchLogLevel()

	dbURL := os.Getenv("DATABASE_URL")
	var postgresDB *gorm.DB
	if dbURL != "" {
		postgresDB, err = db.OpenPostgresWithURL(dbURL, conf.Postgres.MaxOpenConns)
	} else {
		postgresDB, err = db.OpenPostgres(conf.Postgres)
	}
	if err != nil {
		return fmt.Errorf("failed to initialize database -> %w", err)
	}
	if err = dao.InitTables(postgresDB); err != nil {
		return fmt.Errorf("failed to migrate database -> %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := api.NewServer(conf, postgresDB)
	defer func() {
		if err := s.Close(); err != nil {
			zap.L().Warn("failed to close notification publisher", zap.Error(err))
		}
	}()
	s.RunBackground(ctx)

	addr := ":" + s.Config.API.Port
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zap.L().Info(fmt.Sprintf("starting server at %v", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err = <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start the server -> %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err = srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down the server -> %w", err)
	}

	return nil
}

// watchLogLevel applies log.level edits without a restart. Other keys need one.
func watchLogLevel() {
	err := config.Watch(configPath, func(conf *config.AppConfig) {
		if conf.Log.Level == logger.Level().String() {
			return
		}
		if err := logger.SetLevel(conf.Log.Level); err != nil {
			zap.L().Warn("ignoring log level change", zap.Error(err))
			return
		}
		zap.L().Info("log level changed", zap.String("level", conf.Log.Level))
	}, func(err error) {
		zap.L().Warn("ignoring invalid config change", zap.Error(err))
	})
	if err != nil {
		zap.L().Warn("config watcher not started", zap.Error(err))
	}
}
