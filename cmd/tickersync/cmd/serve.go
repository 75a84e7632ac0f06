package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/wonny/tickersync/internal/api/handlers"
	"github.com/wonny/tickersync/internal/api/router"
	"github.com/wonny/tickersync/internal/pkg/logger"
)

// serveCmd 상태 API 서버
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the status HTTP API (health, run history, table stats)",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	var redisPing handlers.PingFunc
	if a.redis != nil {
		redisPing = func(ctx context.Context) error { return a.redis.Ping(ctx).Err() }
	}

	var accessLogger *zerolog.Logger
	if cfg.Logging.FileEnabled {
		al := logger.NewAccessLogger(cfg.Logging.FilePath, cfg.Logging.RotationSize, cfg.Logging.RetentionDays)
		accessLogger = &al
	}

	handler := router.NewRouter(&router.Config{
		HealthHandler: handlers.NewHealthHandler(a.pool, redisPing, serviceVersion),
		RunsHandler:   handlers.NewRunsHandler(a.runs),
		StocksHandler: handlers.NewStocksHandler(a.stocks),
		CORSOrigins:   cfg.Server.CORSOrigins,
		AccessLogger:  accessLogger,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Status API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down status API")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
