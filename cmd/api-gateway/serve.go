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

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-substitution-api/internal/handler"
	"github.com/noah-isme/sma-substitution-api/pkg/config"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), sessionFrom(cmd))
		},
	}
}

func serve(parent context.Context, sess *session) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, logr := sess.cfg, sess.logger
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	a, err := newApp(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logr.Error("shutdown cleanup failed", zap.Error(err))
		}
	}()

	router := newRouter(cfg, logr, a.metrics, a.auth, routes{
		teachers:    handler.NewTeacherHandler(a.teachers),
		absences:    handler.NewAbsenceHandler(a.absences),
		coverage:    handler.NewCoverageHandler(a.coverage),
		assignments: handler.NewAssignmentHandler(a.assignment),
		metrics:     handler.NewMetricsHandler(a.metrics, a.db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
	}

	logr.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
