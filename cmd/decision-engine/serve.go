// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/decision-engine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the evaluation HTTP API",
	Long: `Serve starts the HTTP API: POST /api/v1/evaluations runs an evaluation,
GET /api/v1/decisions lists archived decisions, /healthz and /metrics expose
operational state. The server drains in-flight requests on SIGINT/SIGTERM.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := buildEngine(true)
		if err != nil {
			return err
		}
		defer eng.close()

		checks := map[string]server.HealthCheck{
			"archive": func(ctx context.Context) error {
				_, err := eng.archive.List(ctx, 1)
				return err
			},
			"strategy_index": func(ctx context.Context) error {
				_, err := eng.strategy.Count(ctx)
				return err
			},
		}
		srv := server.New(eng.runner, eng.archive, eng.collector.Handler(), checks, eng.cfg.Guardrails, eng.logger)

		httpSrv := &http.Server{
			Addr:    eng.cfg.Server.Addr,
			Handler: srv.Handler(),
		}

		stop := make(chan struct{})
		go func() {
			if err := eng.prompts.Watch(stop); err != nil {
				eng.logger.Warn("prompt watcher stopped", zap.Error(err))
			}
		}()
		defer close(stop)

		errCh := make(chan error, 1)
		go func() {
			eng.logger.Info("serving", zap.String("addr", eng.cfg.Server.Addr))
			errCh <- httpSrv.ListenAndServe()
		}()

		signals := make(chan os.Signal, 1)
		signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

		select {
		case err := <-errCh:
			return fmt.Errorf("server: %w", err)
		case sig := <-signals:
			eng.logger.Info("shutting down", zap.String("signal", sig.String()))
		}

		ctx, cancel := context.WithTimeout(context.Background(), eng.cfg.Server.ShutdownGrace)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
