package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"syscall"

	"github.com/Tao-Zi-Liu/WoInsert/internal/app"
	"github.com/Tao-Zi-Liu/WoInsert/internal/wo/handler"
	"github.com/oklog/run"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), opts)
		},
	}
}

func serve(ctx context.Context, opts *rootOptions) error {
	cfg, logger := opts.cfg, opts.logger
	logger.Info("Starting WoInsert", zap.String("version", Version), zap.String("build_time", BuildTime))

	a, err := app.Build(ctx, cfg, logger, handler.BuildInfo{Version: Version, BuildTime: BuildTime})
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	defer a.Close()

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     a.Router(),
		ReadTimeout: cfg.Server.ReadTimeout,
		// SSE 长连接不设写超时
		WriteTimeout: 0,
	}

	var g run.Group

	// HTTP server
	g.Add(func() error {
		logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		logger.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server forced to shutdown", zap.Error(err))
		}
	})

	// OS signals
	g.Add(run.SignalHandler(ctx, syscall.SIGINT, syscall.SIGTERM))

	err = g.Run()
	var sig run.SignalError
	if errors.As(err, &sig) {
		logger.Info("Termination signal received", zap.String("signal", sig.Signal.String()))
		err = nil
	}
	logger.Info("Server exited")
	return err
}
