package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/amplifyed/pulse/internal/config"
	"github.com/amplifyed/pulse/internal/hub"
	"github.com/amplifyed/pulse/internal/logging"
	"github.com/amplifyed/pulse/internal/mock"
	"github.com/amplifyed/pulse/internal/ws"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

type serveOptions struct {
	configPath string
	port       int
	demo       bool
}

func newServeCommand() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}
			logger, err := logging.New(logging.Options{
				Level:  cfg.Log.Level,
				Format: cfg.Log.Format,
				Output: cmd.ErrOrStderr(),
			})
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, opts.demo, logger)
		},
	}

	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "config.yaml", "Path to config file")
	cmd.Flags().IntVar(&opts.port, "port", 0, "Override server port")
	cmd.Flags().BoolVar(&opts.demo, "demo", false, "Run a simulated audience session")
	return cmd
}

func loadConfig(opts serveOptions) (*config.Config, error) {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if opts.port > 0 {
		cfg.Server.Port = opts.port
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func serve(ctx context.Context, cfg *config.Config, demo bool, logger *slog.Logger) error {
	clock := clockwork.NewRealClock()
	h := hub.New(hub.OptionsFromConfig(cfg, clock, logger))
	broadcaster := ws.NewBroadcaster(ws.BroadcasterOptions{
		MaxConnections: cfg.Server.MaxConnections,
		SendBuffer:     cfg.Server.SendBuffer,
		WriteTimeout:   cfg.Server.WriteTimeout,
		PingInterval:   cfg.Server.PingInterval,
		Logger:         logger,
	})

	hubCtx, stopHub := context.WithCancel(context.Background())
	hubDone := make(chan error, 1)
	go func() { hubDone <- h.Run(hubCtx, broadcaster) }()
	defer func() {
		stopHub()
		<-hubDone
	}()

	if demo {
		gen := mock.NewGenerator(h, mock.Options{
			Participants: cfg.Demo.Participants,
			Interval:     cfg.Demo.Interval,
			Clock:        clock,
			Logger:       logger,
		})
		if err := gen.Start(ctx); err != nil {
			return fmt.Errorf("start demo: %w", err)
		}
		logger.Info("demo session running", "code", gen.Code())
	}

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           ws.NewServer(cfg.Server, h, broadcaster, logger).Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	broadcaster.CloseAll()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
