package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"simple_calculator/internal/config"
	"simple_calculator/internal/handlers"
	"simple_calculator/internal/logger"
	"simple_calculator/internal/repository"
	"simple_calculator/internal/repository/db"
	"simple_calculator/internal/server"
	"simple_calculator/internal/service"

	"github.com/spf13/cobra"
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(*configPath)
		},
	}
}

func runServe(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// init logger
	log := logger.Get(cfg.Log.Level)
	defer log.Sync()

	// open DB
	conn, err := db.InitDB(cfg.DB.Path)
	if err != nil {
		log.Errorw("failed to init sqlite", "err", err, "path", cfg.DB.Path)
		return err
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// wire dependencies
	repos := repository.NewRepository(conn)

	// Calculator sessions never outlive the process.
	n, err := repos.StateRepo.Clear(ctx)
	if err != nil {
		log.Errorw("failed to clear calculator state", "err", err)
		return err
	}
	if n > 0 {
		log.Infow("cleared calculator state of a previous run", "rows", n)
	}

	services := service.NewService(repos, service.Options{
		SigningKey: cfg.Auth.SigningKey,
		TokenTTL:   cfg.Auth.TokenTTL,
		IdleTTL:    cfg.Calculator.IdleTTL,
	})
	apiHandler := handlers.NewHandler(services, log)

	// start idle-state sweeper (via composed service)
	go services.Sweeper.Run(ctx, cfg.Calculator.SweepInterval)

	// start HTTP server
	srv := &server.Server{}
	serveErr := runHTTPServer(srv, cfg.Port, apiHandler, log)

	// graceful shutdown
	return waitForShutdown(cancel, srv, serveErr, cfg.Server.ShutdownTimeout, log)
}

// runHTTPServer runs the HTTP server in a separate goroutine. The returned
// channel yields the error that stopped it, if any.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Infow("http server listening", "port", port)
		errCh <- srv.Run(port, handler.InitRoutes())
	}()
	return errCh
}

// waitForShutdown blocks until a termination signal or a server failure,
// then stops background goroutines and drains in-flight requests.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, serveErr <-chan error, timeout time.Duration, log *logger.Logger) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		log.Infow("shutting down server...")
	case err := <-serveErr:
		cancel()
		if err != nil {
			log.Errorw("error starting server", "err", err)
		}
		return err
	}

	// stop background goroutines
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Errorw("server forced to shutdown", "err", err)
		return err
	}
	return nil
}
