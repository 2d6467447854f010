// Command server runs a local authoritative Quoridor server for exercising the
// client end to end.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/quoridor-client/internal/authtoken"
	"github.com/DoyleJ11/quoridor-client/internal/config"
	"github.com/DoyleJ11/quoridor-client/internal/httpapi"
	"github.com/DoyleJ11/quoridor-client/internal/hub"
	"github.com/DoyleJ11/quoridor-client/internal/logging"
	"github.com/DoyleJ11/quoridor-client/internal/store"
)

func main() {
	cfg, err := config.LoadServer()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogDev)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Server, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var users store.UserStore = store.NewMemory()
	if cfg.DatabaseURL != "" {
		pg, err := store.OpenPostgres(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		users = pg
	}
	defer func() {
		if err := users.Close(); err != nil {
			log.Warn("close store", zap.Error(err))
		}
	}()

	h := hub.NewHub(ctx, hub.Config{Store: users, AFKTimeout: cfg.AFKTimeout, Logger: log})

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(httpapi.Deps{
		Hub:    h,
		Users:  users,
		Tokens: authtoken.NewIssuer(cfg.JWTSecret),
		Logger: log,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", cfg.Addr), zap.Bool("postgres", cfg.DatabaseURL != ""))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	// the hub and its lobbies stop with ctx
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
