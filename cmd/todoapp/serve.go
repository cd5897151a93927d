package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/suzukibelltree/SampleToDoApp/internal/auth"
	"github.com/suzukibelltree/SampleToDoApp/internal/cache"
	"github.com/suzukibelltree/SampleToDoApp/internal/database"
	"github.com/suzukibelltree/SampleToDoApp/internal/handlers"
	"github.com/suzukibelltree/SampleToDoApp/internal/logging"
	"github.com/suzukibelltree/SampleToDoApp/internal/middleware"
	"github.com/suzukibelltree/SampleToDoApp/internal/realtime"
	"github.com/suzukibelltree/SampleToDoApp/internal/repository"
	"github.com/suzukibelltree/SampleToDoApp/internal/routes"
	"github.com/suzukibelltree/SampleToDoApp/internal/store"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and websocket server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	log := logging.Component(a.log, "server")

	db, err := database.Open(a.cfg.Database, a.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := database.Close(db); err != nil {
			log.WithError(err).Warn("close database")
		}
	}()

	taskStore := store.New(db,
		store.WithCache(cache.New(cache.Options{Size: a.cfg.Cache.Size, TTL: a.cfg.Cache.TTL})),
		store.WithWriteRetries(a.cfg.Store.WriteRetries),
		store.WithLogger(a.log),
	)
	repo := repository.NewTaskRepository(taskStore)
	hub := realtime.NewHub(a.log)

	h := handlers.NewTaskHandler(ctx, repo, hub, handlers.SessionOptions{
		Max: a.cfg.Server.MaxSessions,
		TTL: a.cfg.Server.SessionTTL,
	}, a.log)
	defer h.Close()

	var validator middleware.TokenValidator
	if a.cfg.Auth.Enabled {
		issuer, err := auth.NewIssuer(a.cfg.Auth)
		if err != nil {
			return err
		}
		validator = issuer
	}

	srv := &http.Server{
		Addr:    a.cfg.Server.Addr,
		Handler: routes.SetupRoutes(h, validator),
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- errors.Wrap(err, "listen")
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shutdown")
	}
	log.Info("server exited properly")
	return nil
}
