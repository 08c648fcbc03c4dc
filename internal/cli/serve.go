package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httphandler "github.com/nurpe/koshtorys/internal/http"
	"github.com/nurpe/koshtorys/internal/http/middleware"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, rt)
		},
	}
}

func serve(ctx context.Context, rt *runtime) error {
	a, err := newApp(rt.cfg, rt.log)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.tokens.Enabled() {
		rt.log.Warn().Str("owner_id", rt.cfg.Auth.DefaultOwnerID.String()).Msg("JWT_ACCESS_SECRET is empty, requests run as the default owner")
	}

	handler := httphandler.NewHandler(a.services, rt.log)
	router := httphandler.NewRouter(handler, middleware.Auth(a.tokens), httphandler.RouterConfig{
		Environment:    rt.cfg.Environment,
		AllowedOrigins: rt.cfg.HTTP.AllowedOrigins,
		Gatherer:       a.registry,
	}, rt.log)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", rt.cfg.HTTP.Host, rt.cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rt.log.Info().Str("addr", server.Addr).Msg("starting koshtorys")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		rt.log.Info().Msg("shutting down")
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		rt.log.Error().Err(err).Msg("server stopped")
		return err
	}
	return nil
}
