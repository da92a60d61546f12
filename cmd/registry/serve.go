package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ovaphlow/pitchfork/service-registry/internal/auth"
	"github.com/ovaphlow/pitchfork/service-registry/internal/router"
	"github.com/ovaphlow/pitchfork/service-registry/internal/schema"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the operator HTTP API",
	Long: `Ensure the schema, then serve the read-only operator API until SIGINT or SIGTERM.

Requires REGISTRY_OPERATOR_SECRET. Listens on REGISTRY_HTTP_ADDR (default 0.0.0.0:8431).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context) error {
	srvCfg, err := serverConfigFromEnv()
	if err != nil {
		return err
	}
	authority, err := auth.NewAuthority(srvCfg.OperatorSecret)
	if err != nil {
		return err
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	a.sugar.Info("starting service-registry")

	if err := schema.Ensure(ctx, a.db); err != nil {
		return err
	}

	handler := router.RegisterRoutes(router.Deps{
		Logger:      a.sugar,
		DB:          a.db,
		Gatherer:    a.registry,
		Authority:   authority,
		Identities:  a.identities,
		Licenses:    a.licenses,
		Codes:       a.codes,
		Vehicles:    a.vehicles,
		Properties:  a.properties,
		Justice:     a.justice,
		Emergencies: a.emergencies,
	})
	srv := &http.Server{
		Addr:              srvCfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	a.sugar.Infow("service is running; press Ctrl+C to stop", "addr", srvCfg.Addr)

	select {
	case <-ctx.Done():
	case err := <-errc:
		if err != nil {
			return err
		}
	}

	a.sugar.Info("shutting down")
	// short grace period for in-flight requests
	doneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.db.Ping(doneCtx); err != nil {
		a.sugar.Warnw("db ping on shutdown failed", "err", err)
	}
	if err := srv.Shutdown(doneCtx); err != nil {
		a.sugar.Warnw("http server shutdown failed", "err", err)
	}
	a.sugar.Info("goodbye")
	return nil
}
