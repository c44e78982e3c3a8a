package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/celerix-dev/celerix-web/internal/app"
	"github.com/celerix-dev/celerix-web/internal/config"
	"github.com/celerix-dev/celerix-web/internal/logger"
	"github.com/celerix-dev/celerix-web/internal/server"
	"github.com/celerix-dev/celerix-web/internal/vault"
	"github.com/celerix-dev/celerix-web/pkg/engine"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configFiles []string
	var debug bool

	cmd := &cobra.Command{
		Use:          "celerix-web",
		Short:        "Serve the Celerix web app and its table store",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFiles...)
			if err != nil {
				return err
			}
			if debug {
				cfg.Log.Debug = true
			}
			log, err := logger.Setup(os.Stderr, cfg.Log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, log)
		},
	}

	cmd.Flags().StringSliceVarP(&configFiles, "config", "c", []string{"config.yaml", "config.local.yaml"}, "config files, applied in order; missing files are skipped")
	cmd.Flags().BoolVar(&debug, "debug", false, "enable debug logging")
	return cmd
}

// run serves HTTP, and the TCP store protocol when the store is embedded,
// until ctx is done or a server fails.
func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	a, err := app.New(cfg, log)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              ":" + cfg.HTTP.Port,
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	var router *server.Router
	if store, ok := a.Store.(*engine.MemStore); ok {
		router = server.NewRouter(store, log)
		if cfg.Store.DisableTLS {
			log.Warn("store.tls_disabled")
		} else {
			cert, err := vault.GenerateSelfSignedCert()
			if err != nil {
				return err
			}
			router.SetCertificate(cert)
		}
	} else {
		log.Info("store.remote", "addr", cfg.Store.Addr)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("http.listening", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if router != nil {
		g.Go(func() error {
			log.Info("store.listening", "port", cfg.Store.Port, "tls", !cfg.Store.DisableTLS)
			return router.Listen(cfg.Store.Port)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutdown.started")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		if router != nil {
			err = errors.Join(err, router.Stop())
		}
		return err
	})

	err = g.Wait()
	// Flush pending table writes even when a server failed.
	if cerr := a.Close(); cerr != nil {
		err = errors.Join(err, cerr)
	}
	log.Info("shutdown.complete", "error", err)
	return err
}
