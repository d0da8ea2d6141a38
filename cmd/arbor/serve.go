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

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/metrics"
	"github.com/aretw0/arbor/internal/validator"
	httpAdapter "github.com/aretw0/arbor/pkg/adapters/http"
	"github.com/aretw0/arbor/pkg/ports"
	"github.com/aretw0/arbor/pkg/session"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP session server",
	Long: `Serves live playthroughs as a JSON API, with Server-Sent Events per
session, Mermaid rendering and Prometheus metrics on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Flags().Changed("addr") {
			cfg.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("graph") {
			cfg.Graph, _ = cmd.Flags().GetString("graph")
		}
		watch, _ := cmd.Flags().GetBool("watch")

		src, err := openSource()
		if err != nil {
			return err
		}
		defer src.Close()

		opts := []session.Option{
			session.WithLogger(logger),
			session.WithLifecycleHooks(metrics.Hooks()),
		}
		if src.Locker != nil {
			opts = append(opts, session.WithLocker(src.Locker), session.WithLockTTL(cfg.LockTTL))
		}
		mgr := session.NewManager(src.Loader, opts...)

		handler := httpAdapter.NewHandler(mgr,
			httpAdapter.WithDefaultGraph(cfg.Graph),
			httpAdapter.WithVersion(arbor.Version),
			httpAdapter.WithLogger(logger),
		)
		srv := &http.Server{
			Addr:              cfg.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()
		if watch {
			if err := watchSource(ctx, src.Loader); err != nil {
				return err
			}
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting arbor server", "addr", srv.Addr, "source", cfg.Source, "graph", cfg.Graph)
			serverErrors <- srv.ListenAndServe()
		}()

		// Channel to listen for interrupt or terminate signals.
		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		defer signal.Stop(shutdown)

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("server error: %w", err)

		case sig := <-shutdown:
			logger.Info("Start shutdown", "signal", sig.String())

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancelShutdown()

			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			logger.Info("Arbor server stopped gracefully")
			return nil
		}
	},
}

// watchSource revalidates every graph whenever the source changes. New
// sessions always load the current version; running ones keep theirs.
func watchSource(ctx context.Context, loader ports.GraphLoader) error {
	watchable, ok := loader.(ports.Watchable)
	if !ok {
		return fmt.Errorf("source %q cannot be watched", cfg.Source)
	}
	changes, err := watchable.Watch(ctx)
	if err != nil {
		return err
	}
	go func() {
		for range changes {
			names, err := loader.List(ctx)
			if err != nil {
				logger.Error("Reload failed", "err", err)
				metrics.GraphReloads.WithLabelValues("failed").Inc()
				continue
			}
			status := "ok"
			for _, name := range names {
				if err := validator.ValidateSource(ctx, loader, name); err != nil {
					logger.Warn("Reloaded graph is invalid", "graph", name, "err", err)
					status = "invalid"
				}
			}
			metrics.GraphReloads.WithLabelValues(status).Inc()
			logger.Info("Graph source reloaded", "graphs", len(names), "status", status)
		}
	}()
	return nil
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Address to listen on (ARBOR_ADDR, default :8080)")
	serveCmd.Flags().String("graph", "", "Graph of sessions created without one (ARBOR_GRAPH)")
	serveCmd.Flags().Bool("watch", false, "Revalidate graphs when the source changes")
}
