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

	"github.com/aretw0/agentgraph/internal/cli"
	httpAdapter "github.com/aretw0/agentgraph/pkg/adapters/http"
	"github.com/aretw0/agentgraph/pkg/observability"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves threads over a JSON API: POST /threads/{id}/runs, GET /threads,
GET /threads/{id}, DELETE /threads/{id}, GET /graph and GET /metrics.
Run diffs are streamed to GET /threads/{id}/events subscribers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		port, _ := cmd.Flags().GetString("port")

		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics, err := observability.NewMetrics(reg)
		if err != nil {
			return err
		}

		logger, err := cli.NewLogger(globalOpts)
		if err != nil {
			return err
		}
		rt, err := setup(
			cli.WithHooks(metrics.Hooks()),
			cli.WithHooks(observability.LoggingHooks(logger)),
		)
		if err != nil {
			return err
		}
		defer rt.Close()

		srv := &http.Server{
			Addr: ":" + port,
			Handler: httpAdapter.NewHandler(rt.Engine,
				httpAdapter.WithLogger(rt.Logger),
				httpAdapter.WithGatherer(reg),
			),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			rt.Logger.Info("agentgraph server listening", "address", srv.Addr, "store", rt.Config.Store.Kind)
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
			rt.Logger.Info("shutdown started", "signal", sig.String())

			// Give outstanding runs a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				rt.Logger.Error("graceful shutdown did not complete", "timeout", 5*time.Second, "err", err)
				if err := srv.Close(); err != nil {
					return fmt.Errorf("error killing server: %w", err)
				}
			}
			rt.Logger.Info("server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}
