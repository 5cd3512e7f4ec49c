package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/slotwise/adapter/api"
)

var (
	serveAddr            string
	serveShutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scheduling HTTP API",
	Long: `Serve the scheduling engine over HTTP until interrupted.

Examples:
  slotwise serve
  slotwise serve --addr 127.0.0.1:9090`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, ok := RequireApp(cmd)
		if !ok {
			return nil
		}
		if logger == nil {
			logger = slog.Default()
		}

		if app.Outbox != nil {
			app.Outbox.Start(cmd.Context())
			defer app.Outbox.Stop()
		}

		cfg := api.DefaultServerConfig()
		cfg.Addr = serveAddr

		metrics := app.Metrics
		errCh := make(chan error, 2)
		var metricsServer *http.Server
		if app.MetricsAddr != "" && app.Metrics != nil {
			mux := http.NewServeMux()
			mux.Handle("GET /metrics", app.Metrics)
			metricsServer = &http.Server{Addr: app.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			metrics = nil
			go func() {
				logger.Info("serving metrics", "addr", app.MetricsAddr)
				errCh <- metricsServer.ListenAndServe()
			}()
		}

		server := api.NewServer(cfg, NewAPIHandler(app), app.Health, metrics, logger)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("serve: %w", err)
		case <-cmd.Context().Done():
		}

		ctx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
		defer cancel()
		if metricsServer != nil {
			_ = metricsServer.Shutdown(ctx)
		}
		return server.Shutdown(ctx)
	},
}

// NewAPIHandler maps the app's handlers onto the HTTP handler.
func NewAPIHandler(a *App) *api.SchedulingHandler {
	return api.NewSchedulingHandler(api.SchedulingHandlerConfig{
		AddEntity:      a.AddEntityHandler,
		RemoveEntity:   a.RemoveEntityHandler,
		ImportCalendar: a.ImportCalendarHandler,
		Suggest:        a.SuggestPlacementHandler,
		Apply:          a.ApplySolutionHandler,
		Undo:           a.UndoSolutionHandler,
		ListEntities:   a.ListEntitiesHandler,
		FindSlots:      a.FindAvailableSlotsHandler,
		Detect:         a.DetectConflictsHandler,
		Propose:        a.ProposeSolutionsHandler,
		ListTokens:     a.ListRollbackTokensHandler,
		Defaults:       a.Defaults,
		Now:            a.Clock,
		Logger:         logger,
	})
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", api.DefaultServerConfig().Addr, "listen address")
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown timeout")
	rootCmd.AddCommand(serveCmd)
}
