package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"studiopipe/internal/dashboard"
	"studiopipe/internal/observability"
	"studiopipe/internal/ui"
	"studiopipe/pkg/errors"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the pipeline monitoring dashboard",
	Long: `Dashboard serves the monitoring UI over HTTP: layer row counts, data
quality metric results, stream, task and dynamic table health, lineage and
the dbt test configuration.

The local profile targets a developer account reached through a named
connection; the sis profile mirrors the in-account deployment layout.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)

	flags := dashboardCmd.Flags()
	flags.String("addr", ":8501", "Listen address")
	flags.String("profile", "local", "Dashboard profile (local or sis)")

	configKey(flags, "addr", "dashboard.addr")
	configKey(flags, "profile", "dashboard.profile")
}

func runDashboard(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	profile, err := dashboard.NewProfile(cfg.Dashboard.Profile, cfg.Warehouse.Database)
	if err != nil {
		return err
	}
	graph, err := loadGraph()
	if err != nil {
		return err
	}

	// Resolve up front so a picker runs before serving; connect lazily.
	conn, err := resolveConnection()
	if err != nil {
		return err
	}
	open := func(ctx context.Context) (dashboard.Source, error) {
		svc := newService(conn)
		if err := svc.Connect(ctx); err != nil {
			return nil, err
		}
		return svc, nil
	}

	server := dashboard.NewServer(profile, graph, open, logger)
	defer closeQuietly(server, "dashboard connection")

	led, err := openLedger()
	if err != nil {
		return err
	}
	if led != nil {
		defer closeQuietly(led, "run ledger")
		server.Health().RegisterCheck(observability.NewPingCheck("ledger", led.Ping))
	}

	httpServer := &http.Server{
		Addr:              cfg.Dashboard.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	ui.ShowHeader(profile.Title)
	ui.ShowInfo(fmt.Sprintf("Dashboard (%s profile) listening on %s", profile.Name, cfg.Dashboard.Addr))
	logger.InfoWithFields("Dashboard started", map[string]interface{}{
		"addr":       cfg.Dashboard.Addr,
		"profile":    profile.Name,
		"database":   profile.Database,
		"connection": conn.Name,
	})

	select {
	case err := <-errCh:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, errors.ErrCodeDashboardRender, "Dashboard server stopped").
			WithContext("addr", cfg.Dashboard.Addr)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, errors.ErrCodeDashboardRender, "Dashboard shutdown failed")
	}
	logger.Info("Dashboard stopped")
	return nil
}
