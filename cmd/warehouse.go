package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"studiopipe/internal/archive"
	"studiopipe/internal/config"
	"studiopipe/internal/generator"
	"studiopipe/internal/ledger"
	"studiopipe/internal/loader"
	"studiopipe/internal/pipeline"
	"studiopipe/internal/snowflake"
	"studiopipe/internal/ui"
)

// resolveConnection reads connections.toml and picks the configured
// connection. When several exist, none is the default and no flag, env var
// or config file named one, an interactive terminal gets a picker.
func resolveConnection() (snowflake.Connection, error) {
	conns, err := snowflake.LoadConnections(snowflake.ConnectionsFile(cfg.Snowflake.ConnectionsFile))
	if err != nil {
		return snowflake.Connection{}, err
	}

	name := cfg.Snowflake.ConnectionName
	explicit := connectionNamed(rootCmd.PersistentFlags(), settings)
	if snowflake.NeedsSelection(conns, explicit) && ui.IsInteractive() {
		if name, err = ui.SelectConnection(snowflake.ConnectionNames(conns)); err != nil {
			return snowflake.Connection{}, err
		}
	}
	return snowflake.ResolveConnection(conns, name)
}

// connectionNamed reports whether the operator chose a connection, through
// --connection or config.ConnectionNamed.
func connectionNamed(flags *pflag.FlagSet, v *viper.Viper) bool {
	if f := flags.Lookup("connection"); f != nil && f.Changed {
		return true
	}
	return config.ConnectionNamed(v)
}

func newService(conn snowflake.Connection) *snowflake.Service {
	return snowflake.NewService(conn, snowflake.Options{
		QueryTimeout: cfg.Snowflake.QueryTimeout,
		Logger:       logger,
	})
}

// openWarehouse resolves and connects, showing a spinner on stderr.
func openWarehouse(ctx context.Context) (*snowflake.Service, error) {
	conn, err := resolveConnection()
	if err != nil {
		return nil, err
	}

	svc := newService(conn)
	spinner := ui.NewSpinner(os.Stderr, fmt.Sprintf("Connecting to Snowflake (%s)", conn.Name))
	spinner.Start()
	if err := svc.Connect(ctx); err != nil {
		spinner.Stop(false, "Connection failed")
		return nil, err
	}
	spinner.Stop(true, fmt.Sprintf("Connected to %s", conn.Account))
	return svc, nil
}

// loadGraph loads the pipeline graph retargeted at the configured database.
func loadGraph() (*pipeline.Graph, error) {
	g, err := pipeline.Load(cfg.Pipeline.File)
	if err != nil {
		return nil, err
	}
	return g.WithDatabase(cfg.Warehouse.Database), nil
}

// openLedger returns nil when the ledger is disabled.
func openLedger() (*ledger.Ledger, error) {
	if !cfg.Ledger.Enabled {
		return nil, nil
	}
	return ledger.Open(cfg.Ledger.Path)
}

func newGenerator() *generator.Generator {
	if cfg.Load.Seed != 0 {
		return generator.NewSeeded(cfg.Load.Seed)
	}
	return generator.NewDefault()
}

// newLoader wires a loader to the warehouse, the archive and the ledger.
// An empty runID starts a new run.
func newLoader(ctx context.Context, wh loader.Warehouse, led *ledger.Ledger, runID string, reporter loader.Reporter) (*loader.Loader, error) {
	graph, err := loadGraph()
	if err != nil {
		return nil, err
	}
	if runID == "" {
		runID = loader.NewRunID()
	}

	archiver, err := archive.New(ctx, cfg.Archive, runID)
	if err != nil {
		return nil, err
	}

	return loader.New(wh, graph, loader.Options{
		Tables:       cfg.Warehouse,
		SourceSystem: cfg.Load.SourceSystem,
		RunID:        runID,
		Generator:    newGenerator(),
		Archiver:     archiver,
		Ledger:       led,
		Reporter:     reporter,
		Logger:       logger,
	}), nil
}

func closeQuietly(c io.Closer, what string) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		logger.WarnWithFields("Failed to close "+what, map[string]interface{}{"error": err})
	}
}
