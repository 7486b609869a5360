package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"studiopipe/internal/loader"
	"studiopipe/internal/ui"
	"studiopipe/pkg/errors"
)

var loadResume bool

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load synthetic batches and refresh the dynamic table DAG",
	Long: `Load runs the incremental load: for each batch it inserts fan interaction
and box office records into the raw tables, refreshes every dynamic table
in dependency order and prints the aggregate totals. After the last batch
the row counts of every layer are printed.

Use --start-batch to continue a failed run by hand, or --resume to pick the
batch up from the run ledger.`,
	Args: cobra.NoArgs,
	RunE: runLoad,
}

func init() {
	rootCmd.AddCommand(loadCmd)

	flags := loadCmd.Flags()
	flags.Int("batches", 10, "Number of batches in the run")
	flags.Int("start-batch", 1, "First batch to load")
	flags.Int("fan-count", 100, "Fan interactions per batch")
	flags.Int("box-office-count", 50, "Box office records per batch")
	flags.Duration("interval", 3*time.Second, "Pause between batches")
	flags.Int64("seed", 0, "Generator seed (0 seeds from the clock)")
	flags.BoolVar(&loadResume, "resume", false, "Resume the latest ledger run at its first unfinished batch")

	configKey(flags, "batches", "load.batches")
	configKey(flags, "start-batch", "load.start_batch")
	configKey(flags, "fan-count", "load.fan_count")
	configKey(flags, "box-office-count", "load.box_office_count")
	configKey(flags, "interval", "load.batch_interval")
	configKey(flags, "seed", "load.seed")
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	led, err := openLedger()
	if err != nil {
		return err
	}
	if led != nil {
		defer closeQuietly(led, "run ledger")
	}

	runID := ""
	if loadResume {
		if led == nil {
			return errors.ConfigError("Resuming needs the run ledger", "ledger.enabled")
		}
		batch, id, err := led.ResumeBatch(ctx)
		if err != nil {
			return err
		}
		switch {
		case batch == 0:
			ui.ShowInfo("The run ledger is empty, starting a new run")
		case batch > cfg.Load.Batches:
			ui.ShowSuccess(fmt.Sprintf("Run %s already loaded all %d batches", id, cfg.Load.Batches))
			return nil
		default:
			if ui.IsInteractive() {
				ok, err := ui.Confirm(fmt.Sprintf("Resume run %s at batch %d?", id, batch), true)
				if err != nil {
					return err
				}
				if !ok {
					return nil
				}
			}
			cfg.Load.StartBatch, runID = batch, id
		}
	}

	svc, err := openWarehouse(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(svc, "Snowflake connection")

	l, err := newLoader(ctx, svc, led, runID, ui.NewConsole(cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	_, err = loader.NewRunner(l, cfg.Load).Run(ctx)
	return err
}
