package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"studiopipe/internal/ui"
	"studiopipe/pkg/errors"
)

var batchCmd = &cobra.Command{
	Use:   "batch <number>",
	Short: "Load a single batch",
	Long: `Batch loads one batch under a new run: inserts, DAG refresh and totals,
without the pause and the final layer summary of a full load.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	flags := batchCmd.Flags()
	flags.Int("fan-count", 100, "Fan interactions in the batch")
	flags.Int("box-office-count", 50, "Box office records in the batch")
	flags.Int64("seed", 0, "Generator seed (0 seeds from the clock)")

	configKey(flags, "fan-count", "load.fan_count")
	configKey(flags, "box-office-count", "load.box_office_count")
	configKey(flags, "seed", "load.seed")
}

func parseBatch(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, errors.New(errors.ErrCodeInvalidInput, "Batch number must be a positive integer").
			WithContext("batch", arg)
	}
	return n, nil
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	batch, err := parseBatch(args[0])
	if err != nil {
		return err
	}

	led, err := openLedger()
	if err != nil {
		return err
	}
	if led != nil {
		defer closeQuietly(led, "run ledger")
	}

	svc, err := openWarehouse(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(svc, "Snowflake connection")

	l, err := newLoader(ctx, svc, led, "", ui.NewConsole(cmd.OutOrStdout()))
	if err != nil {
		return err
	}

	_, err = l.LoadBatch(ctx, batch, cfg.Load.FanCount, cfg.Load.BoxOfficeCount)
	return err
}
