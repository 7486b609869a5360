package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"studiopipe/internal/ledger"
	"studiopipe/internal/ui"
	"studiopipe/pkg/errors"
)

var (
	ledgerLimit int
	ledgerRun   string
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Show recent load runs from the run ledger",
	Long: `Ledger lists the most recent load runs recorded in the local SQLite
ledger. With --run it lists every batch attempt of one run, including the
error that stopped it.`,
	Args: cobra.NoArgs,
	RunE: runLedger,
}

func init() {
	rootCmd.AddCommand(ledgerCmd)

	ledgerCmd.Flags().IntVarP(&ledgerLimit, "limit", "n", 10, "Number of runs to list")
	ledgerCmd.Flags().StringVar(&ledgerRun, "run", "", "Run id to list batches for")
}

const stampFormat = "2006-01-02 15:04:05"

func runLedger(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !cfg.Ledger.Enabled {
		return errors.ConfigError("The run ledger is disabled", "ledger.enabled")
	}
	led, err := ledger.Open(cfg.Ledger.Path)
	if err != nil {
		return err
	}
	defer closeQuietly(led, "run ledger")

	if ledgerRun != "" {
		entries, err := led.Entries(ctx, ledgerRun)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return errors.New(errors.ErrCodeNoResults, "No batches recorded for run").
				WithContext("run_id", ledgerRun)
		}
		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			rows = append(rows, []string{
				strconv.Itoa(e.Batch),
				strconv.Itoa(e.FanRecords),
				strconv.Itoa(e.BoxOfficeRecords),
				ui.StatusWord(string(e.Status)),
				optionalCount(e.FansTotal),
				optionalCount(e.FactsTotal),
				e.UpdatedAt.Local().Format(stampFormat),
				e.Error,
			})
		}
		ui.RenderTable(out, []string{"Batch", "Fans", "Box Office", "Status", "Fans Total", "Facts Total", "Updated", "Error"}, rows)
		return nil
	}

	runs, err := led.Runs(ctx, ledgerLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		ui.ShowInfo(fmt.Sprintf("No runs recorded in %s", led.Path()))
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		rows = append(rows, []string{
			r.RunID,
			strconv.Itoa(r.Batches),
			strconv.Itoa(r.LastBatch),
			ui.StatusWord(string(r.LastStatus)),
			strconv.Itoa(r.Failed),
			r.StartedAt.Local().Format(stampFormat),
			r.UpdatedAt.Local().Format(stampFormat),
		})
	}
	ui.RenderTable(out, []string{"Run", "Batches", "Last Batch", "Status", "Failed", "Started", "Updated"}, rows)

	batch, runID, err := led.ResumeBatch(ctx)
	if err != nil {
		return err
	}
	if batch > 0 && runs[0].LastStatus != ledger.StatusRefreshed {
		fmt.Fprintln(out)
		ui.ShowWarning(fmt.Sprintf("Run %s stopped before batch %d finished; continue with: studiopipe load --resume", runID, batch))
	}
	return nil
}

func optionalCount(n *int64) string {
	if n == nil {
		return "-"
	}
	return ui.FormatCount(*n)
}
