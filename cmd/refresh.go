package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"studiopipe/internal/loader"
	"studiopipe/internal/ui"
	"studiopipe/pkg/errors"
)

var refreshCounts bool

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the dynamic table DAG without loading data",
	Args:  cobra.NoArgs,
	RunE:  runRefresh,
}

func init() {
	rootCmd.AddCommand(refreshCmd)
	refreshCmd.Flags().BoolVar(&refreshCounts, "counts", false, "Print the row count of every layer afterwards")
}

func runRefresh(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	svc, err := openWarehouse(ctx)
	if err != nil {
		return err
	}
	defer closeQuietly(svc, "Snowflake connection")

	l, err := newLoader(ctx, svc, nil, "", loader.Discard)
	if err != nil {
		return err
	}

	refreshes, err := l.Refresh(ctx)
	rows := make([][]string, 0, len(refreshes))
	for _, r := range refreshes {
		rows = append(rows, []string{r.Table, r.Stats})
	}
	ui.RenderTable(out, []string{"Dynamic Table", "Result"}, rows)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeRefreshFailed, "DAG refresh stopped").
			WithContext("refreshed", len(refreshes))
	}

	fans, facts, err := l.Totals(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "\n📊 Current totals: %s fans | %s daily performance records\n",
		ui.FormatCount(fans), ui.FormatCount(facts))

	if !refreshCounts {
		return nil
	}
	counts, err := l.LayerRowCounts(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	ui.RenderResult(out, counts)
	return nil
}
