package cmd

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"studiopipe/internal/ui"
)

var dagCmd = &cobra.Command{
	Use:   "dag",
	Short: "Show the dynamic table graph and its refresh order",
	Long: `Dag validates the pipeline graph (the embedded default or pipeline.file)
and lists every table with its layer, dependencies and position in the
refresh plan. Tables refreshed on their own target lag show "-".`,
	Args: cobra.NoArgs,
	RunE: runDag,
}

func init() {
	rootCmd.AddCommand(dagCmd)

	dagCmd.Flags().String("file", "", "Pipeline graph file")
	configKey(dagCmd.Flags(), "file", "pipeline.file")
}

func runDag(cmd *cobra.Command, args []string) error {
	g, err := loadGraph()
	if err != nil {
		return err
	}

	order := map[string]int{}
	for i, fqn := range g.RefreshPlan() {
		order[fqn] = i + 1
	}

	rows := make([][]string, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		step := "-"
		if i, ok := order[g.FQN(n)]; ok {
			step = strconv.Itoa(i)
		}
		rows = append(rows, []string{step, g.FQN(n), n.Layer, strings.Join(n.DependsOn, ", ")})
	}

	out := cmd.OutOrStdout()
	ui.RenderTable(out, []string{"Refresh", "Table", "Layer", "Depends On"}, rows)
	return nil
}
