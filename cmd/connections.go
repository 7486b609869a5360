package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"studiopipe/internal/snowflake"
	"studiopipe/internal/ui"
)

var connectionsCmd = &cobra.Command{
	Use:   "connections",
	Short: "List the named Snowflake connections",
	Long: `Connections lists the entries of connections.toml ($SNOWFLAKE_HOME or
~/.snowflake, or snowflake.connections_file). The connection that would be
used is marked with *. Nothing is opened.`,
	Args: cobra.NoArgs,
	RunE: runConnections,
}

func init() {
	rootCmd.AddCommand(connectionsCmd)
}

func runConnections(cmd *cobra.Command, args []string) error {
	path := snowflake.ConnectionsFile(cfg.Snowflake.ConnectionsFile)
	conns, err := snowflake.LoadConnections(path)
	if err != nil {
		return err
	}

	selected := ""
	if c, err := snowflake.ResolveConnection(conns, cfg.Snowflake.ConnectionName); err == nil {
		selected = c.Name
	}

	rows := make([][]string, 0, len(conns))
	for _, name := range snowflake.ConnectionNames(conns) {
		c := conns[name]
		mark := ""
		if name == selected {
			mark = "*"
		}
		auth := c.Authenticator
		if auth == "" {
			auth = "password"
		}
		rows = append(rows, []string{mark, name, c.Account, c.User, c.Role, c.Warehouse, c.Database, strings.ToLower(auth)})
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Connections from %s\n\n", path)
	ui.RenderTable(out, []string{"", "Name", "Account", "User", "Role", "Warehouse", "Database", "Auth"}, rows)
	if selected == "" && len(conns) > 1 {
		fmt.Fprintln(out)
		ui.ShowWarning("No connection selected; set SNOWFLAKE_CONNECTION_NAME or pass --connection")
	}
	return nil
}
