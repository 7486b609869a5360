package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiopipe/internal/archive"
	"studiopipe/internal/config"
	"studiopipe/internal/ledger"
	"studiopipe/pkg/errors"
)

// resetFlags restores every flag to its default so tests sharing rootCmd
// do not see each other's values.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execute runs the CLI with args in an isolated home directory.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	if os.Getenv("STUDIOPIPE_LEDGER_PATH") == "" {
		t.Setenv("STUDIOPIPE_LEDGER_PATH", filepath.Join(home, "ledger.db"))
	}
	t.Cleanup(func() { resetFlags(rootCmd) })

	b := new(bytes.Buffer)
	rootCmd.SetOut(b)
	rootCmd.SetErr(b)
	rootCmd.SetArgs(args)

	err := rootCmd.ExecuteContext(context.Background())
	return b.String(), err
}

func TestRootCommandHelp(t *testing.T) {
	out, err := execute(t, "--help")
	require.NoError(t, err)

	assert.Contains(t, out, "studiopipe")
	assert.Contains(t, out, "Available Commands:")
	for _, name := range []string{"load", "batch", "refresh", "dashboard", "dag", "generate", "connections", "ledger", "version"} {
		assert.Contains(t, out, name)
	}
}

func TestInvalidCommand(t *testing.T) {
	_, err := execute(t, "invalid-command")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "studiopipe version dev")
	assert.Contains(t, out, "Built at: unknown")
}

func TestDagCommand(t *testing.T) {
	out, err := execute(t, "dag")
	require.NoError(t, err)
	assert.Contains(t, out, "REFRESH")
	assert.Contains(t, out, "SONY_DE.GOLD.DT_DIM_FANS")
	assert.Contains(t, out, "SONY_DE.BRONZE.RAW_FAN_INTERACTIONS")

	out, err = execute(t, "dag", "--database", "SONY_DE_DEV")
	require.NoError(t, err)
	assert.Contains(t, out, "SONY_DE_DEV.GOLD.DT_DIM_FANS")
	assert.NotContains(t, out, "SONY_DE.GOLD")
}

func TestDagCommandBadFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "graph.yaml")
	require.NoError(t, os.WriteFile(file, []byte("database: X\nnodes:\n  - id: A\n    schema: S\n    depends_on: [MISSING]\n"), 0o644))

	_, err := execute(t, "dag", "--file", file)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeUnknownDependency, errors.GetErrorCode(err))
}

func TestGenerateCommand(t *testing.T) {
	out, err := execute(t, "generate", "--fan-count", "3", "--box-office-count", "2", "--seed", "42", "--batch", "4")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	for i, line := range lines {
		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &doc), line)
		if i < 3 {
			assert.NotEmpty(t, doc["fan_id"])
		} else {
			assert.NotEmpty(t, doc["title_id"])
		}
	}

	again, err := execute(t, "generate", "--fan-count", "3", "--box-office-count", "2", "--seed", "42", "--batch", "4")
	require.NoError(t, err)
	firstFan := func(s string) string { return strings.SplitN(s, "\n", 2)[0] }
	var a, b map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(firstFan(out)), &a))
	require.NoError(t, json.Unmarshal([]byte(firstFan(again)), &b))
	assert.Equal(t, a["fan_id"], b["fan_id"], "a fixed seed repeats the identifiers")
}

func TestGenerateDecode(t *testing.T) {
	data, err := archive.Encode([][]byte{[]byte(`{"a":1}`), []byte(`{"b":2}`)})
	require.NoError(t, err)
	file := filepath.Join(t.TempDir(), "batch_1_fans.json.sz")
	require.NoError(t, os.WriteFile(file, data, 0o644))

	out, err := execute(t, "generate", "--decode", file)
	require.NoError(t, err)
	assert.Equal(t, "{\"a\":1}\n{\"b\":2}\n", out)

	_, err = execute(t, "generate", "--decode", filepath.Join(t.TempDir(), "missing.sz"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeArchiveFailed, errors.GetErrorCode(err))
}

func writeConnections(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	toml := `[dev]
account = "acme-dev"
user = "loader"
role = "LOADER"

[prod]
account = "acme-prod"
user = "loader"
authenticator = "SNOWFLAKE_JWT"
private_key_file = "/keys/rsa_key.p8"
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "connections.toml"), []byte(toml), 0o600))
	t.Setenv("SNOWFLAKE_HOME", dir)
}

func TestConnectionsCommand(t *testing.T) {
	writeConnections(t)
	t.Setenv(config.ConnectionNameEnv, "")

	out, err := execute(t, "connections", "--connection", "prod")
	require.NoError(t, err)
	assert.Contains(t, out, "acme-dev")
	assert.Contains(t, out, "acme-prod")
	assert.Contains(t, out, "snowflake_jwt")
	assert.Contains(t, out, "password")

	var marked string
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "*") {
			marked = line
		}
	}
	assert.Contains(t, marked, "prod")
}

func TestConnectionsCommandMissingFile(t *testing.T) {
	t.Setenv("SNOWFLAKE_HOME", t.TempDir())

	_, err := execute(t, "connections")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigNotFound, errors.GetErrorCode(err))
}

func seedLedger(t *testing.T, path string) {
	t.Helper()
	ctx := context.Background()
	led, err := ledger.Open(path)
	require.NoError(t, err)
	defer led.Close()

	first, err := led.Begin(ctx, "run-1", 1, 100, 50)
	require.NoError(t, err)
	require.NoError(t, led.Complete(ctx, first, 1200, 340))

	second, err := led.Begin(ctx, "run-1", 2, 100, 50)
	require.NoError(t, err)
	require.NoError(t, led.Fail(ctx, second, fmt.Errorf("refresh of DT_DIM_FANS failed")))
}

func TestLedgerCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv("STUDIOPIPE_LEDGER_PATH", path)
	seedLedger(t, path)

	out, err := execute(t, "ledger")
	require.NoError(t, err)
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "LAST BATCH")

	out, err = execute(t, "ledger", "--run", "run-1")
	require.NoError(t, err)
	assert.Contains(t, out, "1,200")
	assert.Contains(t, out, "refresh of DT_DIM_FANS failed")

	_, err = execute(t, "ledger", "--run", "run-9")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeNoResults, errors.GetErrorCode(err))
}

func TestLedgerDisabled(t *testing.T) {
	t.Setenv("STUDIOPIPE_LEDGER_ENABLED", "false")

	_, err := execute(t, "ledger")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))

	_, err = execute(t, "load", "--resume")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
}

func TestInvalidConfiguration(t *testing.T) {
	t.Setenv("STUDIOPIPE_LOAD_BATCHES", "0")

	_, err := execute(t, "dag")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
}

func TestBindFlags(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("batches", 10, "")
	flags.Int("fan-count", 100, "")
	flags.Int("unbound", 1, "")
	configKey(flags, "batches", "load.batches")
	configKey(flags, "fan-count", "load.fan_count")

	require.NoError(t, flags.Parse([]string{"--batches", "7", "--unbound", "3"}))
	require.NoError(t, bindFlags(v, flags))

	assert.Equal(t, 7, v.GetInt("load.batches"))
	assert.Equal(t, 100, v.GetInt("load.fan_count"))
}

func TestConnectionNamed(t *testing.T) {
	t.Setenv(config.ConnectionNameEnv, "")
	t.Setenv("STUDIOPIPE_SNOWFLAKE_CONNECTION_NAME", "")
	t.Setenv(config.ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))
	v := config.New()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.StringP("connection", "c", "", "")
	assert.False(t, connectionNamed(flags, v))

	t.Setenv(config.ConnectionNameEnv, "default")
	assert.True(t, connectionNamed(flags, v))

	t.Setenv(config.ConnectionNameEnv, "")
	require.NoError(t, flags.Parse([]string{"--connection", "default"}))
	assert.True(t, connectionNamed(flags, v))
}

func TestParseBatch(t *testing.T) {
	n, err := parseBatch("3")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for _, bad := range []string{"0", "-1", "x"} {
		_, err := parseBatch(bad)
		require.Error(t, err, bad)
		assert.Equal(t, errors.ErrCodeInvalidInput, errors.GetErrorCode(err))
	}
}
