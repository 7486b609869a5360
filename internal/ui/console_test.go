package ui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"studiopipe/internal/snowflake"
)

func TestConsoleBatchProgress(t *testing.T) {
	plainOutput(t)
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.BatchStarted(3, 100, 50)
	c.Inserted(100, 50)
	c.RefreshStarted()
	c.Refreshed("SONY_DE.SILVER.DT_STG_FAN_INTERACTIONS", "1 row(s) refreshed")
	c.Refreshed("UNQUALIFIED", "refreshed")
	c.Totals(1234, 56789)
	c.Waiting(3 * time.Second)

	rule := strings.Repeat("=", 60)
	want := "\n" + rule + "\n" +
		"BATCH 3: Loading 100 fan interactions + 50 box office records\n" +
		rule + "\n" +
		"  ✓ Inserted 100 fan interactions\n" +
		"  ✓ Inserted 50 box office records\n" +
		"\n  Refreshing Dynamic Table DAG...\n" +
		"    ↳ DT_STG_FAN_INTERACTIONS: 1 row(s) refreshed\n" +
		"    ↳ UNQUALIFIED: refreshed\n" +
		"\n  📊 Current totals: 1,234 fans | 56,789 daily performance records\n" +
		"\n  ⏳ Waiting 3 seconds before next batch...\n"
	assert.Equal(t, want, buf.String())
}

func TestConsoleRunBanners(t *testing.T) {
	plainOutput(t)
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.RunStarted(10)
	c.RunCompleted(10)

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "🎬 Sony DE Incremental Load - 10 Batches\n"+strings.Repeat("=", 60)+"\n"))
	assert.Contains(t, out, "✅ All 10 batches loaded successfully!")
}

func TestConsoleRowCounts(t *testing.T) {
	plainOutput(t)
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.RowCounts(&snowflake.Table{
		Columns: []string{"LAYER", "TABLE_NAME", "ROW_COUNT"},
		Rows: [][]interface{}{
			{"BRONZE", "RAW_FAN_INTERACTIONS", int64(1000)},
			{"GOLD", "DT_DIM_FANS", "987"},
		},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, "📊 Final Row Counts:", lines[0])
	assert.Equal(t, "  BRONZE     | RAW_FAN_INTERACTIONS                     | 1,000", lines[1])
	assert.Equal(t, "  GOLD       | DT_DIM_FANS                              | 987", lines[2])
}

func TestWaitText(t *testing.T) {
	assert.Equal(t, "3 seconds", waitText(3*time.Second))
	assert.Equal(t, "1 second", waitText(time.Second))
	assert.Equal(t, "0 seconds", waitText(0))
	assert.Equal(t, "1.5s", waitText(1500*time.Millisecond))
}
