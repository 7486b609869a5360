package ui

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"studiopipe/internal/snowflake"
)

const rule = 60

// Console prints the human-readable progress of a load run. Lines match the
// wording operators already know from the batch script, colored when the
// terminal allows it.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole writes progress to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) printf(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// RunStarted prints the run banner.
func (c *Console) RunStarted(batches int) {
	c.printf("%s\n%s\n",
		ColorBold(fmt.Sprintf("🎬 Sony DE Incremental Load - %d Batches", batches)),
		strings.Repeat("=", rule))
}

// BatchStarted prints the batch header.
func (c *Console) BatchStarted(batch, fans, boxOffice int) {
	line := strings.Repeat("=", rule)
	c.printf("\n%s\n%s\n%s\n", line,
		ColorBold(fmt.Sprintf("BATCH %d: Loading %d fan interactions + %d box office records", batch, fans, boxOffice)),
		line)
}

// Inserted reports how many raw rows went in.
func (c *Console) Inserted(fans, boxOffice int) {
	c.printf("  %s Inserted %d fan interactions\n", ColorSuccess("✓"), fans)
	c.printf("  %s Inserted %d box office records\n", ColorSuccess("✓"), boxOffice)
}

// RefreshStarted announces the dynamic table refresh pass.
func (c *Console) RefreshStarted() {
	c.printf("\n  Refreshing Dynamic Table DAG...\n")
}

// Refreshed reports one refreshed table by its unqualified name.
func (c *Console) Refreshed(fqn, stats string) {
	name := fqn
	if i := strings.LastIndex(fqn, "."); i >= 0 {
		name = fqn[i+1:]
	}
	c.printf("    %s %s: %s\n", ColorProgress("↳"), name, ColorDim(stats))
}

// Totals prints the aggregate counts after a batch.
func (c *Console) Totals(fans, facts int64) {
	c.printf("\n  📊 Current totals: %s fans | %s daily performance records\n",
		ColorInfo(FormatCount(fans)), ColorInfo(FormatCount(facts)))
}

// Waiting announces the pause between batches.
func (c *Console) Waiting(d time.Duration) {
	c.printf("\n  ⏳ Waiting %s before next batch...\n", waitText(d))
}

// RunCompleted prints the closing banner.
func (c *Console) RunCompleted(batches int) {
	line := strings.Repeat("=", rule)
	c.printf("\n%s\n%s\n%s\n", line,
		ColorSuccess(fmt.Sprintf("✅ All %d batches loaded successfully!", batches)),
		line)
}

// RowCounts prints the layer row count view, one line per table.
func (c *Console) RowCounts(t *snowflake.Table) {
	c.printf("\n📊 Final Row Counts:\n")
	for i := 0; i < t.Len(); i++ {
		c.printf("  %-10s | %-40s | %s\n", t.String(i, "LAYER"), t.String(i, "TABLE_NAME"), FormatCount(t.Int(i, "ROW_COUNT")))
	}
}

func waitText(d time.Duration) string {
	if d%time.Second == 0 {
		secs := int64(d / time.Second)
		if secs == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", secs)
	}
	return FormatDuration(d)
}
