package loader

import (
	"time"

	"studiopipe/internal/snowflake"
)

// Reporter receives human-facing progress. ui.Console is the terminal
// implementation.
type Reporter interface {
	RunStarted(batches int)
	BatchStarted(batch, fans, boxOffice int)
	Inserted(fans, boxOffice int)
	RefreshStarted()
	Refreshed(fqn, stats string)
	Totals(fans, facts int64)
	Waiting(d time.Duration)
	RunCompleted(batches int)
	RowCounts(t *snowflake.Table)
}

// Discard is a Reporter that prints nothing.
var Discard Reporter = discard{}

type discard struct{}

func (discard) RunStarted(int)             {}
func (discard) BatchStarted(int, int, int) {}
func (discard) Inserted(int, int)          {}
func (discard) RefreshStarted()            {}
func (discard) Refreshed(string, string)   {}
func (discard) Totals(int64, int64)        {}
func (discard) Waiting(time.Duration)      {}
func (discard) RunCompleted(int)           {}
func (discard) RowCounts(*snowflake.Table) {}
