package ledger

// createBatchesTableSQL holds one row per batch attempt.
const createBatchesTableSQL = `
CREATE TABLE IF NOT EXISTS batches (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    batch INTEGER NOT NULL,
    fan_records INTEGER NOT NULL,
    box_office_records INTEGER NOT NULL,
    status TEXT NOT NULL,
    error TEXT NOT NULL DEFAULT '',
    fans_total INTEGER,
    facts_total INTEGER,
    started_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
)`

var createIndexesSQL = []string{
	`CREATE INDEX IF NOT EXISTS idx_batches_run ON batches(run_id, batch)`,
	`CREATE INDEX IF NOT EXISTS idx_batches_started ON batches(started_at)`,
}
