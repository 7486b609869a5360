// Package ledger records batch attempts in a local SQLite file so an
// interrupted run can be inspected and resumed.
package ledger

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"studiopipe/internal/common"
	"studiopipe/pkg/errors"
)

// Status is the furthest step a batch reached.
type Status string

const (
	StatusStarted   Status = "started"
	StatusInserted  Status = "inserted"
	StatusRefreshed Status = "refreshed"
	StatusFailed    Status = "failed"
)

// Entry is one batch attempt.
type Entry struct {
	ID               int64
	RunID            string
	Batch            int
	FanRecords       int
	BoxOfficeRecords int
	Status           Status
	Error            string
	FansTotal        *int64
	FactsTotal       *int64
	StartedAt        time.Time
	UpdatedAt        time.Time
}

// RunSummary aggregates the batches of one run.
type RunSummary struct {
	RunID      string
	Batches    int
	LastBatch  int
	LastStatus Status
	Failed     int
	StartedAt  time.Time
	UpdatedAt  time.Time
}

// Ledger is the SQLite-backed batch log.
type Ledger struct {
	db    *sql.DB
	path  string
	mu    sync.Mutex
	clock func() time.Time
}

// Open opens or creates the ledger file.
func Open(path string) (*Ledger, error) {
	path = common.ExpandHome(path)
	if err := os.MkdirAll(filepath.Dir(path), common.DirPermissionSecure); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLedgerFailed, "Failed to create ledger directory").
			WithContext("path", path)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLedgerFailed, "Failed to open ledger").
			WithContext("path", path)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	l := &Ledger{db: db, path: path, clock: time.Now}
	if err := l.initSchema(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, errors.ErrCodeLedgerFailed, "Failed to initialize ledger schema").
			WithContext("path", path)
	}
	return l, nil
}

func (l *Ledger) initSchema() error {
	if _, err := l.db.Exec(createBatchesTableSQL); err != nil {
		return err
	}
	for _, stmt := range createIndexesSQL {
		if _, err := l.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Close closes the ledger database.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Ping checks the ledger database is reachable.
func (l *Ledger) Ping(ctx context.Context) error {
	return l.db.PingContext(ctx)
}

// Begin records a new batch attempt and returns its id.
func (l *Ledger) Begin(ctx context.Context, runID string, batch, fanRecords, boxRecords int) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock().UnixNano()
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO batches (run_id, batch, fan_records, box_office_records, status, started_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, batch, fanRecords, boxRecords, string(StatusStarted), now, now)
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeLedgerFailed, "Failed to record batch start").
			WithContext("run_id", runID).
			WithContext("batch", batch)
	}
	return res.LastInsertId()
}

// Mark advances a batch to status.
func (l *Ledger) Mark(ctx context.Context, id int64, status Status) error {
	return l.update(ctx, `UPDATE batches SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), l.clock().UnixNano(), id)
}

// Complete marks a batch refreshed and stores the aggregate totals.
func (l *Ledger) Complete(ctx context.Context, id int64, fansTotal, factsTotal int64) error {
	return l.update(ctx, `UPDATE batches SET status = ?, fans_total = ?, facts_total = ?, updated_at = ? WHERE id = ?`,
		string(StatusRefreshed), fansTotal, factsTotal, l.clock().UnixNano(), id)
}

// Fail marks a batch failed with the error text.
func (l *Ledger) Fail(ctx context.Context, id int64, cause error) error {
	text := ""
	if cause != nil {
		text = cause.Error()
	}
	return l.update(ctx, `UPDATE batches SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(StatusFailed), text, l.clock().UnixNano(), id)
}

func (l *Ledger) update(ctx context.Context, query string, args ...interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeLedgerFailed, "Failed to update ledger")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New(errors.ErrCodeLedgerFailed, "Ledger entry not found").
			WithContext("id", args[len(args)-1])
	}
	return nil
}

// Entries returns the batches of one run in batch order.
func (l *Ledger) Entries(ctx context.Context, runID string) ([]Entry, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, run_id, batch, fan_records, box_office_records, status, error,
		       fans_total, facts_total, started_at, updated_at
		FROM batches WHERE run_id = ? ORDER BY batch, id`, runID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLedgerFailed, "Failed to query ledger")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e                Entry
			status           string
			fans, facts      sql.NullInt64
			started, updated int64
		)
		if err := rows.Scan(&e.ID, &e.RunID, &e.Batch, &e.FanRecords, &e.BoxOfficeRecords,
			&status, &e.Error, &fans, &facts, &started, &updated); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeLedgerFailed, "Failed to read ledger entry")
		}
		e.Status = Status(status)
		if fans.Valid {
			e.FansTotal = &fans.Int64
		}
		if facts.Valid {
			e.FactsTotal = &facts.Int64
		}
		e.StartedAt = time.Unix(0, started)
		e.UpdatedAt = time.Unix(0, updated)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Runs summarizes the most recent runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}

	rows, err := l.db.QueryContext(ctx, `
		SELECT b.run_id, COUNT(*), MAX(b.batch),
		       SUM(CASE WHEN b.status = 'failed' THEN 1 ELSE 0 END),
		       MIN(b.started_at), MAX(b.updated_at),
		       (SELECT status FROM batches l WHERE l.run_id = b.run_id ORDER BY l.id DESC LIMIT 1)
		FROM batches b
		GROUP BY b.run_id
		ORDER BY MIN(b.started_at) DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeLedgerFailed, "Failed to query ledger runs")
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			r                RunSummary
			status           string
			started, updated int64
		)
		if err := rows.Scan(&r.RunID, &r.Batches, &r.LastBatch, &r.Failed, &started, &updated, &status); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeLedgerFailed, "Failed to read ledger run")
		}
		r.LastStatus = Status(status)
		r.StartedAt = time.Unix(0, started)
		r.UpdatedAt = time.Unix(0, updated)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// ResumeBatch returns the batch number a resumed run should start from:
// the first batch of the latest run that did not reach refreshed, or the
// one after its last batch. It returns 0 when the ledger is empty.
func (l *Ledger) ResumeBatch(ctx context.Context) (int, string, error) {
	runs, err := l.Runs(ctx, 1)
	if err != nil || len(runs) == 0 {
		return 0, "", err
	}
	run := runs[0]

	entries, err := l.Entries(ctx, run.RunID)
	if err != nil {
		return 0, "", err
	}

	done := map[int]bool{}
	for _, e := range entries {
		if e.Status == StatusRefreshed {
			done[e.Batch] = true
		}
	}
	for _, e := range entries {
		if !done[e.Batch] {
			return e.Batch, run.RunID, nil
		}
	}
	return run.LastBatch + 1, run.RunID, nil
}
