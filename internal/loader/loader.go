package loader

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studiopipe/internal/archive"
	"studiopipe/internal/generator"
	"studiopipe/internal/ledger"
	"studiopipe/internal/observability"
	"studiopipe/internal/pipeline"
	"studiopipe/internal/snowflake"
	"studiopipe/pkg/errors"
	"studiopipe/pkg/models"
)

// insertSQL loads one JSON document into a raw landing table.
const insertSQL = "INSERT INTO %s (RAW_DATA, SOURCE_SYSTEM, SOURCE_FILE) SELECT PARSE_JSON(?), ?, ?"

// Steps named in batch errors and ledger rows.
const (
	StepGenerate     = "generate"
	StepArchive      = "archive"
	StepInsertFans   = "insert_fans"
	StepInsertBox    = "insert_box_office"
	StepRefresh      = "refresh"
	StepCount        = "count"
	StepLedger       = "ledger"
	StepLayerSummary = "layer_row_counts"
)

// Warehouse is the part of the Snowflake client the loader drives.
type Warehouse interface {
	Exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryTable(ctx context.Context, query string, args ...interface{}) (*snowflake.Table, error)
	Count(ctx context.Context, fqn string) (int64, error)
	RefreshDynamicTable(ctx context.Context, fqn string) (string, error)
}

// Options configures a Loader. Zero values fall back to the load script
// defaults, a time-seeded generator and a silent reporter.
type Options struct {
	Tables       models.Warehouse
	SourceSystem string
	RunID        string
	Generator    *generator.Generator
	Archiver     *archive.Archiver
	Ledger       *ledger.Ledger
	Reporter     Reporter
	Logger       *observability.Logger
}

// Refresh is the outcome of one dynamic table refresh.
type Refresh struct {
	Table string `json:"table"`
	Stats string `json:"stats"`
}

// BatchResult describes one loaded batch.
type BatchResult struct {
	Batch            int           `json:"batch"`
	FanRecords       int           `json:"fan_records"`
	BoxOfficeRecords int           `json:"box_office_records"`
	Refreshes        []Refresh     `json:"refreshes"`
	FansTotal        int64         `json:"fans_total"`
	FactsTotal       int64         `json:"facts_total"`
	Archived         []string      `json:"archived,omitempty"`
	Duration         time.Duration `json:"duration"`
}

// Loader inserts one batch of synthetic records, refreshes the dynamic
// table graph and reads back the aggregate totals.
type Loader struct {
	wh       Warehouse
	graph    *pipeline.Graph
	tables   models.Warehouse
	source   string
	runID    string
	gen      *generator.Generator
	archiver *archive.Archiver
	ledger   *ledger.Ledger
	reporter Reporter
	logger   *observability.Logger
}

// New builds a loader against wh for the given graph.
func New(wh Warehouse, graph *pipeline.Graph, opts Options) *Loader {
	if graph == nil {
		graph = pipeline.Default()
	}
	tables := opts.Tables
	if tables.RawSchema == "" {
		tables.RawSchema = "BRONZE"
	}
	if tables.FanTable == "" {
		tables.FanTable = "RAW_FAN_INTERACTIONS"
	}
	if tables.BoxTable == "" {
		tables.BoxTable = "RAW_BOX_OFFICE"
	}
	if tables.FansTotal == "" {
		tables.FansTotal = "GOLD.DT_DIM_FANS"
	}
	if tables.FactsTotal == "" {
		tables.FactsTotal = "GOLD.DT_FACT_DAILY_PERFORMANCE"
	}

	l := &Loader{
		wh:       wh,
		graph:    graph,
		tables:   tables,
		source:   opts.SourceSystem,
		runID:    opts.RunID,
		gen:      opts.Generator,
		archiver: opts.Archiver,
		ledger:   opts.Ledger,
		reporter: opts.Reporter,
		logger:   opts.Logger,
	}
	if l.source == "" {
		l.source = "INCREMENTAL_LOAD"
	}
	if l.runID == "" {
		l.runID = NewRunID()
	}
	if l.gen == nil {
		l.gen = generator.NewDefault()
	}
	if l.reporter == nil {
		l.reporter = Discard
	}
	if l.logger == nil {
		l.logger = observability.GetDefaultLogger()
	}
	l.logger = l.logger.WithField("run_id", l.runID)
	return l
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// RunID returns the identifier shared by every batch of this loader.
func (l *Loader) RunID() string {
	return l.runID
}

// Database returns the target database.
func (l *Loader) Database() string {
	return l.graph.Database
}

// FanTable returns the fully qualified fan landing table.
func (l *Loader) FanTable() string {
	return l.qualify(l.tables.RawSchema + "." + l.tables.FanTable)
}

// BoxOfficeTable returns the fully qualified box office landing table.
func (l *Loader) BoxOfficeTable() string {
	return l.qualify(l.tables.RawSchema + "." + l.tables.BoxTable)
}

func (l *Loader) qualify(schemaAndTable string) string {
	return l.graph.Database + "." + schemaAndTable
}

// SourceFile names the logical file a batch's records are tagged with.
func SourceFile(batch int, kind string) string {
	return fmt.Sprintf("batch_%d_%s.json", batch, kind)
}

// LoadBatch runs one batch end to end. The first failing statement aborts
// the batch; rows already inserted stay in the raw tables.
func (l *Loader) LoadBatch(ctx context.Context, batch, fanCount, boxCount int) (BatchResult, error) {
	start := time.Now()
	result := BatchResult{Batch: batch, FanRecords: fanCount, BoxOfficeRecords: boxCount}
	log := l.logger.WithField("batch", batch)

	l.reporter.BatchStarted(batch, fanCount, boxCount)

	entry, err := l.begin(ctx, batch, fanCount, boxCount)
	if err != nil {
		return result, err
	}
	// Ledger writes outlive an interrupt so the entry shows where the batch stopped.
	record := context.WithoutCancel(ctx)

	fail := func(err error) (BatchResult, error) {
		if entry != 0 {
			if lerr := l.ledger.Fail(record, entry, err); lerr != nil {
				log.WarnWithFields("Failed to record batch failure", map[string]interface{}{"error": lerr})
			}
		}
		log.ErrorWithFields("Batch failed", map[string]interface{}{"error": err})
		result.Duration = time.Since(start)
		return result, err
	}

	fans, err := marshalAll(l.gen.FanInteractions(batch, fanCount))
	if err != nil {
		return fail(stepError(err, errors.ErrCodeGeneration, StepGenerate, batch, "Failed to encode fan interactions"))
	}
	boxes, err := marshalAll(l.gen.BoxOfficeRecords(batch, boxCount))
	if err != nil {
		return fail(stepError(err, errors.ErrCodeGeneration, StepGenerate, batch, "Failed to encode box office records"))
	}

	fanFile := SourceFile(batch, "fans")
	boxFile := SourceFile(batch, "box_office")
	result.Archived = l.archive(ctx, log, payloadFile{fanFile, fans}, payloadFile{boxFile, boxes})

	if err := l.insertAll(ctx, l.FanTable(), fanFile, fans); err != nil {
		return fail(stepError(err, errors.ErrCodeInsertFailed, StepInsertFans, batch, "Failed to insert fan interaction"))
	}
	if err := l.insertAll(ctx, l.BoxOfficeTable(), boxFile, boxes); err != nil {
		return fail(stepError(err, errors.ErrCodeInsertFailed, StepInsertBox, batch, "Failed to insert box office record"))
	}
	l.reporter.Inserted(fanCount, boxCount)
	log.InfoWithFields("Raw records inserted", map[string]interface{}{
		"fan_records":        fanCount,
		"box_office_records": boxCount,
	})
	if err := l.mark(record, entry, ledger.StatusInserted); err != nil {
		return fail(err)
	}

	refreshes, err := l.Refresh(ctx)
	result.Refreshes = refreshes
	if err != nil {
		return fail(stepError(err, errors.ErrCodeRefreshFailed, StepRefresh, batch, "Dynamic table refresh failed"))
	}

	fansTotal, factsTotal, err := l.Totals(ctx)
	if err != nil {
		return fail(stepError(err, errors.ErrCodeSQLExecution, StepCount, batch, "Failed to read aggregate totals"))
	}
	result.FansTotal, result.FactsTotal = fansTotal, factsTotal
	l.reporter.Totals(fansTotal, factsTotal)

	if entry != 0 {
		if err := l.ledger.Complete(record, entry, fansTotal, factsTotal); err != nil {
			return fail(stepError(err, errors.ErrCodeLedgerFailed, StepLedger, batch, "Failed to record batch completion"))
		}
	}

	result.Duration = time.Since(start)
	log.InfoWithFields("Batch loaded", map[string]interface{}{
		"fans_total":  fansTotal,
		"facts_total": factsTotal,
		"duration_ms": result.Duration.Milliseconds(),
	})
	return result, nil
}

// Refresh refreshes every dynamic table of the plan in order, stopping at
// the first failure. The refreshes completed so far are returned with it.
func (l *Loader) Refresh(ctx context.Context) ([]Refresh, error) {
	plan := l.graph.RefreshPlan()
	refreshes := make([]Refresh, 0, len(plan))

	l.reporter.RefreshStarted()
	for _, fqn := range plan {
		stats, err := l.wh.RefreshDynamicTable(ctx, fqn)
		if err != nil {
			return refreshes, err
		}
		refreshes = append(refreshes, Refresh{Table: fqn, Stats: stats})
		l.reporter.Refreshed(fqn, stats)
	}
	return refreshes, nil
}

// Totals counts the fan dimension and daily performance fact tables.
func (l *Loader) Totals(ctx context.Context) (fans, facts int64, err error) {
	if fans, err = l.wh.Count(ctx, l.qualify(l.tables.FansTotal)); err != nil {
		return 0, 0, err
	}
	if facts, err = l.wh.Count(ctx, l.qualify(l.tables.FactsTotal)); err != nil {
		return 0, 0, err
	}
	return fans, facts, nil
}

func (l *Loader) insertAll(ctx context.Context, table, sourceFile string, payloads [][]byte) error {
	query := fmt.Sprintf(insertSQL, table)
	for i, p := range payloads {
		if _, err := l.wh.Exec(ctx, query, string(p), l.source, sourceFile); err != nil {
			return errors.Wrap(err, errors.ErrCodeInsertFailed, "Insert failed").
				WithContext("table", table).
				WithContext("record", i)
		}
	}
	return nil
}

type payloadFile struct {
	name     string
	payloads [][]byte
}

// archive copies payloads to the configured sinks. Archive failures are
// logged and do not stop the load.
func (l *Loader) archive(ctx context.Context, log *observability.Logger, files ...payloadFile) []string {
	if l.archiver == nil {
		return nil
	}

	var locations []string
	for _, f := range files {
		loc, err := l.archiver.Store(ctx, f.name, f.payloads)
		if err != nil {
			log.WarnWithFields("Failed to archive batch payload", map[string]interface{}{
				"step":        StepArchive,
				"source_file": f.name,
				"error":       err,
			})
			continue
		}
		locations = append(locations, loc)
	}
	return locations
}

func (l *Loader) begin(ctx context.Context, batch, fanCount, boxCount int) (int64, error) {
	if l.ledger == nil {
		return 0, nil
	}
	id, err := l.ledger.Begin(ctx, l.runID, batch, fanCount, boxCount)
	if err != nil {
		return 0, stepError(err, errors.ErrCodeLedgerFailed, StepLedger, batch, "Failed to record batch start")
	}
	return id, nil
}

func (l *Loader) mark(ctx context.Context, entry int64, status ledger.Status) error {
	if entry == 0 {
		return nil
	}
	if err := l.ledger.Mark(ctx, entry, status); err != nil {
		return errors.Wrap(err, errors.ErrCodeLedgerFailed, "Failed to update batch status").
			WithContext("step", StepLedger)
	}
	return nil
}

func marshalAll[T any](records []T) ([][]byte, error) {
	out := make([][]byte, 0, len(records))
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return nil, err
		}
		out = append(out, data)
	}
	return out, nil
}

// stepError wraps err with the failing step. The cause's own code is kept
// when it is more specific than the fallback.
func stepError(err error, fallback errors.ErrorCode, step string, batch int, message string) error {
	code := fallback
	if c := errors.GetErrorCode(err); c != errors.ErrCodeInternal {
		code = c
	}
	return errors.Wrap(err, code, message).
		WithContext("step", step).
		WithContext("batch", batch)
}
