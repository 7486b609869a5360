package dashboard

import (
	"context"
	"html/template"

	"studiopipe/internal/snowflake"
)

// Tab identifiers in display order.
const (
	TabOverview = "overview"
	TabQuality  = "quality"
	TabHealth   = "health"
	TabLineage  = "lineage"
	TabTests    = "tests"
)

// TabLink is one entry of the tab bar.
type TabLink struct {
	ID    string
	Label string
}

// Tabs lists the dashboard tabs.
var Tabs = []TabLink{
	{TabOverview, "📊 Overview"},
	{TabQuality, "🔍 Data Quality"},
	{TabHealth, "📈 Pipeline Health"},
	{TabLineage, "🔄 Data Lineage"},
	{TabTests, "🧪 Test Results"},
}

func knownTab(id string) bool {
	for _, t := range Tabs {
		if t.ID == id {
			return true
		}
	}
	return false
}

// Overview is the layer totals tab.
type Overview struct {
	Layers []LayerMetric `json:"layers"`
	Bars   []Bar         `json:"bars"`
	Chart  template.HTML `json:"-"`
	Error  string        `json:"error,omitempty"`
}

// Quality is the data quality tab.
type Quality struct {
	QualitySummary
	Chart template.HTML `json:"-"`
	Error string        `json:"error,omitempty"`
}

// DynamicTableCount is a dynamic table with its current row count.
type DynamicTableCount struct {
	DynamicTable
	Rows int64 `json:"row_count"`
}

// Health is the pipeline health tab.
type Health struct {
	StreamHasData bool             `json:"stream_has_data"`
	StreamError   string           `json:"stream_error,omitempty"`
	TaskHistory   *snowflake.Table `json:"task_history,omitempty"`
	TaskFallback  bool             `json:"task_fallback"`
	TaskState     string           `json:"task_state,omitempty"`
	TaskMessage   string           `json:"task_message,omitempty"`
	TaskError     string           `json:"task_error,omitempty"`

	DynamicTables      []DynamicTableCount `json:"dynamic_tables"`
	DynamicTablesError string              `json:"dynamic_tables_error,omitempty"`
}

// Lineage is the data lineage tab.
type Lineage struct {
	Kind       string        `json:"kind"`
	Diagram    string        `json:"diagram,omitempty"`
	SVG        template.HTML `json:"-"`
	Components []Component   `json:"components"`
}

// TestType is one row of the dbt test configuration table.
type TestType struct {
	Type    string `json:"test_type"`
	Count   int    `json:"count"`
	Covered string `json:"tables_covered"`
}

// CustomTest is a named custom data test.
type CustomTest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Tests is the dbt test results tab. Its content is static.
type Tests struct {
	Types   []TestType   `json:"types"`
	Total   int          `json:"total"`
	LastRun string       `json:"last_run"`
	Custom  []CustomTest `json:"custom"`
}

func testResults() Tests {
	custom := []CustomTest{
		{"assert_no_fan_data_loss", "Verifies fan data flows from RAW to DIMS"},
		{"assert_fact_title_referential_integrity", "All fact title_ids exist in dim_titles"},
		{"assert_stream_routing_correct", "Stream/Task populated both STG tables"},
		{"assert_no_negative_revenue", "No negative revenue in facts"},
		{"assert_snapshot_valid_date_ranges", "SCD dates are logically valid"},
		{"assert_snapshot_single_current_record", "Each fan has exactly 1 current record"},
		{"assert_dynamic_tables_populated", "Dynamic Tables have data"},
	}
	return Tests{
		Types: []TestType{
			{"Schema Tests (unique)", 8, "DIM_FANS, DIM_TITLES, FACT_DAILY_PERFORMANCE, SNAP_DIM_FANS"},
			{"Schema Tests (not_null)", 16, "All dimension and fact tables"},
			{"Schema Tests (accepted_values)", 2, "DIM_FANS.account_type, stg_fans_unified.account_type"},
			{"Schema Tests (relationships)", 1, "FACT_DAILY_PERFORMANCE → DIM_TITLES"},
			{"Custom Data Tests", len(custom), "Pipeline integrity, routing, referential integrity"},
			{"Snapshot Tests", 3, "SCD2 date validation, single current record"},
		},
		Total:   37,
		LastRun: "✅ All Passing",
		Custom:  custom,
	}
}

// buildOverview sums the layers and charts row counts per table.
func (s *Server) buildOverview(ctx context.Context, q Querier) (Overview, bool) {
	rows, err := q.QueryTable(ctx, s.profile.layerRowCountsSQL())
	if err != nil {
		return Overview{Layers: LayerTotals(nil, s.profile.Layers), Error: errorText(err)}, false
	}

	bars := BarsFrom(rows, "TABLE_NAME", "ROW_COUNT", "LAYER")
	return Overview{
		Layers: LayerTotals(rows, s.profile.Layers),
		Bars:   bars,
		Chart:  BarChart("Data Volume Across Pipeline Layers", bars, s.profile.ColorMap()),
	}, true
}

func (s *Server) buildQuality(ctx context.Context, q Querier) (Quality, bool) {
	rows, err := q.QueryTable(ctx, s.profile.dataQualitySQL())
	if err != nil {
		return Quality{Error: errorText(err)}, false
	}

	return Quality{
		QualitySummary: SummarizeQuality(rows),
		Chart:          BarChart("Violations by Data Metric Function", BarsFrom(rows, "METRIC", "VIOLATION_COUNT", "TABLE_NAME"), nil),
	}, true
}

// buildHealth reads stream, task and dynamic table state. Task history is
// the one panel with a fallback: when the history function fails the
// profile's task state source is used instead.
func (s *Server) buildHealth(ctx context.Context, q Querier) (Health, bool) {
	var h Health
	ok := true

	if stream, err := q.QueryTable(ctx, s.profile.streamSQL()); err != nil {
		h.StreamError, ok = errorText(err), false
	} else if stream.Len() > 0 {
		h.StreamHasData = truthy(stream.Value(0, "HAS_DATA"))
	}

	history, err := q.QueryTable(ctx, s.profile.taskHistorySQL())
	switch {
	case err == nil && history.Len() > 0:
		h.TaskHistory = history
	case err == nil:
		h.TaskMessage = "No recent task executions"
	default:
		h.TaskFallback = true
		s.logger.WarnWithFields("Task history unavailable, using fallback", map[string]interface{}{
			"profile": s.profile.Name,
			"error":   err,
		})
		if s.profile.TaskSchema == "" {
			h.TaskState = s.profile.StaticTask
			break
		}
		tasks, ferr := q.QueryTable(ctx, s.profile.showTasksSQL())
		switch {
		case ferr != nil:
			h.TaskError, ok = errorText(ferr), false
		case tasks.Len() == 0:
			h.TaskMessage = "Task not found"
		default:
			h.TaskState = tasks.String(0, "state")
		}
	}

	dts, err := q.QueryTable(ctx, s.profile.dynamicTablesSQL())
	if err != nil {
		h.DynamicTablesError, ok = errorText(err), false
	} else {
		for i := 0; i < dts.Len(); i++ {
			h.DynamicTables = append(h.DynamicTables, DynamicTableCount{
				DynamicTable: DynamicTable{Name: dts.String(i, "DYNAMIC_TABLE"), Schema: dts.String(i, "SCHEMA")},
				Rows:         dts.Int(i, "ROW_COUNT"),
			})
		}
	}
	return h, ok
}

func (s *Server) buildLineage() Lineage {
	l := Lineage{Kind: s.profile.Lineage, Components: s.profile.Components}
	if s.profile.Lineage == LineageSVG {
		l.SVG = RenderLineage(s.graph)
	} else {
		l.Diagram = MedallionDiagram()
	}
	return l
}
