package dashboard

import (
	"fmt"
	"strings"

	"studiopipe/pkg/errors"
)

// Profile names.
const (
	ProfileLocal = "local"
	ProfileSiS   = "sis"
)

// Lineage renderings.
const (
	LineageText = "text"
	LineageSVG  = "svg"
)

// Layer is one headline metric of the overview tab.
type Layer struct {
	Name  string `json:"name"`
	Label string `json:"label"`
	Delta string `json:"delta"`
	Color string `json:"color"`
}

// DynamicTable is an aggregate whose row count the health tab shows.
type DynamicTable struct {
	Name   string `json:"name"`
	Schema string `json:"schema"`
}

// Component is one row of the processing components table.
type Component struct {
	Component string `json:"component"`
	Type      string `json:"type"`
	Count     int    `json:"count"`
	Status    string `json:"status"`
}

// Profile captures everything that differs between the standalone
// dashboard and the in-account deployment.
type Profile struct {
	Name          string
	Title         string
	Database      string
	Layers        []Layer
	StreamSchema  string
	TaskSchema    string // empty: no SHOW TASKS fallback, report StaticTask
	StaticTask    string
	DynamicTables []DynamicTable
	Schemas       []string
	Lineage       string
	Components    []Component
	// ReconnectOnRefresh drops the warehouse connection along with the
	// cached results.
	ReconnectOnRefresh bool
}

// Layer colors shared by charts and the lineage graph.
var LayerColors = map[string]string{
	"BRONZE":     "#CD7F32",
	"SILVER":     "#C0C0C0",
	"GOLD":       "#FFD700",
	"AGGREGATES": "#4169E1",
	"PLATINUM":   "#E5E4E2",
}

// NewProfile returns the named profile targeting database.
func NewProfile(name, database string) (Profile, error) {
	switch strings.ToLower(name) {
	case ProfileLocal:
		return localProfile(database), nil
	case ProfileSiS:
		return sisProfile(database), nil
	default:
		return Profile{}, errors.ConfigError(fmt.Sprintf("Unknown dashboard profile %q", name), "dashboard.profile")
	}
}

func baseLayers() []Layer {
	return []Layer{
		{Name: "BRONZE", Label: "🥉 Bronze Layer", Delta: "RAW tables", Color: LayerColors["BRONZE"]},
		{Name: "SILVER", Label: "🥈 Silver Layer", Delta: "STG tables", Color: LayerColors["SILVER"]},
		{Name: "GOLD", Label: "🥇 Gold Layer", Delta: "DIMS + FACTS", Color: LayerColors["GOLD"]},
	}
}

func localProfile(database string) Profile {
	return Profile{
		Name:     ProfileLocal,
		Title:    "🎬 Sony Pictures Data Engineering Pipeline",
		Database: database,
		Layers: append(baseLayers(),
			Layer{Name: "AGGREGATES", Label: "📊 Aggregates", Delta: "Dynamic Tables", Color: LayerColors["AGGREGATES"]}),
		StreamSchema: "RAW",
		TaskSchema:   "RAW",
		DynamicTables: []DynamicTable{
			{Name: "AGG_FRANCHISE_PERFORMANCE", Schema: "STUDIO_OPS"},
			{Name: "AGG_FAN_LIFETIME_VALUE", Schema: "MARKETING"},
		},
		Schemas: []string{"RAW", "STG", "DIMS", "FACTS", "STUDIO_OPS", "MARKETING", "GOVERNANCE", "SECURE"},
		Lineage: LineageText,
		Components: []Component{
			{"Stream", "CDC Capture", 1, "✅ Active"},
			{"Task", "Routing", 1, "✅ Enabled"},
			{"dbt Models", "Transformation", 9, "✅ 9 models"},
			{"Dynamic Tables", "Aggregation", 2, "✅ Refreshing"},
			{"Snapshots", "SCD Type 2", 1, "✅ 27K+ records"},
			{"DMFs", "Data Quality", 6, "✅ 0 violations"},
		},
		ReconnectOnRefresh: true,
	}
}

func sisProfile(database string) Profile {
	return Profile{
		Name:     ProfileSiS,
		Title:    "🎬 Sony Pictures Data Engineering Pipeline",
		Database: database,
		Layers: append(baseLayers(),
			Layer{Name: "PLATINUM", Label: "💎 Platinum Layer", Delta: "Aggregations", Color: LayerColors["PLATINUM"]}),
		StreamSchema: "BRONZE",
		StaticTask:   "started",
		DynamicTables: []DynamicTable{
			{Name: "AGG_FRANCHISE_PERFORMANCE", Schema: "PLATINUM"},
			{Name: "AGG_FAN_LIFETIME_VALUE", Schema: "PLATINUM"},
		},
		Schemas: []string{"BRONZE", "SILVER", "GOLD", "PLATINUM", "GOVERNANCE"},
		Lineage: LineageSVG,
		Components: []Component{
			{"Stream", "CDC Capture", 1, "✅ Active"},
			{"Task", "Routing", 1, "✅ Enabled"},
			{"dbt Models", "Transformation", 10, "✅ Ephemeral (testing only)"},
			{"Dynamic Tables", "Aggregation", 10, "✅ 10 DTs in DAG"},
			{"Snapshots", "SCD Type 2", 1, "✅ 27K+ records"},
			{"DMFs", "Data Quality", 6, "✅ 6 attached"},
		},
	}
}

// ColorMap returns layer name to color for the overview chart.
func (p Profile) ColorMap() map[string]string {
	m := make(map[string]string, len(p.Layers))
	for _, l := range p.Layers {
		m[l.Name] = l.Color
	}
	return m
}

// Query text for each panel.

func (p Profile) layerRowCountsSQL() string {
	return fmt.Sprintf("SELECT * FROM %s.GOVERNANCE.V_LAYER_ROW_COUNTS", p.Database)
}

func (p Profile) dataQualitySQL() string {
	return fmt.Sprintf("SELECT * FROM %s.GOVERNANCE.V_DATA_QUALITY_DASHBOARD", p.Database)
}

func (p Profile) streamSQL() string {
	return fmt.Sprintf(`SELECT
    'STREAM_FAN_INTERACTIONS' AS stream_name,
    SYSTEM$STREAM_HAS_DATA('%s.%s.STREAM_FAN_INTERACTIONS') AS has_data`, p.Database, p.StreamSchema)
}

func (p Profile) taskHistorySQL() string {
	return fmt.Sprintf(`SELECT
    NAME,
    STATE,
    SCHEDULED_TIME,
    COMPLETED_TIME,
    ERROR_CODE
FROM TABLE(%s.INFORMATION_SCHEMA.TASK_HISTORY(
    TASK_NAME => 'TASK_ROUTE_FAN_DATA',
    SCHEDULED_TIME_RANGE_START => DATEADD('day', -1, CURRENT_TIMESTAMP())
))
ORDER BY SCHEDULED_TIME DESC
LIMIT 5`, p.Database)
}

func (p Profile) showTasksSQL() string {
	return fmt.Sprintf("SHOW TASKS LIKE 'TASK_ROUTE_FAN_DATA' IN SCHEMA %s.%s", p.Database, p.TaskSchema)
}

func (p Profile) dynamicTablesSQL() string {
	parts := make([]string, 0, len(p.DynamicTables))
	for i, dt := range p.DynamicTables {
		if i == 0 {
			parts = append(parts, fmt.Sprintf(`SELECT
    '%s' AS dynamic_table,
    '%s' AS schema,
    (SELECT COUNT(*) FROM %s.%s.%s) AS row_count`, dt.Name, dt.Schema, p.Database, dt.Schema, dt.Name))
			continue
		}
		parts = append(parts, fmt.Sprintf(`SELECT
    '%s',
    '%s',
    (SELECT COUNT(*) FROM %s.%s.%s)`, dt.Name, dt.Schema, p.Database, dt.Schema, dt.Name))
	}
	return strings.Join(parts, "\nUNION ALL\n")
}
