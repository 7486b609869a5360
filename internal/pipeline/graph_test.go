package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiopipe/pkg/errors"
)

var expectedPlan = []string{
	"SONY_DE.SILVER.DT_STG_FANS_UNIFIED",
	"SONY_DE.SILVER.DT_STG_BOX_OFFICE_DEDUP",
	"SONY_DE.SILVER.DT_INT_FANS_ENRICHED",
	"SONY_DE.SILVER.DT_INT_DAILY_PERFORMANCE",
	"SONY_DE.GOLD.DT_DIM_FANS",
	"SONY_DE.GOLD.DT_DIM_TITLES",
	"SONY_DE.GOLD.DT_FACT_DAILY_PERFORMANCE",
	"SONY_DE.PLATINUM.AGG_FAN_LIFETIME_VALUE",
	"SONY_DE.PLATINUM.AGG_FRANCHISE_PERFORMANCE",
}

func TestDefaultGraph(t *testing.T) {
	g := Default()

	require.NoError(t, g.Validate())
	assert.Equal(t, "SONY_DE", g.Database)
	assert.Len(t, g.Nodes, 13)
	assert.Equal(t, expectedPlan, g.RefreshPlan())
	assert.Equal(t, []string{"BRONZE", "SILVER", "GOLD", "PLATINUM"}, g.Layers())
	assert.Len(t, g.Edges(), 14)
}

func TestDerivedOrderMatchesDeclaredOrder(t *testing.T) {
	g := Default()
	g.RefreshOrder = nil

	assert.Equal(t, expectedPlan, g.RefreshPlan())
}

func TestWithDatabase(t *testing.T) {
	g := Default().WithDatabase("STUDIO_DEV")

	plan := g.RefreshPlan()
	require.Len(t, plan, 9)
	assert.Equal(t, "STUDIO_DEV.SILVER.DT_STG_FANS_UNIFIED", plan[0])
	assert.Equal(t, "SONY_DE", Default().Database)

	assert.Equal(t, "STUDIO_DEV", Default().WithDatabase("").WithDatabase("STUDIO_DEV").Database)
	assert.Equal(t, "SONY_DE", Default().WithDatabase("").Database)
}

func TestNodeNameOverride(t *testing.T) {
	g, err := Parse([]byte(`
database: DB
nodes:
  - id: raw
    name: RAW_EVENTS
    schema: BRONZE
  - id: stg
    name: DT_EVENTS
    schema: SILVER
    refresh: true
    depends_on: [raw]
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"DB.SILVER.DT_EVENTS"}, g.RefreshPlan())

	n, ok := g.Node("raw")
	require.True(t, ok)
	assert.Equal(t, "RAW_EVENTS", n.ObjectName())
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		code errors.ErrorCode
		want string
	}{
		{
			name: "missing database",
			doc:  "nodes: [{id: A, schema: S}]",
			code: errors.ErrCodeGraphInvalid,
			want: "no database",
		},
		{
			name: "duplicate node",
			doc:  "database: D\nnodes: [{id: A, schema: S}, {id: A, schema: S}]",
			code: errors.ErrCodeGraphInvalid,
			want: "Duplicate",
		},
		{
			name: "unknown dependency",
			doc:  "database: D\nnodes: [{id: A, schema: S, depends_on: [B]}]",
			code: errors.ErrCodeUnknownDependency,
			want: "unknown node B",
		},
		{
			name: "cycle",
			doc: `database: D
nodes:
  - {id: A, schema: S, depends_on: [C]}
  - {id: B, schema: S, depends_on: [A]}
  - {id: C, schema: S, depends_on: [B]}`,
			code: errors.ErrCodeGraphCycle,
			want: "cycle",
		},
		{
			name: "order names unknown node",
			doc:  "database: D\nnodes: [{id: A, schema: S, refresh: true}]\nrefresh_order: [A, Z]",
			code: errors.ErrCodeRefreshOrder,
			want: "unknown node Z",
		},
		{
			name: "order names static table",
			doc:  "database: D\nnodes: [{id: A, schema: S}]\nrefresh_order: [A]",
			code: errors.ErrCodeRefreshOrder,
			want: "not refreshable",
		},
		{
			name: "order misses refreshable node",
			doc:  "database: D\nnodes: [{id: A, schema: S, refresh: true}, {id: B, schema: S, refresh: true}]\nrefresh_order: [A]",
			code: errors.ErrCodeRefreshOrder,
			want: "missing",
		},
		{
			name: "duplicate order entry",
			doc:  "database: D\nnodes: [{id: A, schema: S, refresh: true}]\nrefresh_order: [A, A]",
			code: errors.ErrCodeRefreshOrder,
			want: "twice",
		},
		{
			name: "malformed yaml",
			doc:  "database: [",
			code: errors.ErrCodeGraphInvalid,
			want: "parse",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Equal(t, tt.code, errors.GetErrorCode(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRefreshOrderViolatingDependencyIsRejected(t *testing.T) {
	g := Default()
	g.RefreshOrder = []string{
		"DT_STG_FANS_UNIFIED",
		"DT_STG_BOX_OFFICE_DEDUP",
		"DT_INT_FANS_ENRICHED",
		"DT_INT_DAILY_PERFORMANCE",
		"DT_DIM_FANS",
		"DT_FACT_DAILY_PERFORMANCE",
		"DT_DIM_TITLES",
		"AGG_FAN_LIFETIME_VALUE",
		"AGG_FRANCHISE_PERFORMANCE",
	}

	err := g.Validate()
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRefreshOrder, errors.GetErrorCode(err))

	var appErr *errors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "DT_FACT_DAILY_PERFORMANCE", appErr.Context["node"])
	assert.Equal(t, "DT_DIM_TITLES", appErr.Context["upstream"])
}

func TestAncestorsSeenThroughStaticNodes(t *testing.T) {
	_, err := Parse([]byte(`
database: D
nodes:
  - {id: A, schema: S, refresh: true}
  - {id: B, schema: S, depends_on: [A]}
  - {id: C, schema: S, refresh: true, depends_on: [B]}
refresh_order: [C, A]
`))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeRefreshOrder, errors.GetErrorCode(err))
}

func TestLayout(t *testing.T) {
	layout := Default().Layout()

	assert.Equal(t, Position{Column: 0, Row: 0}, layout["RAW_FAN_INTERACTIONS"])
	assert.Equal(t, Position{Column: 0, Row: 2}, layout["RAW_BOX_OFFICE"])
	assert.Equal(t, Position{Column: 1, Row: 1}, layout["DT_STG_TITLES_PARSED"])
	assert.Equal(t, Position{Column: 2, Row: 0}, layout["DT_INT_FANS_ENRICHED"])
	assert.Equal(t, Position{Column: 3, Row: 0}, layout["DT_DIM_FANS"])
	assert.Equal(t, Position{Column: 3, Row: 1}, layout["DT_DIM_TITLES"])
	assert.Equal(t, Position{Column: 3, Row: 2}, layout["DT_FACT_DAILY_PERFORMANCE"])
	assert.Equal(t, Position{Column: 4, Row: 0}, layout["AGG_FAN_LIFETIME_VALUE"])
	assert.Equal(t, Position{Column: 4, Row: 1}, layout["AGG_FRANCHISE_PERFORMANCE"])
}

func TestLayoutKeepsLayersInOrder(t *testing.T) {
	g, err := Parse([]byte(strings.TrimSpace(`
database: OPS
nodes:
  - {id: RAW_A, schema: BRONZE, layer: BRONZE}
  - {id: RAW_B, schema: BRONZE, layer: BRONZE}
  - {id: STG_A, schema: SILVER, layer: SILVER, depends_on: [RAW_A]}
  - {id: INT_A, schema: SILVER, layer: SILVER, depends_on: [STG_A]}
  - {id: DIM_A, schema: GOLD, layer: GOLD, depends_on: [INT_A]}
  - {id: DIM_B, schema: GOLD, layer: GOLD, depends_on: [RAW_B]}
  - {id: FACT, schema: GOLD, layer: GOLD, depends_on: [DIM_B]}
  - {id: AGG, schema: PLATINUM, layer: PLATINUM, depends_on: [FACT]}
`)))
	require.NoError(t, err)
	layout := g.Layout()

	for _, id := range []string{"DIM_A", "DIM_B", "FACT"} {
		assert.Equal(t, 3, layout[id].Column, id)
	}
	assert.Equal(t, 4, layout["AGG"].Column)
	for _, e := range g.Edges() {
		from, _ := g.Node(e.From)
		to, _ := g.Node(e.To)
		if from.Layer != to.Layer {
			assert.Less(t, layout[e.From].Column, layout[e.To].Column, "%s -> %s", e.From, e.To)
		}
	}
}

func TestLoad(t *testing.T) {
	g, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, expectedPlan, g.RefreshPlan())

	dir := t.TempDir()
	path := filepath.Join(dir, "pipeline.yaml")
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(`
database: OPS
nodes:
  - {id: RAW, schema: BRONZE}
  - {id: DT, schema: SILVER, refresh: true, depends_on: [RAW]}
`)), 0o600))

	g, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"OPS.SILVER.DT"}, g.RefreshPlan())

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigNotFound, errors.GetErrorCode(err))

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("database: D\nnodes: [{id: A, schema: S, depends_on: [A]}]"), 0o600))
	_, err = Load(bad)
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeGraphCycle, errors.GetErrorCode(err))
}
