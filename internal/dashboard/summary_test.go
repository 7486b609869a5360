package dashboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiopipe/pkg/errors"
)

func TestLayerTotals(t *testing.T) {
	profile, err := NewProfile(ProfileSiS, "SONY_DE")
	require.NoError(t, err)

	rows := table([]string{"LAYER", "TABLE_NAME", "ROW_COUNT"},
		[]interface{}{"bronze", "RAW_FAN_INTERACTIONS", "10"},
		[]interface{}{"GOLD", "DIM_FANS", "4"},
		[]interface{}{"GOLD", "DIM_TITLES", []byte("6")},
		[]interface{}{"UNKNOWN", "X", "99"},
	)

	got := LayerTotals(rows, profile.Layers)
	require.Len(t, got, 4)
	assert.Equal(t, "BRONZE", got[0].Name)
	assert.Equal(t, int64(10), got[0].Total)
	assert.Equal(t, int64(0), got[1].Total)
	assert.Equal(t, int64(10), got[2].Total)
	assert.Equal(t, "PLATINUM", got[3].Name)
	assert.Equal(t, int64(0), got[3].Total)

	empty := LayerTotals(nil, profile.Layers)
	require.Len(t, empty, 4)
	for _, m := range empty {
		assert.Zero(t, m.Total)
	}
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "PASS", StatusLabel(0))
	assert.Equal(t, "FAIL (1)", StatusLabel(1))
	assert.Equal(t, "FAIL (250)", StatusLabel(250))
}

func TestSummarizeQuality(t *testing.T) {
	all := SummarizeQuality(table([]string{"TABLE_NAME", "METRIC", "VIOLATION_COUNT"},
		[]interface{}{"DIM_FANS", "NULL_COUNT", "0"},
	))
	assert.Equal(t, 1, all.Total)
	assert.True(t, all.AllPassing())

	none := SummarizeQuality(nil)
	assert.Zero(t, none.Total)
	assert.True(t, none.AllPassing())
	assert.Empty(t, none.Rows)
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		in   interface{}
		want bool
	}{
		{true, true},
		{false, false},
		{nil, false},
		{"true", true},
		{"TRUE", true},
		{"false", false},
		{"1", true},
		{"0", false},
		{int64(1), true},
		{[]byte("true"), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truthy(tt.in), "%v", tt.in)
	}
}

func TestNewProfile(t *testing.T) {
	local, err := NewProfile("LOCAL", "SONY_DE_DEV")
	require.NoError(t, err)
	assert.Equal(t, ProfileLocal, local.Name)
	assert.Equal(t, "SONY_DE_DEV", local.Database)
	assert.True(t, local.ReconnectOnRefresh)
	assert.Equal(t, "RAW", local.TaskSchema)
	assert.Contains(t, local.dynamicTablesSQL(), "SONY_DE_DEV.STUDIO_OPS.AGG_FRANCHISE_PERFORMANCE")
	assert.Contains(t, local.dynamicTablesSQL(), "UNION ALL")

	sis, err := NewProfile(ProfileSiS, "SONY_DE")
	require.NoError(t, err)
	assert.False(t, sis.ReconnectOnRefresh)
	assert.Empty(t, sis.TaskSchema)
	assert.Equal(t, "started", sis.StaticTask)
	assert.Equal(t, LineageSVG, sis.Lineage)
	assert.Equal(t, "#E5E4E2", sis.ColorMap()["PLATINUM"])

	_, err = NewProfile("cloud", "SONY_DE")
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConfigInvalid, errors.GetErrorCode(err))
}
