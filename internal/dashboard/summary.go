package dashboard

import (
	"fmt"
	"strings"

	"studiopipe/internal/snowflake"
)

// LayerMetric is a headline total for one layer.
type LayerMetric struct {
	Layer
	Total int64 `json:"total"`
}

// QualityRow is one data metric function result with its status label.
type QualityRow struct {
	Table       string `json:"table_name"`
	Metric      string `json:"metric"`
	Description string `json:"description"`
	Violations  int64  `json:"violation_count"`
	Status      string `json:"status"`
	MeasuredAt  string `json:"measured_at"`
}

// QualitySummary counts passing and failing checks.
type QualitySummary struct {
	Total   int          `json:"total"`
	Passing int          `json:"passing"`
	Failing int          `json:"failing"`
	Rows    []QualityRow `json:"rows"`
}

// AllPassing reports whether no check has violations.
func (q QualitySummary) AllPassing() bool {
	return q.Failing == 0
}

// LayerTotals sums ROW_COUNT per LAYER for the profile's layers, in
// profile order. Layers absent from the result total zero.
func LayerTotals(rows *snowflake.Table, layers []Layer) []LayerMetric {
	sums := map[string]int64{}
	for i := 0; i < rows.Len(); i++ {
		sums[strings.ToUpper(rows.String(i, "LAYER"))] += rows.Int(i, "ROW_COUNT")
	}

	out := make([]LayerMetric, 0, len(layers))
	for _, l := range layers {
		out = append(out, LayerMetric{Layer: l, Total: sums[l.Name]})
	}
	return out
}

// StatusLabel renders a violation count as PASS or FAIL (n).
func StatusLabel(violations int64) string {
	if violations == 0 {
		return "PASS"
	}
	return fmt.Sprintf("FAIL (%d)", violations)
}

// SummarizeQuality classifies each check by its violation count.
func SummarizeQuality(rows *snowflake.Table) QualitySummary {
	s := QualitySummary{Total: rows.Len(), Rows: make([]QualityRow, 0, rows.Len())}
	for i := 0; i < rows.Len(); i++ {
		v := rows.Int(i, "VIOLATION_COUNT")
		if v == 0 {
			s.Passing++
		}
		s.Rows = append(s.Rows, QualityRow{
			Table:       rows.String(i, "TABLE_NAME"),
			Metric:      rows.String(i, "METRIC"),
			Description: rows.String(i, "DESCRIPTION"),
			Violations:  v,
			Status:      StatusLabel(v),
			MeasuredAt:  rows.String(i, "MEASURED_AT"),
		})
	}
	s.Failing = s.Total - s.Passing
	return s
}

// truthy interprets a SYSTEM$ function result, which the driver may hand
// back as a bool, a number or text.
func truthy(v interface{}) bool {
	switch val := v.(type) {
	case bool:
		return val
	case nil:
		return false
	default:
		if n, ok := snowflake.ToInt64(val); ok {
			return n != 0
		}
		s := strings.ToLower(strings.TrimSpace(snowflake.FormatValue(val)))
		return s == "true" || s == "t" || s == "yes"
	}
}
