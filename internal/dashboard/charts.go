package dashboard

import (
	"fmt"
	"html/template"
	"strings"

	"studiopipe/internal/snowflake"
	"studiopipe/internal/ui"
)

// palette colors groups without an assigned color.
var palette = []string{
	"#636EFA", "#EF553B", "#00CC96", "#AB63FA", "#FFA15A",
	"#19D3F3", "#FF6692", "#B6E880", "#FF97FF", "#FECB52",
}

// Bar is one bar of a chart; bars sharing a Group share a color.
type Bar struct {
	Label string `json:"label"`
	Value int64  `json:"value"`
	Group string `json:"group"`
}

// BarsFrom reads label, value and group columns from a result.
func BarsFrom(t *snowflake.Table, label, value, group string) []Bar {
	bars := make([]Bar, 0, t.Len())
	for i := 0; i < t.Len(); i++ {
		bars = append(bars, Bar{
			Label: t.String(i, label),
			Value: t.Int(i, value),
			Group: t.String(i, group),
		})
	}
	return bars
}

const (
	chartHeight  = 420
	plotTop      = 50
	plotBottom   = 280
	plotLeft     = 70
	barSlot      = 44
	minPlotWidth = 480
	legendWidth  = 200
	gridLines    = 4
)

// BarChart renders bars as an inline SVG chart with rotated labels and a
// legend of groups in first-seen order.
func BarChart(title string, bars []Bar, colors map[string]string) template.HTML {
	plotWidth := len(bars) * barSlot
	if plotWidth < minPlotWidth {
		plotWidth = minPlotWidth
	}
	width := plotLeft + plotWidth + legendWidth

	var top int64 = 1
	for _, b := range bars {
		if b.Value > top {
			top = b.Value
		}
	}

	groups, groupColor := assignColors(bars, colors)
	plotHeight := float64(plotBottom - plotTop)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg class="chart" xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-label="%s">`,
		width, chartHeight, esc(title))
	fmt.Fprintf(&sb, `<text x="%d" y="24" class="chart-title">%s</text>`, plotLeft, esc(title))

	for i := 0; i <= gridLines; i++ {
		v := top * int64(i) / gridLines
		y := float64(plotBottom) - plotHeight*float64(i)/gridLines
		fmt.Fprintf(&sb, `<line x1="%d" y1="%.1f" x2="%d" y2="%.1f" class="grid"/>`, plotLeft, y, plotLeft+plotWidth, y)
		fmt.Fprintf(&sb, `<text x="%d" y="%.1f" class="tick" text-anchor="end">%s</text>`, plotLeft-6, y+4, ui.FormatCount(v))
	}

	slot := float64(plotWidth) / float64(max(len(bars), 1))
	for i, b := range bars {
		h := plotHeight * float64(b.Value) / float64(top)
		if h < 0 {
			h = 0
		}
		x := float64(plotLeft) + slot*float64(i) + slot*0.15
		fmt.Fprintf(&sb, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"><title>%s: %s</title></rect>`,
			x, float64(plotBottom)-h, slot*0.7, h, groupColor[b.Group], esc(b.Label), ui.FormatCount(b.Value))
		lx := x + slot*0.35
		fmt.Fprintf(&sb, `<text x="%.1f" y="%d" class="label" text-anchor="end" transform="rotate(-45 %.1f %d)">%s</text>`,
			lx, plotBottom+14, lx, plotBottom+14, esc(b.Label))
	}

	lx := plotLeft + plotWidth + 20
	for i, g := range groups {
		y := plotTop + i*22
		fmt.Fprintf(&sb, `<rect x="%d" y="%d" width="14" height="14" fill="%s"/>`, lx, y, groupColor[g])
		fmt.Fprintf(&sb, `<text x="%d" y="%d" class="legend">%s</text>`, lx+20, y+12, esc(g))
	}

	sb.WriteString(`</svg>`)
	return template.HTML(sb.String())
}

func assignColors(bars []Bar, colors map[string]string) ([]string, map[string]string) {
	var groups []string
	assigned := map[string]string{}
	next := 0
	for _, b := range bars {
		if _, ok := assigned[b.Group]; ok {
			continue
		}
		groups = append(groups, b.Group)
		if c, ok := colors[b.Group]; ok {
			assigned[b.Group] = c
			continue
		}
		assigned[b.Group] = palette[next%len(palette)]
		next++
	}
	return groups, assigned
}

func esc(s string) string {
	return template.HTMLEscapeString(s)
}
