package dashboard

import (
	_ "embed"
	"fmt"
	"html/template"
	"strings"

	"studiopipe/internal/pipeline"
)

// medallionDiagram is the static architecture sketch of the local profile.
//
//go:embed medallion.txt
var medallionDiagram string

const (
	lineageColWidth  = 230
	lineageRowHeight = 110
	lineageMargin    = 90
	lineageRadius    = 20
)

// MedallionDiagram returns the text lineage diagram.
func MedallionDiagram() string {
	return medallionDiagram
}

// RenderLineage draws the pipeline graph: one column per dependency depth,
// nodes colored by layer, an edge per dependency and layer headers above
// the first column each layer occupies.
func RenderLineage(g *pipeline.Graph) template.HTML {
	layout := g.Layout()

	cols, rows := 0, 0
	for _, p := range layout {
		if p.Column+1 > cols {
			cols = p.Column + 1
		}
		if p.Row+1 > rows {
			rows = p.Row + 1
		}
	}
	width := lineageMargin*2 + (cols-1)*lineageColWidth
	height := lineageMargin*2 + (rows-1)*lineageRowHeight + 30

	center := func(id string) (int, int) {
		p := layout[id]
		return lineageMargin + p.Column*lineageColWidth, lineageMargin + 30 + p.Row*lineageRowHeight
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg class="lineage" xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" role="img" aria-label="Dynamic Table DAG">`,
		width, height)

	headerCol := map[string]int{}
	for _, n := range g.Nodes {
		c := layout[n.ID].Column
		if prev, ok := headerCol[n.Layer]; !ok || c < prev {
			headerCol[n.Layer] = c
		}
	}
	for _, layer := range g.Layers() {
		x := lineageMargin + headerCol[layer]*lineageColWidth
		fmt.Fprintf(&sb, `<text x="%d" y="28" class="layer" text-anchor="middle" fill="%s">%s</text>`,
			x, layerColor(layer), esc(layer))
	}

	for _, e := range g.Edges() {
		x1, y1 := center(e.From)
		x2, y2 := center(e.To)
		fmt.Fprintf(&sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" class="edge"/>`, x1, y1, x2, y2)
	}

	for _, n := range g.Nodes {
		x, y := center(n.ID)
		fmt.Fprintf(&sb, `<g class="node"><title>%s&#10;Layer: %s</title>`, esc(n.ObjectName()), esc(n.Layer))
		fmt.Fprintf(&sb, `<circle cx="%d" cy="%d" r="%d" fill="%s"/>`, x, y, lineageRadius, layerColor(n.Layer))
		fmt.Fprintf(&sb, `<text x="%d" y="%d" class="node-label" text-anchor="middle">%s</text></g>`,
			x, y+lineageRadius+16, esc(n.ObjectName()))
	}

	sb.WriteString(`</svg>`)
	return template.HTML(sb.String())
}

func layerColor(layer string) string {
	if c, ok := LayerColors[strings.ToUpper(layer)]; ok {
		return c
	}
	return "#888888"
}
