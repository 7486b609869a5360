// Package pipeline describes the dynamic table lineage and derives a
// refresh plan that respects it.
package pipeline

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"studiopipe/pkg/errors"
)

//go:embed default.yaml
var defaultGraph []byte

// Node is one warehouse table in the lineage.
type Node struct {
	ID        string   `yaml:"id"`
	Name      string   `yaml:"name,omitempty"`
	Schema    string   `yaml:"schema"`
	Layer     string   `yaml:"layer"`
	DependsOn []string `yaml:"depends_on,omitempty"`
	Refresh   bool     `yaml:"refresh,omitempty"`
}

// ObjectName returns the table name, defaulting to the id.
func (n Node) ObjectName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// Graph is the parsed pipeline document.
type Graph struct {
	Database     string   `yaml:"database"`
	Nodes        []Node   `yaml:"nodes"`
	RefreshOrder []string `yaml:"refresh_order,omitempty"`

	index map[string]int
}

// Default returns the embedded lineage graph, already validated.
func Default() *Graph {
	g, err := Parse(defaultGraph)
	if err != nil {
		panic(fmt.Sprintf("embedded pipeline graph is invalid: %v", err))
	}
	return g
}

// Load reads a graph file. An empty path yields the default graph.
func Load(path string) (*Graph, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied pipeline file
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeConfigNotFound, "Failed to read pipeline graph").
			WithContext("file", path)
	}

	g, err := Parse(data)
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			return nil, appErr.WithContext("file", path)
		}
		return nil, err
	}
	return g, nil
}

// Parse decodes and validates a graph document.
func Parse(data []byte) (*Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGraphInvalid, "Failed to parse pipeline graph")
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Node returns the node with the given id.
func (g *Graph) Node(id string) (Node, bool) {
	g.buildIndex()
	i, ok := g.index[id]
	if !ok {
		return Node{}, false
	}
	return g.Nodes[i], true
}

// FQN returns DATABASE.SCHEMA.NAME for a node.
func (g *Graph) FQN(n Node) string {
	return fmt.Sprintf("%s.%s.%s", g.Database, n.Schema, n.ObjectName())
}

// WithDatabase returns a copy of the graph targeting another database.
func (g *Graph) WithDatabase(database string) *Graph {
	c := *g
	if database != "" {
		c.Database = database
	}
	return &c
}

// Validate checks node ids, dependencies, acyclicity and the refresh order.
func (g *Graph) Validate() error {
	g.index = nil
	if strings.TrimSpace(g.Database) == "" {
		return graphError("Pipeline graph has no database", "database", "")
	}
	if len(g.Nodes) == 0 {
		return graphError("Pipeline graph has no nodes", "nodes", "")
	}

	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		switch {
		case n.ID == "":
			return graphError("Pipeline node without id", "nodes", "")
		case n.Schema == "":
			return graphError("Pipeline node has no schema", "schema", n.ID)
		case seen[n.ID]:
			return graphError("Duplicate pipeline node", "nodes", n.ID)
		}
		seen[n.ID] = true
	}
	g.buildIndex()

	for _, n := range g.Nodes {
		for _, dep := range n.DependsOn {
			if !seen[dep] {
				return errors.New(errors.ErrCodeUnknownDependency,
					fmt.Sprintf("Node %s depends on unknown node %s", n.ID, dep)).
					WithContext("node", n.ID).
					WithContext("dependency", dep)
			}
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return errors.New(errors.ErrCodeGraphCycle,
			fmt.Sprintf("Pipeline graph has a cycle: %s", strings.Join(cycle, " -> "))).
			WithContext("cycle", cycle)
	}

	return g.validateRefreshOrder()
}

func (g *Graph) validateRefreshOrder() error {
	if len(g.RefreshOrder) == 0 {
		return nil
	}

	position := make(map[string]int, len(g.RefreshOrder))
	for i, id := range g.RefreshOrder {
		n, ok := g.Node(id)
		switch {
		case !ok:
			return orderError(fmt.Sprintf("Refresh order names unknown node %s", id), id)
		case !n.Refresh:
			return orderError(fmt.Sprintf("Node %s is not refreshable", id), id)
		}
		if _, dup := position[id]; dup {
			return orderError(fmt.Sprintf("Node %s appears twice in the refresh order", id), id)
		}
		position[id] = i
	}

	for _, n := range g.Nodes {
		if n.Refresh {
			if _, ok := position[n.ID]; !ok {
				return orderError(fmt.Sprintf("Refreshable node %s is missing from the refresh order", n.ID), n.ID)
			}
		}
	}

	for _, id := range g.RefreshOrder {
		for _, anc := range g.refreshableAncestors(id) {
			if position[anc] > position[id] {
				return orderError(
					fmt.Sprintf("%s is refreshed before its upstream %s", id, anc), id).
					WithContext("upstream", anc)
			}
		}
	}
	return nil
}

// refreshableAncestors walks upstream through non-refreshed nodes too, so a
// static table between two dynamic ones does not hide the dependency.
func (g *Graph) refreshableAncestors(id string) []string {
	var out []string
	visited := map[string]bool{}
	stack := []string{id}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		n, _ := g.Node(cur)
		for _, dep := range n.DependsOn {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			if d, _ := g.Node(dep); d.Refresh {
				out = append(out, dep)
			}
			stack = append(stack, dep)
		}
	}
	sort.Strings(out)
	return out
}

func (g *Graph) findCycle() []string {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(g.Nodes))
	var path []string
	var cycle []string

	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		path = append(path, id)
		n, _ := g.Node(id)
		for _, dep := range n.DependsOn {
			switch color[dep] {
			case grey:
				for i, p := range path {
					if p == dep {
						cycle = append(append([]string{}, path[i:]...), dep)
						break
					}
				}
				return true
			case white:
				if visit(dep) {
					return true
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
		return false
	}

	for _, n := range g.Nodes {
		if color[n.ID] == white && visit(n.ID) {
			return cycle
		}
	}
	return nil
}

// RefreshOrderIDs returns the node ids to refresh in order. Without an
// explicit refresh_order the refreshable nodes are sorted topologically,
// ties broken by declaration order.
func (g *Graph) RefreshOrderIDs() []string {
	if len(g.RefreshOrder) > 0 {
		return append([]string(nil), g.RefreshOrder...)
	}

	var order []string
	for _, id := range g.topological() {
		if n, _ := g.Node(id); n.Refresh {
			order = append(order, id)
		}
	}
	return order
}

// RefreshPlan returns the fully qualified names to refresh, in order.
func (g *Graph) RefreshPlan() []string {
	ids := g.RefreshOrderIDs()
	plan := make([]string, 0, len(ids))
	for _, id := range ids {
		n, _ := g.Node(id)
		plan = append(plan, g.FQN(n))
	}
	return plan
}

func (g *Graph) topological() []string {
	indegree := make(map[string]int, len(g.Nodes))
	downstream := make(map[string][]string, len(g.Nodes))
	for _, n := range g.Nodes {
		for _, dep := range n.DependsOn {
			indegree[n.ID]++
			downstream[dep] = append(downstream[dep], n.ID)
		}
	}

	order := make([]string, 0, len(g.Nodes))
	done := make(map[string]bool, len(g.Nodes))
	for len(order) < len(g.Nodes) {
		progressed := false
		for _, n := range g.Nodes {
			if done[n.ID] || indegree[n.ID] > 0 {
				continue
			}
			done[n.ID] = true
			order = append(order, n.ID)
			for _, d := range downstream[n.ID] {
				indegree[d]--
			}
			progressed = true
			break
		}
		if !progressed {
			break
		}
	}
	return order
}

// Edge is a dependency from an upstream node to a downstream one.
type Edge struct {
	From string
	To   string
}

// Edges lists every dependency in declaration order.
func (g *Graph) Edges() []Edge {
	var edges []Edge
	for _, n := range g.Nodes {
		for _, dep := range n.DependsOn {
			edges = append(edges, Edge{From: dep, To: n.ID})
		}
	}
	return edges
}

// Position places a node on the lineage grid.
type Position struct {
	Column int
	Row    int
}

// Layout assigns each node a column by its longest upstream path and a row
// by declaration order within that column. A layer starts no earlier than
// the column of its first declared node, so shorter branches line up under
// their layer header; a node always sits right of its dependencies in other
// layers.
func (g *Graph) Layout() map[string]Position {
	order := g.topological()

	depth := make(map[string]int, len(g.Nodes))
	for _, id := range order {
		n, _ := g.Node(id)
		d := 0
		for _, dep := range n.DependsOn {
			if depth[dep]+1 > d {
				d = depth[dep] + 1
			}
		}
		depth[id] = d
	}

	floor := map[string]int{}
	for _, n := range g.Nodes {
		if _, ok := floor[n.Layer]; !ok {
			floor[n.Layer] = depth[n.ID]
		}
	}

	column := make(map[string]int, len(g.Nodes))
	for _, id := range order {
		n, _ := g.Node(id)
		c := depth[id]
		if floor[n.Layer] > c {
			c = floor[n.Layer]
		}
		for _, dep := range n.DependsOn {
			d, _ := g.Node(dep)
			if d.Layer != n.Layer && column[dep]+1 > c {
				c = column[dep] + 1
			}
		}
		column[id] = c
	}

	rows := map[int]int{}
	layout := make(map[string]Position, len(g.Nodes))
	for _, n := range g.Nodes {
		col := column[n.ID]
		layout[n.ID] = Position{Column: col, Row: rows[col]}
		rows[col]++
	}
	return layout
}

// Layers returns the distinct layer names in declaration order.
func (g *Graph) Layers() []string {
	var layers []string
	seen := map[string]bool{}
	for _, n := range g.Nodes {
		if !seen[n.Layer] {
			seen[n.Layer] = true
			layers = append(layers, n.Layer)
		}
	}
	return layers
}

func (g *Graph) buildIndex() {
	if g.index != nil {
		return
	}
	g.index = make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		g.index[n.ID] = i
	}
}

func graphError(message, field, node string) *errors.AppError {
	err := errors.New(errors.ErrCodeGraphInvalid, message).WithContext("field", field)
	if node != "" {
		err = err.WithContext("node", node)
	}
	return err
}

func orderError(message, node string) *errors.AppError {
	return errors.New(errors.ErrCodeRefreshOrder, message).
		WithContext("node", node).
		WithSuggestions("List every refreshable node after all of its upstream dynamic tables")
}
