package dashboard

import (
	"html/template"
	"strings"
	"time"

	"studiopipe/internal/snowflake"
	"studiopipe/internal/ui"
)

var templateFuncs = template.FuncMap{
	"count": ui.FormatCount,
	"cell":  snowflake.FormatValue,
	"stamp": func(t time.Time) string { return t.Format("2006-01-02 15:04:05") },
	"statusClass": func(status string) string {
		if strings.HasPrefix(status, "PASS") {
			return "pass"
		}
		return "fail"
	},
}

// loadTemplates parses the dashboard page and its per-tab sections.
func loadTemplates() *template.Template {
	tmpl := template.New("dashboard").Funcs(templateFuncs)
	template.Must(tmpl.Parse(pageHTML))
	template.Must(tmpl.Parse(tabsHTML))
	return tmpl
}

const pageHTML = `{{define "page"}}<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Profile.Title}}</title>
    <style>
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            margin: 0;
            background-color: #f5f5f5;
            color: #333;
        }
        .layout {
            display: flex;
            min-height: 100vh;
        }
        .sidebar {
            width: 260px;
            padding: 20px;
            background: white;
            box-shadow: 2px 0 4px rgba(0,0,0,0.1);
        }
        .sidebar h3 {
            margin-top: 24px;
        }
        .main {
            flex: 1;
            padding: 20px;
            max-width: 1200px;
        }
        .tabs {
            display: flex;
            gap: 8px;
            margin: 20px 0;
            border-bottom: 2px solid #eee;
        }
        .tabs a {
            padding: 8px 16px;
            text-decoration: none;
            color: #555;
            border-bottom: 3px solid transparent;
        }
        .tabs a.active {
            color: #d33;
            border-bottom-color: #d33;
        }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(220px, 1fr));
            gap: 20px;
        }
        .card {
            background: white;
            padding: 20px;
            border-radius: 8px;
            box-shadow: 0 2px 4px rgba(0,0,0,0.1);
            margin-bottom: 20px;
        }
        .metric-label {
            font-size: 14px;
            color: #666;
        }
        .metric-value {
            font-size: 28px;
            font-weight: bold;
            font-family: monospace;
        }
        .metric-delta {
            font-size: 12px;
            color: #888;
        }
        .notice {
            padding: 12px 16px;
            border-radius: 4px;
            margin: 10px 0;
        }
        .notice.success { background-color: #d4edda; color: #155724; }
        .notice.warning { background-color: #fff3cd; color: #856404; }
        .notice.error { background-color: #f8d7da; color: #721c24; }
        .notice.info { background-color: #d1ecf1; color: #0c5460; }
        table {
            border-collapse: collapse;
            width: 100%;
        }
        th, td {
            text-align: left;
            padding: 6px 10px;
            border-bottom: 1px solid #eee;
        }
        td.pass { color: #155724; font-weight: bold; }
        td.fail { color: #721c24; font-weight: bold; }
        pre.diagram {
            font-family: monospace;
            font-size: 13px;
            line-height: 1.3;
            overflow-x: auto;
        }
        svg.chart, svg.lineage {
            width: 100%;
            height: auto;
        }
        svg .grid { stroke: #eee; }
        svg .edge { stroke: #999; stroke-width: 1.5; }
        svg .tick, svg .label, svg .legend, svg .node-label { font-size: 11px; fill: #333; }
        svg .layer { font-size: 14px; font-weight: bold; }
        svg .chart-title { font-size: 15px; font-weight: bold; }
        button {
            padding: 8px 16px;
            border: 1px solid #ccc;
            border-radius: 4px;
            background: white;
            cursor: pointer;
        }
    </style>
</head>
<body>
    <div class="layout">
        <div class="sidebar">
            <h3>🔄 Refresh</h3>
            <form method="post" action="/refresh">
                <input type="hidden" name="tab" value="{{.Active}}">
                <button type="submit">Refresh Data</button>
            </form>

            <h3>ℹ️ Info</h3>
            <p><strong>Database:</strong> {{.Profile.Database}}</p>
            <p><strong>Schemas:</strong> {{.Schemas}}</p>
            <p><strong>Last Updated:</strong> {{stamp .UpdatedAt}}</p>

            <h3>📚 Quick Links</h3>
            <ul>
                <li><a href="https://app.snowflake.com">Snowsight Data Quality</a></li>
                <li><a href="https://docs.getdbt.com">dbt Docs</a></li>
            </ul>
        </div>

        <div class="main">
            <h1>{{.Profile.Title}}</h1>
            <p>Real-time monitoring dashboard for the {{.Profile.Database}} data platform</p>

            <nav class="tabs">
                {{range .Tabs}}<a href="{{if eq .ID "overview"}}/{{else}}/tab/{{.ID}}{{end}}"{{if eq .ID $.Active}} class="active"{{end}}>{{.Label}}</a>
                {{end}}
            </nav>

            {{if eq .Active "overview"}}{{template "overview" .Data}}{{end}}
            {{if eq .Active "quality"}}{{template "quality" .Data}}{{end}}
            {{if eq .Active "health"}}{{template "health" .Data}}{{end}}
            {{if eq .Active "lineage"}}{{template "lineage" .Data}}{{end}}
            {{if eq .Active "tests"}}{{template "tests" .Data}}{{end}}
        </div>
    </div>
</body>
</html>
{{end}}`

const tabsHTML = `
{{define "error"}}<div class="notice error">⚠️ {{.}}</div>{{end}}

{{define "overview"}}
<h2>Pipeline Overview</h2>
<div class="grid">
    {{range .Layers}}
    <div class="card">
        <div class="metric-label">{{.Label}}</div>
        <div class="metric-value">{{count .Total}}</div>
        <div class="metric-delta">{{.Delta}}</div>
    </div>
    {{end}}
</div>
<h3>Row Counts by Layer</h3>
{{if .Error}}{{template "error" .Error}}{{else}}<div class="card">{{.Chart}}</div>{{end}}
{{end}}

{{define "quality"}}
<h2>Data Quality Monitoring</h2>
{{if .Error}}{{template "error" .Error}}{{else}}
<div class="grid">
    <div class="card"><div class="metric-label">Total DMF Checks</div><div class="metric-value">{{.Total}}</div></div>
    <div class="card"><div class="metric-label">✅ Passing</div><div class="metric-value">{{.Passing}}</div></div>
    <div class="card"><div class="metric-label">❌ Failing</div><div class="metric-value">{{.Failing}}</div></div>
</div>
{{if .AllPassing}}<div class="notice success">🎉 All data quality checks passing!</div>
{{else}}<div class="notice error">⚠️ {{.Failing}} data quality check(s) have violations</div>{{end}}
<h3>Data Quality Metrics</h3>
<div class="card">
<table>
    <tr><th>Table</th><th>Metric</th><th>Description</th><th>Violations</th><th>Status</th><th>Measured At</th></tr>
    {{range .Rows}}
    <tr><td>{{.Table}}</td><td>{{.Metric}}</td><td>{{.Description}}</td><td>{{count .Violations}}</td><td class="{{statusClass .Status}}">{{.Status}}</td><td>{{.MeasuredAt}}</td></tr>
    {{end}}
</table>
</div>
<h3>DMF Violation Counts</h3>
<div class="card">{{.Chart}}</div>
{{end}}
{{end}}

{{define "health"}}
<h2>Pipeline Component Health</h2>
<div class="grid">
    <div class="card">
        <h3>🌊 Stream Status</h3>
        {{if .StreamError}}{{template "error" .StreamError}}
        {{else if .StreamHasData}}<div class="notice warning">⚡ Stream has pending data to process</div>
        {{else}}<div class="notice success">✅ Stream is current (no pending data)</div>{{end}}
    </div>
    <div class="card">
        <h3>⚙️ Task Status</h3>
        {{if .TaskError}}{{template "error" .TaskError}}
        {{else if .TaskHistory}}
        <table>
            <tr>{{range .TaskHistory.Columns}}<th>{{.}}</th>{{end}}</tr>
            {{range .TaskHistory.Rows}}<tr>{{range .}}<td>{{cell .}}</td>{{end}}</tr>
            {{end}}
        </table>
        {{else if .TaskState}}
        <div class="metric-label">Task State</div>
        <div class="metric-value">{{.TaskState}}</div>
        {{else if eq .TaskMessage "Task not found"}}<div class="notice warning">{{.TaskMessage}}</div>
        {{else}}<div class="notice info">{{.TaskMessage}}</div>{{end}}
    </div>
</div>
<h3>📊 Dynamic Table Status</h3>
{{if .DynamicTablesError}}{{template "error" .DynamicTablesError}}{{else}}
<div class="grid">
    {{range .DynamicTables}}
    <div class="card">
        <div class="metric-label">📈 {{.Name}}</div>
        <div class="metric-value">{{count .Rows}} rows</div>
        <div class="metric-delta">Schema: {{.Schema}}</div>
    </div>
    {{end}}
</div>
{{end}}
{{end}}

{{define "lineage"}}
<h2>Data Lineage</h2>
<div class="card">
{{if .SVG}}{{.SVG}}{{else}}<pre class="diagram">{{.Diagram}}</pre>{{end}}
</div>
<h3>Processing Components</h3>
<div class="card">
<table>
    <tr><th>Component</th><th>Type</th><th>Count</th><th>Status</th></tr>
    {{range .Components}}<tr><td>{{.Component}}</td><td>{{.Type}}</td><td>{{.Count}}</td><td>{{.Status}}</td></tr>
    {{end}}
</table>
</div>
{{end}}

{{define "tests"}}
<h2>dbt Test Results</h2>
<div class="notice info">💡 Run <code>dbt test</code> to see latest results. Below shows test configuration.</div>
<div class="card">
<table>
    <tr><th>Test Type</th><th>Count</th><th>Tables Covered</th></tr>
    {{range .Types}}<tr><td>{{.Type}}</td><td>{{.Count}}</td><td>{{.Covered}}</td></tr>
    {{end}}
</table>
</div>
<div class="grid">
    <div class="card"><div class="metric-label">Total Tests</div><div class="metric-value">{{.Total}}</div></div>
    <div class="card"><div class="metric-label">Last Run</div><div class="metric-value">{{.LastRun}}</div></div>
    <div class="card"><div class="metric-label">Custom Tests</div><div class="metric-value">{{len .Custom}}</div></div>
</div>
<h3>Custom Data Tests</h3>
<ul>
    {{range .Custom}}<li><strong>{{.Name}}</strong>: {{.Description}}</li>
    {{end}}
</ul>
{{end}}
`
