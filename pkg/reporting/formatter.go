package reporting

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"strings"
	"time"
)

// ReportFormat is an output format for GenerateReport.
type ReportFormat string

const (
	ReportFormatHTML ReportFormat = "html"
	ReportFormatText ReportFormat = "text"
	ReportFormatJSON ReportFormat = "json"
)

// Formatter renders a RunReport to disk in one of several formats.
type Formatter struct {
	logger *Logger
}

// NewFormatter creates a Formatter.
func NewFormatter(logger *Logger) *Formatter {
	return &Formatter{logger: logger}
}

// GenerateReport writes report to path in the given format.
func (f *Formatter) GenerateReport(report *RunReport, format ReportFormat, path string) error {
	switch format {
	case ReportFormatHTML:
		return f.generateHTMLReport(report, path)
	case ReportFormatJSON:
		return f.generateJSONReport(report, path)
	default:
		return f.generateTextReport(report, path)
	}
}

var htmlFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"statusClass": func(s RunStatus) string {
		switch s {
		case StatusCompleted:
			return "ok"
		case StatusFailed:
			return "fail"
		case StatusStopped:
			return "stopped"
		default:
			return "running"
		}
	},
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>loadsmith report — {{.Scenario}}</title>
  <style>
    body { font-family: -apple-system, sans-serif; margin: 2rem; color: #1a1a1a; }
    h1 { margin-bottom: 0.25rem; }
    .meta { color: #555; margin-bottom: 1.5rem; }
    .ok { color: #1a7f37; }
    .fail { color: #cf222e; }
    .stopped { color: #9a6700; }
    .running { color: #0969da; }
    table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
    th, td { border: 1px solid #d0d7de; padding: 0.4rem 0.6rem; text-align: right; }
    th:first-child, td:first-child { text-align: left; }
    th { background: #f6f8fa; }
  </style>
</head>
<body>
  <h1>{{.Scenario}}</h1>
  <div class="meta">
    run {{.RunID}} &middot;
    <span class="{{statusClass .Status}}">{{.Status}}</span> &middot;
    {{formatTime .StartTime}} &rarr; {{formatTime .EndTime}} ({{.Duration}})
  </div>
  <p>
    users: {{.UsersStarted}} started, {{.UsersFinished}} finished<br>
    requests: {{.TotalRequests}} total, {{.TotalFailures}} failed
  </p>
  <table>
    <tr><th>endpoint</th><th>count</th><th>failures</th><th>p50 (ms)</th><th>p90 (ms)</th><th>p95 (ms)</th><th>p99 (ms)</th></tr>
    {{range .Endpoints}}
    <tr>
      <td>{{.Endpoint}}</td><td>{{.Count}}</td><td>{{.Failures}}</td>
      <td>{{printf "%.0f" .P50MS}}</td><td>{{printf "%.0f" .P90MS}}</td>
      <td>{{printf "%.0f" .P95MS}}</td><td>{{printf "%.0f" .P99MS}}</td>
    </tr>
    {{end}}
  </table>
</body>
</html>
`

func (f *Formatter) generateHTMLReport(report *RunReport, path string) error {
	tmpl, err := template.New("report").Funcs(htmlFuncs).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("parse html template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, report); err != nil {
		return fmt.Errorf("execute html template: %w", err)
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func (f *Formatter) generateJSONReport(report *RunReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func (f *Formatter) generateTextReport(report *RunReport, path string) error {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("loadsmith report: %s\n", report.Scenario))
	b.WriteString(strings.Repeat("=", 60) + "\n")
	b.WriteString(fmt.Sprintf("run id:   %s\n", report.RunID))
	b.WriteString(fmt.Sprintf("status:   %s\n", report.Status))
	b.WriteString(fmt.Sprintf("duration: %s\n", report.Duration))
	b.WriteString(fmt.Sprintf("users:    %d started, %d finished\n", report.UsersStarted, report.UsersFinished))
	b.WriteString(fmt.Sprintf("requests: %d total, %d failed\n\n", report.TotalRequests, report.TotalFailures))
	for _, ep := range report.Endpoints {
		b.WriteString(fmt.Sprintf("%-40s count=%-6d fail=%-5d p50=%-6.0f p95=%-6.0f p99=%-6.0f\n",
			ep.Endpoint, ep.Count, ep.Failures, ep.P50MS, ep.P95MS, ep.P99MS))
	}
	return os.WriteFile(path, []byte(b.String()), 0644)
}

// GetReportPath builds the output path for a rendered report next to the
// JSON results file, swapping the extension for the given format.
func GetReportPath(jsonPath string, format ReportFormat) string {
	trimmed := strings.TrimSuffix(jsonPath, ".json")
	switch format {
	case ReportFormatHTML:
		return trimmed + ".html"
	case ReportFormatText:
		return trimmed + ".txt"
	default:
		return jsonPath
	}
}
