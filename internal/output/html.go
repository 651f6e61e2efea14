package output

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"time"
)

// HTMLReportData contains all data needed for the HTML report template.
type HTMLReportData struct {
	GeneratedAt      string
	Doc              Document
	RunsJSON         string
	ThresholdSummary *ThresholdSummary
}

// ThresholdSummary counts threshold outcomes for the report header.
type ThresholdSummary struct {
	Total  int
	Passed int
	Failed int
}

// chartPoint is one successful run as plotted in the report.
type chartPoint struct {
	Run         int     `json:"run"`
	Performance float64 `json:"performance"`
	LCP         float64 `json:"lcp_ms"`
	TBT         float64 `json:"tbt_ms"`
	CLS         float64 `json:"cls"`
}

// GenerateHTMLReport generates a standalone HTML report with embedded charts.
func GenerateHTMLReport(w io.Writer, doc Document) error {
	var thresholdSummary *ThresholdSummary
	if len(doc.Thresholds) > 0 {
		thresholdSummary = &ThresholdSummary{Total: len(doc.Thresholds)}
		for _, tr := range doc.Thresholds {
			if tr.Pass {
				thresholdSummary.Passed++
			} else {
				thresholdSummary.Failed++
			}
		}
	}

	points := make([]chartPoint, 0, len(doc.Runs))
	for _, r := range doc.Runs {
		if r.Status != "ok" {
			continue
		}
		points = append(points, chartPoint{Run: r.Run, Performance: *r.Performance, LCP: *r.LCP, TBT: *r.TBT, CLS: *r.CLS})
	}
	runsJSON, err := json.Marshal(points)
	if err != nil {
		return fmt.Errorf("failed to marshal runs: %w", err)
	}

	data := HTMLReportData{
		GeneratedAt:      time.Now().Format(time.RFC3339),
		Doc:              doc,
		RunsJSON:         string(runsJSON),
		ThresholdSummary: thresholdSummary,
	}

	tmpl, err := template.New("report").Funcs(template.FuncMap{
		"score": func(v float64) string {
			return fmt.Sprintf("%.1f", v*100)
		},
		"seconds": func(ms float64) string {
			return fmt.Sprintf("%.2fs", ms/1000)
		},
		"millis": func(ms float64) string {
			return fmt.Sprintf("%.0fms", ms)
		},
		"cls": func(v float64) string {
			return fmt.Sprintf("%.3f", v)
		},
		"formatFloat": func(f float64) string {
			return fmt.Sprintf("%.2f", f)
		},
		"formatDuration": func(ms float64) string {
			return (time.Duration(ms) * time.Millisecond).Round(time.Millisecond).String()
		},
		"deref": func(p *float64) float64 {
			if p == nil {
				return 0
			}
			return *p
		},
	}).Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse template: %w", err)
	}

	if err := tmpl.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}

	return nil
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>perfrun Report</title>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, 'Helvetica Neue', Arial, sans-serif;
            background: #f5f7fa;
            color: #2c3e50;
            line-height: 1.6;
            padding: 20px;
        }
        .container {
            max-width: 1200px;
            margin: 0 auto;
            background: white;
            border-radius: 8px;
            box-shadow: 0 2px 8px rgba(0,0,0,0.1);
            overflow: hidden;
        }
        header {
            background: linear-gradient(135deg, #0f766e 0%, #1d4ed8 100%);
            color: white;
            padding: 30px 40px;
        }
        header h1 { font-size: 2rem; margin-bottom: 10px; }
        header .meta { opacity: 0.9; font-size: 0.9rem; }
        .content { padding: 40px; }
        .grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(200px, 1fr));
            gap: 20px;
            margin-bottom: 40px;
        }
        .card {
            background: #f8f9fa;
            border-radius: 8px;
            padding: 20px;
            border-left: 4px solid #1d4ed8;
        }
        .card h3 {
            font-size: 0.9rem;
            color: #6c757d;
            text-transform: uppercase;
            letter-spacing: 0.5px;
            margin-bottom: 10px;
        }
        .card .value { font-size: 2rem; font-weight: bold; }
        .card .subvalue { font-size: 0.85rem; color: #6c757d; margin-top: 5px; }
        .card.success { border-left-color: #10b981; }
        .card.error { border-left-color: #ef4444; }
        .section { margin-bottom: 40px; }
        .section h2 {
            font-size: 1.5rem;
            margin-bottom: 20px;
            padding-bottom: 10px;
            border-bottom: 2px solid #e5e7eb;
        }
        .chart { width: 100%; height: 300px; }
        table { width: 100%; border-collapse: collapse; }
        th, td { text-align: left; padding: 12px; border-bottom: 1px solid #e5e7eb; }
        th {
            background: #f8f9fa;
            font-weight: 600;
            color: #4b5563;
            font-size: 0.9rem;
            text-transform: uppercase;
        }
        .badge { display: inline-block; padding: 4px 12px; border-radius: 12px; font-size: 0.85rem; font-weight: 600; }
        .badge-success { background: #d1fae5; color: #065f46; }
        .badge-error { background: #fee2e2; color: #991b1b; }
        .no-data { text-align: center; padding: 40px; color: #6c757d; font-style: italic; }
    </style>
    <script src="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.iife.min.js"></script>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/uplot@1.6.24/dist/uPlot.min.css">
</head>
<body>
    <div class="container">
        <header>
            <h1>perfrun Report</h1>
            <div class="meta">Target: <a href="{{.Doc.Target}}" style="color: white; text-decoration: underline;">{{.Doc.Target}}</a></div>
            <div class="meta">Execution {{.Doc.ExecutionID}} | Mode: {{.Doc.Mode}} | Browser: {{.Doc.Topology}} | Generated: {{.GeneratedAt}} | Duration: {{formatDuration .Doc.DurationMs}}</div>
        </header>

        <div class="content">
            <div class="grid">
                <div class="card">
                    <h3>Runs</h3>
                    <div class="value">{{.Doc.Requested}}</div>
                </div>
                <div class="card success">
                    <h3>Succeeded</h3>
                    <div class="value">{{.Doc.Succeeded}}</div>
                </div>
                <div class="card error">
                    <h3>Failed</h3>
                    <div class="value">{{.Doc.Failed}}</div>
                </div>
                {{with .Doc.Summary}}
                <div class="card">
                    <h3>Average Performance</h3>
                    <div class="value">{{score .AvgPerformance}}</div>
                    <div class="subvalue">median {{score .Performance.Median}}, p90 {{score .Performance.P90}}</div>
                </div>
                <div class="card">
                    <h3>Average LCP</h3>
                    <div class="value">{{seconds .AvgLCP}}</div>
                    <div class="subvalue">median {{seconds .LCP.Median}}, p90 {{seconds .LCP.P90}}</div>
                </div>
                <div class="card">
                    <h3>Average TBT</h3>
                    <div class="value">{{millis .AvgTBT}}</div>
                    <div class="subvalue">median {{millis .TBT.Median}}, p90 {{millis .TBT.P90}}</div>
                </div>
                <div class="card">
                    <h3>Average CLS</h3>
                    <div class="value">{{cls .AvgCLS}}</div>
                    <div class="subvalue">median {{cls .CLS.Median}}, p90 {{cls .CLS.P90}}</div>
                </div>
                {{end}}
            </div>

            {{if .Doc.Summary}}
            <div class="section">
                <h2>Metrics per Run</h2>
                <div id="score-chart" class="chart"></div>
                <div id="timing-chart" class="chart"></div>
            </div>
            {{else}}
            <div class="no-data">No data: none of the {{.Doc.Requested}} runs succeeded.</div>
            {{end}}

            <div class="section">
                <h2>Runs</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Run</th>
                            <th>Status</th>
                            <th>Performance</th>
                            <th>LCP</th>
                            <th>TBT</th>
                            <th>CLS</th>
                            <th>Duration</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Doc.Runs}}
                        <tr>
                            <td>{{.Run}}</td>
                            {{if eq .Status "ok"}}
                            <td><span class="badge badge-success">OK</span></td>
                            <td>{{score (deref .Performance)}}</td>
                            <td>{{seconds (deref .LCP)}}</td>
                            <td>{{millis (deref .TBT)}}</td>
                            <td>{{cls (deref .CLS)}}</td>
                            {{else}}
                            <td><span class="badge badge-error">FAILED</span></td>
                            <td colspan="4">{{.Reason}}: {{.Error}}</td>
                            {{end}}
                            <td>{{formatDuration .DurationMs}}</td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>

            {{if .ThresholdSummary}}
            <div class="section">
                <h2>Thresholds ({{.ThresholdSummary.Passed}}/{{.ThresholdSummary.Total}} Passed)</h2>
                <table>
                    <thead>
                        <tr>
                            <th>Threshold</th>
                            <th>Metric</th>
                            <th>Expected</th>
                            <th>Actual</th>
                            <th>Status</th>
                        </tr>
                    </thead>
                    <tbody>
                        {{range .Doc.Thresholds}}
                        <tr>
                            <td>{{.Threshold}}</td>
                            <td>{{.Metric}} ({{.Aggregate}})</td>
                            <td>{{.Operator}} {{formatFloat .Expected}}</td>
                            <td>{{formatFloat .Actual}}</td>
                            <td>
                                {{if .Pass}}
                                <span class="badge badge-success">PASS</span>
                                {{else}}
                                <span class="badge badge-error">FAIL</span>
                                {{end}}
                            </td>
                        </tr>
                        {{end}}
                    </tbody>
                </table>
            </div>
            {{end}}
        </div>
    </div>

    {{if .Doc.Summary}}
    <script>
        const runs = JSON.parse({{.RunsJSON}});
        if (runs && runs.length > 0) {
            const x = runs.map(r => r.run);
            new uPlot({
                title: "Performance Score",
                width: document.getElementById('score-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false }, y: { range: [0, 100] } },
                series: [
                    { label: "Run" },
                    { label: "Score", stroke: "#1d4ed8", width: 2, points: { show: true } }
                ],
                axes: [{ label: "Run" }, { label: "Score" }]
            }, [x, runs.map(r => r.performance * 100)], document.getElementById('score-chart'));

            new uPlot({
                title: "LCP and TBT (ms)",
                width: document.getElementById('timing-chart').offsetWidth,
                height: 300,
                scales: { x: { time: false } },
                series: [
                    { label: "Run" },
                    { label: "LCP", stroke: "#10b981", width: 2, points: { show: true } },
                    { label: "TBT", stroke: "#ef4444", width: 2, points: { show: true } }
                ],
                axes: [{ label: "Run" }, { label: "Milliseconds" }]
            }, [x, runs.map(r => r.lcp_ms), runs.map(r => r.tbt_ms)], document.getElementById('timing-chart'));
        }
    </script>
    {{end}}
</body>
</html>
`
