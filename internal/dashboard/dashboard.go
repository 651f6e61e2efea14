package dashboard

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ui "github.com/gizak/termui/v3"
	"github.com/gizak/termui/v3/widgets"

	"github.com/torosent/perfrun/internal/metrics"
	"github.com/torosent/perfrun/internal/runner"
)

const (
	refreshInterval = 500 * time.Millisecond
	maxFailureRows  = 10
)

// RunConfig holds execution parameters for display.
type RunConfig struct {
	Target     string          // Audited URL
	Runs       int             // Number of runs requested
	Mode       runner.Mode     // Sequential or concurrent
	Topology   runner.Topology // Browser session topology
	InFlight   int             // Maximum runs in flight
	Timeout    time.Duration   // Per-run timeout (0 = none)
	Retries    int             // Retries per run
	ConfigFile string          // Path to config file if used
}

// Dashboard renders a live terminal UI for an execution.
type Dashboard struct {
	collector    *metrics.Collector
	ctx          context.Context
	cancel       context.CancelFunc
	shutdownFunc func()
	wg           sync.WaitGroup
	mu           sync.Mutex

	// Widgets
	grid         *ui.Grid
	scoreSparkle *widgets.SparklineGroup
	runsGauge    *widgets.Gauge
	failureList  *widgets.List
	summaryPara  *widgets.Paragraph
	timingPara   *widgets.Paragraph
	metricsPara  *widgets.Paragraph
	cfg          RunConfig
}

// New creates a new Dashboard. shutdownFunc is called when the user presses
// q or Ctrl+C.
func New(collector *metrics.Collector, cfg RunConfig, shutdownFunc func()) (*Dashboard, error) {
	if err := ui.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize termui: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	d := &Dashboard{
		collector:    collector,
		ctx:          ctx,
		cancel:       cancel,
		shutdownFunc: shutdownFunc,
		cfg:          cfg,
	}

	d.initWidgets()
	d.setupGrid()

	return d, nil
}

func (d *Dashboard) initWidgets() {
	performance := widgets.NewSparkline()
	performance.Title = "Performance score"
	performance.LineColor = ui.ColorGreen
	performance.Data = []float64{0}

	lcp := widgets.NewSparkline()
	lcp.Title = "LCP (s)"
	lcp.LineColor = ui.ColorYellow
	lcp.Data = []float64{0}

	d.scoreSparkle = widgets.NewSparklineGroup(performance, lcp)
	d.scoreSparkle.Title = "Completed Runs"
	d.scoreSparkle.BorderStyle.Fg = ui.ColorCyan

	d.runsGauge = widgets.NewGauge()
	d.runsGauge.Title = "Runs Completed"
	d.runsGauge.Percent = 0
	d.runsGauge.BarColor = ui.ColorBlue
	d.runsGauge.BorderStyle.Fg = ui.ColorCyan
	d.runsGauge.LabelStyle = ui.NewStyle(ui.ColorWhite)

	d.failureList = widgets.NewList()
	d.failureList.Title = "Failures"
	d.failureList.Rows = []string{"No failures"}
	d.failureList.TextStyle = ui.NewStyle(ui.ColorYellow)
	d.failureList.BorderStyle.Fg = ui.ColorCyan

	d.summaryPara = widgets.NewParagraph()
	d.summaryPara.Title = "Execution"
	d.summaryPara.Text = "Initializing..."
	d.summaryPara.BorderStyle.Fg = ui.ColorCyan

	d.timingPara = widgets.NewParagraph()
	d.timingPara.Title = "Run Durations"
	d.timingPara.Text = "Min: -\nMean: -\nP50: -\nP90: -\nMax: -"
	d.timingPara.BorderStyle.Fg = ui.ColorCyan

	d.metricsPara = widgets.NewParagraph()
	d.metricsPara.Title = "Runs"
	d.metricsPara.Text = "Waiting for data..."
	d.metricsPara.BorderStyle.Fg = ui.ColorCyan
}

func (d *Dashboard) setupGrid() {
	termWidth, termHeight := ui.TerminalDimensions()

	d.grid = ui.NewGrid()
	d.grid.SetRect(0, 0, termWidth, termHeight)

	d.grid.Set(
		ui.NewRow(0.16,
			ui.NewCol(1.0, d.summaryPara),
		),
		ui.NewRow(0.2,
			ui.NewCol(0.5, d.runsGauge),
			ui.NewCol(0.5, d.metricsPara),
		),
		ui.NewRow(0.36,
			ui.NewCol(0.65, d.scoreSparkle),
			ui.NewCol(0.35, d.timingPara),
		),
		ui.NewRow(0.28,
			ui.NewCol(1.0, d.failureList),
		),
	)
}

// Start begins the dashboard update loop.
func (d *Dashboard) Start() {
	d.wg.Add(1)
	go d.run()
}

// Stop stops the dashboard and restores the terminal.
func (d *Dashboard) Stop() {
	d.cancel()
	d.wg.Wait()
	ui.Close()
	// Give terminal time to restore
	time.Sleep(100 * time.Millisecond)
}

func (d *Dashboard) run() {
	defer d.wg.Done()

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	uiEvents := ui.PollEvents()

	d.render()

	for {
		select {
		case <-d.ctx.Done():
			for len(uiEvents) > 0 {
				<-uiEvents
			}
			return
		case e := <-uiEvents:
			select {
			case <-d.ctx.Done():
				return
			default:
			}

			switch e.ID {
			case "q", "<C-c>":
				if d.shutdownFunc != nil {
					d.shutdownFunc()
				}
				// Stop cancels the context once the runner has unwound.
			case "<Resize>":
				payload := e.Payload.(ui.Resize)
				d.grid.SetRect(0, 0, payload.Width, payload.Height)
				ui.Clear()
				d.render()
			}
		case <-ticker.C:
			d.update()
			d.render()
		}
	}
}

// update refreshes all widget data from the collector.
func (d *Dashboard) update() {
	d.mu.Lock()
	defer d.mu.Unlock()

	snap := d.collector.Snapshot()

	d.runsGauge.Percent, d.runsGauge.Label = gaugeState(snap)

	d.summaryPara.Text = fmt.Sprintf(
		"Target: %s\n%s\nElapsed: %s | Done: %d/%d",
		d.cfg.Target,
		formatRunParams(d.cfg),
		snap.Elapsed.Round(time.Second),
		snap.Done(),
		snap.Total,
	)

	d.metricsPara.Text = fmt.Sprintf(
		"Requested:  %d\nStarted:    %d\nIn flight:  %d\nSucceeded:  %d\nFailed:     %d",
		snap.Total,
		snap.Started,
		snap.InFlight,
		snap.Succeeded,
		snap.Failed,
	)

	d.timingPara.Text = formatTimings(snap)

	if perf, lcp := sparklineData(snap); len(perf) > 0 {
		d.scoreSparkle.Sparklines[0].Data = perf
		d.scoreSparkle.Sparklines[1].Data = lcp
		d.scoreSparkle.Title = fmt.Sprintf("Completed Runs | Last score: %.1f | Last LCP: %.2fs", perf[len(perf)-1], lcp[len(lcp)-1])
	}

	d.failureList.Rows = formatFailureRows(snap.Failures)
}

func (d *Dashboard) render() {
	d.mu.Lock()
	defer d.mu.Unlock()

	ui.Render(d.grid)
}

// gaugeState returns the completion percentage and label for the runs gauge.
func gaugeState(s metrics.Snapshot) (int, string) {
	if s.Total <= 0 {
		return 0, "0/0 runs"
	}
	percent := s.Done() * 100 / s.Total
	if percent > 100 {
		percent = 100
	}
	return percent, fmt.Sprintf("%d/%d runs", s.Done(), s.Total)
}

// sparklineData scales the successful runs for display: performance on a
// 0-100 scale, LCP in seconds.
func sparklineData(s metrics.Snapshot) (perf, lcp []float64) {
	perf = make([]float64, len(s.Performance))
	for i, v := range s.Performance {
		perf[i] = v * 100
	}
	lcp = make([]float64, len(s.LCP))
	for i, v := range s.LCP {
		lcp[i] = v / 1000
	}
	return perf, lcp
}

func formatTimings(s metrics.Snapshot) string {
	if s.Done() == 0 {
		return "Min: -\nMean: -\nP50: -\nP90: -\nMax: -"
	}
	round := func(d time.Duration) time.Duration { return d.Round(10 * time.Millisecond) }
	return fmt.Sprintf(
		"Min:  %s\nMean: %s\nP50:  %s\nP90:  %s\nMax:  %s",
		round(s.MinDuration),
		round(s.MeanDuration),
		round(s.P50Duration),
		round(s.P90Duration),
		round(s.MaxDuration),
	)
}

func formatFailureRows(failures map[string]int) []string {
	rows := metrics.FlattenFailureBuckets(failures)
	if len(rows) == 0 {
		return []string{"[No failures](fg:green)"}
	}
	if len(rows) > maxFailureRows {
		rows = rows[:maxFailureRows]
	}
	formatted := make([]string, 0, len(rows))
	for _, row := range rows {
		formatted = append(formatted, fmt.Sprintf("[%s](fg:red) %d", row.Reason, row.Count))
	}
	return formatted
}

// formatRunParams formats the execution parameters for display.
func formatRunParams(cfg RunConfig) string {
	var parts []string

	if cfg.Mode == runner.ModeConcurrent {
		parts = append(parts, fmt.Sprintf("Mode: concurrent (%d in flight)", cfg.InFlight))
	} else {
		parts = append(parts, "Mode: sequential")
	}

	if cfg.Topology != "" {
		parts = append(parts, fmt.Sprintf("Browser: %s", cfg.Topology))
	}

	if cfg.Timeout > 0 {
		parts = append(parts, fmt.Sprintf("Timeout: %s", cfg.Timeout))
	}

	// Retries (only show if set)
	if cfg.Retries > 0 {
		parts = append(parts, fmt.Sprintf("Retries: %d", cfg.Retries))
	}

	// Config file (only show if used)
	if cfg.ConfigFile != "" {
		parts = append(parts, fmt.Sprintf("Config: %s", cfg.ConfigFile))
	}

	return strings.Join(parts, " | ")
}
