// Package threshold evaluates budgets such as "lcp:p90 < 2500" against the
// aggregate of an execution.
package threshold

import (
	"fmt"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/torosent/perfrun/internal/metrics"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric    string  // e.g., "performance", "lcp", "runs_failed"
	Aggregate string  // e.g., "avg", "p90", "max", "rate", "count"
	Operator  string  // e.g., "<", "<=", ">", ">=", "=="
	Value     float64 // The threshold value to compare against
	Raw       string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Input is what thresholds are evaluated against.
type Input struct {
	Summary metrics.Summary
	Runs    int // runs requested
	Failed  int // runs that produced no result
}

// Evaluator evaluates thresholds against an execution's aggregate.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Evaluate checks all thresholds against in.
func (e *Evaluator) Evaluate(in Input) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		results = append(results, e.evaluateOne(t, in))
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []Result) bool {
	for _, r := range results {
		if !r.Pass {
			return false
		}
	}
	return true
}

func (e *Evaluator) evaluateOne(t Threshold, in Input) Result {
	actual, err := extractMetricValue(t, in)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("✗ %s: %v", t.Raw, err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.3f %s %.3f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

var thresholdPattern = regexp.MustCompile(`^([a-z_]+):([a-z0-9]+)\s*([<>=!]+)\s*([0-9.]+)$`)

var (
	pageMetrics     = []string{"performance", "lcp", "tbt", "cls"}
	runMetrics      = []string{"runs_failed", "runs_succeeded"}
	spreadAggregate = []string{"avg", "mean", "min", "max", "p50", "median", "p90", "stddev"}
	countAggregate  = []string{"count", "rate"}
)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
// - "performance:avg >= 0.9"   (category score in [0,1])
// - "lcp:p90 < 2500"           (milliseconds)
// - "tbt:max <= 300"           (milliseconds)
// - "cls:avg < 0.1"            (unitless)
// - "runs_failed:count == 0"   (failed runs)
// - "runs_failed:rate < 0.34"  (failed share of requested runs)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected format: metric:aggregate operator value, e.g., 'lcp:p90 < 2500')", s)
	}

	metric := matches[1]
	aggregate := matches[2]
	operator := matches[3]
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %v", valueStr, err)
	}

	switch {
	case slices.Contains(pageMetrics, metric):
		if !slices.Contains(spreadAggregate, aggregate) {
			return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", aggregate, metric, strings.Join(spreadAggregate, ", "))
		}
	case slices.Contains(runMetrics, metric):
		if !slices.Contains(countAggregate, aggregate) {
			return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (use 'count' or 'rate')", aggregate, metric)
		}
	default:
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: %s, %s)", metric, strings.Join(pageMetrics, ", "), strings.Join(runMetrics, ", "))
	}

	if !isValidOperator(operator) {
		return Threshold{}, fmt.Errorf("unsupported operator: %q (supported: <, <=, >, >=, ==)", operator)
	}

	return Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

func isValidOperator(operator string) bool {
	return slices.Contains([]string{"<", "<=", ">", ">=", "=="}, operator)
}

func extractMetricValue(t Threshold, in Input) (float64, error) {
	if slices.Contains(runMetrics, t.Metric) {
		return extractRunMetric(t, in)
	}
	avg, spread, ok := in.Summary.Metric(t.Metric)
	if !ok {
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
	if !in.Summary.HasData() {
		return 0, metrics.ErrNoSuccessfulRuns
	}

	switch t.Aggregate {
	case "avg", "mean":
		return avg, nil
	case "min":
		return spread.Min, nil
	case "max":
		return spread.Max, nil
	case "p50", "median":
		return spread.Median, nil
	case "p90":
		return spread.P90, nil
	case "stddev":
		return spread.StdDev, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s", t.Aggregate, t.Metric)
	}
}

func extractRunMetric(t Threshold, in Input) (float64, error) {
	count := in.Failed
	if t.Metric == "runs_succeeded" {
		count = in.Summary.RunCount
	}
	switch t.Aggregate {
	case "count":
		return float64(count), nil
	case "rate":
		if in.Runs == 0 {
			return 0, nil
		}
		return float64(count) / float64(in.Runs), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for %s (use 'count' or 'rate')", t.Aggregate, t.Metric)
	}
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	default:
		return false
	}
}
