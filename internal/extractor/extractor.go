// Package extractor reads the four aggregated metrics, plus a few descriptive
// fields, out of a Lighthouse JSON report.
package extractor

import (
	"errors"
	"fmt"
)

// Metrics holds the values perfrun aggregates for one run.
type Metrics struct {
	Performance float64 // category score in [0,1]
	LCP         float64 // milliseconds
	TBT         float64 // milliseconds
	CLS         float64 // unitless
}

// Details are optional report fields used for presentation only.
type Details struct {
	LighthouseVersion string
	FinalURL          string
	FetchTime         string
}

// Field is one required metric and where it lives in the report.
type Field struct {
	Name string
	Path string
	Max  float64 // upper bound, 0 means unbounded
}

// Fields lists the required metrics in presentation order.
var Fields = []Field{
	{Name: "performance", Path: "categories.performance.score", Max: 1},
	{Name: "lcp", Path: "audits.largest-contentful-paint.numericValue"},
	{Name: "tbt", Path: "audits.total-blocking-time.numericValue"},
	{Name: "cls", Path: "audits.cumulative-layout-shift.numericValue"},
}

// ErrMalformedReport is returned when the report is not a JSON object.
var ErrMalformedReport = errors.New("report is not a JSON object")

// FieldError reports a required metric that is absent, null, non-numeric or
// out of range.
type FieldError struct {
	Field  string
	Path   string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("report field %s (%s) %s", e.Field, e.Path, e.Reason)
}

// RuntimeError is Lighthouse's own account of a failed page load, taken from
// the report's runtimeError block.
type RuntimeError struct {
	Code    string
	Message string
}

func (e *RuntimeError) Error() string {
	if e.Message == "" {
		return "lighthouse runtime error: " + e.Code
	}
	return fmt.Sprintf("lighthouse runtime error %s: %s", e.Code, e.Message)
}

// Extract returns the required metrics from raw. A report that lacks any of
// them yields a *FieldError, or a *RuntimeError when Lighthouse recorded why.
func Extract(raw []byte) (Metrics, error) {
	if !isObject(raw) {
		return Metrics{}, ErrMalformedReport
	}

	values := make(map[string]float64, len(Fields))
	var firstErr error
	for _, f := range Fields {
		v, err := numericField(raw, f)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		values[f.Name] = v
	}
	if firstErr != nil {
		if rt := runtimeError(raw); rt != nil {
			return Metrics{}, rt
		}
		return Metrics{}, firstErr
	}

	return Metrics{
		Performance: values["performance"],
		LCP:         values["lcp"],
		TBT:         values["tbt"],
		CLS:         values["cls"],
	}, nil
}

// ReadDetails returns whatever descriptive fields the report carries.
func ReadDetails(raw []byte) Details {
	return Details{
		LighthouseVersion: findString(raw, "lighthouseVersion"),
		FinalURL:          firstString(raw, "finalDisplayedUrl", "finalUrl"),
		FetchTime:         findString(raw, "fetchTime"),
	}
}
