package metrics

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/torosent/perfrun/internal/extractor"
	"github.com/torosent/perfrun/internal/provider"
	"github.com/torosent/perfrun/internal/runner"
)

func TestFlattenFailureBuckets(t *testing.T) {
	tests := []struct {
		name    string
		buckets map[string]int
		want    []FailureBucket
	}{
		{"nil buckets", nil, nil},
		{"empty buckets", map[string]int{}, nil},
		{
			name:    "sorted by count then reason",
			buckets: map[string]int{"timeout": 2, "invalid report": 2, "browser session": 5},
			want: []FailureBucket{
				{Reason: "browser session", Count: 5},
				{Reason: "invalid report", Count: 2},
				{Reason: "timeout", Count: 2},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FlattenFailureBuckets(tt.buckets); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("FlattenFailureBuckets() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFailureReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"shape", &runner.MeasurementError{Kind: runner.KindShape, Err: errors.New("x")}, "invalid report"},
		{"timeout", &runner.MeasurementError{Kind: runner.KindTimeout, Err: errors.New("x")}, "timeout"},
		{"transport", &runner.MeasurementError{Kind: runner.KindTransport, Err: errors.New("x")}, "lighthouse failed"},
		{"persist", &runner.MeasurementError{Kind: runner.KindPersist, Err: errors.New("x")}, "report not saved"},
		{"cancelled", &runner.MeasurementError{Kind: runner.KindCancelled, Err: context.Canceled}, "cancelled"},
		{"session", &runner.SessionError{Err: errors.New("x")}, "browser session"},
		{"session lost", &runner.SessionError{Fatal: true, Err: runner.ErrSessionLost}, "session lost"},
		{"wrapped", fmt.Errorf("run 1: %w", &runner.MeasurementError{Kind: runner.KindShape}), "invalid report"},
		{"runtime error", &runner.MeasurementError{Kind: runner.KindShape, Err: &extractor.RuntimeError{Code: "NO_FCP"}}, "lighthouse runtime error"},
		{"process exit", &runner.MeasurementError{Kind: runner.KindTransport, Err: &provider.Error{ExitCode: 1}}, "lighthouse exited"},
		{"bare deadline", context.DeadlineExceeded, "timeout"},
		{"bare field error", &extractor.FieldError{Field: "lcp"}, "invalid report"},
		{"bare malformed", fmt.Errorf("run 2: %w", extractor.ErrMalformedReport), "invalid report"},
		{"bare process exit", &provider.Error{ExitCode: 2}, "lighthouse exited"},
		{"bare unknown", errors.New("boom"), "lighthouse failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FailureReason(tt.err); got != tt.want {
				t.Errorf("FailureReason() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCountFailures(t *testing.T) {
	failures := []runner.RunFailure{
		{Run: 1, Cause: &runner.MeasurementError{Kind: runner.KindTimeout, Err: errors.New("x")}},
		{Run: 2, Cause: &runner.MeasurementError{Kind: runner.KindTimeout, Err: errors.New("y")}},
		{Run: 3, Cause: &runner.SessionError{Err: errors.New("z")}},
	}
	got := CountFailures(failures)
	want := map[string]int{"timeout": 2, "browser session": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("CountFailures() = %v, want %v", got, want)
	}
}
