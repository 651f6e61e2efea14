package output_test

import (
	"bytes"
	"testing"

	"github.com/torosent/perfrun/internal/output"
	"github.com/torosent/perfrun/internal/runner"
)

func TestWriteCSV(t *testing.T) {
	results := []runner.RunResult{
		{Run: 1, Performance: 0.92, LCP: 1800, TBT: 120, CLS: 0.02},
		{Run: 3, Performance: 0.8751, LCP: 2346, TBT: 180.4, CLS: 0.1234},
	}

	var buf bytes.Buffer
	if err := output.WriteCSV(&buf, results); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}

	want := "run,performance,lcp,tbt,cls\n" +
		"1,0.92,1.80,120,0.020\n" +
		"3,0.88,2.35,180,0.123\n"
	if buf.String() != want {
		t.Errorf("WriteCSV() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestWriteCSVHeaderOnly(t *testing.T) {
	var buf bytes.Buffer
	if err := output.WriteCSV(&buf, nil); err != nil {
		t.Fatalf("WriteCSV() error = %v", err)
	}
	if buf.String() != "run,performance,lcp,tbt,cls\n" {
		t.Errorf("WriteCSV() = %q", buf.String())
	}
}
