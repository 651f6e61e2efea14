package extractor

import (
	"errors"
	"strings"
	"testing"
)

const sampleReport = `{
  "lighthouseVersion": "12.2.1",
  "finalDisplayedUrl": "https://example.com/",
  "fetchTime": "2026-10-17T09:00:00.000Z",
  "categories": {"performance": {"id": "performance", "score": 0.92}},
  "audits": {
    "largest-contentful-paint": {"numericValue": 1800.5},
    "total-blocking-time": {"numericValue": 120},
    "cumulative-layout-shift": {"numericValue": 0.02}
  }
}`

func TestExtract_AllFields(t *testing.T) {
	m, err := Extract([]byte(sampleReport))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if m.Performance != 0.92 {
		t.Errorf("Performance = %v, want 0.92", m.Performance)
	}
	if m.LCP != 1800.5 {
		t.Errorf("LCP = %v, want 1800.5", m.LCP)
	}
	if m.TBT != 120 {
		t.Errorf("TBT = %v, want 120", m.TBT)
	}
	if m.CLS != 0.02 {
		t.Errorf("CLS = %v, want 0.02", m.CLS)
	}
}

func TestExtract_MissingField(t *testing.T) {
	raw := strings.Replace(sampleReport, `"total-blocking-time"`, `"tbt-renamed"`, 1)

	_, err := Extract([]byte(raw))
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("Extract() error = %v, want *FieldError", err)
	}
	if fe.Field != "tbt" {
		t.Errorf("Field = %q, want tbt", fe.Field)
	}
}

func TestExtract_NullScore(t *testing.T) {
	raw := strings.Replace(sampleReport, `"score": 0.92`, `"score": null`, 1)

	_, err := Extract([]byte(raw))
	var fe *FieldError
	if !errors.As(err, &fe) {
		t.Fatalf("Extract() error = %v, want *FieldError", err)
	}
	if fe.Reason != "is null" {
		t.Errorf("Reason = %q, want 'is null'", fe.Reason)
	}
}

func TestExtract_NonNumeric(t *testing.T) {
	raw := strings.Replace(sampleReport, `"numericValue": 120`, `"numericValue": "120"`, 1)

	_, err := Extract([]byte(raw))
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Reason != "is not a number" {
		t.Fatalf("Extract() error = %v, want non-numeric FieldError", err)
	}
}

func TestExtract_OutOfRangeScore(t *testing.T) {
	raw := strings.Replace(sampleReport, `"score": 0.92`, `"score": 92`, 1)

	_, err := Extract([]byte(raw))
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "performance" {
		t.Fatalf("Extract() error = %v, want performance FieldError", err)
	}
}

func TestExtract_RuntimeErrorTakesPrecedence(t *testing.T) {
	raw := `{
	  "runtimeError": {"code": "NO_FCP", "message": "The page did not paint any content."},
	  "categories": {"performance": {"score": null}},
	  "audits": {}
	}`

	_, err := Extract([]byte(raw))
	var re *RuntimeError
	if !errors.As(err, &re) {
		t.Fatalf("Extract() error = %v, want *RuntimeError", err)
	}
	if re.Code != "NO_FCP" {
		t.Errorf("Code = %q, want NO_FCP", re.Code)
	}
}

func TestExtract_NoErrorRuntimeBlockIgnored(t *testing.T) {
	raw := strings.Replace(sampleReport, `"lighthouseVersion"`, `"runtimeError": {"code": "NO_ERROR"}, "lighthouseVersion"`, 1)
	if _, err := Extract([]byte(raw)); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
}

func TestExtract_Malformed(t *testing.T) {
	tests := []string{``, `not json`, `[1,2,3]`, `{"categories":`}
	for _, raw := range tests {
		_, err := Extract([]byte(raw))
		if !errors.Is(err, ErrMalformedReport) {
			t.Errorf("Extract(%q) error = %v, want ErrMalformedReport", raw, err)
		}
	}
}

func TestReadDetails(t *testing.T) {
	d := ReadDetails([]byte(sampleReport))
	if d.LighthouseVersion != "12.2.1" {
		t.Errorf("LighthouseVersion = %q, want 12.2.1", d.LighthouseVersion)
	}
	if d.FinalURL != "https://example.com/" {
		t.Errorf("FinalURL = %q, want https://example.com/", d.FinalURL)
	}
	if d.FetchTime == "" {
		t.Error("FetchTime is empty")
	}
}

func TestReadDetails_LegacyFinalURL(t *testing.T) {
	d := ReadDetails([]byte(`{"finalUrl": "https://legacy.example.com/"}`))
	if d.FinalURL != "https://legacy.example.com/" {
		t.Errorf("FinalURL = %q, want https://legacy.example.com/", d.FinalURL)
	}
}
