package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"jsonlbatch/internal/engine"
)

func TestFromRunReportDerivesRates(t *testing.T) {
	rep := FromRunReport(&engine.RunReport{
		SkippedCount:   3,
		AttemptedCount: 10,
		SuccessCount:   7,
		FailureCount:   2,
		VoidedCount:    1,
		Duration:       2 * time.Second,
		OutputFile:     "out.jsonl",
		ErrorFile:      "err.jsonl",
	})

	if rep.DurationSecs != 2 {
		t.Fatalf("duration seconds = %v, want 2", rep.DurationSecs)
	}
	if rep.Throughput != 5 {
		t.Fatalf("throughput = %v, want 5 (10 attempted / 2s)", rep.Throughput)
	}
	if rep.SuccessRate != 0.7 {
		t.Fatalf("success rate = %v, want 0.7", rep.SuccessRate)
	}
}

func TestFromRunReportZeroDuration(t *testing.T) {
	rep := FromRunReport(&engine.RunReport{AttemptedCount: 0, Duration: 0})
	if rep.Throughput != 0 {
		t.Fatalf("throughput = %v, want 0 when duration is zero", rep.Throughput)
	}
	if rep.SuccessRate != 0 {
		t.Fatalf("success rate = %v, want 0 when nothing was attempted", rep.SuccessRate)
	}
}

func TestWriteJSONToFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.json")

	rep := FromRunReport(&engine.RunReport{SuccessCount: 1, AttemptedCount: 1, Duration: time.Second})
	if err := rep.WriteJSON(path); err != nil {
		t.Fatalf("WriteJSON: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}

	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if decoded.SuccessCount != 1 {
		t.Fatalf("decoded success count = %d, want 1", decoded.SuccessCount)
	}
}

func TestPrometheusRendersAllCounters(t *testing.T) {
	rep := FromRunReport(&engine.RunReport{
		SkippedCount: 1, AttemptedCount: 2, SuccessCount: 1, FailureCount: 1, VoidedCount: 0,
		Duration: time.Second,
	})
	out := rep.Prometheus()

	for _, metric := range []string{
		"jsonlbatch_skipped_total",
		"jsonlbatch_attempted_total",
		"jsonlbatch_success_total",
		"jsonlbatch_failure_total",
		"jsonlbatch_voided_total",
		"jsonlbatch_duration_seconds",
		"jsonlbatch_throughput_records_per_sec",
		"jsonlbatch_success_rate",
	} {
		if !strings.Contains(out, metric) {
			t.Errorf("prometheus output missing %s:\n%s", metric, out)
		}
	}
}

func TestProgressTracksCounts(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(3, &buf)

	p.RecordSuccess()
	p.RecordFailure()
	p.RecordVoided()
	p.Finish()

	out := buf.String()
	if !strings.Contains(out, "3/3 done") {
		t.Fatalf("expected final progress line to show 3/3 done, got %q", out)
	}
	if !strings.Contains(out, "ok=1") || !strings.Contains(out, "fail=1") || !strings.Contains(out, "void=1") {
		t.Fatalf("expected counters to be reflected in output, got %q", out)
	}
}

func TestProgressNilWriterDiscardsOutput(t *testing.T) {
	p := NewProgress(1, nil)
	p.RecordSuccess()
	p.Finish()
}

// satisfies engine.ProgressReporter at compile time.
var _ engine.ProgressReporter = (*Progress)(nil)
