package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"sync/atomic"

	"jsonlbatch/internal/engine"
)

// Report aggregates batch-run statistics for a single invocation.
type Report struct {
	SkippedCount   int     `json:"skipped_count"`
	AttemptedCount int     `json:"attempted_count"`
	SuccessCount   int     `json:"success_count"`
	FailureCount   int     `json:"failure_count"`
	VoidedCount    int     `json:"voided_count"`
	DurationSecs   float64 `json:"duration_seconds"`
	Throughput     float64 `json:"throughput_records_per_sec"`
	SuccessRate    float64 `json:"success_rate"`
	OutputFile     string  `json:"output_file,omitempty"`
	ErrorFile      string  `json:"error_file,omitempty"`
	mu             sync.Mutex
}

// FromRunReport converts an engine.RunReport into a Report ready for
// rendering, deriving throughput and success-rate from the raw counts.
func FromRunReport(r *engine.RunReport) *Report {
	rep := &Report{
		SkippedCount:   r.SkippedCount,
		AttemptedCount: r.AttemptedCount,
		SuccessCount:   r.SuccessCount,
		FailureCount:   r.FailureCount,
		VoidedCount:    r.VoidedCount,
		DurationSecs:   r.Duration.Seconds(),
		OutputFile:     r.OutputFile,
		ErrorFile:      r.ErrorFile,
	}
	if rep.DurationSecs > 0 {
		rep.Throughput = float64(r.AttemptedCount) / rep.DurationSecs
	}
	if r.AttemptedCount > 0 {
		rep.SuccessRate = float64(r.SuccessCount) / float64(r.AttemptedCount)
	}
	return rep
}

// WriteJSON writes the report to a JSON file at the given path, or to
// stdout when path is empty or "-".
func (r *Report) WriteJSON(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var closer io.Closer
	var w io.Writer
	if path == "" || path == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		closer = f
		w = f
	}
	defer func() {
		if closer != nil {
			closer.Close()
		}
	}()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}

// Prometheus renders counters/gauges for metrics scraping.
func (r *Report) Prometheus() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sb := &strings.Builder{}
	fmt.Fprintf(sb, "jsonlbatch_skipped_total %d\n", r.SkippedCount)
	fmt.Fprintf(sb, "jsonlbatch_attempted_total %d\n", r.AttemptedCount)
	fmt.Fprintf(sb, "jsonlbatch_success_total %d\n", r.SuccessCount)
	fmt.Fprintf(sb, "jsonlbatch_failure_total %d\n", r.FailureCount)
	fmt.Fprintf(sb, "jsonlbatch_voided_total %d\n", r.VoidedCount)
	fmt.Fprintf(sb, "jsonlbatch_duration_seconds %.6f\n", r.DurationSecs)
	fmt.Fprintf(sb, "jsonlbatch_throughput_records_per_sec %.6f\n", r.Throughput)
	fmt.Fprintf(sb, "jsonlbatch_success_rate %.6f\n", r.SuccessRate)
	return sb.String()
}

// Progress tracks live counters while a run is in flight and renders them
// to a terminal as a single overwriting line. The counters are updated
// atomically, but rendering is not synchronized: concurrent calls can
// interleave their repaints. The engine's outcome loop calls it from a
// single goroutine.
type Progress struct {
	total    int64
	done     int64
	success  int64
	failure  int64
	voided   int64
	out      io.Writer
	lastLine int
}

// NewProgress returns a Progress reporter for a run of the given total size.
// A nil out disables terminal rendering while counters are still tracked.
func NewProgress(total int, out io.Writer) *Progress {
	if out == nil {
		out = io.Discard
	}
	return &Progress{total: int64(total), out: out}
}

// RecordSuccess, RecordFailure, and RecordVoided update the live counters
// and repaint the progress line.
func (p *Progress) RecordSuccess() { p.record(&p.success) }
func (p *Progress) RecordFailure() { p.record(&p.failure) }
func (p *Progress) RecordVoided()  { p.record(&p.voided) }

func (p *Progress) record(counter *int64) {
	atomic.AddInt64(counter, 1)
	atomic.AddInt64(&p.done, 1)
	p.render()
}

func (p *Progress) render() {
	done := atomic.LoadInt64(&p.done)
	success := atomic.LoadInt64(&p.success)
	failure := atomic.LoadInt64(&p.failure)
	voided := atomic.LoadInt64(&p.voided)

	line := fmt.Sprintf("\r%d/%d done (ok=%d fail=%d void=%d)", done, p.total, success, failure, voided)
	pad := p.lastLine - len(line)
	if pad > 0 {
		line += strings.Repeat(" ", pad)
	}
	p.lastLine = len(line)
	fmt.Fprint(p.out, line)
}

// Finish terminates the progress line with a trailing newline.
func (p *Progress) Finish() {
	fmt.Fprintln(p.out)
}
