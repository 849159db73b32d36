package nbdbench

import (
	"pkt.systems/nbdbench/internal/bencher"
	"pkt.systems/nbdbench/internal/hostinfo"
	"pkt.systems/nbdbench/internal/stats"
)

// RunResult is the outcome of one matrix case. Failed runs keep whatever
// samples were recorded before the failure so partial timings survive into
// the report.
type RunResult struct {
	// ID uniquely identifies the run across result files.
	ID          string           `json:"id"`
	Config      Case             `json:"config"`
	Samples     []bencher.Sample `json:"tests"`
	Summary     *stats.Summary   `json:"summary,omitempty"`
	Host        *hostinfo.Info   `json:"host,omitempty"`
	BucketBytes int64            `json:"bucket_bytes,omitempty"`
	Failed      bool             `json:"failed,omitempty"`
	Error       string           `json:"error,omitempty"`
}

// OverallLabel is the wall-clock sample covering the whole run. It is a sum
// of the step samples, so per-run and per-dimension statistics exclude it to
// avoid double counting.
const OverallLabel = "overall_test_duration"

// Summarize computes the geometric summary over the run's step samples,
// skipping the overall duration. A non-positive timing cannot enter a
// log-space mean; it is skipped and counted so the caller can report it,
// since a timed step can never legitimately take zero seconds.
func (r *RunResult) Summarize() (skipped int) {
	var g stats.Geometric
	for _, s := range r.Samples {
		if s.Label == OverallLabel {
			continue
		}
		if err := g.Push(s.Elapsed); err != nil {
			skipped++
		}
	}
	summary := stats.Summarize(&g)
	r.Summary = &summary
	return skipped
}

// Sample returns the named sample and whether it was recorded.
func (r *RunResult) Sample(label string) (bencher.Sample, bool) {
	for _, s := range r.Samples {
		if s.Label == label {
			return s, true
		}
	}
	return bencher.Sample{}, false
}
