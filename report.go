package nbdbench

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"

	"pkt.systems/nbdbench/internal/stats"
)

// CompareDimensions lists the matrix dimensions the report groups by, in
// display order.
var CompareDimensions = []string{
	"driver",
	"compression",
	"connections",
	"wal_enabled",
	"object_store_cache",
	"zfs_sync",
}

// DimensionSummary aggregates every run sharing one value of a dimension.
// Skipped counts samples with a non-positive timing, which cannot enter
// the log-space mean and indicate a broken recording upstream.
type DimensionSummary struct {
	Value   string        `json:"value"`
	Runs    int           `json:"runs"`
	Skipped int           `json:"skipped,omitempty"`
	Summary stats.Summary `json:"summary"`
}

// CompareDimension folds all step samples of all runs into one geometric
// summary per distinct value of the named dimension. Samples whose label is
// in exclude are skipped; callers pass OverallLabel since it double-counts
// the steps. Dimensions with a single distinct value across the result set
// carry no comparison and report ok=false.
func CompareDimension(results []RunResult, dimension string, exclude ...string) ([]DimensionSummary, bool) {
	excluded := make(map[string]bool, len(exclude))
	for _, label := range exclude {
		excluded[label] = true
	}
	groups := make(map[string]*stats.Geometric)
	counts := make(map[string]int)
	skips := make(map[string]int)
	for _, r := range results {
		value := r.Config.DimensionValue(dimension)
		g, ok := groups[value]
		if !ok {
			g = &stats.Geometric{}
			groups[value] = g
		}
		counts[value]++
		for _, s := range r.Samples {
			if excluded[s.Label] {
				continue
			}
			// Non-positive timings cannot enter a log-space mean; count
			// them so the report surfaces the broken recording.
			if err := g.Push(s.Elapsed); err != nil {
				skips[value]++
			}
		}
	}
	if len(groups) < 2 {
		return nil, false
	}
	values := make([]string, 0, len(groups))
	for v := range groups {
		values = append(values, v)
	}
	sort.Strings(values)
	out := make([]DimensionSummary, 0, len(values))
	for _, v := range values {
		out = append(out, DimensionSummary{
			Value:   v,
			Runs:    counts[v],
			Skipped: skips[v],
			Summary: stats.Summarize(groups[v]),
		})
	}
	return out, true
}

// Reporter renders results to Out. ExcludeLabels names the samples left out
// of the aggregated statistics; nil defaults to the overall duration
// wrapper.
type Reporter struct {
	Out           io.Writer
	ExcludeLabels []string
}

func (rp Reporter) excludeLabels() []string {
	if rp.ExcludeLabels == nil {
		return []string{OverallLabel}
	}
	return rp.ExcludeLabels
}

// WriteJSON emits the full result set as indented JSON, one document for
// the whole invocation.
func (rp Reporter) WriteJSON(results []RunResult) error {
	enc := json.NewEncoder(rp.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// WriteRunObject emits one run as a single JSON object, used to stream each
// result as soon as its run completes.
func (rp Reporter) WriteRunObject(r RunResult) error {
	return json.NewEncoder(rp.Out).Encode(r)
}

// WriteRuns prints one line per run: configuration, geometric summary, and
// what the run left in the bucket.
func (rp Reporter) WriteRuns(results []RunResult) error {
	for i, r := range results {
		status := "ok"
		if r.Failed {
			status = "FAILED"
		}
		summary := "no samples"
		if r.Summary != nil && r.Summary.GeometricMean != nil {
			summary = fmt.Sprintf("geomean=%.3fs gstdev=%.3f",
				*r.Summary.GeometricMean, r.Summary.GeometricStdDev)
		}
		bucket := ""
		if r.BucketBytes > 0 {
			bucket = " bucket=" + humanize.IBytes(uint64(r.BucketBytes))
		}
		if _, err := fmt.Fprintf(rp.Out, "run %d [%s] driver=%s compression=%s connections=%s: %s%s\n",
			i+1, status,
			r.Config.DimensionValue("driver"),
			r.Config.DimensionValue("compression"),
			r.Config.DimensionValue("connections"),
			summary, bucket); err != nil {
			return err
		}
		if r.Failed {
			if _, err := fmt.Fprintf(rp.Out, "  error: %s\n", r.Error); err != nil {
				return err
			}
		}
	}
	return nil
}

// WriteComparisons prints the per-dimension aggregates for every dimension
// that actually varied across the result set.
func (rp Reporter) WriteComparisons(results []RunResult) error {
	for _, dim := range CompareDimensions {
		summaries, ok := CompareDimension(results, dim, rp.excludeLabels()...)
		if !ok {
			continue
		}
		if _, err := fmt.Fprintf(rp.Out, "\ncomparison by %s:\n", dim); err != nil {
			return err
		}
		for _, ds := range summaries {
			mean := "n/a"
			if ds.Summary.GeometricMean != nil {
				mean = fmt.Sprintf("%.3fs", *ds.Summary.GeometricMean)
			}
			skipped := ""
			if ds.Skipped > 0 {
				skipped = fmt.Sprintf(" skipped=%d", ds.Skipped)
			}
			if _, err := fmt.Fprintf(rp.Out, "  %-20s geomean=%-10s gstdev=%-8.3f runs=%d%s\n",
				ds.Value, mean, ds.Summary.GeometricStdDev, ds.Runs, skipped); err != nil {
				return err
			}
		}
	}
	return nil
}

// Write renders the complete report: per-run lines followed by the
// dimension comparisons.
func (rp Reporter) Write(results []RunResult) error {
	if err := rp.WriteRuns(results); err != nil {
		return err
	}
	return rp.WriteComparisons(results)
}
