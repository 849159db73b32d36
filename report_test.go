package nbdbench

import (
	"bytes"
	"strings"
	"testing"

	"pkt.systems/nbdbench/internal/bencher"
)

func resultFor(d Driver, elapsed ...float64) RunResult {
	r := RunResult{Config: testCase(d)}
	labels := []string{
		"linux_kernel_source_extraction",
		"sparse_file_creation",
		"write_big_zeroes",
	}
	var total float64
	for i, e := range elapsed {
		r.Samples = append(r.Samples, bencher.Sample{Label: labels[i%len(labels)], Elapsed: e})
		total += e
	}
	r.Samples = append(r.Samples, bencher.Sample{Label: OverallLabel, Elapsed: total})
	r.Summarize()
	return r
}

func TestCompareDimensionGroupsByDriver(t *testing.T) {
	results := []RunResult{
		resultFor(DriverSlateDBNBD, 2.0, 8.0),
		resultFor(DriverZeroFS, 4.0, 4.0),
	}
	summaries, ok := CompareDimension(results, "driver", OverallLabel)
	if !ok {
		t.Fatalf("driver dimension should vary")
	}
	if len(summaries) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(summaries))
	}
	// Sorted by value: slatedb-nbd before zerofs.
	for _, ds := range summaries {
		if ds.Runs != 1 {
			t.Fatalf("group %s runs = %d, want 1", ds.Value, ds.Runs)
		}
		if ds.Summary.GeometricMean == nil {
			t.Fatalf("group %s missing geometric mean", ds.Value)
		}
		if got := *ds.Summary.GeometricMean; got < 3.99 || got > 4.01 {
			t.Fatalf("group %s geometric mean = %v, want 4.0", ds.Value, got)
		}
	}
	if summaries[0].Value != string(DriverSlateDBNBD) || summaries[1].Value != string(DriverZeroFS) {
		t.Fatalf("groups out of order: %v, %v", summaries[0].Value, summaries[1].Value)
	}
}

func TestCompareDimensionSkipsUniformDimension(t *testing.T) {
	results := []RunResult{
		resultFor(DriverZeroFS, 1.0),
		resultFor(DriverZeroFS, 2.0),
	}
	if _, ok := CompareDimension(results, "driver", OverallLabel); ok {
		t.Fatalf("uniform dimension should not produce a comparison")
	}
}

func TestCompareDimensionExcludesOverall(t *testing.T) {
	// If the overall sample leaked into the aggregate the geomean of
	// {2, 8, 10} would be ~5.43 rather than 4.
	results := []RunResult{
		resultFor(DriverSlateDBNBD, 2.0, 8.0),
		resultFor(DriverFolder, 4.0),
	}
	summaries, ok := CompareDimension(results, "driver", OverallLabel)
	if !ok {
		t.Fatalf("driver dimension should vary")
	}
	for _, ds := range summaries {
		if got := *ds.Summary.GeometricMean; got < 3.99 || got > 4.01 {
			t.Fatalf("group %s geometric mean = %v, want 4.0", ds.Value, got)
		}
	}
}

func TestSummarizeCountsNonPositiveSamples(t *testing.T) {
	r := RunResult{Config: testCase(DriverZeroFS)}
	r.Samples = []bencher.Sample{
		{Label: "linux_kernel_source_extraction", Elapsed: 4.0},
		{Label: "sparse_file_creation", Elapsed: 0},
		{Label: "write_big_zeroes", Elapsed: -1.5},
	}
	if skipped := r.Summarize(); skipped != 2 {
		t.Fatalf("skipped = %d, want 2", skipped)
	}
	if got := *r.Summary.GeometricMean; got < 3.99 || got > 4.01 {
		t.Fatalf("geometric mean = %v, want 4.0", got)
	}
}

func TestCompareDimensionCountsNonPositiveSamples(t *testing.T) {
	results := []RunResult{
		resultFor(DriverSlateDBNBD, 2.0, 8.0),
		resultFor(DriverZeroFS, 4.0),
	}
	results[1].Samples = append(results[1].Samples,
		bencher.Sample{Label: "sparse_file_creation", Elapsed: 0})
	summaries, ok := CompareDimension(results, "driver", OverallLabel)
	if !ok {
		t.Fatalf("driver dimension should vary")
	}
	for _, ds := range summaries {
		want := 0
		if ds.Value == string(DriverZeroFS) {
			want = 1
		}
		if ds.Skipped != want {
			t.Fatalf("group %s skipped = %d, want %d", ds.Value, ds.Skipped, want)
		}
	}
}

func TestSummarizeToleratesFailedRun(t *testing.T) {
	r := RunResult{Config: testCase(DriverZeroFS), Failed: true, Error: "boom"}
	r.Samples = []bencher.Sample{{Label: "linux_kernel_source_extraction", Elapsed: 3.5}}
	r.Summarize()
	if r.Summary == nil || r.Summary.GeometricMean == nil {
		t.Fatalf("partial run should still summarise its samples")
	}
}

func TestReporterWrite(t *testing.T) {
	var buf bytes.Buffer
	results := []RunResult{
		resultFor(DriverSlateDBNBD, 2.0, 8.0),
		resultFor(DriverZeroFS, 4.0, 4.0),
	}
	results[0].BucketBytes = 1 << 20
	if err := (Reporter{Out: &buf}).Write(results); err != nil {
		t.Fatalf("write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"run 1 [ok]",
		"run 2 [ok]",
		"comparison by driver:",
		"slatedb-nbd",
		"zerofs",
		"1.0 MiB",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("report missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "comparison by connections") {
		t.Fatalf("uniform dimension leaked into report:\n%s", out)
	}
}

func TestReporterWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	results := []RunResult{resultFor(DriverZeroFS, 1.0, 2.0)}
	if err := (Reporter{Out: &buf}).WriteJSON(results); err != nil {
		t.Fatalf("write json: %v", err)
	}
	for _, want := range []string{`"driver": "zerofs"`, `"tests"`, `"geometric_mean"`} {
		if !strings.Contains(buf.String(), want) {
			t.Fatalf("json report missing %s:\n%s", want, buf.String())
		}
	}
}
