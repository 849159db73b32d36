// Package bencher records wall-clock timings for labeled units of work.
package bencher

import (
	"time"

	"pkt.systems/pslog"
)

// Sample is one recorded timing. Elapsed is in seconds. Samples are never
// mutated after creation.
type Sample struct {
	Label   string  `json:"label"`
	Elapsed float64 `json:"elapsed"`
}

// Bencher owns an ordered sequence of samples for one benchmark run. It is
// single-threaded by construction; the orchestrating goroutine is the only
// writer.
type Bencher struct {
	logger  pslog.Logger
	samples []Sample
}

// New returns a Bencher logging each completed measurement through logger.
// A nil logger disables logging.
func New(logger pslog.Logger) *Bencher {
	if logger == nil {
		logger = pslog.NoopLogger()
	}
	return &Bencher{logger: logger}
}

// Push records an externally measured timing.
func (b *Bencher) Push(label string, elapsed float64) {
	b.samples = append(b.samples, Sample{Label: label, Elapsed: elapsed})
	b.logger.Info("bench.sample", "label", label, "elapsed_seconds", elapsed)
}

// Measure times fn and records one sample under label. The sample is
// recorded even when fn returns an error, so a failed step still contributes
// the time it consumed before failing. The error is returned unchanged.
func (b *Bencher) Measure(label string, fn func() error) error {
	start := time.Now()
	err := fn()
	b.Push(label, time.Since(start).Seconds())
	return err
}

// Samples returns the recorded samples in recording order. The returned
// slice is the Bencher's own backing store; callers treat it as read-only.
func (b *Bencher) Samples() []Sample {
	return b.samples
}
