// Package stats provides constant-memory running statistics over streamed
// samples. Running implements Welford's online mean/variance update;
// Geometric wraps it in log-space so strictly positive, multiplicatively
// distributed samples (benchmark timings) can be summarised by geometric
// mean and geometric standard deviation.
package stats

import (
	"errors"
	"math"
)

// ErrNonPositive is returned when a non-positive value is pushed into a
// Geometric accumulator. The natural logarithm is undefined there; callers
// must not feed zero or negative timings.
var ErrNonPositive = errors.New("stats: geometric push requires a positive value")

// Running accumulates count, mean and sum of squared deviations in a single
// pass using Welford's update. The zero value is ready to use. It is not
// safe for concurrent use; each accumulator has a single owner.
type Running struct {
	count    int
	mean     float64
	sumSqDev float64
}

// Push ingests one observation.
func (r *Running) Push(x float64) {
	r.count++
	if r.count == 1 {
		r.mean = x
		return
	}
	delta := x - r.mean
	r.mean += delta / float64(r.count)
	r.sumSqDev += delta * (x - r.mean)
}

// Count returns the number of observations pushed so far.
func (r *Running) Count() int { return r.count }

// Mean returns the arithmetic mean of all pushed values. The second return
// is false until at least one value has been pushed.
func (r *Running) Mean() (float64, bool) {
	if r.count == 0 {
		return 0, false
	}
	return r.mean, true
}

// Variance returns the unbiased sample variance, or 0 when fewer than two
// values have been pushed.
func (r *Running) Variance() float64 {
	if r.count < 2 {
		return 0
	}
	return r.sumSqDev / float64(r.count-1)
}

// StdDev returns the non-negative square root of Variance.
func (r *Running) StdDev() float64 {
	return math.Sqrt(r.Variance())
}

// Geometric reports geometric mean and geometric standard deviation by
// pushing logarithms into an inner Running accumulator it exclusively owns.
// The zero value is ready to use.
type Geometric struct {
	inner Running
}

// Push ingests one strictly positive observation. A non-positive x yields
// ErrNonPositive and leaves the accumulated state untouched.
func (g *Geometric) Push(x float64) error {
	if x <= 0 {
		return ErrNonPositive
	}
	g.inner.Push(math.Log(x))
	return nil
}

// Count returns the number of accepted observations.
func (g *Geometric) Count() int { return g.inner.Count() }

// Mean returns the geometric mean exp(mean(ln x)). The second return is
// false until at least one value has been pushed.
func (g *Geometric) Mean() (float64, bool) {
	m, ok := g.inner.Mean()
	if !ok {
		return 0, false
	}
	return math.Exp(m), true
}

// StdDev returns the geometric standard deviation exp(stddev(ln x)). With
// fewer than two observations it is exp(0) == 1.
func (g *Geometric) StdDev() float64 {
	return math.Exp(g.inner.StdDev())
}

// Summary is the derived, read-only view of a Geometric accumulator.
// GeometricMean is nil when no samples were pushed.
type Summary struct {
	GeometricMean   *float64 `json:"geometric_mean"`
	GeometricStdDev float64  `json:"geometric_standard_deviation"`
}

// Summarize captures the current state of g.
func Summarize(g *Geometric) Summary {
	s := Summary{GeometricStdDev: g.StdDev()}
	if m, ok := g.Mean(); ok {
		s.GeometricMean = &m
	}
	return s
}
