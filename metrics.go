package corosched

import (
	"sync"
)

// pSquareQuantile implements the P-Square algorithm for streaming quantile
// estimation in O(1) per observation, without storing the observation
// history.
//
// Reference: Jain, R. and Chlamtac, I. (1985). "The P^2 Algorithm for
// Dynamic Calculation of Quantiles and Histograms Without Storing
// Observations". Communications of the ACM, 28(10), pp. 1076-1085.
//
// Adapted verbatim from eventloop/psquare.go, which is itself not
// thread-safe; latencySample wraps it with a mutex since scheduler
// observations arrive concurrently from many worker goroutines, unlike
// the single-threaded loop it was originally written for.
type pSquareQuantile struct {
	p           float64
	q           [5]float64
	n           [5]int
	np          [5]float64
	dn          [5]float64
	initialized bool
	count       int
	initBuffer  [5]float64
}

func newPSquareQuantile(p float64) *pSquareQuantile {
	if p < 0 {
		p = 0
	}
	if p > 1 {
		p = 1
	}
	return &pSquareQuantile{
		p:  p,
		dn: [5]float64{0, p / 2, p, (1 + p) / 2, 1},
	}
}

func (ps *pSquareQuantile) Update(x float64) {
	ps.count++

	if ps.count <= 5 {
		ps.initBuffer[ps.count-1] = x
		if ps.count == 5 {
			ps.initialize()
		}
		return
	}

	var k int
	if x < ps.q[0] {
		ps.q[0] = x
		k = 0
	} else if x >= ps.q[4] {
		ps.q[4] = x
		k = 3
	} else {
		for k = 0; k < 4; k++ {
			if ps.q[k] <= x && x < ps.q[k+1] {
				break
			}
		}
	}

	for i := k + 1; i < 5; i++ {
		ps.n[i]++
	}

	for i := 0; i < 5; i++ {
		ps.np[i] += ps.dn[i]
	}

	for i := 1; i < 4; i++ {
		d := ps.np[i] - float64(ps.n[i])
		if (d >= 1 && ps.n[i+1]-ps.n[i] > 1) || (d <= -1 && ps.n[i-1]-ps.n[i] < -1) {
			sign := 1
			if d < 0 {
				sign = -1
			}

			qPrime := ps.parabolic(i, sign)
			if ps.q[i-1] < qPrime && qPrime < ps.q[i+1] {
				ps.q[i] = qPrime
			} else {
				ps.q[i] = ps.linear(i, sign)
			}
			ps.n[i] += sign
		}
	}
}

func (ps *pSquareQuantile) initialize() {
	for i := 1; i < 5; i++ {
		key := ps.initBuffer[i]
		j := i - 1
		for j >= 0 && ps.initBuffer[j] > key {
			ps.initBuffer[j+1] = ps.initBuffer[j]
			j--
		}
		ps.initBuffer[j+1] = key
	}

	for i := 0; i < 5; i++ {
		ps.q[i] = ps.initBuffer[i]
		ps.n[i] = i
	}

	ps.np = [5]float64{0, 2 * ps.p, 4 * ps.p, 2 + 2*ps.p, 4}
	ps.initialized = true
}

func (ps *pSquareQuantile) parabolic(i, d int) float64 {
	df := float64(d)
	ni := float64(ps.n[i])
	niPrev := float64(ps.n[i-1])
	niNext := float64(ps.n[i+1])

	term1 := df / (niNext - niPrev)
	term2 := (ni - niPrev + df) * (ps.q[i+1] - ps.q[i]) / (niNext - ni)
	term3 := (niNext - ni - df) * (ps.q[i] - ps.q[i-1]) / (ni - niPrev)

	return ps.q[i] + term1*(term2+term3)
}

func (ps *pSquareQuantile) linear(i, d int) float64 {
	if d == 1 {
		return ps.q[i] + (ps.q[i+1]-ps.q[i])/float64(ps.n[i+1]-ps.n[i])
	}
	return ps.q[i] - (ps.q[i]-ps.q[i-1])/float64(ps.n[i]-ps.n[i-1])
}

func (ps *pSquareQuantile) Quantile() float64 {
	if ps.count == 0 {
		return 0
	}
	if ps.count < 5 {
		sorted := make([]float64, ps.count)
		copy(sorted, ps.initBuffer[:ps.count])
		for i := 1; i < ps.count; i++ {
			key := sorted[i]
			j := i - 1
			for j >= 0 && sorted[j] > key {
				sorted[j+1] = sorted[j]
				j--
			}
			sorted[j+1] = key
		}
		index := int(float64(ps.count-1) * ps.p)
		if index >= ps.count {
			index = ps.count - 1
		}
		return sorted[index]
	}
	return ps.q[2]
}

func (ps *pSquareQuantile) Count() int {
	return ps.count
}

// latencySample is a single named quantile series this scheduler tracks:
// one for sleep_for wake jitter, one for submission-ring latency (the
// elapsed time between Push and the matching Pop observing it).
type latencySample struct {
	mu  sync.Mutex
	p50 *pSquareQuantile
	p99 *pSquareQuantile
	sum float64
	n   int
}

func newLatencySample() *latencySample {
	return &latencySample{
		p50: newPSquareQuantile(0.50),
		p99: newPSquareQuantile(0.99),
	}
}

func (l *latencySample) observe(seconds float64) {
	l.mu.Lock()
	l.p50.Update(seconds)
	l.p99.Update(seconds)
	l.sum += seconds
	l.n++
	l.mu.Unlock()
}

func (l *latencySample) snapshot() LatencyStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	stats := LatencyStats{Count: l.n, P50: l.p50.Quantile(), P99: l.p99.Quantile()}
	if l.n > 0 {
		stats.Mean = l.sum / float64(l.n)
	}
	return stats
}

// LatencyStats is a point-in-time snapshot of one tracked latency series.
type LatencyStats struct {
	Count int
	Mean  float64
	P50   float64
	P99   float64
}

// Metrics is a point-in-time snapshot of scheduler-wide observability data,
// returned by Scheduler.Metrics. It reports two distributions: how close
// sleep_for wakes land to their requested deadline, and how long a
// submitted task waits in the main ring before a worker observes it.
type Metrics struct {
	SleepJitter       LatencyStats
	SubmissionLag     LatencyStats
	PendingTasks      int64
	MainRingDepth     int
	TimedRingDepth    int
	TimersOutstanding int
}

type metricsCollector struct {
	sleepJitter   *latencySample
	submissionLag *latencySample
}

func newMetricsCollector() *metricsCollector {
	return &metricsCollector{
		sleepJitter:   newLatencySample(),
		submissionLag: newLatencySample(),
	}
}
