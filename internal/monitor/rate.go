package monitor

import (
	"sort"
	"time"
)

// DefaultMeterBatch is how many events make up one rate measurement.
const DefaultMeterBatch = 1000

// Meter measures controller event throughput in fixed-size batches. It backs
// the calibrate run mode: wiggle both sticks as fast as possible and the
// meter reports how many events per second the controller delivers.
//
// Meter is not synchronized; it is fed from a single goroutine.
type Meter struct {
	batch   int
	count   int
	started time.Time
	rates   []float64
}

// NewMeter returns a meter measuring over batches of the given size. A size
// of 0 selects DefaultMeterBatch.
func NewMeter(batch int) *Meter {
	if batch <= 0 {
		batch = DefaultMeterBatch
	}
	return &Meter{batch: batch}
}

// Tick records one event at the given time. Each time a batch completes it
// returns that batch's events-per-second rate and true.
func (m *Meter) Tick(now time.Time) (float64, bool) {
	if m.count == 0 {
		m.started = now
	}
	m.count++
	if m.count < m.batch {
		return 0, false
	}
	elapsed := now.Sub(m.started).Seconds()
	m.count = 0
	if elapsed <= 0 {
		return 0, false
	}
	rate := float64(m.batch) / elapsed
	m.rates = append(m.rates, rate)
	return rate, true
}

// Batches returns how many complete batches have been measured.
func (m *Meter) Batches() int {
	return len(m.rates)
}

// Summary reports the maximum and the mean of the best half of the measured
// batch rates, discarding the slower half as warm-up. ok is false until at
// least two batches completed.
func (m *Meter) Summary() (max, avg float64, ok bool) {
	if len(m.rates) < 2 {
		return 0, 0, false
	}
	sorted := append([]float64(nil), m.rates...)
	sort.Float64s(sorted)
	best := sorted[len(sorted)/2:]
	var sum float64
	for _, r := range best {
		sum += r
	}
	return best[len(best)-1], sum / float64(len(best)), true
}
