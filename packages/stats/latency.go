package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Histogram bounds in microseconds: 1us to 60s, 3 significant digits.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
	sigFigs      = 3
)

// Latency records request durations for a run.
type Latency struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
}

// Summary is a point-in-time view of recorded latencies.
type Summary struct {
	Count int64         `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P95   time.Duration `json:"p95"`
	P99   time.Duration `json:"p99"`
}

func NewLatency() *Latency {
	return &Latency{histogram: hdrhistogram.New(minLatencyUs, maxLatencyUs, sigFigs)}
}

// Record adds one duration, clamped to the histogram range.
func (l *Latency) Record(d time.Duration) {
	us := d.Microseconds()
	if us < minLatencyUs {
		us = minLatencyUs
	}
	if us > maxLatencyUs {
		us = maxLatencyUs
	}

	l.mu.Lock()
	_ = l.histogram.RecordValue(us)
	l.mu.Unlock()
}

func (l *Latency) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()

	h := l.histogram
	if h.TotalCount() == 0 {
		return Summary{}
	}
	return Summary{
		Count: h.TotalCount(),
		Min:   usToDuration(h.Min()),
		Max:   usToDuration(h.Max()),
		Mean:  time.Duration(h.Mean() * float64(time.Microsecond)),
		P50:   usToDuration(h.ValueAtQuantile(50)),
		P95:   usToDuration(h.ValueAtQuantile(95)),
		P99:   usToDuration(h.ValueAtQuantile(99)),
	}
}

func usToDuration(us int64) time.Duration {
	return time.Duration(us) * time.Microsecond
}
