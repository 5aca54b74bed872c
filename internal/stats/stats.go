package stats

import (
	"context"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage is a step of the pipeline that reports object counts and durations.
type Stage int

const (
	Read Stage = iota
	Verified
	Sent
	Notified
)

var stageNames = [...]string{Read: "read", Verified: "verified", Sent: "sent", Notified: "notified"}

func (s Stage) String() string { return stageNames[s] }

type total struct {
	count int64
	dur   time.Duration
}

// Statistic counts pipeline work and tracks devices that stopped answering.
// A nil *Statistic is valid and records nothing.
type Statistic struct {
	objects       *prometheus.CounterVec
	durations     *prometheus.HistogramVec
	notResponding prometheus.Gauge

	mu      sync.Mutex
	totals  [len(stageNames)]total
	devices map[int]struct{}
	logger  *log.Logger
}

// New creates the collectors and registers them on reg when reg is not nil.
func New(reg prometheus.Registerer, logger *log.Logger) *Statistic {
	if logger == nil {
		logger = log.Default()
	}
	s := &Statistic{
		objects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bacnet_gateway",
			Name:      "objects_total",
			Help:      "Objects processed per pipeline stage.",
		}, []string{"stage"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "bacnet_gateway",
			Name:      "stage_duration_seconds",
			Help:      "Time spent per pipeline stage call.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
		notResponding: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bacnet_gateway",
			Name:      "devices_not_responding",
			Help:      "Devices skipped on the last polling pass.",
		}),
		devices: map[int]struct{}{},
		logger:  logger,
	}
	if reg != nil {
		reg.MustRegister(s.objects, s.durations, s.notResponding)
	}
	return s
}

// Observe records n objects handled by stage in d.
func (s *Statistic) Observe(stage Stage, n int, d time.Duration) {
	if s == nil {
		return
	}
	s.objects.WithLabelValues(stage.String()).Add(float64(n))
	s.durations.WithLabelValues(stage.String()).Observe(d.Seconds())
	s.mu.Lock()
	s.totals[stage].count += int64(n)
	s.totals[stage].dur += d
	s.mu.Unlock()
}

func (s *Statistic) AddNotResponding(deviceID int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.devices[deviceID] = struct{}{}
	s.notResponding.Set(float64(len(s.devices)))
	s.mu.Unlock()
}

func (s *Statistic) RemoveNotResponding(deviceID int) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.devices, deviceID)
	s.notResponding.Set(float64(len(s.devices)))
	s.mu.Unlock()
}

// NotResponding lists the devices currently marked as not responding.
func (s *Statistic) NotResponding() []int {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.devices))
	for id := range s.devices {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Count returns the number of objects recorded for stage so far.
func (s *Statistic) Count(stage Stage) int64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totals[stage].count
}

// Totals maps every stage name to its count.
func (s *Statistic) Totals() map[string]int64 {
	out := make(map[string]int64, len(stageNames))
	for i, name := range stageNames {
		out[name] = s.Count(Stage(i))
	}
	return out
}

// Run logs a summary every interval until ctx is done.
func (s *Statistic) Run(ctx context.Context, interval time.Duration) {
	if s == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.print()
		}
	}
}

func (s *Statistic) print() {
	s.mu.Lock()
	totals := s.totals
	s.mu.Unlock()
	for i, t := range totals {
		var avg time.Duration
		if t.count > 0 {
			avg = t.dur / time.Duration(t.count)
		}
		s.logger.Printf("stats: %s objects=%d time=%s avg=%s", Stage(i), t.count, t.dur.Round(time.Millisecond), avg)
	}
	if ids := s.NotResponding(); len(ids) > 0 {
		s.logger.Printf("stats: devices not responding: %v", ids)
	}
}
