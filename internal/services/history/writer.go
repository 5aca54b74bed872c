package history

import (
	"log"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
)

// PointWriter is the part of the influx write API the Writer uses.
type PointWriter interface {
	WritePoint(p *write.Point)
	Errors() <-chan error
	Flush()
}

type Config struct {
	URL       string
	Token     string
	Org       string
	Bucket    string
	BatchSize uint
	// FlushInterval in milliseconds.
	FlushInterval uint
}

// Open connects the non blocking influx write API.
func Open(cfg Config, logger *log.Logger) (influxdb2.Client, *Writer) {
	opts := influxdb2.DefaultOptions()
	if cfg.BatchSize > 0 {
		opts.SetBatchSize(cfg.BatchSize)
	}
	if cfg.FlushInterval > 0 {
		opts.SetFlushInterval(cfg.FlushInterval)
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts)
	return client, NewWriter(client.WriteAPI(cfg.Org, cfg.Bucket), logger)
}

// Writer stores verified readings and transitions and tracks the last
// asynchronous write error for readiness.
type Writer struct {
	api PointWriter
	log *log.Logger

	mu      sync.RWMutex
	lastErr time.Time
	counts  map[string]int64
}

func NewWriter(w PointWriter, logger *log.Logger) *Writer {
	if logger == nil {
		logger = log.Default()
	}
	ww := &Writer{
		api:     w,
		log:     logger,
		lastErr: time.Now().Add(-24 * time.Hour),
		counts:  make(map[string]int64),
	}
	go func() {
		for err := range w.Errors() {
			if err != nil {
				ww.mu.Lock()
				ww.lastErr = time.Now()
				ww.mu.Unlock()
				ww.log.Printf("history: influx write error: %v", err)
			}
		}
	}()
	return ww
}

func (w *Writer) RecordReading(o *entities.TrackedObject, at time.Time) {
	w.write(ReadingPoint(o, at))
}

func (w *Writer) RecordTransition(o *entities.TrackedObject, t entities.Transition, at time.Time) {
	w.write(TransitionPoint(o, t, at))
}

func (w *Writer) write(p *write.Point) {
	if w == nil {
		return
	}
	w.api.WritePoint(p)
	w.mu.Lock()
	w.counts[p.Name()]++
	w.mu.Unlock()
}

func (w *Writer) Flush() {
	if w != nil {
		w.api.Flush()
	}
}

// LastErrorAge is the time since the last write error.
func (w *Writer) LastErrorAge() time.Duration {
	if w == nil {
		return 99999 * time.Hour
	}
	w.mu.RLock()
	t := w.lastErr
	w.mu.RUnlock()
	return time.Since(t)
}

// Count is the number of points written to a measurement.
func (w *Writer) Count(measurement string) int64 {
	if w == nil {
		return 0
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.counts[measurement]
}
