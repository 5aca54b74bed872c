package verifier

import (
	"context"
	"log"
	"time"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/stats"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

// Reading is the data collected for one object in one poll.
type Reading struct {
	Object *entities.TrackedObject
	Data   bacnet.PropertyMap
	At     time.Time
}

// UpdateSink receives every verified object.
type UpdateSink interface {
	Push(o *entities.TrackedObject)
}

// TransitionSink receives the transitions detected for an object.
type TransitionSink interface {
	PushTransition(ctx context.Context, o *entities.TrackedObject, t entities.Transition) error
}

// HistorySink stores verified readings and transitions.
type HistorySink interface {
	RecordReading(o *entities.TrackedObject, at time.Time)
	RecordTransition(o *entities.TrackedObject, t entities.Transition, at time.Time)
}

type Config struct {
	QueueSize   int
	Disabled    bool
	Transmitter UpdateSink
	Notifier    TransitionSink
	History     HistorySink
	Stats       *stats.Statistic
	Logger      *log.Logger
}

// Verifier owns the status flags of every tracked object. Readings are
// applied one at a time from a bounded queue.
type Verifier struct {
	cfg Config
	in  chan Reading
	log *log.Logger
}

func New(cfg Config) *Verifier {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Verifier{cfg: cfg, in: make(chan Reading, cfg.QueueSize), log: cfg.Logger}
}

// Push queues a reading, blocking while the queue is full.
func (v *Verifier) Push(ctx context.Context, r Reading) error {
	if v.cfg.Disabled {
		return nil
	}
	select {
	case v.in <- r:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (v *Verifier) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-v.in:
			v.Process(ctx, r)
		}
	}
}

// Process evaluates r, updates the object and fans out the result.
func (v *Verifier) Process(ctx context.Context, r Reading) Outcome {
	t0 := time.Now()
	o := r.Object
	if r.At.IsZero() {
		r.At = t0
	}

	out := Evaluate(o.Flags(), o.AlarmConfig(), r.Data)
	if out.DataFault {
		o.SetFlags(out.Flags)
	} else {
		o.Apply(r.Data, out.Flags)
		if v.cfg.History != nil {
			v.cfg.History.RecordReading(o, r.At)
		}
	}

	if v.cfg.Transmitter != nil {
		v.cfg.Transmitter.Push(o)
	}
	for _, t := range out.Transitions {
		v.log.Printf("verifier: %s %s", o.Reference, t)
		if v.cfg.History != nil {
			v.cfg.History.RecordTransition(o, t, r.At)
		}
		if v.cfg.Notifier != nil {
			if err := v.cfg.Notifier.PushTransition(ctx, o, t); err != nil {
				v.log.Printf("verifier: queue transition %s for %s: %v", t, o.Reference, err)
			}
		}
	}
	v.cfg.Stats.Observe(stats.Verified, 1, time.Since(t0))
	return out
}
