package collector

import (
	"context"
	"log"
	"math/rand"
	"time"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/services/verifier"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/stats"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

// Sink receives collected readings.
type Sink interface {
	Push(ctx context.Context, r verifier.Reading) error
}

type Config struct {
	Index  int
	Period time.Duration
	Stats  *stats.Statistic
	Logger *log.Logger
	// Rand and Now default to a time seeded source and time.Now.
	Rand *rand.Rand
	Now  func() time.Time
}

type entry struct {
	object *entities.TrackedObject
	reader *Reader
}

type group struct {
	deviceID int
	entries  []*entry
}

// Collector polls the objects of the devices sharing one port. Devices are
// polled in the order they were added; objects of a device in queue order.
type Collector struct {
	cfg      Config
	out      Sink
	log      *log.Logger
	rnd      *rand.Rand
	now      func() time.Time
	groups   []*group
	byDevice map[int]*group
}

func New(out Sink, cfg Config) *Collector {
	if cfg.Period <= 0 {
		cfg.Period = 10 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Collector{
		cfg:      cfg,
		out:      out,
		log:      cfg.Logger,
		rnd:      cfg.Rand,
		now:      cfg.Now,
		byDevice: map[int]*group{},
	}
}

// Add schedules o, read with r.
func (c *Collector) Add(o *entities.TrackedObject, r *Reader) {
	g, ok := c.byDevice[o.DeviceID]
	if !ok {
		g = &group{deviceID: o.DeviceID}
		c.byDevice[o.DeviceID] = g
		c.groups = append(c.groups, g)
	}
	g.entries = append(g.entries, &entry{object: o, reader: r})
}

// Len is the number of scheduled objects.
func (c *Collector) Len() int {
	n := 0
	for _, g := range c.groups {
		n += len(g.entries)
	}
	return n
}

// Devices lists the devices in polling order.
func (c *Collector) Devices() []int {
	out := make([]int, len(c.groups))
	for i, g := range c.groups {
		out[i] = g.deviceID
	}
	return out
}

func (c *Collector) Start(ctx context.Context) {
	c.log.Printf("collector#%d: %d objects on devices %v", c.cfg.Index, c.Len(), c.Devices())
	ticker := time.NewTicker(c.cfg.Period)
	defer ticker.Stop()
	for {
		c.Cycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Cycle polls every due object once. When an object of a device does not
// answer and other devices share this collector, the rest of that device
// is skipped and its queue is shuffled.
func (c *Collector) Cycle(ctx context.Context) {
	skipEnabled := len(c.groups) > 1
	for _, g := range c.groups {
		faulted := false
		for _, e := range g.entries {
			if ctx.Err() != nil {
				return
			}
			if !e.object.Poll.Due(c.now()) {
				continue
			}
			if !c.poll(ctx, g.deviceID, e) && skipEnabled {
				faulted = true
				break
			}
		}
		if faulted {
			c.cfg.Stats.AddNotResponding(g.deviceID)
			c.log.Printf("collector#%d: device %d not responding, skipped", c.cfg.Index, g.deviceID)
			c.rnd.Shuffle(len(g.entries), func(i, j int) {
				g.entries[i], g.entries[j] = g.entries[j], g.entries[i]
			})
		} else {
			c.cfg.Stats.RemoveNotResponding(g.deviceID)
		}
	}
}

// poll reads one object and hands the reading to the sink. It reports
// whether the device answered.
func (c *Collector) poll(ctx context.Context, deviceID int, e *entry) bool {
	t0 := time.Now()
	o := e.object
	o.Poll.Advance(c.rnd)

	data := e.reader.Read(ctx, deviceID, o.Type, o.ID)
	ok := len(data) > 0
	if !ok {
		c.log.Printf("collector#%d: no data from device %d for %s", c.cfg.Index, deviceID, o.Reference)
		data = bacnet.PropertyMap{bacnet.PropFault: true}
	} else if pv, has := data[bacnet.PropPresentValue]; has {
		data[bacnet.PropPresentValue] = bacnet.CoercePresentValue(o.Type.Category(), pv)
	}
	o.Poll.LastSuccess = c.now()

	if err := c.out.Push(ctx, verifier.Reading{Object: o, Data: data, At: o.Poll.LastSuccess}); err != nil {
		c.log.Printf("collector#%d: hand over %s: %v", c.cfg.Index, o.Reference, err)
	}
	c.cfg.Stats.Observe(stats.Read, 1, time.Since(t0))
	return ok
}
