package transmitter

import (
	"container/list"
	"context"
	"log"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/messages"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/stats"
)

// Putter sends object updates of one device to the server.
type Putter interface {
	PutUpdates(ctx context.Context, deviceID int, updates []messages.Update) error
}

type Config struct {
	Period     time.Duration
	MaxBatch   int
	MaxPending int
	Disabled   bool
	Stats      *stats.Statistic
	Logger     *log.Logger
}

type pending struct {
	deviceID int
	update   messages.Update
}

// Transmitter buffers the latest update of every object and sends them in
// per-device batches.
type Transmitter struct {
	api Putter
	cfg Config
	log *log.Logger

	mu    sync.Mutex
	queue *list.List               // of *pending, oldest first
	index map[string]*list.Element // reference -> queue element
}

func New(api Putter, cfg Config) *Transmitter {
	if cfg.Period <= 0 {
		cfg.Period = 100 * time.Millisecond
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = 10
	}
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = 10000
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Transmitter{
		api:   api,
		cfg:   cfg,
		log:   cfg.Logger,
		queue: list.New(),
		index: map[string]*list.Element{},
	}
}

// Push queues the current state of o. A newer update of the same object
// replaces the queued one; when the queue is full the oldest update is
// dropped.
func (t *Transmitter) Push(o *entities.TrackedObject) {
	if t.cfg.Disabled {
		return
	}
	t.Enqueue(o.DeviceID, messages.NewUpdate(o))
}

func (t *Transmitter) Enqueue(deviceID int, u messages.Update) {
	ref := u.Reference()
	t.mu.Lock()
	defer t.mu.Unlock()
	if el, ok := t.index[ref]; ok {
		el.Value.(*pending).update = u
		return
	}
	if t.queue.Len() >= t.cfg.MaxPending {
		oldest := t.queue.Front()
		dropped := t.queue.Remove(oldest).(*pending)
		delete(t.index, dropped.update.Reference())
		t.log.Printf("transmitter: queue full, dropped update of %s", dropped.update.Reference())
	}
	t.index[ref] = t.queue.PushBack(&pending{deviceID: deviceID, update: u})
}

// Pending returns the number of queued updates.
func (t *Transmitter) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.queue.Len()
}

func (t *Transmitter) Start(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.Period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			t.Flush(ctx)
		}
	}
}

// Flush sends everything queued, device by device.
func (t *Transmitter) Flush(ctx context.Context) {
	for _, deviceID := range t.devices() {
		for {
			batch := t.take(deviceID, t.cfg.MaxBatch)
			if len(batch) == 0 {
				break
			}
			t.send(ctx, deviceID, batch)
		}
	}
}

// devices lists the devices with queued updates in queue order.
func (t *Transmitter) devices() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	seen := map[int]bool{}
	var out []int
	for el := t.queue.Front(); el != nil; el = el.Next() {
		id := el.Value.(*pending).deviceID
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// take removes up to limit updates of deviceID from the queue.
func (t *Transmitter) take(deviceID, limit int) []messages.Update {
	t.mu.Lock()
	defer t.mu.Unlock()
	var batch []messages.Update
	for el := t.queue.Front(); el != nil && len(batch) < limit; {
		next := el.Next()
		p := el.Value.(*pending)
		if p.deviceID == deviceID {
			batch = append(batch, p.update)
			t.queue.Remove(el)
			delete(t.index, p.update.Reference())
		}
		el = next
	}
	return batch
}

// send puts a batch; when the batch is refused every update is retried on
// its own and the ones that still fail are dropped.
func (t *Transmitter) send(ctx context.Context, deviceID int, batch []messages.Update) {
	t0 := time.Now()
	err := t.api.PutUpdates(ctx, deviceID, batch)
	if err == nil {
		t.cfg.Stats.Observe(stats.Sent, len(batch), time.Since(t0))
		return
	}
	t.log.Printf("transmitter: device %d batch of %d failed: %v; retrying one by one", deviceID, len(batch), err)
	sent := 0
	for _, u := range batch {
		if err := t.api.PutUpdates(ctx, deviceID, []messages.Update{u}); err != nil {
			t.log.Printf("transmitter: device %d drop update of %s: %v", deviceID, u.Reference(), err)
			continue
		}
		sent++
	}
	t.cfg.Stats.Observe(stats.Sent, sent, time.Since(t0))
}
