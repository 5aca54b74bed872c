package notifier

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/messages"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/stats"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/broker"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/dedup"
)

// DefaultTopic is the topic template of transition events.
const DefaultTopic = "event/transition/{device}/{object}"

type Config struct {
	QueueSize int
	Disabled  bool
	// Topic may use {device}, {object}, {type} and {transition}.
	Topic    string
	DedupTTL time.Duration
	Stats    *stats.Statistic
	Logger   *log.Logger
	Now      func() time.Time
}

type job struct {
	object     *entities.TrackedObject
	transition entities.Transition
	at         time.Time
}

// Notifier publishes the transitions of objects to the recipients of their
// notification class. Events of one fault or alarm episode share an
// incident id from the opening transition until the resolving one.
type Notifier struct {
	cfg   Config
	net   *entities.Network
	pub   broker.IPublisher
	in    chan job
	dedup *dedup.Deduper
	log   *log.Logger

	mu   sync.Mutex
	open map[string]string // group|opening transition|reference -> incident id
}

func New(net *entities.Network, pub broker.IPublisher, cfg Config) *Notifier {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Notifier{
		cfg:   cfg,
		net:   net,
		pub:   pub,
		in:    make(chan job, cfg.QueueSize),
		dedup: dedup.New(cfg.DedupTTL, 10000).WithClock(cfg.Now),
		log:   cfg.Logger,
		open:  map[string]string{},
	}
}

// PushTransition queues t for o, blocking while the queue is full.
func (n *Notifier) PushTransition(ctx context.Context, o *entities.TrackedObject, t entities.Transition) error {
	if n.cfg.Disabled {
		return nil
	}
	select {
	case n.in <- job{object: o, transition: t, at: n.cfg.Now()}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (n *Notifier) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-n.in:
			n.Notify(j.object, j.transition, j.at)
		}
	}
}

// OpenIncidents is the number of episodes waiting for their resolve.
func (n *Notifier) OpenIncidents() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.open)
}

// Notify publishes t to every subscribed recipient and returns the number
// of published events.
func (n *Notifier) Notify(o *entities.TrackedObject, t entities.Transition, at time.Time) int {
	t0 := time.Now()
	nc, ok := n.net.NotificationClassOf(o)
	if !ok {
		return 0
	}
	if !o.NotificationAllowed(t) {
		return 0
	}
	topic := n.topic(o, t)
	sent := 0
	for _, r := range nc.RecipientsFor(t) {
		incident, ok := n.incident(r.Group, o.Reference, t)
		if !ok {
			if t.IsResolve() {
				n.log.Printf("notifier: %s %s for %s has no open incident, skipped", o.Reference, t, r.Group)
			}
			continue
		}
		ev := messages.NewTransitionEvent(o, t, r.Group, at)
		ev.IncidentID = incident
		ev.Priority = nc.PriorityFor(t)
		payload, err := json.Marshal(ev)
		if err != nil {
			n.log.Printf("notifier: encode event of %s: %v", o.Reference, err)
			continue
		}
		if err := n.pub.Publish(topic, payload); err != nil {
			n.log.Printf("notifier: publish %s %s for %s: %v", o.Reference, t, r.Group, err)
			continue
		}
		sent++
	}
	if sent > 0 {
		n.cfg.Stats.Observe(stats.Notified, sent, time.Since(t0))
	}
	return sent
}

// incident returns the incident id the event of t belongs to and whether
// the event is published. An opening transition starts an incident; a
// repeat of it while the incident is open is dropped within the dedup TTL.
// A resolving transition closes the incident and is dropped when none is
// open. ToNormal carries no incident.
func (n *Notifier) incident(group, reference string, t entities.Transition) (string, bool) {
	if t == entities.ToNormal {
		return "", true
	}
	key := group + "|" + t.Opening().String() + "|" + reference
	n.mu.Lock()
	defer n.mu.Unlock()
	id, open := n.open[key]
	switch {
	case t.IsResolve():
		if !open {
			return "", false
		}
		delete(n.open, key)
		n.dedup.Forget(id + "|" + t.Opening().String())
		return id, true
	case open:
		return id, n.dedup.First(id + "|" + t.String())
	}
	id = uuid.NewString()
	n.open[key] = id
	n.dedup.First(id + "|" + t.String())
	return id, true
}

func (n *Notifier) topic(o *entities.TrackedObject, t entities.Transition) string {
	return strings.NewReplacer(
		"{device}", strconv.Itoa(o.DeviceID),
		"{object}", strconv.Itoa(o.ID),
		"{type}", o.Type.String(),
		"{transition}", strings.ToLower(t.String()),
	).Replace(n.cfg.Topic)
}
