package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/messages"
)

type published struct {
	topic string
	event messages.TransitionEvent
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	var ev messages.TransitionEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return err
	}
	f.msgs = append(f.msgs, published{topic: topic, event: ev})
	return nil
}

func setup(t *testing.T, eventEnable []any) (*entities.Network, *entities.TrackedObject) {
	t.Helper()
	net := entities.NewNetwork()
	net.AddNotificationClass(&entities.NotificationClass{
		ID: 5,
		Recipients: []entities.Recipient{
			{Group: "operators", Transitions: [3]bool{true, true, false}},
			{Group: "managers", Transitions: [3]bool{false, true, true}},
		},
		Priority: [3]int{10, 20, 30},
	})
	raw := map[string]any{
		"77":  "Site:B1/AHU1.TEMP",
		"846": 200.0,
		"75":  7.0,
		"79":  "analog-input",
		"17":  5.0,
		"351": []any{"too hot", "", ""},
	}
	if eventEnable != nil {
		raw["35"] = eventEnable
	}
	o, err := entities.NewTrackedObject(raw, 0)
	if err != nil {
		t.Fatal(err)
	}
	if err := net.AddObject(o); err != nil {
		t.Fatal(err)
	}
	return net, o
}

func TestNotifyRoutesToRecipients(t *testing.T) {
	net, o := setup(t, nil)
	pub := &fakePublisher{}
	n := New(net, pub, Config{})
	now := time.Now()

	if got := n.Notify(o, entities.ToOffnormal, now); got != 1 {
		t.Fatalf("published %d, want 1", got)
	}
	m := pub.msgs[0]
	if m.topic != "event/transition/200/7" {
		t.Errorf("topic = %q", m.topic)
	}
	ev := m.event
	if ev.Group != "operators" || ev.Priority != 10 || ev.Message != "too hot" || ev.Transition != "TO_OFFNORMAL" {
		t.Errorf("event = %+v", ev)
	}
	if ev.IncidentID == "" || ev.ID == "" {
		t.Errorf("ids not set: %+v", ev)
	}

	if got := n.Notify(o, entities.ToFault, now); got != 2 {
		t.Fatalf("to-fault published %d, want 2", got)
	}
	if msg := pub.msgs[1].event.Message; msg != messages.SystemText("operators", o.Reference, entities.ToFault) {
		t.Errorf("fallback message = %q", msg)
	}
}

func TestIncidentLifecycle(t *testing.T) {
	net, o := setup(t, nil)
	pub := &fakePublisher{}
	n := New(net, pub, Config{})
	now := time.Now()

	if got := n.Notify(o, entities.ResolveOffnormal, now); got != 0 {
		t.Fatalf("resolve without open incident published %d", got)
	}
	n.Notify(o, entities.ToOffnormal, now)
	if n.OpenIncidents() != 1 {
		t.Fatalf("open incidents = %d", n.OpenIncidents())
	}
	opened := pub.msgs[0].event.IncidentID

	if got := n.Notify(o, entities.ResolveOffnormal, now.Add(time.Minute)); got != 1 {
		t.Fatalf("resolve published %d, want 1", got)
	}
	if closed := pub.msgs[1].event.IncidentID; closed != opened {
		t.Fatalf("resolve incident %q, want %q", closed, opened)
	}
	if n.OpenIncidents() != 0 {
		t.Fatal("incident not closed")
	}

	n.Notify(o, entities.ToNormal, now)
	last := pub.msgs[len(pub.msgs)-1].event
	if last.Transition != "TO_NORMAL" || last.IncidentID != "" || last.Group != "managers" {
		t.Fatalf("to-normal event = %+v", last)
	}
}

func TestDedupAndEventEnable(t *testing.T) {
	net, o := setup(t, []any{false, true, true})
	pub := &fakePublisher{}
	n := New(net, pub, Config{DedupTTL: time.Hour})
	now := time.Now()

	if got := n.Notify(o, entities.ToOffnormal, now); got != 0 {
		t.Fatalf("disabled transition published %d", got)
	}
	n.Notify(o, entities.ToFault, now)
	if got := n.Notify(o, entities.ToFault, now); got != 0 {
		t.Fatalf("duplicate published %d", got)
	}
}

func TestIncidentFlapWithinDedupTTL(t *testing.T) {
	net, o := setup(t, nil)
	pub := &fakePublisher{}
	start := time.Unix(1700000000, 0)
	now := start
	n := New(net, pub, Config{DedupTTL: 30 * time.Second, Now: func() time.Time { return now }})

	steps := []struct {
		after time.Duration
		t     entities.Transition
		want  int
	}{
		{0, entities.ToOffnormal, 1},
		{5 * time.Second, entities.ResolveOffnormal, 1},
		{10 * time.Second, entities.ToOffnormal, 1},
		{12 * time.Second, entities.ToOffnormal, 0},
		{40 * time.Second, entities.ResolveOffnormal, 1},
	}
	for _, s := range steps {
		now = start.Add(s.after)
		if got := n.Notify(o, s.t, now); got != s.want {
			t.Fatalf("%s at %v published %d, want %d", s.t, s.after, got, s.want)
		}
	}

	if len(pub.msgs) != 4 {
		t.Fatalf("events = %d, want 4", len(pub.msgs))
	}
	first, second := pub.msgs[0].event.IncidentID, pub.msgs[2].event.IncidentID
	if first == "" || first == second {
		t.Fatalf("episodes share incident %q", first)
	}
	if pub.msgs[1].event.IncidentID != first || pub.msgs[3].event.IncidentID != second {
		t.Fatalf("resolves carry %q and %q, want %q and %q",
			pub.msgs[1].event.IncidentID, pub.msgs[3].event.IncidentID, first, second)
	}
	if n.OpenIncidents() != 0 {
		t.Fatalf("open incidents = %d", n.OpenIncidents())
	}
}

func TestRepeatedOpeningAfterTTL(t *testing.T) {
	net, o := setup(t, nil)
	pub := &fakePublisher{}
	now := time.Unix(1700000000, 0)
	n := New(net, pub, Config{DedupTTL: 30 * time.Second, Now: func() time.Time { return now }})

	n.Notify(o, entities.ToOffnormal, now)
	now = now.Add(31 * time.Second)
	if got := n.Notify(o, entities.ToOffnormal, now); got != 1 {
		t.Fatalf("reminder published %d, want 1", got)
	}
	if pub.msgs[0].event.IncidentID != pub.msgs[1].event.IncidentID {
		t.Fatal("reminder opened a new incident")
	}
}

func TestPublishFailureIsLogged(t *testing.T) {
	net, o := setup(t, nil)
	n := New(net, &fakePublisher{err: errors.New("broker down")}, Config{})
	if got := n.Notify(o, entities.ToFault, time.Now()); got != 0 {
		t.Fatalf("published %d with a failing broker", got)
	}
}

func TestStartConsumesQueue(t *testing.T) {
	net, o := setup(t, nil)
	pub := &fakePublisher{}
	n := New(net, pub, Config{QueueSize: 1, Topic: "alarms/{type}/{transition}"})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go n.Start(ctx)

	if err := n.PushTransition(ctx, o, entities.ToFault); err != nil {
		t.Fatal(err)
	}
	deadline := time.After(2 * time.Second)
	for {
		pub.mu.Lock()
		got := len(pub.msgs)
		pub.mu.Unlock()
		if got == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("published %d, want 2", got)
		case <-time.After(5 * time.Millisecond):
		}
	}
	if pub.msgs[0].topic != "alarms/analog-input/to_fault" {
		t.Fatalf("topic = %q", pub.msgs[0].topic)
	}
}
