package verifier

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

type fakeSinks struct {
	mu          sync.Mutex
	pushed      []string
	transitions []entities.Transition
	readings    int
}

func (f *fakeSinks) Push(o *entities.TrackedObject) {
	f.mu.Lock()
	f.pushed = append(f.pushed, o.Reference)
	f.mu.Unlock()
}

func (f *fakeSinks) PushTransition(_ context.Context, _ *entities.TrackedObject, t entities.Transition) error {
	f.mu.Lock()
	f.transitions = append(f.transitions, t)
	f.mu.Unlock()
	return nil
}

func (f *fakeSinks) RecordReading(*entities.TrackedObject, time.Time) {
	f.mu.Lock()
	f.readings++
	f.mu.Unlock()
}

func (f *fakeSinks) RecordTransition(*entities.TrackedObject, entities.Transition, time.Time) {}

func newObject(t *testing.T) *entities.TrackedObject {
	t.Helper()
	o, err := entities.NewTrackedObject(map[string]any{
		"77":  "Site:B1/AHU1.TEMP",
		"846": 200.0,
		"75":  1.0,
		"79":  "analog-value",
		"59":  30.0,
		"45":  50.0,
		"353": true,
		"85":  35.0,
	}, 0)
	if err != nil {
		t.Fatal(err)
	}
	return o
}

func TestProcessFaultKeepsLastGoodValue(t *testing.T) {
	sinks := &fakeSinks{}
	v := New(Config{Transmitter: sinks, Notifier: sinks, History: sinks})
	o := newObject(t)
	ctx := context.Background()

	v.Process(ctx, Reading{Object: o, Data: bacnet.PropertyMap{bacnet.PropFault: true}})
	if pv, _ := o.Get(bacnet.PropPresentValue); pv != 35.0 {
		t.Fatalf("present-value changed on fault cycle: %v", pv)
	}
	if !o.Flags().Fault {
		t.Fatal("fault flag not set")
	}

	v.Process(ctx, Reading{Object: o, Data: bacnet.PropertyMap{bacnet.PropPresentValue: 10.0}})
	if pv, _ := o.Get(bacnet.PropPresentValue); pv != 10.0 {
		t.Fatalf("present-value = %v, want 10", pv)
	}
	f := o.Flags()
	if f.Fault || !f.InAlarm {
		t.Fatalf("flags = %+v", f)
	}

	want := []entities.Transition{entities.ToFault, entities.ResolveFault, entities.ToOffnormal}
	if len(sinks.transitions) != len(want) {
		t.Fatalf("transitions = %v, want %v", sinks.transitions, want)
	}
	for i := range want {
		if sinks.transitions[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", sinks.transitions, want)
		}
	}
	if len(sinks.pushed) != 2 || sinks.readings != 1 {
		t.Fatalf("pushed=%v readings=%d", sinks.pushed, sinks.readings)
	}
}

func TestStartDrainsQueue(t *testing.T) {
	sinks := &fakeSinks{}
	v := New(Config{QueueSize: 1, Transmitter: sinks})
	o := newObject(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go v.Start(ctx)

	for i := 0; i < 5; i++ {
		if err := v.Push(ctx, Reading{Object: o, Data: bacnet.PropertyMap{bacnet.PropPresentValue: 40.0}}); err != nil {
			t.Fatal(err)
		}
	}
	deadline := time.After(2 * time.Second)
	for {
		sinks.mu.Lock()
		n := len(sinks.pushed)
		sinks.mu.Unlock()
		if n == 5 {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("processed %d of 5 readings", n)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestPushHonorsContext(t *testing.T) {
	v := New(Config{QueueSize: 1})
	o := newObject(t)
	ctx, cancel := context.WithCancel(context.Background())
	if err := v.Push(ctx, Reading{Object: o}); err != nil {
		t.Fatal(err)
	}
	cancel()
	if err := v.Push(ctx, Reading{Object: o}); err == nil {
		t.Fatal("push on a full queue with a cancelled context should fail")
	}
}
