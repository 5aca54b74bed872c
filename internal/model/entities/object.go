package entities

import (
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

// ErrMissingProperty marks a server object without a required property.
var ErrMissingProperty = errors.New("missing required property")

// DefaultUpdateInterval applies to objects that carry no update-interval.
const DefaultUpdateInterval = 60 * time.Second

// TrackedObject is a BACnet point the gateway polls and verifies.
// Properties and flags are written by the verifier only, Poll by the
// collector only.
type TrackedObject struct {
	Reference string
	DeviceID  int
	Type      bacnet.ObjectType
	ID        int
	// NotificationClass is the id of the object's notification class, nil if none.
	NotificationClass *int
	Poll              PollState

	mu    sync.RWMutex
	props bacnet.PropertyMap
	flags bacnet.StatusFlags
}

// NewTrackedObject builds an object from its server representation.
func NewTrackedObject(raw map[string]any, defaultInterval time.Duration) (*TrackedObject, error) {
	props := toPropertyMap(raw)

	ref, _ := props[bacnet.PropObjectPropertyReference].(string)
	if ref == "" {
		return nil, fmt.Errorf("object-property-reference: %w", ErrMissingProperty)
	}
	deviceID, ok := intProp(props, bacnet.PropDeviceID)
	if !ok {
		return nil, fmt.Errorf("%s: device-id: %w", ref, ErrMissingProperty)
	}
	id, ok := intProp(props, bacnet.PropObjectIdentifier)
	if !ok {
		return nil, fmt.Errorf("%s: object-identifier: %w", ref, ErrMissingProperty)
	}
	rawType, ok := props[bacnet.PropObjectType]
	if !ok {
		return nil, fmt.Errorf("%s: object-type: %w", ref, ErrMissingProperty)
	}
	typ, err := bacnet.ParseObjectType(rawType)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", ref, err)
	}

	interval := defaultInterval
	if interval <= 0 {
		interval = DefaultUpdateInterval
	}
	if secs, ok := bacnet.ToFloat(props[bacnet.PropUpdateInterval]); ok && secs > 0 {
		interval = time.Duration(secs * float64(time.Second))
	}
	var nc *int
	if id, ok := intProp(props, bacnet.PropNotificationClass); ok {
		nc = &id
	}

	o := &TrackedObject{
		Reference:         ref,
		DeviceID:          deviceID,
		Type:              typ,
		ID:                id,
		NotificationClass: nc,
		Poll:              PollState{Interval: interval},
		props:             props,
	}
	if f, ok := bacnet.ParseStatusFlags(props[bacnet.PropStatusFlags]); ok {
		o.flags = f
	}
	// the fault and alarm flags are derived by the gateway, never trusted from the server
	o.flags.Fault, o.flags.InAlarm = false, false
	return o, nil
}

func (o *TrackedObject) String() string {
	return fmt.Sprintf("%s (%d:%s:%d)", o.Reference, o.DeviceID, o.Type, o.ID)
}

// Flags returns the current status flags.
func (o *TrackedObject) Flags() bacnet.StatusFlags {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.flags
}

func (o *TrackedObject) SetFlags(f bacnet.StatusFlags) {
	o.mu.Lock()
	o.flags = f
	o.mu.Unlock()
}

// Get returns a last-known property value.
func (o *TrackedObject) Get(id bacnet.PropertyID) (any, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	v, ok := o.props[id]
	return v, ok
}

// Apply merges freshly collected properties and sets the flags in one step.
func (o *TrackedObject) Apply(data bacnet.PropertyMap, f bacnet.StatusFlags) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for k, v := range data {
		if k == bacnet.PropFault {
			continue
		}
		o.props[k] = v
	}
	o.flags = f
	o.props[bacnet.PropStatusFlags] = f.List()
}

// Snapshot copies the property map with the current flags.
func (o *TrackedObject) Snapshot() bacnet.PropertyMap {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make(bacnet.PropertyMap, len(o.props)+1)
	for k, v := range o.props {
		out[k] = v
	}
	out[bacnet.PropStatusFlags] = o.flags.List()
	return out
}

// AlarmConfig is the part of the object the alarm evaluation depends on.
type AlarmConfig struct {
	Category       bacnet.Category
	EventDetection bool
	LowLimit       *float64
	HighLimit      *float64
	AlarmValue     any
	AlarmValues    []any
}

func (o *TrackedObject) AlarmConfig() AlarmConfig {
	o.mu.RLock()
	defer o.mu.RUnlock()
	cfg := AlarmConfig{Category: o.Type.Category()}
	if b, ok := bacnet.ToBool(o.props[bacnet.PropEventDetectionEnable]); ok {
		cfg.EventDetection = b
	}
	if f, ok := bacnet.ToFloat(o.props[bacnet.PropLowLimit]); ok {
		cfg.LowLimit = &f
	}
	if f, ok := bacnet.ToFloat(o.props[bacnet.PropHighLimit]); ok {
		cfg.HighLimit = &f
	}
	cfg.AlarmValue = o.props[bacnet.PropAlarmValue]
	if list, ok := o.props[bacnet.PropAlarmValues].([]any); ok {
		cfg.AlarmValues = list
	}
	return cfg
}

// NotificationAllowed checks the object's event-enable bits. Objects
// without event-enable notify on every transition.
func (o *TrackedObject) NotificationAllowed(t Transition) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	list, ok := o.props[bacnet.PropEventEnable].([]any)
	if !ok || t.EventIndex() >= len(list) {
		return true
	}
	b, _ := bacnet.ToBool(list[t.EventIndex()])
	return b
}

// EventMessage returns the configured event message text for t.
func (o *TrackedObject) EventMessage(t Transition) string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if list, ok := o.props[bacnet.PropEventMessageTexts].([]any); ok && t.EventIndex() < len(list) {
		if s, ok := list[t.EventIndex()].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// PollState is the polling metadata of an object.
type PollState struct {
	Interval    time.Duration
	LastSuccess time.Time
	// JitterDelay replaces Interval once, right after the first poll, to
	// spread polls of objects loaded at the same time.
	JitterDelay time.Duration
	jittered    bool
}

// Delay is the wait between the last poll and the next one.
func (p *PollState) Delay() time.Duration {
	if p.JitterDelay > 0 {
		return p.JitterDelay
	}
	return p.Interval
}

func (p *PollState) Due(now time.Time) bool {
	return now.Sub(p.LastSuccess) > p.Delay()
}

// Advance picks the delay that follows the poll being started: a random
// whole number of seconds in [1, max(interval,1)] the first time, the
// configured interval afterwards.
func (p *PollState) Advance(rnd *rand.Rand) {
	if p.jittered {
		p.JitterDelay = 0
		return
	}
	p.jittered = true
	secs := int64(p.Interval / time.Second)
	if secs < 1 {
		secs = 1
	}
	p.JitterDelay = time.Duration(1+rnd.Int63n(secs)) * time.Second
}

func toPropertyMap(raw map[string]any) bacnet.PropertyMap {
	out := make(bacnet.PropertyMap, len(raw))
	for k, v := range raw {
		out[bacnet.PropertyID(k)] = v
	}
	return out
}

func intProp(m bacnet.PropertyMap, id bacnet.PropertyID) (int, bool) {
	switch v := m[id].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}
