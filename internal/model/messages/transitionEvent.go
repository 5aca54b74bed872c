package messages

import (
	"time"

	"github.com/google/uuid"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

// TransitionEvent is published on the broker for every recipient of a
// status transition.
type TransitionEvent struct {
	ID           string    `json:"id"`
	IncidentID   string    `json:"incident_id,omitempty"` // shared by the events of one fault or alarm episode
	Reference    string    `json:"reference"`
	DeviceID     int       `json:"device_id"`
	ObjectType   string    `json:"object_type"`
	ObjectID     int       `json:"object_id"`
	Transition   string    `json:"transition"`
	Group        string    `json:"group"`
	Priority     int       `json:"priority"`
	Message      string    `json:"message"`
	StatusFlags  []bool    `json:"status_flags"`
	PresentValue any       `json:"present_value,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewTransitionEvent(o *entities.TrackedObject, t entities.Transition, group string, now time.Time) TransitionEvent {
	f := o.Flags()
	pv, _ := o.Get(bacnet.PropPresentValue)
	msg := o.EventMessage(t)
	if msg == "" {
		msg = SystemText(group, o.Reference, t)
	}
	return TransitionEvent{
		ID:           uuid.NewString(),
		Reference:    o.Reference,
		DeviceID:     o.DeviceID,
		ObjectType:   o.Type.String(),
		ObjectID:     o.ID,
		Transition:   t.String(),
		Group:        group,
		Message:      msg,
		StatusFlags:  []bool{f.InAlarm, f.Fault, f.Overridden, f.OutOfService},
		PresentValue: pv,
		Timestamp:    now.UTC(),
	}
}

// SystemText is the message used when the object has no event message text.
func SystemText(group, reference string, t entities.Transition) string {
	return "~System Notification~\nGroup: " + group + "\nReference: " + reference + "\nTransition: " + t.String()
}
