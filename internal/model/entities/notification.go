package entities

import (
	"fmt"

	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

// Recipient is one entry of a notification class recipient list.
type Recipient struct {
	Group       string
	Transitions [3]bool
}

// NotificationClass routes transitions of the objects that reference it.
type NotificationClass struct {
	ID         int
	Recipients []Recipient
	Priority   [3]int
}

func NewNotificationClass(raw map[string]any) (*NotificationClass, error) {
	props := toPropertyMap(raw)
	id, ok := intProp(props, bacnet.PropObjectIdentifier)
	if !ok {
		return nil, fmt.Errorf("notification-class: object-identifier: %w", ErrMissingProperty)
	}
	nc := &NotificationClass{ID: id}
	if list, ok := props[bacnet.PropPriority].([]any); ok {
		for i := 0; i < len(list) && i < len(nc.Priority); i++ {
			if f, ok := bacnet.ToFloat(list[i]); ok {
				nc.Priority[i] = int(f)
			}
		}
	}
	list, _ := props[bacnet.PropRecipientList].([]any)
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		group, _ := m["recipient"].(string)
		bits, _ := m["transitions"].([]any)
		if group == "" || len(bits) == 0 {
			continue
		}
		r := Recipient{Group: group}
		for i := 0; i < len(bits) && i < len(r.Transitions); i++ {
			r.Transitions[i], _ = bacnet.ToBool(bits[i])
		}
		nc.Recipients = append(nc.Recipients, r)
	}
	return nc, nil
}

// RecipientsFor lists the recipients subscribed to t.
func (nc *NotificationClass) RecipientsFor(t Transition) []Recipient {
	var out []Recipient
	for _, r := range nc.Recipients {
		if r.Transitions[t.EventIndex()] {
			out = append(out, r)
		}
	}
	return out
}

func (nc *NotificationClass) PriorityFor(t Transition) int {
	return nc.Priority[t.EventIndex()]
}
