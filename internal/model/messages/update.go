package messages

import (
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

// UpdateFields are the properties sent back to the server for each object.
var UpdateFields = []bacnet.PropertyID{
	bacnet.PropObjectType,
	bacnet.PropObjectIdentifier,
	bacnet.PropObjectPropertyReference,
	bacnet.PropPresentValue,
	bacnet.PropStatusFlags,
	bacnet.PropPriorityArray,
}

// Update is the projection of an object pushed to the server, keyed by
// property code.
type Update map[bacnet.PropertyID]any

// NewUpdate projects the current state of o onto UpdateFields.
func NewUpdate(o *entities.TrackedObject) Update {
	snap := o.Snapshot()
	u := make(Update, len(UpdateFields))
	for _, f := range UpdateFields {
		if v, ok := snap[f]; ok {
			u[f] = v
		}
	}
	u[bacnet.PropObjectType] = o.Type.String()
	u[bacnet.PropObjectIdentifier] = o.ID
	u[bacnet.PropObjectPropertyReference] = o.Reference
	return u
}

// Reference of the object the update belongs to.
func (u Update) Reference() string {
	s, _ := u[bacnet.PropObjectPropertyReference].(string)
	return s
}
