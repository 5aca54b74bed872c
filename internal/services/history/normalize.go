package history

import (
	"strconv"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

const (
	MeasurementPoint      = "bacnet_point"
	MeasurementTransition = "bacnet_transition"
)

func objectTags(o *entities.TrackedObject) map[string]string {
	return map[string]string{
		"reference":   o.Reference,
		"device_id":   strconv.Itoa(o.DeviceID),
		"object_type": o.Type.String(),
		"object_id":   strconv.Itoa(o.ID),
	}
}

func flagFields(fields map[string]any, f bacnet.StatusFlags) {
	fields["in_alarm"] = f.InAlarm
	fields["fault"] = f.Fault
	fields["overridden"] = f.Overridden
	fields["out_of_service"] = f.OutOfService
}

// ReadingPoint turns the verified state of o into a point. Analog and
// multi-state values go to "value", binary ones to "active".
func ReadingPoint(o *entities.TrackedObject, at time.Time) *write.Point {
	fields := map[string]any{}
	flagFields(fields, o.Flags())
	if pv, ok := o.Get(bacnet.PropPresentValue); ok {
		switch o.Type.Category() {
		case bacnet.CategoryBinary:
			if s, ok := bacnet.BinaryState(pv); ok {
				fields["active"] = s == "active"
			}
		default:
			if f, ok := bacnet.ToFloat(pv); ok {
				fields["value"] = f
			}
		}
	}
	return influxdb2.NewPoint(MeasurementPoint, objectTags(o), fields, at)
}

func TransitionPoint(o *entities.TrackedObject, t entities.Transition, at time.Time) *write.Point {
	tags := objectTags(o)
	tags["transition"] = t.String()
	fields := map[string]any{"count": int64(1)}
	flagFields(fields, o.Flags())
	return influxdb2.NewPoint(MeasurementTransition, tags, fields, at)
}
