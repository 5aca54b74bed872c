package bacnet

import (
	"fmt"
	"strconv"
	"strings"
)

// ObjectType is a BACnet object type code.
type ObjectType int

const (
	AnalogInput       ObjectType = 0
	AnalogOutput      ObjectType = 1
	AnalogValue       ObjectType = 2
	BinaryInput       ObjectType = 3
	BinaryOutput      ObjectType = 4
	BinaryValue       ObjectType = 5
	Calendar          ObjectType = 6
	Command           ObjectType = 7
	Device            ObjectType = 8
	EventEnrollment   ObjectType = 9
	File              ObjectType = 10
	Group             ObjectType = 11
	Loop              ObjectType = 12
	MultiStateInput   ObjectType = 13
	MultiStateOutput  ObjectType = 14
	NotificationClass ObjectType = 15
	Program           ObjectType = 16
	Schedule          ObjectType = 17
	Averaging         ObjectType = 18
	MultiStateValue   ObjectType = 19
	TrendLog          ObjectType = 20
	LifeSafetyPoint   ObjectType = 21
	LifeSafetyZone    ObjectType = 22
	Accumulator       ObjectType = 23
	PulseConverter    ObjectType = 24
	AccessPoint       ObjectType = 33
)

var objectTypeNames = map[ObjectType]string{
	AnalogInput:       "analog-input",
	AnalogOutput:      "analog-output",
	AnalogValue:       "analog-value",
	BinaryInput:       "binary-input",
	BinaryOutput:      "binary-output",
	BinaryValue:       "binary-value",
	Calendar:          "calendar",
	Command:           "command",
	Device:            "device",
	EventEnrollment:   "event-enrollment",
	File:              "file",
	Group:             "group",
	Loop:              "loop",
	MultiStateInput:   "multi-state-input",
	MultiStateOutput:  "multi-state-output",
	NotificationClass: "notification-class",
	Program:           "program",
	Schedule:          "schedule",
	Averaging:         "averaging",
	MultiStateValue:   "multi-state-value",
	TrendLog:          "trend-log",
	LifeSafetyPoint:   "life-safety-point",
	LifeSafetyZone:    "life-safety-zone",
	Accumulator:       "accumulator",
	PulseConverter:    "pulse-converter",
	AccessPoint:       "access-point",
}

var objectTypeCodes = func() map[string]ObjectType {
	m := make(map[string]ObjectType, len(objectTypeNames))
	for t, name := range objectTypeNames {
		m[name] = t
	}
	return m
}()

// PolledTypes are the object types the collector reads.
var PolledTypes = []ObjectType{
	AnalogInput, AnalogOutput, AnalogValue,
	BinaryInput, BinaryOutput, BinaryValue,
	MultiStateInput, MultiStateOutput, MultiStateValue,
}

func (t ObjectType) String() string {
	if name, ok := objectTypeNames[t]; ok {
		return name
	}
	return "object-type-" + strconv.Itoa(int(t))
}

// ParseObjectType accepts a type name ("analog-input") or a numeric code in
// any of the forms the server and the tools print it.
func ParseObjectType(v any) (ObjectType, error) {
	switch x := v.(type) {
	case ObjectType:
		return x, nil
	case int:
		return objectTypeFromCode(x)
	case float64:
		return objectTypeFromCode(int(x))
	case string:
		s := strings.ToLower(strings.TrimSpace(x))
		if t, ok := objectTypeCodes[s]; ok {
			return t, nil
		}
		if n, err := strconv.Atoi(s); err == nil {
			return objectTypeFromCode(n)
		}
	}
	return 0, fmt.Errorf("unknown object type %v", v)
}

func objectTypeFromCode(n int) (ObjectType, error) {
	t := ObjectType(n)
	if _, ok := objectTypeNames[t]; !ok {
		return 0, fmt.Errorf("unknown object type code %d", n)
	}
	return t, nil
}

// Category groups object types by how their present value is judged.
type Category int

const (
	CategoryOther Category = iota
	CategoryAnalog
	CategoryBinary
	CategoryMultiState
)

func (c Category) String() string {
	switch c {
	case CategoryAnalog:
		return "analog"
	case CategoryBinary:
		return "binary"
	case CategoryMultiState:
		return "multi-state"
	}
	return "other"
}

func (t ObjectType) Category() Category {
	switch t {
	case AnalogInput, AnalogOutput, AnalogValue:
		return CategoryAnalog
	case BinaryInput, BinaryOutput, BinaryValue:
		return CategoryBinary
	case MultiStateInput, MultiStateOutput, MultiStateValue:
		return CategoryMultiState
	}
	return CategoryOther
}
