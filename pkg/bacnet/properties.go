package bacnet

import (
	"strings"
)

// PropertyID is the numeric BACnet property identifier kept in its decimal
// string form, which is how the supervisory server keys object properties.
type PropertyID string

const (
	PropAlarmValue              PropertyID = "6"
	PropAlarmValues             PropertyID = "7"
	PropNotificationClass       PropertyID = "17"
	PropDescription             PropertyID = "28"
	PropEventEnable             PropertyID = "35"
	PropHighLimit               PropertyID = "45"
	PropLowLimit                PropertyID = "59"
	PropMaxAPDULengthAccepted   PropertyID = "62"
	PropObjectIdentifier        PropertyID = "75"
	PropObjectName              PropertyID = "77"
	PropObjectPropertyReference PropertyID = "77"
	PropObjectType              PropertyID = "79"
	PropOutOfService            PropertyID = "81"
	PropPresentValue            PropertyID = "85"
	PropPriority                PropertyID = "86"
	PropPriorityArray           PropertyID = "87"
	PropRecipientList           PropertyID = "102"
	PropReliability             PropertyID = "103"
	PropStatusFlags             PropertyID = "111"
	PropUpdateInterval          PropertyID = "118"
	PropConfigurationFiles      PropertyID = "154"
	PropEventMessageTexts       PropertyID = "351"
	PropEventDetectionEnable    PropertyID = "353"
	PropPropertyList            PropertyID = "371"
	PropDeviceID                PropertyID = "846"
)

// PropFault is not a BACnet property. The collector sets it on a reading
// when the device produced no data at all.
const PropFault PropertyID = "fault"

// NoFaultDetected is the reliability value a healthy object reports.
const NoFaultDetected = "no-fault-detected"

// LookupProperty resolves a property name as printed by the read tools.
func LookupProperty(name string) (PropertyID, bool) {
	id, ok := propertyNames[strings.ToLower(strings.TrimSpace(name))]
	return id, ok
}

// PropertyMap holds the properties of one object keyed by identifier.
// Values are float64, int, string, bool, nil or []any.
type PropertyMap map[PropertyID]any

// Merge copies src into dst, later values win, and returns dst.
func Merge(dst, src PropertyMap) PropertyMap {
	if dst == nil {
		dst = PropertyMap{}
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
