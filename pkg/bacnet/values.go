package bacnet

import (
	"math"
	"strconv"
	"strings"
)

// StatusFlags is the four bit BACnet status flags property in wire order.
type StatusFlags struct {
	InAlarm      bool
	Fault        bool
	Overridden   bool
	OutOfService bool
}

// Abnormal reports whether the object is in alarm or in fault.
func (f StatusFlags) Abnormal() bool { return f.InAlarm || f.Fault }

// List renders the flags the way the server stores them.
func (f StatusFlags) List() []any {
	return []any{f.InAlarm, f.Fault, f.Overridden, f.OutOfService}
}

// ParseStatusFlags decodes a four element list or its printed form
// "{false,true,false,false}". Missing elements read as false.
func ParseStatusFlags(v any) (StatusFlags, bool) {
	var list []any
	switch x := v.(type) {
	case StatusFlags:
		return x, true
	case []any:
		list = x
	case []bool:
		for _, b := range x {
			list = append(list, b)
		}
	case string:
		val, ok := NewExtractor(x).Value()
		l, isList := val.([]any)
		if !ok || !isList {
			return StatusFlags{}, false
		}
		list = l
	default:
		return StatusFlags{}, false
	}
	var bits [4]bool
	for i := 0; i < len(list) && i < len(bits); i++ {
		bits[i], _ = ToBool(list[i])
	}
	return StatusFlags{InAlarm: bits[0], Fault: bits[1], Overridden: bits[2], OutOfService: bits[3]}, true
}

// ToFloat converts numeric values and numeric strings.
func ToFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case bool:
		if x {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

// ToBool accepts bools, 0/1 numbers, and the words the tools print.
func ToBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "active", "1", "on":
			return true, true
		case "false", "inactive", "0", "off":
			return false, true
		}
		return false, false
	}
	if f, ok := ToFloat(v); ok {
		return f != 0, true
	}
	return false, false
}

// BinaryState normalizes a binary present value to "active" or "inactive".
func BinaryState(v any) (string, bool) {
	b, ok := ToBool(v)
	if !ok {
		return "", false
	}
	if b {
		return "active", true
	}
	return "inactive", true
}

// CoercePresentValue converts a raw present value to the representation of
// the object's category. Values that do not convert are returned unchanged.
func CoercePresentValue(c Category, v any) any {
	switch c {
	case CategoryAnalog:
		if f, ok := ToFloat(v); ok {
			return f
		}
	case CategoryMultiState:
		if f, ok := ToFloat(v); ok && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return int(f)
		}
	case CategoryBinary:
		if s, ok := BinaryState(v); ok {
			return s
		}
	}
	return v
}
