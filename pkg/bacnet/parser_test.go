package bacnet

import (
	"os"
	"reflect"
	"testing"
)

func readFixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	return string(b)
}

func TestParseMultiple(t *testing.T) {
	m := ParseMultiple(readFixture(t, "bacrpm.txt"))

	want := map[PropertyID]any{
		PropObjectType:       "analog-input",
		PropObjectIdentifier: 3000022.0,
		PropObjectName:       "Supply Air Temp",
		PropPresentValue:     21.5,
		PropDescription:      "Supply air after the heat exchanger",
		PropStatusFlags:      []any{false, false, false, false},
		PropOutOfService:     false,
		PropLowLimit:         30.0,
		PropHighLimit:        50.0,
		"36":                 "normal",
		"117":                "degrees-celsius",
	}
	for k, v := range want {
		if !reflect.DeepEqual(m[k], v) {
			t.Errorf("property %s = %#v, want %#v", k, m[k], v)
		}
	}
	if _, ok := m[PropReliability]; ok {
		t.Errorf("default reliability was not suppressed: %v", m[PropReliability])
	}
	pa, ok := m[PropPriorityArray].([]any)
	if !ok || len(pa) != 16 || pa[0] != nil {
		t.Errorf("priority-array = %#v", m[PropPriorityArray])
	}
}

func TestParseMultipleApduTimeout(t *testing.T) {
	m := ParseMultiple(readFixture(t, "bacrpm-apdu-timeout.txt"))
	if m == nil || len(m) != 0 {
		t.Fatalf("got %v, want empty map", m)
	}
}

func TestParseMultipleReliabilityAndScalars(t *testing.T) {
	tests := []struct {
		in   string
		prop PropertyID
		want any
		gone bool
	}{
		{in: "reliability: no-fault-detected\n", prop: PropReliability, gone: true},
		{in: "reliability: over-range\n", prop: PropReliability, want: "over-range"},
		{in: "present-value: 1\n", prop: PropPresentValue, want: 1.0},
		{in: "present value: 7\n", prop: PropPresentValue, want: 7.0},
		{in: "description: two  words here\n", prop: PropDescription, want: "two  words here"},
		{in: "description:\n", prop: PropDescription, gone: true},
		{in: "local-time: 12:30:05.00\n", prop: "57", want: "12:30:05.00"},
		{in: "status-flags: {true,false\n", prop: PropStatusFlags, want: "{true,false"},
		{in: "no-such-thing: 1\n", prop: "no-such-thing", gone: true},
	}
	for _, tt := range tests {
		m := ParseMultiple(tt.in)
		v, ok := m[tt.prop]
		if tt.gone {
			if ok {
				t.Errorf("%q: unexpected %s = %#v", tt.in, tt.prop, v)
			}
			continue
		}
		if !reflect.DeepEqual(v, tt.want) {
			t.Errorf("%q: %s = %#v, want %#v", tt.in, tt.prop, v, tt.want)
		}
	}
}

func TestParseMultipleLastWriteWins(t *testing.T) {
	m := ParseMultiple("present-value: 1\npresent-value: 2\n")
	if m[PropPresentValue] != 2.0 {
		t.Fatalf("present-value = %v", m[PropPresentValue])
	}
}

func TestParseSingleAccumulates(t *testing.T) {
	acc := PropertyMap{}
	acc = Merge(acc, ParseSingle("no-fault-detected\n", PropReliability))
	acc = Merge(acc, ParseSingle("1.000000\n", PropPresentValue))
	acc = Merge(acc, ParseSingle(`"Boiler room"`+"\n", PropDescription))
	acc = Merge(acc, ParseSingle("(analog-input, 3000022)\n", PropObjectIdentifier))
	acc = Merge(acc, ParseSingle("false\n", PropOutOfService))
	acc = Merge(acc, ParseSingle("{false,false,false,false}\n", PropStatusFlags))

	if _, ok := acc[PropReliability]; ok {
		t.Errorf("reliability should be suppressed")
	}
	checks := map[PropertyID]any{
		PropPresentValue:     1.0,
		PropDescription:      "Boiler room",
		PropObjectIdentifier: 3000022.0,
		PropObjectType:       "analog-input",
		PropOutOfService:     false,
		PropStatusFlags:      []any{false, false, false, false},
	}
	for k, v := range checks {
		if !reflect.DeepEqual(acc[k], v) {
			t.Errorf("%s = %#v, want %#v", k, acc[k], v)
		}
	}
}

func TestParseSingleRejected(t *testing.T) {
	for _, in := range []string{
		"Reject: Unrecognized Service\n",
		"BACnet Abort: Segmentation Not Supported\n",
		"BACnet Error: property: unknown-property\n",
		"Error: APDU Timeout!\n",
		"",
	} {
		if m := ParseSingle(in, PropPresentValue); len(m) != 0 {
			t.Errorf("%q: got %v, want empty", in, m)
		}
	}
}

func TestParseStatusFlags(t *testing.T) {
	f, ok := ParseStatusFlags("{false,true,false,true}")
	if !ok || f != (StatusFlags{Fault: true, OutOfService: true}) {
		t.Fatalf("got %+v %v", f, ok)
	}
	f, ok = ParseStatusFlags([]any{true})
	if !ok || f != (StatusFlags{InAlarm: true}) {
		t.Fatalf("short list: got %+v %v", f, ok)
	}
	if _, ok := ParseStatusFlags(12); ok {
		t.Fatalf("number should not decode")
	}
}

func TestCoercePresentValue(t *testing.T) {
	tests := []struct {
		cat  Category
		in   any
		want any
	}{
		{CategoryAnalog, "21.5", 21.5},
		{CategoryAnalog, 3.0, 3.0},
		{CategoryMultiState, 2.0, 2},
		{CategoryMultiState, "3", 3},
		{CategoryBinary, true, "active"},
		{CategoryBinary, 0.0, "inactive"},
		{CategoryBinary, "active", "active"},
		{CategoryOther, "x", "x"},
	}
	for _, tt := range tests {
		if got := CoercePresentValue(tt.cat, tt.in); got != tt.want {
			t.Errorf("%v %#v: got %#v, want %#v", tt.cat, tt.in, got, tt.want)
		}
	}
}

func TestParseObjectType(t *testing.T) {
	for _, in := range []any{"analog-input", "0", 0, 0.0, AnalogInput} {
		got, err := ParseObjectType(in)
		if err != nil || got != AnalogInput {
			t.Errorf("%#v: got %v, %v", in, got, err)
		}
	}
	if _, err := ParseObjectType("site"); err == nil {
		t.Errorf("site should not resolve")
	}
	if MultiStateValue.Category() != CategoryMultiState || BinaryOutput.Category() != CategoryBinary {
		t.Errorf("unexpected categories")
	}
}

func TestParseMultipleSkipsUnreadableProperties(t *testing.T) {
	m := ParseMultiple(readFixture(t, "bacrpm-unknown-property.txt"))
	if m[PropPresentValue] != 21.5 || m[PropOutOfService] != false {
		t.Fatalf("readable properties lost: %v", m)
	}
	for _, p := range []PropertyID{PropReliability, PropHighLimit, PropDescription} {
		if v, ok := m[p]; ok {
			t.Errorf("%s = %#v, want absent", p, v)
		}
	}

	m = ParseMultiple("present-value: BACnet Abort: Segmentation Not Supported\nlocal-time: 12:30:05.00\n")
	if _, ok := m[PropPresentValue]; ok {
		t.Errorf("failed present-value kept: %#v", m[PropPresentValue])
	}
	if m["57"] != "12:30:05.00" {
		t.Errorf("local-time = %#v", m["57"])
	}
}
