package verifier

import (
	"reflect"
	"testing"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

func f64(v float64) *float64 { return &v }

var analog = entities.AlarmConfig{
	Category:       bacnet.CategoryAnalog,
	EventDetection: true,
	LowLimit:       f64(30),
	HighLimit:      f64(50),
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name      string
		prior     bacnet.StatusFlags
		cfg       entities.AlarmConfig
		data      bacnet.PropertyMap
		want      bacnet.StatusFlags
		wantTrans []entities.Transition
		dataFault bool
	}{
		{
			name:      "unreachable device faults",
			data:      bacnet.PropertyMap{bacnet.PropFault: true},
			want:      bacnet.StatusFlags{Fault: true},
			wantTrans: []entities.Transition{entities.ToFault},
			dataFault: true,
		},
		{
			name:      "fault stays without new transition",
			prior:     bacnet.StatusFlags{Fault: true},
			data:      bacnet.PropertyMap{bacnet.PropFault: true},
			want:      bacnet.StatusFlags{Fault: true},
			dataFault: true,
		},
		{
			name:      "fault bit in data",
			cfg:       analog,
			data:      bacnet.PropertyMap{bacnet.PropStatusFlags: []any{false, true, false, false}, bacnet.PropPresentValue: 0.0},
			want:      bacnet.StatusFlags{Fault: true},
			wantTrans: []entities.Transition{entities.ToFault},
			dataFault: true,
		},
		{
			name:      "non default reliability",
			cfg:       analog,
			data:      bacnet.PropertyMap{bacnet.PropReliability: "over-range", bacnet.PropPresentValue: 0.0},
			want:      bacnet.StatusFlags{Fault: true},
			wantTrans: []entities.Transition{entities.ToFault},
			dataFault: true,
		},
		{
			name: "unreadable reliability is not a fault",
			cfg:  analog,
			data: bacnet.ParseMultiple("    present-value: 40.000000\r\n" +
				"    reliability: BACnet Error: property: unknown-property\r\n" +
				"    status-flags: {false,false,false,false}\r\n"),
			want: bacnet.StatusFlags{},
		},
		{
			name:      "unreadable reliability clears a fault",
			prior:     bacnet.StatusFlags{Fault: true},
			cfg:       analog,
			data:      bacnet.ParseMultiple("present-value: 40.0\nreliability: BACnet Error: property: unknown-property\n"),
			want:      bacnet.StatusFlags{},
			wantTrans: []entities.Transition{entities.ResolveFault, entities.ToNormal},
		},
		{
			name:      "fault resolves",
			prior:     bacnet.StatusFlags{Fault: true},
			cfg:       analog,
			data:      bacnet.PropertyMap{bacnet.PropPresentValue: 40.0},
			want:      bacnet.StatusFlags{},
			wantTrans: []entities.Transition{entities.ResolveFault, entities.ToNormal},
		},
		{
			name:      "below low limit",
			cfg:       analog,
			data:      bacnet.PropertyMap{bacnet.PropPresentValue: 0.0},
			want:      bacnet.StatusFlags{InAlarm: true},
			wantTrans: []entities.Transition{entities.ToOffnormal},
		},
		{
			name:      "above high limit",
			cfg:       analog,
			data:      bacnet.PropertyMap{bacnet.PropPresentValue: 50.5},
			want:      bacnet.StatusFlags{InAlarm: true},
			wantTrans: []entities.Transition{entities.ToOffnormal},
		},
		{
			name:      "back within limits",
			prior:     bacnet.StatusFlags{InAlarm: true},
			cfg:       analog,
			data:      bacnet.PropertyMap{bacnet.PropPresentValue: 40.0},
			want:      bacnet.StatusFlags{},
			wantTrans: []entities.Transition{entities.ResolveOffnormal, entities.ToNormal},
		},
		{
			name:  "still in alarm",
			prior: bacnet.StatusFlags{InAlarm: true},
			cfg:   analog,
			data:  bacnet.PropertyMap{bacnet.PropPresentValue: 10.0},
			want:  bacnet.StatusFlags{InAlarm: true},
		},
		{
			name:      "both resolve together",
			prior:     bacnet.StatusFlags{InAlarm: true, Fault: true},
			cfg:       analog,
			data:      bacnet.PropertyMap{bacnet.PropPresentValue: 40.0},
			want:      bacnet.StatusFlags{},
			wantTrans: []entities.Transition{entities.ResolveFault, entities.ResolveOffnormal, entities.ToNormal},
		},
		{
			name:      "alarm skipped on fault data",
			prior:     bacnet.StatusFlags{InAlarm: true},
			cfg:       analog,
			data:      bacnet.PropertyMap{bacnet.PropFault: true},
			want:      bacnet.StatusFlags{InAlarm: true, Fault: true},
			wantTrans: []entities.Transition{entities.ToFault},
			dataFault: true,
		},
		{
			name:      "event detection disabled clears alarm silently",
			prior:     bacnet.StatusFlags{InAlarm: true, Fault: true},
			cfg:       entities.AlarmConfig{Category: bacnet.CategoryAnalog, LowLimit: f64(30)},
			data:      bacnet.PropertyMap{bacnet.PropPresentValue: 0.0},
			want:      bacnet.StatusFlags{},
			wantTrans: []entities.Transition{entities.ResolveFault, entities.ToNormal},
		},
		{
			name:      "binary alarm value",
			cfg:       entities.AlarmConfig{Category: bacnet.CategoryBinary, EventDetection: true, AlarmValue: "active"},
			data:      bacnet.PropertyMap{bacnet.PropPresentValue: "active"},
			want:      bacnet.StatusFlags{InAlarm: true},
			wantTrans: []entities.Transition{entities.ToOffnormal},
		},
		{
			name: "binary normal value",
			cfg:  entities.AlarmConfig{Category: bacnet.CategoryBinary, EventDetection: true, AlarmValue: 1.0},
			data: bacnet.PropertyMap{bacnet.PropPresentValue: "inactive"},
			want: bacnet.StatusFlags{},
		},
		{
			name:      "multi-state alarm values",
			cfg:       entities.AlarmConfig{Category: bacnet.CategoryMultiState, EventDetection: true, AlarmValues: []any{2.0, 4.0}},
			data:      bacnet.PropertyMap{bacnet.PropPresentValue: 4},
			want:      bacnet.StatusFlags{InAlarm: true},
			wantTrans: []entities.Transition{entities.ToOffnormal},
		},
		{
			name: "overridden and out of service pass through",
			cfg:  analog,
			data: bacnet.PropertyMap{bacnet.PropPresentValue: 40.0, bacnet.PropStatusFlags: []any{false, false, true, true}},
			want: bacnet.StatusFlags{Overridden: true, OutOfService: true},
		},
		{
			name:  "missing present value leaves alarm untouched",
			prior: bacnet.StatusFlags{InAlarm: true},
			cfg:   analog,
			data:  bacnet.PropertyMap{bacnet.PropOutOfService: false},
			want:  bacnet.StatusFlags{InAlarm: true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Evaluate(tt.prior, tt.cfg, tt.data)
			if got.Flags != tt.want {
				t.Errorf("flags = %+v, want %+v", got.Flags, tt.want)
			}
			if !reflect.DeepEqual(got.Transitions, tt.wantTrans) {
				t.Errorf("transitions = %v, want %v", got.Transitions, tt.wantTrans)
			}
			if got.DataFault != tt.dataFault {
				t.Errorf("data fault = %v, want %v", got.DataFault, tt.dataFault)
			}
		})
	}
}
