package verifier

import (
	"strings"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

// Outcome is the result of evaluating one reading against prior flags.
type Outcome struct {
	Flags       bacnet.StatusFlags
	Transitions []entities.Transition
	// DataFault is set when the reading itself reports a fault; such a
	// reading must not overwrite the object's last good properties.
	DataFault bool
}

// Evaluate runs the fault, alarm and normal rules for one reading.
func Evaluate(prior bacnet.StatusFlags, cfg entities.AlarmConfig, data bacnet.PropertyMap) Outcome {
	out := Outcome{Flags: prior, DataFault: dataFault(data)}

	switch {
	case out.DataFault && !prior.Fault:
		out.Flags.Fault = true
		out.Transitions = append(out.Transitions, entities.ToFault)
	case !out.DataFault && prior.Fault:
		out.Flags.Fault = false
		out.Transitions = append(out.Transitions, entities.ResolveFault)
	}

	if !out.DataFault {
		if incoming, ok := bacnet.ParseStatusFlags(data[bacnet.PropStatusFlags]); ok {
			out.Flags.Overridden = incoming.Overridden
			out.Flags.OutOfService = incoming.OutOfService
		}
		evaluateAlarm(&out, prior, cfg, data)
	}

	if prior.Abnormal() && !out.Flags.Abnormal() {
		out.Transitions = append(out.Transitions, entities.ToNormal)
	}
	return out
}

// dataFault reports whether the reading is unusable: the device did not
// answer, the fault bit is set or reliability is not the default.
func dataFault(data bacnet.PropertyMap) bool {
	if _, ok := data[bacnet.PropFault]; ok {
		return true
	}
	if f, ok := bacnet.ParseStatusFlags(data[bacnet.PropStatusFlags]); ok && f.Fault {
		return true
	}
	if v, ok := data[bacnet.PropReliability]; ok && v != nil {
		s, isString := v.(string)
		return !isString || !strings.EqualFold(s, bacnet.NoFaultDetected)
	}
	return false
}

func evaluateAlarm(out *Outcome, prior bacnet.StatusFlags, cfg entities.AlarmConfig, data bacnet.PropertyMap) {
	if !cfg.EventDetection {
		out.Flags.InAlarm = false
		return
	}
	pv, ok := data[bacnet.PropPresentValue]
	if !ok {
		return
	}
	offnormal, ok := outOfLimit(cfg, pv)
	if !ok {
		return
	}
	switch {
	case offnormal && !prior.InAlarm:
		out.Flags.InAlarm = true
		out.Transitions = append(out.Transitions, entities.ToOffnormal)
	case !offnormal && prior.InAlarm:
		out.Flags.InAlarm = false
		out.Transitions = append(out.Transitions, entities.ResolveOffnormal)
	}
}

// outOfLimit judges a present value by object category. The second result
// is false when the value cannot be judged.
func outOfLimit(cfg entities.AlarmConfig, pv any) (bool, bool) {
	switch cfg.Category {
	case bacnet.CategoryAnalog:
		f, ok := bacnet.ToFloat(pv)
		if !ok {
			return false, false
		}
		return (cfg.LowLimit != nil && f < *cfg.LowLimit) || (cfg.HighLimit != nil && f > *cfg.HighLimit), true
	case bacnet.CategoryBinary:
		state, ok := bacnet.BinaryState(pv)
		if !ok {
			return false, false
		}
		alarm, ok := bacnet.BinaryState(cfg.AlarmValue)
		return ok && alarm == state, true
	case bacnet.CategoryMultiState:
		f, ok := bacnet.ToFloat(pv)
		if !ok {
			return false, false
		}
		for _, v := range cfg.AlarmValues {
			if a, ok := bacnet.ToFloat(v); ok && a == f {
				return true, true
			}
		}
		return false, true
	}
	return false, false
}
