package collector

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

// Mode selects how a Reader invokes its tool.
type Mode string

const (
	// ModeMulti reads all properties in one invocation (bacrpm).
	ModeMulti Mode = "multi"
	// ModeSingle reads one property per invocation (bacrp).
	ModeSingle Mode = "single"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeMulti, "":
		return ModeMulti, nil
	case ModeSingle:
		return ModeSingle, nil
	}
	return "", fmt.Errorf("unknown read mode %q", s)
}

// PolledProperties are read on every poll.
var PolledProperties = []bacnet.PropertyID{
	bacnet.PropOutOfService,
	bacnet.PropPresentValue,
	bacnet.PropReliability,
	bacnet.PropStatusFlags,
	bacnet.PropPriorityArray,
}

type Reader struct {
	Tool       QueryTool
	Mode       Mode
	Properties []bacnet.PropertyID
	Logger     *log.Logger
}

func NewReader(tool QueryTool, mode Mode, logger *log.Logger) *Reader {
	if logger == nil {
		logger = log.Default()
	}
	return &Reader{Tool: tool, Mode: mode, Properties: PolledProperties, Logger: logger}
}

// Read queries one object. An empty map means the device did not answer.
func (r *Reader) Read(ctx context.Context, deviceID int, t bacnet.ObjectType, id int) bacnet.PropertyMap {
	dev, typ, obj := strconv.Itoa(deviceID), strconv.Itoa(int(t)), strconv.Itoa(id)
	if r.Mode == ModeSingle {
		acc := bacnet.PropertyMap{}
		for _, p := range r.Properties {
			out, err := r.Tool.Query(ctx, dev, typ, obj, string(p))
			if err != nil {
				r.Logger.Printf("collector: read %s:%s:%s property %s: %v", dev, typ, obj, p, err)
			}
			bacnet.Merge(acc, bacnet.ParseSingle(out, p))
		}
		return acc
	}

	props := make([]string, len(r.Properties))
	for i, p := range r.Properties {
		props[i] = string(p)
	}
	out, err := r.Tool.Query(ctx, dev, typ, obj, strings.Join(props, ","))
	if err != nil {
		r.Logger.Printf("collector: read %s:%s:%s: %v", dev, typ, obj, err)
	}
	return bacnet.ParseMultiple(out)
}
