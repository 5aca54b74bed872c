// Package addresscache builds the bacwi address table the query tools and
// the gateway read device addresses from.
package addresscache

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

// Lister lists the devices known to the server.
type Lister interface {
	Devices(ctx context.Context) ([]map[string]any, error)
}

// ParseIDs reads a comma separated list of device ids.
func ParseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("device id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("no device id given")
	}
	return ids, nil
}

// Build returns one record per requested id found on the server, in the
// order the ids were given.
func Build(ctx context.Context, api Lister, ids []int, logger *log.Logger) ([]bacnet.DeviceRecord, error) {
	if logger == nil {
		logger = log.Default()
	}
	raws, err := api.Devices(ctx)
	if err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	found := make(map[int]bacnet.DeviceRecord, len(raws))
	for _, raw := range raws {
		d, err := entities.NewDevice(raw)
		if err != nil {
			logger.Printf("address-cache: skip device: %v", err)
			continue
		}
		found[d.ID] = d.Record()
	}

	out := make([]bacnet.DeviceRecord, 0, len(ids))
	for _, id := range ids {
		r, ok := found[id]
		switch {
		case !ok:
			logger.Printf("address-cache: device %d not found on the server", id)
			continue
		case r.Host == "" || r.Port == 0:
			logger.Printf("address-cache: device %d has no host or port configured", id)
			continue
		}
		if _, err := r.MAC(); err != nil {
			logger.Printf("address-cache: skip %v", err)
			continue
		}
		out = append(out, r)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("none of the devices %v is usable", ids)
	}
	return out, nil
}
