package app

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/config"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/services/collector"
	"github.com/LeonardoBeccarini/bacnet_gateway/internal/stats"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

// API is the part of the server the gateway loads its network from.
type API interface {
	Devices(ctx context.Context) ([]RawObject, error)
	DeviceObjects(ctx context.Context, deviceID int, t bacnet.ObjectType) ([]RawObject, error)
}

type scheduled struct {
	object *entities.TrackedObject
	reader *collector.Reader
}

// PortGroup holds the devices sharing one UDP port. Each group is polled by
// its own collector.
type PortGroup struct {
	Port    int
	Devices []*entities.Device
	objects []scheduled
}

// Objects is the number of objects polled in the group.
func (g *PortGroup) Objects() int { return len(g.objects) }

type Gateway struct {
	cfg     config.Config
	api     API
	log     *log.Logger
	readers map[string]*collector.Reader

	Network *entities.Network
	Groups  []*PortGroup
}

// NewGateway prepares one reader per configured query tool.
func NewGateway(cfg config.Config, api API, logger *log.Logger) (*Gateway, error) {
	if logger == nil {
		logger = log.Default()
	}
	g := &Gateway{
		cfg:     cfg,
		api:     api,
		log:     logger,
		readers: map[string]*collector.Reader{},
		Network: entities.NewNetwork(),
	}
	names := make([]string, 0, len(cfg.Collector.Tools))
	for name := range cfg.Collector.Tools {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := cfg.Collector.Tools[name]
		tool, err := collector.NewExecTool(t.Command, cfg.Collector.ToolDir, cfg.Collector.ToolTimeout)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}
		mode, err := collector.ParseMode(t.Mode)
		if err != nil {
			return nil, fmt.Errorf("tool %s: %w", name, err)
		}
		g.readers[name] = collector.NewReader(tool, mode, logger)
	}
	return g, nil
}

// Collectors builds one collector per port group.
func (g *Gateway) Collectors(sink collector.Sink, st *stats.Statistic) []*collector.Collector {
	out := make([]*collector.Collector, 0, len(g.Groups))
	for i, grp := range g.Groups {
		c := collector.New(sink, collector.Config{
			Index:  i + 1,
			Period: g.cfg.Collector.Period,
			Stats:  st,
			Logger: g.log,
		})
		for _, s := range grp.objects {
			c.Add(s.object, s.reader)
		}
		out = append(out, c)
	}
	return out
}
