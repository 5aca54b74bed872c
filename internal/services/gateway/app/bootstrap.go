package app

import (
	"context"
	"fmt"

	"github.com/LeonardoBeccarini/bacnet_gateway/internal/model/entities"
	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

// notificationClassDevice is the server device that holds the notification
// class objects.
const notificationClassDevice = 1

// Bootstrap loads notification classes, devices and their objects from the
// server, keeping only the devices of the address table. Address table host
// and port win over the server's values. Objects that cannot be built are
// logged and skipped; only a failing device listing is an error.
func (g *Gateway) Bootstrap(ctx context.Context, records []bacnet.DeviceRecord) error {
	if g.cfg.Collector.Device != 0 {
		var kept []bacnet.DeviceRecord
		for _, r := range records {
			if r.ID == g.cfg.Collector.Device {
				kept = append(kept, r)
			}
		}
		records = kept
	}
	if len(records) == 0 {
		return fmt.Errorf("no device to collect from the address table")
	}

	g.loadNotificationClasses(ctx)

	if err := g.loadDevices(ctx, records); err != nil {
		return err
	}

	byPort := map[int]*PortGroup{}
	for _, r := range records {
		d, ok := g.Network.Device(r.ID)
		if !ok {
			g.log.Printf("gateway: device %d of the address table not found on the server", r.ID)
			continue
		}
		if d.Host != r.Host {
			g.log.Printf("gateway: device %d server host %q differs from address table host %q, using the address table", d.ID, d.Host, r.Host)
			d.Host = r.Host
		}
		if d.Port != r.Port {
			g.log.Printf("gateway: device %d server port %d differs from address table port %d, using the address table", d.ID, d.Port, r.Port)
			d.Port = r.Port
		}
		grp, ok := byPort[d.Port]
		if !ok {
			grp = &PortGroup{Port: d.Port}
			byPort[d.Port] = grp
			g.Groups = append(g.Groups, grp)
		}
		grp.Devices = append(grp.Devices, d)
	}

	total := 0
	for i, grp := range g.Groups {
		for _, d := range grp.Devices {
			g.loadObjects(ctx, i+1, grp, d)
		}
		total += grp.Objects()
	}
	g.log.Printf("gateway: %d objects on %d devices in %d port groups", total, len(g.Network.Devices()), len(g.Groups))
	return nil
}

func (g *Gateway) loadNotificationClasses(ctx context.Context) {
	raws, err := g.api.DeviceObjects(ctx, notificationClassDevice, bacnet.NotificationClass)
	if err != nil {
		g.log.Printf("gateway: notification classes unavailable, transitions will not be routed: %v", err)
		return
	}
	for _, raw := range raws {
		nc, err := entities.NewNotificationClass(raw)
		if err != nil {
			g.log.Printf("gateway: skip notification class: %v", err)
			continue
		}
		g.Network.AddNotificationClass(nc)
	}
}

func (g *Gateway) loadDevices(ctx context.Context, records []bacnet.DeviceRecord) error {
	wanted := make(map[int]bool, len(records))
	for _, r := range records {
		wanted[r.ID] = true
	}
	raws, err := g.api.Devices(ctx)
	if err != nil {
		return fmt.Errorf("load devices: %w", err)
	}
	for _, raw := range raws {
		d, err := entities.NewDevice(raw)
		if err != nil {
			g.log.Printf("gateway: skip device: %v", err)
			continue
		}
		if !wanted[d.ID] {
			continue
		}
		if g.cfg.Collector.ReadApp != "" {
			d.ReadApp = g.cfg.Collector.ReadApp
		}
		g.Network.AddDevice(d)
	}
	return nil
}

func (g *Gateway) loadObjects(ctx context.Context, idx int, grp *PortGroup, d *entities.Device) {
	reader, ok := g.readers[d.ReadApp]
	if !ok {
		g.log.Printf("gateway: %s has no usable read app %q, not collected", d, d.ReadApp)
		return
	}
	for _, t := range bacnet.PolledTypes {
		raws, err := g.api.DeviceObjects(ctx, d.ID, t)
		if err != nil {
			g.log.Printf("gateway: %v", err)
			continue
		}
		ids := make([]int, 0, len(raws))
		for _, raw := range raws {
			o, err := entities.NewTrackedObject(raw, g.cfg.Collector.UpdateInterval)
			if err != nil {
				g.log.Printf("gateway: skip object of device %d: %v", d.ID, err)
				continue
			}
			if g.cfg.Collector.Object != 0 && o.ID != g.cfg.Collector.Object {
				continue
			}
			if err := g.Network.AddObject(o); err != nil {
				g.log.Printf("gateway: %v", err)
				continue
			}
			grp.objects = append(grp.objects, scheduled{object: o, reader: reader})
			ids = append(ids, o.ID)
		}
		if len(ids) > 0 {
			g.log.Printf("collector#%d: device %d %s objects %v", idx, d.ID, t, ids)
		}
	}
}
