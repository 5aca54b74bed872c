package entities

import (
	"fmt"
	"sort"
	"sync"
)

// Network owns every tracked object, device and notification class.
// Objects refer to devices and notification classes by id; lookups go
// through the network.
type Network struct {
	mu      sync.RWMutex
	objects []*TrackedObject
	index   map[string]int
	devices map[int]*Device
	classes map[int]*NotificationClass
}

func NewNetwork() *Network {
	return &Network{
		index:   map[string]int{},
		devices: map[int]*Device{},
		classes: map[int]*NotificationClass{},
	}
}

// AddObject registers o. A second object with the same reference is rejected.
func (n *Network) AddObject(o *TrackedObject) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, dup := n.index[o.Reference]; dup {
		return fmt.Errorf("object %s already tracked", o.Reference)
	}
	n.index[o.Reference] = len(n.objects)
	n.objects = append(n.objects, o)
	return nil
}

func (n *Network) Object(ref string) (*TrackedObject, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	i, ok := n.index[ref]
	if !ok {
		return nil, false
	}
	return n.objects[i], true
}

// Objects returns the tracked objects in registration order.
func (n *Network) Objects() []*TrackedObject {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return append([]*TrackedObject(nil), n.objects...)
}

func (n *Network) AddDevice(d *Device) {
	n.mu.Lock()
	n.devices[d.ID] = d
	n.mu.Unlock()
}

func (n *Network) Device(id int) (*Device, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	d, ok := n.devices[id]
	return d, ok
}

// Devices returns the devices ordered by id.
func (n *Network) Devices() []*Device {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]*Device, 0, len(n.devices))
	for _, d := range n.devices {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (n *Network) AddNotificationClass(nc *NotificationClass) {
	n.mu.Lock()
	n.classes[nc.ID] = nc
	n.mu.Unlock()
}

// NotificationClassOf resolves the notification class o points to.
func (n *Network) NotificationClassOf(o *TrackedObject) (*NotificationClass, bool) {
	if o.NotificationClass == nil {
		return nil, false
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	nc, ok := n.classes[*o.NotificationClass]
	return nc, ok
}
