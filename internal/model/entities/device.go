package entities

import (
	"encoding/json"
	"fmt"

	"github.com/LeonardoBeccarini/bacnet_gateway/pkg/bacnet"
)

// Device is a BACnet controller as described by the server. Host, port and
// the read tool come from the JSON stored in its configuration-files property.
type Device struct {
	ID      int
	Name    string
	Host    string
	Port    int
	APDU    int
	ReadApp string
}

type deviceConfig struct {
	Host    string `json:"host"`
	Port    int    `json:"port"`
	ReadApp string `json:"read_app"`
}

func NewDevice(raw map[string]any) (*Device, error) {
	props := toPropertyMap(raw)
	id, ok := intProp(props, bacnet.PropObjectIdentifier)
	if !ok {
		return nil, fmt.Errorf("device: object-identifier: %w", ErrMissingProperty)
	}
	d := &Device{ID: id}
	d.Name, _ = props[bacnet.PropObjectName].(string)
	d.APDU, _ = intProp(props, bacnet.PropMaxAPDULengthAccepted)

	var cfg deviceConfig
	switch v := props[bacnet.PropConfigurationFiles].(type) {
	case string:
		if v != "" {
			if err := json.Unmarshal([]byte(v), &cfg); err != nil {
				return nil, fmt.Errorf("device %d: configuration-files: %w", id, err)
			}
		}
	case map[string]any:
		b, _ := json.Marshal(v)
		_ = json.Unmarshal(b, &cfg)
	}
	d.Host, d.Port, d.ReadApp = cfg.Host, cfg.Port, cfg.ReadApp
	return d, nil
}

// Record converts the device to its address table row.
func (d *Device) Record() bacnet.DeviceRecord {
	return bacnet.DeviceRecord{ID: d.ID, Host: d.Host, Port: d.Port, APDU: d.APDU}
}

func (d *Device) String() string {
	return fmt.Sprintf("device %d (%s:%d)", d.ID, d.Host, d.Port)
}
