package app

import (
	"encoding/json"
	"net/http"
)

type deviceView struct {
	ID      int    `json:"id"`
	Name    string `json:"name,omitempty"`
	Host    string `json:"host"`
	Port    int    `json:"port"`
	APDU    int    `json:"apdu"`
	ReadApp string `json:"read_app"`
}

type groupView struct {
	Collector int          `json:"collector"`
	Port      int          `json:"port"`
	Objects   int          `json:"objects"`
	Devices   []deviceView `json:"devices"`
}

// HandleGroups lists the port groups with their devices, one per collector.
func (g *Gateway) HandleGroups(w http.ResponseWriter, _ *http.Request) {
	out := make([]groupView, 0, len(g.Groups))
	for i, grp := range g.Groups {
		v := groupView{Collector: i + 1, Port: grp.Port, Objects: grp.Objects(), Devices: []deviceView{}}
		for _, d := range grp.Devices {
			v.Devices = append(v.Devices, deviceView{
				ID: d.ID, Name: d.Name, Host: d.Host, Port: d.Port, APDU: d.APDU, ReadApp: d.ReadApp,
			})
		}
		out = append(out, v)
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(out)
}
