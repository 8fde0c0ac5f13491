package engine

import (
	"strings"
)

// Hub is a fixed trading location: a market region and the station inside it.
type Hub struct {
	Name      string `json:"name"`
	RegionID  int32  `json:"region_id"`
	StationID int64  `json:"station_id"`
}

var defaultHubs = []Hub{
	{Name: "Jita", RegionID: 10000002, StationID: 60003760},
	{Name: "Amarr", RegionID: 10000043, StationID: 60008494},
	{Name: "Rens", RegionID: 10000030, StationID: 60004588},
	{Name: "Dodixie", RegionID: 10000032, StationID: 60011866},
	{Name: "Hek", RegionID: 10000042, StationID: 60005686},
}

// DefaultHubs returns the five main trade hubs in display order.
func DefaultHubs() []Hub {
	out := make([]Hub, len(defaultHubs))
	copy(out, defaultHubs)
	return out
}

// HubNames lists hub names in order.
func HubNames(hubs []Hub) []string {
	names := make([]string, len(hubs))
	for i, h := range hubs {
		names[i] = h.Name
	}
	return names
}

// FindHub resolves a hub by name, case-insensitively.
func FindHub(hubs []Hub, name string) (Hub, error) {
	name = strings.TrimSpace(name)
	for _, h := range hubs {
		if strings.EqualFold(h.Name, name) {
			return h, nil
		}
	}
	return Hub{}, &HubError{Name: name}
}

// hubByStation maps station id to hub.
func hubByStation(hubs []Hub) map[int64]Hub {
	m := make(map[int64]Hub, len(hubs))
	for _, h := range hubs {
		m[h.StationID] = h
	}
	return m
}
