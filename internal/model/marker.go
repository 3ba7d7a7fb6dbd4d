package model

import "github.com/paulmach/orb"

// MarkerCategory is the visual class the host map uses for a POI marker
type MarkerCategory string

const (
	MarkerVisited   MarkerCategory = "visited"
	MarkerRemoved   MarkerCategory = "removed"
	MarkerVisiting  MarkerCategory = "visiting"
	MarkerRemaining MarkerCategory = "remaining"
)

// Marker is a renderable POI marker
type Marker struct {
	POIID            string         `json:"poiId"`
	Title            string         `json:"title"`
	Latitude         float64        `json:"latitude"`
	Longitude        float64        `json:"longitude"`
	ImageURL         string         `json:"imageUrl,omitempty"`
	Category         MarkerCategory `json:"category"`
	RemainingSeconds float64        `json:"remainingSeconds,omitempty"`
}

// LineLayer is the renderable form of a RouteGeometry
type LineLayer struct {
	Coordinates []orb.Point `json:"coordinates"`
	Connectors  []Connector `json:"connectors"`
}

// MapFrame tells the host map how to frame the route
type MapFrame struct {
	CenterLat float64 `json:"centerLat"`
	CenterLng float64 `json:"centerLng"`
	Zoom      int     `json:"zoom"`
}
