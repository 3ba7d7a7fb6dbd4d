package model

import "time"

// TracePoint is an append-only GPS breadcrumb posted to the route API.
// POIIDs is populated only on the trace that completes a dwell timer.
type TracePoint struct {
	ID        string    `json:"id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	POIIDs    []string  `json:"poiIds,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
