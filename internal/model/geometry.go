package model

import "github.com/paulmach/orb"

// Connector ties an off-path POI to the nearest point of the walking path
type Connector struct {
	POIID string    `json:"poiId"`
	From  orb.Point `json:"from"`
	To    orb.Point `json:"to"`
}

// RouteGeometry is the derived shape of the remaining route. Never persisted,
// recomputed when the remaining-POI set changes.
type RouteGeometry struct {
	Line       orb.LineString `json:"line"`
	Connectors []Connector    `json:"connectors"`
}

// Empty reports whether the geometry carries no drawable path
func (g RouteGeometry) Empty() bool {
	return len(g.Line) < 2
}
