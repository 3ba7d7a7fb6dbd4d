package mapview

import (
	"tourway/internal/model"
	"tourway/internal/util"

	"github.com/paulmach/orb"
)

// mapview projects session state into renderable map primitives. Everything
// here is a pure function of its inputs and safe to call on every render.

// ToMarkers categorizes each POI by its current state into a visual class
func ToMarkers(statuses []model.POIStatus) []model.Marker {
	markers := make([]model.Marker, 0, len(statuses))

	for _, status := range statuses {
		markers = append(markers, model.Marker{
			POIID:            status.POI.ID,
			Title:            status.POI.Title,
			Latitude:         status.POI.Latitude,
			Longitude:        status.POI.Longitude,
			ImageURL:         status.POI.ImageURL,
			Category:         categoryFor(status.State),
			RemainingSeconds: status.RemainingSeconds,
		})
	}

	return markers
}

// ToPathLayer turns a route geometry into a drawable line layer. An empty
// geometry yields an empty layer, never nil panics.
func ToPathLayer(geometry model.RouteGeometry) model.LineLayer {
	layer := model.LineLayer{
		Coordinates: make([]orb.Point, len(geometry.Line)),
		Connectors:  make([]model.Connector, len(geometry.Connectors)),
	}
	copy(layer.Coordinates, geometry.Line)
	copy(layer.Connectors, geometry.Connectors)
	return layer
}

// Frame computes the map frame that fits every non-removed POI
func Frame(statuses []model.POIStatus) model.MapFrame {
	var points []orb.Point
	for _, status := range statuses {
		if status.State == model.POIStateRemoved {
			continue
		}
		points = append(points, orb.Point{status.POI.Longitude, status.POI.Latitude})
	}

	center, zoom := util.BoundingCenterAndZoom(points)
	return model.MapFrame{
		CenterLat: center[1],
		CenterLng: center[0],
		Zoom:      zoom,
	}
}

func categoryFor(state model.POIState) model.MarkerCategory {
	switch state {
	case model.POIStateVisited:
		return model.MarkerVisited
	case model.POIStateRemoved:
		return model.MarkerRemoved
	case model.POIStateVisiting:
		return model.MarkerVisiting
	}
	return model.MarkerRemaining
}
