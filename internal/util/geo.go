package util

import (
	"tourway/internal/config"

	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
	"github.com/paulmach/orb"
)

// HaversineDistance returns the great-circle distance in meters between two
// lat/lng coordinates
func HaversineDistance(lat1, lng1, lat2, lng2 float64) float64 {
	// Convert coordinates from degrees to S2 points
	point1 := s2.PointFromLatLng(s2.LatLngFromDegrees(lat1, lng1))
	point2 := s2.PointFromLatLng(s2.LatLngFromDegrees(lat2, lng2))

	// Calculate angle between points
	angle := s1.Angle(s2.ChordAngleBetweenPoints(point1, point2).Angle())

	// Convert angle to distance on Earth's surface
	earthRadiusMeters := 6371000.0
	distanceMeters := angle.Radians() * earthRadiusMeters

	return distanceMeters
}

// NearestPointOnSegment projects p onto the segment a-b and clamps the result
// to the segment. Coordinates are treated as planar (lon/lat as Cartesian),
// which is a documented approximation acceptable at city scale.
func NearestPointOnSegment(p, a, b orb.Point) orb.Point {
	dx := b[0] - a[0]
	dy := b[1] - a[1]

	// Degenerate segment: both ends coincide
	if dx == 0 && dy == 0 {
		return a
	}

	t := ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / (dx*dx + dy*dy)
	if t < 0 {
		t = 0
	} else if t > 1 {
		t = 1
	}

	return orb.Point{a[0] + t*dx, a[1] + t*dy}
}

// BoundingCenterAndZoom computes the midpoint of the bounding box of points
// and a discrete zoom bucket from the larger lat/lon span. Empty input yields
// the configured default frame.
func BoundingCenterAndZoom(points []orb.Point) (orb.Point, int) {
	if len(points) == 0 {
		return orb.Point{config.DefaultCenterLng, config.DefaultCenterLat}, config.DefaultZoom
	}

	minLng, maxLng := points[0][0], points[0][0]
	minLat, maxLat := points[0][1], points[0][1]
	for _, pt := range points[1:] {
		if pt[0] < minLng {
			minLng = pt[0]
		}
		if pt[0] > maxLng {
			maxLng = pt[0]
		}
		if pt[1] < minLat {
			minLat = pt[1]
		}
		if pt[1] > maxLat {
			maxLat = pt[1]
		}
	}

	center := orb.Point{(minLng + maxLng) / 2, (minLat + maxLat) / 2}

	span := maxLng - minLng
	if latSpan := maxLat - minLat; latSpan > span {
		span = latSpan
	}

	var zoom int
	switch {
	case span < 0.01:
		zoom = 15
	case span < 0.05:
		zoom = 14
	case span < 0.1:
		zoom = 13
	default:
		zoom = 12
	}

	return center, zoom
}
