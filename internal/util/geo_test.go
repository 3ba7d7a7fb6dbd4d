package util

import (
	"math"
	"testing"

	"tourway/internal/config"

	"github.com/paulmach/orb"
)

func TestHaversineDistance_EquatorDegree(t *testing.T) {
	// 0.001 degrees of longitude at the equator is roughly 111 meters
	d := HaversineDistance(0, 0, 0, 0.001)
	if d < 110 || d > 112 {
		t.Fatalf("unexpected distance: %v", d)
	}
}

func TestHaversineDistance_ZeroForSamePoint(t *testing.T) {
	d := HaversineDistance(50.45, 30.52, 50.45, 30.52)
	if d > 1e-6 {
		t.Fatalf("expected ~0, got %v", d)
	}
}

func TestNearestPointOnSegment_Idempotent(t *testing.T) {
	a := orb.Point{0, 0}
	b := orb.Point{1, 0}
	onSegment := orb.Point{0.25, 0}

	got := NearestPointOnSegment(onSegment, a, b)
	if math.Abs(got[0]-0.25) > 1e-12 || math.Abs(got[1]) > 1e-12 {
		t.Fatalf("projection of an on-segment point moved: %v", got)
	}
}

func TestNearestPointOnSegment_ProjectsPerpendicular(t *testing.T) {
	a := orb.Point{0, 0}
	b := orb.Point{1, 0}
	p := orb.Point{0.5, 0.3}

	got := NearestPointOnSegment(p, a, b)
	if math.Abs(got[0]-0.5) > 1e-12 || math.Abs(got[1]) > 1e-12 {
		t.Fatalf("expected (0.5,0), got %v", got)
	}
}

func TestNearestPointOnSegment_ClampsToEndpoints(t *testing.T) {
	a := orb.Point{0, 0}
	b := orb.Point{1, 0}

	before := NearestPointOnSegment(orb.Point{-2, 1}, a, b)
	if before != a {
		t.Errorf("expected clamp to a, got %v", before)
	}

	after := NearestPointOnSegment(orb.Point{3, -1}, a, b)
	if after != b {
		t.Errorf("expected clamp to b, got %v", after)
	}
}

func TestNearestPointOnSegment_DegenerateSegment(t *testing.T) {
	a := orb.Point{2, 2}
	got := NearestPointOnSegment(orb.Point{5, 5}, a, a)
	if got != a {
		t.Fatalf("expected a for degenerate segment, got %v", got)
	}
}

func TestBoundingCenterAndZoom_EmptyInputYieldsDefaults(t *testing.T) {
	center, zoom := BoundingCenterAndZoom(nil)

	if center[0] != config.DefaultCenterLng || center[1] != config.DefaultCenterLat {
		t.Errorf("expected default center, got %v", center)
	}
	if zoom != config.DefaultZoom {
		t.Errorf("expected default zoom %d, got %d", config.DefaultZoom, zoom)
	}
}

func TestBoundingCenterAndZoom_CenterIsMidpoint(t *testing.T) {
	points := []orb.Point{{30.50, 50.40}, {30.54, 50.48}}

	center, _ := BoundingCenterAndZoom(points)
	if math.Abs(center[0]-30.52) > 1e-9 || math.Abs(center[1]-50.44) > 1e-9 {
		t.Fatalf("unexpected center: %v", center)
	}
}

func TestBoundingCenterAndZoom_ZoomBuckets(t *testing.T) {
	cases := []struct {
		name string
		span float64
		want int
	}{
		{"tight", 0.005, 15},
		{"small", 0.03, 14},
		{"medium", 0.08, 13},
		{"wide", 0.5, 12},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			points := []orb.Point{{0, 0}, {tc.span, 0}}
			_, zoom := BoundingCenterAndZoom(points)
			if zoom != tc.want {
				t.Errorf("span %v: expected zoom %d, got %d", tc.span, tc.want, zoom)
			}
		})
	}
}
