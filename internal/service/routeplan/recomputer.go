package routeplan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"

	"tourway/internal/config"
	"tourway/internal/model"
	redis_client "tourway/internal/redis"
	"tourway/internal/routing"
	"tourway/internal/util"

	"github.com/paulmach/orb"
)

// ErrRoutingService marks a failed walking-path computation. Recoverable:
// the caller keeps the previous geometry and may retry.
var ErrRoutingService = errors.New("routeplan: routing service failed")

const geometryCachePrefix = "routegeom"

// Recomputer derives the walking route through the remaining POIs from the
// current device position, plus a connector segment tying each POI to the
// nearest point of the path.
type Recomputer struct {
	router *routing.Client
}

// NewRecomputer creates a recomputer backed by a routing client
func NewRecomputer(router *routing.Client) *Recomputer {
	return &Recomputer{router: router}
}

// Compute builds the ordered coordinate chain [current, remaining...] and
// requests a walking path through it. An empty remaining set yields an empty
// geometry without error: the route is done, there is nothing to draw.
func (r *Recomputer) Compute(ctx context.Context, routeID string, current model.Position, remaining []model.POIRef) (model.RouteGeometry, error) {
	if len(remaining) == 0 {
		return model.RouteGeometry{}, nil
	}

	key := cacheKey(routeID, remaining)
	if cached, ok := fromCache(key); ok {
		return cached, nil
	}

	coords := make([]orb.Point, 0, len(remaining)+1)
	coords = append(coords, orb.Point{current.Longitude, current.Latitude})
	for _, poi := range remaining {
		coords = append(coords, orb.Point{poi.Longitude, poi.Latitude})
	}

	line, err := r.router.Walk(ctx, coords)
	if err != nil {
		return model.RouteGeometry{}, fmt.Errorf("%w: %v", ErrRoutingService, err)
	}
	if len(line) < 2 {
		return model.RouteGeometry{}, fmt.Errorf("%w: path has %d coordinates", ErrRoutingService, len(line))
	}

	geometry := model.RouteGeometry{
		Line:       line,
		Connectors: deriveConnectors(line, remaining),
	}

	toCache(key, geometry)
	return geometry, nil
}

// deriveConnectors finds, for each POI, the nearest point on the path
// polyline by scanning every segment
func deriveConnectors(line orb.LineString, pois []model.POIRef) []model.Connector {
	connectors := make([]model.Connector, 0, len(pois))

	for _, poi := range pois {
		p := orb.Point{poi.Longitude, poi.Latitude}

		best := line[0]
		bestDist := util.HaversineDistance(poi.Latitude, poi.Longitude, best[1], best[0])

		for i := 0; i < len(line)-1; i++ {
			candidate := util.NearestPointOnSegment(p, line[i], line[i+1])
			dist := util.HaversineDistance(poi.Latitude, poi.Longitude, candidate[1], candidate[0])
			if dist < bestDist {
				best = candidate
				bestDist = dist
			}
		}

		connectors = append(connectors, model.Connector{
			POIID: poi.ID,
			From:  p,
			To:    best,
		})
	}

	return connectors
}

// cacheKey fingerprints the route plus the ordered remaining-POI set. The
// device position is deliberately not part of the key: recomputes are bound
// to POI-set transitions, and the cache TTL bounds staleness.
func cacheKey(routeID string, remaining []model.POIRef) string {
	ids := make([]string, len(remaining))
	for i, poi := range remaining {
		ids[i] = poi.ID
	}
	return fmt.Sprintf("%s:%s:%s", geometryCachePrefix, routeID, strings.Join(ids, ","))
}

func fromCache(key string) (model.RouteGeometry, bool) {
	if redis_client.GetClient() == nil {
		return model.RouteGeometry{}, false
	}

	data, err := redis_client.Get(key)
	if err != nil {
		return model.RouteGeometry{}, false
	}

	var geometry model.RouteGeometry
	if err := json.Unmarshal([]byte(data), &geometry); err != nil {
		log.Printf("Dropping unreadable cached geometry for %s: %v", key, err)
		return model.RouteGeometry{}, false
	}

	return geometry, true
}

func toCache(key string, geometry model.RouteGeometry) {
	if redis_client.GetClient() == nil {
		return
	}

	data, err := json.Marshal(geometry)
	if err != nil {
		return
	}
	if err := redis_client.Set(key, data, config.GeometryCacheTTL); err != nil {
		log.Printf("Failed to cache geometry for %s: %v", key, err)
	}
}
