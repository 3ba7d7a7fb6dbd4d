package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tourway/internal/util"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Client requests walking-profile paths from an OSRM-shaped routing service
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a routing service client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type routeResponse struct {
	Code   string `json:"code"`
	Routes []struct {
		Geometry json.RawMessage `json:"geometry"`
	} `json:"routes"`
}

// Walk returns the walking path through the given lon/lat coordinates in
// order. The service may answer with GeoJSON or an encoded polyline; both are
// normalized to an orb.LineString.
func (c *Client) Walk(ctx context.Context, coords []orb.Point) (orb.LineString, error) {
	if len(coords) < 2 {
		return nil, fmt.Errorf("routing: need at least 2 coordinates, got %d", len(coords))
	}

	pairs := make([]string, len(coords))
	for i, pt := range coords {
		pairs[i] = fmt.Sprintf("%f,%f", pt[0], pt[1])
	}
	url := fmt.Sprintf("%s/route/v1/foot/%s?overview=full&geometries=geojson",
		c.baseURL, strings.Join(pairs, ";"))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("routing: failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routing: walk request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routing: walk request: unexpected status %d", resp.StatusCode)
	}

	var decoded routeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("routing: decode response: %w", err)
	}

	if decoded.Code != "Ok" || len(decoded.Routes) == 0 {
		return nil, fmt.Errorf("routing: service returned code %q with %d routes",
			decoded.Code, len(decoded.Routes))
	}

	return parseGeometry(decoded.Routes[0].Geometry)
}

// parseGeometry accepts either a GeoJSON LineString object or an encoded
// polyline string
func parseGeometry(raw json.RawMessage) (orb.LineString, error) {
	trimmed := strings.TrimSpace(string(raw))
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("routing: empty geometry")
	}

	if trimmed[0] == '"' {
		var encoded string
		if err := json.Unmarshal(raw, &encoded); err != nil {
			return nil, fmt.Errorf("routing: decode polyline geometry: %w", err)
		}
		latLngs := util.DecodePolyline(encoded)
		line := make(orb.LineString, len(latLngs))
		for i, ll := range latLngs {
			line[i] = orb.Point{ll[1], ll[0]}
		}
		return line, nil
	}

	geom, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, fmt.Errorf("routing: decode geojson geometry: %w", err)
	}

	line, ok := geom.Geometry().(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("routing: unexpected geometry type %s", geom.Type)
	}

	return line, nil
}
