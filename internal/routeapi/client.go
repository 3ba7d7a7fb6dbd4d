package routeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"tourway/internal/model"
)

// Client talks to the route backend that owns circuit/POI/trace persistence.
// The engine never stores any of this itself.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a route API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// TraceEvent is a persisted trace entry returned by the route backend
type TraceEvent struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	POIIDs    []string  `json:"poiIds,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// RoutePayload is the server-side truth of a route at session start
type RoutePayload struct {
	RouteID       string         `json:"routeId"`
	POIs          []model.POIRef `json:"pois"`
	VisitedTraces []TraceEvent   `json:"visitedTraces"`
	RemovedTraces []TraceEvent   `json:"removedTraces"`
}

// GetRoute fetches the current server-side state of a route
func (c *Client) GetRoute(ctx context.Context, routeID string) (*RoutePayload, error) {
	url := fmt.Sprintf("%s/routes/%s", c.baseURL, routeID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("routeapi: failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("routeapi: get route %s: %w", routeID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("routeapi: get route %s: unexpected status %d", routeID, resp.StatusCode)
	}

	var payload RoutePayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("routeapi: decode route %s: %w", routeID, err)
	}

	return &payload, nil
}

// PostTrace persists a GPS breadcrumb. A trace carrying POI ids is the call
// that marks those POIs visited on the server.
func (c *Client) PostTrace(ctx context.Context, routeID string, tp model.TracePoint) error {
	url := fmt.Sprintf("%s/routes/%s/traces", c.baseURL, routeID)
	return c.post(ctx, url, tp)
}

// RemovePOI asks the server to drop a POI from the active route
func (c *Client) RemovePOI(ctx context.Context, routeID, poiID string) error {
	url := fmt.Sprintf("%s/routes/%s/pois/%s/remove", c.baseURL, routeID, poiID)
	return c.post(ctx, url, nil)
}

// AddPOI reverses a previous removal on the server
func (c *Client) AddPOI(ctx context.Context, routeID, poiID string) error {
	url := fmt.Sprintf("%s/routes/%s/pois/%s/add", c.baseURL, routeID, poiID)
	return c.post(ctx, url, nil)
}

func (c *Client) post(ctx context.Context, url string, body interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("routeapi: marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return fmt.Errorf("routeapi: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("routeapi: post %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("routeapi: post %s: unexpected status %d", url, resp.StatusCode)
	}

	return nil
}
