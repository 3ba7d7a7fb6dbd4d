package config

import "time"

// Visit detection
const (
	// ProximityDistanceMeters is the radius around a POI inside which a
	// dwell timer may run
	ProximityDistanceMeters = 15.0

	// VisitDuration is how long the device must stay continuously inside
	// the proximity radius before the POI counts as visited
	VisitDuration = 30 * time.Second

	// DwellTickInterval defines how often active dwell timers are checked.
	// Promotion depends on elapsed wall time, not on tick count.
	DwellTickInterval = 200 * time.Millisecond
)

// Session cadences
const (
	// TraceInterval throttles background GPS breadcrumb submission
	TraceInterval = 30 * time.Second

	// RouteRefreshInterval defines how often the session re-fetches route
	// state from the route API
	RouteRefreshInterval = 5 * time.Second

	// SessionJanitorInterval defines how often the janitor worker scans
	// for idle sessions
	SessionJanitorInterval = time.Minute

	// SessionIdleTTL is how long a session may go without a position fix
	// before the janitor closes it
	SessionIdleTTL = 10 * time.Minute

	// GeometryCacheTTL bounds how long a computed walking path stays in Redis
	GeometryCacheTTL = 60 * time.Second
)

// Default map frame used when there is nothing to fit
const (
	DefaultCenterLat = 50.4501
	DefaultCenterLng = 30.5234
	DefaultZoom      = 13
)
