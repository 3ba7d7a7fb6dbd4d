package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"tourway/internal/clock"
	"tourway/internal/config"
	"tourway/internal/model"
	"tourway/internal/routeapi"
	"tourway/internal/service/routeplan"
	"tourway/internal/service/tracker"
	"tourway/internal/util"
)

// Error kinds surfaced by a session. All are recoverable: none of them ends
// the navigation session.
var (
	ErrRouteLoad    = errors.New("session: route load failed")
	ErrTraceSubmit  = errors.New("session: trace submission failed")
	ErrVisitConfirm = errors.New("session: visit confirmation rejected")
	ErrRemoval      = errors.New("session: poi removal failed")
	ErrAddition     = errors.New("session: poi addition failed")
)

// RouteSession owns one active guided route: the ordered POI list with
// per-POI state, the dwell tracker, trace throttling, the periodic server
// refresh, and the current route geometry. One session per route per device.
type RouteSession struct {
	mu      sync.Mutex
	routeID string
	pois    []model.POIRef
	states  map[string]model.POIState

	clk     clock.Clock
	api     *routeapi.Client
	planner *routeplan.Recomputer
	trk     *tracker.VisitTracker

	geometry    model.RouteGeometry
	recomputing bool

	lastTraceAt    time.Time
	lastPositionAt time.Time
	lastPos        model.Position
	hasPos         bool

	lastErr string
	closed  bool
	stopCh  chan struct{}
}

// Start fetches the server-side truth of the route and builds a running
// session from it. The caller must not proceed to navigation until this
// resolves.
func Start(ctx context.Context, routeID string, api *routeapi.Client, planner *routeplan.Recomputer, clk clock.Clock) (*RouteSession, error) {
	payload, err := api.GetRoute(ctx, routeID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRouteLoad, err)
	}

	s := &RouteSession{
		routeID: routeID,
		pois:    make([]model.POIRef, len(payload.POIs)),
		states:  make(map[string]model.POIState, len(payload.POIs)),
		clk:     clk,
		api:     api,
		planner: planner,
		stopCh:  make(chan struct{}),
	}

	copy(s.pois, payload.POIs)
	sort.SliceStable(s.pois, func(i, j int) bool {
		return s.pois[i].Order < s.pois[j].Order
	})

	for _, poi := range s.pois {
		s.states[poi.ID] = model.POIStatePending
	}
	for _, trace := range payload.VisitedTraces {
		for _, id := range trace.POIIDs {
			if _, ok := s.states[id]; ok {
				s.states[id] = model.POIStateVisited
			}
		}
	}
	for _, trace := range payload.RemovedTraces {
		for _, id := range trace.POIIDs {
			if _, ok := s.states[id]; ok {
				s.states[id] = model.POIStateRemoved
			}
		}
	}

	// The trace throttle gate opens one interval after session start
	now := clk.Now()
	s.lastTraceAt = now
	s.lastPositionAt = now

	s.trk = tracker.New(clk, s.handleVisited)
	for _, poi := range s.pois {
		if !s.states[poi.ID].Terminal() {
			s.trk.Track(poi)
		}
	}
	s.trk.Start()

	go s.refreshLoop()

	log.Printf("Session started for route %s with %d POIs", routeID, len(s.pois))
	return s, nil
}

// RouteID returns the route this session navigates
func (s *RouteSession) RouteID() string {
	return s.routeID
}

// OnPosition is the single entry point for location fixes. It drives the
// dwell tracker and the throttled background trace, and never blocks on
// network calls.
func (s *RouteSession) OnPosition(pos model.Position) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	now := s.clk.Now()
	s.lastPositionAt = now
	first := !s.hasPos
	s.lastPos = pos
	s.hasPos = true

	sendTrace := now.Sub(s.lastTraceAt) >= config.TraceInterval
	if sendTrace {
		// Gate moves forward before the async submit so bursty calls
		// cannot double-fire within one window
		s.lastTraceAt = now
	}
	s.mu.Unlock()

	s.trk.Update(pos)

	if sendTrace {
		go s.submitTrace(pos, nil)
	}
	if first {
		// First fix makes the initial route shape computable
		s.triggerRecompute()
	}
}

// RemovePOI marks a POI removed, cancels its dwell timer and informs the
// server. Removing an already-removed POI is a no-op.
func (s *RouteSession) RemovePOI(ctx context.Context, poiID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	state, ok := s.states[poiID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: unknown poi %s", ErrRemoval, poiID)
	}
	if state.Terminal() {
		s.mu.Unlock()
		return nil
	}

	prev := state
	s.states[poiID] = model.POIStateRemoved
	s.trk.Untrack(poiID)
	s.mu.Unlock()

	if err := s.api.RemovePOI(ctx, s.routeID, poiID); err != nil {
		// Roll back to match the last known server state
		s.mu.Lock()
		if !s.closed {
			s.states[poiID] = prev
			if poi, found := s.poiByID(poiID); found {
				s.trk.Track(poi)
			}
			s.lastErr = fmt.Sprintf("removal of %s failed: %v", poiID, err)
		}
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrRemoval, err)
	}

	s.triggerRecompute()
	return nil
}

// AddPOI reverses a previous removal: the POI returns to pending with a
// fresh dwell lifecycle.
func (s *RouteSession) AddPOI(ctx context.Context, poiID string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	state, ok := s.states[poiID]
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: unknown poi %s", ErrAddition, poiID)
	}
	if state != model.POIStateRemoved {
		s.mu.Unlock()
		return nil
	}

	s.states[poiID] = model.POIStatePending
	poi, _ := s.poiByID(poiID)
	s.trk.Track(poi)
	s.mu.Unlock()

	if err := s.api.AddPOI(ctx, s.routeID, poiID); err != nil {
		s.mu.Lock()
		if !s.closed {
			s.states[poiID] = model.POIStateRemoved
			s.trk.Untrack(poiID)
			s.lastErr = fmt.Sprintf("re-adding %s failed: %v", poiID, err)
		}
		s.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrAddition, err)
	}

	s.triggerRecompute()
	return nil
}

// Completed reports whether every POI is visited or removed. Derived, never
// stored.
func (s *RouteSession) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, poi := range s.pois {
		if !s.states[poi.ID].Terminal() {
			return false
		}
	}
	return len(s.pois) > 0
}

// StateOf returns the current state of one POI
func (s *RouteSession) StateOf(poiID string) (model.POIState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.states[poiID]
	if !ok {
		return 0, false
	}
	if state == model.POIStatePending {
		if _, visiting := s.trk.Visiting(poiID); visiting {
			return model.POIStateVisiting, true
		}
	}
	return state, true
}

// Statuses returns a snapshot of every POI with its effective state, in
// route order
func (s *RouteSession) Statuses() []model.POIStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make([]model.POIStatus, 0, len(s.pois))
	for _, poi := range s.pois {
		state := s.states[poi.ID]
		var remaining float64
		if state == model.POIStatePending {
			if left, visiting := s.trk.Visiting(poi.ID); visiting {
				state = model.POIStateVisiting
				remaining = left.Seconds()
			}
		}
		statuses = append(statuses, model.POIStatus{
			POI:              poi,
			State:            state,
			StateName:        state.String(),
			RemainingSeconds: remaining,
		})
	}
	return statuses
}

// Geometry returns the latest computed route shape. The previous shape is
// retained while a recompute is in flight or after a routing failure.
func (s *RouteSession) Geometry() model.RouteGeometry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.geometry
}

// LastError returns the most recent recoverable error, empty when none
func (s *RouteSession) LastError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// LastActivity returns the time of the most recent position fix
func (s *RouteSession) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPositionAt
}

// Recompute is the explicit trigger for refreshing the route shape
func (s *RouteSession) Recompute() {
	s.triggerRecompute()
}

// Close tears the session down: all dwell timers are cancelled, the refresh
// loop stops and late async completions are suppressed. Idempotent.
func (s *RouteSession) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	s.trk.Stop()
	close(s.stopCh)

	log.Printf("Session closed for route %s", s.routeID)
}

// handleVisited fires when a dwell timer completes. The visit only becomes
// durable once the server accepts the trace that carries the POI id.
func (s *RouteSession) handleVisited(poiID string, pos model.Position) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	if s.states[poiID] != model.POIStatePending {
		s.mu.Unlock()
		return
	}
	// Visiting here means "dwell complete, awaiting server confirmation"
	s.states[poiID] = model.POIStateVisiting
	s.mu.Unlock()

	go s.confirmVisit(poiID, pos)
}

func (s *RouteSession) confirmVisit(poiID string, pos model.Position) {
	tp := model.TracePoint{
		ID:        util.ShortUUID(),
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		POIIDs:    []string{poiID},
		CreatedAt: s.clk.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := s.api.PostTrace(ctx, s.routeID, tp)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	if s.states[poiID] != model.POIStateVisiting {
		// A removal or a server refresh settled this POI while the
		// confirmation was in flight; terminal states never regress
		return
	}

	if err != nil {
		// Dwell credit is discarded: the user must re-enter proximity
		// and re-dwell the full duration
		s.states[poiID] = model.POIStatePending
		if poi, found := s.poiByID(poiID); found {
			s.trk.Track(poi)
		}
		s.lastErr = fmt.Sprintf("visit of %s not confirmed: %v", poiID, err)
		log.Printf("Route %s: %v: %v", s.routeID, ErrVisitConfirm, err)
		return
	}

	s.states[poiID] = model.POIStateVisited
	log.Printf("Route %s: POI %s visited", s.routeID, poiID)

	go s.triggerRecompute()
}

// submitTrace posts a background breadcrumb. Failures are logged and
// surfaced but never block navigation.
func (s *RouteSession) submitTrace(pos model.Position, poiIDs []string) {
	tp := model.TracePoint{
		ID:        util.ShortUUID(),
		Latitude:  pos.Latitude,
		Longitude: pos.Longitude,
		POIIDs:    poiIDs,
		CreatedAt: s.clk.Now(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.api.PostTrace(ctx, s.routeID, tp); err != nil {
		s.mu.Lock()
		if !s.closed {
			s.lastErr = fmt.Sprintf("trace submit failed: %v", err)
		}
		s.mu.Unlock()
		log.Printf("Route %s: %v: %v", s.routeID, ErrTraceSubmit, err)
	}
}

// triggerRecompute refreshes the route shape from the current position and
// the remaining POIs. Bound to POI-set transitions and explicit triggers,
// never to position ticks.
func (s *RouteSession) triggerRecompute() {
	s.mu.Lock()
	if s.closed || s.recomputing || !s.hasPos || s.planner == nil {
		s.mu.Unlock()
		return
	}
	s.recomputing = true
	pos := s.lastPos

	var remaining []model.POIRef
	for _, poi := range s.pois {
		if !s.states[poi.ID].Terminal() {
			remaining = append(remaining, poi)
		}
	}
	s.mu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		geometry, err := s.planner.Compute(ctx, s.routeID, pos, remaining)

		s.mu.Lock()
		defer s.mu.Unlock()

		s.recomputing = false
		if s.closed {
			return
		}
		if err != nil {
			// Keep the previous geometry on screen; the user can retry
			s.lastErr = fmt.Sprintf("route recompute failed: %v", err)
			log.Printf("Route %s: recompute failed: %v", s.routeID, err)
			return
		}
		s.geometry = geometry
	}()
}

// refreshLoop periodically re-fetches the server-side route state while the
// session is alive. Owned by the session; stops on Close.
func (s *RouteSession) refreshLoop() {
	ticker := time.NewTicker(config.RouteRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.refresh()
		}
	}
}

// refresh merges server-side visited/removed facts into local state. The
// merge is monotonic: a POI never regresses out of a terminal state.
func (s *RouteSession) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	payload, err := s.api.GetRoute(ctx, s.routeID)
	if err != nil {
		log.Printf("Route %s: refresh failed: %v", s.routeID, err)
		return
	}

	changed := false
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	apply := func(ids []string, target model.POIState) {
		for _, id := range ids {
			state, ok := s.states[id]
			if !ok || state.Terminal() {
				continue
			}
			s.states[id] = target
			s.trk.Untrack(id)
			changed = true
		}
	}
	for _, trace := range payload.VisitedTraces {
		apply(trace.POIIDs, model.POIStateVisited)
	}
	for _, trace := range payload.RemovedTraces {
		apply(trace.POIIDs, model.POIStateRemoved)
	}
	s.mu.Unlock()

	if changed {
		s.triggerRecompute()
	}
}

// poiByID must be called with the session lock held
func (s *RouteSession) poiByID(poiID string) (model.POIRef, bool) {
	for _, poi := range s.pois {
		if poi.ID == poiID {
			return poi, true
		}
	}
	return model.POIRef{}, false
}
