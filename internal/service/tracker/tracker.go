package tracker

import (
	"sync"
	"time"

	"tourway/internal/clock"
	"tourway/internal/config"
	"tourway/internal/model"
	"tourway/internal/util"
)

// VisitedFunc is invoked when a POI completes its dwell timer. It runs outside
// the tracker lock and may call back into the tracker.
type VisitedFunc func(poiID string, pos model.Position)

// dwell is one active proximity timer. Owned exclusively by the tracker;
// callers only ever see start/cancel effects keyed by POI id.
type dwell struct {
	startedAt time.Time
}

// VisitTracker runs the per-POI dwell state machine over a stream of position
// fixes. A POI is promoted after staying continuously inside the proximity
// radius for the configured dwell duration. Promotion depends only on elapsed
// wall time; the periodic tick exists so a motionless device still promotes
// even when the location provider goes quiet.
type VisitTracker struct {
	mu        sync.Mutex
	clk       clock.Clock
	pois      map[string]model.POIRef
	dwells    map[string]*dwell
	onVisited VisitedFunc

	lastPos model.Position
	hasPos  bool

	ticker  *time.Ticker
	stopCh  chan struct{}
	started bool
	stopped bool
}

// New creates a tracker. POIs are registered with Track; promotion is
// reported through onVisited.
func New(clk clock.Clock, onVisited VisitedFunc) *VisitTracker {
	return &VisitTracker{
		clk:       clk,
		pois:      make(map[string]model.POIRef),
		dwells:    make(map[string]*dwell),
		onVisited: onVisited,
		stopCh:    make(chan struct{}),
	}
}

// Track registers a POI for proximity checks. Tracking an already-tracked POI
// is a no-op.
func (t *VisitTracker) Track(poi model.POIRef) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	if _, exists := t.pois[poi.ID]; exists {
		return
	}
	t.pois[poi.ID] = poi
}

// Untrack stops proximity checks for a POI and cancels any active dwell
// timer. Idempotent and safe to call from the position-update path.
func (t *VisitTracker) Untrack(poiID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.pois, poiID)
	delete(t.dwells, poiID)
}

// Tracked reports whether the POI is currently subject to distance checks
func (t *VisitTracker) Tracked(poiID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.pois[poiID]
	return ok
}

// Visiting returns the remaining dwell time for a POI, and whether a dwell
// timer is active for it at all
func (t *VisitTracker) Visiting(poiID string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, ok := t.dwells[poiID]
	if !ok {
		return 0, false
	}

	remaining := config.VisitDuration - t.clk.Now().Sub(d.startedAt)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// Update feeds one position fix through the state machine: starts dwell
// timers for POIs that came into range, cancels timers for POIs that left
// range (no partial credit), then promotes any timer whose dwell duration has
// elapsed. Safe to call rapidly from a bursty location stream.
func (t *VisitTracker) Update(pos model.Position) {
	t.mu.Lock()

	if t.stopped {
		t.mu.Unlock()
		return
	}

	t.lastPos = pos
	t.hasPos = true
	now := t.clk.Now()

	for id, poi := range t.pois {
		distance := util.HaversineDistance(pos.Latitude, pos.Longitude, poi.Latitude, poi.Longitude)
		if distance <= config.ProximityDistanceMeters {
			if _, running := t.dwells[id]; !running {
				t.dwells[id] = &dwell{startedAt: now}
			}
		} else {
			// Leaving the radius discards the timer; re-entry restarts
			// the full dwell
			delete(t.dwells, id)
		}
	}

	promoted := t.promoteLocked(now)
	t.mu.Unlock()

	t.report(promoted, pos)
}

// Start launches the periodic dwell check. Without it, promotion would only
// happen on position fixes.
func (t *VisitTracker) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.started || t.stopped {
		return
	}
	t.started = true
	t.ticker = time.NewTicker(config.DwellTickInterval)

	go func() {
		for {
			select {
			case <-t.ticker.C:
				t.tick()
			case <-t.stopCh:
				return
			}
		}
	}()
}

// Stop cancels all dwell timers and halts the tick loop. Idempotent; after
// Stop the tracker ignores further updates.
func (t *VisitTracker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.stopped = true
	t.dwells = make(map[string]*dwell)

	if t.ticker != nil {
		t.ticker.Stop()
	}
	close(t.stopCh)
}

// tick promotes dwell timers that have run their course since the last fix
func (t *VisitTracker) tick() {
	t.mu.Lock()

	if t.stopped || !t.hasPos {
		t.mu.Unlock()
		return
	}

	pos := t.lastPos
	promoted := t.promoteLocked(t.clk.Now())
	t.mu.Unlock()

	t.report(promoted, pos)
}

// promoteLocked collects POIs whose dwell time has elapsed. The final check
// deliberately does not re-measure distance: only an out-of-range fix aborts
// a running timer.
func (t *VisitTracker) promoteLocked(now time.Time) []string {
	var promoted []string
	for id, d := range t.dwells {
		if now.Sub(d.startedAt) >= config.VisitDuration {
			promoted = append(promoted, id)
		}
	}

	// Promotion is locally terminal: the POI leaves the tracked set and its
	// timer is torn down. The session re-tracks it if the server rejects
	// the visit.
	for _, id := range promoted {
		delete(t.dwells, id)
		delete(t.pois, id)
	}

	return promoted
}

func (t *VisitTracker) report(promoted []string, pos model.Position) {
	if t.onVisited == nil {
		return
	}
	for _, id := range promoted {
		t.onVisited(id, pos)
	}
}
