package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"tourway/internal/clock"
	"tourway/internal/model"
	"tourway/internal/routeapi"
)

// fakeRouteAPI is an httptest-backed stand-in for the route backend
type fakeRouteAPI struct {
	mu              sync.Mutex
	payload         routeapi.RoutePayload
	traceCount      int
	visitTraces     [][]string
	failVisitTraces bool
	failAllTraces   bool
	failRemove      bool
	failAdd         bool
	visitTraceGate  chan struct{}
	server          *httptest.Server
}

func newFakeRouteAPI(pois ...model.POIRef) *fakeRouteAPI {
	f := &fakeRouteAPI{
		payload: routeapi.RoutePayload{RouteID: "r1", POIs: pois},
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

func (f *fakeRouteAPI) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(f.payload)

	case strings.HasSuffix(r.URL.Path, "/traces"):
		var tp model.TracePoint
		if err := json.NewDecoder(r.Body).Decode(&tp); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if len(tp.POIIDs) > 0 && f.visitTraceGate != nil {
			gate := f.visitTraceGate
			f.mu.Unlock()
			<-gate
			f.mu.Lock()
		}
		if f.failAllTraces || (f.failVisitTraces && len(tp.POIIDs) > 0) {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		f.traceCount++
		if len(tp.POIIDs) > 0 {
			f.visitTraces = append(f.visitTraces, tp.POIIDs)
		}

	case strings.HasSuffix(r.URL.Path, "/remove"):
		if f.failRemove {
			w.WriteHeader(http.StatusInternalServerError)
		}

	case strings.HasSuffix(r.URL.Path, "/add"):
		if f.failAdd {
			w.WriteHeader(http.StatusInternalServerError)
		}

	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeRouteAPI) traces() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.traceCount
}

func (f *fakeRouteAPI) visits() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.visitTraces...)
}

func (f *fakeRouteAPI) setFailVisitTraces(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failVisitTraces = fail
}

// setVisitTraceGate makes visit-trace posts park until the gate closes
func (f *fakeRouteAPI) setVisitTraceGate(gate chan struct{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visitTraceGate = gate
}

func poiAt(id string, lat, lng float64, order int) model.POIRef {
	return model.POIRef{ID: id, Title: "POI " + id, Latitude: lat, Longitude: lng, Order: order}
}

func fix(lat, lng float64) model.Position {
	return model.Position{Latitude: lat, Longitude: lng, Accuracy: 5, Timestamp: time.Now()}
}

func startTestSession(t *testing.T, f *fakeRouteAPI) (*RouteSession, *clock.Manual) {
	t.Helper()

	clk := clock.NewManual(time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC))
	sess, err := Start(context.Background(), "r1", routeapi.NewClient(f.server.URL), nil, clk)
	if err != nil {
		t.Fatalf("session start failed: %v", err)
	}
	t.Cleanup(sess.Close)
	return sess, clk
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestStart_HydratesServerSideStates(t *testing.T) {
	f := newFakeRouteAPI(
		poiAt("a", 0, 0, 1),
		poiAt("b", 0, 0.01, 2),
		poiAt("c", 0, 0.02, 3),
	)
	defer f.server.Close()
	f.payload.VisitedTraces = []routeapi.TraceEvent{{POIIDs: []string{"b"}}}
	f.payload.RemovedTraces = []routeapi.TraceEvent{{POIIDs: []string{"c"}}}

	sess, _ := startTestSession(t, f)

	if state, _ := sess.StateOf("a"); state != model.POIStatePending {
		t.Errorf("a: expected pending, got %v", state)
	}
	if state, _ := sess.StateOf("b"); state != model.POIStateVisited {
		t.Errorf("b: expected visited, got %v", state)
	}
	if state, _ := sess.StateOf("c"); state != model.POIStateRemoved {
		t.Errorf("c: expected removed, got %v", state)
	}
}

func TestStart_FailsWithRouteLoadError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	clk := clock.NewManual(time.Now())
	_, err := Start(context.Background(), "missing", routeapi.NewClient(server.URL), nil, clk)
	if !errors.Is(err, ErrRouteLoad) {
		t.Fatalf("expected ErrRouteLoad, got %v", err)
	}
}

func TestTraceThrottle_AtMostOncePerWindow(t *testing.T) {
	// POI far away so no dwell timers interfere
	f := newFakeRouteAPI(poiAt("a", 10, 10, 1))
	defer f.server.Close()

	sess, clk := startTestSession(t, f)

	// Fixes every 100 simulated milliseconds across a full 60 s window; the
	// gate opens at the 30 s and 60 s marks only
	for i := 0; i <= 600; i++ {
		sess.OnPosition(fix(0, 0))
		clk.Advance(100 * time.Millisecond)
	}

	waitFor(t, "two throttled traces", func() bool { return f.traces() == 2 })

	time.Sleep(100 * time.Millisecond)
	if got := f.traces(); got != 2 {
		t.Fatalf("expected exactly 2 traces for a 60s window, got %d", got)
	}
}

func TestDwellVisit_ConfirmedByServer(t *testing.T) {
	f := newFakeRouteAPI(poiAt("a", 0, 0, 1), poiAt("b", 0, 0.01, 2))
	defer f.server.Close()

	sess, clk := startTestSession(t, f)

	sess.OnPosition(fix(0, 0))
	clk.Advance(31 * time.Second)
	sess.OnPosition(fix(0, 0))

	waitFor(t, "a visited", func() bool {
		state, _ := sess.StateOf("a")
		return state == model.POIStateVisited
	})

	visits := f.visits()
	if len(visits) != 1 || len(visits[0]) != 1 || visits[0][0] != "a" {
		t.Fatalf("expected one visit trace for a, got %v", visits)
	}
	if sess.Completed() {
		t.Error("route must not be complete while b is pending")
	}
}

func TestDwellVisit_ServerRejectionRevertsToPending(t *testing.T) {
	f := newFakeRouteAPI(poiAt("a", 0, 0, 1))
	defer f.server.Close()
	f.setFailVisitTraces(true)

	sess, clk := startTestSession(t, f)

	sess.OnPosition(fix(0, 0))
	clk.Advance(31 * time.Second)
	sess.OnPosition(fix(0, 0))

	waitFor(t, "revert to pending with error", func() bool {
		state, _ := sess.StateOf("a")
		return state == model.POIStatePending && sess.LastError() != ""
	})

	// The dwell credit is gone: a full re-dwell confirms the visit once the
	// server accepts again
	f.setFailVisitTraces(false)
	sess.OnPosition(fix(0, 0))
	clk.Advance(31 * time.Second)
	sess.OnPosition(fix(0, 0))

	waitFor(t, "a visited after re-dwell", func() bool {
		state, _ := sess.StateOf("a")
		return state == model.POIStateVisited
	})
}

func TestRemoveDuringVisitConfirmation_StaysRemoved(t *testing.T) {
	f := newFakeRouteAPI(poiAt("a", 0, 0, 1))
	defer f.server.Close()

	gate := make(chan struct{})
	f.setVisitTraceGate(gate)
	f.setFailVisitTraces(true)

	sess, clk := startTestSession(t, f)

	sess.OnPosition(fix(0, 0))
	clk.Advance(31 * time.Second)
	sess.OnPosition(fix(0, 0))

	waitFor(t, "confirmation in flight", func() bool {
		state, _ := sess.StateOf("a")
		return state == model.POIStateVisiting
	})

	// The user removes the POI while its confirmation is parked
	if err := sess.RemovePOI(context.Background(), "a"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	close(gate) // the parked confirmation now completes with a rejection

	time.Sleep(100 * time.Millisecond)
	if state, _ := sess.StateOf("a"); state != model.POIStateRemoved {
		t.Fatalf("removed poi must stay removed, got %v", state)
	}

	// The rejection must not have re-armed a dwell timer either
	clk.Advance(31 * time.Second)
	sess.OnPosition(fix(0, 0))
	time.Sleep(100 * time.Millisecond)
	if state, _ := sess.StateOf("a"); state != model.POIStateRemoved {
		t.Fatalf("removed poi resurrected by stale confirmation, got %v", state)
	}
}

func TestRemoveDuringVisitConfirmation_AcceptanceDoesNotOverride(t *testing.T) {
	f := newFakeRouteAPI(poiAt("a", 0, 0, 1))
	defer f.server.Close()

	gate := make(chan struct{})
	f.setVisitTraceGate(gate)

	sess, clk := startTestSession(t, f)

	sess.OnPosition(fix(0, 0))
	clk.Advance(31 * time.Second)
	sess.OnPosition(fix(0, 0))

	waitFor(t, "confirmation in flight", func() bool {
		state, _ := sess.StateOf("a")
		return state == model.POIStateVisiting
	})

	if err := sess.RemovePOI(context.Background(), "a"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	close(gate) // the parked confirmation now completes successfully

	time.Sleep(100 * time.Millisecond)
	if state, _ := sess.StateOf("a"); state != model.POIStateRemoved {
		t.Fatalf("removal won the race, poi must stay removed, got %v", state)
	}
}

func TestRemoveThenAdd_ResetsDwellLifecycle(t *testing.T) {
	f := newFakeRouteAPI(poiAt("a", 0, 0, 1))
	defer f.server.Close()

	sess, clk := startTestSession(t, f)
	ctx := context.Background()

	sess.OnPosition(fix(0, 0)) // dwell starts

	if err := sess.RemovePOI(ctx, "a"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if state, _ := sess.StateOf("a"); state != model.POIStateRemoved {
		t.Fatalf("expected removed, got %v", state)
	}

	// Removing again is a no-op, not an error
	if err := sess.RemovePOI(ctx, "a"); err != nil {
		t.Fatalf("second remove must be a no-op: %v", err)
	}

	if err := sess.AddPOI(ctx, "a"); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if state, _ := sess.StateOf("a"); state != model.POIStatePending {
		t.Fatalf("expected pending after add, got %v", state)
	}

	// The pre-removal dwell time does not count
	clk.Advance(31 * time.Second)
	sess.OnPosition(fix(0, 0))
	if state, _ := sess.StateOf("a"); state == model.POIStateVisited {
		t.Fatal("dwell must restart from zero after remove/add")
	}

	clk.Advance(31 * time.Second)
	sess.OnPosition(fix(0, 0))
	waitFor(t, "a visited after fresh dwell", func() bool {
		state, _ := sess.StateOf("a")
		return state == model.POIStateVisited
	})
}

func TestRemove_RollsBackOnServerError(t *testing.T) {
	f := newFakeRouteAPI(poiAt("a", 0, 0, 1))
	defer f.server.Close()
	f.failRemove = true

	sess, _ := startTestSession(t, f)

	err := sess.RemovePOI(context.Background(), "a")
	if !errors.Is(err, ErrRemoval) {
		t.Fatalf("expected ErrRemoval, got %v", err)
	}
	if state, _ := sess.StateOf("a"); state != model.POIStatePending {
		t.Fatalf("expected rollback to pending, got %v", state)
	}
}

func TestRemove_UnknownPOI(t *testing.T) {
	f := newFakeRouteAPI(poiAt("a", 0, 0, 1))
	defer f.server.Close()

	sess, _ := startTestSession(t, f)

	if err := sess.RemovePOI(context.Background(), "ghost"); !errors.Is(err, ErrRemoval) {
		t.Fatalf("expected ErrRemoval for unknown poi, got %v", err)
	}
}

func TestCompletion_FlipsWhenPendingSetEmpties(t *testing.T) {
	f := newFakeRouteAPI(poiAt("a", 0, 0, 1), poiAt("b", 0, 0.01, 2))
	defer f.server.Close()

	sess, clk := startTestSession(t, f)

	if sess.Completed() {
		t.Fatal("fresh session must not be complete")
	}

	sess.OnPosition(fix(0, 0))
	clk.Advance(31 * time.Second)
	sess.OnPosition(fix(0, 0))

	waitFor(t, "a visited", func() bool {
		state, _ := sess.StateOf("a")
		return state == model.POIStateVisited
	})
	if sess.Completed() {
		t.Fatal("b is still pending")
	}

	if err := sess.RemovePOI(context.Background(), "b"); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	if !sess.Completed() {
		t.Fatal("expected completion once every POI is visited or removed")
	}
}

func TestCompletion_EmptyRouteIsNeverComplete(t *testing.T) {
	f := newFakeRouteAPI()
	defer f.server.Close()

	sess, _ := startTestSession(t, f)

	if sess.Completed() {
		t.Fatal("a route with no POIs must not report completion")
	}
}

func TestStatuses_SurfaceVisitingWithRemainingTime(t *testing.T) {
	f := newFakeRouteAPI(poiAt("a", 0, 0, 1))
	defer f.server.Close()

	sess, clk := startTestSession(t, f)

	sess.OnPosition(fix(0, 0))
	clk.Advance(10 * time.Second)

	statuses := sess.Statuses()
	if len(statuses) != 1 {
		t.Fatalf("expected 1 status, got %d", len(statuses))
	}
	if statuses[0].State != model.POIStateVisiting {
		t.Fatalf("expected visiting, got %v", statuses[0].State)
	}
	if statuses[0].RemainingSeconds != 20 {
		t.Errorf("expected 20s remaining, got %v", statuses[0].RemainingSeconds)
	}
}

func TestClose_SuppressesFurtherSideEffects(t *testing.T) {
	f := newFakeRouteAPI(poiAt("a", 0, 0, 1))
	defer f.server.Close()

	sess, clk := startTestSession(t, f)

	sess.OnPosition(fix(0, 0)) // dwell starts
	sess.Close()
	sess.Close() // idempotent

	baseline := f.traces()

	clk.Advance(time.Hour)
	sess.OnPosition(fix(0, 0))

	time.Sleep(100 * time.Millisecond)
	if state, _ := sess.StateOf("a"); state == model.POIStateVisited {
		t.Fatal("closed session must not promote POIs")
	}
	if f.traces() != baseline {
		t.Fatal("closed session must not submit traces")
	}
}
