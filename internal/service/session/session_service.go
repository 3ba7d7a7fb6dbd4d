package session

import (
	"context"
	"log"
	"sync"
	"time"

	"tourway/internal/clock"
	"tourway/internal/routeapi"
	"tourway/internal/service/routeplan"
	"tourway/internal/service/storage"
)

// SessionService is the registry of active route sessions. One session per
// route id; the navigation surface talks to sessions only through it.
type SessionService struct {
	sessions storage.Storage[string, *RouteSession]
	clk      clock.Clock

	// startMu serializes get-or-create: concurrent starts for one route
	// must never build two sessions, the loser would leak its tickers
	startMu sync.Mutex

	mu      sync.RWMutex
	api     *routeapi.Client
	planner *routeplan.Recomputer
}

var (
	sessionServiceInstance *SessionService
	sessionServiceOnce     sync.Once
)

// GetSessionService returns the singleton instance of SessionService.
func GetSessionService() *SessionService {
	sessionServiceOnce.Do(func() {
		sessionServiceInstance = &SessionService{
			sessions: storage.NewMemoryStorage[string, *RouteSession](),
			clk:      clock.System(),
		}
	})
	return sessionServiceInstance
}

// Configure wires the external collaborators. Must run before Start.
func (s *SessionService) Configure(api *routeapi.Client, planner *routeplan.Recomputer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.api = api
	s.planner = planner
}

// Start begins or resumes navigation for a route. A session that is already
// active is returned as-is: no concurrent sessions for the same route.
func (s *SessionService) Start(ctx context.Context, routeID string) (*RouteSession, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	if existing, ok := s.sessions.Get(routeID); ok {
		return existing, nil
	}

	s.mu.RLock()
	api, planner := s.api, s.planner
	s.mu.RUnlock()

	sess, err := Start(ctx, routeID, api, planner, s.clk)
	if err != nil {
		return nil, err
	}

	s.sessions.Set(routeID, sess)
	return sess, nil
}

// Get returns the active session for a route, if any
func (s *SessionService) Get(routeID string) (*RouteSession, bool) {
	return s.sessions.Get(routeID)
}

// Stop closes and unregisters the session for a route. Reports whether a
// session existed.
func (s *SessionService) Stop(routeID string) bool {
	sess, ok := s.sessions.Get(routeID)
	if !ok {
		return false
	}
	sess.Close()
	s.sessions.Delete(routeID)
	return true
}

// CloseIdle closes sessions without a position fix for longer than ttl and
// returns how many were closed. Covers hosts that die without calling Stop.
func (s *SessionService) CloseIdle(ttl time.Duration) int {
	now := s.clk.Now()
	closed := 0

	s.sessions.ForEach(func(routeID string, sess *RouteSession) bool {
		if now.Sub(sess.LastActivity()) > ttl {
			sess.Close()
			s.sessions.Delete(routeID)
			closed++
		}
		return true
	})

	return closed
}

// CloseAll tears down every active session, used on shutdown
func (s *SessionService) CloseAll() {
	count := s.sessions.Count()
	s.sessions.ForEach(func(routeID string, sess *RouteSession) bool {
		sess.Close()
		s.sessions.Delete(routeID)
		return true
	})
	if count > 0 {
		log.Printf("Closed %d active sessions", count)
	}
}

// Count returns the number of active sessions
func (s *SessionService) Count() int {
	return s.sessions.Count()
}
