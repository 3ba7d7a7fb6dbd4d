package worker

import (
	"log"
	"time"

	"tourway/internal/config"
	"tourway/internal/service/session"
)

// StartSessionJanitor starts the worker that closes idle navigation sessions.
// A host app that dies without stopping its session would otherwise leave
// dwell timers and refresh loops running forever.
func StartSessionJanitor() {
	sessionService := session.GetSessionService()

	ticker := time.NewTicker(config.SessionJanitorInterval)
	go func() {
		for range ticker.C {
			if closed := sessionService.CloseIdle(config.SessionIdleTTL); closed > 0 {
				log.Printf("Session janitor: closed %d idle sessions", closed)
			}
		}
	}()

	log.Println("Session janitor started with interval:", config.SessionJanitorInterval)
}
