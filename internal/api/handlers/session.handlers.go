package routes

import (
	"errors"
	"log"
	"net/http"

	"tourway/internal/model"
	"tourway/internal/service/mapview"
	"tourway/internal/service/session"

	"github.com/gin-gonic/gin"
)

// SetupSessionHandlers registers the navigation session endpoints
func SetupSessionHandlers(router *gin.RouterGroup) {
	sessionGroup := router.Group("/session")

	sessionGroup.POST("/:routeId/start", StartSession)
	sessionGroup.DELETE("/:routeId", StopSession)
	sessionGroup.POST("/:routeId/position", PostPosition)
	sessionGroup.POST("/:routeId/poi/:poiId/remove", RemoveSessionPOI)
	sessionGroup.POST("/:routeId/poi/:poiId/add", AddSessionPOI)
	sessionGroup.POST("/:routeId/recompute", RecomputeSession)
	sessionGroup.GET("/:routeId/state", SessionState)
	sessionGroup.GET("/:routeId/map", SessionMap)
}

// StartSession begins or resumes navigation for a route
func StartSession(c *gin.Context) {
	routeID := c.Param("routeId")

	sess, err := session.GetSessionService().Start(c.Request.Context(), routeID)
	if err != nil {
		log.Printf("Failed to start session for route %s: %v", routeID, err)
		c.JSON(http.StatusBadGateway, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"routeId": sess.RouteID(),
		"pois":    sess.Statuses(),
	})
}

// StopSession tears down the session and all its timers
func StopSession(c *gin.Context) {
	routeID := c.Param("routeId")

	if !session.GetSessionService().Stop(routeID) {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "no active session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "session stopped",
	})
}

// PostPosition feeds one location fix into the session
func PostPosition(c *gin.Context) {
	sess, ok := activeSession(c)
	if !ok {
		return
	}

	var pos model.Position
	if err := c.ShouldBindJSON(&pos); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": "invalid position payload",
		})
		return
	}

	sess.OnPosition(pos)

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"completed": sess.Completed(),
	})
}

// RemoveSessionPOI drops a POI from the active route
func RemoveSessionPOI(c *gin.Context) {
	sess, ok := activeSession(c)
	if !ok {
		return
	}

	if err := sess.RemovePOI(c.Request.Context(), c.Param("poiId")); err != nil {
		c.JSON(statusFor(err), gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
	})
}

// AddSessionPOI reverses a previous removal
func AddSessionPOI(c *gin.Context) {
	sess, ok := activeSession(c)
	if !ok {
		return
	}

	if err := sess.AddPOI(c.Request.Context(), c.Param("poiId")); err != nil {
		c.JSON(statusFor(err), gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
	})
}

// RecomputeSession is the explicit route-shape refresh trigger
func RecomputeSession(c *gin.Context) {
	sess, ok := activeSession(c)
	if !ok {
		return
	}

	sess.Recompute()

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "recompute triggered",
	})
}

// SessionState returns the POI states, completion flag and last error
func SessionState(c *gin.Context) {
	sess, ok := activeSession(c)
	if !ok {
		return
	}

	statuses := sess.Statuses()

	c.JSON(http.StatusOK, gin.H{
		"status":    "success",
		"routeId":   sess.RouteID(),
		"pois":      statuses,
		"completed": sess.Completed(),
		"lastError": sess.LastError(),
		"frame":     mapview.Frame(statuses),
	})
}

// SessionMap returns renderable markers and the path layer
func SessionMap(c *gin.Context) {
	sess, ok := activeSession(c)
	if !ok {
		return
	}

	statuses := sess.Statuses()

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"markers": mapview.ToMarkers(statuses),
		"path":    mapview.ToPathLayer(sess.Geometry()),
		"frame":   mapview.Frame(statuses),
	})
}

func activeSession(c *gin.Context) (*session.RouteSession, bool) {
	sess, ok := session.GetSessionService().Get(c.Param("routeId"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"status":  "error",
			"message": "no active session",
		})
		return nil, false
	}
	return sess, true
}

func statusFor(err error) int {
	if errors.Is(err, session.ErrRemoval) || errors.Is(err, session.ErrAddition) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
