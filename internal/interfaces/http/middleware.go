package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/invoice-desk/internal/gate"
	"github.com/garyjia/invoice-desk/internal/kvstore"
)

// SessionCookie carries the session id between requests
const SessionCookie = "invoice_session"

const (
	sessionIDKey    = "session_id"
	sessionStoreKey = "session_store"
)

func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		logger.Info("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()),
		)
	}
}

// sessionMiddleware attaches the caller's session store, issuing a new
// session cookie when the request has none
func sessionMiddleware(sessions *kvstore.Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(SessionCookie)
		if err != nil || id == "" {
			id = sessions.NewID()
			c.SetSameSite(http.SameSiteStrictMode)
			c.SetCookie(SessionCookie, id, 0, "/", "", false, true)
		}

		c.Set(sessionIDKey, id)
		c.Set(sessionStoreKey, sessions.Lookup(id))
		c.Next()
	}
}

// requireUnlocked rejects requests from sessions that have not passed the gate
func requireUnlocked(g *gate.Gate) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !g.IsUnlocked(sessionStore(c)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "access code required",
			})
			return
		}
		c.Next()
	}
}

func sessionStore(c *gin.Context) kvstore.Store {
	if v, ok := c.Get(sessionStoreKey); ok {
		if store, ok := v.(kvstore.Store); ok {
			return store
		}
	}
	return kvstore.NewMemoryStore()
}
