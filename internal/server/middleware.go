package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sysfr3ak/archive-sys/internal/access"
	"github.com/sysfr3ak/archive-sys/internal/user"
)

const (
	headerActorID   = "X-Actor-ID"
	headerRequestID = "X-Request-ID"
	actorKey        = "actor"
	requestIDKey    = "request_id"
)

// requestID propagates the caller's request id or assigns a new one.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(headerRequestID, id)
		c.Next()
	}
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"request_id", c.GetString(requestIDKey),
		)
	}
}

// authenticate resolves the X-Actor-ID header, set by the fronting auth
// layer, into a known user.
func (s *Server) authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(headerActorID)
		id, err := strconv.ParseUint(raw, 10, 64)
		if raw == "" || err != nil || id == 0 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing or invalid " + headerActorID})
			return
		}
		actor, err := user.Actor(s.db.WithContext(c.Request.Context()), uint(id))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unknown actor"})
			return
		}
		c.Set(actorKey, actor)
		c.Next()
	}
}

// require rejects actors whose role lacks perm.
func require(perm access.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := access.Authorize(actorFrom(c), perm); err != nil {
			abortWithError(c, err)
			return
		}
		c.Next()
	}
}

func actorFrom(c *gin.Context) access.Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(access.Actor); ok {
			return a
		}
	}
	return access.Actor{}
}
