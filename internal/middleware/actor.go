package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	// ActorHeader carries the identifier of the caller performing a write.
	ActorHeader = "X-Actor-ID"

	actorKey       = "actor_id"
	maxActorLength = 128
)

// Actor copies the caller identity supplied by the fronting application onto
// the request context so audit entries can attribute writes. Authentication
// happens upstream; the value is trusted as given.
func Actor() gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := strings.TrimSpace(c.GetHeader(ActorHeader))
		if len(actor) > maxActorLength {
			actor = actor[:maxActorLength]
		}
		if actor != "" {
			c.Set(actorKey, actor)
		}
		c.Next()
	}
}

// ActorID returns the caller identity recorded by Actor, or an empty string.
func ActorID(c *gin.Context) string {
	if v, exists := c.Get(actorKey); exists {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}
