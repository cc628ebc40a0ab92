package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"yamdb/internal/microservices/http-api/access"
	"yamdb/internal/microservices/http-api/apperr"
)

const actorKey = "actor"

// ActorResolver turns a bearer token into the current actor.
type ActorResolver interface {
	ResolveActor(ctx context.Context, token string) (access.Actor, error)
}

// Actor resolves the request's actor. Requests without an Authorization
// header continue as anonymous; a header that is present but malformed,
// invalid, expired, or bound to an inactive account is rejected with 401.
func Actor(resolver ActorResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.Set(actorKey, access.Anonymous)
			c.Next()
			return
		}

		// format: "Bearer <token>"
		scheme, token, ok := strings.Cut(authHeader, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			return
		}

		actor, err := resolver.ResolveActor(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			if errors.Is(err, apperr.ErrUnauthenticated) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
				return
			}
			_ = c.Error(err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// ActorFrom returns the actor set by Actor, or anonymous.
func ActorFrom(c *gin.Context) access.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(access.Actor); ok {
			return actor
		}
	}
	return access.Anonymous
}

// SetActor is used by tests to inject an actor without a token.
func SetActor(c *gin.Context, actor access.Actor) {
	c.Set(actorKey, actor)
}

// RejectAnonymousWrites answers 403 to unsafe methods without credentials
// before any body parsing or resource lookup happens.
func RejectAnonymousWrites() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !access.ActionFromMethod(c.Request.Method).Safe() && !ActorFrom(c).Authenticated() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "authentication credentials were not provided"})
			return
		}
		c.Next()
	}
}
