package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/schoolbill/internal/authorization"
	obscontext "github.com/smallbiznis/schoolbill/internal/observability/context"
)

// The upstream auth gateway authenticates the caller and forwards its
// identity in these headers.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"

	contextActorKey = "actor"
)

func (s *Server) ActorRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		rawID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		rawRole := strings.TrimSpace(c.GetHeader(HeaderUserRole))
		if rawID == "" || rawRole == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		userID, err := snowflake.ParseString(rawID)
		if err != nil || userID == 0 {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		actor, err := s.authzSvc.Resolve(c.Request.Context(), userID, rawRole)
		if err != nil {
			if errors.Is(err, authorization.ErrInvalidRole) || errors.Is(err, authorization.ErrInvalidActor) {
				AbortWithError(c, ErrUnauthorized)
				return
			}
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithActor(c.Request.Context(), string(actor.Role), actor.ID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Set(contextActorKey, actor)
		c.Next()
	}
}

func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := actorFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), actor, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

func actorFromContext(c *gin.Context) (authorization.Actor, bool) {
	value, ok := c.Get(contextActorKey)
	if !ok {
		return authorization.Actor{}, false
	}
	actor, ok := value.(authorization.Actor)
	return actor, ok && actor.ID != 0
}

func parseIDParam(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id == 0 {
		return 0, ErrNotFound
	}
	return id, nil
}
