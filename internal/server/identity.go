package server

import (
	"encoding/gob"

	"github.com/labstack/echo/v4"

	"github.com/funpr/verza-invest-ai/internal/apperr"
)

func init() {
	// Roles are stored as []string inside the gob-encoded cookie.
	gob.Register([]string{})
}

const (
	identityCookie   = "verza_session"
	cookieKeyUserID  = "uid"
	cookieKeyRoles   = "roles"
	ctxKeyUserID     = "userID"
	ctxKeyPrivileged = "privileged"
)

// resolveIdentity reads the caller's identity from the signed session cookie
// when present. Authentication itself happens elsewhere; this subsystem only
// consumes the resulting identity. Missing or unreadable cookies resolve to
// an anonymous caller.
func (s *Server) resolveIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		session, err := s.cookieStore.Get(c.Request(), identityCookie)
		if err != nil {
			return next(c)
		}

		userID, ok := session.Values[cookieKeyUserID].(string)
		if !ok || userID == "" {
			return next(c)
		}
		c.Set(ctxKeyUserID, userID)

		if roles, ok := session.Values[cookieKeyRoles].([]string); ok {
			for _, role := range roles {
				if role == "admin" || role == "moderator" {
					c.Set(ctxKeyPrivileged, true)
					break
				}
			}
		}
		return next(c)
	}
}

// requireIdentity rejects anonymous callers.
func (s *Server) requireIdentity(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if _, ok := c.Get(ctxKeyUserID).(string); !ok {
			return apperr.Unauthorized("you must be logged in")
		}
		return next(c)
	}
}

// callerID returns the resolved user id, or ok=false for anonymous callers.
func callerID(c echo.Context) (string, bool) {
	userID, ok := c.Get(ctxKeyUserID).(string)
	return userID, ok
}

// callerIsPrivileged reports whether the caller has moderator-level roles.
func callerIsPrivileged(c echo.Context) bool {
	privileged, ok := c.Get(ctxKeyPrivileged).(bool)
	return ok && privileged
}
