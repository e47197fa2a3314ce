// Package middleware holds the gin middleware shared by all routes.
package middleware

import (
	"net/http"
	"strings"
	"time"

	"catalog-storefront/internal/gateway"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SessionKey is the gin context key holding the gateway.LoggedIn session.
const SessionKey = "session"

// BearerToken extracts the token of an "Authorization: Bearer" header.
func BearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireSession rejects requests without a valid session.
func RequireSession(auth gateway.Auth) gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := auth.Session(c.Request.Context(), BearerToken(c)).(gateway.LoggedIn)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Set(SessionKey, session)
		c.Next()
	}
}

// CurrentUser returns the user set by RequireSession.
func CurrentUser(c *gin.Context) (gateway.User, bool) {
	v, ok := c.Get(SessionKey)
	if !ok {
		return gateway.User{}, false
	}
	session, ok := v.(gateway.LoggedIn)
	return session.User, ok
}

// RequestLogger logs one line per request.
func RequestLogger(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		}
		if user, ok := CurrentUser(c); ok {
			fields["user"] = user.Email
		}
		entry := log.WithFields(fields)

		switch {
		case len(c.Errors) > 0:
			entry.WithError(c.Errors.Last()).Warn("request failed")
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("request failed")
		default:
			entry.Info("request")
		}
	}
}
