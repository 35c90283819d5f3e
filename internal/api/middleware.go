package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"storefront-service/internal/models"
	"storefront-service/internal/util"
)

const (
	sessionCartCookie  = "session_cart_id"
	sessionTokenCookie = "session_token"

	ctxUserID        = "user_id"
	ctxSessionCartID = "session_cart_id"
)

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}

// sessionCartMiddleware guarantees every visitor carries a session cart id.
// The cookie is the anonymous cart owner key until the shopper signs in.
func (h *Handler) sessionCartMiddleware() gin.HandlerFunc {
	maxAge := h.sessionTTL()
	return func(c *gin.Context) {
		id, err := c.Cookie(sessionCartCookie)
		if err != nil || id == "" {
			id = uuid.New().String()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(sessionCartCookie, id, maxAge, "/", "", h.secureCookies, true)
		}
		c.Set(ctxSessionCartID, id)
		c.Next()
	}
}

// authMiddleware resolves the session token to a user id when one is
// present. It never rejects: routes that need a signed-in user layer
// requireAuth on top.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			if v, err := c.Cookie(sessionTokenCookie); err == nil {
				token = v
			}
		}
		if token != "" {
			if userID, err := h.sessions.GetSession(c.Request.Context(), token); err == nil {
				c.Set(ctxUserID, userID)
			}
		}
		c.Next()
	}
}

func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if currentUserID(c) == "" {
			respondFailure(c, http.StatusUnauthorized, "Please sign in to continue", "/sign-in")
			c.Abort()
			return
		}
		c.Next()
	}
}

func (h *Handler) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, err := h.users.GetUser(c.Request.Context(), currentUserID(c))
		if err != nil || user.Role != models.RoleAdmin {
			respondFailure(c, http.StatusForbidden, "Admin access required", "")
			c.Abort()
			return
		}
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	auth := c.GetHeader("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}

func currentUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

// cartOwner identifies whose cart this request operates on: the signed-in
// user when there is one, the session cart cookie otherwise.
func cartOwner(c *gin.Context) models.CartOwner {
	return models.CartOwner{
		UserID:        currentUserID(c),
		SessionCartID: c.GetString(ctxSessionCartID),
	}
}
