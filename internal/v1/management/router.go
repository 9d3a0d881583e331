package management

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/nullboard/roomd/internal/v1/auth"
	"github.com/nullboard/roomd/internal/v1/ratelimit"
	"github.com/nullboard/roomd/internal/v1/transport"
)

// TokenValidator abstracts management-token validation so tests can supply a
// fake without a real shared secret.
type TokenValidator interface {
	ValidateToken(tokenString string) (*auth.ManagementClaims, error)
}

// AuthMiddleware rejects requests lacking a valid "Authorization: Bearer
// <token>" header, mirroring the "token not provided" / "invalid token" JSON
// error shape used elsewhere in this codebase's reference material for
// WebSocket auth.
func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "token not provided"})
			return
		}

		if _, err := validator.ValidateToken(strings.TrimPrefix(header, "Bearer ")); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Next()
	}
}

// RegisterRoutes wires the management surface onto rg, each endpoint class
// authenticated and individually rate limited.
func RegisterRoutes(rg *gin.RouterGroup, hub *transport.Hub, validator TokenValidator, rl *ratelimit.RateLimiter) {
	h := NewHandlers(hub)
	rg.Use(AuthMiddleware(validator))

	rg.POST("/rooms", rl.MiddlewareForEndpoint("create-room"), h.CreateRoom)
	rg.GET("/rooms", rl.MiddlewareForEndpoint("list-rooms"), h.ListRooms)
	rg.DELETE("/rooms/:room_id", rl.MiddlewareForEndpoint("close-room"), h.CloseRoom)
	rg.PUT("/rooms/:room_id/admins", rl.MiddlewareForEndpoint("reset-admins"), h.ResetAdmins)
	rg.DELETE("/rooms/:room_id/bans/:user_id", rl.MiddlewareForEndpoint("unban"), h.UnbanUser)
}
