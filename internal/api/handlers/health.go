package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/projecthub/projecthub/internal/api/respond"
	"github.com/projecthub/projecthub/internal/db"
)

const healthPingTimeout = 2 * time.Second

// @Summary      Health check
// @Description  Reports whether the service can reach its database.
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "status, database, time"
// @Failure      503  {object}  map[string]interface{}  "Service unavailable"
// @Router       /health [get]
// HealthHandler reports whether the service can reach its database.
// GET /health
func HealthHandler(pinger db.Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()

		now := time.Now().UTC().Format(time.RFC3339)
		if err := pinger.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, respond.Envelope{
				Success: false,
				Message: "Service unavailable",
				Data: gin.H{
					"status":   "degraded",
					"database": "disconnected",
					"time":     now,
				},
			})
			return
		}

		respond.OK(c, "", gin.H{
			"status":   "ok",
			"database": "connected",
			"time":     now,
		})
	}
}
