package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sosharvest/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports "busy" while a run holds the portal session.
func Health(r Runner, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "idle"
		current := r.Current()
		if current != "" {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Current: current,
			Version: Version,
		})
	}
}
