package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sosharvest/config"
	"github.com/use-agent/sosharvest/models"
)

// Runner is the part of runner.Runner the HTTP handlers use.
type Runner interface {
	Start(ctx context.Context, in *config.Input) (*models.RunStatus, error)
	Get(id string) (*models.RunStatus, bool)
	Artifact(id, key string) ([]byte, string, error)
	Current() string
}

// StartRun returns a handler for POST /api/v1/runs.
//
// The body is an optional run input document; an empty body runs with the
// server configuration. The run continues in the background and the
// response carries its initial status.
func StartRun(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in config.Input
		if err := c.ShouldBindJSON(&in); err != nil && !errors.Is(err, io.EOF) {
			respondError(c, models.NewHarvestError(models.ErrCodeInvalidInput, err.Error(), err))
			return
		}

		status, err := r.Start(c.Request.Context(), &in)
		if err != nil {
			respondError(c, err)
			return
		}
		c.Header("Location", "/api/v1/runs/"+status.ID)
		c.JSON(http.StatusAccepted, models.RunResponse{Success: true, Run: status})
	}
}

// GetRun returns a handler for GET /api/v1/runs/:id.
func GetRun(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		status, ok := r.Get(c.Param("id"))
		if !ok {
			respondError(c, models.NewHarvestError(models.ErrCodeNotFound, "run not found", nil))
			return
		}
		c.JSON(http.StatusOK, models.RunResponse{Success: true, Run: status})
	}
}

// GetArtifact returns a handler for GET /api/v1/runs/:id/artifacts/:key.
// The artifact is served raw with its stored content type.
func GetArtifact(r Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, contentType, err := r.Artifact(c.Param("id"), c.Param("key"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.Data(http.StatusOK, contentType, data)
	}
}

// respondError maps a HarvestError to the HTTP status code and writes a
// structured JSON error response.
func respondError(c *gin.Context, err error) {
	he := models.AsHarvestError(err)
	c.JSON(mapErrorToStatus(he), models.RunResponse{
		Success: false,
		Error:   he.ToDetail(),
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.HarvestError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeRunInProgress:
		return http.StatusConflict // 409
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeNavigation, models.ErrCodeReportUnreachable:
		return http.StatusBadGateway // 502
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	default:
		return http.StatusInternalServerError // 500
	}
}
