package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapedesk/config"
	"github.com/use-agent/scrapedesk/models"
	"github.com/use-agent/scrapedesk/operation"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports "busy" while a scrape operation is running.
func Health(store *operation.Store, backendURL string, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		op := store.Snapshot()

		status := "healthy"
		if op.IsLoading() {
			status = "busy"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:     status,
			Uptime:     time.Since(startTime).Round(time.Second).String(),
			BackendURL: backendURL,
			Operation:  op.Status,
			Version:    config.Version,
		})
	}
}
