package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapedesk/history"
	"github.com/use-agent/scrapedesk/models"
)

// ListHistory returns a handler for GET /api/v1/history.
//
// Query: start_date, end_date (YYYY-MM-DD), status, scrape_type, search,
// page, page_size.
func ListHistory(b *history.Browser) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q models.HistoryQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			invalidInput(c, err)
			return
		}
		p, err := b.List(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}
		entries := p.Entries
		if entries == nil {
			entries = []models.LogEntry{}
		}
		c.JSON(http.StatusOK, models.HistoryListResponse{
			Success:    true,
			Entries:    entries,
			Total:      p.Total,
			Page:       p.Page,
			PageSize:   p.PageSize,
			TotalPages: p.TotalPages,
		})
	}
}

// ExportHistory returns a handler for GET /api/v1/history/export.
// It takes the filters of ListHistory and exports every matching entry,
// ignoring pagination.
func ExportHistory(b *history.Browser) gin.HandlerFunc {
	return func(c *gin.Context) {
		var q models.HistoryQuery
		if err := c.ShouldBindQuery(&q); err != nil {
			invalidInput(c, err)
			return
		}
		q.Page, q.PageSize = 1, maxExportEntries
		p, err := b.List(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}

		var buf bytes.Buffer
		if err := history.ExportCSV(&buf, p.Entries); err != nil {
			respondError(c, err)
			return
		}
		name := fmt.Sprintf("scrape_history_%s.csv", time.Now().Format("20060102_150405"))
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
	}
}

const maxExportEntries = 1 << 20

// GetHistory returns a handler for GET /api/v1/history/:id.
func GetHistory(b *history.Browser) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := b.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.HistoryEntryResponse{Success: true, Entry: *e})
	}
}

// HistoryProjection returns a handler for GET /api/v1/history/:id/projection.
func HistoryProjection(b *history.Browser) gin.HandlerFunc {
	return func(c *gin.Context) {
		e, err := b.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, projectionResponse(history.Project(e)))
	}
}

// DeleteHistory returns a handler for DELETE /api/v1/history/:id.
func DeleteHistory(b *history.Browser) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := b.Delete(c.Request.Context(), id); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.MessageResponse{Success: true, Message: "Log entry " + id + " deleted."})
	}
}

// ClearHistory returns a handler for DELETE /api/v1/history.
func ClearHistory(b *history.Browser) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := b.Clear(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.MessageResponse{Success: true, Message: res.Message, Errors: res.Errors})
	}
}

// GetLogPath returns a handler for GET /api/v1/history/config/path.
func GetLogPath(b *history.Browser) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := b.LogPath(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.LogPathResponse{Success: true, Path: p.Path, Message: p.Message})
	}
}

// SetLogPath returns a handler for POST /api/v1/history/config/path.
func SetLogPath(b *history.Browser) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SetLogPathRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}
		p, err := b.SetLogPath(c.Request.Context(), req.Path)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.LogPathResponse{Success: true, Path: p.Path, Message: p.Message})
	}
}
