package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapedesk/form"
	"github.com/use-agent/scrapedesk/models"
	"github.com/use-agent/scrapedesk/preview"
	"github.com/use-agent/scrapedesk/projector"
	"github.com/use-agent/scrapedesk/runner"
)

// GetOperation returns a handler for GET /api/v1/operation.
func GetOperation(rn *runner.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		op := rn.Store().Snapshot()
		c.JSON(http.StatusOK, models.OperationResponse{
			Success:   true,
			Operation: op,
			IsLoading: op.IsLoading(),
			SessionID: rn.Session(),
		})
	}
}

// CancelOperation returns a handler for POST /api/v1/operation/cancel.
func CancelOperation(rn *runner.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := rn.Cancel(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.OperationResponse{
			Success:   true,
			Operation: res.Operation,
			IsLoading: res.Operation.IsLoading(),
			SessionID: rn.Session(),
			Notice:    res.Notice,
		})
	}
}

// OperationProjection returns a handler for GET /api/v1/operation/projection.
func OperationProjection(rn *runner.Runner, forms *form.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, projectionResponse(currentProjection(rn, forms)))
	}
}

// OperationPreview returns a handler for GET /api/v1/operation/preview.
func OperationPreview(rn *runner.Runner, forms *form.FileStore, rd *preview.Renderer) gin.HandlerFunc {
	return func(c *gin.Context) {
		op := rn.Store().Snapshot()
		sourceURL := ""
		if op.ScrapeType == models.ScrapeTypeStatic {
			sourceURL = forms.Get().StaticURL
		}
		p, err := rd.Render(op.Result, sourceURL)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.PreviewResponse{
			Success:  true,
			Title:    p.Title,
			Markdown: p.Markdown,
			Links:    p.Links,
			Summary:  p.Summary,
		})
	}
}

// OperationExport returns a handler for
// GET /api/v1/operation/export?format=json|csv|xlsx|md.
func OperationExport(rn *runner.Runner, forms *form.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		format, err := projector.ParseFormat(c.DefaultQuery("format", string(projector.FormatJSON)))
		if err != nil {
			invalidInput(c, err)
			return
		}

		op := rn.Store().Snapshot()
		var buf bytes.Buffer
		if err := projector.Export(&buf, currentProjection(rn, forms), format); err != nil {
			respondError(c, err)
			return
		}

		name := projector.Filename(string(op.ScrapeType), format, time.Now())
		c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
		c.Data(http.StatusOK, format.ContentType(), buf.Bytes())
	}
}

// currentProjection projects the current result. Scrapes driven by the
// field form use its column order.
func currentProjection(rn *runner.Runner, forms *form.FileStore) *projector.Projection {
	op := rn.Store().Snapshot()
	var order []string
	switch op.ScrapeType {
	case models.ScrapeTypeDynamic, models.ScrapeTypeInteractiveScrape:
		order = forms.Get().Fields.Order()
	}
	return projector.Project(projector.Normalize(op.Result), order)
}

func projectionResponse(p *projector.Projection) models.ProjectionResponse {
	resp := models.ProjectionResponse{
		Success:   true,
		Kind:      string(p.Kind),
		Columns:   p.Columns,
		KeyColumn: p.KeyColumn,
		Dropped:   p.Dropped,
		Text:      p.Text,
		Message:   p.Message,
		Raw:       p.Raw,
	}
	if p.HasTable() {
		resp.Rows = p.Cells()
	}
	return resp
}
