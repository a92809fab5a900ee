package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/use-agent/scrapedesk/api/handler"
	"github.com/use-agent/scrapedesk/api/middleware"
	"github.com/use-agent/scrapedesk/config"
	"github.com/use-agent/scrapedesk/form"
	"github.com/use-agent/scrapedesk/history"
	"github.com/use-agent/scrapedesk/preview"
	"github.com/use-agent/scrapedesk/runner"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Runner   *runner.Runner
	Forms    *form.FileStore
	History  *history.Browser
	Renderer *preview.Renderer
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and metrics stay outside auth so monitoring probes always work.
func NewRouter(d Deps, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(d.Runner.Store(), cfg.Backend.BaseURL, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	// Scrapes
	protected.POST("/scrape/static", handler.ScrapeStatic(d.Runner, d.Forms))
	protected.POST("/scrape/dynamic", handler.ScrapeDynamic(d.Runner, d.Forms))
	protected.POST("/interactive/start", handler.InteractiveStart(d.Runner, d.Forms))
	protected.POST("/interactive/scrape", handler.InteractiveScrape(d.Runner, d.Forms))
	protected.POST("/interactive/end", handler.InteractiveEnd(d.Runner))

	// Current operation
	protected.GET("/operation", handler.GetOperation(d.Runner))
	protected.POST("/operation/cancel", handler.CancelOperation(d.Runner))
	protected.GET("/operation/stream", handler.StreamOperation(d.Runner.Store()))
	protected.GET("/operation/projection", handler.OperationProjection(d.Runner, d.Forms))
	protected.GET("/operation/preview", handler.OperationPreview(d.Runner, d.Forms, d.Renderer))
	protected.GET("/operation/export", handler.OperationExport(d.Runner, d.Forms))

	// Form
	protected.GET("/form", handler.GetForm(d.Forms))
	protected.PUT("/form", handler.PutForm(d.Forms))
	protected.POST("/form/fields", handler.AddField(d.Forms))
	protected.PUT("/form/fields/:id", handler.UpdateField(d.Forms))
	protected.DELETE("/form/fields/:id", handler.DeleteField(d.Forms))
	protected.POST("/form/fields/:id/move", handler.MoveField(d.Forms))

	// History
	protected.GET("/history", handler.ListHistory(d.History))
	protected.DELETE("/history", handler.ClearHistory(d.History))
	protected.GET("/history/export", handler.ExportHistory(d.History))
	protected.GET("/history/config/path", handler.GetLogPath(d.History))
	protected.POST("/history/config/path", handler.SetLogPath(d.History))
	protected.GET("/history/:id", handler.GetHistory(d.History))
	protected.GET("/history/:id/projection", handler.HistoryProjection(d.History))
	protected.DELETE("/history/:id", handler.DeleteHistory(d.History))

	return r
}
