// Package backend is the HTTP client for the scraping backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/use-agent/scrapedesk/config"
	"github.com/use-agent/scrapedesk/models"
)

// Endpoint names, used as metric labels and in logs.
const (
	epScrapeStatic     = "scrape"
	epScrapeDynamic    = "scrape-dynamic"
	epStopScraper      = "stop-scraper"
	epCancelTask       = "cancel-task"
	epStartBrowser     = "start-browser"
	epScrapeActivePage = "scrape-active-page"
	epStopBrowser      = "stop-browser"
	epListLogs         = "logs"
	epGetLog           = "log-get"
	epDeleteLog        = "log-delete"
	epClearLogs        = "logs-clear"
	epGetLogPath       = "log-path-get"
	epSetLogPath       = "log-path-set"
)

// dateLayout is the date format the /logs filter expects.
const dateLayout = "2006-01-02"

// Client talks to the scraping backend. It is safe for concurrent use.
type Client struct {
	rc      *resty.Client
	baseURL string
}

// New creates a Client for cfg.
func New(cfg config.BackendConfig) *Client {
	rc := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	if cfg.UserAgent != "" {
		rc.SetHeader("User-Agent", cfg.UserAgent)
	}
	if cfg.Timeout > 0 {
		rc.SetTimeout(cfg.Timeout)
	}
	return &Client{rc: rc, baseURL: cfg.BaseURL}
}

// BaseURL returns the backend root the client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// call executes one request. Transport failures become BACKEND_UNREACHABLE
// AppErrors; non-2xx answers become *Error.
func (c *Client) call(ctx context.Context, endpoint string, req *resty.Request, method, path string) (*resty.Response, error) {
	start := time.Now()
	resp, err := req.SetContext(ctx).Execute(method, path)
	elapsed := time.Since(start)
	requestDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())

	if err != nil {
		requestsTotal.WithLabelValues(endpoint, "transport_error").Inc()
		slog.Warn("backend unreachable", "endpoint", endpoint, "error", err)
		return nil, models.NewAppError(models.ErrCodeBackendUnreachable, "Failed to fetch: "+err.Error(), err)
	}

	if resp.IsError() {
		requestsTotal.WithLabelValues(endpoint, "http_error").Inc()
		be := newError(resp)
		slog.Warn("backend returned error",
			"endpoint", endpoint,
			"status", be.StatusCode,
			"detail", be.Detail,
		)
		return nil, be
	}

	requestsTotal.WithLabelValues(endpoint, "ok").Inc()
	slog.Debug("backend call",
		"endpoint", endpoint,
		"status", resp.StatusCode(),
		"duration_ms", elapsed.Milliseconds(),
	)
	return resp, nil
}

// decode parses a JSON body. An empty body yields the zero value.
func decode[T any](endpoint string, body []byte) (*T, error) {
	var out T
	if len(bytes.TrimSpace(body)) == 0 {
		return &out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, models.NewAppError(models.ErrCodeBackendError,
			fmt.Sprintf("unexpected %s response", endpoint), err)
	}
	return &out, nil
}

// ScrapeStatic runs GET /scrape?url=... and returns the raw payload.
func (c *Client) ScrapeStatic(ctx context.Context, url string) (json.RawMessage, error) {
	resp, err := c.call(ctx, epScrapeStatic, c.rc.R().SetQueryParam("url", url), http.MethodGet, "/scrape")
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// ScrapeDynamic runs POST /scrape-dynamic and returns the raw payload.
func (c *Client) ScrapeDynamic(ctx context.Context, req *models.DynamicScrapeRequest) (json.RawMessage, error) {
	resp, err := c.call(ctx, epScrapeDynamic, c.rc.R().SetBody(req), http.MethodPost, "/scrape-dynamic")
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// TaskID returns the backend task id carried by a dynamic scrape payload.
func TaskID(payload json.RawMessage) string {
	var probe struct {
		TaskID json.RawMessage `json:"task_id"`
	}
	if err := json.Unmarshal(payload, &probe); err != nil || len(probe.TaskID) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(probe.TaskID, &s); err == nil {
		return s
	}
	if string(probe.TaskID) == "null" {
		return ""
	}
	return string(probe.TaskID)
}

// StopScraper sends the generic, untargeted stop signal.
func (c *Client) StopScraper(ctx context.Context) (*models.StopResponse, error) {
	resp, err := c.call(ctx, epStopScraper, c.rc.R(), http.MethodPost, "/stop-scraper")
	if err != nil {
		return nil, err
	}
	return decode[models.StopResponse](epStopScraper, resp.Body())
}

// CancelTask asks the backend to cancel one task.
func (c *Client) CancelTask(ctx context.Context, taskID string) (*models.StopResponse, error) {
	req := c.rc.R().SetPathParam("taskID", taskID)
	resp, err := c.call(ctx, epCancelTask, req, http.MethodPost, "/cancel-task/{taskID}")
	if err != nil {
		return nil, err
	}
	return decode[models.StopResponse](epCancelTask, resp.Body())
}

// StartBrowser opens an interactive session. A 2xx answer with
// success=false is an error carrying the backend message.
func (c *Client) StartBrowser(ctx context.Context, req *models.InteractiveStartRequest) (*models.InteractiveResponse, json.RawMessage, error) {
	return c.interactive(ctx, epStartBrowser, "/interactive/start-browser", req,
		"Failed to start interactive session.")
}

// StopBrowser closes an interactive session.
func (c *Client) StopBrowser(ctx context.Context, sessionID string) (*models.InteractiveResponse, json.RawMessage, error) {
	return c.interactive(ctx, epStopBrowser, "/interactive/stop-browser",
		&models.InteractiveStopRequest{SessionID: sessionID},
		"Failed to end interactive session.")
}

func (c *Client) interactive(ctx context.Context, endpoint, path string, body any, fallback string) (*models.InteractiveResponse, json.RawMessage, error) {
	resp, err := c.call(ctx, endpoint, c.rc.R().SetBody(body), http.MethodPost, path)
	if err != nil {
		return nil, nil, err
	}
	out, err := decode[models.InteractiveResponse](endpoint, resp.Body())
	if err != nil {
		return nil, nil, err
	}
	if !out.Success {
		msg := out.Message
		if msg == "" {
			msg = fallback
		}
		return nil, nil, models.NewAppError(models.ErrCodeBackendError, msg, nil)
	}
	return out, resp.Body(), nil
}

// ScrapeActivePage extracts data from the page open in an interactive session.
func (c *Client) ScrapeActivePage(ctx context.Context, req *models.InteractiveScrapeRequest) (json.RawMessage, error) {
	resp, err := c.call(ctx, epScrapeActivePage, c.rc.R().SetBody(req), http.MethodPost, "/interactive/scrape-active-page")
	if err != nil {
		return nil, err
	}
	return resp.Body(), nil
}

// LogQuery narrows GET /logs by day. Zero times are omitted.
type LogQuery struct {
	StartDate time.Time
	EndDate   time.Time
}

// ListLogs returns history entries, newest first as served by the backend.
func (c *Client) ListLogs(ctx context.Context, q LogQuery) ([]models.LogEntry, error) {
	req := c.rc.R()
	if !q.StartDate.IsZero() {
		req.SetQueryParam("start_date", q.StartDate.Format(dateLayout))
	}
	if !q.EndDate.IsZero() {
		req.SetQueryParam("end_date", q.EndDate.Format(dateLayout))
	}
	resp, err := c.call(ctx, epListLogs, req, http.MethodGet, "/logs")
	if err != nil {
		return nil, err
	}
	entries, err := decode[[]models.LogEntry](epListLogs, resp.Body())
	if err != nil {
		return nil, err
	}
	return *entries, nil
}

// GetLog fetches one full history entry.
func (c *Client) GetLog(ctx context.Context, id string) (*models.LogEntry, error) {
	resp, err := c.call(ctx, epGetLog, c.rc.R().SetPathParam("id", id), http.MethodGet, "/logs/{id}")
	if err != nil {
		return nil, err
	}
	return decode[models.LogEntry](epGetLog, resp.Body())
}

// DeleteLog removes one history entry.
func (c *Client) DeleteLog(ctx context.Context, id string) error {
	_, err := c.call(ctx, epDeleteLog, c.rc.R().SetPathParam("id", id), http.MethodDelete, "/logs/{id}")
	return err
}

// ClearLogs removes every history entry.
func (c *Client) ClearLogs(ctx context.Context) (*models.ClearLogsResult, error) {
	resp, err := c.call(ctx, epClearLogs, c.rc.R(), http.MethodDelete, "/logs/clear")
	if err != nil {
		return nil, err
	}
	return decode[models.ClearLogsResult](epClearLogs, resp.Body())
}

// GetLogPath returns where the backend stores history entries.
func (c *Client) GetLogPath(ctx context.Context) (*models.LogPath, error) {
	resp, err := c.call(ctx, epGetLogPath, c.rc.R(), http.MethodGet, "/logs/config/path")
	if err != nil {
		return nil, err
	}
	return decode[models.LogPath](epGetLogPath, resp.Body())
}

// SetLogPath moves the backend's history storage.
func (c *Client) SetLogPath(ctx context.Context, path string) (*models.LogPath, error) {
	req := c.rc.R().SetBody(map[string]string{"path": path})
	resp, err := c.call(ctx, epSetLogPath, req, http.MethodPost, "/logs/config/path")
	if err != nil {
		return nil, err
	}
	return decode[models.LogPath](epSetLogPath, resp.Body())
}
