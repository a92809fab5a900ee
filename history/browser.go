// Package history browses the backend's scrape log: filtering, paging,
// cached entry lookups and projections of stored results.
package history

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/use-agent/scrapedesk/backend"
	"github.com/use-agent/scrapedesk/cache"
	"github.com/use-agent/scrapedesk/models"
	"github.com/use-agent/scrapedesk/projector"
)

const dateLayout = "2006-01-02"

// Backend is the subset of backend.Client the browser uses.
type Backend interface {
	ListLogs(ctx context.Context, q backend.LogQuery) ([]models.LogEntry, error)
	GetLog(ctx context.Context, id string) (*models.LogEntry, error)
	DeleteLog(ctx context.Context, id string) error
	ClearLogs(ctx context.Context) (*models.ClearLogsResult, error)
	GetLogPath(ctx context.Context) (*models.LogPath, error)
	SetLogPath(ctx context.Context, path string) (*models.LogPath, error)
}

// Page is one page of filtered history entries.
type Page struct {
	Entries    []models.LogEntry
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// Browser reads and manages the backend history log.
type Browser struct {
	be       Backend
	cache    *cache.Cache
	pageSize int
}

// New creates a Browser. c may be nil to disable entry caching.
func New(be Backend, c *cache.Cache, pageSize int) *Browser {
	if pageSize <= 0 {
		pageSize = 25
	}
	return &Browser{be: be, cache: c, pageSize: pageSize}
}

// List fetches the log for the query's date range, then applies the status,
// scrape type and search filters, sorts newest first and pages the result.
func (b *Browser) List(ctx context.Context, q models.HistoryQuery) (*Page, error) {
	q.Defaults(b.pageSize)

	lq, err := logQuery(q)
	if err != nil {
		return nil, err
	}
	all, err := b.be.ListLogs(ctx, lq)
	if err != nil {
		return nil, err
	}

	filtered := Filter(all, q)
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Timestamp > filtered[j].Timestamp
	})

	p := &Page{
		Total:    len(filtered),
		Page:     q.Page,
		PageSize: q.PageSize,
	}
	p.TotalPages = (p.Total + p.PageSize - 1) / p.PageSize

	start := (p.Page - 1) * p.PageSize
	if start > len(filtered) {
		start = len(filtered)
	}
	end := min(start+p.PageSize, len(filtered))
	p.Entries = filtered[start:end]
	return p, nil
}

func logQuery(q models.HistoryQuery) (backend.LogQuery, error) {
	var lq backend.LogQuery
	var err error
	if q.StartDate != "" {
		if lq.StartDate, err = time.Parse(dateLayout, q.StartDate); err != nil {
			return lq, models.NewAppError(models.ErrCodeInvalidInput,
				"start_date must be formatted as YYYY-MM-DD", err)
		}
	}
	if q.EndDate != "" {
		if lq.EndDate, err = time.Parse(dateLayout, q.EndDate); err != nil {
			return lq, models.NewAppError(models.ErrCodeInvalidInput,
				"end_date must be formatted as YYYY-MM-DD", err)
		}
	}
	if !lq.StartDate.IsZero() && !lq.EndDate.IsZero() && lq.EndDate.Before(lq.StartDate) {
		return lq, models.NewAppError(models.ErrCodeInvalidInput,
			"end_date must not be before start_date", nil)
	}
	return lq, nil
}

// Filter returns the entries matching the query's status, scrape type and
// search term. Search is a case-insensitive substring match on id and
// target URL.
func Filter(entries []models.LogEntry, q models.HistoryQuery) []models.LogEntry {
	search := strings.ToLower(strings.TrimSpace(q.Search))
	out := make([]models.LogEntry, 0, len(entries))
	for _, e := range entries {
		if q.Status != "" && string(e.Status) != q.Status {
			continue
		}
		if q.ScrapeType != "" && !strings.EqualFold(e.ScrapeType, q.ScrapeType) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(e.ID), search) &&
			!strings.Contains(strings.ToLower(e.TargetURL), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Get returns the full entry for id, served from cache when fresh.
// A backend 404 becomes a NOT_FOUND AppError.
func (b *Browser) Get(ctx context.Context, id string) (*models.LogEntry, error) {
	if b.cache != nil {
		if e, ok := b.cache.Get(id); ok {
			slog.Debug("history cache hit", "id", id)
			return e, nil
		}
	}

	e, err := b.be.GetLog(ctx, id)
	if err != nil {
		return nil, notFound(err, id)
	}
	if b.cache != nil {
		b.cache.Set(e)
	}
	return e, nil
}

// Delete removes one entry from the backend and the cache.
func (b *Browser) Delete(ctx context.Context, id string) error {
	if err := b.be.DeleteLog(ctx, id); err != nil {
		return notFound(err, id)
	}
	if b.cache != nil {
		b.cache.Delete(id)
	}
	slog.Info("history entry deleted", "id", id)
	return nil
}

// Clear removes every entry from the backend and purges the cache.
func (b *Browser) Clear(ctx context.Context) (*models.ClearLogsResult, error) {
	res, err := b.be.ClearLogs(ctx)
	if err != nil {
		return nil, err
	}
	if b.cache != nil {
		b.cache.Purge()
	}
	slog.Info("history cleared", "message", res.Message, "errors", len(res.Errors))
	return res, nil
}

// LogPath returns the backend's history storage location.
func (b *Browser) LogPath(ctx context.Context) (*models.LogPath, error) {
	return b.be.GetLogPath(ctx)
}

// SetLogPath moves the backend's history storage. Entries cached from the
// old location are dropped.
func (b *Browser) SetLogPath(ctx context.Context, path string) (*models.LogPath, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, models.NewAppError(models.ErrCodeInvalidInput, "log path must not be empty", nil)
	}
	res, err := b.be.SetLogPath(ctx, path)
	if err != nil {
		return nil, err
	}
	if b.cache != nil {
		b.cache.Purge()
	}
	return res, nil
}

func notFound(err error, id string) error {
	if backend.IsNotFound(err) {
		return models.NewAppError(models.ErrCodeNotFound, "log entry "+id+" not found", err)
	}
	return err
}

// Project projects an entry's stored result. Dynamic entries use the field
// names from the recorded request as column order.
func Project(e *models.LogEntry) *projector.Projection {
	return projector.Project(projector.Normalize(e.ScrapedData), requestFieldOrder(e.RequestPayload))
}

func requestFieldOrder(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var req struct {
		CustomFields []models.CustomField `json:"custom_fields"`
	}
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil
	}
	specs := make([]models.FieldSpec, len(req.CustomFields))
	for i, f := range req.CustomFields {
		specs[i] = models.FieldSpec{Name: f.Name, Selector: f.Selector}
	}
	return projector.FieldOrder(specs)
}
