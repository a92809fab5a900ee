package history

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/scrapedesk/backend"
	"github.com/use-agent/scrapedesk/cache"
	"github.com/use-agent/scrapedesk/models"
	"github.com/use-agent/scrapedesk/projector"
)

type fakeBackend struct {
	entries   []models.LogEntry
	lastQuery backend.LogQuery
	getCalls  int
	deleted   []string
	cleared   bool
	path      string
}

func (f *fakeBackend) ListLogs(_ context.Context, q backend.LogQuery) ([]models.LogEntry, error) {
	f.lastQuery = q
	return append([]models.LogEntry(nil), f.entries...), nil
}

func (f *fakeBackend) GetLog(_ context.Context, id string) (*models.LogEntry, error) {
	f.getCalls++
	for _, e := range f.entries {
		if e.ID == id {
			e := e
			return &e, nil
		}
	}
	return nil, &backend.Error{StatusCode: http.StatusNotFound, Status: "Not Found", Detail: "Log entry not found"}
}

func (f *fakeBackend) DeleteLog(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) ClearLogs(context.Context) (*models.ClearLogsResult, error) {
	f.cleared = true
	return &models.ClearLogsResult{Message: "Cleared"}, nil
}

func (f *fakeBackend) GetLogPath(context.Context) (*models.LogPath, error) {
	return &models.LogPath{Path: f.path}, nil
}

func (f *fakeBackend) SetLogPath(_ context.Context, path string) (*models.LogPath, error) {
	f.path = path
	return &models.LogPath{Path: path, Message: "updated"}, nil
}

func sampleEntries() []models.LogEntry {
	msg := "timeout"
	return []models.LogEntry{
		{ID: "20240101090000_aaaa", Timestamp: "2024-01-01T09:00:00", ScrapeType: "Static", TargetURL: "https://a.example", Status: models.LogStatusSuccess},
		{ID: "20240103090000_bbbb", Timestamp: "2024-01-03T09:00:00", ScrapeType: "Dynamic", TargetURL: "https://shop.example/list", Status: models.LogStatusFailed, ErrorMessage: &msg},
		{ID: "20240102090000_cccc", Timestamp: "2024-01-02T09:00:00", ScrapeType: "Dynamic", TargetURL: "https://shop.example/other", Status: models.LogStatusSuccess},
		{ID: "20240104090000_dddd", Timestamp: "2024-01-04T09:00:00", ScrapeType: "Interactive", TargetURL: "https://b.example", Status: models.LogStatusCancelled},
	}
}

func newTestBrowser(t *testing.T, fb *fakeBackend) *Browser {
	t.Helper()
	c := cache.New(100, time.Minute)
	t.Cleanup(c.Close)
	return New(fb, c, 2)
}

func ids(entries []models.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.ID
	}
	return out
}

func TestListNewestFirstAndPaged(t *testing.T) {
	b := newTestBrowser(t, &fakeBackend{entries: sampleEntries()})

	p, err := b.List(context.Background(), models.HistoryQuery{})
	require.NoError(t, err)
	assert.Equal(t, 4, p.Total)
	assert.Equal(t, 2, p.TotalPages)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, []string{"20240104090000_dddd", "20240103090000_bbbb"}, ids(p.Entries))

	p, err = b.List(context.Background(), models.HistoryQuery{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"20240102090000_cccc", "20240101090000_aaaa"}, ids(p.Entries))

	p, err = b.List(context.Background(), models.HistoryQuery{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, p.Entries)
	assert.Equal(t, 4, p.Total)
}

func TestListFilters(t *testing.T) {
	tests := []struct {
		name  string
		query models.HistoryQuery
		want  []string
	}{
		{"status", models.HistoryQuery{Status: "Success", PageSize: 10}, []string{"20240102090000_cccc", "20240101090000_aaaa"}},
		{"scrape type", models.HistoryQuery{ScrapeType: "dynamic", PageSize: 10}, []string{"20240103090000_bbbb", "20240102090000_cccc"}},
		{"search url", models.HistoryQuery{Search: "SHOP.example/list", PageSize: 10}, []string{"20240103090000_bbbb"}},
		{"search id", models.HistoryQuery{Search: "dddd", PageSize: 10}, []string{"20240104090000_dddd"}},
		{"combined", models.HistoryQuery{Status: "Success", ScrapeType: "Static", PageSize: 10}, []string{"20240101090000_aaaa"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTestBrowser(t, &fakeBackend{entries: sampleEntries()})
			p, err := b.List(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(p.Entries))
		})
	}
}

func TestListDateRange(t *testing.T) {
	fb := &fakeBackend{}
	b := newTestBrowser(t, fb)

	_, err := b.List(context.Background(), models.HistoryQuery{StartDate: "2024-01-02", EndDate: "2024-01-05"})
	require.NoError(t, err)
	assert.Equal(t, "2024-01-02", fb.lastQuery.StartDate.Format(dateLayout))
	assert.Equal(t, "2024-01-05", fb.lastQuery.EndDate.Format(dateLayout))

	for _, q := range []models.HistoryQuery{
		{StartDate: "01/02/2024"},
		{StartDate: "2024-01-05", EndDate: "2024-01-02"},
	} {
		_, err := b.List(context.Background(), q)
		var ae *models.AppError
		require.True(t, errors.As(err, &ae))
		assert.Equal(t, models.ErrCodeInvalidInput, ae.Code)
	}
}

func TestGetCachesAndDeleteInvalidates(t *testing.T) {
	fb := &fakeBackend{entries: sampleEntries()}
	b := newTestBrowser(t, fb)
	ctx := context.Background()

	e, err := b.Get(ctx, "20240101090000_aaaa")
	require.NoError(t, err)
	assert.Equal(t, "https://a.example", e.TargetURL)
	_, err = b.Get(ctx, "20240101090000_aaaa")
	require.NoError(t, err)
	assert.Equal(t, 1, fb.getCalls)

	require.NoError(t, b.Delete(ctx, "20240101090000_aaaa"))
	assert.Equal(t, []string{"20240101090000_aaaa"}, fb.deleted)
	_, err = b.Get(ctx, "20240101090000_aaaa")
	require.NoError(t, err)
	assert.Equal(t, 2, fb.getCalls)
}

func TestGetNotFound(t *testing.T) {
	b := newTestBrowser(t, &fakeBackend{})

	_, err := b.Get(context.Background(), "nope")
	var ae *models.AppError
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, models.ErrCodeNotFound, ae.Code)
	assert.True(t, backend.IsNotFound(err))
}

func TestClearPurgesCache(t *testing.T) {
	fb := &fakeBackend{entries: sampleEntries()}
	b := newTestBrowser(t, fb)
	ctx := context.Background()

	_, err := b.Get(ctx, "20240101090000_aaaa")
	require.NoError(t, err)
	res, err := b.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Cleared", res.Message)
	assert.True(t, fb.cleared)

	_, err = b.Get(ctx, "20240101090000_aaaa")
	require.NoError(t, err)
	assert.Equal(t, 2, fb.getCalls)
}

func TestSetLogPath(t *testing.T) {
	fb := &fakeBackend{path: "/old"}
	b := newTestBrowser(t, fb)

	_, err := b.SetLogPath(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, "/old", fb.path)

	res, err := b.SetLogPath(context.Background(), " /new ")
	require.NoError(t, err)
	assert.Equal(t, "/new", res.Path)

	got, err := b.LogPath(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/new", got.Path)
}

func TestProjectUsesRecordedFieldOrder(t *testing.T) {
	e := &models.LogEntry{
		RequestPayload: json.RawMessage(`{"url":"https://x","custom_fields":[{"name":"price","selector":".p"},{"name":"name","selector":"h2"},{"name":"","selector":".x"}]}`),
		ScrapedData:    json.RawMessage(`[{"name":"A","price":"1"},{"name":"","price":"2"}]`),
	}

	p := Project(e)
	assert.Equal(t, projector.KindTabular, p.Kind)
	assert.Equal(t, []string{"price", "name"}, p.Columns)
	assert.Equal(t, "name", p.KeyColumn)
	assert.Equal(t, 1, p.Dropped)
}

func TestProjectStaticString(t *testing.T) {
	p := Project(&models.LogEntry{ScrapedData: json.RawMessage(`"<html>hello</html>"`)})
	assert.Equal(t, projector.KindScalar, p.Kind)
	assert.Equal(t, "<html>hello</html>", p.Text)
}

func TestExportCSV(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, ExportCSV(&sb, sampleEntries()[:2]))

	want := "id,timestamp,scrapeType,targetUrl,status,errorMessage\n" +
		"20240101090000_aaaa,2024-01-01T09:00:00,Static,https://a.example,Success,\n" +
		"20240103090000_bbbb,2024-01-03T09:00:00,Dynamic,https://shop.example/list,Failed,timeout"
	assert.Equal(t, want, sb.String())
}
