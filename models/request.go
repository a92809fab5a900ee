package models

import "strings"

// Pagination strategies understood by the backend.
const (
	PaginationNextButton   = "Next Button"
	PaginationURLParameter = "URL Parameter"
)

// FieldSpec is one user-authored extraction column.
type FieldSpec struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Selector string `json:"selector"`
}

// CustomField is the wire form of a complete FieldSpec.
type CustomField struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
}

// DynamicScrapeRequest is the body of POST /scrape-dynamic on the backend.
type DynamicScrapeRequest struct {
	URL                string        `json:"url"`
	ContainerSelector  string        `json:"container_selector"`
	CustomFields       []CustomField `json:"custom_fields"`
	EnableScrolling    bool          `json:"enable_scrolling"`
	MaxScrolls         int           `json:"max_scrolls"`
	EnablePagination   bool          `json:"enable_pagination"`
	StartPage          int           `json:"start_page"`
	EndPage            int           `json:"end_page"`
	PaginationType     string        `json:"pagination_type"`
	PageParam          string        `json:"page_param"`
	NextButtonSelector string        `json:"next_button_selector"`
}

// InteractiveStartRequest is the body of POST /interactive/start-browser.
// A nil StartURL lets the backend open a blank page.
type InteractiveStartRequest struct {
	StartURL *string `json:"start_url"`
}

// InteractiveScrapeRequest is the body of POST /interactive/scrape-active-page.
// Pagination fields are only sent when pagination is enabled, and only the
// one relevant to the pagination type.
type InteractiveScrapeRequest struct {
	SessionID          string        `json:"session_id"`
	ContainerSelector  string        `json:"container_selector"`
	CustomFields       []CustomField `json:"custom_fields"`
	EnableScrolling    bool          `json:"enable_scrolling"`
	MaxScrolls         int           `json:"max_scrolls"`
	ScrollToEndPage    bool          `json:"scroll_to_end_page"`
	EnablePagination   bool          `json:"enable_pagination"`
	StartPage          *int          `json:"start_page,omitempty"`
	EndPage            *int          `json:"end_page,omitempty"`
	PaginationType     string        `json:"pagination_type,omitempty"`
	PageParam          string        `json:"page_param,omitempty"`
	NextButtonSelector string        `json:"next_button_selector,omitempty"`
}

// InteractiveStopRequest is the body of POST /interactive/stop-browser.
type InteractiveStopRequest struct {
	SessionID string `json:"session_id"`
}

// StaticScrapeRequest is the payload for POST /api/v1/scrape/static.
type StaticScrapeRequest struct {
	// URL is the target page. Required.
	URL string `json:"url" binding:"required,url"`
}

// InteractiveStartBody is the payload for POST /api/v1/interactive/start.
type InteractiveStartBody struct {
	// StartURL is optional; when empty the backend opens a blank page.
	StartURL string `json:"start_url,omitempty" binding:"omitempty,url"`
}

// SetLogPathRequest is the payload for POST /api/v1/history/config/path.
type SetLogPathRequest struct {
	Path string `json:"path" binding:"required"`
}

// MoveFieldRequest is the payload for POST /api/v1/form/fields/:id/move.
type MoveFieldRequest struct {
	// Index is the zero-based destination position.
	Index int `json:"index" binding:"min=0"`
}

// HistoryQuery carries the query string of GET /api/v1/history.
type HistoryQuery struct {
	StartDate  string `form:"start_date"`
	EndDate    string `form:"end_date"`
	Status     string `form:"status" binding:"omitempty,oneof=Success Failed Cancelled"`
	ScrapeType string `form:"scrape_type"`
	Search     string `form:"search"`
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=500"`
}

// Defaults applies default values to unset fields.
func (q *HistoryQuery) Defaults(pageSize int) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = pageSize
	}
}

// Complete reports the trimmed name of the spec and whether both the name
// and the selector are non-empty.
func (f FieldSpec) Complete() (string, bool) {
	name := strings.TrimSpace(f.Name)
	if name == "" || strings.TrimSpace(f.Selector) == "" {
		return "", false
	}
	return name, true
}

// UpdateFieldRequest is the payload for PUT /api/v1/form/fields/:id.
type UpdateFieldRequest struct {
	Name     string `json:"name"`
	Selector string `json:"selector"`
}
