package models

// ErrorResponse is the body of every failed API call.
type ErrorResponse struct {
	Success bool         `json:"success"`
	Error   *ErrorDetail `json:"error"`
}

// TicketResponse is returned when a scrape request has been dispatched.
type TicketResponse struct {
	Success bool       `json:"success"`
	Key     string     `json:"operation_key"`
	Type    ScrapeType `json:"scrape_type"`
	Status  Status     `json:"status"`
}

// OperationResponse is the response for GET /api/v1/operation and
// POST /api/v1/operation/cancel.
type OperationResponse struct {
	Success   bool      `json:"success"`
	Operation Operation `json:"operation"`
	IsLoading bool      `json:"is_loading"`

	// SessionID is the active interactive session, if any.
	SessionID string `json:"session_id,omitempty"`

	// Notice carries the backend's answer to a stop request.
	Notice string `json:"notice,omitempty"`
}

// ProjectionResponse is the tabular view of a result payload.
type ProjectionResponse struct {
	Success bool `json:"success"`

	// Kind is "tabular", "scalar" or "empty".
	Kind    string     `json:"kind"`
	Columns []string   `json:"columns,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`

	// KeyColumn is the identifying column used to filter rows, if any.
	KeyColumn string `json:"key_column,omitempty"`

	// Dropped counts rows removed by the key-column filter.
	Dropped int `json:"dropped"`

	Text    string `json:"text,omitempty"`
	Message string `json:"message,omitempty"`

	// Raw is the pretty JSON of the unfiltered records, set when every
	// row was filtered out.
	Raw string `json:"raw,omitempty"`
}

// Link is an anchor found in previewed HTML.
type Link struct {
	Href string `json:"href"`
	Text string `json:"text,omitempty"`
}

// PreviewResponse is the rendered form of a static scrape result.
type PreviewResponse struct {
	Success  bool   `json:"success"`
	Title    string `json:"title,omitempty"`
	Markdown string `json:"markdown"`
	Links    []Link `json:"links,omitempty"`
	Summary  string `json:"summary,omitempty"`
}

// HistoryListResponse is the response for GET /api/v1/history.
type HistoryListResponse struct {
	Success    bool       `json:"success"`
	Entries    []LogEntry `json:"entries"`
	Total      int        `json:"total"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
	TotalPages int        `json:"total_pages"`
}

// HistoryEntryResponse is the response for GET /api/v1/history/:id.
type HistoryEntryResponse struct {
	Success bool     `json:"success"`
	Entry   LogEntry `json:"entry"`
}

// MessageResponse is a generic acknowledgement.
type MessageResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// LogPathResponse is the response for the history path endpoints.
type LogPathResponse struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
	Message string `json:"message,omitempty"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status     string `json:"status"` // "healthy" or "busy"
	Uptime     string `json:"uptime"`
	BackendURL string `json:"backend_url"`
	Operation  Status `json:"operation_status"`
	Version    string `json:"version"`
}
