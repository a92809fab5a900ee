package models

import "encoding/json"

// LogStatus is the backend's verdict for a logged scrape.
type LogStatus string

const (
	LogStatusSuccess   LogStatus = "Success"
	LogStatusFailed    LogStatus = "Failed"
	LogStatusCancelled LogStatus = "Cancelled"
)

// LogEntry is one record of the backend history log. The backend owns its
// lifecycle; the client only reads and deletes entries.
type LogEntry struct {
	ID             string          `json:"id"`
	Timestamp      string          `json:"timestamp"`
	ScrapeType     string          `json:"scrapeType"`
	TargetURL      string          `json:"targetUrl"`
	Status         LogStatus       `json:"status"`
	RequestPayload json.RawMessage `json:"requestPayload,omitempty"`
	ScrapedData    json.RawMessage `json:"scrapedData,omitempty"`
	ErrorMessage   *string         `json:"errorMessage,omitempty"`
}

// LogPath is the backend's answer for GET|POST /logs/config/path.
type LogPath struct {
	Path    string `json:"path"`
	Message string `json:"message,omitempty"`
}

// ClearLogsResult is the backend's answer for DELETE /logs/clear.
type ClearLogsResult struct {
	Message string   `json:"message"`
	Errors  []string `json:"errors,omitempty"`
}

// InteractiveResponse is the backend's answer for interactive session
// start and stop calls.
type InteractiveResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message,omitempty"`
	SessionID  string `json:"session_id,omitempty"`
	CurrentURL string `json:"current_url,omitempty"`
}

// StopResponse is the backend's answer for POST /stop-scraper and
// POST /cancel-task/{id}.
type StopResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message,omitempty"`
}
