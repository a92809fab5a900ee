package models

import (
	"encoding/json"
	"time"
)

// ScrapeType tags which kind of request an operation belongs to.
// The zero value means no operation has ever been started.
type ScrapeType string

const (
	ScrapeTypeNone              ScrapeType = ""
	ScrapeTypeStatic            ScrapeType = "static"
	ScrapeTypeDynamic           ScrapeType = "dynamic"
	ScrapeTypeInteractiveStart  ScrapeType = "interactive-start"
	ScrapeTypeInteractiveScrape ScrapeType = "interactive-scrape"
	ScrapeTypeInteractiveEnd    ScrapeType = "interactive-end"
)

// Valid reports whether t is one of the known non-empty scrape types.
func (t ScrapeType) Valid() bool {
	switch t {
	case ScrapeTypeStatic, ScrapeTypeDynamic, ScrapeTypeInteractiveStart,
		ScrapeTypeInteractiveScrape, ScrapeTypeInteractiveEnd:
		return true
	}
	return false
}

// Status is the lifecycle state of the tracked operation.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// CancelledNotice is the user-facing message set when an operation is cancelled.
const CancelledNotice = "Scraping operation was cancelled."

// Operation is a point-in-time copy of the single tracked scrape operation.
type Operation struct {
	ScrapeType ScrapeType `json:"scrape_type"`
	Status     Status     `json:"status"`

	// Key identifies the most recently started request. Empty while idle.
	Key string `json:"operation_key,omitempty"`

	// Result is the raw backend payload once succeeded.
	Result json.RawMessage `json:"result,omitempty"`

	ErrorMessage   *string `json:"error_message"`
	ExternalTaskID *string `json:"external_task_id"`

	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// IsLoading reports whether the operation is still in flight.
func (o Operation) IsLoading() bool {
	return o.Status == StatusRunning
}
