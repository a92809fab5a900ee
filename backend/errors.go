package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/use-agent/scrapedesk/models"
)

// Error is a non-2xx answer from the backend.
type Error struct {
	StatusCode int
	Status     string // reason phrase, e.g. "Bad Gateway"
	Detail     string // the backend's structured "detail", if any
}

func (e *Error) Error() string {
	return "backend: " + e.Message()
}

// Message is the human-readable description: the backend detail when
// present, else a status-text fallback.
func (e *Error) Message() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("Failed to fetch: %s (Status: %d)", e.Status, e.StatusCode)
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.StatusCode == http.StatusNotFound
}

// Message extracts the user-facing text of any error returned by Client.
func Message(err error) string {
	var be *Error
	if errors.As(err, &be) {
		return be.Message()
	}
	var ae *models.AppError
	if errors.As(err, &ae) {
		return ae.Message
	}
	return err.Error()
}

func newError(resp *resty.Response) *Error {
	code := resp.StatusCode()
	status := strings.TrimSpace(strings.TrimPrefix(resp.Status(), strconv.Itoa(code)))
	if status == "" {
		status = http.StatusText(code)
	}
	return &Error{
		StatusCode: code,
		Status:     status,
		Detail:     detail(resp.Body()),
	}
}

// detail pulls "detail" (or "message") out of a JSON error body. Non-string
// details, such as validation error lists, are returned as compact JSON.
func detail(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if len(payload.Detail) > 0 && string(payload.Detail) != "null" {
		var s string
		if err := json.Unmarshal(payload.Detail, &s); err == nil {
			return s
		}
		return string(payload.Detail)
	}
	return payload.Message
}
