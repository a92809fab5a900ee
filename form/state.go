package form

import (
	"strings"

	"github.com/use-agent/scrapedesk/models"
)

// State is everything the scraper forms remember between sessions.
type State struct {
	StaticURL string `json:"static_url"`

	DynamicURL        string `json:"dynamic_url"`
	ContainerSelector string `json:"container_selector"`
	Fields            Fields `json:"fields"`

	EnableScrolling bool `json:"enable_scrolling"`
	MaxScrolls      int  `json:"max_scrolls"`
	ScrollToEndPage bool `json:"scroll_to_end_page"`

	EnablePagination   bool   `json:"enable_pagination"`
	StartPage          int    `json:"start_page"`
	EndPage            int    `json:"end_page"`
	NumAdditionalPages int    `json:"num_additional_pages"`
	PaginationType     string `json:"pagination_type"`
	PageParam          string `json:"page_param"`
	NextButtonSelector string `json:"next_button_selector"`

	InteractiveStartURL string `json:"interactive_start_url"`

	// SessionID is the active interactive browser session, if any.
	SessionID string `json:"session_id,omitempty"`
}

// Default returns a fresh form.
func Default() *State {
	return &State{
		Fields:         NewFields(),
		MaxScrolls:     5,
		StartPage:      1,
		EndPage:        1,
		PaginationType: models.PaginationNextButton,
		PageParam:      "page",
	}
}

// Normalize repairs a state decoded from storage or a client.
func (s *State) Normalize() {
	s.Fields.normalize()
	if s.MaxScrolls < 1 {
		s.MaxScrolls = 1
	}
	if s.StartPage < 1 {
		s.StartPage = 1
	}
	if s.EndPage < s.StartPage {
		s.EndPage = s.StartPage
	}
	if s.NumAdditionalPages < 0 {
		s.NumAdditionalPages = 0
	}
	if s.PaginationType == "" {
		s.PaginationType = models.PaginationNextButton
	}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := *s
	c.Fields = append(Fields(nil), s.Fields...)
	return &c
}

// DynamicRequest builds the body of a dynamic scrape.
func (s *State) DynamicRequest() *models.DynamicScrapeRequest {
	return &models.DynamicScrapeRequest{
		URL:                strings.TrimSpace(s.DynamicURL),
		ContainerSelector:  strings.TrimSpace(s.ContainerSelector),
		CustomFields:       s.Fields.CustomFields(),
		EnableScrolling:    s.EnableScrolling,
		MaxScrolls:         s.MaxScrolls,
		EnablePagination:   s.EnablePagination,
		StartPage:          s.StartPage,
		EndPage:            s.EndPage,
		PaginationType:     s.PaginationType,
		PageParam:          s.PageParam,
		NextButtonSelector: s.NextButtonSelector,
	}
}

// InteractiveScrapeRequest builds the body of an interactive page scrape.
// Pagination always starts at the current page; NumAdditionalPages further
// pages are visited.
func (s *State) InteractiveScrapeRequest() *models.InteractiveScrapeRequest {
	req := &models.InteractiveScrapeRequest{
		SessionID:         s.SessionID,
		ContainerSelector: strings.TrimSpace(s.ContainerSelector),
		CustomFields:      s.Fields.CustomFields(),
		EnableScrolling:   s.EnableScrolling,
		MaxScrolls:        s.MaxScrolls,
		ScrollToEndPage:   s.EnableScrolling && s.ScrollToEndPage,
		EnablePagination:  s.EnablePagination,
	}
	if !s.EnablePagination {
		return req
	}

	start, end := 1, 1+s.NumAdditionalPages
	req.StartPage = &start
	req.EndPage = &end
	req.PaginationType = s.PaginationType
	switch s.PaginationType {
	case models.PaginationURLParameter:
		req.PageParam = s.PageParam
	case models.PaginationNextButton:
		req.NextButtonSelector = s.NextButtonSelector
	}
	return req
}

// InteractiveStartRequest builds the body that opens an interactive session.
func (s *State) InteractiveStartRequest() *models.InteractiveStartRequest {
	u := strings.TrimSpace(s.InteractiveStartURL)
	if u == "" {
		return &models.InteractiveStartRequest{}
	}
	return &models.InteractiveStartRequest{StartURL: &u}
}
