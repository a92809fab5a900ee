package form

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/use-agent/scrapedesk/models"
)

// ValidateURL checks that raw is an absolute http(s) URL.
func ValidateURL(raw string) error {
	u, err := url.ParseRequestURI(strings.TrimSpace(raw))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%q is not a valid http(s) URL", raw)
	}
	return nil
}

// ValidateSelector checks that sel parses as a CSS selector group.
func ValidateSelector(sel string) error {
	if _, err := cascadia.ParseGroup(sel); err != nil {
		return fmt.Errorf("invalid CSS selector %q: %v", sel, err)
	}
	return nil
}

// isXPath reports whether sel is written as an XPath expression, which the
// backend accepts for the next-button selector.
func isXPath(sel string) bool {
	return strings.HasPrefix(sel, "//") || strings.HasPrefix(sel, "(//")
}

// Validate checks the fields a scrape of the given type needs. It returns an
// INVALID_INPUT AppError listing every problem, or nil.
func (s *State) Validate(scrapeType models.ScrapeType) error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	switch scrapeType {
	case models.ScrapeTypeStatic:
		if strings.TrimSpace(s.StaticURL) == "" {
			add("url is required")
		} else if err := ValidateURL(s.StaticURL); err != nil {
			add("%v", err)
		}

	case models.ScrapeTypeDynamic:
		if strings.TrimSpace(s.DynamicURL) == "" {
			add("url is required")
		} else if err := ValidateURL(s.DynamicURL); err != nil {
			add("%v", err)
		}
		s.validateExtraction(add)
		if s.EnablePagination && s.StartPage > 0 && s.EndPage < s.StartPage {
			add("end page must not be before start page")
		}

	case models.ScrapeTypeInteractiveStart:
		if u := strings.TrimSpace(s.InteractiveStartURL); u != "" {
			if err := ValidateURL(u); err != nil {
				add("%v", err)
			}
		}

	case models.ScrapeTypeInteractiveScrape:
		s.validateExtraction(add)
		if s.EnablePagination && s.NumAdditionalPages < 0 {
			add("number of additional pages must not be negative")
		}

	case models.ScrapeTypeInteractiveEnd:

	default:
		add("unknown scrape type %q", scrapeType)
	}

	if len(problems) == 0 {
		return nil
	}
	return models.NewAppError(models.ErrCodeInvalidInput, strings.Join(problems, "; "), nil)
}

// validateExtraction covers the container, field and pagination settings
// shared by dynamic and interactive scrapes.
func (s *State) validateExtraction(add func(string, ...any)) {
	container := strings.TrimSpace(s.ContainerSelector)
	if container == "" {
		add("container selector is required")
	} else if err := ValidateSelector(container); err != nil {
		add("container: %v", err)
	}

	complete := 0
	for i, spec := range s.Fields {
		name, ok := spec.Complete()
		if !ok {
			continue
		}
		complete++
		if err := ValidateSelector(strings.TrimSpace(spec.Selector)); err != nil {
			add("field %d (%s): %v", i+1, name, err)
		}
	}
	if complete == 0 {
		add("at least one field needs both a name and a selector")
	}

	if s.EnableScrolling && s.MaxScrolls < 1 {
		add("max scrolls must be at least 1")
	}

	if !s.EnablePagination {
		return
	}
	switch s.PaginationType {
	case models.PaginationURLParameter:
		if strings.TrimSpace(s.PageParam) == "" {
			add("page parameter is required for URL parameter pagination")
		}
	case models.PaginationNextButton:
		// Empty lets the backend fall back to its default next-button selectors.
		if sel := strings.TrimSpace(s.NextButtonSelector); sel != "" && !isXPath(sel) {
			if err := ValidateSelector(sel); err != nil {
				add("next button: %v", err)
			}
		}
	default:
		add("unknown pagination type %q", s.PaginationType)
	}
}
