package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapedesk/form"
	"github.com/use-agent/scrapedesk/models"
	"github.com/use-agent/scrapedesk/runner"
)

// ScrapeStatic returns a handler for POST /api/v1/scrape/static.
func ScrapeStatic(rn *runner.Runner, forms *form.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.StaticScrapeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			invalidInput(c, err)
			return
		}
		url := strings.TrimSpace(req.URL)
		remember(forms, func(s *form.State) { s.StaticURL = url })

		tk, err := rn.Static(c.Request.Context(), url)
		if err != nil {
			respondError(c, err)
			return
		}
		accepted(c, tk)
	}
}

// ScrapeDynamic returns a handler for POST /api/v1/scrape/dynamic.
//
// The saved form drives the scrape. An optional JSON body is merged into
// the form (and saved) first.
func ScrapeDynamic(rn *runner.Runner, forms *form.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := mergeForm(c, forms)
		if err != nil {
			respondError(c, err)
			return
		}
		tk, err := rn.Dynamic(c.Request.Context(), s)
		if err != nil {
			respondError(c, err)
			return
		}
		accepted(c, tk)
	}
}

// InteractiveStart returns a handler for POST /api/v1/interactive/start.
func InteractiveStart(rn *runner.Runner, forms *form.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body models.InteractiveStartBody
		if err := c.ShouldBindJSON(&body); err != nil && !errors.Is(err, io.EOF) {
			invalidInput(c, err)
			return
		}
		startURL := strings.TrimSpace(body.StartURL)
		if startURL == "" {
			startURL = strings.TrimSpace(forms.Get().InteractiveStartURL)
		} else {
			remember(forms, func(s *form.State) { s.InteractiveStartURL = startURL })
		}

		tk, err := rn.StartInteractive(c.Request.Context(), startURL)
		if err != nil {
			respondError(c, err)
			return
		}
		accepted(c, tk)
	}
}

// InteractiveScrape returns a handler for POST /api/v1/interactive/scrape.
// Like ScrapeDynamic, an optional body is merged into the saved form.
func InteractiveScrape(rn *runner.Runner, forms *form.FileStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, err := mergeForm(c, forms)
		if err != nil {
			respondError(c, err)
			return
		}
		tk, err := rn.ScrapeInteractive(c.Request.Context(), s)
		if err != nil {
			respondError(c, err)
			return
		}
		accepted(c, tk)
	}
}

// InteractiveEnd returns a handler for POST /api/v1/interactive/end.
func InteractiveEnd(rn *runner.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		tk, err := rn.EndInteractive(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		accepted(c, tk)
	}
}

func accepted(c *gin.Context, tk *runner.Ticket) {
	c.JSON(http.StatusAccepted, models.TicketResponse{
		Success: true,
		Key:     tk.Key.String(),
		Type:    tk.Type,
		Status:  models.StatusRunning,
	})
}

// mergeForm decodes an optional JSON body on top of the saved form and
// saves the result. The active session id is never taken from the body.
func mergeForm(c *gin.Context, forms *form.FileStore) (*form.State, error) {
	cur := forms.Get()
	in := cur.Clone()
	if err := c.ShouldBindJSON(in); err != nil {
		if errors.Is(err, io.EOF) {
			return cur, nil
		}
		return nil, models.NewAppError(models.ErrCodeInvalidInput, err.Error(), err)
	}
	return forms.Replace(in)
}

// remember updates the saved form, logging rather than failing the request
// when it cannot be persisted.
func remember(forms *form.FileStore, fn func(s *form.State)) {
	_, err := forms.Update(func(s *form.State) error {
		fn(s)
		return nil
	})
	if err != nil {
		slog.Warn("form state not saved", "error", err)
	}
}
