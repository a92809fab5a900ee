package history

import (
	"io"
	"strings"

	"github.com/use-agent/scrapedesk/models"
	"github.com/use-agent/scrapedesk/projector"
)

// CSVColumns is the header of ExportCSV.
var CSVColumns = []string{"id", "timestamp", "scrapeType", "targetUrl", "status", "errorMessage"}

// ExportCSV writes the entry summaries as CSV, one line per entry.
func ExportCSV(w io.Writer, entries []models.LogEntry) error {
	lines := make([]string, 0, len(entries)+1)
	lines = append(lines, line(CSVColumns))
	for _, e := range entries {
		msg := ""
		if e.ErrorMessage != nil {
			msg = *e.ErrorMessage
		}
		lines = append(lines, line([]string{
			e.ID, e.Timestamp, e.ScrapeType, e.TargetURL, string(e.Status), msg,
		}))
	}
	_, err := io.WriteString(w, strings.Join(lines, "\n"))
	return err
}

func line(cells []string) string {
	out := make([]string, len(cells))
	for i, c := range cells {
		out[i] = projector.EscapeCSV(c)
	}
	return strings.Join(out, ",")
}
