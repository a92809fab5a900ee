package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/scrapedesk/backend"
	"github.com/use-agent/scrapedesk/cache"
	"github.com/use-agent/scrapedesk/config"
	"github.com/use-agent/scrapedesk/form"
	"github.com/use-agent/scrapedesk/history"
	"github.com/use-agent/scrapedesk/models"
	"github.com/use-agent/scrapedesk/preview"
	"github.com/use-agent/scrapedesk/projector"
)

func main() {
	cfg := config.Load()
	be := backend.New(cfg.Backend)
	hist := history.New(be, cache.New(cfg.Cache.MaxEntries, cfg.Cache.TTL), cfg.History.PageSize)

	s := server.NewMCPServer(
		"scrapedesk",
		config.Version,
		server.WithToolCapabilities(false),
	)

	staticTool := mcp.NewTool("static_scrape",
		mcp.WithDescription("Fetch a page with the backend's static scraper and return it as Markdown."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The http(s) URL of the page"),
		),
	)
	s.AddTool(staticTool, handleStatic(be, preview.NewRenderer()))

	dynamicTool := mcp.NewTool("dynamic_scrape",
		mcp.WithDescription("Scrape repeating items from a JavaScript-rendered page. Each field is extracted relative to every container match; the result is a Markdown table."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The http(s) URL of the page"),
		),
		mcp.WithString("container_selector",
			mcp.Description("CSS or XPath selector of the repeating item container"),
		),
		mcp.WithObject("fields",
			mcp.Required(),
			mcp.Description("Map of column name to CSS or XPath selector"),
		),
		mcp.WithArray("field_order",
			mcp.Description("Column order; defaults to the order fields are listed"),
			mcp.WithStringItems(),
		),
		mcp.WithNumber("max_scrolls",
			mcp.Description("Scroll up to this many times to load more items (0 disables scrolling)"),
		),
	)
	s.AddTool(dynamicTool, handleDynamic(be))

	listLogsTool := mcp.NewTool("list_logs",
		mcp.WithDescription("List the scrape history, newest first."),
		mcp.WithString("status",
			mcp.Description("Only entries with this status"),
			mcp.Enum(string(models.LogStatusSuccess), string(models.LogStatusFailed), string(models.LogStatusCancelled)),
		),
		mcp.WithString("search",
			mcp.Description("Case-insensitive substring of the entry id or target URL"),
		),
		mcp.WithString("start_date", mcp.Description("First day, YYYY-MM-DD")),
		mcp.WithString("end_date", mcp.Description("Last day, YYYY-MM-DD")),
		mcp.WithNumber("page", mcp.Description("Page number, from 1")),
	)
	s.AddTool(listLogsTool, handleListLogs(hist))

	getLogTool := mcp.NewTool("get_log",
		mcp.WithDescription("Show one history entry with its scraped data as a Markdown table."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("The history entry id"),
		),
	)
	s.AddTool(getLogTool, handleGetLog(hist))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

func handleStatic(be *backend.Client, r *preview.Renderer) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}
		url = strings.TrimSpace(url)
		if err := form.ValidateURL(url); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		payload, err := be.ScrapeStatic(ctx, url)
		if err != nil {
			return mcp.NewToolResultError(backend.Message(err)), nil
		}
		p, err := r.Render(payload, url)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to render page: %v", err)), nil
		}

		var result string
		if p.Title != "" {
			result = fmt.Sprintf("Title: %s\nSource: %s\n", p.Title, url)
			if p.Summary != "" {
				result += "Summary: " + p.Summary + "\n"
			}
			result += "\n"
		}
		return mcp.NewToolResultText(result + p.Markdown), nil
	}
}

func handleDynamic(be *backend.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s := form.Default()
		s.DynamicURL = request.GetString("url", "")
		s.ContainerSelector = request.GetString("container_selector", "")
		if n := request.GetInt("max_scrolls", 0); n > 0 {
			s.EnableScrolling, s.MaxScrolls = true, n
		}

		raw, _ := request.GetArguments()["fields"].(map[string]any)
		s.Fields = make(form.Fields, 0, len(raw))
		for _, name := range fieldNames(raw, request.GetStringSlice("field_order", nil)) {
			sel, _ := raw[name].(string)
			spec := s.Fields.Add()
			s.Fields.Update(spec.ID, name, sel)
		}
		s.Normalize()

		if err := s.Validate(models.ScrapeTypeDynamic); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		payload, err := be.ScrapeDynamic(ctx, s.DynamicRequest())
		if err != nil {
			return mcp.NewToolResultError(backend.Message(err)), nil
		}
		text, err := projectionText(projector.Project(projector.Normalize(payload), s.Fields.Order()))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(text), nil
	}
}

// fieldNames returns the keys of fields, led by those listed in order.
// Keys not in order follow alphabetically.
func fieldNames(fields map[string]any, order []string) []string {
	names := make([]string, 0, len(fields))
	seen := make(map[string]bool, len(fields))
	for _, n := range order {
		if _, ok := fields[n]; ok && !seen[n] {
			names = append(names, n)
			seen[n] = true
		}
	}
	rest := make([]string, 0, len(fields))
	for n := range fields {
		if !seen[n] {
			rest = append(rest, n)
		}
	}
	slices.Sort(rest)
	return append(names, rest...)
}

func handleListLogs(hist *history.Browser) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		q := models.HistoryQuery{
			Status:    request.GetString("status", ""),
			Search:    request.GetString("search", ""),
			StartDate: request.GetString("start_date", ""),
			EndDate:   request.GetString("end_date", ""),
			Page:      request.GetInt("page", 1),
		}
		p, err := hist.List(ctx, q)
		if err != nil {
			return mcp.NewToolResultError(backend.Message(err)), nil
		}
		if len(p.Entries) == 0 {
			return mcp.NewToolResultText("No history entries match."), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "Page %d of %d (%d entries)\n\n", p.Page, p.TotalPages, p.Total)
		for _, e := range p.Entries {
			fmt.Fprintf(&b, "- %s  %s  %s  %s  %s\n", e.ID, e.Timestamp, e.ScrapeType, e.Status, e.TargetURL)
		}
		return mcp.NewToolResultText(b.String()), nil
	}
}

func handleGetLog(hist *history.Browser) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("id")
		if err != nil {
			return mcp.NewToolResultError("id is required"), nil
		}
		e, err := hist.Get(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(backend.Message(err)), nil
		}

		header := fmt.Sprintf("ID: %s\nTimestamp: %s\nType: %s\nTarget: %s\nStatus: %s\n",
			e.ID, e.Timestamp, e.ScrapeType, e.TargetURL, e.Status)
		if e.ErrorMessage != nil {
			header += "Error: " + *e.ErrorMessage + "\n"
		}
		text, err := projectionText(history.Project(e))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(header + "\n" + text), nil
	}
}

func projectionText(p *projector.Projection) (string, error) {
	var buf bytes.Buffer
	if err := projector.RenderMarkdown(&buf, p); err != nil {
		return "", fmt.Errorf("failed to render table: %w", err)
	}
	if p.Dropped > 0 {
		fmt.Fprintf(&buf, "\n(%d rows without a %q value were hidden)\n", p.Dropped, p.KeyColumn)
	}
	return buf.String(), nil
}
