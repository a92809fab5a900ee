package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/use-agent/scrapedesk/backend"
	"github.com/use-agent/scrapedesk/form"
	"github.com/use-agent/scrapedesk/models"
	"github.com/use-agent/scrapedesk/operation"
	"github.com/use-agent/scrapedesk/preview"
	"github.com/use-agent/scrapedesk/projector"
	"github.com/use-agent/scrapedesk/runner"
)

// formatTable prints a terminal table instead of an export file.
const formatTable = "table"

// formatPreview prints the static page as Markdown.
const formatPreview = "preview"

var (
	outPath string

	staticFormat string

	dynamicFormat string
	dyn           = form.Default()
	fieldFlags    []string
)

func init() {
	staticCmd.Flags().StringVar(&staticFormat, "format", formatPreview, "preview, table, json, csv, xlsx or md")
	staticCmd.Flags().StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")
	rootCmd.AddCommand(staticCmd)

	f := dynamicCmd.Flags()
	f.StringVar(&dyn.DynamicURL, "url", "", "page to scrape")
	f.StringVar(&dyn.ContainerSelector, "container", "", "selector of the repeating item container")
	f.StringArrayVar(&fieldFlags, "field", nil, "field as name=selector, repeatable")
	f.BoolVar(&dyn.EnableScrolling, "scroll", false, "scroll to load more items")
	f.IntVar(&dyn.MaxScrolls, "max-scrolls", dyn.MaxScrolls, "maximum scroll steps")
	f.BoolVar(&dyn.EnablePagination, "paginate", false, "follow pagination")
	f.StringVar(&dyn.PaginationType, "pagination", dyn.PaginationType, "next_button or url_parameter")
	f.IntVar(&dyn.StartPage, "start-page", dyn.StartPage, "first page")
	f.IntVar(&dyn.EndPage, "end-page", dyn.EndPage, "last page")
	f.StringVar(&dyn.PageParam, "page-param", dyn.PageParam, "query parameter carrying the page number")
	f.StringVar(&dyn.NextButtonSelector, "next-button", "", "selector of the next page control")
	f.StringVar(&dynamicFormat, "format", formatTable, "table, json, csv, xlsx or md")
	f.StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")
	_ = dynamicCmd.MarkFlagRequired("url")
	rootCmd.AddCommand(dynamicCmd)
}

var staticCmd = &cobra.Command{
	Use:   "static <url>",
	Short: "Fetches a page with the backend's static scraper.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		run := newRunner()
		defer run.Close()

		ticket, err := run.Static(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		op, err := await(cmd.Context(), run, ticket)
		if err != nil {
			return err
		}

		return writeOutput(func(w io.Writer) error {
			if staticFormat == formatPreview {
				p, err := preview.NewRenderer().Render(op.Result, strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(w, p.Markdown)
				return err
			}
			return emit(w, projector.Project(projector.Normalize(op.Result), nil), staticFormat, op.ScrapeType)
		})
	},
}

var dynamicCmd = &cobra.Command{
	Use:   "dynamic",
	Short: "Runs a browser-driven scrape of repeating items.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fields, err := parseFields(fieldFlags)
		if err != nil {
			return err
		}
		dyn.Fields = fields
		dyn.Normalize()

		run := newRunner()
		defer run.Close()

		ticket, err := run.Dynamic(cmd.Context(), dyn)
		if err != nil {
			return err
		}
		op, err := await(cmd.Context(), run, ticket)
		if err != nil {
			return err
		}

		p := projector.Project(projector.Normalize(op.Result), dyn.Fields.Order())
		return writeOutput(func(w io.Writer) error {
			return emit(w, p, dynamicFormat, op.ScrapeType)
		})
	},
}

func newRunner() *runner.Runner {
	return runner.New(backend.New(cfg.Backend), operation.NewStore())
}

// await waits for ticket and returns the finished operation. When ctx is
// interrupted first, the backend is told to stop and the cancellation is
// reported as an error.
func await(ctx context.Context, run *runner.Runner, ticket *runner.Ticket) (models.Operation, error) {
	slog.Debug("waiting for backend", "operation", ticket.Key, "type", ticket.Type)
	if err := ticket.Wait(ctx); err != nil && ctx.Err() == nil {
		return models.Operation{}, err
	}

	if ctx.Err() != nil {
		res, err := run.Cancel(context.WithoutCancel(ctx))
		if err != nil {
			slog.Warn("cancel failed", "error", err)
		} else if res.Notice != "" {
			slog.Info("backend acknowledged cancel", "notice", res.Notice)
		}
		return models.Operation{}, errors.New(models.CancelledNotice)
	}

	op := run.Store().Snapshot()
	if op.Status == models.StatusFailed && op.ErrorMessage != nil {
		return op, errors.New(*op.ErrorMessage)
	}
	return op, nil
}

// parseFields turns name=selector flags into form fields, in flag order.
func parseFields(specs []string) (form.Fields, error) {
	fields := make(form.Fields, 0, len(specs))
	for _, s := range specs {
		name, sel, ok := strings.Cut(s, "=")
		if !ok {
			return nil, fmt.Errorf("--field %q: want name=selector", s)
		}
		spec := fields.Add()
		fields.Update(spec.ID, strings.TrimSpace(name), strings.TrimSpace(sel))
	}
	if len(fields) == 0 {
		return form.NewFields(), nil
	}
	return fields, nil
}

func emit(w io.Writer, p *projector.Projection, format string, typ models.ScrapeType) error {
	if format == formatTable {
		return projector.RenderTable(w, p)
	}
	f, err := projector.ParseFormat(format)
	if err != nil {
		return err
	}
	slog.Debug("exporting", "format", f, "type", typ)
	return projector.Export(w, p, f)
}

// writeOutput hands fn stdout, or the --out file.
func writeOutput(fn func(w io.Writer) error) error {
	if outPath == "" {
		return fn(os.Stdout)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	slog.Info("saved", "path", outPath)
	return nil
}
