package main

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/use-agent/scrapedesk/backend"
	"github.com/use-agent/scrapedesk/cache"
	"github.com/use-agent/scrapedesk/history"
	"github.com/use-agent/scrapedesk/models"
	"github.com/use-agent/scrapedesk/projector"
)

var logQuery models.HistoryQuery

func init() {
	for _, c := range []*cobra.Command{logsListCmd, logsExportCmd} {
		f := c.Flags()
		f.StringVar(&logQuery.StartDate, "from", "", "first day, YYYY-MM-DD")
		f.StringVar(&logQuery.EndDate, "to", "", "last day, YYYY-MM-DD")
		f.StringVar(&logQuery.Status, "status", "", "Success, Failed or Cancelled")
		f.StringVar(&logQuery.ScrapeType, "type", "", "scrape type")
		f.StringVar(&logQuery.Search, "search", "", "substring of id or target URL")
	}
	logsListCmd.Flags().IntVar(&logQuery.Page, "page", 1, "page number")
	logsListCmd.Flags().IntVar(&logQuery.PageSize, "page-size", 0, "entries per page")
	logsExportCmd.Flags().StringVarP(&outPath, "out", "o", "", "write to file instead of stdout")

	logsCmd.AddCommand(logsListCmd, logsShowCmd, logsDeleteCmd, logsClearCmd, logsPathCmd, logsExportCmd)
	rootCmd.AddCommand(logsCmd)
}

func newBrowser() *history.Browser {
	return history.New(backend.New(cfg.Backend), cache.New(0, 0), cfg.History.PageSize)
}

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Browses the backend's scrape history.",
}

var logsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists history entries, newest first.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := newBrowser().List(cmd.Context(), logQuery)
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"ID", "Timestamp", "Type", "Target URL", "Status"})
		for _, e := range p.Entries {
			t.AppendRow(table.Row{e.ID, e.Timestamp, e.ScrapeType, e.TargetURL, e.Status})
		}
		t.SetCaption("page %d of %d, %d entries", p.Page, max(p.TotalPages, 1), p.Total)
		fmt.Println(t.Render())
		return nil
	},
}

var logsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Shows one entry and its scraped data.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := newBrowser().Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendRows([]table.Row{
			{"ID", e.ID},
			{"Timestamp", e.Timestamp},
			{"Type", e.ScrapeType},
			{"Target URL", e.TargetURL},
			{"Status", e.Status},
		})
		if e.ErrorMessage != nil {
			t.AppendRow(table.Row{"Error", *e.ErrorMessage})
		}
		fmt.Println(t.Render())
		return projector.RenderTable(os.Stdout, history.Project(e))
	},
}

var logsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Deletes one entry.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := newBrowser().Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Printf("Log entry %s deleted.\n", args[0])
		return nil
	},
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Deletes every entry.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := newBrowser().Clear(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Println(res.Message)
		for _, e := range res.Errors {
			fmt.Fprintln(os.Stderr, "  ", e)
		}
		return nil
	},
}

var logsPathCmd = &cobra.Command{
	Use:   "path [new-path]",
	Short: "Prints the backend log directory, or moves it.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		b := newBrowser()
		var (
			p   *models.LogPath
			err error
		)
		if len(args) == 1 {
			p, err = b.SetLogPath(cmd.Context(), args[0])
		} else {
			p, err = b.LogPath(cmd.Context())
		}
		if err != nil {
			return err
		}
		fmt.Println(p.Path)
		if p.Message != "" {
			fmt.Fprintln(os.Stderr, p.Message)
		}
		return nil
	},
}

var logsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Writes matching entries as CSV.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		q := logQuery
		q.Page, q.PageSize = 1, 1<<20
		p, err := newBrowser().List(cmd.Context(), q)
		if err != nil {
			return err
		}
		return writeOutput(func(w io.Writer) error {
			return history.ExportCSV(w, p.Entries)
		})
	},
}
