package render

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/scipunch/newsdesk/api"
	"github.com/scipunch/newsdesk/cache"
	"github.com/scipunch/newsdesk/config"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

// SelectionTable lists starred items.
func SelectionTable(w io.Writer, items []api.NewsItem, width int) {
	t := newTable(w)
	t.AppendHeader(table.Row{"#", "Source", "Section", "Title", "Link"})
	titleWidth := max(12, width/3)
	for i, item := range items {
		t.AppendRow(table.Row{i + 1, item.Source, item.Section, Fit(item.Title, titleWidth), item.Link})
	}
	t.Render()
}

// SourcesTable lists configured sources.
func SourcesTable(w io.Writer, sources []config.SourceConfig) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Key", "Name", "Enabled", "Filters"})
	for _, s := range sources {
		t.AppendRow(table.Row{s.Key, s.Name, s.IsEnabled(), len(s.FilterNames)})
	}
	t.Render()
}

// StoreSummary prints the totals of the session store.
func StoreSummary(w io.Writer, stats cache.StoreStats) {
	oldest := "-"
	if !stats.OldestAccess.IsZero() {
		oldest = stats.OldestAccess.Format(time.DateTime)
	}
	fmt.Fprintf(w, "%d sessions, %d values, oldest used %s\n", stats.Sessions, stats.Values, oldest)
}

// SessionsTable lists stored sessions.
func SessionsTable(w io.Writer, sessions []cache.SessionInfo) {
	t := newTable(w)
	t.AppendHeader(table.Row{"Session", "Created", "Last used", "Values"})
	for _, s := range sessions {
		t.AppendRow(table.Row{s.ID, s.CreatedAt.Format(time.DateTime), s.AccessedAt.Format(time.DateTime), s.Values})
	}
	t.Render()
}
