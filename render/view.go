// Package render draws the news page on a terminal.
package render

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"text/template"

	"github.com/mattn/go-runewidth"

	"github.com/scipunch/newsdesk/api"
)

// State is the section of the page currently shown.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateLoaded
)

// Texts shown by the view.
const (
	TextPreparing   = "preparing..."
	TextNoNews      = "no news"
	TextEmpty       = "no news for this date, use `fetch` to crawl it"
	TextEmptySel    = "the selection is empty"
	TextPendingKo   = "Loading..."
	cardIndentWidth = 5
)

type Options struct {
	Width    int // Columns; DefaultWidth when zero
	LogLimit int // Visible log lines; 50 when zero
	// Selection renders the starred collection, where unstarred cards disappear.
	Selection bool
}

// View is the terminal counterpart of the news page. It is safe for
// concurrent use; the poller reports from its own goroutine.
type View struct {
	mu       sync.Mutex
	out      io.Writer
	opts     Options
	state    State
	items    []api.NewsItem
	hidden   map[string]bool
	logs     []string
	progress float64
	total    int
	cards    *template.Template
}

type card struct {
	Index   int
	Starred bool
	Source  string
	Section string
	Title   string
	TitleKo string
}

const cardTemplate = `{{range .}}{{printf "%3d" .Index}}. {{if .Starred}}★{{else}}☆{{end}} {{.Source}}{{with .Section}} · {{.}}{{end}}
     {{fit .Title}}
     {{fit .TitleKo}}
{{end}}`

func New(out io.Writer, opts Options) *View {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.LogLimit <= 0 {
		opts.LogLimit = 50
	}
	v := &View{out: out, opts: opts, hidden: make(map[string]bool)}
	v.cards = template.Must(template.New("cards").Funcs(template.FuncMap{
		"fit": func(s string) string { return Fit(s, opts.Width-cardIndentWidth) },
	}).Parse(cardTemplate))
	return v
}

// Header prints the date bar.
func (v *View) Header(displayDate, source string, canAdvance bool) {
	next := "[next ▶]"
	if !canAdvance {
		next = "[next ▷]"
	}
	line := fmt.Sprintf("[◀ prev] %s · %s %s", displayDate, source, next)

	v.mu.Lock()
	defer v.mu.Unlock()
	v.printf("%s\n%s\n", line, strings.Repeat("─", min(runewidth.StringWidth(line), v.opts.Width)))
}

// ShowLoaded replaces the cards and prints them.
func (v *View) ShowLoaded(items []api.NewsItem) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = StateLoaded
	v.items = append([]api.NewsItem(nil), items...)
	v.hidden = make(map[string]bool)
	v.drawCardsLocked()
}

// ShowLoading resets the crawl log and progress.
func (v *View) ShowLoading() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = StateLoading
	v.items = nil
	v.hidden = make(map[string]bool)
	v.logs = []string{TextPreparing}
	v.progress = 0
	v.total = 0
	v.printf("%s\n  › %s\n", ProgressBar(0, 0, v.barWidth()), TextPreparing)
}

// ShowEmpty shows the crawl hint.
func (v *View) ShowEmpty() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.state = StateEmpty
	v.items = nil
	v.printf("%s\n", v.emptyText())
}

// AppendLog adds a crawl log line, keeping the last LogLimit lines.
func (v *View) AppendLog(line string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.logs = append(v.logs, line)
	if extra := len(v.logs) - v.opts.LogLimit; extra > 0 {
		v.logs = append([]string(nil), v.logs[extra:]...)
	}
	v.printf("  › %s\n", line)
}

// SetProgress updates the progress bar. Unchanged values are not reprinted.
func (v *View) SetProgress(percent float64, total int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if percent == v.progress && total == v.total {
		return
	}
	v.progress = percent
	v.total = total
	v.printf("%s\n", ProgressBar(percent, total, v.barWidth()))
}

// SetStarred mirrors a star change on the card of link.
func (v *View) SetStarred(link string, starred bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i := range v.items {
		if v.items[i].Link != link {
			continue
		}
		v.items[i].Starred = starred
		mark := "☆ unstarred"
		if starred {
			mark = "★ starred"
		}
		v.printf("%s: %s\n", mark, Fit(v.items[i].Title, v.opts.Width-len(mark)-2))
	}
}

// SetHidden hides or shows the card of link.
func (v *View) SetHidden(link string, hidden bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if hidden {
		v.hidden[link] = true
	} else {
		delete(v.hidden, link)
	}
}

// Message prints a free-form line.
func (v *View) Message(format string, args ...any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.printf(format+"\n", args...)
}

// Redraw prints the current state again.
func (v *View) Redraw() {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch v.state {
	case StateLoaded:
		v.drawCardsLocked()
	case StateLoading:
		v.printf("%s\n", ProgressBar(v.progress, v.total, v.barWidth()))
		for _, line := range v.logs {
			v.printf("  › %s\n", line)
		}
	default:
		v.printf("%s\n", v.emptyText())
	}
}

// SetSelection switches between the news page and the selection page.
func (v *View) SetSelection(on bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.opts.Selection = on
}

// State returns the section currently shown.
func (v *View) State() State {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Items returns the cards, hidden ones included, in display order.
func (v *View) Items() []api.NewsItem {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]api.NewsItem(nil), v.items...)
}

// Hidden reports whether the card of link is hidden.
func (v *View) Hidden(link string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.hidden[link]
}

// Logs returns the visible crawl log.
func (v *View) Logs() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.logs...)
}

// Progress returns the last progress shown.
func (v *View) Progress() (float64, int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.progress, v.total
}

func (v *View) drawCardsLocked() {
	cards := make([]card, 0, len(v.items))
	for i, item := range v.items {
		if v.hidden[item.Link] {
			continue
		}
		ko := item.TitleKo
		if ko == "" {
			ko = TextPendingKo
		}
		cards = append(cards, card{
			Index:   i + 1,
			Starred: item.Starred,
			Source:  item.Source,
			Section: item.Section,
			Title:   item.Title,
			TitleKo: ko,
		})
	}
	if len(cards) == 0 {
		v.printf("%s\n", TextNoNews)
		return
	}
	if err := v.cards.Execute(v.out, cards); err != nil {
		v.printf("failed to render cards: %v\n", err)
	}
}

func (v *View) emptyText() string {
	if v.opts.Selection {
		return TextEmptySel
	}
	return TextEmpty
}

func (v *View) barWidth() int {
	return max(10, min(40, v.opts.Width-40))
}

func (v *View) printf(format string, args ...any) {
	fmt.Fprintf(v.out, format, args...)
}

// ProgressBar renders percent as a bar followed by the article count.
func ProgressBar(percent float64, total, width int) string {
	filled := int(percent / 100 * float64(width))
	filled = max(0, min(width, filled))
	return fmt.Sprintf("[%s%s] %3.0f%% | found %d articles",
		strings.Repeat("█", filled), strings.Repeat("░", width-filled), percent, total)
}

// Fit truncates s to width terminal columns, counting wide runes as two.
func Fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	return runewidth.Truncate(s, width, "…")
}
