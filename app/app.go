// Package app wires navigation, loading, polling and starring into the
// interactive news page.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/scipunch/newsdesk/api"
	"github.com/scipunch/newsdesk/cache"
	"github.com/scipunch/newsdesk/config"
	"github.com/scipunch/newsdesk/filter"
	"github.com/scipunch/newsdesk/loader"
	"github.com/scipunch/newsdesk/navigator"
	"github.com/scipunch/newsdesk/poller"
	"github.com/scipunch/newsdesk/render"
	"github.com/scipunch/newsdesk/star"
)

// Log lines added by the page itself.
const (
	LineParallel      = "multiple sources crawling in parallel..."
	LineLoadSelection = "fetching the selection..."
)

// ErrNoCard is returned for card numbers not on screen.
var ErrNoCard = errors.New("no such card")

type Deps struct {
	Config  config.Config
	Client  *api.Client
	Session *cache.Session
	Out     io.Writer
	Width   int
	Clock   func() time.Time // time.Now when nil
	Logger  *slog.Logger
}

// App is one news page session.
type App struct {
	conf     config.Config
	client   *api.Client
	out      io.Writer
	logger   *slog.Logger
	view     *render.View
	nav      *navigator.Navigator
	loader   *loader.Loader
	poller   *poller.Poller
	filters  *filter.FilterPipeline
	articles *cache.Articles
	reader   *render.ArticleRenderer
	newsStar *star.Toggler
	selStar  *star.Toggler

	mu        sync.Mutex
	ctx       context.Context
	items     []api.NewsItem // everything loaded for the current date
	selection bool
}

// New builds the page. ctx bounds every request and the poller.
func New(ctx context.Context, d Deps) *App {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := d.Clock
	if clock == nil {
		clock = time.Now
	}

	a := &App{
		conf:     d.Config,
		client:   d.Client,
		out:      d.Out,
		logger:   logger,
		ctx:      ctx,
		filters:  filter.NewFilterPipeline(d.Config.Filters),
		articles: cache.NewArticles(time.Hour),
		reader:   render.NewArticleRenderer(),
	}
	a.view = render.New(d.Out, render.Options{Width: d.Width, LogLimit: d.Config.LogLimit})
	sources := d.Config.SourceKeys()
	a.loader = loader.New(d.Client, d.Session, sources, logger)
	a.poller = poller.New(d.Client, a.view, poller.Options{
		Interval:    d.Config.PollInterval.Duration,
		ReloadDelay: d.Config.ReloadDelay.Duration,
		OnReload:    a.reloadAfterCrawl,
		Logger:      logger,
	})
	a.newsStar = star.New(d.Client, star.Options{View: a.view, Reconciler: d.Session, Logger: logger})
	a.selStar = star.New(d.Client, star.Options{View: a.view, Reconciler: d.Session, HideUnstarred: true, Logger: logger})
	// Navigator changes only happen under a.mu, so the callback may use the locked loader.
	a.nav = navigator.New(d.Session, sources,
		navigator.WithClock(clock),
		navigator.WithOnChange(func(navigator.State) { a.loadPageLocked(false) }),
	)
	return a
}

// View exposes the terminal view.
func (a *App) View() *render.View { return a.view }

// Navigator exposes the date/source selection.
func (a *App) Navigator() *navigator.Navigator { return a.nav }

// Poller exposes the crawl status poller.
func (a *App) Poller() *poller.Poller { return a.poller }

// Wait blocks until crawl polling and the reload it triggers are done.
func (a *App) Wait(ctx context.Context) error {
	return a.poller.Wait(ctx)
}

// Close stops polling.
func (a *App) Close() {
	a.poller.Stop()
}

// LoadPage loads the current date and source. refresh skips the session cache.
func (a *App) LoadPage(refresh bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.selection = false
	a.view.SetSelection(false)
	a.loadPageLocked(refresh)
}

func (a *App) loadPageLocked(refresh bool) {
	a.poller.Stop()
	st := a.nav.State()
	a.view.Header(navigator.DisplayDate(st.Date), st.Source, a.nav.CanAdvance())

	res := a.loader.Load(a.ctx, st.Source, st.DateString(), refresh)
	a.logger.Debug("page loaded", "source", st.Source, "date", st.DateString(), "state", res.Kind, "cached", res.FromCache)

	switch res.Kind {
	case loader.Loaded:
		a.items = a.filters.Apply(res.Items, a.conf)
		a.view.ShowLoaded(filter.BySource(a.items, st.Source))
	case loader.Loading:
		a.items = nil
		a.view.ShowLoading()
		if res.Parallel {
			a.view.AppendLog(LineParallel)
		}
		a.poller.Start(a.ctx, res.PollSource)
	default:
		a.items = nil
		a.view.ShowEmpty()
	}
}

func (a *App) reloadAfterCrawl() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.selection {
		return
	}
	// The crawl replaced the backend's list, so the cached copy is stale.
	a.loadPageLocked(true)
}

// Prev moves one day back and reloads.
func (a *App) Prev() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.leaveSelectionLocked()
	a.nav.Prev()
}

// Next moves one day forward and reloads. It reports false on today.
func (a *App) Next() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	wasSelection := a.selection
	a.leaveSelectionLocked()
	moved := a.nav.Next()
	if !moved && wasSelection {
		a.loadPageLocked(false)
	}
	return moved
}

// SetDate jumps to a YYYY-MM-DD date and reloads.
func (a *App) SetDate(s string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.leaveSelectionLocked()
	return a.nav.ParseDate(s)
}

// SetSource selects a source and reloads.
func (a *App) SetSource(key string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.leaveSelectionLocked()
	return a.nav.SetSource(key)
}

// Fetch asks the backend to crawl the current source and follows its progress.
func (a *App) Fetch() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.leaveSelectionLocked()

	st := a.nav.State()
	source := st.Source
	if source == navigator.AllSources {
		source = a.conf.SourceKeys()[0]
	}

	a.poller.Stop()
	a.view.ShowLoading()
	a.view.AppendLog(fmt.Sprintf("starting manual crawl of %s...", source))

	if err := a.client.StartCrawl(a.ctx, source, st.DateString()); err != nil {
		a.logger.Error("failed to start crawl", "source", source, "error", err)
		a.view.AppendLog("✗ failed to start crawl: " + err.Error())
		a.view.ShowEmpty()
		return err
	}
	a.poller.Start(a.ctx, source)
	return nil
}

// Star toggles the star of card n (1-based).
func (a *App) Star(n int) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	item, err := a.cardLocked(n)
	if err != nil {
		return err
	}
	toggler := a.newsStar
	if a.selection {
		toggler = a.selStar
	}
	if err := toggler.Toggle(a.ctx, &item); err != nil {
		return err
	}
	for i := range a.items {
		if a.items[i].Link == item.Link {
			a.items[i].Starred = item.Starred
		}
	}
	return nil
}

// Open prints the original and translated article of card n (1-based).
func (a *App) Open(n int) error {
	a.mu.Lock()
	item, err := a.cardLocked(n)
	a.mu.Unlock()
	if err != nil {
		return err
	}

	article, ok := a.articles.Get(item.Link)
	if !ok {
		article, err = a.client.Article(a.ctx, item.Link)
		if err != nil {
			a.logger.Error("failed to load article", "link", item.Link, "error", err)
			var statusErr *api.StatusError
			if errors.As(err, &statusErr) {
				a.view.Message("%s", render.TextArticleFailed)
			} else {
				a.view.Message("%s", render.TextNetworkError)
			}
			return err
		}
		if article.Status == api.StatusSuccess {
			a.articles.Set(item.Link, article)
			a.logger.Debug("article cached", "link", item.Link, "cached", a.articles.Len())
		}
	}
	return a.reader.Write(a.out, item.Link, article)
}

// Selection switches to the starred collection.
func (a *App) Selection() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.poller.Stop()
	a.selection = true
	a.view.SetSelection(true)

	a.view.ShowLoading()
	a.view.AppendLog(LineLoadSelection)

	resp, err := a.client.Selection(a.ctx)
	if err != nil {
		a.logger.Error("failed to load selection", "error", err)
		a.view.ShowEmpty()
		return
	}
	if resp.Status != api.StatusSuccess || len(resp.Data) == 0 {
		a.view.ShowEmpty()
		return
	}
	a.view.ShowLoaded(resp.Data)
}

// InSelection reports whether the selection is shown.
func (a *App) InSelection() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.selection
}

func (a *App) leaveSelectionLocked() {
	if !a.selection {
		return
	}
	a.selection = false
	a.view.SetSelection(false)
}

func (a *App) cardLocked(n int) (api.NewsItem, error) {
	items := a.view.Items()
	if n < 1 || n > len(items) || a.view.Hidden(items[n-1].Link) {
		return api.NewsItem{}, fmt.Errorf("%w: %d", ErrNoCard, n)
	}
	return items[n-1], nil
}
