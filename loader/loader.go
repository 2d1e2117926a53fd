// Package loader resolves what the news page shows for a source and date.
package loader

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/scipunch/newsdesk/api"
)

// AllSources loads every configured source.
const AllSources = "all"

// Kind is the page state a load resolves to.
type Kind int

const (
	Empty Kind = iota
	Loading
	Loaded
)

func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	default:
		return "empty"
	}
}

// NewsFetcher reads a news list. *api.Client satisfies it.
type NewsFetcher interface {
	News(ctx context.Context, source, date string) (api.NewsResponse, error)
}

// Cache holds loaded lists per source and date. *cache.Session satisfies it.
// Implementations must be safe for concurrent use: an all-source load calls
// SetNews from several goroutines.
type Cache interface {
	GetNews(source, date string) ([]api.NewsItem, bool)
	SetNews(source, date string, items []api.NewsItem) error
}

// Result is the outcome of a load.
type Result struct {
	Kind  Kind
	Items []api.NewsItem
	// PollSource is the source whose crawl should be followed when Kind is Loading.
	PollSource string
	// Parallel is set when several sources were requested and none had news yet.
	Parallel  bool
	FromCache bool
}

type Loader struct {
	client  NewsFetcher
	cache   Cache
	sources []string
	logger  *slog.Logger
}

// New creates a loader over the given source keys. cache may be nil.
func New(client NewsFetcher, cache Cache, sources []string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{client: client, cache: cache, sources: sources, logger: logger}
}

// Load resolves source (or AllSources) on date. refresh skips the session cache.
func (l *Loader) Load(ctx context.Context, source, date string, refresh bool) Result {
	if source == AllSources {
		return l.loadAll(ctx, date, refresh)
	}
	return l.loadOne(ctx, source, date, refresh)
}

func (l *Loader) loadOne(ctx context.Context, source, date string, refresh bool) Result {
	if !refresh && l.cache != nil {
		if items, ok := l.cache.GetNews(source, date); ok {
			l.logger.Debug("using cached news", "source", source, "date", date, "items", len(items))
			return Result{Kind: Loaded, Items: items, FromCache: true}
		}
	}

	resp, err := l.client.News(ctx, source, date)
	if err != nil {
		l.logger.Error("failed to load news", "source", source, "date", date, "error", err)
		return Result{Kind: Empty}
	}

	switch {
	case resp.IsLoaded():
		items := make([]api.NewsItem, len(resp.Data))
		for i, item := range resp.Data {
			if resp.Source != "" {
				item.Source = resp.Source
			}
			item.SourceKey = source
			items[i] = item
		}
		if l.cache != nil {
			if err := l.cache.SetNews(source, date, items); err != nil {
				l.logger.Warn("failed to cache news", "source", source, "date", date, "error", err)
			}
		}
		return Result{Kind: Loaded, Items: items}
	case resp.Status == api.StatusLoading:
		poll := source
		if resp.CrawlStatus != nil && resp.CrawlStatus.SourceKey != "" {
			poll = resp.CrawlStatus.SourceKey
		}
		return Result{Kind: Loading, PollSource: poll}
	case resp.Status == api.StatusEmpty:
		return Result{Kind: Empty}
	default:
		l.logger.Warn("unexpected news status", "source", source, "status", resp.Status)
		return Result{Kind: Empty}
	}
}

// loadAll fetches every source concurrently. Loaded beats loading beats empty.
func (l *Loader) loadAll(ctx context.Context, date string, refresh bool) Result {
	results := make([]Result, len(l.sources))

	g, gctx := errgroup.WithContext(ctx)
	for i, source := range l.sources {
		g.Go(func() error {
			results[i] = l.loadOne(gctx, source, date, refresh)
			return nil
		})
	}
	_ = g.Wait()

	out := Result{Kind: Empty, FromCache: true}
	for _, r := range results {
		switch r.Kind {
		case Loaded:
			out.Kind = Loaded
			out.Items = append(out.Items, r.Items...)
			out.FromCache = out.FromCache && r.FromCache
		case Loading:
			if out.PollSource == "" {
				out.PollSource = r.PollSource
			}
		}
	}

	switch {
	case out.Kind == Loaded:
		out.PollSource = ""
		return out
	case out.PollSource != "":
		return Result{Kind: Loading, PollSource: out.PollSource, Parallel: true}
	default:
		return Result{Kind: Empty}
	}
}
