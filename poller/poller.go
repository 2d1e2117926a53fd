// Package poller follows a backend crawl job until it finishes.
package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/scipunch/newsdesk/api"
)

// Lines appended when a crawl reaches a terminal state.
const (
	LineCompleted = "✓ crawl completed"
	LineFailed    = "✗ crawl failed"
)

// StatusFetcher reads the crawl status of a source. *api.Client satisfies it.
type StatusFetcher interface {
	CrawlStatus(ctx context.Context, source string) (api.CrawlStatus, error)
}

// Sink receives crawl progress. Calls come from the poll goroutine.
type Sink interface {
	AppendLog(line string)
	SetProgress(percent float64, total int)
}

type Options struct {
	Interval    time.Duration // Poll period
	ReloadDelay time.Duration // Wait between completion and OnReload
	OnReload    func()        // Called once after a completed crawl
	Logger      *slog.Logger
}

// Poller polls one source at a time at a fixed interval.
type Poller struct {
	fetcher StatusFetcher
	sink    Sink
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	current *run
}

type run struct {
	source string
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates an idle poller.
func New(fetcher StatusFetcher, sink Sink, opts Options) *Poller {
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{fetcher: fetcher, sink: sink, opts: opts, logger: logger}
}

// Start stops any running poll and starts polling source.
func (p *Poller) Start(ctx context.Context, source string) {
	p.Stop()

	ctx, cancel := context.WithCancel(ctx)
	r := &run{source: source, cancel: cancel, done: make(chan struct{})}

	p.mu.Lock()
	p.current = r
	p.mu.Unlock()

	p.logger.Debug("crawl status polling started", "source", source, "interval", p.opts.Interval)
	go p.loop(ctx, r)
}

// Stop cancels the running poll, including a pending reload, and waits for it to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	r := p.current
	p.current = nil
	p.mu.Unlock()

	if r == nil {
		return
	}
	r.cancel()
	<-r.done
	p.logger.Debug("crawl status polling stopped", "source", r.source)
}

// Running reports whether a poll is active, pending reload included.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}

// Source returns the source being polled, or "" when idle.
func (p *Poller) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current == nil {
		return ""
	}
	return p.current.source
}

// Wait blocks until polling is idle, reloads and polls they start included,
// or ctx is done.
func (p *Poller) Wait(ctx context.Context) error {
	for {
		p.mu.Lock()
		r := p.current
		p.mu.Unlock()
		if r == nil {
			return nil
		}
		select {
		case <-r.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (p *Poller) loop(ctx context.Context, r *run) {
	reload := p.poll(ctx, r.source)

	p.mu.Lock()
	owned := p.current == r
	if owned {
		p.current = nil
	}
	p.mu.Unlock()

	r.cancel()
	defer close(r.done)

	// A Stop that raced with the end of the delay wins. The run is already
	// detached, so OnReload may start or stop polling itself.
	if reload && owned && p.opts.OnReload != nil {
		p.opts.OnReload()
	}
}

// poll ticks until a terminal state or cancellation. It returns true when
// the crawl completed and the reload delay elapsed.
func (p *Poller) poll(ctx context.Context, source string) bool {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	seen := make(map[string]struct{})
	for {
		select {
		case <-ctx.Done():
			return false
		case <-ticker.C:
		}

		status, err := p.fetcher.CrawlStatus(ctx, source)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}
			p.logger.Warn("failed to poll crawl status", "source", source, "error", err)
			continue
		}

		for _, line := range NewLines(status.Logs, seen) {
			p.sink.AppendLog(line)
		}
		p.sink.SetProgress(ClampProgress(status.Progress), status.TotalArticles)

		switch status.State {
		case api.CrawlCompleted:
			p.sink.AppendLog(LineCompleted)
			p.logger.Info("crawl completed", "source", source, "articles", status.TotalArticles)
			ticker.Stop()
			return p.wait(ctx, p.opts.ReloadDelay)
		case api.CrawlFailed:
			p.sink.AppendLog(LineFailed)
			p.logger.Warn("crawl failed", "source", source)
			return false
		}
	}
}

func (p *Poller) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// NewLines returns the lines of logs not yet in seen, recording them.
func NewLines(logs []string, seen map[string]struct{}) []string {
	var out []string
	for _, line := range logs {
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}

// ClampProgress bounds a reported percentage to [0, 100].
func ClampProgress(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
