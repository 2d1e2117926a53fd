// Package star toggles items in and out of the selection.
package star

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scipunch/newsdesk/api"
)

// Starrer persists a star change. *api.Client satisfies it.
type Starrer interface {
	Star(ctx context.Context, item api.NewsItem, starred bool) error
}

// View mirrors star changes on screen.
type View interface {
	SetStarred(link string, starred bool)
	SetHidden(link string, hidden bool)
}

// Reconciler updates other cached copies of an item. *cache.Session satisfies it.
type Reconciler interface {
	ReconcileStar(link string, starred bool) (int, error)
}

type Options struct {
	View       View
	Reconciler Reconciler
	// HideUnstarred hides a card as soon as it is unstarred, as the
	// selection view does.
	HideUnstarred bool
	Logger        *slog.Logger
}

// Toggler flips stars optimistically and reverts them when the backend call fails.
type Toggler struct {
	client Starrer
	opts   Options
	logger *slog.Logger
}

func New(client Starrer, opts Options) *Toggler {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Toggler{client: client, opts: opts, logger: logger}
}

// Toggle flips item.Starred, shows it right away and persists it. On
// failure the flag and the view are restored and the error returned.
func (t *Toggler) Toggle(ctx context.Context, item *api.NewsItem) error {
	previous := item.Starred
	next := !previous
	hide := t.opts.HideUnstarred && !next

	item.Starred = next
	if t.opts.View != nil {
		t.opts.View.SetStarred(item.Link, next)
		if hide {
			t.opts.View.SetHidden(item.Link, true)
		}
	}

	if err := t.client.Star(ctx, *item, next); err != nil {
		item.Starred = previous
		if t.opts.View != nil {
			t.opts.View.SetStarred(item.Link, previous)
			if hide {
				t.opts.View.SetHidden(item.Link, false)
			}
		}
		t.logger.Error("star toggle failed, reverted", "link", item.Link, "starred", next, "error", err)
		return fmt.Errorf("failed to set starred=%t on %s: %w", next, item.Link, err)
	}

	if t.opts.Reconciler != nil {
		if n, err := t.opts.Reconciler.ReconcileStar(item.Link, next); err != nil {
			t.logger.Warn("failed to reconcile cached copies", "link", item.Link, "error", err)
		} else if n > 0 {
			t.logger.Debug("reconciled cached copies", "link", item.Link, "copies", n)
		}
	}
	t.logger.Info("star toggled", "link", item.Link, "starred", next)
	return nil
}
