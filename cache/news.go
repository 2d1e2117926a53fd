package cache

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/scipunch/newsdesk/api"
)

const newsPrefix = "news:"

// NewsKey is the session key of the list loaded for source on date.
func NewsKey(source, date string) string {
	return newsPrefix + source + ":" + date
}

// GetNews returns the cached list for source on date.
func (s *Session) GetNews(source, date string) ([]api.NewsItem, bool) {
	var items []api.NewsItem
	err := s.GetJSON(NewsKey(source, date), &items)
	if errors.Is(err, ErrMiss) {
		return nil, false
	}
	if err != nil {
		slog.Warn("dropping unreadable cached news", "source", source, "date", date, "error", err)
		_ = s.Delete(NewsKey(source, date))
		return nil, false
	}
	return items, true
}

// SetNews caches the list loaded for source on date.
func (s *Session) SetNews(source, date string, items []api.NewsItem) error {
	if items == nil {
		items = []api.NewsItem{}
	}
	return s.SetJSON(NewsKey(source, date), items)
}

// ReconcileStar sets the starred flag of every cached copy of link and
// returns how many copies changed.
func (s *Session) ReconcileStar(link string, starred bool) (int, error) {
	keys, err := s.Keys(newsPrefix)
	if err != nil {
		return 0, fmt.Errorf("failed to list cached news: %w", err)
	}

	changed := 0
	for _, key := range keys {
		var items []api.NewsItem
		if err := s.GetJSON(key, &items); err != nil {
			continue
		}
		dirty := false
		for i := range items {
			if items[i].Link == link && items[i].Starred != starred {
				items[i].Starred = starred
				dirty = true
				changed++
			}
		}
		if !dirty {
			continue
		}
		if err := s.SetJSON(key, items); err != nil {
			return changed, err
		}
		slog.Debug("reconciled cached star", "key", strings.TrimPrefix(key, newsPrefix), "link", link, "starred", starred)
	}
	return changed, nil
}
