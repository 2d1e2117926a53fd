// Package navigator tracks the selected date and source of a session.
package navigator

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Session keys of the persisted selection.
const (
	KeyDate   = "currentDate"
	KeySource = "currentSource"
)

// AllSources selects every configured source.
const AllSources = "all"

// ErrUnknownSource is returned by SetSource for keys outside the configured list.
var ErrUnknownSource = errors.New("navigator: unknown source")

var weekdays = [...]string{"星期日", "星期一", "星期二", "星期三", "星期四", "星期五", "星期六"}

// Store persists the selection. *cache.Session satisfies it.
type Store interface {
	GetString(key string) (string, error)
	SetString(key, value string) error
}

// State is a snapshot of the selection.
type State struct {
	Date   time.Time
	Source string
}

// DateString renders the date as YYYY-MM-DD.
func (s State) DateString() string {
	return s.Date.Format(time.DateOnly)
}

// Navigator owns the current date and source. Every change is persisted and
// reported to the change callback.
type Navigator struct {
	mu       sync.Mutex
	date     time.Time
	source   string
	sources  []string
	store    Store
	now      func() time.Time
	onChange func(State)
}

type Option func(*Navigator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(n *Navigator) { n.now = now }
}

// WithOnChange registers the callback fired after every change.
func WithOnChange(fn func(State)) Option {
	return func(n *Navigator) { n.onChange = fn }
}

// New restores the selection from store, defaulting to today and all sources.
func New(store Store, sources []string, opts ...Option) *Navigator {
	n := &Navigator{
		sources: sources,
		store:   store,
		now:     time.Now,
		source:  AllSources,
	}
	for _, opt := range opts {
		opt(n)
	}
	n.date = n.today()

	if v, err := store.GetString(KeySource); err == nil && n.known(v) {
		n.source = v
	}
	if v, err := store.GetString(KeyDate); err == nil {
		if d, err := time.ParseInLocation(time.DateOnly, v, n.now().Location()); err == nil {
			n.date = n.clamp(d)
		} else {
			slog.Warn("ignoring stored date", "value", v, "error", err)
		}
	}
	return n
}

// State returns the current selection.
func (n *Navigator) State() State {
	n.mu.Lock()
	defer n.mu.Unlock()
	return State{Date: n.date, Source: n.source}
}

// Prev moves one day back.
func (n *Navigator) Prev() {
	n.mu.Lock()
	n.date = n.date.AddDate(0, 0, -1)
	n.mu.Unlock()
	n.changed(true)
}

// Next moves one day forward. It is a no-op returning false on today.
func (n *Navigator) Next() bool {
	n.mu.Lock()
	if !n.date.Before(n.today()) {
		n.mu.Unlock()
		return false
	}
	n.date = n.date.AddDate(0, 0, 1)
	n.mu.Unlock()
	n.changed(true)
	return true
}

// CanAdvance reports whether Next would move.
func (n *Navigator) CanAdvance() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.date.Before(n.today())
}

// SetDate jumps to d. Future dates are clamped to today.
func (n *Navigator) SetDate(d time.Time) {
	n.mu.Lock()
	n.date = n.clamp(d)
	n.mu.Unlock()
	n.changed(true)
}

// ParseDate jumps to a YYYY-MM-DD date.
func (n *Navigator) ParseDate(s string) error {
	d, err := time.ParseInLocation(time.DateOnly, s, n.now().Location())
	if err != nil {
		return fmt.Errorf("invalid date %q: %w", s, err)
	}
	n.SetDate(d)
	return nil
}

// SetSource selects a source key or AllSources.
func (n *Navigator) SetSource(key string) error {
	if !n.known(key) {
		return fmt.Errorf("%w: %s", ErrUnknownSource, key)
	}
	n.mu.Lock()
	n.source = key
	n.mu.Unlock()
	n.changed(false)
	return nil
}

// Sources returns the configured source keys.
func (n *Navigator) Sources() []string {
	return slices.Clone(n.sources)
}

// DisplayDate renders the date the way the page header shows it.
func (n *Navigator) DisplayDate() string {
	return DisplayDate(n.State().Date)
}

// DisplayDate renders d as 2025年11月19日 星期三.
func DisplayDate(d time.Time) string {
	return fmt.Sprintf("%d年%d月%d日 %s", d.Year(), int(d.Month()), d.Day(), weekdays[d.Weekday()])
}

func (n *Navigator) changed(dateChanged bool) {
	st := n.State()
	if dateChanged {
		if err := n.store.SetString(KeyDate, st.DateString()); err != nil {
			slog.Warn("failed to persist date", "error", err)
		}
	} else {
		if err := n.store.SetString(KeySource, st.Source); err != nil {
			slog.Warn("failed to persist source", "error", err)
		}
	}
	if n.onChange != nil {
		n.onChange(st)
	}
}

func (n *Navigator) known(key string) bool {
	return key == AllSources || slices.Contains(n.sources, key)
}

// Today returns midnight of the current day.
func (n *Navigator) Today() time.Time {
	return n.today()
}

func (n *Navigator) today() time.Time {
	return midnight(n.now())
}

func (n *Navigator) clamp(d time.Time) time.Time {
	d = midnight(d.In(n.now().Location()))
	if today := n.today(); d.After(today) {
		return today
	}
	return d
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
