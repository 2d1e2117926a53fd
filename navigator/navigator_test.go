package navigator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scipunch/newsdesk/cache"
)

type memStore map[string]string

func (m memStore) GetString(key string) (string, error) {
	v, ok := m[key]
	if !ok {
		return "", cache.ErrMiss
	}
	return v, nil
}

func (m memStore) SetString(key, value string) error {
	m[key] = value
	return nil
}

var sources = []string{"fujian", "hainan", "nanfang"}

func fixedClock() func() time.Time {
	now := time.Date(2025, 11, 19, 15, 30, 0, 0, time.UTC)
	return func() time.Time { return now }
}

func TestNew_Defaults(t *testing.T) {
	n := New(memStore{}, sources, WithClock(fixedClock()))

	st := n.State()
	assert.Equal(t, "2025-11-19", st.DateString())
	assert.Equal(t, AllSources, st.Source)
	assert.False(t, n.CanAdvance())
}

func TestNew_Restores(t *testing.T) {
	store := memStore{KeyDate: "2025-11-01", KeySource: "hainan"}
	n := New(store, sources, WithClock(fixedClock()))

	st := n.State()
	assert.Equal(t, "2025-11-01", st.DateString())
	assert.Equal(t, "hainan", st.Source)
	assert.True(t, n.CanAdvance())
}

func TestNew_IgnoresBadStoredValues(t *testing.T) {
	tests := []struct {
		name       string
		store      memStore
		wantDate   string
		wantSource string
	}{
		{name: "unknown source", store: memStore{KeySource: "atlantis"}, wantDate: "2025-11-19", wantSource: AllSources},
		{name: "garbage date", store: memStore{KeyDate: "19/11/2025"}, wantDate: "2025-11-19", wantSource: AllSources},
		{name: "future date", store: memStore{KeyDate: "2026-01-01"}, wantDate: "2025-11-19", wantSource: AllSources},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := New(tt.store, sources, WithClock(fixedClock())).State()
			assert.Equal(t, tt.wantDate, st.DateString())
			assert.Equal(t, tt.wantSource, st.Source)
		})
	}
}

func TestNext_NeverPassesToday(t *testing.T) {
	store := memStore{}
	var changes []State
	n := New(store, sources, WithClock(fixedClock()), WithOnChange(func(s State) { changes = append(changes, s) }))

	assert.False(t, n.Next(), "today cannot advance")
	assert.Equal(t, "2025-11-19", n.State().DateString())
	assert.Empty(t, changes, "a refused move must not trigger a reload")

	n.Prev()
	n.Prev()
	assert.Equal(t, "2025-11-17", n.State().DateString())

	assert.True(t, n.Next())
	assert.True(t, n.Next())
	assert.False(t, n.Next())
	assert.Equal(t, "2025-11-19", n.State().DateString())

	assert.Len(t, changes, 4)
	assert.Equal(t, "2025-11-19", store[KeyDate])
}

func TestSetDate_ClampsFuture(t *testing.T) {
	n := New(memStore{}, sources, WithClock(fixedClock()))

	n.SetDate(time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "2025-11-19", n.State().DateString())

	require.NoError(t, n.ParseDate("2025-10-31"))
	assert.Equal(t, "2025-10-31", n.State().DateString())

	assert.Error(t, n.ParseDate("yesterday"))
	assert.Equal(t, "2025-10-31", n.State().DateString())
}

func TestPrev_CrossesMonth(t *testing.T) {
	n := New(memStore{KeyDate: "2025-03-01"}, sources, WithClock(fixedClock()))
	n.Prev()
	assert.Equal(t, "2025-02-28", n.State().DateString())
}

func TestSetSource(t *testing.T) {
	store := memStore{}
	var last State
	n := New(store, sources, WithClock(fixedClock()), WithOnChange(func(s State) { last = s }))

	require.NoError(t, n.SetSource("nanfang"))
	assert.Equal(t, "nanfang", last.Source)
	assert.Equal(t, "nanfang", store[KeySource])

	err := n.SetSource("atlantis")
	assert.ErrorIs(t, err, ErrUnknownSource)
	assert.Equal(t, "nanfang", n.State().Source)

	require.NoError(t, n.SetSource(AllSources))
	assert.Equal(t, AllSources, store[KeySource])
}

func TestDisplayDate(t *testing.T) {
	d := time.Date(2025, 11, 19, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025年11月19日 星期三", DisplayDate(d))
}
