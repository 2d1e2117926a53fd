package app

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scipunch/newsdesk/api"
	"github.com/scipunch/newsdesk/cache"
	"github.com/scipunch/newsdesk/config"
	"github.com/scipunch/newsdesk/fakeapi"
	"github.com/scipunch/newsdesk/navigator"
	"github.com/scipunch/newsdesk/render"
)

const today = "2025-11-19"

// syncBuffer lets the poller goroutine and the test share the output.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fixture struct {
	app     *App
	backend *fakeapi.Server
	session *cache.Session
	out     *syncBuffer
}

func newFixture(t *testing.T, seed func(*fakeapi.Server)) *fixture {
	t.Helper()

	backend := fakeapi.New(map[string]string{"fujian": "福建日报", "hainan": "海南日报"})
	if seed != nil {
		seed(backend)
	}
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	store, err := cache.NewStore(filepath.Join(t.TempDir(), "session.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	session, err := store.Session(cache.NewSessionID())
	require.NoError(t, err)

	conf := config.Default()
	conf.APIBaseURL = srv.URL
	conf.Sources = []config.SourceConfig{
		{Key: "fujian", Name: "福建日报"},
		{Key: "hainan", Name: "海南日报"},
	}
	conf.PollInterval = config.Duration{Duration: 10 * time.Millisecond}
	conf.ReloadDelay = config.Duration{Duration: 10 * time.Millisecond}

	out := &syncBuffer{}
	ctx, cancel := context.WithCancel(context.Background())
	a := New(ctx, Deps{
		Config:  conf,
		Client:  api.NewClient(srv.URL, 5*time.Second),
		Session: session,
		Out:     out,
		Width:   100,
		Clock:   func() time.Time { return time.Date(2025, 11, 19, 9, 0, 0, 0, time.Local) },
	})
	t.Cleanup(func() {
		a.Close()
		cancel()
	})
	return &fixture{app: a, backend: backend, session: session, out: out}
}

func seedBoth(s *fakeapi.Server) {
	s.SetNews("fujian", today, []api.NewsItem{{Title: "福建要闻", TitleKo: "푸젠 뉴스", Link: "https://fj/1"}})
	s.SetNews("hainan", today, []api.NewsItem{{Title: "海南要闻", Link: "https://hn/1"}})
}

func TestLoadPage_AllSources(t *testing.T) {
	f := newFixture(t, seedBoth)

	f.app.LoadPage(false)

	view := f.app.View()
	assert.Equal(t, render.StateLoaded, view.State())
	require.Len(t, view.Items(), 2)
	assert.Contains(t, f.out.String(), "2025年11月19日 星期三")
	assert.Contains(t, f.out.String(), render.TextPendingKo, "missing translations show a placeholder")

	cached, ok := f.session.GetNews("fujian", today)
	require.True(t, ok)
	assert.Equal(t, "福建日报", cached[0].Source)
}

func TestLoadPage_Empty(t *testing.T) {
	f := newFixture(t, nil)

	f.app.LoadPage(false)

	assert.Equal(t, render.StateEmpty, f.app.View().State())
	assert.Contains(t, f.out.String(), render.TextEmpty)
}

func TestSetSource_ShowsOnlyThatSource(t *testing.T) {
	f := newFixture(t, seedBoth)
	f.app.LoadPage(false)

	require.NoError(t, f.app.SetSource("hainan"))

	items := f.app.View().Items()
	require.Len(t, items, 1)
	assert.Equal(t, "海南要闻", items[0].Title)
	assert.Equal(t, "hainan", f.app.Navigator().State().Source)

	stored, err := f.session.GetString(navigator.KeySource)
	require.NoError(t, err)
	assert.Equal(t, "hainan", stored)

	assert.ErrorIs(t, f.app.SetSource("beijing"), navigator.ErrUnknownSource)
}

func TestNavigation_NeverPastToday(t *testing.T) {
	f := newFixture(t, seedBoth)
	f.app.LoadPage(false)

	assert.False(t, f.app.Next())
	assert.Equal(t, today, f.app.Navigator().State().DateString())

	f.app.Prev()
	assert.Equal(t, "2025-11-18", f.app.Navigator().State().DateString())
	assert.Equal(t, render.StateEmpty, f.app.View().State())

	assert.True(t, f.app.Next())
	assert.Equal(t, today, f.app.Navigator().State().DateString())
	assert.Len(t, f.app.View().Items(), 2)

	require.NoError(t, f.app.SetDate("2030-01-01"))
	assert.Equal(t, today, f.app.Navigator().State().DateString(), "future dates clamp to today")
}

func TestCrawl_CompletesAndReloads(t *testing.T) {
	f := newFixture(t, func(s *fakeapi.Server) {
		s.SetCrawlStep(50)
		s.StartCrawl("fujian", today, 0)
	})

	require.NoError(t, f.app.SetSource("fujian"))
	assert.Equal(t, render.StateLoading, f.app.View().State())

	assert.Eventually(t, func() bool {
		return f.app.View().State() == render.StateLoaded
	}, 2*time.Second, 10*time.Millisecond)

	assert.Len(t, f.app.View().Items(), 3)
	assert.Contains(t, f.app.View().Logs(), "✓ crawl completed")
	assert.False(t, f.app.Poller().Running())
}

func TestCrawl_AllSourcesPollsFirstLoading(t *testing.T) {
	f := newFixture(t, func(s *fakeapi.Server) {
		s.SetCrawlStep(10)
		s.StartCrawl("hainan", today, 0)
	})

	f.app.LoadPage(false)

	assert.Equal(t, render.StateLoading, f.app.View().State())
	assert.Contains(t, f.app.View().Logs(), LineParallel)
	assert.Equal(t, "hainan", f.app.Poller().Source())
}

func TestFetch_StartsManualCrawl(t *testing.T) {
	f := newFixture(t, func(s *fakeapi.Server) { s.SetCrawlStep(50) })
	require.NoError(t, f.app.SetSource("hainan"))
	require.Equal(t, render.StateEmpty, f.app.View().State())

	require.NoError(t, f.app.Fetch())

	assert.Eventually(t, func() bool {
		return f.app.View().State() == render.StateLoaded
	}, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, f.app.View().Items(), 3)
}

func TestFetch_ReloadShowsCrawledItems(t *testing.T) {
	f := newFixture(t, func(s *fakeapi.Server) {
		seedBoth(s)
		s.SetCrawlStep(50)
	})
	require.NoError(t, f.app.SetSource("fujian"))
	require.Len(t, f.app.View().Items(), 1)

	require.NoError(t, f.app.Fetch())
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.app.Wait(ctx))

	items := f.app.View().Items()
	require.Len(t, items, 3, "the session cache must not mask the crawl result")
	assert.Equal(t, "01", items[0].Section)

	cached, ok := f.session.GetNews("fujian", today)
	require.True(t, ok)
	assert.Len(t, cached, 3)
}

func TestStar_WhileLoadingHasNoCards(t *testing.T) {
	f := newFixture(t, func(s *fakeapi.Server) {
		seedBoth(s)
		s.SetCrawlStep(1)
	})
	f.app.LoadPage(false)
	require.Len(t, f.app.View().Items(), 2)

	require.NoError(t, f.app.Fetch())

	assert.ErrorIs(t, f.app.Star(1), ErrNoCard)
	assert.ErrorIs(t, f.app.Open(1), ErrNoCard)
	assert.Zero(t, f.backend.StarCalls())
}

func TestStar_PersistsAndReconciles(t *testing.T) {
	f := newFixture(t, seedBoth)
	f.app.LoadPage(false)

	require.NoError(t, f.app.Star(1))

	assert.True(t, f.app.View().Items()[0].Starred)
	require.Len(t, f.backend.Starred(), 1)
	assert.Equal(t, "https://fj/1", f.backend.Starred()[0].Link)

	cached, ok := f.session.GetNews("fujian", today)
	require.True(t, ok)
	assert.True(t, cached[0].Starred, "cached copy follows the star")
}

func TestStar_RevertsOnFailure(t *testing.T) {
	f := newFixture(t, seedBoth)
	f.app.LoadPage(false)
	f.backend.FailStar(true)

	err := f.app.Star(1)

	require.Error(t, err)
	assert.False(t, f.app.View().Items()[0].Starred)
	assert.Empty(t, f.backend.Starred())
	assert.Equal(t, 1, f.backend.StarCalls())
}

func TestStar_UnknownCard(t *testing.T) {
	f := newFixture(t, seedBoth)
	f.app.LoadPage(false)

	assert.ErrorIs(t, f.app.Star(0), ErrNoCard)
	assert.ErrorIs(t, f.app.Star(3), ErrNoCard)
}

func TestSelection_UnstarHidesCard(t *testing.T) {
	f := newFixture(t, seedBoth)
	f.app.LoadPage(false)
	require.NoError(t, f.app.Star(1))

	f.app.Selection()
	require.True(t, f.app.InSelection())
	require.Len(t, f.app.View().Items(), 1)

	require.NoError(t, f.app.Star(1))

	assert.True(t, f.app.View().Hidden("https://fj/1"))
	assert.Empty(t, f.backend.Starred())
	assert.ErrorIs(t, f.app.Star(1), ErrNoCard, "hidden cards cannot be toggled again")

	f.app.Prev()
	assert.False(t, f.app.InSelection())
}

func TestSelection_Empty(t *testing.T) {
	f := newFixture(t, nil)

	f.app.Selection()

	assert.Equal(t, render.StateEmpty, f.app.View().State())
	assert.Contains(t, f.out.String(), render.TextEmptySel)
}

func TestOpen(t *testing.T) {
	f := newFixture(t, func(s *fakeapi.Server) {
		seedBoth(s)
		s.SetArticle("https://fj/1", api.Article{
			Status:    api.StatusSuccess,
			ContentCN: "<p>福建<strong>新闻</strong>正文</p>",
			ContentKo: []string{"<p>푸젠 기사</p>", "  "},
		})
	})
	f.app.LoadPage(false)

	require.NoError(t, f.app.Open(1))
	out := f.out.String()
	assert.Contains(t, out, "福建**新闻**正文")
	assert.Contains(t, out, "푸젠 기사")

	require.Error(t, f.app.Open(2))
	assert.Contains(t, f.out.String(), render.TextArticleFailed)
}

func TestDispatch(t *testing.T) {
	f := newFixture(t, seedBoth)
	f.app.LoadPage(false)

	require.NoError(t, f.app.Dispatch("source fujian"))
	assert.Len(t, f.app.View().Items(), 1)

	require.NoError(t, f.app.Dispatch("  "))
	require.NoError(t, f.app.Dispatch("p"))
	assert.Equal(t, "2025-11-18", f.app.Navigator().State().DateString())
	require.NoError(t, f.app.Dispatch("today"))
	assert.Equal(t, today, f.app.Navigator().State().DateString())

	assert.Error(t, f.app.Dispatch("date 19-11-2025"))
	assert.Error(t, f.app.Dispatch("star x"))
	assert.Error(t, f.app.Dispatch("launch"))
	assert.ErrorIs(t, f.app.Dispatch("q"), ErrQuit)
}

func TestRun_StopsOnQuit(t *testing.T) {
	f := newFixture(t, seedBoth)

	err := f.app.Run(context.Background(), strings.NewReader("source hainan\nbogus\nquit\nsource fujian\n"), false)

	require.NoError(t, err)
	assert.Equal(t, "hainan", f.app.Navigator().State().Source)
	assert.Contains(t, f.out.String(), "unknown command")
}
