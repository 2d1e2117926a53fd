package render

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scipunch/newsdesk/api"
	"github.com/scipunch/newsdesk/cache"
	"github.com/scipunch/newsdesk/config"
)

func TestView_ShowLoaded(t *testing.T) {
	var buf bytes.Buffer
	v := New(&buf, Options{Width: 60})

	v.ShowLoaded([]api.NewsItem{
		{Title: "省委常委会召开会议", TitleKo: "성위원회 회의", Source: "福建日报", Section: "01", Link: "1", Starred: true},
		{Title: "全省经济运行平稳", Source: "福建日报", Link: "2"},
	})

	out := buf.String()
	assert.Equal(t, StateLoaded, v.State())
	assert.Contains(t, out, "  1. ★ 福建日报 · 01")
	assert.Contains(t, out, "  2. ☆ 福建日报\n")
	assert.Contains(t, out, "성위원회 회의")
	assert.Contains(t, out, TextPendingKo, "missing translation shows a placeholder")
}

func TestView_EmptyList(t *testing.T) {
	var buf bytes.Buffer
	v := New(&buf, Options{})
	v.ShowLoaded(nil)
	assert.Equal(t, TextNoNews+"\n", buf.String())
}

func TestView_LoadingResetsLog(t *testing.T) {
	var buf bytes.Buffer
	v := New(&buf, Options{})

	v.ShowLoading()
	v.AppendLog("page 1")
	v.SetProgress(40, 3)

	v.ShowLoading()
	assert.Equal(t, []string{TextPreparing}, v.Logs())
	p, total := v.Progress()
	assert.Zero(t, p)
	assert.Zero(t, total)
}

func TestView_LoadingDropsCards(t *testing.T) {
	v := New(&bytes.Buffer{}, Options{})
	v.ShowLoaded([]api.NewsItem{{Title: "头条", Link: "https://fj/1"}, {Title: "次条", Link: "https://fj/2"}})
	v.SetHidden("https://fj/2", true)

	v.ShowLoading()

	assert.Empty(t, v.Items(), "cards of the previous page are gone while loading")
	assert.False(t, v.Hidden("https://fj/2"))
}

func TestView_LogLimit(t *testing.T) {
	v := New(&bytes.Buffer{}, Options{LogLimit: 3})
	v.ShowLoading()
	for i := 1; i <= 5; i++ {
		v.AppendLog(fmt.Sprintf("line %d", i))
	}
	assert.Equal(t, []string{"line 3", "line 4", "line 5"}, v.Logs())
}

func TestView_ProgressNotReprinted(t *testing.T) {
	var buf bytes.Buffer
	v := New(&buf, Options{})
	v.SetProgress(50, 4)
	v.SetProgress(50, 4)
	assert.Equal(t, 1, strings.Count(buf.String(), "found 4 articles"))
}

func TestView_StarAndHide(t *testing.T) {
	var buf bytes.Buffer
	v := New(&buf, Options{Selection: true})
	v.ShowLoaded([]api.NewsItem{{Title: "a", Link: "1", Starred: true}, {Title: "b", Link: "2", Starred: true}})

	v.SetStarred("1", false)
	v.SetHidden("1", true)
	assert.False(t, v.Items()[0].Starred)
	assert.True(t, v.Hidden("1"))

	buf.Reset()
	v.Redraw()
	assert.NotContains(t, buf.String(), "  1.")
	assert.Contains(t, buf.String(), "  2. ★")

	v.SetHidden("1", false)
	assert.False(t, v.Hidden("1"))
}

func TestView_SelectionEmptyText(t *testing.T) {
	var buf bytes.Buffer
	v := New(&buf, Options{})
	v.SetSelection(true)
	v.ShowEmpty()
	assert.Equal(t, TextEmptySel+"\n", buf.String())
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "[█████░░░░░]  50% | found 7 articles", ProgressBar(50, 7, 10))
	assert.Equal(t, "[██████████] 100% | found 0 articles", ProgressBar(100, 0, 10))
	assert.Equal(t, "[░░░░░░░░░░]   0% | found 0 articles", ProgressBar(0, 0, 10))
}

func TestFit(t *testing.T) {
	s := Fit("广东省委全会在广州召开", 10)
	assert.LessOrEqual(t, runewidth.StringWidth(s), 10)
	assert.True(t, strings.HasSuffix(s, "…"))

	assert.Equal(t, "short", Fit("short", 10))
	assert.Equal(t, "", Fit("anything", 0))
}

func TestArticleRenderer(t *testing.T) {
	r := NewArticleRenderer()

	original, err := r.Original("<h1>标题</h1><p>第一段<strong>重点</strong></p>")
	require.NoError(t, err)
	assert.Contains(t, original, "# 标题")
	assert.Contains(t, original, "**重点**")

	ko := r.Translated([]string{"<b>첫</b> 문단 &amp; 끝", "  ", "<script>alert(1)</script>"})
	assert.Equal(t, []string{"첫 문단 & 끝"}, ko)

	var buf bytes.Buffer
	require.NoError(t, r.Write(&buf, "https://fj/1", api.Article{Status: "error"}))
	assert.Contains(t, buf.String(), TextArticleFailed)
}

func TestTables(t *testing.T) {
	var buf bytes.Buffer
	SelectionTable(&buf, []api.NewsItem{{Title: "头条", Source: "福建日报", Link: "https://fj/1"}}, 80)
	assert.Contains(t, buf.String(), "https://fj/1")

	buf.Reset()
	SourcesTable(&buf, config.Default().Sources)
	assert.Contains(t, buf.String(), "guangxi")

	buf.Reset()
	SessionsTable(&buf, []cache.SessionInfo{{ID: "abc", Values: 2}})
	assert.Contains(t, buf.String(), "abc")

	buf.Reset()
	StoreSummary(&buf, cache.StoreStats{Sessions: 1, Values: 2})
	assert.Equal(t, "1 sessions, 2 values, oldest used -\n", buf.String())
}
