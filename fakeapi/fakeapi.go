// Package fakeapi serves an in-memory version of the news backend API.
//
// It backs the client tests and the fake-backend command. Crawls are
// simulated: each status request advances a running crawl by a fixed step
// and a crawl reaching 100% publishes generated items for its date.
package fakeapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/scipunch/newsdesk/api"
)

type crawl struct {
	date     string
	state    api.CrawlState
	progress float64
	logs     []string
	failAt   float64 // 0 means never
}

// Server is the fake backend. The zero value is not usable; call New.
type Server struct {
	mu        sync.Mutex
	sources   map[string]string
	news      map[string]map[string][]api.NewsItem
	crawls    map[string]*crawl
	starred   map[string]api.NewsItem
	order     []string
	articles  map[string]api.Article
	step      float64
	failStar  bool
	failNews  bool
	starCalls int
}

// New creates a backend knowing the given source key → label pairs.
func New(sources map[string]string) *Server {
	return &Server{
		sources:  sources,
		news:     make(map[string]map[string][]api.NewsItem),
		crawls:   make(map[string]*crawl),
		starred:  make(map[string]api.NewsItem),
		articles: make(map[string]api.Article),
		step:     25,
	}
}

// SetNews publishes items for source on date.
func (s *Server) SetNews(source, date string, items []api.NewsItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.news[source] == nil {
		s.news[source] = make(map[string][]api.NewsItem)
	}
	s.news[source][date] = items
}

// SetArticle registers article content for link.
func (s *Server) SetArticle(link string, a api.Article) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.articles[link] = a
}

// SetCrawlStep sets how many percent a crawl advances per status request.
func (s *Server) SetCrawlStep(step float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.step = step
}

// StartCrawl marks source as crawling for date. A positive failAt makes the
// crawl fail once progress reaches it.
func (s *Server) StartCrawl(source, date string, failAt float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.startCrawlLocked(source, date, failAt)
}

// FailStar makes POST /api/star answer 500.
func (s *Server) FailStar(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failStar = fail
}

// FailNews makes GET /api/news answer 500.
func (s *Server) FailNews(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNews = fail
}

// Starred returns the selection in insertion order.
func (s *Server) Starred() []api.NewsItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]api.NewsItem, 0, len(s.order))
	for _, link := range s.order {
		out = append(out, s.starred[link])
	}
	return out
}

// StarCalls returns how many star requests were received.
func (s *Server) StarCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starCalls
}

// Handler returns the HTTP routes of the backend.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/api", func(r chi.Router) {
		r.Get("/news/{source}", s.handleNews)
		r.Get("/crawl/status/{source}", s.handleCrawlStatus)
		r.Post("/crawl/start/{source}", s.handleCrawlStart)
		r.Get("/article", s.handleArticle)
		r.Post("/star", s.handleStar)
		r.Get("/selection", s.handleSelection)
	})
	return r
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format(time.DateOnly)
	} else if _, err := time.Parse(time.DateOnly, date); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date format")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNews {
		writeError(w, http.StatusInternalServerError, "backend unavailable")
		return
	}
	name, ok := s.sources[source]
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid source")
		return
	}

	if items, ok := s.news[source][date]; ok {
		out := make([]api.NewsItem, len(items))
		for i, item := range items {
			item.Starred = s.isStarredLocked(item.Link)
			out[i] = item
		}
		writeJSON(w, http.StatusOK, api.NewsResponse{Status: api.StatusSuccess, Source: name, Data: out})
		return
	}

	if c, ok := s.crawls[source]; ok && c.date == date && !c.state.Terminal() {
		writeJSON(w, http.StatusOK, api.NewsResponse{
			Status: api.StatusLoading,
			Source: name,
			Data:   []api.NewsItem{},
			CrawlStatus: &api.CrawlStatus{
				SourceKey: source,
				State:     c.state,
				Progress:  c.progress,
				Logs:      append([]string(nil), c.logs...),
			},
		})
		return
	}

	writeJSON(w, http.StatusOK, api.NewsResponse{Status: api.StatusEmpty, Source: name, Data: []api.NewsItem{}})
}

func (s *Server) handleCrawlStatus(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.crawls[source]
	if !ok {
		writeJSON(w, http.StatusOK, api.CrawlStatus{SourceKey: source, State: "idle", Logs: []string{}})
		return
	}
	if !c.state.Terminal() {
		s.advanceLocked(source, c)
	}
	writeJSON(w, http.StatusOK, api.CrawlStatus{
		SourceKey:     source,
		State:         c.state,
		Progress:      c.progress,
		TotalArticles: len(s.news[source][c.date]),
		Logs:          append([]string(nil), c.logs...),
	})
}

func (s *Server) handleCrawlStart(w http.ResponseWriter, r *http.Request) {
	source := chi.URLParam(r, "source")
	var req api.CrawlStartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sources[source]; !ok {
		writeError(w, http.StatusBadRequest, "Invalid source")
		return
	}
	s.startCrawlLocked(source, req.Date, 0)
	writeJSON(w, http.StatusOK, map[string]string{"status": "started"})
}

func (s *Server) handleArticle(w http.ResponseWriter, r *http.Request) {
	link := r.URL.Query().Get("url")
	if link == "" {
		writeError(w, http.StatusBadRequest, "Missing URL")
		return
	}

	s.mu.Lock()
	a, ok := s.articles[link]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusInternalServerError, "Failed to fetch article")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleStar(w http.ResponseWriter, r *http.Request) {
	var req api.StarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.starCalls++
	if s.failStar {
		writeError(w, http.StatusInternalServerError, "star storage unavailable")
		return
	}
	if req.URL == "" {
		writeError(w, http.StatusBadRequest, "Missing URL")
		return
	}

	if req.Starred {
		item := req.Item
		item.Starred = true
		if _, exists := s.starred[req.URL]; !exists {
			s.order = append(s.order, req.URL)
		}
		s.starred[req.URL] = item
		writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Added to selection"})
		return
	}

	if _, exists := s.starred[req.URL]; exists {
		delete(s.starred, req.URL)
		for i, link := range s.order {
			if link == req.URL {
				s.order = append(s.order[:i], s.order[i+1:]...)
				break
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "success", "message": "Removed from selection"})
}

func (s *Server) handleSelection(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, api.SelectionResponse{Status: api.StatusSuccess, Data: s.Starred()})
}

func (s *Server) startCrawlLocked(source, date string, failAt float64) {
	s.crawls[source] = &crawl{
		date:   date,
		state:  api.CrawlRunning,
		failAt: failAt,
		logs:   []string{fmt.Sprintf("crawl of %s for %s started", source, date)},
	}
}

func (s *Server) advanceLocked(source string, c *crawl) {
	c.progress += s.step
	if c.failAt > 0 && c.progress >= c.failAt {
		c.state = api.CrawlFailed
		c.logs = append(c.logs, fmt.Sprintf("crawl of %s failed at %.0f%%", source, c.progress))
		return
	}
	c.logs = append(c.logs, fmt.Sprintf("fetched page batch at %.0f%%", c.progress))
	if c.progress < 100 {
		return
	}

	c.state = api.CrawlCompleted
	name := s.sources[source]
	items := make([]api.NewsItem, 0, 3)
	for i := 1; i <= 3; i++ {
		items = append(items, api.NewsItem{
			Title:   fmt.Sprintf("%s 第%02d版 要闻", name, i),
			TitleKo: fmt.Sprintf("%s %d면 주요 뉴스", name, i),
			Source:  name,
			Section: fmt.Sprintf("%02d", i),
			Link:    fmt.Sprintf("https://%s.example/%s/content_%d.html", source, c.date, i),
		})
	}
	if s.news[source] == nil {
		s.news[source] = make(map[string][]api.NewsItem)
	}
	s.news[source][c.date] = items
	c.logs = append(c.logs, fmt.Sprintf("found %d articles", len(items)))
}

func (s *Server) isStarredLocked(link string) bool {
	_, ok := s.starred[link]
	return ok
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("fakeapi: failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
