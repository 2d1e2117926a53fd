package api

// Status values reported by the news and selection endpoints.
const (
	StatusLoaded  = "loaded"
	StatusSuccess = "success"
	StatusLoading = "loading"
	StatusEmpty   = "empty"
)

// CrawlState is the lifecycle state of a backend crawl job.
type CrawlState string

const (
	CrawlRunning   CrawlState = "running"
	CrawlCompleted CrawlState = "completed"
	CrawlFailed    CrawlState = "failed"
)

// Terminal reports whether polling should stop at this state.
// Anything other than completed or failed counts as running.
func (s CrawlState) Terminal() bool {
	return s == CrawlCompleted || s == CrawlFailed
}

// NewsItem is a single news card. Link identifies the item.
type NewsItem struct {
	Title     string `json:"title"`
	TitleKo   string `json:"title_ko,omitempty"`
	Source    string `json:"source,omitempty"`
	Section   string `json:"section,omitempty"`
	Link      string `json:"link"`
	Starred   bool   `json:"starred"`
	SourceKey string `json:"source_key,omitempty"`
}

// NewsResponse is returned by GET /api/news/{source}.
type NewsResponse struct {
	Status      string       `json:"status"`
	Data        []NewsItem   `json:"data"`
	Source      string       `json:"source"`
	CrawlStatus *CrawlStatus `json:"crawl_status,omitempty"`
}

// IsLoaded reports whether the response carries news items.
func (r NewsResponse) IsLoaded() bool {
	return r.Status == StatusLoaded || r.Status == StatusSuccess
}

// CrawlStatus is returned by GET /api/crawl/status/{source}.
type CrawlStatus struct {
	SourceKey     string     `json:"source_key,omitempty"`
	State         CrawlState `json:"state"`
	Progress      float64    `json:"progress"`
	TotalArticles int        `json:"total_articles"`
	Logs          []string   `json:"logs"`
}

// Article is returned by GET /api/article.
type Article struct {
	Status    string   `json:"status"`
	ContentCN string   `json:"content_cn"`
	ContentKo []string `json:"content_ko"`
}

// StarRequest is the body of POST /api/star.
type StarRequest struct {
	URL     string   `json:"url"`
	Starred bool     `json:"starred"`
	Item    NewsItem `json:"item"`
}

// CrawlStartRequest is the body of POST /api/crawl/start/{source}.
type CrawlStartRequest struct {
	Date string `json:"date"`
}

// SelectionResponse is returned by GET /api/selection.
type SelectionResponse struct {
	Status string     `json:"status"`
	Data   []NewsItem `json:"data"`
}
