// Package api is a client for the news aggregation backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Client talks to the backend over its JSON API.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for baseURL. A zero timeout means no timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// News fetches the news list of one source for date (YYYY-MM-DD).
func (c *Client) News(ctx context.Context, source, date string) (NewsResponse, error) {
	var resp NewsResponse
	q := url.Values{}
	if date != "" {
		q.Set("date", date)
	}
	err := c.do(ctx, http.MethodGet, "/api/news/"+url.PathEscape(source), q, nil, &resp)
	return resp, err
}

// CrawlStatus fetches the crawl job status of source.
func (c *Client) CrawlStatus(ctx context.Context, source string) (CrawlStatus, error) {
	var resp CrawlStatus
	err := c.do(ctx, http.MethodGet, "/api/crawl/status/"+url.PathEscape(source), nil, nil, &resp)
	return resp, err
}

// StartCrawl asks the backend to crawl source for date.
func (c *Client) StartCrawl(ctx context.Context, source, date string) error {
	return c.do(ctx, http.MethodPost, "/api/crawl/start/"+url.PathEscape(source), nil, CrawlStartRequest{Date: date}, nil)
}

// Article fetches the original and translated content of the article at link.
func (c *Client) Article(ctx context.Context, link string) (Article, error) {
	var resp Article
	q := url.Values{}
	q.Set("url", link)
	err := c.do(ctx, http.MethodGet, "/api/article", q, nil, &resp)
	return resp, err
}

// Star adds item to or removes it from the selection.
func (c *Client) Star(ctx context.Context, item NewsItem, starred bool) error {
	body := StarRequest{URL: item.Link, Starred: starred, Item: item}
	body.Item.Starred = starred
	return c.do(ctx, http.MethodPost, "/api/star", nil, body, nil)
}

// Selection fetches the starred items.
func (c *Client) Selection(ctx context.Context) (SelectionResponse, error) {
	var resp SelectionResponse
	err := c.do(ctx, http.MethodGet, "/api/selection", nil, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		blob, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(blob)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("failed to build %s %s request: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer resp.Body.Close()
	slog.Debug("api request", "method", method, "path", path, "status", resp.StatusCode, "took", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		blob, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Method: method, Path: path, Code: resp.StatusCode, Body: strings.TrimSpace(string(blob))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
	}
	return nil
}
