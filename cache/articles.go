package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/scipunch/newsdesk/api"
)

// Articles keeps fetched articles in memory for the life of the process.
type Articles struct {
	c *gocache.Cache
}

// NewArticles creates an article cache whose entries expire after ttl.
func NewArticles(ttl time.Duration) *Articles {
	return &Articles{c: gocache.New(ttl, 2*ttl)}
}

// Get returns the cached article for link.
func (a *Articles) Get(link string) (api.Article, bool) {
	v, found := a.c.Get(link)
	if !found {
		return api.Article{}, false
	}
	article, ok := v.(api.Article)
	return article, ok
}

// Set caches a successfully fetched article.
func (a *Articles) Set(link string, article api.Article) {
	a.c.SetDefault(link, article)
}

// Len returns the number of cached articles, expired ones included until cleanup.
func (a *Articles) Len() int {
	return a.c.ItemCount()
}
