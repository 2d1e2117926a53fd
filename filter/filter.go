package filter

import (
	"log/slog"
	"regexp"
	"unicode/utf8"

	"github.com/scipunch/newsdesk/api"
	"github.com/scipunch/newsdesk/config"
)

// AllSources selects every source.
const AllSources = "all"

// BySource narrows items to those loaded for source. AllSources keeps everything.
func BySource(items []api.NewsItem, source string) []api.NewsItem {
	if source == AllSources {
		return items
	}
	out := make([]api.NewsItem, 0, len(items))
	for _, item := range items {
		if item.SourceKey == source {
			out = append(out, item)
		}
	}
	return out
}

// FilterPipeline applies a series of named filters to news items
type FilterPipeline struct {
	filters map[string]*CompiledFilter
}

// CompiledFilter contains compiled regex patterns for efficient matching
type CompiledFilter struct {
	config          config.Filter
	excludePatterns []*regexp.Regexp
}

// NewFilterPipeline creates a new filter pipeline from config
func NewFilterPipeline(filtersConfig map[string]config.Filter) *FilterPipeline {
	compiled := make(map[string]*CompiledFilter)

	for name, filterCfg := range filtersConfig {
		cf := &CompiledFilter{
			config:          filterCfg,
			excludePatterns: make([]*regexp.Regexp, 0, len(filterCfg.ExcludePatterns)),
		}

		for _, pattern := range filterCfg.ExcludePatterns {
			re, err := regexp.Compile(pattern)
			if err != nil {
				slog.Warn("invalid regex pattern in filter", "filter", name, "pattern", pattern, "error", err)
				continue
			}
			cf.excludePatterns = append(cf.excludePatterns, re)
		}

		compiled[name] = cf
	}

	return &FilterPipeline{filters: compiled}
}

// ShouldInclude returns true if the item passes all filters in the pipeline
// filterNames is a list of filter names to apply in order
func (fp *FilterPipeline) ShouldInclude(item api.NewsItem, filterNames []string) (bool, string) {
	for _, filterName := range filterNames {
		filter, exists := fp.filters[filterName]
		if !exists {
			slog.Warn("filter not found, skipping", "filter_name", filterName)
			continue
		}

		if shouldInclude, reason := applyFilter(item, filter, filterName); !shouldInclude {
			return false, reason
		}
	}

	return true, ""
}

// Apply keeps the items passing the filters configured for their source.
func (fp *FilterPipeline) Apply(items []api.NewsItem, conf config.Config) []api.NewsItem {
	out := make([]api.NewsItem, 0, len(items))
	for _, item := range items {
		src, _ := conf.Source(item.SourceKey)
		if ok, reason := fp.ShouldInclude(item, src.FilterNames); !ok {
			slog.Debug("item filtered out", "title", item.Title, "reason", reason, "url", item.Link)
			continue
		}
		out = append(out, item)
	}
	return out
}

func applyFilter(item api.NewsItem, filter *CompiledFilter, filterName string) (bool, string) {
	if filter.config.MinLength > 0 && utf8.RuneCountInString(item.Title) < filter.config.MinLength {
		return false, filterName + ":min_length"
	}

	for _, pattern := range filter.excludePatterns {
		if pattern.MatchString(item.Title) || (item.TitleKo != "" && pattern.MatchString(item.TitleKo)) {
			return false, filterName + ":exclude_pattern[" + pattern.String() + "]"
		}
	}

	return true, ""
}
