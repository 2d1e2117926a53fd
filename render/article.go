package render

import (
	"fmt"
	"html"
	"io"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/microcosm-cc/bluemonday"

	"github.com/scipunch/newsdesk/api"
)

// Texts of the article reader.
const (
	TextArticleFailed = "load failed"
	TextNetworkError  = "network error"
)

// ArticleRenderer turns backend article payloads into terminal text.
type ArticleRenderer struct {
	md     *converter.Converter
	strict *bluemonday.Policy
}

func NewArticleRenderer() *ArticleRenderer {
	return &ArticleRenderer{
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
		strict: bluemonday.StrictPolicy(),
	}
}

// Original converts the source-language HTML to Markdown.
func (r *ArticleRenderer) Original(contentHTML string) (string, error) {
	out, err := r.md.ConvertString(contentHTML)
	if err != nil {
		return "", fmt.Errorf("failed to convert article html: %w", err)
	}
	return strings.TrimSpace(out), nil
}

// Translated strips markup from each translated paragraph and drops empty ones.
func (r *ArticleRenderer) Translated(paragraphs []string) []string {
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		text := strings.TrimSpace(html.UnescapeString(r.strict.Sanitize(p)))
		if text != "" {
			out = append(out, text)
		}
	}
	return out
}

// Write prints the article, original first then the translation.
func (r *ArticleRenderer) Write(w io.Writer, link string, a api.Article) error {
	fmt.Fprintf(w, "%s\n\n", link)
	if a.Status != api.StatusSuccess {
		_, err := fmt.Fprintf(w, "%s\n", TextArticleFailed)
		return err
	}

	original, err := r.Original(a.ContentCN)
	if err != nil {
		fmt.Fprintf(w, "%s\n", TextArticleFailed)
		return err
	}
	fmt.Fprintf(w, "── original ──\n%s\n\n── translation ──\n", original)
	for _, p := range r.Translated(a.ContentKo) {
		fmt.Fprintf(w, "%s\n\n", p)
	}
	return nil
}
