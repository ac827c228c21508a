package browser

import (
	"fmt"
	"html"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	"github.com/microcosm-cc/bluemonday"
)

// minArticleText is the size under which readability output is considered a
// miss and the whole document text is used instead. Product pages often are.
const minArticleText = 500

// PageText extracts the readable content of a document as sanitized plain
// text, prefixed with its title and excerpt.
func PageText(rawHTML, pageURL string, limit int) (string, error) {
	parsedURL, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %v", err)
	}

	p := bluemonday.StrictPolicy()

	var title, excerpt, content string
	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err == nil {
		title = article.Title
		excerpt = article.Excerpt
		content = collapse(html.UnescapeString(p.Sanitize(article.TextContent)))
	}
	if len(content) < minArticleText {
		content = collapse(html.UnescapeString(p.Sanitize(rawHTML)))
	}

	var b strings.Builder
	if title != "" {
		fmt.Fprintf(&b, "TITLE: %s\n", title)
	}
	if excerpt != "" {
		fmt.Fprintf(&b, "EXCERPT: %s\n", excerpt)
	}
	fmt.Fprintf(&b, "URL: %s\n", pageURL)
	b.WriteString("\n-- CONTENT --\n")

	if limit > 0 && len(content) > limit {
		for limit > 0 && !utf8.RuneStart(content[limit]) {
			limit--
		}
		content = content[:limit] + "\n... (content truncated) ..."
	}
	b.WriteString(content)
	return b.String(), nil
}

// collapse trims every line and drops empty ones.
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, l := range lines {
		l = strings.Join(strings.Fields(l), " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}
