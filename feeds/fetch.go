package feeds

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"feedrelay/models"

	"github.com/mmcdole/gofeed"
)

// Matches the first inline image in an article's content HTML
var inlineImage = regexp.MustCompile(`<img[^>]+src="([^">]+)"`)

// Client fetches a feed URL and maps its items to canonical Articles.
// gofeed handles RSS, Atom and JSON Feed, but date strings are kept raw
// so the dates package stays the single place that interprets them.
type Client struct {
	parser *gofeed.Parser
}

func NewClient(timeout time.Duration) *Client {
	parser := gofeed.NewParser()
	parser.Client = &http.Client{Timeout: timeout}
	return &Client{parser: parser}
}

func (c *Client) Fetch(ctx context.Context, url string) ([]models.Article, error) {
	feed, err := c.parser.ParseURLWithContext(url, ctx)
	if err != nil {
		return nil, fmt.Errorf("error fetching feed %s: %w", url, err)
	}

	articles := make([]models.Article, 0, len(feed.Items))
	for _, item := range feed.Items {
		raw := item.Published
		if raw == "" {
			// Some Atom sources only carry an updated timestamp
			raw = item.Updated
		}

		articles = append(articles, models.Article{
			Title:        item.Title,
			Snippet:      item.Description,
			URL:          item.Link,
			PublishedRaw: raw,
			ImageURL:     extractImageURL(item),
		})
	}

	return articles, nil
}

// extractImageURL prefers an explicit image enclosure and falls back to
// the first inline image in the content HTML.
func extractImageURL(item *gofeed.Item) string {
	for _, enclosure := range item.Enclosures {
		if enclosure == nil || enclosure.URL == "" {
			continue
		}
		if strings.HasPrefix(enclosure.Type, "image/") {
			return enclosure.URL
		}
	}

	for _, html := range []string{item.Content, item.Description} {
		if match := inlineImage.FindStringSubmatch(html); match != nil {
			return match[1]
		}
	}

	return ""
}
