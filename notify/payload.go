package notify

import (
	"fmt"
	"time"

	"feedrelay/models"
)

// Renderer shapes the webhook payload for one feed class. The set of
// classes is closed: adding one means adding a type here, not another
// string branch at the call sites.
type Renderer interface {
	Payload(job models.NotificationJob) any
}

// Router picks the endpoint URL for one delivery mode.
type Router interface {
	Endpoint(parentURL, destination string) string
}

type contentPayload struct {
	Content string `json:"content"`
}

type embedPayload struct {
	Embeds []embed `json:"embeds"`
}

type embed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	Timestamp   string `json:"timestamp"`
}

// linkOnly renders the bare canonical URL, Discord unfurls it itself.
type linkOnly struct{}

func (linkOnly) Payload(job models.NotificationJob) any {
	return contentPayload{Content: job.Article.URL}
}

// richEmbed renders a card with a UTC-normalized timestamp.
type richEmbed struct{}

func (richEmbed) Payload(job models.NotificationJob) any {
	return embedPayload{Embeds: []embed{{
		Title:       job.Article.Title,
		Description: job.Article.Snippet,
		URL:         job.Article.URL,
		Timestamp:   job.PublishedAt.UTC().Format(time.RFC3339),
	}}}
}

func rendererFor(class string) (Renderer, error) {
	switch class {
	case models.ClassLinkOnly:
		return linkOnly{}, nil
	case models.ClassRichEmbed:
		return richEmbed{}, nil
	default:
		return nil, fmt.Errorf("unknown feed class %q", class)
	}
}

// direct sends straight to the destination webhook URL.
type direct struct{}

func (direct) Endpoint(_, destination string) string {
	return destination
}

// threaded sends to the shared parent webhook with the destination as
// the sub-thread qualifier.
type threaded struct{}

func (threaded) Endpoint(parentURL, destination string) string {
	return fmt.Sprintf("%s?thread_id=%s", parentURL, destination)
}

func routerFor(mode string) (Router, error) {
	switch mode {
	case models.ModeDirect:
		return direct{}, nil
	case models.ModeThreaded:
		return threaded{}, nil
	default:
		return nil, fmt.Errorf("unknown delivery mode %q", mode)
	}
}
