package models

import "time"

// Feed class tags as stored in the feeds table.
const (
	ClassLinkOnly  = "link-only"
	ClassRichEmbed = "rich-embed"
)

// Delivery mode tags as stored in the feeds table.
const (
	ModeDirect   = "direct"
	ModeThreaded = "threaded"
)

// Feed is the canonical shape of a stored feed. Raw store rows are
// normalized into this at the db boundary and never leak past it.
type Feed struct {
	ID          string
	Name        string
	URL         string
	FeedClass   string
	Destination string
	Mode        string
	Notes       string

	// Watermark is the last-synchronized publish instant. Nil means the
	// feed has never been synced and every fetched item counts as new.
	Watermark *time.Time
}

// Article is one item fetched from a feed source. It only lives for the
// duration of a run.
type Article struct {
	Title   string
	Snippet string
	URL     string

	// PublishedRaw is the feed-supplied timestamp string, possibly
	// malformed. Normalization happens in the dates package.
	PublishedRaw string

	// ImageURL is the enclosure image or the first inline image found in
	// the content HTML, empty if neither exists.
	ImageURL string
}

// NotificationJob is one article queued for delivery to a destination.
type NotificationJob struct {
	Destination string
	Mode        string
	FeedClass   string
	Article     Article

	// PublishedAt is the normalized publish instant, used for the embed
	// timestamp and for ordering within a destination group.
	PublishedAt time.Time
}

// SyncResult is the per-feed pipeline output consumed by the runner's
// aggregation step.
type SyncResult struct {
	FeedID             string
	WatermarkCandidate *time.Time
	Jobs               []NotificationJob
}
