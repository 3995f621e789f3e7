package runner

import (
	"context"
	"fmt"
	"sync"
	"time"

	"feedrelay/dates"
	"feedrelay/feeds"
	"feedrelay/models"
	"feedrelay/report"

	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
)

// Store is the persistent feed store boundary.
type Store interface {
	ListFeeds(ctx context.Context, class string) ([]models.Feed, error)
	UpsertFeeds(ctx context.Context, feeds []models.Feed) error
}

// Source fetches one feed URL into canonical articles.
type Source interface {
	Fetch(ctx context.Context, url string) ([]models.Article, error)
}

// Illustrator re-hosts one representative image per feed batch.
type Illustrator interface {
	EnsureIllustration(ctx context.Context, imageURL, destination string) error
}

// Deliverer fans the aggregated notification jobs out to destinations.
type Deliverer interface {
	Deliver(ctx context.Context, jobs []models.NotificationJob)
}

// Config wires the run's collaborators and policies.
type Config struct {
	Store      Store
	Source     Source
	Images     Illustrator
	Sender     Deliverer
	Reporter   *report.Reporter
	Normalizer *dates.Normalizer
	Errors     *report.Accumulator

	// FeedClass restricts the run to one class, empty means all
	FeedClass   string
	Concurrency int

	// Now is the wall clock, swappable in tests
	Now func() time.Time
}

// Runner drives one full sync pass: fetch feeds, detect new items per
// feed under a concurrency cap, persist watermark updates in one batch,
// deliver notifications, report failures.
type Runner struct {
	cfg Config
}

func New(cfg Config) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Runner{cfg: cfg}
}

// Run executes one pass. The returned error is non-nil only for fatal
// setup failures before any per-feed work; everything after that is
// isolated, accumulated and reported.
func (r *Runner) Run(ctx context.Context) error {
	startedAt := r.cfg.Now()

	feedList, err := r.cfg.Store.ListFeeds(ctx, r.cfg.FeedClass)
	if err != nil {
		return fmt.Errorf("error listing feeds: %w", err)
	}

	log.WithFields(log.Fields{
		"feeds": len(feedList),
		"class": r.cfg.FeedClass,
	}).Info("Starting sync pass")

	results := r.processAll(ctx, feedList)

	updates, jobs := r.aggregate(feedList, results, startedAt)

	if len(updates) == 0 {
		log.Info("Nothing new, no watermark updates this run")
	} else if err := r.cfg.Store.UpsertFeeds(ctx, updates); err != nil {
		r.cfg.Errors.Add("store", "persist", err)
	}

	r.cfg.Sender.Deliver(ctx, jobs)
	r.cfg.Reporter.Flush(ctx, r.cfg.Errors)

	log.WithFields(log.Fields{
		"updated":  len(updates),
		"notified": len(jobs),
		"failures": len(r.cfg.Errors.Entries()),
		"dur":      time.Since(startedAt).String(),
	}).Info("Sync pass finished")

	return nil
}

// processAll walks the feed list in fixed-size concurrency windows. All
// feeds of a window run in parallel and the window settles completely,
// success and failure alike, before the next one starts.
func (r *Runner) processAll(ctx context.Context, feedList []models.Feed) []models.SyncResult {
	var mu sync.Mutex
	var results []models.SyncResult

	for _, window := range lo.Chunk(feedList, r.cfg.Concurrency) {
		var wg sync.WaitGroup
		for _, feed := range window {
			wg.Add(1)
			go func(feed models.Feed) {
				defer wg.Done()
				result, err := r.processFeed(ctx, feed)
				if err != nil {
					r.cfg.Errors.Add(feed.ID, "fetch", err)
					return
				}
				mu.Lock()
				results = append(results, result)
				mu.Unlock()
			}(feed)
		}
		wg.Wait()
	}

	return results
}

func (r *Runner) processFeed(ctx context.Context, feed models.Feed) (models.SyncResult, error) {
	articles, err := r.cfg.Source.Fetch(ctx, feed.URL)
	if err != nil {
		return models.SyncResult{}, err
	}

	newItems, skipped := feeds.DetectNew(articles, feed.Watermark, r.cfg.Normalizer)
	if skipped > 0 {
		log.WithFields(log.Fields{
			"feed":    feed.ID,
			"skipped": skipped,
		}).Warn("Some articles had unparseable timestamps")
	}

	if len(newItems) == 0 {
		return models.SyncResult{FeedID: feed.ID}, nil
	}

	// Threaded destinations own a thumbnail slot, refresh it from the
	// newest new article that carries an image. Image failures only cost
	// the illustration, never the notification.
	if feed.Mode == models.ModeThreaded {
		if item, ok := feeds.LatestWithImage(newItems); ok {
			if err := r.cfg.Images.EnsureIllustration(ctx, item.Article.ImageURL, feed.Destination); err != nil {
				r.cfg.Errors.Add(feed.ID, "image", err)
			}
		}
	}

	latest, _ := feeds.Latest(newItems)
	candidate := latest.PublishedAt

	// Feed sources return newest first, destinations read oldest first
	ordered := lo.Reverse(append([]feeds.NewItem(nil), newItems...))

	jobs := make([]models.NotificationJob, 0, len(ordered))
	for _, item := range ordered {
		jobs = append(jobs, models.NotificationJob{
			Destination: feed.Destination,
			Mode:        feed.Mode,
			FeedClass:   feed.FeedClass,
			Article:     item.Article,
			PublishedAt: item.PublishedAt,
		})
	}

	log.WithFields(log.Fields{
		"feed": feed.ID,
		"new":  len(newItems),
	}).Info("Feed has new articles")

	return models.SyncResult{
		FeedID:             feed.ID,
		WatermarkCandidate: &candidate,
		Jobs:               jobs,
	}, nil
}

// aggregate merges per-feed results into one deduplicated batch of
// watermark updates plus the flattened notification jobs. Updated feeds
// keep their full stored record and get the run's wall-clock start time
// as the new watermark. Using our clock instead of article timestamps
// avoids clock skew between feed sources; the store-side guard still
// refuses to move a watermark backward.
func (r *Runner) aggregate(feedList []models.Feed, results []models.SyncResult, startedAt time.Time) ([]models.Feed, []models.NotificationJob) {
	feedsByID := lo.KeyBy(feedList, func(feed models.Feed) string { return feed.ID })

	seen := make(map[string]struct{})
	var updates []models.Feed
	var jobs []models.NotificationJob

	for _, result := range results {
		jobs = append(jobs, result.Jobs...)

		if result.WatermarkCandidate == nil {
			continue
		}
		if _, dup := seen[result.FeedID]; dup {
			continue
		}
		seen[result.FeedID] = struct{}{}

		feed, ok := feedsByID[result.FeedID]
		if !ok {
			continue
		}

		watermark := startedAt
		if feed.Watermark != nil && watermark.Before(*feed.Watermark) {
			// Never move a watermark backward, whatever the clocks say
			watermark = *feed.Watermark
		}
		feed.Watermark = &watermark
		updates = append(updates, feed)
	}

	return updates, jobs
}
