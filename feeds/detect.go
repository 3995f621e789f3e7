package feeds

import (
	"time"

	"feedrelay/dates"
	"feedrelay/models"

	log "github.com/sirupsen/logrus"
)

// NewItem is an article that passed the watermark comparison, paired
// with its normalized publish instant.
type NewItem struct {
	Article     models.Article
	PublishedAt time.Time
}

// DetectNew returns the articles published strictly after the watermark
// in source order. An unset watermark admits every article. Articles
// whose timestamp cannot be normalized are not comparable: they are
// logged, counted and excluded instead of failing the batch. Articles
// dated exactly at the watermark are excluded so the boundary item is
// not reprocessed on every run.
func DetectNew(articles []models.Article, watermark *time.Time, normalizer *dates.Normalizer) ([]NewItem, int) {
	var items []NewItem
	skipped := 0

	for _, article := range articles {
		publishedAt, err := normalizer.Normalize(article.PublishedRaw)
		if err != nil {
			log.WithFields(log.Fields{
				"url":       article.URL,
				"published": article.PublishedRaw,
			}).Warn("Skipping article with unparseable timestamp")
			skipped++
			continue
		}

		if watermark == nil || publishedAt.After(*watermark) {
			items = append(items, NewItem{Article: article, PublishedAt: publishedAt})
		}
	}

	return items, skipped
}

// Latest returns the item with the maximum publish instant. On exact
// ties the first-encountered item wins, which keeps the illustration
// choice deterministic.
func Latest(items []NewItem) (NewItem, bool) {
	if len(items) == 0 {
		return NewItem{}, false
	}

	latest := items[0]
	for _, item := range items[1:] {
		if item.PublishedAt.After(latest.PublishedAt) {
			latest = item
		}
	}

	return latest, true
}

// LatestWithImage returns the newest item that carries an image URL.
func LatestWithImage(items []NewItem) (NewItem, bool) {
	var withImages []NewItem
	for _, item := range items {
		if item.Article.ImageURL != "" {
			withImages = append(withImages, item)
		}
	}
	return Latest(withImages)
}
