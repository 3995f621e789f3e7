package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"feedrelay/models"

	sqlbuilder "github.com/huandu/go-sqlbuilder"
	log "github.com/sirupsen/logrus"
)

// DB handles all feed store operations with a shared connection pool
type DB struct {
	db *sql.DB
}

func New(database string) (*DB, error) {
	db, err := connection(database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// Fail at startup rather than mid-run if the file is unusable
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db: db}, nil
}

func (db *DB) Close() error {
	return db.db.Close()
}

// ListFeeds returns all feeds, optionally restricted to one feed class.
// Raw rows are normalized into the canonical models.Feed shape here.
func (db *DB) ListFeeds(ctx context.Context, class string) ([]models.Feed, error) {
	sb := sqlbuilder.NewSelectBuilder()
	sb.Select("id", "name", "url", "feed_class", "destination", "delivery_mode", "notes", "last_retrieved")
	sb.From("feeds")
	if class != "" {
		sb.Where(sb.Equal("feed_class", class))
	}
	sb.OrderBy("id").Asc()

	query, args := sb.BuildWithFlavor(sqlbuilder.SQLite)

	rows, err := db.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query error: %w", err)
	}
	defer rows.Close()

	var feeds []models.Feed
	for rows.Next() {
		var feed models.Feed
		var watermark sql.NullInt64
		if err := rows.Scan(&feed.ID, &feed.Name, &feed.URL, &feed.FeedClass, &feed.Destination, &feed.Mode, &feed.Notes, &watermark); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		if watermark.Valid {
			t := time.Unix(watermark.Int64, 0)
			feed.Watermark = &t
		}
		feeds = append(feeds, feed)
	}

	return feeds, rows.Err()
}

// AddFeed registers a new feed with an unset watermark.
func (db *DB) AddFeed(ctx context.Context, feed models.Feed) error {
	ib := sqlbuilder.NewInsertBuilder()
	ib.InsertInto("feeds")
	ib.Cols("id", "name", "url", "feed_class", "destination", "delivery_mode", "notes")
	ib.Values(feed.ID, feed.Name, feed.URL, feed.FeedClass, feed.Destination, feed.Mode, feed.Notes)

	query, args := ib.BuildWithFlavor(sqlbuilder.SQLite)

	if _, err := db.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert error: %w", err)
	}
	return nil
}

// UpsertFeeds applies one batch of watermark updates keyed on the feed
// id. The full record is written, but the DO UPDATE guard refuses to
// move a watermark backward, so stored watermarks are monotonically
// non-decreasing no matter what the batch carries.
func (db *DB) UpsertFeeds(ctx context.Context, feeds []models.Feed) error {
	if len(feeds) == 0 {
		return nil
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin error: %w", err)
	}
	defer tx.Rollback()

	const query = `
		INSERT INTO feeds (id, name, url, feed_class, destination, delivery_mode, notes, last_retrieved)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			url = excluded.url,
			feed_class = excluded.feed_class,
			destination = excluded.destination,
			delivery_mode = excluded.delivery_mode,
			notes = excluded.notes,
			last_retrieved = excluded.last_retrieved
		WHERE excluded.last_retrieved IS NOT NULL
			AND (feeds.last_retrieved IS NULL OR excluded.last_retrieved >= feeds.last_retrieved)`

	for _, feed := range feeds {
		var watermark sql.NullInt64
		if feed.Watermark != nil {
			watermark = sql.NullInt64{Int64: feed.Watermark.Unix(), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, query,
			feed.ID, feed.Name, feed.URL, feed.FeedClass, feed.Destination, feed.Mode, feed.Notes, watermark,
		); err != nil {
			return fmt.Errorf("upsert error for feed %s: %w", feed.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit error: %w", err)
	}

	log.WithFields(log.Fields{
		"feeds": len(feeds),
	}).Info("Applied watermark updates")

	return nil
}
