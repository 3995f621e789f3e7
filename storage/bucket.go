package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// Bucket uploads objects to a Supabase-storage-compatible bucket over
// its REST API. Objects are addressed by key and overwritten in place,
// so re-running a sync replaces the previous illustration.
type Bucket struct {
	endpoint   string
	bucket     string
	serviceKey string
	client     *http.Client
}

func NewBucket(endpoint, bucket, serviceKey string) *Bucket {
	return &Bucket{
		endpoint:   strings.TrimRight(endpoint, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: 60 * time.Second},
	}
}

// Upload stores body under key with upsert semantics and the given
// cache-control directive.
func (b *Bucket) Upload(ctx context.Context, key, contentType, cacheControl string, body []byte) error {
	url := fmt.Sprintf("%s/object/%s/%s", b.endpoint, b.bucket, key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error creating upload request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+b.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Cache-Control", cacheControl)
	req.Header.Set("x-upsert", "true")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("error uploading object %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Keep a little body context for the error log, it is the only
		// place upload failures surface
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("upload of %s failed with status %d: %s", key, resp.StatusCode, string(snippet))
	}

	log.WithFields(log.Fields{
		"key":    key,
		"bucket": b.bucket,
		"bytes":  len(body),
	}).Info("Uploaded object")

	return nil
}
