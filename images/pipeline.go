package images

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"image/png"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
)

// ErrNotImage is returned when a fetched URL does not declare an image
// content type.
var ErrNotImage = errors.New("url does not point to an image")

// Source images larger than this are rejected instead of decoded
const maxImageBytes = 20 << 20

// Uploader stores a processed illustration under a destination key.
type Uploader interface {
	Upload(ctx context.Context, key, contentType, cacheControl string, body []byte) error
}

// Pipeline fetches, resizes and re-hosts one illustrative image per
// feed batch. It is idempotent within a run: the processed set keeps
// equivalent source URLs from being transcoded twice.
type Pipeline struct {
	client       *http.Client
	uploader     Uploader
	width        int
	folder       string
	cacheControl string

	mu        sync.Mutex
	processed map[string]struct{}
}

func NewPipeline(uploader Uploader, width int, folder, cacheControl string) *Pipeline {
	return &Pipeline{
		client:       &http.Client{Timeout: 30 * time.Second},
		uploader:     uploader,
		width:        width,
		folder:       folder,
		cacheControl: cacheControl,
		processed:    make(map[string]struct{}),
	}
}

// EnsureIllustration transcodes the image behind imageURL to a fixed
// width PNG and uploads it under the destination's key. Entity decoding
// happens before the cache lookup so differently encoded spellings of
// the same URL hit the same entry. Errors are for the run's error log;
// the owning notification proceeds without the image either way.
func (p *Pipeline) EnsureIllustration(ctx context.Context, imageURL, destination string) error {
	decoded := html.UnescapeString(imageURL)

	p.mu.Lock()
	if _, done := p.processed[decoded]; done {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	body, err := p.fetch(ctx, decoded)
	if err != nil {
		return err
	}

	img, err := imaging.Decode(bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("error decoding image %s: %w", decoded, err)
	}

	// Zero height keeps the aspect ratio
	resized := imaging.Resize(img, p.width, 0, imaging.Lanczos)

	var out bytes.Buffer
	if err := imaging.Encode(&out, resized, imaging.PNG, imaging.PNGCompressionLevel(png.BestCompression)); err != nil {
		return fmt.Errorf("error encoding image %s: %w", decoded, err)
	}

	key := fmt.Sprintf("%s/%s.png", p.folder, destination)
	if err := p.uploader.Upload(ctx, key, "image/png", p.cacheControl, out.Bytes()); err != nil {
		return err
	}

	p.mu.Lock()
	p.processed[decoded] = struct{}{}
	p.mu.Unlock()

	log.WithFields(log.Fields{
		"source": decoded,
		"key":    key,
	}).Info("Processed illustration")

	return nil
}

func (p *Pipeline) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating image request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error fetching image %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image fetch of %s failed with status %d", url, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%w: %s returned %q", ErrNotImage, url, contentType)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil {
		return nil, fmt.Errorf("error reading image %s: %w", url, err)
	}

	return body, nil
}
