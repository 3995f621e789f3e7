package images_test

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"feedrelay/images"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUploader struct {
	mu      sync.Mutex
	uploads []upload
}

type upload struct {
	key          string
	contentType  string
	cacheControl string
	body         []byte
}

func (f *fakeUploader) Upload(ctx context.Context, key, contentType, cacheControl string, body []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads = append(f.uploads, upload{key, contentType, cacheControl, body})
	return nil
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func imageServer(t *testing.T, fetches *int) *httptest.Server {
	t.Helper()
	body := pngBytes(t, 800, 600)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*fetches++
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestEnsureIllustration(t *testing.T) {
	fetches := 0
	server := imageServer(t, &fetches)
	uploader := &fakeUploader{}

	pipeline := images.NewPipeline(uploader, 400, "thumbs", "31536000")
	require.NoError(t, pipeline.EnsureIllustration(context.Background(), server.URL+"/pic.png", "news-channel"))

	require.Len(t, uploader.uploads, 1)
	got := uploader.uploads[0]
	assert.Equal(t, "thumbs/news-channel.png", got.key)
	assert.Equal(t, "image/png", got.contentType)
	assert.Equal(t, "31536000", got.cacheControl)

	decoded, err := png.Decode(bytes.NewReader(got.body))
	require.NoError(t, err)
	assert.Equal(t, 400, decoded.Bounds().Dx(), "resized to target width")
	assert.Equal(t, 300, decoded.Bounds().Dy(), "aspect ratio preserved")
}

func TestEnsureIllustrationIsIdempotentPerRun(t *testing.T) {
	fetches := 0
	server := imageServer(t, &fetches)
	uploader := &fakeUploader{}

	pipeline := images.NewPipeline(uploader, 400, "thumbs", "31536000")
	url := server.URL + "/pic.png?a=1&b=2"

	require.NoError(t, pipeline.EnsureIllustration(context.Background(), url, "news-channel"))
	// Same URL spelled with HTML entities must hit the cache
	encoded := server.URL + "/pic.png?a=1&amp;b=2"
	require.NoError(t, pipeline.EnsureIllustration(context.Background(), encoded, "news-channel"))

	assert.Equal(t, 1, fetches, "second call must not fetch")
	assert.Len(t, uploader.uploads, 1, "second call must not upload")
}

func TestEnsureIllustrationRejectsNonImages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>not an image</html>"))
	}))
	defer server.Close()

	uploader := &fakeUploader{}
	pipeline := images.NewPipeline(uploader, 400, "thumbs", "31536000")

	err := pipeline.EnsureIllustration(context.Background(), server.URL, "news-channel")
	assert.ErrorIs(t, err, images.ErrNotImage)
	assert.Empty(t, uploader.uploads)
}

func TestEnsureIllustrationRetriesAfterFailure(t *testing.T) {
	// A failed attempt must not poison the cache
	fetches := 0
	failing := true
	body := pngBytes(t, 500, 500)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches++
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(body)
	}))
	defer server.Close()

	uploader := &fakeUploader{}
	pipeline := images.NewPipeline(uploader, 400, "thumbs", "31536000")

	require.Error(t, pipeline.EnsureIllustration(context.Background(), server.URL, "news-channel"))

	failing = false
	require.NoError(t, pipeline.EnsureIllustration(context.Background(), server.URL, "news-channel"))
	assert.Equal(t, 2, fetches)
	assert.Len(t, uploader.uploads, 1)
}
