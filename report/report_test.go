package report_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"feedrelay/report"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captureTransport struct {
	urls     []string
	contents []string
	err      error
}

func (c *captureTransport) Send(ctx context.Context, url string, payload any) error {
	if c.err != nil {
		return c.err
	}
	body, _ := json.Marshal(payload)
	var decoded struct {
		Content string `json:"content"`
	}
	_ = json.Unmarshal(body, &decoded)
	c.urls = append(c.urls, url)
	c.contents = append(c.contents, decoded.Content)
	return nil
}

func TestAccumulator(t *testing.T) {
	acc := report.NewAccumulator()
	assert.True(t, acc.Empty())

	acc.Add("feed-a", "fetch", errors.New("boom"))
	acc.Add("feed-a", "fetch", nil) // nil errors are ignored

	entries := acc.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "feed-a", entries[0].Subject)
	assert.Equal(t, "fetch", entries[0].Phase)
	assert.Equal(t, "boom", entries[0].Message)
	assert.False(t, acc.Empty())
}

func TestAccumulatorConcurrentAppend(t *testing.T) {
	acc := report.NewAccumulator()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			acc.Add(fmt.Sprintf("feed-%d", i), "fetch", errors.New("boom"))
		}(i)
	}
	wg.Wait()

	assert.Len(t, acc.Entries(), 50)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		message  string
		expected string
	}{
		{
			name:     "url redacted",
			message:  "fetch of https://secret.example/hook?token=abc failed",
			expected: "fetch of [redacted url] failed",
		},
		{
			name:     "uuid redacted",
			message:  "feed 123e4567-e89b-12d3-a456-426614174000 broke",
			expected: "feed [redacted id] broke",
		},
		{
			name:     "plain message untouched",
			message:  "nothing sensitive here",
			expected: "nothing sensitive here",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, report.Sanitize(tt.message))
		})
	}
}

func TestFlushSendsOneSummary(t *testing.T) {
	acc := report.NewAccumulator()
	acc.Add("feed-a", "fetch", errors.New("connection refused to https://feeds.example/a"))
	acc.Add("feed-b", "image", errors.New("not an image"))

	transport := &captureTransport{}
	reporter := report.NewReporter("https://discord.example/errors", transport)
	reporter.Flush(context.Background(), acc)

	require.Len(t, transport.contents, 1)
	content := transport.contents[0]
	assert.Contains(t, content, "2 recoverable failures")
	assert.Contains(t, content, "feed-a/fetch")
	assert.Contains(t, content, "feed-b/image")
	assert.Contains(t, content, "[redacted url]")
	assert.NotContains(t, content, "feeds.example")
}

func TestFlushDoesNothingWhenEmpty(t *testing.T) {
	transport := &captureTransport{}
	reporter := report.NewReporter("https://discord.example/errors", transport)
	reporter.Flush(context.Background(), report.NewAccumulator())

	assert.Empty(t, transport.contents)
}

func TestFlushSwallowsTransportFailure(t *testing.T) {
	acc := report.NewAccumulator()
	acc.Add("feed-a", "fetch", errors.New("boom"))

	transport := &captureTransport{err: errors.New("operator channel down")}
	reporter := report.NewReporter("https://discord.example/errors", transport)

	// Must not panic or escalate
	reporter.Flush(context.Background(), acc)
}
