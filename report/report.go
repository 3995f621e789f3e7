package report

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Accumulator collects every recoverable failure of a run. It is
// append-only and safe for concurrent use; one instance lives exactly
// as long as one run so concurrent runs stay independent.
type Accumulator struct {
	mu      sync.Mutex
	entries []Entry
}

// Entry carries enough context to diagnose a failure without leaking
// secrets into the operator channel.
type Entry struct {
	Subject string
	Phase   string
	Message string
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

func (a *Accumulator) Add(subject, phase string, err error) {
	if err == nil {
		return
	}

	a.mu.Lock()
	a.entries = append(a.entries, Entry{Subject: subject, Phase: phase, Message: err.Error()})
	a.mu.Unlock()

	log.WithFields(log.Fields{
		"subject": subject,
		"phase":   phase,
	}).Warn(err.Error())
}

func (a *Accumulator) Entries() []Entry {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]Entry(nil), a.entries...)
}

func (a *Accumulator) Empty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.entries) == 0
}

// Webhook URLs and row ids have no business in an operator channel
var (
	urlPattern  = regexp.MustCompile(`https?://\S+`)
	uuidPattern = regexp.MustCompile(`\b\w{8}-\w{4}-\w{4}-\w{4}-\w{12}\b`)
)

// Sanitize redacts URLs and UUID-shaped identifiers from a message.
func Sanitize(message string) string {
	message = urlPattern.ReplaceAllString(message, "[redacted url]")
	return uuidPattern.ReplaceAllString(message, "[redacted id]")
}

// Discord caps message content at 2000 characters
const maxSummaryLen = 1900

type summaryPayload struct {
	Content string `json:"content"`
}

// Transport sends one JSON payload to one endpoint. The notify webhook
// client satisfies it.
type Transport interface {
	Send(ctx context.Context, url string, payload any) error
}

// Reporter flushes the accumulated failures as one summary notification
// to the operator webhook. It is the last line of defense: its own
// failure is logged locally and never escalated.
type Reporter struct {
	webhookURL string
	transport  Transport
}

func NewReporter(webhookURL string, transport Transport) *Reporter {
	return &Reporter{webhookURL: webhookURL, transport: transport}
}

func (r *Reporter) Flush(ctx context.Context, acc *Accumulator) {
	entries := acc.Entries()
	if len(entries) == 0 {
		return
	}

	if r.webhookURL == "" {
		log.Warn("No error webhook configured, skipping failure summary")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "[feedrelay] sync finished with %d recoverable failures:\n", len(entries))
	for _, entry := range entries {
		fmt.Fprintf(&b, "- %s/%s: %s\n", entry.Subject, entry.Phase, Sanitize(entry.Message))
	}

	content := b.String()
	if len(content) > maxSummaryLen {
		content = content[:maxSummaryLen] + "…"
	}

	if err := r.transport.Send(ctx, r.webhookURL, summaryPayload{Content: content}); err != nil {
		log.WithFields(log.Fields{
			"err": err,
		}).Error("Failed to deliver failure summary")
	}
}
