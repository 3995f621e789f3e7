package dates

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ErrUnparseable is returned when a timestamp matches none of the known
// formats. Callers must treat the owning item as not comparable instead
// of failing the batch.
var ErrUnparseable = errors.New("timestamp not parseable in any known format")

// Some sources append a parenthesized zone name like "(UTC)" or "(GMT)"
// after the offset, which breaks strict parsing.
var parentheticalZone = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// fallbackFormats is tried in order after the generic RFC3339 parse.
// The order is policy: most common first, then the odd permutations
// seen in the wild. Keep it stable, new formats go at the end.
var fallbackFormats = []string{
	time.RFC1123,
	time.RFC1123Z,
	time.RFC822Z,
	time.RFC822,
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05",
	"Monday, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -0700",
	"2006-01-02",
}

// Normalizer converts feed-supplied timestamp strings of unknown
// encoding into instants in a single target zone so they can be
// compared against each other and against stored watermarks.
type Normalizer struct {
	loc *time.Location
}

func NewNormalizer(zone string) (*Normalizer, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", zone, err)
	}
	return &Normalizer{loc: loc}, nil
}

// Normalize parses raw into an instant in the target zone. Formats that
// carry no zone information are interpreted in the target zone.
func (n *Normalizer) Normalize(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, ErrUnparseable
	}
	s = parentheticalZone.ReplaceAllString(s, "")

	// Generic parse first, most feeds send RFC3339 these days.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(n.loc), nil
	}

	for _, format := range fallbackFormats {
		if t, err := time.ParseInLocation(format, s, n.loc); err == nil {
			return t.In(n.loc), nil
		}
	}

	return time.Time{}, fmt.Errorf("%w: %q", ErrUnparseable, raw)
}

// Location returns the target zone of the normalizer.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}
