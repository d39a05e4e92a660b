package event

import (
	"strings"
	"time"
)

// Placeholder is the title used when a source page carries none.
const Placeholder = "Sans titre"

// Event is one normalized showing, performance or exhibition.
type Event struct {
	Title       string            `json:"title"`
	Date        *string           `json:"date"`
	Release     *string           `json:"release"`
	Source      string            `json:"source"`
	Venue       string            `json:"venue,omitempty"`
	URL         string            `json:"url,omitempty"`
	Poster      string            `json:"poster,omitempty"`
	Description string            `json:"description,omitempty"`
	Excerpt     string            `json:"excerpt,omitempty"`
	Reservation string            `json:"reservation,omitempty"`
	Category    string            `json:"category,omitempty"`
	Location    string            `json:"location,omitempty"`
	Occurrences []Occurrence      `json:"occurrences,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"` // venue-specific extras, copied through
	ScrapedAt   string            `json:"scraped_at,omitempty"`
}

// Occurrence is one listed day of a multi-day event.
type Occurrence struct {
	Date    string  `json:"date"`
	Release *string `json:"release,omitempty"`
}

// Raw is the record an extractor emits. Nil pointers mean the field was absent from the page.
type Raw struct {
	Title       *string
	Date        *string
	Release     *string
	Source      *string
	Venue       *string
	URL         *string
	Poster      *string
	Description *string
	Excerpt     *string
	Reservation *string
	Category    *string
	Location    *string
	Occurrences []string
	Attributes  map[string]string
	ScrapedAt   time.Time
}

// Document is the persisted feed.
type Document struct {
	GeneratedAt string  `json:"generated_at"`
	Events      []Event `json:"events"`
}

// GeneratedAtLayout renders UTC instants with an explicit +00:00 offset.
const GeneratedAtLayout = "2006-01-02T15:04:05.000000-07:00"

// NewDocument builds the feed for a run that completed at generatedAt.
func NewDocument(generatedAt time.Time, events []Event) *Document {
	if events == nil {
		events = make([]Event, 0)
	}
	return &Document{
		GeneratedAt: generatedAt.UTC().Format(GeneratedAtLayout),
		Events:      events,
	}
}

// String returns a pointer to s, or nil when s is blank.
func String(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Value dereferences p, returning "" for nil.
func Value(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
