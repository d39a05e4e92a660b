package notifier

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pfrederiksen/poitiers-events/internal/event"
)

// MaxLength is the character limit of one message.
const MaxLength = 280

// Notifier defines the interface for posting event notifications
type Notifier interface {
	// Notify posts one message per event, in order
	Notify(ctx context.Context, events []event.Event) error
}

// formatTweet formats an event as a tweet
func formatTweet(evt event.Event) string {
	var b strings.Builder
	b.WriteString("🎭 Nouveau à Poitiers !\n\n")

	if evt.Venue != "" {
		fmt.Fprintf(&b, "📍 %s - %s\n", evt.Venue, evt.Title)
	} else {
		fmt.Fprintf(&b, "📍 %s\n", evt.Title)
	}

	if date := event.Value(evt.Date); date != "" {
		fmt.Fprintf(&b, "📅 %s\n", date)
	}

	if link := linkOf(evt); link != "" {
		fmt.Fprintf(&b, "\n🔗 %s\n", link)
	}

	b.WriteString("\n#Poitiers #Sortir")

	tweet := b.String()
	if utf8.RuneCountInString(tweet) > MaxLength {
		runes := []rune(tweet)
		tweet = string(runes[:MaxLength-3]) + "..."
	}
	return tweet
}

// linkOf prefers the reservation link, then the event page.
func linkOf(evt event.Event) string {
	for _, candidate := range []string{evt.Reservation, evt.URL, evt.Source} {
		if strings.HasPrefix(candidate, "http://") || strings.HasPrefix(candidate, "https://") {
			return candidate
		}
	}
	return ""
}
