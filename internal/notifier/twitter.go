package notifier

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dghubble/go-twitter/twitter" //nolint:staticcheck // Using stable v1.1 API
	"github.com/dghubble/oauth1"

	"github.com/pfrederiksen/poitiers-events/internal/config"
	"github.com/pfrederiksen/poitiers-events/internal/event"
)

// DefaultPause separates consecutive tweets.
const DefaultPause = 2 * time.Second

// ErrMissingCredentials is returned when a Twitter credential is empty.
var ErrMissingCredentials = errors.New("missing required Twitter credentials in environment variables")

// TwitterNotifier posts events to Twitter
type TwitterNotifier struct {
	client *twitter.Client
	pause  time.Duration
}

// NewTwitterNotifier creates a Twitter notifier from credentials read from the environment:
// TWITTER_API_KEY, TWITTER_API_SECRET, TWITTER_ACCESS_TOKEN and TWITTER_ACCESS_SECRET.
func NewTwitterNotifier(creds config.Twitter) (*TwitterNotifier, error) {
	if !creds.Complete() {
		return nil, ErrMissingCredentials
	}

	cfg := oauth1.NewConfig(creds.APIKey, creds.APISecret)
	token := oauth1.NewToken(creds.AccessToken, creds.AccessSecret)
	return newTwitterNotifier(cfg.Client(oauth1.NoContext, token), DefaultPause), nil
}

func newTwitterNotifier(httpClient *http.Client, pause time.Duration) *TwitterNotifier {
	return &TwitterNotifier{client: twitter.NewClient(httpClient), pause: pause}
}

// Notify posts tweets for each event
func (n *TwitterNotifier) Notify(ctx context.Context, events []event.Event) error {
	for i, evt := range events {
		tweet := formatTweet(evt)

		_, _, err := n.client.Statuses.Update(tweet, nil)
		if err != nil {
			return fmt.Errorf("failed to post tweet for event %q: %w", evt.Title, err)
		}

		// Rate limiting: wait between tweets
		if i < len(events)-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(n.pause):
			}
		}
	}

	return nil
}
