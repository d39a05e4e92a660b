package notifier

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/pfrederiksen/poitiers-events/internal/config"
	"github.com/pfrederiksen/poitiers-events/internal/event"
)

const (
	telegramAPIBaseURL = "https://api.telegram.org"
	telegramTimeout    = 10 * time.Second
)

// ErrMissingTelegramCredentials is returned when the bot token or chat id is empty.
var ErrMissingTelegramCredentials = errors.New("missing TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID")

// TelegramNotifier sends one HTML message per event to a chat through the Bot API.
type TelegramNotifier struct {
	client *resty.Client
	token  string
	chatID string
	pause  time.Duration
}

// NewTelegramNotifier creates a Telegram notifier.
func NewTelegramNotifier(creds config.Telegram) (*TelegramNotifier, error) {
	if !creds.Complete() {
		return nil, ErrMissingTelegramCredentials
	}
	return newTelegramNotifier(telegramAPIBaseURL, creds, time.Second), nil
}

func newTelegramNotifier(baseURL string, creds config.Telegram, pause time.Duration) *TelegramNotifier {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(telegramTimeout).
		SetHeader("Content-Type", "application/json")
	return &TelegramNotifier{client: client, token: creds.BotToken, chatID: creds.ChatID, pause: pause}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Notify sends the events in order and stops at the first failure.
func (n *TelegramNotifier) Notify(ctx context.Context, events []event.Event) error {
	for i, evt := range events {
		if err := n.sendMessage(ctx, formatTelegram(evt)); err != nil {
			return fmt.Errorf("failed to send message for event %q: %w", evt.Title, err)
		}
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

func (n *TelegramNotifier) sendMessage(ctx context.Context, text string) error {
	var result telegramResponse
	resp, err := n.client.R().
		SetContext(ctx).
		SetBody(map[string]interface{}{
			"chat_id":                  n.chatID,
			"text":                     text,
			"parse_mode":               "HTML",
			"disable_web_page_preview": true,
		}).
		SetResult(&result).
		SetError(&result).
		Post("/bot" + n.token + "/sendMessage")
	if err != nil {
		return fmt.Errorf("sending request: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("telegram API error (status %d): %s", resp.StatusCode(), result.Description)
	}
	if !result.OK {
		return fmt.Errorf("telegram API error: %s", result.Description)
	}
	return nil
}

// formatTelegram formats an event as a Telegram HTML message
func formatTelegram(evt event.Event) string {
	var msg strings.Builder

	msg.WriteString("🎭 <b>Nouveau à Poitiers !</b>\n\n")

	if evt.Venue != "" {
		fmt.Fprintf(&msg, "📍 <b>%s</b> - %s\n", html.EscapeString(evt.Venue), html.EscapeString(evt.Title))
	} else {
		fmt.Fprintf(&msg, "📍 %s\n", html.EscapeString(evt.Title))
	}

	if date := event.Value(evt.Date); date != "" {
		fmt.Fprintf(&msg, "📅 %s\n", html.EscapeString(date))
	}

	if evt.Excerpt != "" {
		fmt.Fprintf(&msg, "\n<i>%s</i>\n", html.EscapeString(evt.Excerpt))
	}

	if link := linkOf(evt); link != "" {
		fmt.Fprintf(&msg, "\n🔗 <a href=\"%s\">%s</a>\n", html.EscapeString(link), html.EscapeString(linkLabel(link)))
	}

	msg.WriteString("\n#Poitiers #Sortir")
	return msg.String()
}

func linkLabel(link string) string {
	if evtLink := strings.TrimPrefix(strings.TrimPrefix(link, "https://"), "http://"); evtLink != "" {
		if i := strings.IndexByte(evtLink, '/'); i > 0 {
			return evtLink[:i]
		}
		return evtLink
	}
	return link
}
