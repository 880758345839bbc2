package bot

import (
	"context"
	"time"

	"github.com/mymmrac/telego"
)

// requestTimeout bounds every outgoing API call so a stuck request
// cannot stall the collector's sweep loop indefinitely.
const requestTimeout = 10 * time.Second

// Client adapts the telego bot to the collector's Transport capability.
type Client struct {
	bot *telego.Bot
}

// NewClient creates a transport client over the given bot
func NewClient(bot *telego.Bot) *Client {
	return &Client{bot: bot}
}

// DeleteMessage removes a message from a chat. Any error counts as a
// deletion failure for the calling record.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	return c.bot.DeleteMessage(ctx, &telego.DeleteMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		MessageID: messageID,
	})
}

// SendMessage posts a plain notification to the chat
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	_, err := c.bot.SendMessage(ctx, &telego.SendMessageParams{
		ChatID:    telego.ChatID{ID: chatID},
		Text:      text,
		ParseMode: "HTML",
	})
	return err
}

// SendTyping sends a best-effort typing indicator
func (c *Client) SendTyping(ctx context.Context, chatID int64) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	return c.bot.SendChatAction(ctx, &telego.SendChatActionParams{
		ChatID: telego.ChatID{ID: chatID},
		Action: "typing",
	})
}
