package bot

import (
	"context"
	"fmt"
	"log"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-gcbot/internal/config"
)

// BotService represents the Telegram bot service
type BotService struct {
	Bot     *telego.Bot
	Handler *th.BotHandler
}

// Start starts the bot handler
func (b *BotService) Start() {
	b.Handler.Start()
}

// Stop stops the bot handler
func (b *BotService) Stop() {
	b.Handler.Stop()
}

// Initialize initializes the bot and its update transport. When a
// webhook endpoint is configured the returned WebhookServer must be
// started by the caller; otherwise updates arrive via long polling and
// the server is nil.
func Initialize(ctx context.Context, cfg *config.Config) (*BotService, *WebhookServer, error) {
	if cfg.Bot.Token == "" {
		return nil, nil, fmt.Errorf("bot token is required")
	}

	bot, err := telego.NewBot(cfg.Bot.Token, telego.WithDefaultDebugLogger())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize bot: %w", err)
	}

	botUser, err := bot.GetMe(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get bot info: %w", err)
	}
	log.Printf("Authorized on account %s", botUser.Username)

	setCommands(ctx, bot)

	// Delete any existing webhook; required before long polling and
	// before re-registering a webhook endpoint.
	err = bot.DeleteWebhook(ctx, &telego.DeleteWebhookParams{})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to delete existing webhook: %w", err)
	}

	if cfg.Bot.Webhook.Endpoint == "" {
		updates, err := bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
			Timeout: 120,
			AllowedUpdates: []string{
				"message", "channel_post", "callback_query",
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to start long polling: %w", err)
		}

		bh, err := th.NewBotHandler(bot, updates)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create bot handler: %w", err)
		}

		return &BotService{Bot: bot, Handler: bh}, nil, nil
	}

	// Set fixed secret token or generate one based on bot token
	secretToken := "secure_webhook_token_" + cfg.Bot.Token[len(cfg.Bot.Token)-6:]

	bh, server, err := SetupWebhook(ctx, bot, cfg.Bot.Webhook.Endpoint, cfg.Bot.Webhook.ListenPort, cfg.Bot.Webhook.DebugPath, secretToken, cfg.Bot.Webhook.CertFile, cfg.Bot.Webhook.KeyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to setup webhook: %w", err)
	}

	return &BotService{Bot: bot, Handler: bh}, server, nil
}

// setCommands publishes the bot's command menu
func setCommands(ctx context.Context, bot *telego.Bot) {
	commands := []telego.BotCommand{
		{Command: "gc", Description: "Enable automatic removal of messages"},
		{Command: "gcoff", Description: "Disable automatic removal of messages"},
		{Command: "fwd", Description: "Enable automatic removal of forwards from channels"},
		{Command: "cancel", Description: "Cancel removal of all pending messages"},
		{Command: "retry", Description: "Re-try failed deletions"},
		{Command: "queue", Description: "Show the IDs of messages to be removed next"},
		{Command: "status", Description: "Get current status"},
		{Command: "ping", Description: "Sends \"pong\" in response"},
		{Command: "github", Description: "Link to the bot's source code"},
		{Command: "help", Description: "Display help message"},
	}

	err := bot.SetMyCommands(ctx, &telego.SetMyCommandsParams{Commands: commands})
	if err != nil {
		log.Printf("Warning: Failed to set bot commands: %v", err)
	}
}
