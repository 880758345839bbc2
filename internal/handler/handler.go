package handler

import (
	"strings"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-gcbot/internal/collector"
	"tg-gcbot/internal/config"
	"tg-gcbot/internal/logger"
)

var (
	globalConfig *config.Config
	startTime    = time.Now()
)

// Initialize stores the configuration for the handler layer
func Initialize(cfg *config.Config) {
	globalConfig = cfg
}

// SetupMessageHandlers configures all bot message and update handlers
func SetupMessageHandlers(bh *th.BotHandler, bot *telego.Bot, gc *collector.GarbageCollector) {
	reg := newRegistry(bot, gc)

	bh.HandleMessage(func(ctx *th.Context, message telego.Message) error {
		return handleIncomingMessage(ctx, reg, message)
	})

	bh.HandleChannelPost(func(ctx *th.Context, message telego.Message) error {
		return handleIncomingMessage(ctx, reg, message)
	})

	bh.HandleCallbackQuery(func(ctx *th.Context, query telego.CallbackQuery) error {
		return reg.handleCallback(ctx, query)
	})
}

// handleIncomingMessage classifies a message as forward, command or
// tagged, in that order. Anything not consumed by a handler is tracked
// by the collector so it can be garbage collected later.
func handleIncomingMessage(ctx *th.Context, reg *registry, message telego.Message) error {
	if message.From != nil && message.From.IsBot {
		return nil
	}

	if username := forwardChannelUsername(message); username != "" {
		handled, err := reg.processForward(message, username)
		if handled || err != nil {
			return err
		}
	} else if cmd := ParseCommand(message); cmd != nil {
		handled, err := reg.dispatch(ctx, cmd)
		if handled {
			return err
		}
		if err != nil {
			logger.Warningf("Command %s failed: %v", cmd.Name, err)
		}
	} else if tag := firstHashtag(message); tag != "" {
		handled, err := reg.processTag(message, tag)
		if handled || err != nil {
			return err
		}
	}

	return reg.gc.AddMessage(collectorMessage(message))
}

// processForward schedules a forward from an undesirable channel for
// removal with the chat's forwards TTL. Reports false when the forward
// is not on the list or the feature is off for this chat.
func (r *registry) processForward(message telego.Message, username string) (bool, error) {
	if globalConfig == nil || !containsUsername(globalConfig.Collector.ForwardUsernames, username) {
		return false, nil
	}

	ttl, err := r.gc.ForwardsTTL(message.Chat.ID)
	if err != nil {
		return false, err
	}
	if ttl == 0 {
		return false, nil
	}

	logger.Debugf("Found a forward message from the list of undesirable usernames")
	return true, r.gc.AddMessageWithTTL(collectorMessage(message), ttl)
}

// processTag applies a per-message TTL override from a leading hashtag
// such as "#5m". Invalid intervals are silently ignored.
func (r *registry) processTag(message telego.Message, tag string) (bool, error) {
	ttl, err := ParseInterval(strings.TrimPrefix(tag, "#"))
	if err != nil || ttl < 0 || ttl > collector.MaxTTL {
		return false, nil
	}

	return true, r.gc.AddMessageWithTTL(collectorMessage(message), ttl)
}

func collectorMessage(message telego.Message) collector.Message {
	return collector.Message{
		ChatID:    message.Chat.ID,
		MessageID: message.MessageID,
		Date:      message.Date,
	}
}

// forwardChannelUsername returns the username of the channel a message
// was forwarded from, or "" when it is not a channel forward.
func forwardChannelUsername(message telego.Message) string {
	if message.ForwardOrigin == nil {
		return ""
	}

	if origin, ok := message.ForwardOrigin.(*telego.MessageOriginChannel); ok {
		return origin.Chat.Username
	}
	return ""
}

// firstHashtag returns the text of the message's first hashtag entity
func firstHashtag(message telego.Message) string {
	for _, entity := range message.Entities {
		if entity.Type != "hashtag" {
			continue
		}
		if entity.Offset < 0 || entity.Offset+entity.Length > len(message.Text) {
			continue
		}
		return message.Text[entity.Offset : entity.Offset+entity.Length]
	}
	return ""
}

func containsUsername(usernames []string, username string) bool {
	for _, u := range usernames {
		if strings.EqualFold(u, username) {
			return true
		}
	}
	return false
}
