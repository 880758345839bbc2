package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-gcbot/internal/collector"
	"tg-gcbot/internal/logger"
)

const maxRetryAttempts = 1000

// Handler processes one bot command. Validate inspects and cleans the
// raw arguments; a *ValidationError is shown to the user while any
// other error is treated as an internal failure.
type Handler interface {
	Validate(cmd *Command) error
	Process(ctx *th.Context, cmd *Command) error
}

type callbackHandler interface {
	ProcessCallback(ctx *th.Context, query telego.CallbackQuery, payload string) error
}

// registry maps command names to their handlers. Resolved once at
// startup, no per-call reflection.
type registry struct {
	bot       *telego.Bot
	gc        *collector.GarbageCollector
	handlers  map[string]Handler
	callbacks map[string]callbackHandler
}

func newRegistry(bot *telego.Bot, gc *collector.GarbageCollector) *registry {
	base := handlerBase{bot: bot, gc: gc}
	queue := &queueHandler{handlerBase: base}

	return &registry{
		bot: bot,
		gc:  gc,
		handlers: map[string]Handler{
			"gc":     &gcHandler{handlerBase: base},
			"gcoff":  &gcOffHandler{handlerBase: base},
			"fwd":    &fwdHandler{handlerBase: base},
			"cancel": &cancelHandler{handlerBase: base},
			"retry":  &retryHandler{handlerBase: base},
			"queue":  queue,
			"status": &statusHandler{handlerBase: base},
			"ping":   &pingHandler{handlerBase: base},
			"github": &githubHandler{handlerBase: base},
			"help":   &helpHandler{handlerBase: base},
			"noop":   &noopHandler{handlerBase: base},
		},
		callbacks: map[string]callbackHandler{
			"queue": queue,
		},
	}
}

// dispatch routes a parsed command to its handler. Reports false when
// the message should still be tracked as a regular message.
func (r *registry) dispatch(ctx *th.Context, cmd *Command) (bool, error) {
	// Only commands at the start of the message act as commands
	if cmd.Offset != 0 {
		return false, nil
	}

	if cmd.Username != "" && globalConfig != nil && !strings.EqualFold(cmd.Username, globalConfig.Bot.Username) {
		logger.Debugf("Received a command that's meant for another bot: %s@%s", cmd.Name, cmd.Username)
		return false, nil
	}

	handler, ok := r.handlers[cmd.Name]
	if !ok {
		if err := reply(ctx, r.bot, cmd.Message.Chat.ID, fmt.Sprintf("Unrecognized command: %s", cmd.Name), nil); err != nil {
			logger.Warningf("Failed to reply to chat %d: %v", cmd.Message.Chat.ID, err)
		}
		return false, nil
	}

	if err := handler.Validate(cmd); err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			return true, reply(ctx, r.bot, cmd.Message.Chat.ID, verr.Message, nil)
		}
		return true, err
	}

	return true, handler.Process(ctx, cmd)
}

func (r *registry) handleCallback(ctx *th.Context, query telego.CallbackQuery) error {
	callbackType, payload, _ := strings.Cut(query.Data, ":")

	handler, ok := r.callbacks[callbackType]
	if !ok {
		logger.Warningf("Received a callback query with unknown type: %s", query.Data)
		return nil
	}

	return handler.ProcessCallback(ctx, query, payload)
}

// handlerBase carries the dependencies every command handler needs and
// provides a no-op Validate for handlers without arguments.
type handlerBase struct {
	bot *telego.Bot
	gc  *collector.GarbageCollector
}

func (h *handlerBase) Validate(cmd *Command) error {
	return nil
}

func reply(ctx *th.Context, bot *telego.Bot, chatID int64, text string, markup telego.ReplyMarkup) error {
	_, err := bot.SendMessage(ctx.Context(), &telego.SendMessageParams{
		ChatID:      telego.ChatID{ID: chatID},
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	})
	return err
}

func validateTTLArg(cmd *Command, example string) error {
	if len(cmd.Args) == 0 {
		return nil
	}

	ttl, err := ParseInterval(strings.Join(cmd.Args, " "))
	if err != nil || ttl < 0 || ttl > collector.MaxTTL {
		return &ValidationError{Message: fmt.Sprintf(
			"Please provide a \"time to live\" for messages as a valid "+
				"integer between 0 and %d or a time string such as \"1h30m\" "+
				"(\"2 days\" max).\n%s", collector.MaxTTL, example)}
	}

	cmd.TTL = ttl
	cmd.HasTTL = true
	return nil
}

type gcHandler struct{ handlerBase }

func (h *gcHandler) Validate(cmd *Command) error {
	return validateTTLArg(cmd, "E.g. \"/gc 1h\" to start removing new messages after one hour.")
}

func (h *gcHandler) Process(ctx *th.Context, cmd *Command) error {
	chatID := cmd.Message.Chat.ID

	if !cmd.HasTTL {
		return reply(ctx, h.bot, chatID,
			"Please choose an expiration time for new messages",
			ttlKeyboard("gc"))
	}

	if err := h.gc.Enable(chatID, cmd.TTL); err != nil {
		return err
	}
	logger.Debugf("GC enabled for chat %d", chatID)

	return reply(ctx, h.bot, chatID, fmt.Sprintf(
		"Garbage collector enabled - automatically removing all new messages "+
			"after %d seconds.", cmd.TTL), removeKeyboard())
}

type gcOffHandler struct{ handlerBase }

func (h *gcOffHandler) Process(ctx *th.Context, cmd *Command) error {
	chatID := cmd.Message.Chat.ID

	if err := h.gc.Disable(chatID); err != nil {
		return err
	}
	logger.Debugf("GC disabled for chat %d", chatID)

	return reply(ctx, h.bot, chatID,
		"Garbage collector disabled - new messages won't be removed automatically.",
		removeKeyboard())
}

type fwdHandler struct{ handlerBase }

func (h *fwdHandler) Validate(cmd *Command) error {
	return validateTTLArg(cmd, "E.g. \"/fwd 1h\" to start removing forwarded messages after one hour.")
}

func (h *fwdHandler) Process(ctx *th.Context, cmd *Command) error {
	chatID := cmd.Message.Chat.ID

	if !cmd.HasTTL {
		return reply(ctx, h.bot, chatID,
			"Please choose an expiration time for forwarded messages",
			ttlKeyboard("fwd"))
	}

	if err := h.gc.SetForwardsTTL(chatID, cmd.TTL); err != nil {
		return err
	}
	logger.Debugf("Forwards removal TTL set to %d for chat %d", cmd.TTL, chatID)

	if cmd.TTL > 0 {
		return reply(ctx, h.bot, chatID, fmt.Sprintf(
			"Automatic removal of forwarded messages enabled. Removing forwards "+
				"after %d seconds.", cmd.TTL), removeKeyboard())
	}
	return reply(ctx, h.bot, chatID,
		"Automatic removal of forwarded messages disabled.", removeKeyboard())
}

type cancelHandler struct{ handlerBase }

func (h *cancelHandler) Process(ctx *th.Context, cmd *Command) error {
	chatID := cmd.Message.Chat.ID

	cancelled, err := h.gc.Cancel(chatID)
	if err != nil {
		return err
	}

	return reply(ctx, h.bot, chatID,
		fmt.Sprintf("Cancelled removal of %d pending messages.", cancelled), nil)
}

type retryHandler struct{ handlerBase }

func (h *retryHandler) Validate(cmd *Command) error {
	if len(cmd.Args) == 0 {
		return nil
	}

	maxAttempts, err := strconv.Atoi(cmd.Args[0])
	if err != nil || maxAttempts < 1 || maxAttempts > maxRetryAttempts {
		return &ValidationError{Message: fmt.Sprintf(
			"Please provide a valid integer between 1 and %d for the "+
				"<i>max_attempts</i> parameter.", maxRetryAttempts)}
	}

	cmd.MaxAttempts = maxAttempts
	return nil
}

func (h *retryHandler) Process(ctx *th.Context, cmd *Command) error {
	chatID := cmd.Message.Chat.ID

	countFailed, err := h.gc.CountFailed(chatID, cmd.MaxAttempts)
	if err != nil {
		return err
	}

	if countFailed == 0 {
		return reply(ctx, h.bot, chatID, "No failed messages found, not re-trying.", nil)
	}

	if err := reply(ctx, h.bot, chatID, fmt.Sprintf(
		"Attempting to delete %d failed message(s).", countFailed), nil); err != nil {
		return err
	}

	if err := h.bot.SendChatAction(ctx.Context(), &telego.SendChatActionParams{
		ChatID: telego.ChatID{ID: chatID},
		Action: "typing",
	}); err != nil {
		logger.Debugf("Failed to send typing action to chat %d: %v", chatID, err)
	}

	return h.gc.Retry(chatID, cmd.MaxAttempts)
}

type statusHandler struct{ handlerBase }

func (h *statusHandler) Process(ctx *th.Context, cmd *Command) error {
	chatID := cmd.Message.Chat.ID

	status, err := h.gc.Status(chatID)
	if err != nil {
		return err
	}

	text := fmt.Sprintf(
		"<b>Status</b>\n"+
			"GC enabled: %t\n"+
			"TTL: %ds\n"+
			"Pending: %d\n"+
			"Unreachable: %d\n"+
			"Cancelled: %d\n"+
			"Failed: %d\n"+
			"Deleted: %d\n"+
			"Next deletion in: %s\n"+
			"Uptime: %s",
		status.GCEnabled,
		status.GCTTL,
		status.Pending,
		status.Unreachable,
		status.Cancelled,
		status.Failed,
		status.Deleted,
		status.NextDeleteIn,
		collector.FormatInterval(time.Since(startTime)),
	)

	return reply(ctx, h.bot, chatID, text, nil)
}

type pingHandler struct{ handlerBase }

func (h *pingHandler) Process(ctx *th.Context, cmd *Command) error {
	return reply(ctx, h.bot, cmd.Message.Chat.ID, "pong", nil)
}

type githubHandler struct{ handlerBase }

func (h *githubHandler) Process(ctx *th.Context, cmd *Command) error {
	return reply(ctx, h.bot, cmd.Message.Chat.ID, "https://github.com/longedok/gcbot", nil)
}

type noopHandler struct{ handlerBase }

func (h *noopHandler) Process(ctx *th.Context, cmd *Command) error {
	return reply(ctx, h.bot, cmd.Message.Chat.ID, "Aborting, no settings changed.", removeKeyboard())
}

type helpHandler struct{ handlerBase }

const helpText = `This bot allows you to set an expiration time for all new messages in a group chat. It supports the following commands:

<b>Control commands</b>
/gc [<i>time_interval</i>] - Enable automatic removal of messages after <i>time_interval</i>. E.g., the command <code>/gc 1h</code> will result in all new messages being removed when they become 1 hour old.

The <i>time_interval</i> parameter accepts an integer value of seconds between 0 and 172800 or a string describing a time interval, such as "15 minutes" or "1h30m", up to the maximum value of "2 days". If the parameter is not provided, a UI with the default time intervals will be presented.

/gcoff - Disable automatic removal of messages.

/fwd [<i>time_interval</i>] - Enable automatic removal of forwarded messages from <i>certain</i> channels. Use command <code>/fwd 0</code> to disable.

/cancel - Cancel removal of all pending messages.

/retry [<i>max_attempts</i>] - Try to remove messages that failed to be removed automatically. If the <i>max_attempts</i> parameter is specified, messages that were already re-tried more than <i>max_attempts</i> times won't be re-tried.

<b>Info commands</b>
/queue - Shows IDs of messages to be removed next.
/status - Get current status.
/github - Link to the bot's source code.
/ping - Sends "pong" in response.
/help - Display help message.

<b>Quick tags</b>
You can also include a hashtag specifying a time interval inside the message's text, to override the global expiration time for a single message. E.g.: "Hi all #5m" - this message will be removed in 5 minutes, ignoring the global expiration time setting.

The same restrictions apply to time interval in tags as with the global <i>time_interval</i> setting, but the bot will silently ignore invalid intervals in tags.`

func (h *helpHandler) Process(ctx *th.Context, cmd *Command) error {
	return reply(ctx, h.bot, cmd.Message.Chat.ID, helpText, nil)
}
