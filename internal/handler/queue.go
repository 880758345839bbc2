package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	th "github.com/mymmrac/telego/telegohandler"

	"tg-gcbot/internal/collector"
	"tg-gcbot/internal/models"
)

const queuePageSize = 10

// queueHandler renders the chat's upcoming removals, one page at a
// time, with inline-keyboard navigation via "queue:<page>" callbacks.
type queueHandler struct{ handlerBase }

func (h *queueHandler) Process(ctx *th.Context, cmd *Command) error {
	chatID := cmd.Message.Chat.ID

	records, err := h.gc.RemovalQueue(chatID)
	if err != nil {
		return err
	}

	text, markup := renderQueuePage(records, 1, time.Now())
	return reply(ctx, h.bot, chatID, text, markup)
}

func (h *queueHandler) ProcessCallback(ctx *th.Context, query telego.CallbackQuery, payload string) error {
	page, err := strconv.Atoi(payload)
	if err != nil || page < 1 {
		page = 1
	}

	if query.Message != nil {
		if msg, ok := query.Message.(*telego.Message); ok {
			records, err := h.gc.RemovalQueue(msg.Chat.ID)
			if err != nil {
				return err
			}

			text, markup := renderQueuePage(records, page, time.Now())
			_, err = h.bot.EditMessageText(ctx.Context(), &telego.EditMessageTextParams{
				ChatID:      telego.ChatID{ID: msg.Chat.ID},
				MessageID:   msg.MessageID,
				Text:        text,
				ParseMode:   "HTML",
				ReplyMarkup: markup,
			})
			if err != nil {
				return err
			}
		}
	}

	return h.bot.AnswerCallbackQuery(ctx.Context(), &telego.AnswerCallbackQueryParams{
		CallbackQueryID: query.ID,
	})
}

// renderQueuePage builds the text and navigation markup for one page
// of the removal queue.
func renderQueuePage(records []models.MessageRecord, page int, now time.Time) (string, *telego.InlineKeyboardMarkup) {
	if len(records) == 0 {
		return "The removal queue is empty.", nil
	}

	totalPages := (len(records) + queuePageSize - 1) / queuePageSize
	if page > totalPages {
		page = totalPages
	}

	start := (page - 1) * queuePageSize
	end := start + queuePageSize
	if end > len(records) {
		end = len(records)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Upcoming removals (page %d/%d):\n", page, totalPages)
	for _, record := range records[start:end] {
		eta := "now"
		if record.DeleteAfter != nil {
			if remaining := time.Unix(*record.DeleteAfter, 0).Sub(now); remaining > 0 {
				eta = "in " + collector.FormatInterval(remaining)
			}
		}
		fmt.Fprintf(&sb, "<code>%d</code> - %s\n", record.MessageID, eta)
	}

	var buttons []telego.InlineKeyboardButton
	if page > 1 {
		buttons = append(buttons, telego.InlineKeyboardButton{
			Text:         "« Prev",
			CallbackData: fmt.Sprintf("queue:%d", page-1),
		})
	}
	if page < totalPages {
		buttons = append(buttons, telego.InlineKeyboardButton{
			Text:         "Next »",
			CallbackData: fmt.Sprintf("queue:%d", page+1),
		})
	}

	if len(buttons) == 0 {
		return sb.String(), nil
	}

	return sb.String(), &telego.InlineKeyboardMarkup{
		InlineKeyboard: [][]telego.InlineKeyboardButton{buttons},
	}
}
