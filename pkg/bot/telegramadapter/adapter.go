package telegramadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dkalashnik/survey-rewards-bot/pkg/bot"
	"github.com/dkalashnik/survey-rewards-bot/pkg/ports/botport"
)

// Logger defines the minimal logging interface used by the adapter.
type Logger interface {
	Printf(format string, args ...any)
}

type telegramClient interface {
	SendMessage(chatID int64, text string, markup interface{}) (tgbotapi.Message, error)
	EditMessageText(chatID int64, messageID int, text string, markup *tgbotapi.InlineKeyboardMarkup) (tgbotapi.Message, error)
	AnswerCallback(callbackID string, text string) error
	DeleteMessage(chatID int64, messageID int) error
}

// Adapter wraps a Telegram client and satisfies botport.BotPort.
type Adapter struct {
	client telegramClient
	logger Logger
}

var _ telegramClient = (*bot.Client)(nil)
var _ botport.BotPort = (*Adapter)(nil)

func New(client telegramClient, logger Logger) (*Adapter, error) {
	if client == nil {
		return nil, fmt.Errorf("telegramadapter: client is nil")
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Adapter{client: client, logger: logger}, nil
}

func (a *Adapter) SendMessage(ctx context.Context, chatID int64, text string, markup interface{}) (botport.BotMessage, error) {
	if err := ctx.Err(); err != nil {
		return botport.BotMessage{}, wrapContextError("send_message", err)
	}
	msg, err := a.client.SendMessage(chatID, text, markup)
	if err != nil {
		return botport.BotMessage{}, a.wrapAndLogError("send_message", chatID, 0, err)
	}
	bm := toBotMessage(msg, markup)
	a.log("send_message", map[string]any{"chat_id": bm.ChatID, "message_id": bm.MessageID})
	return bm, nil
}

// EditMessage edits an existing message. Only inline keyboards are accepted as markup.
func (a *Adapter) EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup interface{}) (botport.BotMessage, error) {
	if err := ctx.Err(); err != nil {
		return botport.BotMessage{}, wrapContextError("edit_message", err)
	}
	inline, err := toInlineKeyboard(markup)
	if err != nil {
		return botport.BotMessage{}, botport.NewBotError("edit_message", botport.CodeBadPayload, err)
	}
	msg, err := a.client.EditMessageText(chatID, messageID, text, inline)
	if err != nil {
		return botport.BotMessage{}, a.wrapAndLogError("edit_message", chatID, messageID, err)
	}
	var meta interface{}
	if inline != nil {
		meta = inline
	}
	bm := toBotMessage(msg, meta)
	a.log("edit_message", map[string]any{"chat_id": bm.ChatID, "message_id": bm.MessageID})
	return bm, nil
}

func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, text string) error {
	if err := ctx.Err(); err != nil {
		return wrapContextError("answer_callback", err)
	}
	if err := a.client.AnswerCallback(callbackID, text); err != nil {
		return a.wrapAndLogError("answer_callback", 0, 0, err)
	}
	a.log("answer_callback", map[string]any{"callback_id": callbackID})
	return nil
}

func (a *Adapter) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return wrapContextError("delete_message", err)
	}
	if messageID == 0 {
		return botport.NewBotError("delete_message", botport.CodeBadPayload, fmt.Errorf("message id is zero"))
	}
	if err := a.client.DeleteMessage(chatID, messageID); err != nil {
		return a.wrapAndLogError("delete_message", chatID, messageID, err)
	}
	a.log("delete_message", map[string]any{"chat_id": chatID, "message_id": messageID})
	return nil
}

func (a *Adapter) wrapAndLogError(op string, chatID int64, messageID int, err error) error {
	wrapped := wrapTelegramError(op, err)
	a.log(op, map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
		"code":       botport.CodeOf(wrapped),
		"error":      err.Error(),
	})
	return wrapped
}

func (a *Adapter) log(op string, attrs map[string]any) {
	if a.logger == nil {
		return
	}
	a.logger.Printf("botport op=%s attrs=%v", op, attrs)
}

func toInlineKeyboard(markup interface{}) (*tgbotapi.InlineKeyboardMarkup, error) {
	switch v := markup.(type) {
	case nil:
		return nil, nil
	case tgbotapi.InlineKeyboardMarkup:
		return &v, nil
	case *tgbotapi.InlineKeyboardMarkup:
		return v, nil
	default:
		return nil, fmt.Errorf("unsupported markup type %T", markup)
	}
}

func toBotMessage(msg tgbotapi.Message, markup interface{}) botport.BotMessage {
	payload := msg.Text
	if payload == "" {
		payload = msg.Caption
	}
	var chatID int64
	if msg.Chat != nil {
		chatID = msg.Chat.ID
	}
	return botport.BotMessage{
		ChatID:    chatID,
		MessageID: msg.MessageID,
		Transport: "telegram",
		Payload:   payload,
		Meta:      metaFromMarkup(markup),
	}
}

// metaFromMarkup records the markup type and, for inline keyboards, the
// serialized buttons so tests and logs can see which surveys were offered.
func metaFromMarkup(markup interface{}) map[string]string {
	if markup == nil {
		return nil
	}
	meta := map[string]string{"markup_type": fmt.Sprintf("%T", markup)}
	if keyboard, err := toInlineKeyboard(markup); err == nil && keyboard != nil {
		if raw, err := json.Marshal(keyboard); err == nil {
			meta["raw_markup"] = string(raw)
		}
		meta["buttons"] = fmt.Sprintf("%d", countButtons(keyboard))
	}
	return meta
}

func countButtons(keyboard *tgbotapi.InlineKeyboardMarkup) int {
	n := 0
	for _, row := range keyboard.InlineKeyboard {
		n += len(row)
	}
	return n
}

func wrapContextError(op string, err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return botport.NewBotError(op, botport.CodeContextCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return botport.NewBotError(op, botport.CodeContextDeadline, err)
	default:
		return botport.NewBotError(op, "context_error", err)
	}
}

func wrapTelegramError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return wrapContextError(op, err)
	}
	code, retry := classifyTelegramError(err)
	return &botport.BotError{
		Op:         op,
		Code:       code,
		RetryAfter: retry,
		Wrapped:    err,
	}
}

var retryAfterRegex = regexp.MustCompile(`(?i)retry after (\d+)`)

// classifyTelegramError is the only place Telegram error text is inspected.
func classifyTelegramError(err error) (string, time.Duration) {
	if err == nil {
		return botport.CodeUnknown, 0
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "message is not modified"):
		return botport.CodeMessageNotModified, 0
	case strings.Contains(msg, "message to delete not found"),
		strings.Contains(msg, "message to edit not found"),
		strings.Contains(msg, "message can't be deleted"):
		return botport.CodeMessageNotFound, 0
	case strings.Contains(msg, "too many requests"):
		return botport.CodeRateLimited, extractRetryAfter(msg)
	case strings.Contains(msg, "bad request"):
		return botport.CodeBadRequest, 0
	case strings.Contains(msg, "forbidden"):
		return botport.CodeForbidden, 0
	default:
		return botport.CodeUnknown, 0
	}
}

func extractRetryAfter(msg string) time.Duration {
	matches := retryAfterRegex.FindStringSubmatch(msg)
	if len(matches) != 2 {
		return 0
	}
	seconds, err := time.ParseDuration(matches[1] + "s")
	if err != nil {
		return 0
	}
	return seconds
}
