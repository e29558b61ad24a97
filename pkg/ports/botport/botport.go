package botport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Package botport is the outbound chat interface used by the survey menu.
// Adapters normalize transport failures into BotError codes so callers never
// inspect raw Telegram error strings.

// Normalized BotError codes.
const (
	CodeMessageNotModified = "message_not_modified"
	CodeMessageNotFound    = "message_not_found"
	CodeRateLimited        = "rate_limited"
	CodeBadRequest         = "bad_request"
	CodeForbidden          = "forbidden"
	CodeBadPayload         = "bad_payload"
	CodeContextCanceled    = "context_canceled"
	CodeContextDeadline    = "context_deadline"
	CodeUnknown            = "unknown"
)

// BotMessage identifies a message the bot has sent.
type BotMessage struct {
	ChatID    int64
	MessageID int
	Transport string
	Payload   string
	Meta      map[string]string
}

// BotError wraps adapter failures with retry hints and normalized codes.
type BotError struct {
	Op         string
	Code       string
	RetryAfter time.Duration
	Wrapped    error
}

func (e *BotError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *BotError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Wrapped
}

func NewBotError(op, code string, err error) *BotError {
	return &BotError{
		Op:      op,
		Code:    code,
		Wrapped: err,
	}
}

// CodeOf returns the BotError code carried by err, or "" when err is not a BotError.
func CodeOf(err error) string {
	var be *BotError
	if errors.As(err, &be) && be != nil {
		return be.Code
	}
	return ""
}

// IsCode determines whether err represents a BotError with the provided code.
func IsCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// BotPort abstracts outbound message operations for adapters (Telegram, fake).
type BotPort interface {
	SendMessage(ctx context.Context, chatID int64, text string, markup interface{}) (BotMessage, error)
	EditMessage(ctx context.Context, chatID int64, messageID int, text string, markup interface{}) (BotMessage, error)
	AnswerCallback(ctx context.Context, callbackID string, text string) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
}
