package formport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Package formport is the outbound boundary to the external form-authoring service.
// Adapters translate transport failures into FormError codes so callers never
// inspect raw error text.

// Normalized FormError codes.
const (
	CodeAlreadyResponded = "already_responded"
	CodeUnauthenticated  = "unauthenticated"
	CodeNotFound         = "not_found"
	CodeServer           = "server_error"
	CodeNetwork          = "network_error"
	CodeTimeout          = "timeout"
	CodeBadPayload       = "bad_payload"
	CodeUnknown          = "unknown"
)

// Form is one catalog entry as listed by the service.
type Form struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	Language        string    `json:"language,omitempty"`
	Status          string    `json:"status"`
	SubmissionCount int       `json:"submission_count"`
	IsClosed        bool      `json:"is_closed"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Question is a single field of a form definition.
type Question struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Type     string   `json:"type"`
	Required bool     `json:"required"`
	Options  []string `json:"options,omitempty"`
}

// FormDetail is the full definition returned by GetFormByID.
type FormDetail struct {
	Form
	Description string     `json:"description,omitempty"`
	Questions   []Question `json:"questions"`
}

// Response is one stored submission.
type Response struct {
	ID           string         `json:"id"`
	FormID       string         `json:"form_id"`
	RespondentID string         `json:"respondent_id"`
	Answers      map[string]any `json:"answers"`
	SubmittedAt  time.Time      `json:"submitted_at"`
}

// FormService abstracts the form-authoring backend.
type FormService interface {
	ListForms(ctx context.Context) ([]Form, error)
	// GetFormByID fetches a form on behalf of respondentID. The service refuses
	// with CodeAlreadyResponded when that respondent has already submitted.
	GetFormByID(ctx context.Context, formID string, respondentID string) (FormDetail, error)
	GetFormResponses(ctx context.Context, formID string) ([]Response, error)
	SubmitFormResponse(ctx context.Context, formID string, answers map[string]any, respondentID string) (Response, error)
}

// FormError wraps adapter failures with a normalized code.
type FormError struct {
	Op      string
	Code    string
	Status  int
	Wrapped error
}

func (e *FormError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

// Unwrap exposes the underlying transport error for errors.Is/As.
func (e *FormError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Wrapped
}

// NewFormError builds a FormError for op/code, preserving the wrapped error.
func NewFormError(op, code string, err error) *FormError {
	return &FormError{Op: op, Code: code, Wrapped: err}
}

// CodeOf returns the FormError code carried by err, or "" when err is not a FormError.
func CodeOf(err error) string {
	var fe *FormError
	if errors.As(err, &fe) && fe != nil {
		return fe.Code
	}
	return ""
}

// IsCode determines whether err represents a FormError with the provided code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}
