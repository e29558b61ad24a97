package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dkalashnik/survey-rewards-bot/pkg/ports/formport"

	"github.com/google/uuid"
)

// Package httpadapter implements formport.FormService against the form service's REST API.

const maxBodyBytes = 1 << 20

// Logger defines the minimal logging interface used by the adapter.
type Logger interface {
	Printf(format string, args ...any)
}

// Adapter talks HTTP to the form service and satisfies formport.FormService.
type Adapter struct {
	baseURL *url.URL
	apiKey  string
	client  *http.Client
	logger  Logger
}

var _ formport.FormService = (*Adapter)(nil)

// Option customizes an Adapter.
type Option func(*Adapter)

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(a *Adapter) {
		if c != nil {
			a.client = c
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l Logger) Option {
	return func(a *Adapter) {
		if l != nil {
			a.logger = l
		}
	}
}

// New constructs an adapter for the service rooted at baseURL.
func New(baseURL, apiKey string, opts ...Option) (*Adapter, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, fmt.Errorf("httpadapter: base url is empty")
	}
	parsed, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("httpadapter: invalid base url %q: %w", baseURL, err)
	}
	a := &Adapter{
		baseURL: parsed,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

type listFormsResponse struct {
	Forms []formport.Form `json:"forms"`
}

type listResponsesResponse struct {
	Responses []formport.Response `json:"responses"`
}

type submitRequest struct {
	RespondentID string         `json:"respondent_id"`
	Answers      map[string]any `json:"answers"`
}

// ListForms returns the full catalog.
func (a *Adapter) ListForms(ctx context.Context) ([]formport.Form, error) {
	var out listFormsResponse
	if err := a.do(ctx, "list_forms", http.MethodGet, "/forms", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Forms, nil
}

// GetFormByID fetches one form on behalf of respondentID.
func (a *Adapter) GetFormByID(ctx context.Context, formID string, respondentID string) (formport.FormDetail, error) {
	query := url.Values{}
	if respondentID != "" {
		query.Set("respondent_id", respondentID)
	}
	var out formport.FormDetail
	if err := a.do(ctx, "get_form", http.MethodGet, "/forms/"+url.PathEscape(formID), query, nil, &out); err != nil {
		return formport.FormDetail{}, err
	}
	return out, nil
}

// GetFormResponses lists stored submissions for formID.
func (a *Adapter) GetFormResponses(ctx context.Context, formID string) ([]formport.Response, error) {
	var out listResponsesResponse
	if err := a.do(ctx, "get_responses", http.MethodGet, "/forms/"+url.PathEscape(formID)+"/responses", nil, nil, &out); err != nil {
		return nil, err
	}
	return out.Responses, nil
}

// SubmitFormResponse stores answers for respondentID.
func (a *Adapter) SubmitFormResponse(ctx context.Context, formID string, answers map[string]any, respondentID string) (formport.Response, error) {
	body := submitRequest{RespondentID: respondentID, Answers: answers}
	var out formport.Response
	if err := a.do(ctx, "submit_response", http.MethodPost, "/forms/"+url.PathEscape(formID)+"/responses", nil, body, &out); err != nil {
		return formport.Response{}, err
	}
	return out, nil
}

func (a *Adapter) do(ctx context.Context, op, method, path string, query url.Values, body any, out any) error {
	if err := ctx.Err(); err != nil {
		return wrapTransportError(op, err)
	}

	endpoint := *a.baseURL
	endpoint.Path = a.baseURL.Path + path
	endpoint.RawQuery = query.Encode()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return formport.NewFormError(op, formport.CodeBadPayload, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return formport.NewFormError(op, formport.CodeBadPayload, err)
	}
	requestID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	started := time.Now()
	resp, err := a.client.Do(req)
	if err != nil {
		wrapped := wrapTransportError(op, err)
		a.log(op, map[string]any{"request_id": requestID, "code": formport.CodeOf(wrapped), "error": err.Error()})
		return wrapped
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return wrapTransportError(op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		wrapped := errorFromResponse(op, resp.StatusCode, raw)
		a.log(op, map[string]any{
			"request_id": requestID,
			"status":     resp.StatusCode,
			"code":       formport.CodeOf(wrapped),
			"elapsed":    time.Since(started).String(),
		})
		return wrapped
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return &formport.FormError{Op: op, Code: formport.CodeBadPayload, Status: resp.StatusCode, Wrapped: err}
		}
	}
	a.log(op, map[string]any{"request_id": requestID, "status": resp.StatusCode, "elapsed": time.Since(started).String()})
	return nil
}

func (a *Adapter) log(op string, attrs map[string]any) {
	if a.logger == nil {
		return
	}
	a.logger.Printf("formport op=%s attrs=%v", op, attrs)
}

func wrapTransportError(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return formport.NewFormError(op, formport.CodeTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return formport.NewFormError(op, formport.CodeTimeout, err)
	}
	return formport.NewFormError(op, formport.CodeNetwork, err)
}
