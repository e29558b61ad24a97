package httpadapter

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/dkalashnik/survey-rewards-bot/pkg/ports/formport"
)

type errorEnvelope struct {
	Error   json.RawMessage `json:"error"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var knownCodes = map[string]bool{
	formport.CodeAlreadyResponded: true,
	formport.CodeUnauthenticated:  true,
	formport.CodeNotFound:         true,
	formport.CodeServer:           true,
	formport.CodeBadPayload:       true,
}

func errorFromResponse(op string, status int, body []byte) error {
	code, message := parseErrorBody(body)
	if message == "" {
		message = http.StatusText(status)
	}
	if !knownCodes[code] {
		code = classifyFormError(status, message)
	}
	return &formport.FormError{
		Op:      op,
		Code:    code,
		Status:  status,
		Wrapped: errors.New(message),
	}
}

// parseErrorBody accepts {"error":{"code","message"}}, {"error":"..."} and {"code","message"}.
func parseErrorBody(body []byte) (string, string) {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return "", strings.TrimSpace(string(body))
	}
	if len(env.Error) > 0 {
		var detail errorDetail
		if err := json.Unmarshal(env.Error, &detail); err == nil {
			return strings.ToLower(detail.Code), detail.Message
		}
		var text string
		if err := json.Unmarshal(env.Error, &text); err == nil {
			return strings.ToLower(env.Code), text
		}
	}
	return strings.ToLower(env.Code), env.Message
}

var alreadyRespondedPhrases = []string{
	"already has a response",
	"already responded",
	"already submitted",
	"already completed",
	"already been submitted",
	"duplicate response",
}

var unauthenticatedPhrases = []string{
	"not authenticated",
	"unauthenticated",
	"unauthorized",
	"respondent id is required",
	"identity not resolvable",
	"invalid respondent",
}

// classifyFormError is the only place provider error text is inspected.
func classifyFormError(status int, message string) string {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, alreadyRespondedPhrases):
		return formport.CodeAlreadyResponded
	case status == http.StatusUnauthorized || status == http.StatusForbidden || containsAny(lower, unauthenticatedPhrases):
		return formport.CodeUnauthenticated
	case status == http.StatusNotFound || strings.Contains(lower, "not found"):
		return formport.CodeNotFound
	case status == http.StatusGatewayTimeout || status == http.StatusRequestTimeout:
		return formport.CodeTimeout
	case status >= 500:
		return formport.CodeServer
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		return formport.CodeBadPayload
	default:
		return formport.CodeUnknown
	}
}

func containsAny(s string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
