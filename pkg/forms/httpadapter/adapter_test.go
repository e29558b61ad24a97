package httpadapter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkalashnik/survey-rewards-bot/pkg/ports/formport"
)

func TestClassifyFormError(t *testing.T) {
	cases := []struct {
		status  int
		message string
		want    string
	}{
		{http.StatusConflict, "Respondent already has a response for this form", formport.CodeAlreadyResponded},
		{http.StatusBadRequest, "Form already submitted by this user", formport.CodeAlreadyResponded},
		{http.StatusForbidden, "You have already completed this survey", formport.CodeAlreadyResponded},
		{http.StatusUnauthorized, "token expired", formport.CodeUnauthenticated},
		{http.StatusBadRequest, "User not authenticated", formport.CodeUnauthenticated},
		{http.StatusBadRequest, "Respondent ID is required", formport.CodeUnauthenticated},
		{http.StatusNotFound, "", formport.CodeNotFound},
		{http.StatusGatewayTimeout, "upstream timeout", formport.CodeTimeout},
		{http.StatusInternalServerError, "boom", formport.CodeServer},
		{http.StatusBadGateway, "Bad Gateway", formport.CodeServer},
		{http.StatusUnprocessableEntity, "answers.q1 is required", formport.CodeBadPayload},
		{http.StatusTeapot, "teapot", formport.CodeUnknown},
	}
	for _, tc := range cases {
		got := classifyFormError(tc.status, tc.message)
		if got != tc.want {
			t.Fatalf("classifyFormError(%d, %q) = %s, want %s", tc.status, tc.message, got, tc.want)
		}
	}
}

func TestParseErrorBodyShapes(t *testing.T) {
	code, msg := parseErrorBody([]byte(`{"error":{"code":"ALREADY_RESPONDED","message":"dup"}}`))
	if code != "already_responded" || msg != "dup" {
		t.Fatalf("nested shape: got %q %q", code, msg)
	}
	code, msg = parseErrorBody([]byte(`{"error":"not authenticated"}`))
	if code != "" || msg != "not authenticated" {
		t.Fatalf("string shape: got %q %q", code, msg)
	}
	code, msg = parseErrorBody([]byte(`{"code":"not_found","message":"no form"}`))
	if code != "not_found" || msg != "no form" {
		t.Fatalf("flat shape: got %q %q", code, msg)
	}
	code, msg = parseErrorBody([]byte(`upstream exploded`))
	if code != "" || msg != "upstream exploded" {
		t.Fatalf("plain text: got %q %q", code, msg)
	}
}

func TestListFormsSendsHeadersAndDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/forms" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer secret" {
			t.Errorf("missing bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Errorf("missing request id")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"forms": []map[string]any{
				{"id": "a", "name": "Опрос", "submission_count": 3},
				{"id": "b", "name": "So'rovnoma", "is_closed": true},
			},
		})
	}))
	defer srv.Close()

	adapter, err := New(srv.URL+"/api/", "secret", WithLogger(testLogger{t}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	forms, err := adapter.ListForms(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(forms) != 2 || forms[0].ID != "a" || forms[0].SubmissionCount != 3 || !forms[1].IsClosed {
		t.Fatalf("unexpected forms: %+v", forms)
	}
}

func TestGetFormByIDPassesRespondentAndClassifiesConflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("respondent_id") != "42" {
			t.Errorf("expected respondent_id=42, got %q", r.URL.RawQuery)
		}
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"Respondent already has a response for this form"}`))
	}))
	defer srv.Close()

	adapter, _ := New(srv.URL, "", WithLogger(testLogger{t}))
	_, err := adapter.GetFormByID(context.Background(), "form-1", "42")
	if !formport.IsCode(err, formport.CodeAlreadyResponded) {
		t.Fatalf("expected already_responded, got %v", err)
	}
	var fe *formport.FormError
	if !asFormError(err, &fe) || fe.Status != http.StatusConflict || fe.Op != "get_form" {
		t.Fatalf("unexpected form error: %+v", fe)
	}
}

func TestStructuredCodeWinsOverStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"unauthenticated","message":"who are you"}}`))
	}))
	defer srv.Close()

	adapter, _ := New(srv.URL, "", WithLogger(testLogger{t}))
	_, err := adapter.GetFormByID(context.Background(), "x", "")
	if !formport.IsCode(err, formport.CodeUnauthenticated) {
		t.Fatalf("expected unauthenticated, got %v", err)
	}
}

func TestServerErrorAndMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/forms/broken":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			_, _ = w.Write([]byte(`{"id": 12`))
		}
	}))
	defer srv.Close()

	adapter, _ := New(srv.URL, "", WithLogger(testLogger{t}))
	if _, err := adapter.GetFormByID(context.Background(), "broken", "1"); !formport.IsCode(err, formport.CodeServer) {
		t.Fatalf("expected server_error, got %v", err)
	}
	if _, err := adapter.GetFormByID(context.Background(), "garbled", "1"); !formport.IsCode(err, formport.CodeBadPayload) {
		t.Fatalf("expected bad_payload, got %v", err)
	}
}

func TestTimeoutIsClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(500 * time.Millisecond):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	adapter, _ := New(srv.URL, "", WithLogger(testLogger{t}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := adapter.GetFormByID(ctx, "slow", "1")
	if !formport.IsCode(err, formport.CodeTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
}

func TestUnreachableServiceIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	adapter, _ := New(url, "", WithLogger(testLogger{t}))
	_, err := adapter.ListForms(context.Background())
	if !formport.IsCode(err, formport.CodeNetwork) {
		t.Fatalf("expected network_error, got %v", err)
	}
}

func TestSubmitFormResponsePostsAnswers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/forms/f1/responses" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body submitRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode: %v", err)
		}
		if body.RespondentID != "7" || body.Answers["q1"] != "yes" {
			t.Errorf("unexpected body: %+v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"resp-1","form_id":"f1","respondent_id":"7"}`))
	}))
	defer srv.Close()

	adapter, _ := New(srv.URL, "", WithLogger(testLogger{t}))
	resp, err := adapter.SubmitFormResponse(context.Background(), "f1", map[string]any{"q1": "yes"}, "7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.ID != "resp-1" || resp.FormID != "f1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestNewRejectsEmptyBaseURL(t *testing.T) {
	if _, err := New("  ", ""); err == nil {
		t.Fatalf("expected error for empty base url")
	}
}

func asFormError(err error, target **formport.FormError) bool {
	fe, ok := err.(*formport.FormError)
	if ok {
		*target = fe
	}
	return ok
}

type testLogger struct {
	t *testing.T
}

func (l testLogger) Printf(format string, args ...any) {
	l.t.Logf(format, args...)
}
