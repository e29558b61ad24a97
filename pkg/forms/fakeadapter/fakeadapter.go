package fakeadapter

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dkalashnik/survey-rewards-bot/pkg/ports/formport"
)

// FakeService implements formport.FormService in memory for headless tests.
// It remembers which respondents submitted which forms and answers GetFormByID
// with CodeAlreadyResponded for them, like the real service.
type FakeService struct {
	mu        sync.Mutex
	Forms     []formport.Form
	Calls     []Call
	responses map[string][]formport.Response
	failNext  map[string]error
	failFor   map[string]error
	delay     map[string]time.Duration
}

// Call captures a service invocation.
type Call struct {
	Op           string
	FormID       string
	RespondentID string
}

var _ formport.FormService = (*FakeService)(nil)

// New returns a fake serving forms in the given order.
func New(forms ...formport.Form) *FakeService {
	return &FakeService{Forms: forms}
}

// ListForms returns a copy of Forms.
func (f *FakeService) ListForms(ctx context.Context) ([]formport.Form, error) {
	if err := f.enter(ctx, "list_forms", "", ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]formport.Form, len(f.Forms))
	copy(out, f.Forms)
	return out, nil
}

// GetFormByID returns the form, or CodeAlreadyResponded when respondentID already submitted it.
func (f *FakeService) GetFormByID(ctx context.Context, formID string, respondentID string) (formport.FormDetail, error) {
	if err := f.enter(ctx, "get_form", formID, respondentID); err != nil {
		return formport.FormDetail{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if respondentID == "" {
		return formport.FormDetail{}, formport.NewFormError("get_form", formport.CodeUnauthenticated, fmt.Errorf("respondent id is required"))
	}
	form, ok := f.findLocked(formID)
	if !ok {
		return formport.FormDetail{}, formport.NewFormError("get_form", formport.CodeNotFound, fmt.Errorf("form %s not found", formID))
	}
	if f.respondedLocked(formID, respondentID) {
		return formport.FormDetail{}, formport.NewFormError("get_form", formport.CodeAlreadyResponded, fmt.Errorf("respondent already has a response for this form"))
	}
	return formport.FormDetail{Form: form}, nil
}

// GetFormResponses lists recorded submissions for formID.
func (f *FakeService) GetFormResponses(ctx context.Context, formID string) ([]formport.Response, error) {
	if err := f.enter(ctx, "get_responses", formID, ""); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]formport.Response, len(f.responses[formID]))
	copy(out, f.responses[formID])
	return out, nil
}

// SubmitFormResponse records a submission, refusing duplicates.
func (f *FakeService) SubmitFormResponse(ctx context.Context, formID string, answers map[string]any, respondentID string) (formport.Response, error) {
	if err := f.enter(ctx, "submit_response", formID, respondentID); err != nil {
		return formport.Response{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.respondedLocked(formID, respondentID) {
		return formport.Response{}, formport.NewFormError("submit_response", formport.CodeAlreadyResponded, fmt.Errorf("respondent already has a response for this form"))
	}
	resp := formport.Response{
		ID:           fmt.Sprintf("resp-%d", len(f.responses[formID])+1),
		FormID:       formID,
		RespondentID: respondentID,
		Answers:      answers,
		SubmittedAt:  time.Now(),
	}
	f.recordResponseLocked(resp)
	return resp, nil
}

// MarkResponded records a submission without going through SubmitFormResponse.
func (f *FakeService) MarkResponded(formID, respondentID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recordResponseLocked(formport.Response{FormID: formID, RespondentID: respondentID, SubmittedAt: time.Now()})
}

// Fail makes the next call for op return err.
func (f *FakeService) Fail(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext == nil {
		f.failNext = make(map[string]error)
	}
	f.failNext[op] = err
}

// FailForm makes every call touching formID return err until cleared with a nil err.
func (f *FakeService) FailForm(formID string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failFor == nil {
		f.failFor = make(map[string]error)
	}
	if err == nil {
		delete(f.failFor, formID)
		return
	}
	f.failFor[formID] = err
}

// Delay makes calls touching formID block for d (or until the context ends).
func (f *FakeService) Delay(formID string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delay == nil {
		f.delay = make(map[string]time.Duration)
	}
	f.delay[formID] = d
}

// CallCount returns how many calls for op touched formID ("" matches any form).
func (f *FakeService) CallCount(op, formID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.Calls {
		if c.Op == op && (formID == "" || c.FormID == formID) {
			n++
		}
	}
	return n
}

func (f *FakeService) enter(ctx context.Context, op, formID, respondentID string) error {
	f.mu.Lock()
	f.Calls = append(f.Calls, Call{Op: op, FormID: formID, RespondentID: respondentID})
	wait := f.delay[formID]
	f.mu.Unlock()

	if wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}
	if err := ctx.Err(); err != nil {
		code := formport.CodeNetwork
		if err == context.DeadlineExceeded {
			code = formport.CodeTimeout
		}
		return formport.NewFormError(op, code, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failNext[op]; ok {
		delete(f.failNext, op)
		return wrap(op, err)
	}
	if err, ok := f.failFor[formID]; ok && formID != "" {
		return wrap(op, err)
	}
	return nil
}

func (f *FakeService) findLocked(formID string) (formport.Form, bool) {
	for _, form := range f.Forms {
		if form.ID == formID {
			return form, true
		}
	}
	return formport.Form{}, false
}

func (f *FakeService) respondedLocked(formID, respondentID string) bool {
	for _, r := range f.responses[formID] {
		if r.RespondentID == respondentID {
			return true
		}
	}
	return false
}

func (f *FakeService) recordResponseLocked(resp formport.Response) {
	if f.responses == nil {
		f.responses = make(map[string][]formport.Response)
	}
	f.responses[resp.FormID] = append(f.responses[resp.FormID], resp)
}

func wrap(op string, err error) error {
	if _, ok := err.(*formport.FormError); ok {
		return err
	}
	return formport.NewFormError(op, "fake_error", err)
}

// Helpers to script common FormError cases in tests.
func Unauthenticated(op string) *formport.FormError {
	return formport.NewFormError(op, formport.CodeUnauthenticated, fmt.Errorf("not authenticated"))
}

func ServerError(op string) *formport.FormError {
	return &formport.FormError{Op: op, Code: formport.CodeServer, Status: 503, Wrapped: fmt.Errorf("service unavailable")}
}

func NetworkError(op string) *formport.FormError {
	return formport.NewFormError(op, formport.CodeNetwork, fmt.Errorf("connection reset by peer"))
}

func AlreadyResponded(op string) *formport.FormError {
	return formport.NewFormError(op, formport.CodeAlreadyResponded, fmt.Errorf("respondent already has a response for this form"))
}
