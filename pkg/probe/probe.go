package probe

import (
	"context"
	"log"
	"time"

	"github.com/dkalashnik/survey-rewards-bot/pkg/ports/formport"
	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

// Package probe asks the form service whether a survey is still takeable and
// classifies the answer. Only VerdictCompleted may hide a survey.

const DefaultTimeout = 5 * time.Second

type Verdict int

const (
	VerdictAvailable Verdict = iota
	VerdictCompleted
	VerdictIndeterminate
)

func (v Verdict) String() string {
	switch v {
	case VerdictAvailable:
		return "available"
	case VerdictCompleted:
		return "completed"
	case VerdictIndeterminate:
		return "indeterminate"
	default:
		return "unknown"
	}
}

// Cause explains an indeterminate verdict.
type Cause int

const (
	CauseNone Cause = iota
	CauseAuth
	CauseNetwork
	CauseServer
)

func (c Cause) String() string {
	switch c {
	case CauseNone:
		return "none"
	case CauseAuth:
		return "auth_error"
	case CauseNetwork:
		return "network_error"
	case CauseServer:
		return "server_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of one probe. Err carries the swallowed transport error, if any.
type Result struct {
	Verdict Verdict
	Cause   Cause
	Err     error
}

// Hides reports whether the result is allowed to hide the survey.
func (r Result) Hides() bool {
	return r.Verdict == VerdictCompleted
}

func Available() Result { return Result{Verdict: VerdictAvailable} }
func Completed() Result { return Result{Verdict: VerdictCompleted} }

func Indeterminate(cause Cause, err error) Result {
	return Result{Verdict: VerdictIndeterminate, Cause: cause, Err: err}
}

// Classify maps a GetFormByID error onto a Result. A nil error means Available.
func Classify(err error) Result {
	if err == nil {
		return Available()
	}
	switch formport.CodeOf(err) {
	case formport.CodeAlreadyResponded:
		return Completed()
	case formport.CodeUnauthenticated:
		return Indeterminate(CauseAuth, err)
	case formport.CodeNetwork, formport.CodeTimeout:
		return Indeterminate(CauseNetwork, err)
	default:
		return Indeterminate(CauseServer, err)
	}
}

// Logger defines the minimal logging interface used by the prober.
type Logger interface {
	Printf(format string, args ...any)
}

// Prober is the RemoteStatusProbe.
type Prober struct {
	forms   formport.FormService
	timeout time.Duration
	logger  Logger
}

// New builds a Prober. A non-positive timeout falls back to DefaultTimeout.
func New(forms formport.FormService, timeout time.Duration, logger Logger) *Prober {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Prober{forms: forms, timeout: timeout, logger: logger}
}

// Probe fetches surveyID on behalf of userID and classifies the outcome. It never fails.
func (p *Prober) Probe(ctx context.Context, userID survey.UserID, surveyID string) Result {
	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	_, err := p.forms.GetFormByID(probeCtx, surveyID, string(userID))
	if err != nil && formport.CodeOf(err) == "" && probeCtx.Err() != nil {
		// The adapter returned an untyped error because our deadline fired.
		err = formport.NewFormError("get_form", formport.CodeTimeout, err)
	}
	res := Classify(err)
	if res.Verdict == VerdictIndeterminate {
		p.logger.Printf("[Probe] survey %s for user %s is indeterminate (%s), keeping it: %v", surveyID, userID, res.Cause, res.Err)
	}
	return res
}
