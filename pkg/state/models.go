package state

import (
	"context"
	"sync"

	"github.com/looplab/fsm"

	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

type UserState struct {
	UserID         int64
	ChatID         int64
	UserName       string
	Language       survey.Language
	LanguageChosen bool
	MenuFSM        *fsm.FSM
	// LastMessageID is the message currently showing the survey list.
	LastMessageID int
	ListOffset    int
	Surveys       []survey.ResolvedSurvey
	Mu            sync.Mutex

	resolveGen    uint64
	cancelResolve context.CancelFunc
}

// Identity returns the respondent identity used by the availability engine.
func (u *UserState) Identity() survey.UserID {
	return survey.UserIDFromTelegram(u.UserID)
}

// BeginResolve supersedes any resolve in flight and returns the context and
// generation for a new one. The caller must hold Mu.
func (u *UserState) BeginResolve(parent context.Context) (context.Context, uint64) {
	if u.cancelResolve != nil {
		u.cancelResolve()
	}
	ctx, cancel := context.WithCancel(parent)
	u.resolveGen++
	u.cancelResolve = cancel
	return ctx, u.resolveGen
}

// FinishResolve reports whether gen is still the latest resolve and releases
// its context if so. Results of a superseded resolve must be dropped. The
// caller must hold Mu.
func (u *UserState) FinishResolve(gen uint64) bool {
	if gen != u.resolveGen {
		return false
	}
	if u.cancelResolve != nil {
		u.cancelResolve()
		u.cancelResolve = nil
	}
	return true
}

// CancelResolve abandons any resolve in flight. The caller must hold Mu.
func (u *UserState) CancelResolve() {
	u.resolveGen++
	if u.cancelResolve != nil {
		u.cancelResolve()
		u.cancelResolve = nil
	}
}
