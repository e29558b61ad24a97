package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/dkalashnik/survey-rewards-bot/pkg/ports/formport"
	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

const (
	DefaultRefreshDelay   = 100 * time.Millisecond
	DefaultRefreshTimeout = 30 * time.Second
)

var (
	// ErrAlreadyCompleted is returned by Submit when the form service reports an
	// existing response. The completion is recorded locally anyway.
	ErrAlreadyCompleted = errors.New("survey already completed")
	ErrNoIdentity       = errors.New("respondent identity is required")
)

type CompletionStore interface {
	IsCompleted(ctx context.Context, userID survey.UserID, surveyID string) bool
	MarkCompleted(ctx context.Context, userID survey.UserID, surveyIDs ...string)
	UnmarkCompleted(ctx context.Context, userID survey.UserID, surveyIDs ...string)
}

type GroupRegistry interface {
	GroupOf(surveyID string) (string, bool)
	MarkGroupCompleted(ctx context.Context, userID survey.UserID, groupID string)
	UnmarkGroupCompleted(ctx context.Context, userID survey.UserID, groupID string)
}

type Resolver interface {
	Resolve(ctx context.Context, userID survey.UserID, lang survey.Language) ([]survey.ResolvedSurvey, error)
}

// RefreshFunc receives the outcome of a delayed re-resolution.
type RefreshFunc func(ctx context.Context, userID survey.UserID, lang survey.Language, surveys []survey.ResolvedSurvey, err error)

type Logger interface {
	Printf(format string, args ...any)
}

type Options struct {
	RefreshDelay   time.Duration
	RefreshTimeout time.Duration
}

// Coordinator is the CompletionCoordinator.
type Coordinator struct {
	store    CompletionStore
	groups   GroupRegistry
	forms    formport.FormService
	resolver Resolver
	opts     Options
	logger   Logger

	mu        sync.Mutex
	listeners []RefreshFunc
	pending   map[string]*pendingRefresh
	closed    bool
	wg        sync.WaitGroup
}

type pendingRefresh struct {
	timer *time.Timer
}

func New(store CompletionStore, groups GroupRegistry, forms formport.FormService, resolver Resolver, opts Options, logger Logger) *Coordinator {
	if opts.RefreshDelay <= 0 {
		opts.RefreshDelay = DefaultRefreshDelay
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Coordinator{
		store:    store,
		groups:   groups,
		forms:    forms,
		resolver: resolver,
		opts:     opts,
		logger:   logger,
		pending:  make(map[string]*pendingRefresh),
	}
}

// OnRefresh registers fn to receive delayed re-resolution results.
func (c *Coordinator) OnRefresh(fn RefreshFunc) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// State returns the lifecycle state of surveyID for userID.
func (c *Coordinator) State(ctx context.Context, userID survey.UserID, surveyID string) string {
	if c.store.IsCompleted(ctx, userID, surveyID) {
		return StateCompleted
	}
	return StateAvailable
}

// OnSubmitted records that userID finished surveyID, propagates the completion
// to the survey's group and schedules a delayed re-resolution for lang.
func (c *Coordinator) OnSubmitted(ctx context.Context, userID survey.UserID, surveyID string, lang survey.Language) {
	if userID.IsZero() {
		c.logger.Printf("[OnSubmitted] survey %s submitted without identity, nothing recorded", surveyID)
		return
	}

	lifecycle := NewLifecycleFSM(c.State(ctx, userID, surveyID), func(ctx context.Context) {
		c.markCompleted(ctx, userID, surveyID)
	}, nil)

	if err := lifecycle.Event(ctx, EventSubmit); err != nil {
		if !isInvalidEvent(err) {
			c.logger.Printf("[OnSubmitted] lifecycle error for user %s survey %s: %v", userID, surveyID, err)
		}
		// Already completed: repeat the writes so a partial group propagation heals.
		c.markCompleted(ctx, userID, surveyID)
	}

	c.scheduleRefresh(userID, lang)
}

func (c *Coordinator) markCompleted(ctx context.Context, userID survey.UserID, surveyID string) {
	c.store.MarkCompleted(ctx, userID, surveyID)
	if groupID, ok := c.groups.GroupOf(surveyID); ok {
		c.groups.MarkGroupCompleted(ctx, userID, groupID)
		c.logger.Printf("[OnSubmitted] user %s completed %s, propagated to group %s", userID, surveyID, groupID)
		return
	}
	c.logger.Printf("[OnSubmitted] user %s completed %s", userID, surveyID)
}

// Submit sends answers to the form service and records the completion. A
// duplicate submission is recorded too and reported as ErrAlreadyCompleted.
func (c *Coordinator) Submit(ctx context.Context, userID survey.UserID, surveyID string, answers map[string]any, lang survey.Language) (formport.Response, error) {
	if userID.IsZero() {
		return formport.Response{}, ErrNoIdentity
	}
	resp, err := c.forms.SubmitFormResponse(ctx, surveyID, answers, string(userID))
	switch {
	case err == nil:
		c.OnSubmitted(ctx, userID, surveyID, lang)
		return resp, nil
	case formport.IsCode(err, formport.CodeAlreadyResponded):
		c.OnSubmitted(ctx, userID, surveyID, lang)
		return formport.Response{}, fmt.Errorf("%w: %w", ErrAlreadyCompleted, err)
	default:
		c.logger.Printf("[Submit] user %s survey %s: %v", userID, surveyID, err)
		return formport.Response{}, err
	}
}

// Reset returns surveyID to available for userID. Diagnostics only.
func (c *Coordinator) Reset(ctx context.Context, userID survey.UserID, surveyID string) {
	lifecycle := NewLifecycleFSM(c.State(ctx, userID, surveyID), nil, func(ctx context.Context) {
		c.store.UnmarkCompleted(ctx, userID, surveyID)
		c.logger.Printf("[Reset] user %s survey %s reset to available", userID, surveyID)
	})
	if err := lifecycle.Event(ctx, EventReset); err != nil && !isInvalidEvent(err) {
		c.logger.Printf("[Reset] lifecycle error for user %s survey %s: %v", userID, surveyID, err)
	}
}

// ResetGroup removes every member of groupID from userID's completions. Diagnostics only.
func (c *Coordinator) ResetGroup(ctx context.Context, userID survey.UserID, groupID string) {
	c.groups.UnmarkGroupCompleted(ctx, userID, groupID)
	c.logger.Printf("[ResetGroup] user %s group %s reset to available", userID, groupID)
}

// scheduleRefresh re-resolves after the refresh delay. A newer submission for
// the same user and language restarts the timer.
func (c *Coordinator) scheduleRefresh(userID survey.UserID, lang survey.Language) {
	if c.resolver == nil {
		return
	}
	key := string(userID) + "|" + string(lang)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if prev, ok := c.pending[key]; ok && prev.timer.Stop() {
		c.wg.Done()
	}

	entry := &pendingRefresh{}
	c.wg.Add(1)
	entry.timer = time.AfterFunc(c.opts.RefreshDelay, func() {
		defer c.wg.Done()
		c.mu.Lock()
		if c.pending[key] == entry {
			delete(c.pending, key)
		}
		listeners := append([]RefreshFunc(nil), c.listeners...)
		c.mu.Unlock()

		c.refresh(userID, lang, listeners)
	})
	c.pending[key] = entry
}

func (c *Coordinator) refresh(userID survey.UserID, lang survey.Language, listeners []RefreshFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.RefreshTimeout)
	defer cancel()

	surveys, err := c.resolver.Resolve(ctx, userID, lang)
	if err != nil {
		c.logger.Printf("[refresh] re-resolve for user %s lang %s failed: %v", userID, lang, err)
	}
	for _, fn := range listeners {
		fn(ctx, userID, lang, surveys, err)
	}
}

// Close cancels pending refreshes and waits for running ones.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	for key, entry := range c.pending {
		if entry.timer.Stop() {
			c.wg.Done()
		}
		delete(c.pending, key)
	}
	c.mu.Unlock()
	c.wg.Wait()
}
