package availability

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/dkalashnik/survey-rewards-bot/pkg/ports/formport"
	"github.com/dkalashnik/survey-rewards-bot/pkg/probe"
	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

// ErrCatalogUnavailable wraps every catalog fetch failure. Callers own retry and backoff.
var ErrCatalogUnavailable = errors.New("survey catalog unavailable")

const (
	DefaultCatalogTimeout      = 10 * time.Second
	DefaultMaxConcurrentProbes = 4
)

// CompletionStore is the subset of completion.Store the resolver reads and backfills.
type CompletionStore interface {
	IsCompleted(ctx context.Context, userID survey.UserID, surveyID string) bool
	MarkCompleted(ctx context.Context, userID survey.UserID, surveyIDs ...string)
}

// GroupRegistry is the subset of equivalence.Registry the resolver needs.
type GroupRegistry interface {
	GroupOf(surveyID string) (string, bool)
	ShouldHideDueToGroup(ctx context.Context, userID survey.UserID, surveyID string) bool
	MarkGroupCompleted(ctx context.Context, userID survey.UserID, groupID string)
}

// StatusProbe is the remote check; implementations never fail.
type StatusProbe interface {
	Probe(ctx context.Context, userID survey.UserID, surveyID string) probe.Result
}

// Logger defines the minimal logging interface used by the resolver.
type Logger interface {
	Printf(format string, args ...any)
}

// Options tunes a Resolver. Zero values take the package defaults.
type Options struct {
	CatalogTimeout      time.Duration
	MaxConcurrentProbes int
	DefaultLanguage     survey.Language
	Rewards             survey.Rewards
	// BackfillRemoteCompletions writes Completed probe verdicts into the
	// completion store so later passes skip the network call.
	BackfillRemoteCompletions bool
	Now                       func() time.Time
}

// Resolver is the AvailabilityResolver.
type Resolver struct {
	forms  formport.FormService
	store  CompletionStore
	groups GroupRegistry
	prober StatusProbe
	opts   Options
	logger Logger
	flight singleflight.Group
}

func New(forms formport.FormService, store CompletionStore, groups GroupRegistry, prober StatusProbe, opts Options, logger Logger) *Resolver {
	if opts.CatalogTimeout <= 0 {
		opts.CatalogTimeout = DefaultCatalogTimeout
	}
	if opts.MaxConcurrentProbes <= 0 {
		opts.MaxConcurrentProbes = DefaultMaxConcurrentProbes
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = survey.DefaultLanguage
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Resolver{
		forms:  forms,
		store:  store,
		groups: groups,
		prober: prober,
		opts:   opts,
		logger: logger,
	}
}

// Resolve returns the surveys userID may take in lang, in catalog order.
// Concurrent calls for the same user and language share one pass.
func (r *Resolver) Resolve(ctx context.Context, userID survey.UserID, lang survey.Language) ([]survey.ResolvedSurvey, error) {
	lang = survey.NormalizeLanguage(string(lang), r.opts.DefaultLanguage)
	key := string(userID) + "|" + string(lang)

	// The shared pass must not die with whichever caller happened to start it.
	shared := context.WithoutCancel(ctx)
	ch := r.flight.DoChan(key, func() (any, error) {
		return r.resolve(shared, userID, lang)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return []survey.ResolvedSurvey{}, res.Err
		}
		if res.Shared {
			r.logger.Printf("[Resolve] user %s lang %s joined an in-flight pass", userID, lang)
		}
		// A joined pass may predate a completion recorded since it started.
		list := res.Val.([]survey.ResolvedSurvey)
		out := make([]survey.ResolvedSurvey, 0, len(list))
		for _, s := range list {
			if r.store.IsCompleted(ctx, userID, s.ID) || r.groups.ShouldHideDueToGroup(ctx, userID, s.ID) {
				continue
			}
			out = append(out, s)
		}
		return out, nil
	case <-ctx.Done():
		return []survey.ResolvedSurvey{}, ctx.Err()
	}
}

type passStats struct {
	hiddenLocal   int
	hiddenGroup   int
	hiddenRemote  atomic.Int32
	indeterminate atomic.Int32
}

func (r *Resolver) resolve(ctx context.Context, userID survey.UserID, lang survey.Language) ([]survey.ResolvedSurvey, error) {
	pass := uuid.NewString()[:8]

	catalogCtx, cancel := context.WithTimeout(ctx, r.opts.CatalogTimeout)
	forms, err := r.forms.ListForms(catalogCtx)
	cancel()
	if err != nil {
		r.logger.Printf("[Resolve] pass=%s user=%s lang=%s catalog fetch failed: %v", pass, userID, lang, err)
		return []survey.ResolvedSurvey{}, fmt.Errorf("%w: %w", ErrCatalogUnavailable, err)
	}

	var stats passStats
	candidates := make([]survey.Survey, 0, len(forms))
	for _, form := range forms {
		s := toSurvey(form)
		if s.DetectedLanguage(r.opts.DefaultLanguage) != lang {
			continue
		}
		if r.store.IsCompleted(ctx, userID, s.ID) {
			stats.hiddenLocal++
			continue
		}
		if r.groups.ShouldHideDueToGroup(ctx, userID, s.ID) {
			stats.hiddenGroup++
			continue
		}
		candidates = append(candidates, s)
	}

	keep := make([]bool, len(candidates))
	var g errgroup.Group
	g.SetLimit(r.opts.MaxConcurrentProbes)
	for i := range candidates {
		i := i
		g.Go(func() error {
			res := r.prober.Probe(ctx, userID, candidates[i].ID)
			switch {
			case res.Hides():
				stats.hiddenRemote.Add(1)
				r.backfill(ctx, userID, candidates[i].ID)
			case res.Verdict == probe.VerdictIndeterminate:
				stats.indeterminate.Add(1)
				keep[i] = true
			default:
				keep[i] = true
			}
			return nil
		})
	}
	_ = g.Wait()

	now := r.opts.Now()
	out := make([]survey.ResolvedSurvey, 0, len(candidates))
	for i, s := range candidates {
		if !keep[i] {
			continue
		}
		out = append(out, survey.ResolvedSurvey{
			Survey:      s,
			DisplayInfo: survey.Describe(s, lang, r.opts.Rewards, now),
		})
	}

	r.logger.Printf("[Resolve] pass=%s user=%s lang=%s catalog=%d hidden_local=%d hidden_group=%d hidden_remote=%d indeterminate=%d offered=%d",
		pass, userID, lang, len(forms), stats.hiddenLocal, stats.hiddenGroup, stats.hiddenRemote.Load(), stats.indeterminate.Load(), len(out))
	return out, nil
}

func (r *Resolver) backfill(ctx context.Context, userID survey.UserID, surveyID string) {
	if !r.opts.BackfillRemoteCompletions || userID.IsZero() {
		return
	}
	r.store.MarkCompleted(ctx, userID, surveyID)
	if groupID, ok := r.groups.GroupOf(surveyID); ok {
		r.groups.MarkGroupCompleted(ctx, userID, groupID)
	}
}

func toSurvey(form formport.Form) survey.Survey {
	return survey.Survey{
		ID:          form.ID,
		DisplayName: form.Name,
		Language:    survey.Language(form.Language),
		Metadata: survey.Metadata{
			Status:          form.Status,
			SubmissionCount: form.SubmissionCount,
			IsClosed:        form.IsClosed,
			CreatedAt:       form.CreatedAt,
			UpdatedAt:       form.UpdatedAt,
		},
	}
}
