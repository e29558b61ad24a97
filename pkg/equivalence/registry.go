package equivalence

import (
	"context"
	"fmt"
	"strings"

	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

// Group is a set of surveys with interchangeable content, usually one per language.
type Group struct {
	ID      string   `json:"id"`
	Name    string   `json:"name,omitempty"`
	Members []string `json:"members"`
}

// CompletionStore is the subset of completion.Store the registry needs.
type CompletionStore interface {
	IsCompleted(ctx context.Context, userID survey.UserID, surveyID string) bool
	MarkCompleted(ctx context.Context, userID survey.UserID, surveyIDs ...string)
	UnmarkCompleted(ctx context.Context, userID survey.UserID, surveyIDs ...string)
}

// Registry answers group membership questions over an immutable group table.
type Registry struct {
	groups   []Group
	byID     map[string]Group
	memberOf map[string]string
	store    CompletionStore
}

// NewRegistry indexes groups. It fails when a group id repeats, a group is
// empty, or a survey id is listed in more than one group.
func NewRegistry(groups []Group, store CompletionStore) (*Registry, error) {
	r := &Registry{
		groups:   make([]Group, 0, len(groups)),
		byID:     make(map[string]Group, len(groups)),
		memberOf: make(map[string]string),
		store:    store,
	}
	for i, g := range groups {
		id := strings.TrimSpace(g.ID)
		if id == "" {
			return nil, fmt.Errorf("equivalence: group #%d has no id", i+1)
		}
		if _, exists := r.byID[id]; exists {
			return nil, fmt.Errorf("equivalence: duplicate group id '%s'", id)
		}
		members := make([]string, 0, len(g.Members))
		for _, m := range g.Members {
			m = strings.TrimSpace(m)
			if m == "" {
				continue
			}
			if owner, taken := r.memberOf[m]; taken {
				if owner == id {
					continue
				}
				return nil, fmt.Errorf("equivalence: survey '%s' is in groups '%s' and '%s'", m, owner, id)
			}
			r.memberOf[m] = id
			members = append(members, m)
		}
		if len(members) == 0 {
			return nil, fmt.Errorf("equivalence: group '%s' has no members", id)
		}
		group := Group{ID: id, Name: g.Name, Members: members}
		r.byID[id] = group
		r.groups = append(r.groups, group)
	}
	return r, nil
}

// GroupOf returns the group containing surveyID.
func (r *Registry) GroupOf(surveyID string) (string, bool) {
	id, ok := r.memberOf[strings.TrimSpace(surveyID)]
	return id, ok
}

// MembersOf returns the ordered members of groupID, or nil for an unknown group.
func (r *Registry) MembersOf(groupID string) []string {
	g, ok := r.byID[groupID]
	if !ok {
		return nil
	}
	out := make([]string, len(g.Members))
	copy(out, g.Members)
	return out
}

// Groups returns every configured group in configuration order.
func (r *Registry) Groups() []Group {
	out := make([]Group, len(r.groups))
	for i, g := range r.groups {
		out[i] = Group{ID: g.ID, Name: g.Name, Members: r.MembersOf(g.ID)}
	}
	return out
}

// IsGroupCompleted is true when any member of groupID is completed by userID.
func (r *Registry) IsGroupCompleted(ctx context.Context, userID survey.UserID, groupID string) bool {
	for _, member := range r.MembersOf(groupID) {
		if r.store.IsCompleted(ctx, userID, member) {
			return true
		}
	}
	return false
}

// MarkGroupCompleted marks every member of groupID as completed in one write.
func (r *Registry) MarkGroupCompleted(ctx context.Context, userID survey.UserID, groupID string) {
	members := r.MembersOf(groupID)
	if len(members) == 0 {
		return
	}
	r.store.MarkCompleted(ctx, userID, members...)
}

// UnmarkGroupCompleted removes every member of groupID from the user's completions.
func (r *Registry) UnmarkGroupCompleted(ctx context.Context, userID survey.UserID, groupID string) {
	members := r.MembersOf(groupID)
	if len(members) == 0 {
		return
	}
	r.store.UnmarkCompleted(ctx, userID, members...)
}

// ShouldHideDueToGroup is true when surveyID belongs to a group the user already completed.
func (r *Registry) ShouldHideDueToGroup(ctx context.Context, userID survey.UserID, surveyID string) bool {
	groupID, ok := r.GroupOf(surveyID)
	return ok && r.IsGroupCompleted(ctx, userID, groupID)
}
