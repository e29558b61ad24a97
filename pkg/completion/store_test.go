package completion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkalashnik/survey-rewards-bot/pkg/survey"
)

func newMemoryStore(t *testing.T) (*Store, *MemoryBackend) {
	t.Helper()
	backend := NewMemoryBackend()
	return NewStore(backend, testLogger{t}), backend
}

func TestMarkCompletedIsIdempotent(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()

	store.MarkCompleted(ctx, "u1", "s1")
	store.MarkCompleted(ctx, "u1", "s1")

	assert.True(t, store.IsCompleted(ctx, "u1", "s1"))
	assert.Equal(t, []string{"s1"}, store.ListCompleted(ctx, "u1"))
}

func TestMarkCompletedPersistsNormalizedOrderedList(t *testing.T) {
	store, backend := newMemoryStore(t)
	ctx := context.Background()

	store.MarkCompleted(ctx, "u1", "b", " a ", "", "b")
	store.MarkCompleted(ctx, "u1", "c", "a")

	raw, err := backend.Load(ctx, Key("u1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a", "c"}, raw)
}

func TestCompletionsAreNamespacedByUser(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()

	store.MarkCompleted(ctx, "111", "s1")

	assert.True(t, store.IsCompleted(ctx, "111", "s1"))
	assert.False(t, store.IsCompleted(ctx, "222", "s1"))
	assert.Equal(t, "completed_surveys:111", Key("111"))
}

func TestMissingIdentityNeverHidesOrMarks(t *testing.T) {
	store, backend := newMemoryStore(t)
	ctx := context.Background()

	store.MarkCompleted(ctx, "", "s1")

	assert.False(t, store.IsCompleted(ctx, "", "s1"))
	assert.Empty(t, store.ListCompleted(ctx, ""))
	raw, _ := backend.Load(ctx, Key(""))
	assert.Empty(t, raw)
}

func TestUnmarkCompletedAndClearAll(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()
	user := survey.UserID("u1")

	store.MarkCompleted(ctx, user, "a", "b", "c")
	store.UnmarkCompleted(ctx, user, "b", "missing")
	store.UnmarkCompleted(ctx, user, "b")

	assert.Equal(t, []string{"a", "c"}, store.ListCompleted(ctx, user))

	store.ClearAll(ctx, user)
	assert.Empty(t, store.ListCompleted(ctx, user))
	assert.False(t, store.IsCompleted(ctx, user, "a"))
}

func TestListCompletedReturnsSnapshot(t *testing.T) {
	store, _ := newMemoryStore(t)
	ctx := context.Background()
	store.MarkCompleted(ctx, "u1", "a")

	snapshot := store.ListCompleted(ctx, "u1")
	snapshot[0] = "mutated"

	assert.True(t, store.IsCompleted(ctx, "u1", "a"))
}

func TestStorageFaultsAreSwallowed(t *testing.T) {
	backend := &brokenBackend{err: errors.New("quota exceeded")}
	store := NewStore(backend, testLogger{t})
	ctx := context.Background()

	assert.NotPanics(t, func() {
		store.MarkCompleted(ctx, "u1", "s1")
		store.UnmarkCompleted(ctx, "u1", "s1")
		store.ClearAll(ctx, "u1")
	})
	assert.False(t, store.IsCompleted(ctx, "u1", "s1"))
	assert.Empty(t, store.ListCompleted(ctx, "u1"))
	assert.Zero(t, backend.saves, "no write should follow a failed read")
}

func TestFailedWriteLeavesPreviousState(t *testing.T) {
	backend := &flakyBackend{MemoryBackend: NewMemoryBackend()}
	store := NewStore(backend, testLogger{t})
	ctx := context.Background()

	store.MarkCompleted(ctx, "u1", "a")
	backend.failSaves = true
	store.MarkCompleted(ctx, "u1", "b")

	assert.Equal(t, []string{"a"}, store.ListCompleted(ctx, "u1"))
}

type brokenBackend struct {
	err   error
	saves int
}

func (b *brokenBackend) Load(context.Context, string) ([]string, error) { return nil, b.err }
func (b *brokenBackend) Save(context.Context, string, []string) error {
	b.saves++
	return b.err
}
func (b *brokenBackend) Delete(context.Context, string) error { return b.err }

type flakyBackend struct {
	*MemoryBackend
	failSaves bool
}

func (f *flakyBackend) Save(ctx context.Context, key string, ids []string) error {
	if f.failSaves {
		return errors.New("storage disabled")
	}
	return f.MemoryBackend.Save(ctx, key, ids)
}

type testLogger struct {
	t *testing.T
}

func (l testLogger) Printf(format string, args ...any) {
	l.t.Logf(format, args...)
}
