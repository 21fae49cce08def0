package background

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/fleurease/fleurease-api/internal/cache"
	"github.com/fleurease/fleurease-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccounts struct {
	mu        sync.Mutex
	accounts  map[string]*models.Account
	deleteErr map[string]error
	cutoff    time.Time
}

func newFakeAccounts(accounts ...*models.Account) *fakeAccounts {
	f := &fakeAccounts{accounts: map[string]*models.Account{}, deleteErr: map[string]error{}}
	for _, a := range accounts {
		f.accounts[a.ID] = a
	}
	return f
}

func (f *fakeAccounts) ListStaleUnverified(_ context.Context, cutoff time.Time, limit int) ([]*models.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cutoff = cutoff
	var out []*models.Account
	for _, a := range f.accounts {
		if a.IsVerified || a.IsSocial() || a.VerificationTokenExpiresAt == nil {
			continue
		}
		if a.VerificationTokenExpiresAt.Before(cutoff) && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeAccounts) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.deleteErr[id]; err != nil {
		return err
	}
	if _, ok := f.accounts[id]; !ok {
		return models.ErrNotFound
	}
	delete(f.accounts, id)
	return nil
}

func (f *fakeAccounts) has(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.accounts[id]
	return ok
}

type fakeAvatars struct {
	deleted []string
	err     error
}

func (f *fakeAvatars) Delete(_ context.Context, publicID string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, publicID)
	return nil
}

var testNow = time.Date(2024, 10, 10, 12, 0, 0, 0, time.UTC)

func newManager(accounts *fakeAccounts, avatars *fakeAvatars, q cache.OrphanQueue) *CleanupManager {
	cm := NewCleanupManager(accounts, avatars, q, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), CleanupConfig{
		Interval:    time.Hour,
		GracePeriod: 24 * time.Hour,
		MaxAttempts: 3,
	})
	cm.now = func() time.Time { return testNow }
	return cm
}

func TestDrainOrphans_DeletesAccountAndAvatar(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(&models.Account{ID: "a1"})
	avatars := &fakeAvatars{}
	q := cache.NewMemoryOrphanQueue()
	require.NoError(t, q.Push(ctx, cache.Orphan{AccountID: "a1", AvatarPublicID: "avatars/a1"}))
	require.NoError(t, q.Push(ctx, cache.Orphan{AvatarPublicID: "avatars/lonely"}))

	newManager(accounts, avatars, q).RunOnce(ctx)

	assert.False(t, accounts.has("a1"))
	assert.Equal(t, []string{"avatars/a1", "avatars/lonely"}, avatars.deleted)
	n, _ := q.Len(ctx)
	assert.Zero(t, n)
}

func TestDrainOrphans_AlreadyDeletedAccountIsSuccess(t *testing.T) {
	ctx := context.Background()
	q := cache.NewMemoryOrphanQueue()
	require.NoError(t, q.Push(ctx, cache.Orphan{AccountID: "gone"}))

	newManager(newFakeAccounts(), &fakeAvatars{}, q).RunOnce(ctx)

	n, _ := q.Len(ctx)
	assert.Zero(t, n)
}

func TestDrainOrphans_RequeuesUntilMaxAttempts(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(&models.Account{ID: "a1"})
	accounts.deleteErr["a1"] = errors.New("db down")
	q := cache.NewMemoryOrphanQueue()
	require.NoError(t, q.Push(ctx, cache.Orphan{AccountID: "a1"}))
	cm := newManager(accounts, &fakeAvatars{}, q)

	cm.RunOnce(ctx)
	o, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, o.Attempts)
	require.NoError(t, q.Push(ctx, o))

	cm.RunOnce(ctx)
	cm.RunOnce(ctx)

	n, _ := q.Len(ctx)
	assert.Zero(t, n, "entry is dropped after MaxAttempts")
	assert.True(t, accounts.has("a1"))
}

func TestDrainOrphans_AvatarFailureRetriesOnlyImage(t *testing.T) {
	ctx := context.Background()
	accounts := newFakeAccounts(&models.Account{ID: "a1"})
	avatars := &fakeAvatars{err: errors.New("minio down")}
	q := cache.NewMemoryOrphanQueue()
	require.NoError(t, q.Push(ctx, cache.Orphan{AccountID: "a1", AvatarPublicID: "avatars/a1"}))

	newManager(accounts, avatars, q).RunOnce(ctx)

	assert.False(t, accounts.has("a1"))
	o, ok, err := q.Pop(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Empty(t, o.AccountID)
	assert.Equal(t, "avatars/a1", o.AvatarPublicID)
}

func TestSweepStale(t *testing.T) {
	ctx := context.Background()
	longAgo := testNow.Add(-48 * time.Hour)
	recently := testNow.Add(-time.Hour)
	accounts := newFakeAccounts(
		&models.Account{ID: "stale", VerificationTokenExpiresAt: &longAgo, Avatar: models.Avatar{PublicID: "avatars/stale"}},
		&models.Account{ID: "fresh", VerificationTokenExpiresAt: &recently},
		&models.Account{ID: "verified", IsVerified: true, VerificationTokenExpiresAt: &longAgo},
	)
	avatars := &fakeAvatars{}

	newManager(accounts, avatars, cache.NewMemoryOrphanQueue()).RunOnce(ctx)

	assert.Equal(t, testNow.Add(-24*time.Hour), accounts.cutoff)
	assert.False(t, accounts.has("stale"))
	assert.True(t, accounts.has("fresh"))
	assert.True(t, accounts.has("verified"))
	assert.Equal(t, []string{"avatars/stale"}, avatars.deleted)
}

func TestSweepStale_KeepsRowWhenAvatarDeleteFails(t *testing.T) {
	ctx := context.Background()
	longAgo := testNow.Add(-48 * time.Hour)
	accounts := newFakeAccounts(
		&models.Account{ID: "stale", VerificationTokenExpiresAt: &longAgo, Avatar: models.Avatar{PublicID: "avatars/stale"}},
	)

	newManager(accounts, &fakeAvatars{err: errors.New("minio down")}, cache.NewMemoryOrphanQueue()).RunOnce(ctx)

	assert.True(t, accounts.has("stale"))
}

func TestStartStop(t *testing.T) {
	cm := newManager(newFakeAccounts(), &fakeAvatars{}, cache.NewMemoryOrphanQueue())
	done := make(chan struct{})
	go func() {
		cm.Start(context.Background())
		close(done)
	}()

	cm.Stop()
	cm.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup manager did not stop")
	}
}
