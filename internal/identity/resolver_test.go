package identity

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kienguyen7815/PMTweb-be-sub000/internal/auth"
	"github.com/kienguyen7815/PMTweb-be-sub000/internal/authz"
)

var testSecret = []byte("identity-test-secret-at-least-32-bytes!!")

type fakeFinder struct {
	mu    sync.Mutex
	users map[uuid.UUID]User
	err   error
	calls int
}

func (f *fakeFinder) FindIdentity(_ context.Context, id uuid.UUID) (*User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func issue(t *testing.T, id uuid.UUID, ttl time.Duration) string {
	t.Helper()
	tok, err := auth.IssueAccessToken(testSecret, id, ttl)
	require.NoError(t, err)
	return tok
}

func TestResolve_AuthFailures(t *testing.T) {
	t.Parallel()
	known := uuid.New()
	f := &fakeFinder{users: map[uuid.UUID]User{known: {ID: known, Email: "a@example.com", GlobalRole: authz.RoleMember}}}
	r := NewResolver(testSecret, f, nil)
	ctx := context.Background()

	_, err := r.Resolve(ctx, "  ")
	assert.ErrorIs(t, err, ErrMissingCredential)

	_, err = r.Resolve(ctx, "not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	other, err := auth.IssueAccessToken([]byte("some-other-secret-also-32-bytes-long!!"), known, time.Hour)
	require.NoError(t, err)
	_, err = r.Resolve(ctx, other)
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = r.Resolve(ctx, issue(t, known, -time.Minute))
	assert.ErrorIs(t, err, ErrExpiredCredential)

	_, err = r.Resolve(ctx, issue(t, uuid.New(), time.Hour))
	assert.ErrorIs(t, err, ErrUnknownSubject)
	assert.True(t, IsAuthError(err))
}

func TestResolve_StorageErrorIsNotAuthError(t *testing.T) {
	t.Parallel()
	f := &fakeFinder{err: errors.New("connection refused")}
	r := NewResolver(testSecret, f, nil)

	_, err := r.Resolve(context.Background(), issue(t, uuid.New(), time.Hour))
	require.Error(t, err)
	assert.False(t, IsAuthError(err))
	assert.ErrorContains(t, err, "resolve identity")
}

func TestResolve_CacheHitSkipsStore(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	f := &fakeFinder{users: map[uuid.UUID]User{id: {ID: id, Email: "c@example.com", DisplayName: "C", GlobalRole: authz.RoleTeamLead}}}
	r := NewResolver(testSecret, f, NewLRUCache(10, time.Minute))
	tok := issue(t, id, time.Hour)

	u1, err := r.Resolve(context.Background(), tok)
	require.NoError(t, err)
	u2, err := r.Resolve(context.Background(), tok)
	require.NoError(t, err)

	assert.Equal(t, 1, f.calls)
	assert.Equal(t, authz.RoleTeamLead, u2.GlobalRole)

	// Returned values are copies.
	u1.DisplayName = "mutated"
	u3, err := r.Resolve(context.Background(), tok)
	require.NoError(t, err)
	assert.Equal(t, "C", u3.DisplayName)
}

func TestResolve_NopCacheAlwaysQueries(t *testing.T) {
	t.Parallel()
	id := uuid.New()
	f := &fakeFinder{users: map[uuid.UUID]User{id: {ID: id}}}
	r := NewResolver(testSecret, f, NopCache{})
	tok := issue(t, id, time.Hour)
	for i := 0; i < 3; i++ {
		_, err := r.Resolve(context.Background(), tok)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.calls)
}

func TestResolve_ConcurrentUsersDoNotLeak(t *testing.T) {
	t.Parallel()
	f := &fakeFinder{users: make(map[uuid.UUID]User)}
	ids := make([]uuid.UUID, 20)
	for i := range ids {
		ids[i] = uuid.New()
		f.users[ids[i]] = User{ID: ids[i], GlobalRole: authz.AllRoles()[i%len(authz.AllRoles())]}
	}
	r := NewResolver(testSecret, f, NewLRUCache(8, time.Minute))

	toks := make([]string, len(ids))
	for i, id := range ids {
		toks[i] = issue(t, id, time.Hour)
	}

	var wg sync.WaitGroup
	for n := 0; n < 10; n++ {
		for i := range ids {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				u, err := r.Resolve(context.Background(), toks[i])
				if err != nil {
					t.Error(err)
					return
				}
				if u.ID != ids[i] || u.GlobalRole != f.users[ids[i]].GlobalRole {
					t.Errorf("token %d resolved to %s", i, u.ID)
				}
			}(i)
		}
	}
	wg.Wait()
}
