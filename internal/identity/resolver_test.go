package identity

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"llmsecrets/internal/storage"
	"llmsecrets/pkg/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestResolver(t *testing.T) (*Resolver, *storage.Store) {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "id.sqlite3"), "", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewResolver(s, nil), s
}

func TestResolveAPIKey(t *testing.T) {
	r, s := newTestResolver(t)
	ctx := context.Background()
	require.NoError(t, s.SetString(ctx, KeyAPIKey, "sk-0123456789"))

	id, err := r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.APIKeyIdentity{Key: "sk-0123456789"}, id)
}

func TestResolveShortKeyFallsBackToAnonymous(t *testing.T) {
	r, s := newTestResolver(t)
	ctx := context.Background()
	require.NoError(t, s.SetString(ctx, KeyAPIKey, "short"))

	id, err := r.Resolve(ctx)
	require.NoError(t, err)
	anon, ok := id.(domain.AnonymousIdentity)
	require.True(t, ok)
	_, err = uuid.Parse(anon.DeviceID)
	assert.NoError(t, err)
	assert.Equal(t, 0, anon.UsageCount)
}

func TestDeviceIDIsStable(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	first, err := r.DeviceID(ctx)
	require.NoError(t, err)
	second, err := r.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestDeviceIDHonoursLegacyKey(t *testing.T) {
	r, s := newTestResolver(t)
	ctx := context.Background()
	require.NoError(t, s.SetString(ctx, KeyLegacyUserID, "legacy-device"))

	id, err := r.DeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "legacy-device", id)
}

func TestIncrementUsageIsMonotonic(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	for want := 1; want <= 6; want++ {
		got, err := r.IncrementUsage(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	id, err := r.Resolve(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, id.(domain.AnonymousIdentity).UsageCount)
}

func TestSetAndClearAPIKey(t *testing.T) {
	r, _ := newTestResolver(t)
	ctx := context.Background()

	assert.Error(t, r.SetAPIKey(ctx, "0123456789"))
	require.NoError(t, r.SetAPIKey(ctx, "01234567890"))
	id, err := r.Resolve(ctx)
	require.NoError(t, err)
	assert.IsType(t, domain.APIKeyIdentity{}, id)

	require.NoError(t, r.ClearAPIKey(ctx))
	id, err = r.Resolve(ctx)
	require.NoError(t, err)
	assert.IsType(t, domain.AnonymousIdentity{}, id)
}

type brokenStore struct{ Store }

func (brokenStore) GetString(context.Context, string) (string, bool, error) {
	return "", false, errors.New("disk gone")
}

func TestResolveStoreFailure(t *testing.T) {
	r := NewResolver(brokenStore{}, nil)
	_, err := r.Resolve(context.Background())
	assert.ErrorIs(t, err, domain.ErrIdentity)
}
