package command

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
)

type fakeStore struct {
	remoteID   string
	err        error
	fetched    profile.Profile
	registered []profile.Profile
	updated    []profile.Profile
}

func (f *fakeStore) Register(_ context.Context, p profile.Profile) (string, error) {
	f.registered = append(f.registered, p)
	return f.remoteID, f.err
}

func (f *fakeStore) Update(_ context.Context, p profile.Profile) (string, error) {
	f.updated = append(f.updated, p)
	return f.remoteID, f.err
}

func (f *fakeStore) Fetch(_ context.Context, _ int64) (profile.Profile, error) {
	return f.fetched, f.err
}

func fixedIDs(ids ...string) IDGenerator {
	i := 0
	return IDGeneratorFunc(func() shared.PlatformID {
		id := ids[i%len(ids)]
		i++
		return shared.PlatformID(id)
	})
}

func TestRegister_AlwaysGeneratesFreshID(t *testing.T) {
	store := &fakeStore{remoteID: "11111111"}
	s := NewProfileSync(store, fixedIDs("11111111"), nil)

	p := profile.New(1)
	p.PlatformID = "99999999"

	got, err := s.Register(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, shared.PlatformID("11111111"), got.PlatformID)
	require.Len(t, store.registered, 1)
	assert.Equal(t, shared.PlatformID("11111111"), store.registered[0].PlatformID)
}

func TestRegister_InvalidRemoteIDIsDiscarded(t *testing.T) {
	store := &fakeStore{remoteID: "usr-42"}
	s := NewProfileSync(store, fixedIDs("12345678"), nil)

	got, err := s.Register(context.Background(), profile.New(1))
	require.NoError(t, err)
	assert.Equal(t, shared.PlatformID("12345678"), got.PlatformID)
}

func TestRegister_ValidDifferentRemoteIDWins(t *testing.T) {
	store := &fakeStore{remoteID: "876543210"}
	s := NewProfileSync(store, fixedIDs("12345678"), nil)

	got, err := s.Register(context.Background(), profile.New(1))
	require.NoError(t, err)
	assert.Equal(t, shared.PlatformID("876543210"), got.PlatformID)
}

func TestRegister_FailureIsSyncFailure(t *testing.T) {
	store := &fakeStore{err: errors.New("dial tcp: refused")}
	s := NewProfileSync(store, fixedIDs("12345678"), nil)

	_, err := s.Register(context.Background(), profile.New(1))
	assert.ErrorIs(t, err, shared.ErrSyncFailure)
}

func TestUpdate_KeepsExistingID(t *testing.T) {
	store := &fakeStore{}
	s := NewProfileSync(store, fixedIDs("22222222"), nil)

	p := profile.New(1)
	p.PlatformID = "12345678"

	got, err := s.Update(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, shared.PlatformID("12345678"), got.PlatformID)
}

func TestUpdate_GeneratesWhenMissing(t *testing.T) {
	store := &fakeStore{remoteID: "not-an-id"}
	s := NewProfileSync(store, fixedIDs("22222222"), nil)

	got, err := s.Update(context.Background(), profile.New(1))
	require.NoError(t, err)
	assert.Equal(t, shared.PlatformID("22222222"), got.PlatformID)
}

func TestFetch(t *testing.T) {
	stored := profile.New(0)
	stored.PlatformID = "abc"
	stored.Nickname = "Milana"

	s := NewProfileSync(&fakeStore{fetched: stored}, nil, nil)
	got, found, err := s.Fetch(context.Background(), 7)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, int64(7), got.TelegramID)
	assert.Empty(t, got.PlatformID)
	assert.Equal(t, "Milana", got.Nickname)

	s = NewProfileSync(&fakeStore{err: shared.ErrNotFound}, nil, nil)
	_, found, err = s.Fetch(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, found)

	s = NewProfileSync(&fakeStore{err: errors.New("timeout")}, nil, nil)
	_, _, err = s.Fetch(context.Background(), 7)
	assert.ErrorIs(t, err, shared.ErrSyncFailure)
}

func TestUUIDPlatformIDs_AreValid(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := UUIDPlatformIDs.NewPlatformID()
		assert.True(t, id.IsValid(), id)
		assert.Len(t, id.String(), 9)
	}
}
