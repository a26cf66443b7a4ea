package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/persistence/sealed"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/persistence/sessiontest"
)

func openInMemory(t *testing.T, cfg Config) *SessionStore {
	t.Helper()
	cfg.InMemory = true
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSessionStore(t *testing.T) {
	sessiontest.Run(t, func(t *testing.T) session.Repository {
		return openInMemory(t, Config{})
	})
}

func TestSessionStore_Sealed(t *testing.T) {
	codec, err := sealed.NewCodec("s3cret", nil)
	require.NoError(t, err)
	s := openInMemory(t, Config{Codec: codec, TTL: time.Hour})
	ctx := context.Background()

	st := sessiontest.Sample(42)
	require.NoError(t, s.Save(ctx, &st))

	got, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Qr7tZx9", got.Profile.Password)
	assert.Equal(t, int64(1), got.Version)
}

func TestSessionStore_OnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(Config{Path: dir})
	require.NoError(t, err)
	st := sessiontest.Sample(42)
	require.NoError(t, s.Save(ctx, &st))
	require.NoError(t, s.Close())

	s, err = Open(Config{Path: dir})
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, session.StageAwaitingNickname, got.Stage)
}

func TestSplitRejectsTruncatedValues(t *testing.T) {
	_, _, err := split([]byte{1, 2, 3})
	assert.Error(t, err)

	v, data, err := split(join(7, []byte("x")))
	require.NoError(t, err)
	assert.Equal(t, int64(7), v)
	assert.Equal(t, []byte("x"), data)
}
