// Package sessiontest holds the behaviour every session.Repository driver
// must share. Driver tests call Run with a fresh store.
package sessiontest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
)

// Run exercises repo. newRepo must return an empty store.
func Run(t *testing.T, newRepo func(t *testing.T) session.Repository) {
	t.Run("missing state is not found", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.Get(context.Background(), 42)
		assert.True(t, shared.IsNotFound(err))
	})

	t.Run("save and load round trip", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		st := Sample(42)
		require.NoError(t, repo.Save(ctx, &st))
		assert.Equal(t, int64(1), st.Version)

		got, err := repo.Get(ctx, 42)
		require.NoError(t, err)
		assert.Equal(t, st.Stage, got.Stage)
		assert.Equal(t, st.Profile, got.Profile)
		assert.Equal(t, st.Pending, got.Pending)
		assert.Equal(t, st.Housekeeping, got.Housekeeping)
		assert.Equal(t, int64(1), got.Version)
		require.Len(t, got.AdminRing.Entries, 1)
		assert.Equal(t, int64(7), got.AdminRing.Entries[0].UserID)
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		first := Sample(42)
		require.NoError(t, repo.Save(ctx, &first))

		stale := Sample(42)
		err := repo.Save(ctx, &stale)
		assert.True(t, shared.IsVersionConflict(err))
		assert.Equal(t, int64(0), stale.Version)

		loaded, err := repo.Get(ctx, 42)
		require.NoError(t, err)
		loaded.Stage = session.StageComplete
		require.NoError(t, repo.Save(ctx, &loaded))
		assert.Equal(t, int64(2), loaded.Version)

		assert.True(t, shared.IsVersionConflict(repo.Save(ctx, &first)))
	})

	t.Run("delete", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		st := Sample(42)
		require.NoError(t, repo.Save(ctx, &st))
		require.NoError(t, repo.Delete(ctx, 42))
		require.NoError(t, repo.Delete(ctx, 42))

		_, err := repo.Get(ctx, 42)
		assert.True(t, shared.IsNotFound(err))

		fresh := Sample(42)
		require.NoError(t, repo.Save(ctx, &fresh))
	})

	t.Run("users are independent", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		a, b := Sample(1), Sample(2)
		b.Stage = session.StageAwaitingPassword
		require.NoError(t, repo.Save(ctx, &a))
		require.NoError(t, repo.Save(ctx, &b))

		got, err := repo.Get(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, session.StageAwaitingNickname, got.Stage)
	})
}

// Sample returns a mid-registration state with every persisted part filled.
func Sample(telegramID int64) session.State {
	st := session.New(telegramID)
	st.Stage = session.StageAwaitingNickname
	st.Generation = 3
	st.Profile.Nickname = "Milana"
	st.Profile.Password = "Qr7tZx9"
	st.Profile.MainSchoolCode = "1001"
	st.Profile.MainSchoolName = "Школа №1"
	st.Pending = []session.Stage{session.StageAwaitingRole, session.StageAwaitingClass}
	st.Housekeeping = session.Housekeeping{LastPromptID: 10, LastStickerID: 9}
	st.AdminRing.Push(session.RingEntry{MessageID: 5, UserID: 7, At: time.Unix(1700000000, 0).UTC()})
	return st
}
