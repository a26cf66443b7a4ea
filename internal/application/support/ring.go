// Package support is the admin side of the support desk: the per-admin reply
// rings and the /reply and /reply_admin commands.
package support

import (
	"context"
	"errors"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	"github.com/thevuntgram/vuntgram-bot/pkg/keylock"
	"github.com/thevuntgram/vuntgram-bot/pkg/retry"
)

// RingBook reads and writes the reply ring kept in each admin's session
// state. Every change runs under the admin's key lock and is retried on a
// version conflict.
type RingBook struct {
	sessions session.Repository
	locks    *keylock.Locker
	retrier  *retry.Retrier
}

// NewRingBook creates a RingBook. locks must be the transport's per-user locker.
func NewRingBook(sessions session.Repository, locks *keylock.Locker) *RingBook {
	return &RingBook{
		sessions: sessions,
		locks:    locks,
		retrier:  retry.ConflictRetrier(shared.IsVersionConflict),
	}
}

// Push records a forwarded message in the admin's ring.
func (b *RingBook) Push(ctx context.Context, adminID int64, e session.RingEntry) error {
	return b.update(ctx, adminID, func(r *session.AdminRing) bool {
		r.Push(e)
		return true
	})
}

// Peek returns the newest entry without removing it.
func (b *RingBook) Peek(ctx context.Context, adminID int64) (session.RingEntry, bool, error) {
	unlock := b.locks.Lock(adminID)
	defer unlock()

	st, err := b.load(ctx, adminID)
	if err != nil {
		return session.RingEntry{}, false, err
	}
	e, ok := st.AdminRing.Peek()
	return e, ok, nil
}

// Remove drops the entry of a forwarded message once it was answered.
func (b *RingBook) Remove(ctx context.Context, adminID int64, messageID int) error {
	return b.update(ctx, adminID, func(r *session.AdminRing) bool {
		return r.Remove(messageID)
	})
}

// update applies fn to the ring and saves when fn reports a change.
func (b *RingBook) update(ctx context.Context, adminID int64, fn func(*session.AdminRing) bool) error {
	unlock := b.locks.Lock(adminID)
	defer unlock()

	return b.retrier.Do(ctx, func(ctx context.Context) error {
		st, err := b.load(ctx, adminID)
		if err != nil {
			return err
		}
		if !fn(&st.AdminRing) {
			return nil
		}
		return b.sessions.Save(ctx, &st)
	})
}

func (b *RingBook) load(ctx context.Context, adminID int64) (session.State, error) {
	st, err := b.sessions.Get(ctx, adminID)
	if errors.Is(err, shared.ErrNotFound) {
		return session.New(adminID), nil
	}
	return st, err
}
