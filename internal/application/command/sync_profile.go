// Package command contains write operations against the remote profile store.
package command

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"strconv"

	"github.com/google/uuid"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/profile"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE SYNC ADAPTER
// Translates the session profile into the store's register/update/fetch
// contract. Platform ids are generated locally and are authoritative over
// any remote value that fails the digit pattern.
// ══════════════════════════════════════════════════════════════════════════════

// ProfileStore is the remote persistence boundary.
type ProfileStore interface {
	// Register creates the profile and returns the id the store reports.
	Register(ctx context.Context, p profile.Profile) (string, error)

	// Update overwrites the profile and returns the id the store reports.
	Update(ctx context.Context, p profile.Profile) (string, error)

	// Fetch returns the stored profile or shared.ErrNotFound.
	Fetch(ctx context.Context, telegramID int64) (profile.Profile, error)
}

// IDGenerator produces fresh 8-9 digit platform ids.
type IDGenerator interface {
	NewPlatformID() shared.PlatformID
}

// IDGeneratorFunc adapts a function to IDGenerator.
type IDGeneratorFunc func() shared.PlatformID

// NewPlatformID implements IDGenerator.
func (f IDGeneratorFunc) NewPlatformID() shared.PlatformID { return f() }

// UUIDPlatformIDs derives 9-digit ids from random UUIDs.
var UUIDPlatformIDs IDGenerator = IDGeneratorFunc(func() shared.PlatformID {
	id := uuid.New()
	n := binary.BigEndian.Uint64(id[:8])%900_000_000 + 100_000_000
	return shared.PlatformID(strconv.FormatUint(n, 10))
})

// ProfileSync implements register/update/fetch on top of a ProfileStore.
type ProfileSync struct {
	store  ProfileStore
	ids    IDGenerator
	logger *slog.Logger
}

// NewProfileSync creates the adapter. ids defaults to UUIDPlatformIDs.
func NewProfileSync(store ProfileStore, ids IDGenerator, logger *slog.Logger) *ProfileSync {
	if ids == nil {
		ids = UUIDPlatformIDs
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileSync{store: store, ids: ids, logger: logger}
}

// Register always assigns a fresh local id before calling out, even if p
// already carries one.
func (s *ProfileSync) Register(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	p.PlatformID = s.ids.NewPlatformID()

	remote, err := s.store.Register(ctx, p)
	if err != nil {
		return p, syncFailure("Register", err)
	}

	p.PlatformID = s.accept("Register", p.TelegramID, p.PlatformID, remote)
	return p, nil
}

// Update generates an id only when p has no valid one.
func (s *ProfileSync) Update(ctx context.Context, p profile.Profile) (profile.Profile, error) {
	if !p.PlatformID.IsValid() {
		p.PlatformID = s.ids.NewPlatformID()
	}

	remote, err := s.store.Update(ctx, p)
	if err != nil {
		return p, syncFailure("Update", err)
	}

	p.PlatformID = s.accept("Update", p.TelegramID, p.PlatformID, remote)
	return p, nil
}

// Fetch returns the stored profile. found is false when the store has none.
// An invalid stored id is normalized away.
func (s *ProfileSync) Fetch(ctx context.Context, telegramID int64) (p profile.Profile, found bool, err error) {
	p, err = s.store.Fetch(ctx, telegramID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return profile.New(telegramID), false, nil
		}
		return profile.New(telegramID), false, syncFailure("Fetch", err)
	}

	p.TelegramID = telegramID
	p.PlatformID = shared.NormalizePlatformID(p.PlatformID.String())
	return p, true, nil
}

// accept picks the remote id only if it is valid and differs from local.
func (s *ProfileSync) accept(op string, telegramID int64, local shared.PlatformID, remote string) shared.PlatformID {
	if remote == "" || remote == local.String() {
		return local
	}
	if id := shared.NormalizePlatformID(remote); id != "" {
		if id == local {
			return local
		}
		s.logger.Info("profile store assigned a different platform id",
			"op", op,
			"telegram_id", telegramID,
			"platform_id", id.String(),
		)
		return id
	}
	s.logger.Warn("discarding invalid platform id from profile store",
		"op", op,
		"telegram_id", telegramID,
		"remote_id", remote,
	)
	return local
}

func syncFailure(op string, err error) error {
	if errors.Is(err, shared.ErrSyncFailure) {
		return err
	}
	return shared.WrapError("profilesync", op, shared.ErrSyncFailure, "profile store call failed", err)
}
