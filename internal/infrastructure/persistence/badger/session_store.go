// Package badger is the embedded session driver: checkpoints survive a
// restart of a single-node deployment without an external database.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
	"github.com/thevuntgram/vuntgram-bot/pkg/logger"
)

const keyPrefix = "session:"

// Config configures the store.
type Config struct {
	// Path is the database directory. Empty with InMemory set keeps everything in RAM.
	Path     string
	InMemory bool

	// Codec encodes states. Defaults to session.JSONCodec.
	Codec session.Codec

	// TTL expires checkpoints not saved within it. Zero keeps them forever.
	TTL time.Duration

	Logger *slog.Logger
}

// SessionStore implements session.Repository over badger transactions.
// A value is the 8-byte big-endian version followed by the encoded state.
type SessionStore struct {
	db     *badger.DB
	codec  session.Codec
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the database.
func Open(cfg Config) (*SessionStore, error) {
	if cfg.Codec == nil {
		cfg.Codec = session.JSONCodec{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	opts := badger.DefaultOptions(cfg.Path).WithLogger(nil)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", cfg.Path, err)
	}

	return &SessionStore{
		db:     db,
		codec:  cfg.Codec,
		ttl:    cfg.TTL,
		logger: logger.Component(cfg.Logger, "badger"),
		now:    time.Now,
	}, nil
}

// Get implements session.Repository.
func (s *SessionStore) Get(_ context.Context, telegramID int64) (session.State, error) {
	var st session.State
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key(telegramID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			version, data, err := split(val)
			if err != nil {
				return err
			}
			st, err = s.codec.Unmarshal(data)
			st.Version = version
			return err
		})
	})

	switch {
	case err == nil:
		return st, nil
	case errors.Is(err, badger.ErrKeyNotFound):
		return session.State{}, shared.NewDomainError("badger", "Get", shared.ErrNotFound, "session not found")
	default:
		return session.State{}, shared.WrapError("badger", "Get", shared.ErrInvalidState, "read session", err)
	}
}

// Save implements session.Repository.
func (s *SessionStore) Save(_ context.Context, st *session.State) error {
	next := *st
	next.Version++
	next.UpdatedAt = s.now()

	err := s.db.Update(func(txn *badger.Txn) error {
		var stored int64
		item, err := txn.Get(key(st.TelegramID))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			if err := item.Value(func(val []byte) error {
				stored, _, err = split(val)
				return err
			}); err != nil {
				return err
			}
		}
		if stored != st.Version {
			return shared.ErrVersionConflict
		}

		data, err := s.codec.Marshal(next)
		if err != nil {
			return err
		}
		entry := badger.NewEntry(key(st.TelegramID), join(next.Version, data))
		if s.ttl > 0 {
			entry = entry.WithTTL(s.ttl)
		}
		return txn.SetEntry(entry)
	})

	switch {
	case err == nil:
		st.Version = next.Version
		st.UpdatedAt = next.UpdatedAt
		return nil
	case errors.Is(err, shared.ErrVersionConflict), errors.Is(err, badger.ErrConflict):
		return shared.NewDomainError("badger", "Save", shared.ErrVersionConflict, "session was saved concurrently")
	default:
		return shared.WrapError("badger", "Save", shared.ErrServiceUnavailable, "write session", err)
	}
}

// Delete implements session.Repository.
func (s *SessionStore) Delete(_ context.Context, telegramID int64) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key(telegramID))
	})
	if err != nil {
		return shared.WrapError("badger", "Delete", shared.ErrServiceUnavailable, "delete session", err)
	}
	return nil
}

// RunGC collects the value log every interval until ctx is done.
func (s *SessionStore) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				err := s.db.RunValueLogGC(0.5)
				if err == nil {
					continue
				}
				if !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrRejected) {
					s.logger.Warn("value log gc failed", logger.Err(err))
				}
				break
			}
		}
	}
}

// Close implements session.Repository.
func (s *SessionStore) Close() error {
	return s.db.Close()
}

func key(telegramID int64) []byte {
	return []byte(keyPrefix + strconv.FormatInt(telegramID, 10))
}

func join(version int64, data []byte) []byte {
	out := make([]byte, 8, 8+len(data))
	binary.BigEndian.PutUint64(out, uint64(version))
	return append(out, data...)
}

func split(val []byte) (int64, []byte, error) {
	if len(val) < 8 {
		return 0, nil, errors.New("badger: truncated session value")
	}
	data := make([]byte, len(val)-8)
	copy(data, val[8:])
	return int64(binary.BigEndian.Uint64(val[:8])), data, nil
}
