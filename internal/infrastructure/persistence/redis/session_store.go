package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
)

// Checkpoints are hashes: the version lives next to the encoded state, so
// the optimistic check never has to decode (or unseal) the blob.
const (
	fieldVersion = "v"
	fieldData    = "d"

	defaultTTL = 30 * 24 * time.Hour
)

// SessionStore implements session.Repository with WATCH/MULTI/EXEC.
type SessionStore struct {
	client redis.UniversalClient
	codec  session.Codec
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// SessionStoreConfig configures a SessionStore.
type SessionStoreConfig struct {
	// Codec encodes states. Defaults to session.JSONCodec.
	Codec session.Codec

	// KeyPrefix defaults to "vuntgram:".
	KeyPrefix string

	// TTL is refreshed on every save.
	TTL time.Duration
}

// NewSessionStore creates a store over client.
func NewSessionStore(client redis.UniversalClient, cfg SessionStoreConfig) *SessionStore {
	if cfg.Codec == nil {
		cfg.Codec = session.JSONCodec{}
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultConfig().KeyPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	return &SessionStore{
		client: client,
		codec:  cfg.Codec,
		prefix: cfg.KeyPrefix,
		ttl:    cfg.TTL,
		now:    time.Now,
	}
}

// Get implements session.Repository.
func (s *SessionStore) Get(ctx context.Context, telegramID int64) (session.State, error) {
	vals, err := s.client.HMGet(ctx, s.key(telegramID), fieldVersion, fieldData).Result()
	if err != nil {
		return session.State{}, shared.WrapError("redis", "Get", shared.ErrServiceUnavailable, "read session", err)
	}

	data, ok := vals[1].(string)
	if !ok {
		return session.State{}, shared.NewDomainError("redis", "Get", shared.ErrNotFound, "session not found")
	}

	st, err := s.codec.Unmarshal([]byte(data))
	if err != nil {
		return session.State{}, shared.WrapError("redis", "Get", shared.ErrInvalidState, "decode session", err)
	}
	if v, ok := vals[0].(string); ok {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			st.Version = n
		}
	}
	return st, nil
}

// Save implements session.Repository.
func (s *SessionStore) Save(ctx context.Context, st *session.State) error {
	key := s.key(st.TelegramID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := tx.HGet(ctx, key, fieldVersion).Int64()
		if errors.Is(err, redis.Nil) {
			stored = 0
		} else if err != nil {
			return err
		}
		if stored != st.Version {
			return shared.ErrVersionConflict
		}

		next := *st
		next.Version++
		next.UpdatedAt = s.now()
		data, err := s.codec.Marshal(next)
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, fieldVersion, next.Version, fieldData, data)
			pipe.Expire(ctx, key, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}

		st.Version = next.Version
		st.UpdatedAt = next.UpdatedAt
		return nil
	}, key)

	switch {
	case err == nil:
		return nil
	case errors.Is(err, shared.ErrVersionConflict), errors.Is(err, redis.TxFailedErr):
		return shared.NewDomainError("redis", "Save", shared.ErrVersionConflict, "session was saved concurrently")
	default:
		return shared.WrapError("redis", "Save", shared.ErrServiceUnavailable, fmt.Sprintf("save session %d", st.TelegramID), err)
	}
}

// Delete implements session.Repository.
func (s *SessionStore) Delete(ctx context.Context, telegramID int64) error {
	if err := s.client.Del(ctx, s.key(telegramID)).Err(); err != nil {
		return shared.WrapError("redis", "Delete", shared.ErrServiceUnavailable, "delete session", err)
	}
	return nil
}

// Ping checks if Redis is reachable.
func (s *SessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close implements session.Repository.
func (s *SessionStore) Close() error {
	return s.client.Close()
}

func (s *SessionStore) key(telegramID int64) string {
	return SessionKey(s.prefix, telegramID)
}
