package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/session"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/persistence/sealed"
	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/persistence/sessiontest"
)

// testClient connects to REDIS_TEST_ADDR or skips.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})
	require.NoError(t, client.Ping(context.Background()).Err())
	return client
}

func testPrefix() string {
	return "vuntgram-test:" + uuid.NewString() + ":"
}

func TestSessionStore(t *testing.T) {
	sessiontest.Run(t, func(t *testing.T) session.Repository {
		s := NewSessionStore(testClient(t), SessionStoreConfig{KeyPrefix: testPrefix()})
		t.Cleanup(func() { _ = s.Close() })
		return s
	})
}

func TestSessionStore_Sealed(t *testing.T) {
	client := testClient(t)
	codec, err := sealed.NewCodec("s3cret", nil)
	require.NoError(t, err)

	prefix := testPrefix()
	s := NewSessionStore(client, SessionStoreConfig{KeyPrefix: prefix, Codec: codec})
	defer s.Close()
	ctx := context.Background()

	st := sessiontest.Sample(42)
	require.NoError(t, s.Save(ctx, &st))

	raw, err := client.HGet(ctx, SessionKey(prefix, 42), fieldData).Result()
	require.NoError(t, err)
	assert.NotContains(t, raw, "Qr7tZx9")

	got, err := s.Get(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, "Qr7tZx9", got.Profile.Password)
}

func TestSessionKey(t *testing.T) {
	assert.Equal(t, "vuntgram:session:42", SessionKey("vuntgram:", 42))
}
