package middleware

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevuntgram/vuntgram-bot/internal/domain/shared"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *clock {
	return &clock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// ═══════════════════════════════════════════════════════════════════════════
// RATE LIMITER
// ═══════════════════════════════════════════════════════════════════════════

func TestRateLimiter_BurstThenRefill(t *testing.T) {
	c := newClock()
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60, BurstSize: 2, Now: c.now})

	assert.True(t, rl.Check(1).Allowed)
	assert.True(t, rl.Check(1).Allowed)

	res := rl.Check(1)
	assert.False(t, res.Allowed)
	assert.False(t, res.IsBanned)
	assert.Equal(t, time.Second, res.RetryAfter)
	assert.Contains(t, res.Message(), "1 сек.")

	// Other users have their own bucket.
	assert.True(t, rl.Check(2).Allowed)

	c.advance(time.Second)
	assert.True(t, rl.Check(1).Allowed)
}

func TestRateLimiter_BanAfterRepeatedViolations(t *testing.T) {
	c := newClock()
	rl := NewRateLimiter(RateLimitConfig{
		RequestsPerMinute: 1,
		BurstSize:         1,
		BanThreshold:      3,
		BanDuration:       10 * time.Minute,
		Now:               c.now,
	})

	require.True(t, rl.Check(1).Allowed)
	assert.False(t, rl.Check(1).IsBanned)
	assert.False(t, rl.Check(1).IsBanned)

	res := rl.Check(1)
	assert.True(t, res.IsBanned)
	assert.Equal(t, 10*time.Minute, res.RetryAfter)
	assert.Contains(t, res.Message(), "10 мин.")

	c.advance(5 * time.Minute)
	res = rl.Check(1)
	assert.True(t, res.IsBanned)
	assert.Equal(t, 5*time.Minute, res.RetryAfter)

	c.advance(5 * time.Minute)
	assert.True(t, rl.Check(1).Allowed, "ban expired and bucket is fresh")
}

func TestRateLimiter_WhitelistAndReset(t *testing.T) {
	c := newClock()
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 1, BurstSize: 1, Whitelist: []int64{7}, Now: c.now})

	for i := 0; i < 10; i++ {
		assert.True(t, rl.Check(7).Allowed)
	}

	require.True(t, rl.Check(1).Allowed)
	require.False(t, rl.Check(1).Allowed)
	rl.Reset(1)
	assert.True(t, rl.Check(1).Allowed)
}

func TestRateLimiter_CleanupDropsIdleBuckets(t *testing.T) {
	c := newClock()
	rl := NewRateLimiter(RateLimitConfig{RequestsPerMinute: 60, BurstSize: 1, Now: c.now})

	rl.Check(1)
	c.advance(11 * time.Minute)
	rl.cleanup(c.now())

	_, ok := rl.buckets.Load(int64(1))
	assert.False(t, ok)
}

// ═══════════════════════════════════════════════════════════════════════════
// RECOVERY
// ═══════════════════════════════════════════════════════════════════════════

func TestRecover_PassesHandlerError(t *testing.T) {
	m := NewRecoveryMiddleware(RecoveryConfig{})
	want := errors.New("boom")

	res := m.Recover(context.Background(), 1, "message", func(context.Context) error { return want })
	assert.False(t, res.Recovered)
	assert.Empty(t, res.UserMessage)
	assert.ErrorIs(t, res.Err, want)
}

func TestRecover_Panic(t *testing.T) {
	var seen []PanicInfo
	m := NewRecoveryMiddleware(RecoveryConfig{
		UserErrorMessage: "sorry",
		OnPanic:          func(info PanicInfo) { seen = append(seen, info) },
	})

	res := m.Recover(context.Background(), 42, "callback", func(context.Context) error {
		panic("nil map")
	})

	assert.True(t, res.Recovered)
	assert.Equal(t, "sorry", res.UserMessage)
	require.Len(t, seen, 1)
	assert.Equal(t, int64(42), seen[0].TelegramID)
	assert.NotEmpty(t, seen[0].Stack)

	var info PanicInfo
	require.ErrorAs(t, res.Err, &info)
	assert.Equal(t, "panic in callback: nil map", info.Error())
}

func TestRecover_StackLoggingIsCapped(t *testing.T) {
	var stacks int
	m := NewRecoveryMiddleware(RecoveryConfig{
		MaxPanicsPerMinute: 1,
		OnPanic: func(info PanicInfo) {
			if info.Stack != "" {
				stacks++
			}
		},
	})
	for i := 0; i < 3; i++ {
		res := m.Recover(context.Background(), 1, "message", func(context.Context) error { panic(i) })
		assert.True(t, res.Recovered)
	}
	assert.Equal(t, 1, stacks)
}

// ═══════════════════════════════════════════════════════════════════════════
// ADMIN AUTH
// ═══════════════════════════════════════════════════════════════════════════

func TestAdminAuth(t *testing.T) {
	a := NewAdminAuth([]int64{7, 0, 9, 7})

	assert.Equal(t, []int64{7, 9}, a.IDs())
	assert.True(t, a.IsAdmin(9))
	assert.False(t, a.IsAdmin(0))
	assert.False(t, a.IsAdmin(42))

	ctx := a.Authorize(context.Background(), 7)
	assert.True(t, IsAdminContext(ctx))
	assert.Equal(t, int64(7), TelegramIDFromContext(ctx))

	ctx = a.Authorize(context.Background(), 42)
	assert.False(t, IsAdminContext(ctx))
	assert.False(t, IsAdminContext(context.Background()))
}

func TestStartTimeContext(t *testing.T) {
	_, ok := StartTimeFromContext(context.Background())
	assert.False(t, ok)

	at := time.Unix(1700000000, 0)
	got, ok := StartTimeFromContext(ContextWithStartTime(context.Background(), at))
	require.True(t, ok)
	assert.Equal(t, at, got)
}

// ═══════════════════════════════════════════════════════════════════════════
// METRICS
// ═══════════════════════════════════════════════════════════════════════════

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
	metrics:
		for _, m := range f.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue metrics
				}
			}
			return m.GetCounter().GetValue()
		}
	}
	return 0
}

func TestMetrics_OutcomeByErrorKind(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetricsMiddleware(MetricsConfig{Registerer: reg})
	require.NoError(t, err)

	m.Start("message", 1).End(nil)
	m.Start("message", 1).End(shared.ErrInputRejected)
	m.Start("callback", 1).End(errors.New("telegram down"))
	m.RecordRateLimited()
	m.RecordPanic()

	assert.Equal(t, 1.0, counterValue(t, reg, "vuntgram_updates_total", map[string]string{"kind": "message", "outcome": "ok"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "vuntgram_updates_total", map[string]string{"kind": "message", "outcome": "input_rejected"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "vuntgram_updates_total", map[string]string{"kind": "callback", "outcome": "internal"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "vuntgram_rate_limited_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "vuntgram_panics_total", nil))

	total, internal := m.Totals()
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(1), internal)
}

func TestMetrics_SlowRequestHookAndDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	var slow []string
	m, err := NewMetricsMiddleware(MetricsConfig{
		Registerer:           reg,
		SlowRequestThreshold: time.Nanosecond,
		OnSlowRequest:        func(kind string, _ int64, _ time.Duration) { slow = append(slow, kind) },
	})
	require.NoError(t, err)

	rc := m.Start("command", 5)
	time.Sleep(time.Millisecond)
	rc.End(nil)
	assert.Equal(t, []string{"command"}, slow)

	_, err = NewMetricsMiddleware(MetricsConfig{Registerer: reg})
	assert.Error(t, err)
}
