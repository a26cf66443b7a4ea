package middleware

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT KEYS
// ══════════════════════════════════════════════════════════════════════════════

type contextKey string

const (
	telegramIDContextKey contextKey = "telegram_id"
	adminContextKey      contextKey = "admin"
	startTimeContextKey  contextKey = "start_time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ADMIN AUTH
// Admins are configured by Telegram id. Admin-only commands from anyone else
// are dropped without a reply.
// ══════════════════════════════════════════════════════════════════════════════

// AdminAuth answers whether a Telegram user is an admin.
type AdminAuth struct {
	admins map[int64]struct{}
	ids    []int64
}

// NewAdminAuth creates an AdminAuth for the given ids.
func NewAdminAuth(adminIDs []int64) *AdminAuth {
	a := &AdminAuth{admins: make(map[int64]struct{}, len(adminIDs))}
	for _, id := range adminIDs {
		if _, dup := a.admins[id]; dup || id == 0 {
			continue
		}
		a.admins[id] = struct{}{}
		a.ids = append(a.ids, id)
	}
	return a
}

// IsAdmin reports whether telegramID is an admin.
func (a *AdminAuth) IsAdmin(telegramID int64) bool {
	_, ok := a.admins[telegramID]
	return ok
}

// IDs returns the admin ids in configuration order.
func (a *AdminAuth) IDs() []int64 {
	return append([]int64(nil), a.ids...)
}

// Authorize tags ctx with the caller and whether they are an admin.
func (a *AdminAuth) Authorize(ctx context.Context, telegramID int64) context.Context {
	ctx = ContextWithTelegramID(ctx, telegramID)
	return context.WithValue(ctx, adminContextKey, a.IsAdmin(telegramID))
}

// ══════════════════════════════════════════════════════════════════════════════
// CONTEXT HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// ContextWithTelegramID adds the Telegram ID to the context.
func ContextWithTelegramID(ctx context.Context, telegramID int64) context.Context {
	return context.WithValue(ctx, telegramIDContextKey, telegramID)
}

// TelegramIDFromContext retrieves the Telegram ID from context.
// Returns 0 if not found.
func TelegramIDFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(telegramIDContextKey).(int64)
	return id
}

// IsAdminContext reports whether Authorize marked ctx as an admin's.
func IsAdminContext(ctx context.Context) bool {
	ok, _ := ctx.Value(adminContextKey).(bool)
	return ok
}

// ContextWithStartTime records when handling of the update began.
func ContextWithStartTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, startTimeContextKey, t)
}

// StartTimeFromContext returns the time recorded by ContextWithStartTime.
func StartTimeFromContext(ctx context.Context) (time.Time, bool) {
	t, ok := ctx.Value(startTimeContextKey).(time.Time)
	return t, ok
}
