package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/external/telegram"
	"github.com/thevuntgram/vuntgram-bot/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// TELEGRAM WEBHOOK
// Telegram retries every update answered with a non-2xx status, so only a bad
// secret or an unreadable body is rejected. Everything else is acknowledged
// once it sits in the user's queue.
// ══════════════════════════════════════════════════════════════════════════════

// SecretTokenHeader carries the secret given to setWebhook.
const SecretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// maxUpdateBytes bounds a single update body.
const maxUpdateBytes = 1 << 20

// UpdateQueue accepts decoded updates.
type UpdateQueue interface {
	Enqueue(ctx context.Context, update *telegram.Update) error
}

// Webhook is the http.Handler Telegram posts updates to.
type Webhook struct {
	queue  UpdateQueue
	secret string
	logger *slog.Logger
}

// NewWebhook creates the webhook handler. An empty secret disables the header check.
func NewWebhook(queue UpdateQueue, secret string, log *slog.Logger) *Webhook {
	if log == nil {
		log = slog.Default()
	}
	return &Webhook{queue: queue, secret: secret, logger: logger.Component(log, "webhook")}
}

// ServeHTTP implements http.Handler.
func (h *Webhook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" {
		got := r.Header.Get(SecretTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.Warn("webhook secret mismatch", slog.String("remote", r.RemoteAddr))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
	}

	var update telegram.Update
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxUpdateBytes)).Decode(&update); err != nil {
		h.logger.Warn("undecodable update", logger.Err(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	// Blocks while the user's queue is full; Telegram retries on timeout.
	if err := h.queue.Enqueue(r.Context(), &update); err != nil {
		h.logger.Error("enqueue update",
			slog.Int64("update_id", update.UpdateID),
			logger.Err(err),
		)
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}
