package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thevuntgram/vuntgram-bot/internal/infrastructure/external/telegram"
	"github.com/thevuntgram/vuntgram-bot/internal/interface/http/handlers"
)

type fakeQueue struct {
	updates []*telegram.Update
	err     error
}

func (q *fakeQueue) Enqueue(_ context.Context, u *telegram.Update) error {
	if q.err != nil {
		return q.err
	}
	q.updates = append(q.updates, u)
	return nil
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newTestServer(t *testing.T, queue *fakeQueue) (*httptest.Server, *prometheus.Registry, *handlers.CompositeHealthChecker) {
	t.Helper()
	reg := prometheus.NewRegistry()
	health := handlers.NewCompositeHealthChecker("1.2.3")

	deps := Dependencies{
		Health:   health,
		Gatherer: reg,
		Stats:    func() map[string]any { return map[string]any{"updates_received": 3} },
	}
	if queue != nil {
		deps.Webhook = handlers.NewWebhook(queue, "s3cret", nil)
	}
	srv := httptest.NewServer(NewServer(DefaultConfig(), deps).Router())
	t.Cleanup(srv.Close)
	return srv, reg, health
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestRootAndHealth(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get(handlers.RequestIDHeader))
	assert.Equal(t, "1.2.3", decode(t, resp)["version"])

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, map[string]any{"updates_received": float64(3)}, body["bot"])
}

func TestReady(t *testing.T) {
	srv, _, health := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	health.AddCheck("sessions", handlers.PingCheck(pingFunc(func(context.Context) error { return nil })))
	health.AddCheck("ledger", handlers.PingCheck(pingFunc(func(context.Context) error {
		return errors.New("connection refused")
	})))

	resp, err = http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	body := decode(t, resp)
	assert.Equal(t, false, body["ready"])
	assert.Equal(t, "failed: ledger", body["message"])
}

func TestMetricsExposesRegistry(t *testing.T) {
	srv, reg, _ := newTestServer(t, nil)
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "vuntgram_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(2)

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "vuntgram_test_total 2")
}

func postUpdate(t *testing.T, url, secret, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url+"/webhook", strings.NewReader(body))
	require.NoError(t, err)
	if secret != "" {
		req.Header.Set(handlers.SecretTokenHeader, secret)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	return resp
}

func TestWebhook(t *testing.T) {
	queue := &fakeQueue{}
	srv, _, _ := newTestServer(t, queue)
	update := `{"update_id":10,"message":{"message_id":1,"date":1,"text":"hi","chat":{"id":42,"type":"private"},"from":{"id":42,"first_name":"A"}}}`

	assert.Equal(t, http.StatusUnauthorized, postUpdate(t, srv.URL, "", update).StatusCode)
	assert.Equal(t, http.StatusUnauthorized, postUpdate(t, srv.URL, "wrong", update).StatusCode)
	assert.Equal(t, http.StatusBadRequest, postUpdate(t, srv.URL, "s3cret", "{not json").StatusCode)
	assert.Empty(t, queue.updates)

	assert.Equal(t, http.StatusOK, postUpdate(t, srv.URL, "s3cret", update).StatusCode)
	require.Len(t, queue.updates, 1)
	assert.Equal(t, int64(10), queue.updates[0].UpdateID)
	assert.Equal(t, "hi", queue.updates[0].Message.Text)

	queue.err = errors.New("bot is stopping")
	assert.Equal(t, http.StatusServiceUnavailable, postUpdate(t, srv.URL, "s3cret", update).StatusCode)
}

func TestWebhookNotMountedInPollingMode(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)
	resp := postUpdate(t, srv.URL, "s3cret", `{}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
