package alert

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"gridwalls/internal/core"
	"gridwalls/pkg/concurrency"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockAlertChannel struct {
	name     string
	sent     []AlertPayload
	sendFunc func(ctx context.Context, alert AlertPayload) error
	mu       sync.Mutex
}

func (m *mockAlertChannel) Name() string {
	return m.name
}

func (m *mockAlertChannel) Send(ctx context.Context, alert AlertPayload) error {
	m.mu.Lock()
	m.sent = append(m.sent, alert)
	m.mu.Unlock()
	if m.sendFunc != nil {
		return m.sendFunc(ctx, alert)
	}
	return nil
}

func (m *mockAlertChannel) getSent() []AlertPayload {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]AlertPayload, len(m.sent))
	copy(res, m.sent)
	return res
}

type logEntry struct {
	level  string
	msg    string
	fields []interface{}
}

type mockLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (m *mockLogger) record(level, msg string, f []interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, logEntry{level: level, msg: msg, fields: f})
}

func (m *mockLogger) Debug(msg string, f ...interface{})               { m.record("debug", msg, f) }
func (m *mockLogger) Info(msg string, f ...interface{})                { m.record("info", msg, f) }
func (m *mockLogger) Warn(msg string, f ...interface{})                { m.record("warn", msg, f) }
func (m *mockLogger) Error(msg string, f ...interface{})               { m.record("error", msg, f) }
func (m *mockLogger) Fatal(msg string, f ...interface{})               { m.record("fatal", msg, f) }
func (m *mockLogger) WithField(k string, v interface{}) core.ILogger   { return m }
func (m *mockLogger) WithFields(f map[string]interface{}) core.ILogger { return m }

func (m *mockLogger) count(level, msg string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, e := range m.entries {
		if e.level == level && e.msg == msg {
			n++
		}
	}
	return n
}

func newManager(t *testing.T, logger core.ILogger) *AlertManager {
	t.Helper()
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "alerts", MaxWorkers: 2}, logger)
	t.Cleanup(pool.Stop)
	return NewAlertManager(pool, logger)
}

func TestAlertManager_AlertFansOutAndWaits(t *testing.T) {
	am := newManager(t, &mockLogger{})

	ch1 := &mockAlertChannel{name: "mock1"}
	ch2 := &mockAlertChannel{name: "mock2"}
	am.AddChannel(ch1)
	am.AddChannel(ch2)
	assert.Equal(t, []string{"mock1", "mock2"}, am.Channels())

	am.Alert(context.Background(), "Test Alert", "This is a test", Warning, map[string]string{"key": "value"})

	// delivery is complete when Alert returns
	sent1 := ch1.getSent()
	require.Len(t, sent1, 1)
	require.Len(t, ch2.getSent(), 1)

	payload := sent1[0]
	assert.Equal(t, "Test Alert", payload.Title)
	assert.Equal(t, Warning, payload.Level)
	assert.Equal(t, "value", payload.Fields["key"])
}

func TestAlertManager_ChannelErrorIsLogged(t *testing.T) {
	logger := &mockLogger{}
	am := newManager(t, logger)

	failing := &mockAlertChannel{name: "failing", sendFunc: func(context.Context, AlertPayload) error {
		return errors.New("unreachable")
	}}
	ok := &mockAlertChannel{name: "ok"}
	am.AddChannel(failing)
	am.AddChannel(ok)

	am.Notify(context.Background(), "buy 10 tst")

	assert.Len(t, ok.getSent(), 1)
	assert.Equal(t, 1, logger.count("error", "Failed to send alert"))
}

func TestAlertManager_SendTimeout(t *testing.T) {
	am := newManager(t, &mockLogger{})
	am.sendTimeout = 20 * time.Millisecond

	var deadlineHit int32
	am.AddChannel(&mockAlertChannel{name: "slow", sendFunc: func(ctx context.Context, _ AlertPayload) error {
		<-ctx.Done()
		atomic.StoreInt32(&deadlineHit, 1)
		return ctx.Err()
	}})

	am.Notify(context.Background(), "slow")
	assert.Equal(t, int32(1), atomic.LoadInt32(&deadlineHit))
}

func TestAlertManager_NoChannels(t *testing.T) {
	am := newManager(t, &mockLogger{})
	assert.NotPanics(t, func() { am.Notify(context.Background(), "nobody listens") })
}

func TestAlertPayload_Text(t *testing.T) {
	assert.Equal(t, "plain", AlertPayload{Message: "plain"}.Text())
	assert.Equal(t,
		"Trading Bot Alert\n\nboom\n\n- a: 1\n- b: 2",
		AlertPayload{Title: "Trading Bot Alert", Message: "boom", Fields: map[string]string{"b": "2", "a": "1"}}.Text())
}

func TestWebhookChannel_PostsText(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	ch := NewWebhookChannel(server.URL, 0)
	require.NoError(t, ch.Send(context.Background(), AlertPayload{Message: "tst/nano buy 20 @ 5"}))
	assert.Equal(t, map[string]string{"text": "tst/nano buy 20 @ 5"}, got)
}

func TestWebhookChannel_StatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	err := NewWebhookChannel(server.URL, 0).Send(context.Background(), AlertPayload{Message: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestWebhookChannel_EmptyURLIsNoop(t *testing.T) {
	assert.NoError(t, NewWebhookChannel("", 1).Send(context.Background(), AlertPayload{Message: "x"}))
}

func TestWebhookChannel_RateLimited(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	ch := NewWebhookChannel(server.URL, 20)
	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, ch.Send(context.Background(), AlertPayload{Message: "x"}))
	}
	// burst of one, then 50ms per message
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, ch.Send(ctx, AlertPayload{Message: "x"}))
}

func TestTelegramChannel_Send(t *testing.T) {
	var body map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	}))
	defer server.Close()

	ch := NewTelegramChannel("TOKEN", "42")
	ch.apiBase = server.URL
	require.NoError(t, ch.Send(context.Background(), AlertPayload{Level: Error, Title: "Trading Bot Alert", Message: "boom"}))
	assert.Equal(t, "42", body["chat_id"])
	assert.Contains(t, body["text"], "Trading Bot Alert")
	assert.Contains(t, body["text"], "boom")
}

func TestLogChannel_Send(t *testing.T) {
	logger := &mockLogger{}
	ch := NewLogChannel(logger)

	require.NoError(t, ch.Send(context.Background(), AlertPayload{Level: Info, Message: "hello"}))
	require.NoError(t, ch.Send(context.Background(), AlertPayload{Level: Error, Message: "boom"}))

	assert.Equal(t, 1, logger.count("info", "Notification"))
	assert.Equal(t, 1, logger.count("error", "Notification"))
}
