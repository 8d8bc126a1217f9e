package monitor

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"gridwalls/internal/core"
	apperrors "gridwalls/pkg/errors"
	apphttp "gridwalls/pkg/http"
	"gridwalls/pkg/retry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLogger struct{}

func (m *mockLogger) Debug(msg string, f ...interface{})               {}
func (m *mockLogger) Info(msg string, f ...interface{})                {}
func (m *mockLogger) Warn(msg string, f ...interface{})                {}
func (m *mockLogger) Error(msg string, f ...interface{})               {}
func (m *mockLogger) Fatal(msg string, f ...interface{})               {}
func (m *mockLogger) WithField(k string, v interface{}) core.ILogger   { return m }
func (m *mockLogger) WithFields(f map[string]interface{}) core.ILogger { return m }

type recordingNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (n *recordingNotifier) Notify(_ context.Context, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, message)
}

func (n *recordingNotifier) sent() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.messages...)
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestMonitor(threshold int, interval time.Duration) (*ErrorMonitor, *recordingNotifier, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	notifier := &recordingNotifier{}
	return NewErrorMonitor(threshold, interval, notifier, &mockLogger{}, WithClock(clock.Now)), notifier, clock
}

func TestErrorMonitor_AlertsOnFifthErrorInWindow(t *testing.T) {
	m, notifier, clock := newTestMonitor(5, 300*time.Second)
	ctx := context.Background()

	for i := 1; i <= 4; i++ {
		m.RecordError(ctx, "boom")
		clock.Advance(10 * time.Second)
		assert.Empty(t, notifier.sent(), "no alert after %d errors", i)
	}

	m.RecordError(ctx, "price feed down")
	sent := notifier.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Trading Bot Alert\n\nAn error occurred in the trading bot:\n\nprice feed down", sent[0])
	assert.Equal(t, 0, m.Count())
}

func TestErrorMonitor_SuccessResetsBurst(t *testing.T) {
	m, notifier, clock := newTestMonitor(5, 300*time.Second)
	ctx := context.Background()

	m.RecordError(ctx, "e1")
	m.RecordError(ctx, "e2")
	m.RecordSuccess()
	for i := 0; i < 3; i++ {
		clock.Advance(time.Second)
		m.RecordError(ctx, "e")
	}

	assert.Empty(t, notifier.sent())
	assert.Equal(t, 3, m.Count())
}

func TestErrorMonitor_WindowExpiryStartsNewBurst(t *testing.T) {
	m, notifier, clock := newTestMonitor(3, 300*time.Second)
	ctx := context.Background()

	m.RecordError(ctx, "e1")
	clock.Advance(100 * time.Second)
	m.RecordError(ctx, "e2")

	// measured from the first error of the burst
	clock.Advance(200 * time.Second)
	m.RecordError(ctx, "e3")
	assert.Empty(t, notifier.sent())
	assert.Equal(t, 1, m.Count())
}

func TestErrorMonitor_CountRestartsAfterAlert(t *testing.T) {
	m, notifier, _ := newTestMonitor(2, time.Hour)
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		m.RecordError(ctx, "boom")
	}
	assert.Len(t, notifier.sent(), 2)
}

func TestErrorMonitor_Defaults(t *testing.T) {
	m := NewErrorMonitor(0, 0, &recordingNotifier{}, &mockLogger{})
	assert.Equal(t, DefaultErrorThreshold, m.threshold)
	assert.Equal(t, DefaultErrorInterval, m.interval)
}

type stubFetcher struct {
	urls []string
	body []byte
	err  error
}

func (f *stubFetcher) Fetch(_ context.Context, url string, _ time.Duration) ([]byte, error) {
	f.urls = append(f.urls, url)
	return f.body, f.err
}

func TestPriceSource_BatchesOneRequest(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/coins/markets", r.URL.Path)
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currency"))
		assert.Equal(t, "nano,near", r.URL.Query().Get("ids"))
		_, _ = w.Write([]byte(`[{"id":"near","symbol":"near","current_price":2.15},{"id":"nano","current_price":0.9}]`))
	}))
	defer server.Close()

	f := apphttp.NewFetcher(retry.Policy{MaxAttempts: 1}, &mockLogger{})
	ps := NewPriceSource(f, server.URL+"/", "usd", time.Second, &mockLogger{})

	prices, err := ps.Prices(context.Background(), []string{"near", "nano", "near"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "2.15", prices["near"].String())
	assert.Equal(t, "0.9", prices["nano"].String())
	assert.False(t, ps.LastUpdate().IsZero())
}

func TestPriceSource_QuoteCurrencyIsOne(t *testing.T) {
	f := &stubFetcher{body: []byte(`[{"id":"tst","current_price":6}]`)}
	ps := NewPriceSource(f, "http://prices.local", "nano", time.Second, &mockLogger{})

	prices, err := ps.Prices(context.Background(), []string{"tst", "nano"})
	require.NoError(t, err)
	assert.Equal(t, "1", prices["nano"].String())
	require.Len(t, f.urls, 1)
	assert.NotContains(t, f.urls[0], "ids=nano")

	// nothing left to request
	f.urls = nil
	prices, err = ps.Prices(context.Background(), []string{"nano"})
	require.NoError(t, err)
	assert.Empty(t, f.urls)
	assert.Len(t, prices, 1)
}

func TestPriceSource_MissingAndNullPricesAbsent(t *testing.T) {
	f := &stubFetcher{body: []byte(`[{"id":"near","current_price":null},{"id":"other","current_price":3}]`)}
	ps := NewPriceSource(f, "http://prices.local", "usd", time.Second, &mockLogger{})

	prices, err := ps.Prices(context.Background(), []string{"near", "tst"})
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestPriceSource_MatchesIDsIgnoringCase(t *testing.T) {
	f := &stubFetcher{body: []byte(`[{"id":"near","current_price":2.15}]`)}
	ps := NewPriceSource(f, "http://prices.local", "usd", time.Second, &mockLogger{})

	prices, err := ps.Prices(context.Background(), []string{"NEAR", "USD"})
	require.NoError(t, err)
	require.Len(t, f.urls, 1)
	assert.Contains(t, f.urls[0], "ids=near")
	assert.Equal(t, "2.15", prices["NEAR"].String())
	assert.Equal(t, "1", prices["USD"].String())
}

func TestPriceSource_Errors(t *testing.T) {
	fetchErr := errors.New("fetch failed")
	ps := NewPriceSource(&stubFetcher{err: fetchErr}, "http://prices.local", "usd", time.Second, &mockLogger{})
	_, err := ps.Prices(context.Background(), []string{"near"})
	assert.ErrorIs(t, err, fetchErr)

	ps = NewPriceSource(&stubFetcher{body: []byte(`{"error":"rate limited"}`)}, "http://prices.local", "usd", time.Second, &mockLogger{})
	_, err = ps.Prices(context.Background(), []string{"near"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidResponse)
}
