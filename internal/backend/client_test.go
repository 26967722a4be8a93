package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aura-bot/internal/config"
	"github.com/aura-bot/internal/models"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(config.BackendConfig{BaseURL: srv.URL, Timeout: 5 * time.Second, Retries: 3}, nil)
	c.SetBackoffUnit(time.Millisecond)
	return c
}

func TestFetchWithRetry_StopsAfterNAttempts(t *testing.T) {
	var attempts int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	for _, n := range []int{1, 3, 5} {
		atomic.StoreInt32(&attempts, 0)
		_, err := c.FetchWithRetry(context.Background(), http.MethodGet, PathMarketPrices, nil, n)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrRequestFailed)
		assert.Equal(t, int32(n), atomic.LoadInt32(&attempts))
	}
}

func TestFetchWithRetry_SucceedsOnLaterAttemptWithSameKey(t *testing.T) {
	var (
		mu   sync.Mutex
		keys []string
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		keys = append(keys, r.Header.Get(HeaderIdempotency))
		n := len(keys)
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"response":"ok"}`))
	})

	reply, err := c.Chat(context.Background(), &ChatRequest{Message: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)

	require.Len(t, keys, 3)
	assert.NotEmpty(t, keys[0])
	assert.Equal(t, keys[0], keys[1])
	assert.Equal(t, keys[0], keys[2])
}

func TestFetchWithRetry_LinearBackoff(t *testing.T) {
	var (
		mu    sync.Mutex
		times []time.Time
	)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		times = append(times, time.Now())
		mu.Unlock()
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	c.SetBackoffUnit(20 * time.Millisecond)

	_, err := c.FetchWithRetry(context.Background(), http.MethodGet, "/", nil, 3)
	require.Error(t, err)
	require.Len(t, times, 3)
	assert.GreaterOrEqual(t, times[1].Sub(times[0]), 20*time.Millisecond)
	assert.GreaterOrEqual(t, times[2].Sub(times[1]), 40*time.Millisecond)
}

func TestFetchWithRetry_ContextCancelStopsRetrying(t *testing.T) {
	var attempts int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	c.SetBackoffUnit(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.FetchWithRetry(ctx, http.MethodGet, "/", nil, 3)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, "the request timed out", Reason(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestChat_SendsHistoryPayload(t *testing.T) {
	var got ChatRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, PathChat, r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		assert.NoError(t, json.Unmarshal(body, &got))
		_, _ = w.Write([]byte(`{"response":"hello back"}`))
	})

	_, err := c.Chat(context.Background(), &ChatRequest{
		SessionID:   "s1",
		UserID:      "u1",
		Message:     "hello",
		MessageType: "text",
		ChatHistory: []HistoryEntry{{Role: "model", Text: "greeting"}, {Role: "user", Text: "hello"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Len(t, got.ChatHistory, 2)
	assert.Empty(t, got.AudioData)
}

func TestChat_MissingResponseIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"answer":"wrong field"}`))
	})
	_, err := c.Chat(context.Background(), &ChatRequest{})
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestRunSymbolAnalysis(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, map[string]interface{}{"symbol": "BTCUSD", "userId": "u1"}, body)
		_, _ = w.Write([]byte(`{"symbol":"BTCUSD","ai_suggestion":{"entry_price":64000.5}}`))
	})

	result, err := c.RunSymbolAnalysis(context.Background(), "BTCUSD", "u1")
	require.NoError(t, err)
	assert.Equal(t, "64000.5", result.AISuggestion.EntryPrice.String())
}

func TestRunAnalysis_SendsFullParameterSet(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body map[string]interface{}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "EURUSD", body["currencyPair"])
		assert.Equal(t, "u1", body["userId"])
		assert.Len(t, body["timeframes"], 2)
		_, _ = w.Write([]byte(`{"symbol":"EURUSD","ai_suggestion":{"entry_price":"1.085"}}`))
	})

	_, err := c.RunAnalysis(context.Background(), models.AnalysisParams{
		CurrencyPair: "EURUSD",
		Timeframes:   []string{"M15", "H1"},
		TradeType:    models.TradeTypeIntraday,
		Leverage:     100,
	}, "u1")
	require.NoError(t, err)
}

func TestRunAnalysis_MissingEntryPriceIsMalformed(t *testing.T) {
	var attempts int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		_, _ = w.Write([]byte(`{"symbol":"EURUSD","ai_suggestion":{"direction":"BUY"}}`))
	})
	_, err := c.RunSymbolAnalysis(context.Background(), "EURUSD", "u1")
	assert.ErrorIs(t, err, ErrMalformedResponse)
	assert.Equal(t, int32(1), atomic.LoadInt32(&attempts), "a 2xx response is not retried")
}

func TestMarketPrices(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		_, _ = w.Write([]byte(`{"EURUSD":{"price":1.09,"percent_change":0.1,"rsi":50,"macd":0,"stoch_k":40,"volume":10,"orscr_signal":"BUY"}}`))
	})
	prices, err := c.MarketPrices(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "BUY", prices["EURUSD"].ORSCRSignal)
}

func TestParseDirective(t *testing.T) {
	tests := []struct {
		reply  string
		symbol string
		found  bool
	}{
		{"Let me check that. ORMCR_ANALYSIS_REQUESTED: BTCUSD", "BTCUSD", true},
		{"ORMCR_ANALYSIS_REQUESTED:EURUSD\n", "EURUSD", true},
		{"ORMCR_ANALYSIS_REQUESTED:   ", "", true},
		{"EURUSD looks bullish today.", "", false},
	}
	for _, tt := range tests {
		symbol, found := ParseDirective(tt.reply)
		assert.Equal(t, tt.found, found, tt.reply)
		assert.Equal(t, tt.symbol, symbol, tt.reply)
	}
}

func TestReason_HidesResponseBody(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"trace":"db password=hunter2"}`))
	})

	_, err := c.FetchWithRetry(context.Background(), http.MethodGet, PathMarketPrices, nil, 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Contains(t, err.Error(), "hunter2")

	var status *StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusInternalServerError, status.StatusCode)

	reason := Reason(err)
	assert.Equal(t, "the service returned HTTP 500", reason)
	assert.NotContains(t, reason, "hunter2")
}

func TestReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"malformed", errors.Wrap(ErrMalformedResponse, "chat: missing response field"), "the service sent an incomplete response"},
		{"unreachable", &RequestError{Method: "GET", Path: "/", Attempts: 3, Err: errors.New("connection refused")}, "the service is unreachable"},
		{"timeout", &RequestError{Method: "GET", Path: "/", Attempts: 1, Err: context.DeadlineExceeded}, "the request timed out"},
		{"other", errors.New("boom"), "an unexpected error occurred"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Reason(tt.err))
		})
	}
}
