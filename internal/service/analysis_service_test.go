package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aura-bot/internal/backend"
	"github.com/aura-bot/internal/config"
	"github.com/aura-bot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestFromChat_PendingNeverPersisted(t *testing.T) {
	for _, tc := range []struct {
		name    string
		err     error
		wantTyp models.MessageType
	}{
		{name: "success", wantTyp: models.MessageTypeAnalysis},
		{name: "failure", err: errBackendDown, wantTyp: models.MessageTypeText},
	} {
		t.Run(tc.name, func(t *testing.T) {
			svc := newServices(t)
			ctx := context.Background()
			svc.backend.analysis = sampleAnalysis("EURUSD")
			svc.backend.analysisErr = tc.err

			session, err := svc.sessions.CreateSession(ctx, testKey)
			require.NoError(t, err)

			var pendingID string
			obs := &pendingSpy{Collector: NewCollector(), onPending: func(p PendingAnalysis) {
				pendingID = p.ID
				assert.Equal(t, "Retrieving ORMCR analysis for EURUSD...", p.Text)
			}}
			svc.analysis.RequestFromChat(ctx, testKey, session.ID, "EURUSD", obs)

			require.NotEmpty(t, pendingID)
			assert.True(t, strings.HasPrefix(pendingID, "pending-"))
			assert.Equal(t, []string{pendingID}, obs.Settled())
			assert.Empty(t, obs.Pending())

			messages, err := svc.sessions.ListMessages(ctx, testKey, session.ID)
			require.NoError(t, err)
			require.Len(t, messages, 2)
			for _, m := range messages {
				assert.NotEqual(t, pendingID, m.ID)
				assert.NotContains(t, m.Text, "Retrieving")
			}
			assert.Equal(t, tc.wantTyp, messages[1].Type)
		})
	}
}

type pendingSpy struct {
	*Collector
	onPending func(PendingAnalysis)
}

func (p *pendingSpy) AnalysisPending(a PendingAnalysis) {
	p.onPending(a)
	p.Collector.AnalysisPending(a)
}

func TestRequestFromChat_MissingEntryPriceIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"symbol":"BTCUSD","confidence_score":70,"ai_suggestion":{"direction":"BUY"}}`))
	}))
	defer srv.Close()

	st := newTestStore(t)
	client := backend.NewClient(config.BackendConfig{BaseURL: srv.URL, Retries: 1}, nil)
	sessions := NewSessionService(st, nil)
	analysis := NewAnalysisService(st, sessions, client, nil)
	ctx := context.Background()

	session, err := sessions.CreateSession(ctx, testKey)
	require.NoError(t, err)

	obs := NewCollector()
	analysis.RequestFromChat(ctx, testKey, session.ID, "BTCUSD", obs)

	require.Len(t, obs.Alerts(), 1)
	messages, err := sessions.ListMessages(ctx, testKey, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, models.MessageTypeText, messages[1].Type)
	assert.Nil(t, messages[1].Analysis)
	assert.Contains(t, messages[1].Text, "BTCUSD")
}

func TestRequestFromChat_WithoutSessionDeliversLocally(t *testing.T) {
	svc := newServices(t)
	svc.backend.analysis = sampleAnalysis("XAUUSD")

	obs := NewCollector()
	svc.analysis.RequestFromChat(context.Background(), testKey, "", "XAUUSD", obs)

	local := obs.LocalMessages()
	require.Len(t, local, 1)
	assert.Equal(t, models.MessageTypeAnalysis, local[0].Type)
	assert.Equal(t, "XAUUSD", local[0].Analysis.Symbol)
	assert.Len(t, obs.Settled(), 1)
}

func TestRequestFromChat_EmptySymbolFails(t *testing.T) {
	svc := newServices(t)

	obs := NewCollector()
	svc.analysis.RequestFromChat(context.Background(), testKey, "", "", obs)

	assert.Empty(t, svc.backend.symbolRequests)
	require.Len(t, obs.LocalMessages(), 1)
	assert.Equal(t, models.MessageTypeText, obs.LocalMessages()[0].Type)
	assert.Len(t, obs.Alerts(), 1)
}

func TestAnalysisRun_NormalisesPair(t *testing.T) {
	svc := newServices(t)
	svc.backend.analysis = sampleAnalysis("GBPUSD")

	result, err := svc.analysis.Run(context.Background(), testKey, models.AnalysisParams{
		CurrencyPair: " gbpusd ",
		Timeframes:   []string{"M15", "H1"},
		TradeType:    models.TradeTypeIntraday,
	})
	require.NoError(t, err)
	assert.Equal(t, "GBPUSD", result.Symbol)
	require.Len(t, svc.backend.paramRequests, 1)
	assert.Equal(t, "GBPUSD", svc.backend.paramRequests[0].CurrencyPair)
}
