package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aura-bot/internal/backend"
	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/realtime"
	"github.com/aura-bot/internal/store"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

var testKey = store.Key{AppID: "app", UserID: "u1"}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st := store.New(store.NewMemoryDocuments(), realtime.NewLocalBroker(), nil)
	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	tick := 0
	st.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	})
	return st
}

// fakeBackend implements ChatBackend, AnalysisBackend and MarketBackend
type fakeBackend struct {
	mu sync.Mutex

	chatReply string
	chatErr   error
	chatReqs  []*backend.ChatRequest

	analysis       *models.AnalysisResult
	analysisErr    error
	symbolRequests []string
	paramRequests  []models.AnalysisParams

	prices    map[string]models.MarketData
	pricesErr error
}

func (f *fakeBackend) Chat(_ context.Context, req *backend.ChatRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.chatReqs = append(f.chatReqs, req)
	return f.chatReply, f.chatErr
}

func (f *fakeBackend) RunSymbolAnalysis(_ context.Context, symbol, _ string) (*models.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.symbolRequests = append(f.symbolRequests, symbol)
	return f.analysis, f.analysisErr
}

func (f *fakeBackend) RunAnalysis(_ context.Context, params models.AnalysisParams, _ string) (*models.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paramRequests = append(f.paramRequests, params)
	return f.analysis, f.analysisErr
}

func (f *fakeBackend) MarketPrices(context.Context) (map[string]models.MarketData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prices, f.pricesErr
}

func sampleAnalysis(symbol string) *models.AnalysisResult {
	entry := decimal.RequireFromString("64000.5")
	return &models.AnalysisResult{
		Symbol:                  symbol,
		ConfidenceScore:         decimal.NewFromInt(82),
		SignalStrength:          "Strong",
		ORMCRConfirmationStatus: models.StrongConfirmation,
		AISuggestion:            &models.AISuggestion{EntryPrice: &entry, Direction: "BUY"},
	}
}

var errBackendDown = &backend.RequestError{Method: "POST", Path: backend.PathChat, Attempts: 3, Err: errors.New("connection refused")}

type services struct {
	store    *store.Store
	backend  *fakeBackend
	sessions *SessionService
	analysis *AnalysisService
	chat     *ChatService
}

func newServices(t *testing.T) *services {
	t.Helper()
	st := newTestStore(t)
	fb := &fakeBackend{}
	sessions := NewSessionService(st, nil)
	analysis := NewAnalysisService(st, sessions, fb, nil)
	return &services{
		store:    st,
		backend:  fb,
		sessions: sessions,
		analysis: analysis,
		chat:     NewChatService(st, sessions, analysis, fb, nil),
	}
}
