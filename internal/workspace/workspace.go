// Package workspace holds the state of one open dashboard: the user's session
// list, the active session and its messages, in-flight requests and the
// current view. Each WebSocket connection owns one Workspace.
package workspace

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/realtime"
	"github.com/aura-bot/internal/service"
	"github.com/aura-bot/internal/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// View is the dashboard tab being shown
type View string

const (
	ViewMarket   View = "market"
	ViewChat     View = "chat"
	ViewAnalysis View = "analysis"
	ViewJournal  View = "journal"
)

// DefaultLivePriceInterval is how often the analysis view's pair price is pushed
const DefaultLivePriceInterval = 10 * time.Second

var (
	ErrBusy        = errors.New("a request is already in progress")
	ErrInvalidView = errors.New("invalid view")
	ErrClosed      = errors.New("workspace closed")
)

// Valid reports whether v names a known view
func (v View) Valid() bool {
	switch v {
	case ViewMarket, ViewChat, ViewAnalysis, ViewJournal:
		return true
	}
	return false
}

// Deps are the services a workspace drives
type Deps struct {
	Store             *store.Store
	Sessions          *service.SessionService
	Chat              *service.ChatService
	Analysis          *service.AnalysisService
	Market            *service.MarketService
	Logger            *zap.Logger
	LivePriceInterval time.Duration
}

// Workspace is the server-side state of one dashboard. Its methods are safe
// for concurrent use. Events are delivered through the Emitter passed to New.
type Workspace struct {
	deps   Deps
	emit   Emitter
	logger *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// subMu serializes subscription changes; it is never taken while mu is held.
	subMu sync.Mutex

	mu          sync.Mutex
	closed      bool
	key         store.Key
	authReady   bool
	view        View
	historyOpen bool

	sessions        []models.ChatSession
	trades          []models.TradeLog
	activeSessionID string
	switchSeq       realtime.Seq
	messages        []models.ChatMessage
	localMessages   []models.ChatMessage
	pending         map[string]service.PendingAnalysis
	sending         bool

	analyzing    bool
	analysisPair string
	analysis     *models.AnalysisResult

	sessionsSub    *realtime.Subscription
	tradesSub      *realtime.Subscription
	messagesSub    *realtime.Subscription
	messagesFor    string
	marketSub      *realtime.Subscription
	stopLivePrices context.CancelFunc
}

// New creates a workspace showing the market view. It is inert until
// Start and SetIdentity are called.
func New(parent context.Context, deps Deps, emit Emitter) *Workspace {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.LivePriceInterval <= 0 {
		deps.LivePriceInterval = DefaultLivePriceInterval
	}
	ctx, cancel := context.WithCancel(parent)
	return &Workspace{
		deps:    deps,
		emit:    emit,
		logger:  deps.Logger,
		ctx:     ctx,
		cancel:  cancel,
		view:    ViewMarket,
		pending: make(map[string]service.PendingAnalysis),
	}
}

// Start attaches the workspace to the shared market feed
func (w *Workspace) Start() error {
	if w.deps.Market == nil {
		return nil
	}
	w.subMu.Lock()
	defer w.subMu.Unlock()

	sub, err := w.deps.Market.Watch(w.ctx, w.onMarket)
	if err != nil {
		return errors.Wrap(err, "watch market")
	}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		sub.Close()
		return ErrClosed
	}
	w.marketSub = sub
	w.mu.Unlock()
	return nil
}

// SetIdentity sets the signed-in user. The session list and the trade
// journal are subscribed while the store is available, the key is complete
// and auth is ready; otherwise they are unsubscribed and cleared.
func (w *Workspace) SetIdentity(key store.Key, authReady bool) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	changed := w.key != key || w.authReady != authReady
	w.key = key
	w.authReady = authReady
	w.mu.Unlock()

	if changed {
		w.syncSessionsSubscription()
	}
}

func (w *Workspace) ready() bool {
	return w.deps.Store != nil && w.key.Valid() && w.authReady
}

// syncSessionsSubscription tears down the current user-level subscriptions
// and establishes new ones for the current identity if it is ready.
func (w *Workspace) syncSessionsSubscription() {
	w.subMu.Lock()
	defer w.subMu.Unlock()

	w.mu.Lock()
	old, oldTrades := w.sessionsSub, w.tradesSub
	w.sessionsSub, w.tradesSub = nil, nil
	ready := w.ready() && !w.closed
	key := w.key
	w.mu.Unlock()

	old.Close()
	oldTrades.Close()

	if !ready {
		w.mu.Lock()
		w.sessions = nil
		w.trades = nil
		w.activeSessionID = ""
		w.emitSessionsLocked()
		w.emitTradesLocked()
		w.emitStateLocked(false)
		w.mu.Unlock()
		w.resubscribeMessagesLocked()
		return
	}

	w.subscribeTrades(key)

	sub, err := w.deps.Store.WatchSessions(w.ctx, key, func(sessions []models.ChatSession, at realtime.Seq) {
		w.onSessions(key, sessions, at)
	})
	if err != nil {
		w.logger.Warn("subscribe sessions failed", zap.String("user_id", key.UserID), zap.Error(err))
		w.Alert(service.Alert{Level: service.AlertError, Message: "Could not load your chat sessions."})
		return
	}

	w.mu.Lock()
	if w.closed || w.key != key {
		w.mu.Unlock()
		sub.Close()
		return
	}
	w.sessionsSub = sub
	w.emitStateLocked(false)
	w.mu.Unlock()
}

// onSessions replaces the session list. If the active session is not in the
// list, the newest session becomes active, or none when the list is empty. A
// list read before the last explicit switch cannot know the switched-to
// session, so it never moves the active session away from it.
func (w *Workspace) onSessions(key store.Key, sessions []models.ChatSession, at realtime.Seq) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.key != key {
		return
	}

	w.sessions = sessions
	active := w.activeSessionID
	if !containsSession(sessions, active) && (active == "" || at > w.switchSeq) {
		if len(sessions) > 0 {
			active = sessions[0].ID
		} else {
			active = ""
		}
	}
	w.emitSessionsLocked()

	if active != w.activeSessionID {
		w.activeSessionID = active
		w.localMessages = nil
		w.emitStateLocked(false)
	}
	if w.activeSessionID != w.messagesFor {
		w.goLocked(w.resubscribeMessages)
	}
}

// subscribeTrades watches the trade journal. A failure leaves the journal
// empty without affecting chat. Callers hold subMu.
func (w *Workspace) subscribeTrades(key store.Key) {
	sub, err := w.deps.Store.WatchTradeLogs(w.ctx, key, func(trades []models.TradeLog) {
		w.onTrades(key, trades)
	})
	if err != nil {
		w.logger.Warn("subscribe trade logs failed", zap.String("user_id", key.UserID), zap.Error(err))
		w.Alert(service.Alert{Level: service.AlertError, Message: "Could not load your trade journal."})
		return
	}

	w.mu.Lock()
	if w.closed || w.key != key {
		w.mu.Unlock()
		sub.Close()
		return
	}
	w.tradesSub = sub
	w.mu.Unlock()
}

func (w *Workspace) onTrades(key store.Key, trades []models.TradeLog) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.key != key {
		return
	}
	w.trades = trades
	w.emitTradesLocked()
}

func containsSession(sessions []models.ChatSession, id string) bool {
	if id == "" {
		return false
	}
	for i := range sessions {
		if sessions[i].ID == id {
			return true
		}
	}
	return false
}

func (w *Workspace) resubscribeMessages() {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	w.resubscribeMessagesLocked()
}

// resubscribeMessagesLocked points the messages subscription at the current
// active session. The previous subscription is closed before the next one
// starts. Callers hold subMu.
func (w *Workspace) resubscribeMessagesLocked() {
	w.mu.Lock()
	sessionID := w.activeSessionID
	if sessionID == w.messagesFor && (sessionID == "" || w.messagesSub != nil) {
		w.mu.Unlock()
		return
	}
	old := w.messagesSub
	w.messagesSub = nil
	w.messagesFor = ""
	w.messages = nil
	key := w.key
	ready := w.ready() && !w.closed
	w.mu.Unlock()

	old.Close()

	if !ready || sessionID == "" {
		w.mu.Lock()
		w.emitMessagesLocked()
		w.mu.Unlock()
		return
	}

	sub, err := w.deps.Store.WatchMessages(w.ctx, key, sessionID, func(messages []models.ChatMessage) {
		w.onMessages(sessionID, messages)
	})
	if err != nil {
		w.logger.Warn("subscribe messages failed", zap.String("session_id", sessionID), zap.Error(err))
		w.Alert(service.Alert{Level: service.AlertError, Message: "Could not load messages for this chat."})
		return
	}

	w.mu.Lock()
	if w.closed || w.activeSessionID != sessionID {
		w.mu.Unlock()
		sub.Close()
		// the active session moved on while subscribing
		w.mu.Lock()
		if !w.closed {
			w.goLocked(w.resubscribeMessages)
		}
		w.mu.Unlock()
		return
	}
	w.messagesSub = sub
	w.messagesFor = sessionID
	w.mu.Unlock()
}

func (w *Workspace) onMessages(sessionID string, messages []models.ChatMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.activeSessionID != sessionID {
		return
	}
	w.messages = messages
	w.emitMessagesLocked()
}

func (w *Workspace) onMarket(snapshot models.MarketSnapshot) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || w.view != ViewMarket {
		return
	}
	w.emitLocked(EventMarket, snapshot)
}

// CreateSession creates a session and makes it active
func (w *Workspace) CreateSession(ctx context.Context) (string, error) {
	w.mu.Lock()
	ready := w.ready() && !w.closed
	key := w.key
	w.mu.Unlock()
	if !ready || w.deps.Sessions == nil {
		w.Alert(service.Alert{Level: service.AlertWarning, Message: "Service not ready. Please wait a moment and try again."})
		return "", service.ErrNotReady
	}

	session, err := w.deps.Sessions.CreateSession(ctx, key)
	if err != nil {
		w.logger.Error("create session failed", zap.String("user_id", key.UserID), zap.Error(err))
		w.Alert(service.Alert{Level: service.AlertError, Message: "Could not create a new chat."})
		return "", err
	}

	w.SwitchSession(session.ID)
	return session.ID, nil
}

// SwitchSession makes id the active session. The id is not checked; the next
// session list read after the switch corrects an unknown id.
func (w *Workspace) SwitchSession(id string) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.activeSessionID = id
	w.switchSeq = realtime.NextSeq()
	w.historyOpen = false
	w.localMessages = nil
	w.emitStateLocked(true)
	w.mu.Unlock()

	w.resubscribeMessages()
}

// SendMessage sends a user turn in the active session. An empty text send
// is ignored. The send runs in the background; at most one is in flight.
func (w *Workspace) SendMessage(text string, voice bool, audio []byte, contentType string) error {
	if !voice && strings.TrimSpace(text) == "" {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if !w.ready() || w.activeSessionID == "" || w.deps.Chat == nil {
		w.alertLocked(service.Alert{Level: service.AlertWarning, Message: "Service not ready. Please select or create a chat first."})
		return service.ErrNotReady
	}
	if w.sending {
		return ErrBusy
	}

	req := service.SendRequest{
		Key:              w.key,
		SessionID:        w.activeSessionID,
		Text:             text,
		Voice:            voice,
		Audio:            audio,
		AudioContentType: contentType,
	}
	w.sending = true
	w.emitStateLocked(true)

	w.goLocked(func() {
		defer func() {
			w.mu.Lock()
			w.sending = false
			w.emitStateLocked(false)
			w.mu.Unlock()
		}()

		if _, err := w.deps.Chat.SendMessage(w.ctx, req, w); err != nil {
			if w.ctx.Err() != nil {
				return
			}
			w.logger.Warn("send message failed", zap.String("session_id", req.SessionID), zap.Error(err))
			w.Alert(service.Alert{Level: service.AlertError, Message: "Failed to send message: " + service.FailureReason(err)})
		}
	})
	return nil
}

// RequestAnalysis runs a user-initiated analysis; the result becomes the
// analysis view's state.
func (w *Workspace) RequestAnalysis(params models.AnalysisParams) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	if !w.ready() || w.deps.Analysis == nil {
		w.alertLocked(service.Alert{Level: service.AlertWarning, Message: "Service not ready. Please wait a moment and try again."})
		return service.ErrNotReady
	}
	if w.analyzing {
		return ErrBusy
	}

	key := w.key
	w.analyzing = true
	w.analysisPair = params.CurrencyPair
	w.analysis = nil
	w.emitStateLocked(false)
	w.syncLivePricesLocked()

	w.goLocked(func() {
		result, err := w.deps.Analysis.Run(w.ctx, key, params)

		w.mu.Lock()
		defer w.mu.Unlock()
		if w.closed {
			return
		}
		w.analyzing = false
		if err != nil {
			w.alertLocked(service.Alert{Level: service.AlertError, Message: "Analysis failed: " + service.FailureReason(err)})
		} else {
			w.analysis = result
			w.emitLocked(EventAnalysis, result)
		}
		w.emitStateLocked(false)
	})
	return nil
}

// SetView switches the dashboard tab
func (w *Workspace) SetView(view View) error {
	if !view.Valid() {
		return ErrInvalidView
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.view = view
	w.emitStateLocked(false)
	if view == ViewMarket && w.deps.Market != nil {
		w.emitLocked(EventMarket, w.deps.Market.Snapshot())
	}
	w.syncLivePricesLocked()
	return nil
}

// ToggleHistory opens or closes the session history overlay
func (w *Workspace) ToggleHistory() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.historyOpen = !w.historyOpen
	w.emitStateLocked(false)
}

// syncLivePricesLocked runs the live price ticker only while the analysis
// view has a pair selected.
func (w *Workspace) syncLivePricesLocked() {
	if w.stopLivePrices != nil {
		w.stopLivePrices()
		w.stopLivePrices = nil
	}
	if w.closed || w.view != ViewAnalysis || w.analysisPair == "" || w.deps.Market == nil {
		return
	}

	ctx, cancel := context.WithCancel(w.ctx)
	w.stopLivePrices = cancel
	pair := w.analysisPair
	w.goLocked(func() { w.livePriceLoop(ctx, pair) })
}

func (w *Workspace) livePriceLoop(ctx context.Context, pair string) {
	ticker := time.NewTicker(w.deps.LivePriceInterval)
	defer ticker.Stop()

	w.pushLivePrice(ctx, pair)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pushLivePrice(ctx, pair)
		}
	}
}

func (w *Workspace) pushLivePrice(ctx context.Context, pair string) {
	data, ok := w.deps.Market.Price(pair)
	if !ok {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || ctx.Err() != nil {
		return
	}
	w.emitLocked(EventLivePrice, LivePrice{Pair: pair, Data: data})
}

// goLocked runs fn on a tracked goroutine. Callers hold mu and have checked
// that the workspace is open, so Close never races the Add.
func (w *Workspace) goLocked(fn func()) {
	if w.closed {
		return
	}
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		fn()
	}()
}

// Close cancels in-flight work, tears down every subscription and waits for
// background goroutines. Later events are dropped.
func (w *Workspace) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	if w.stopLivePrices != nil {
		w.stopLivePrices()
		w.stopLivePrices = nil
	}
	w.mu.Unlock()

	w.cancel()

	w.subMu.Lock()
	w.mu.Lock()
	subs := []*realtime.Subscription{w.sessionsSub, w.tradesSub, w.messagesSub, w.marketSub}
	w.sessionsSub, w.tradesSub, w.messagesSub, w.marketSub = nil, nil, nil, nil
	w.mu.Unlock()
	for _, sub := range subs {
		sub.Close()
	}
	w.subMu.Unlock()

	w.wg.Wait()
}

// Alert implements service.Observer
func (w *Workspace) Alert(alert service.Alert) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.alertLocked(alert)
}

func (w *Workspace) alertLocked(alert service.Alert) {
	if w.closed {
		return
	}
	w.emitLocked(EventAlert, alert)
}

// AnalysisPending implements service.Observer
func (w *Workspace) AnalysisPending(p service.PendingAnalysis) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.pending[p.ID] = p
	w.emitPendingLocked()
}

// AnalysisSettled implements service.Observer
func (w *Workspace) AnalysisSettled(id string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	delete(w.pending, id)
	w.emitPendingLocked()
}

// LocalMessage implements service.Observer
func (w *Workspace) LocalMessage(msg models.ChatMessage) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.localMessages = append(w.localMessages, msg)
	w.emitMessagesLocked()
}
