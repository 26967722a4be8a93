package workspace

import (
	"sort"

	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/realtime"
	"github.com/aura-bot/internal/service"
)

// Event types pushed to the dashboard
const (
	EventState     = "state"
	EventSessions  = "sessions"
	EventTrades    = "trades"
	EventMessages  = "messages"
	EventPending   = "pending"
	EventAnalysis  = "analysis"
	EventMarket    = "market"
	EventLivePrice = "live_price"
	EventAlert     = "alert"
)

// Event is one server-to-dashboard message
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Emitter delivers events in order. It is called with the workspace lock
// held and must not call back into the workspace.
type Emitter func(Event)

// State is the dashboard's control state
type State struct {
	View                 View   `json:"view"`
	ActiveSessionID      string `json:"activeSessionId,omitempty"`
	Sending              bool   `json:"sending"`
	Analyzing            bool   `json:"analyzing"`
	AnalysisPair         string `json:"analysisPair,omitempty"`
	HistoryOpen          bool   `json:"historyOpen"`
	SessionsSubscription string `json:"sessionsSubscription"`
	// ResetInput tells the dashboard to clear its message input
	ResetInput bool `json:"resetInput,omitempty"`
}

// SessionList is the payload of a sessions event
type SessionList struct {
	Sessions        []models.ChatSession `json:"sessions"`
	ActiveSessionID string               `json:"activeSessionId,omitempty"`
}

// TradeList is the payload of a trades event
type TradeList struct {
	Trades []models.TradeLog `json:"trades"`
}

// MessageList is the payload of a messages event. Local messages were
// delivered without being persisted and follow the persisted ones.
type MessageList struct {
	SessionID string               `json:"sessionId,omitempty"`
	Messages  []models.ChatMessage `json:"messages"`
}

// LivePrice is the payload of a live_price event
type LivePrice struct {
	Pair string            `json:"pair"`
	Data models.MarketData `json:"data"`
}

func (w *Workspace) emitLocked(typ string, data interface{}) {
	if w.closed || w.emit == nil {
		return
	}
	w.emit(Event{Type: typ, Data: data})
}

func (w *Workspace) stateLocked() State {
	subState := realtime.Unsubscribed
	if w.sessionsSub != nil {
		subState = w.sessionsSub.State()
	}
	return State{
		View:                 w.view,
		ActiveSessionID:      w.activeSessionID,
		Sending:              w.sending,
		Analyzing:            w.analyzing,
		AnalysisPair:         w.analysisPair,
		HistoryOpen:          w.historyOpen,
		SessionsSubscription: subState.String(),
	}
}

func (w *Workspace) emitStateLocked(resetInput bool) {
	state := w.stateLocked()
	state.ResetInput = resetInput
	w.emitLocked(EventState, state)
}

func (w *Workspace) emitSessionsLocked() {
	sessions := append([]models.ChatSession(nil), w.sessions...)
	w.emitLocked(EventSessions, SessionList{Sessions: sessions, ActiveSessionID: w.activeSessionID})
}

func (w *Workspace) emitTradesLocked() {
	w.emitLocked(EventTrades, TradeList{Trades: append([]models.TradeLog(nil), w.trades...)})
}

func (w *Workspace) emitMessagesLocked() {
	w.emitLocked(EventMessages, MessageList{SessionID: w.activeSessionID, Messages: w.messageViewLocked()})
}

func (w *Workspace) messageViewLocked() []models.ChatMessage {
	out := make([]models.ChatMessage, 0, len(w.messages)+len(w.localMessages))
	out = append(out, w.messages...)
	out = append(out, w.localMessages...)
	return out
}

func (w *Workspace) emitPendingLocked() {
	w.emitLocked(EventPending, w.pendingLocked())
}

func (w *Workspace) pendingLocked() []service.PendingAnalysis {
	out := make([]service.PendingAnalysis, 0, len(w.pending))
	for _, p := range w.pending {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot is a point-in-time copy of a workspace
type Snapshot struct {
	State
	Sessions []models.ChatSession
	Trades   []models.TradeLog
	Messages []models.ChatMessage
	Pending  []service.PendingAnalysis
	Analysis *models.AnalysisResult
}

// Snapshot returns the current state of the workspace
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	return Snapshot{
		State:    w.stateLocked(),
		Sessions: append([]models.ChatSession(nil), w.sessions...),
		Trades:   append([]models.TradeLog(nil), w.trades...),
		Messages: w.messageViewLocked(),
		Pending:  w.pendingLocked(),
		Analysis: w.analysis,
	}
}
