package service

import (
	"sync"

	"github.com/aura-bot/internal/backend"
	"github.com/aura-bot/internal/models"
	"github.com/pkg/errors"
)

var (
	// ErrNotReady means a precondition (store, user, auth, session) is unmet
	ErrNotReady = errors.New("service not ready")
	// ErrEmptyMessage is returned for a text send with no content
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNoSymbol means an analysis directive named no symbol
	ErrNoSymbol = errors.New("the assistant did not name a symbol")
)

// FailureReason is the short form of err shown in chat messages and alerts
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrNotReady):
		return "the service is not ready"
	case errors.Is(err, ErrEmptyMessage), errors.Is(err, ErrNoSymbol):
		return errors.Cause(err).Error()
	default:
		return backend.Reason(err)
	}
}

// AlertLevel is the severity of a user-facing alert
type AlertLevel string

const (
	AlertInfo    AlertLevel = "info"
	AlertWarning AlertLevel = "warning"
	AlertError   AlertLevel = "error"
)

// Alert is a non-blocking notice shown to the user
type Alert struct {
	Level   AlertLevel `json:"level"`
	Message string     `json:"message"`
}

// PendingAnalysis describes an in-flight AI-initiated analysis. It is shown
// in place of a placeholder message and never persisted.
type PendingAnalysis struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId,omitempty"`
	Symbol    string `json:"symbol"`
	Text      string `json:"text"`
}

// Observer receives the side effects of chat and analysis requests that are
// not persisted messages.
type Observer interface {
	Alert(alert Alert)
	AnalysisPending(p PendingAnalysis)
	AnalysisSettled(id string)
	// LocalMessage delivers a message when there is no persisted session
	LocalMessage(msg models.ChatMessage)
}

// Collector is an Observer that records everything it receives. HTTP
// handlers use it to return side effects in the response body.
type Collector struct {
	mu       sync.Mutex
	alerts   []Alert
	pending  map[string]PendingAnalysis
	settled  []string
	messages []models.ChatMessage
}

// NewCollector creates a new Collector
func NewCollector() *Collector {
	return &Collector{pending: make(map[string]PendingAnalysis)}
}

func (c *Collector) Alert(alert Alert) {
	c.mu.Lock()
	c.alerts = append(c.alerts, alert)
	c.mu.Unlock()
}

func (c *Collector) AnalysisPending(p PendingAnalysis) {
	c.mu.Lock()
	c.pending[p.ID] = p
	c.mu.Unlock()
}

func (c *Collector) AnalysisSettled(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.settled = append(c.settled, id)
	c.mu.Unlock()
}

func (c *Collector) LocalMessage(msg models.ChatMessage) {
	c.mu.Lock()
	c.messages = append(c.messages, msg)
	c.mu.Unlock()
}

// Alerts returns the recorded alerts
func (c *Collector) Alerts() []Alert {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Alert(nil), c.alerts...)
}

// Pending returns the analyses started but not yet settled
func (c *Collector) Pending() []PendingAnalysis {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]PendingAnalysis, 0, len(c.pending))
	for _, p := range c.pending {
		out = append(out, p)
	}
	return out
}

// Settled returns the ids of settled analyses in settlement order
func (c *Collector) Settled() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.settled...)
}

// LocalMessages returns the messages delivered without a session
func (c *Collector) LocalMessages() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.ChatMessage(nil), c.messages...)
}
