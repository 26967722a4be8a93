package models

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pkg/errors"
)

const (
	// GenericSessionPrefix marks a session that has not been named from user input yet
	GenericSessionPrefix = "New Chat"
	// SessionNameMaxRunes is the length of the user-text prefix used as a session name
	SessionNameMaxRunes = 30
	sessionNameEllipsis = "..."

	GreetingText = "Hello! I'm Aura, your AI trading assistant. Ask me about the markets, " +
		"or ask for an ORMCR analysis of any pair."
)

var ErrInvalidContent = errors.New("message content does not match its type")

// Sender identifies the author of a chat message
type Sender string

const (
	SenderUser Sender = "user"
	SenderAI   Sender = "ai"
)

// MessageType is the tag of the message content variant
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeAudio    MessageType = "audio"
	MessageTypeAnalysis MessageType = "analysis"
)

// ChatSession is a named container of messages owned by one user
type ChatSession struct {
	ID     string `gorm:"primaryKey;size:64" json:"id"`
	AppID  string `gorm:"index:idx_sessions_owner;size:100;not null" json:"-"`
	UserID string `gorm:"index:idx_sessions_owner;size:64;not null" json:"-"`
	Name   string `gorm:"size:100;not null" json:"name"`
	// Named is set once the name was derived from a user message
	Named                bool       `gorm:"not null;default:false" json:"named"`
	CreatedAt            time.Time  `json:"createdAt"`
	LastMessageText      string     `gorm:"type:text" json:"lastMessageText"`
	LastMessageTimestamp *time.Time `json:"lastMessageTimestamp,omitempty"`
}

// TableName specifies the table name for ChatSession model
func (ChatSession) TableName() string {
	return "chat_sessions"
}

// HasGenericName reports whether the session still carries its creation-time name
func (s *ChatSession) HasGenericName() bool {
	return !s.Named
}

// GenericSessionName is the name given to a session at creation
func GenericSessionName(at time.Time) string {
	return GenericSessionPrefix + " " + at.Format("Jan 2, 2006")
}

// DeriveSessionName builds a display name from the first substantive user message
func DeriveSessionName(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= SessionNameMaxRunes {
		return text
	}
	runes := []rune(text)
	return string(runes[:SessionNameMaxRunes]) + sessionNameEllipsis
}

// ChatMessage is one turn of a session.
//
// ID is generated by the client and is distinct from DocID, the store key.
type ChatMessage struct {
	DocID     uint            `gorm:"primaryKey" json:"-"`
	ID        string          `gorm:"column:client_id;size:64;index" json:"id"`
	SessionID string          `gorm:"index;size:64;not null" json:"sessionId"`
	AppID     string          `gorm:"size:100;not null" json:"-"`
	UserID    string          `gorm:"size:64;not null" json:"-"`
	Sender    Sender          `gorm:"size:10;not null" json:"sender"`
	Text      string          `gorm:"type:text" json:"text"`
	Type      MessageType     `gorm:"size:20;not null" json:"type"`
	AudioURL  *string         `gorm:"size:255" json:"audioUrl,omitempty"`
	Analysis  *AnalysisResult `gorm:"type:jsonb;serializer:json" json:"analysis,omitempty"`
	Timestamp time.Time       `gorm:"index" json:"timestamp"`
}

// TableName specifies the table name for ChatMessage model
func (ChatMessage) TableName() string {
	return "chat_messages"
}

// Content is the closed set of message payloads
type Content interface {
	messageType() MessageType
}

type TextContent struct {
	Text string
}

type AudioContent struct {
	Text string
	URL  string
}

type AnalysisContent struct {
	Text   string
	Result *AnalysisResult
}

func (TextContent) messageType() MessageType     { return MessageTypeText }
func (AudioContent) messageType() MessageType    { return MessageTypeAudio }
func (AnalysisContent) messageType() MessageType { return MessageTypeAnalysis }

// NewMessage builds a message whose optional fields follow the content variant
func NewMessage(id string, sender Sender, content Content) *ChatMessage {
	msg := &ChatMessage{ID: id, Sender: sender, Type: content.messageType()}
	switch c := content.(type) {
	case TextContent:
		msg.Text = c.Text
	case AudioContent:
		msg.Text = c.Text
		url := c.URL
		msg.AudioURL = &url
	case AnalysisContent:
		msg.Text = c.Text
		msg.Analysis = c.Result
	}
	return msg
}

// Content returns the payload variant, or ErrInvalidContent when the optional
// fields disagree with Type.
func (m *ChatMessage) Content() (Content, error) {
	switch m.Type {
	case MessageTypeText:
		if m.AudioURL != nil || m.Analysis != nil {
			return nil, ErrInvalidContent
		}
		return TextContent{Text: m.Text}, nil
	case MessageTypeAudio:
		if m.AudioURL == nil || m.Analysis != nil {
			return nil, ErrInvalidContent
		}
		return AudioContent{Text: m.Text, URL: *m.AudioURL}, nil
	case MessageTypeAnalysis:
		if m.Analysis == nil || m.AudioURL != nil {
			return nil, ErrInvalidContent
		}
		return AnalysisContent{Text: m.Text, Result: m.Analysis}, nil
	default:
		return nil, errors.Wrapf(ErrInvalidContent, "unknown type %q", m.Type)
	}
}

// HistoryRole maps the sender to the role name the chat backend expects
func (m *ChatMessage) HistoryRole() string {
	if m.Sender == SenderUser {
		return "user"
	}
	return "model"
}
