package service

import (
	"context"
	"encoding/base64"
	"testing"

	"github.com/aura-bot/internal/backend"
	"github.com/aura-bot/internal/models"
	"github.com/aura-bot/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendMessage_NamesSessionAndPersistsReply(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	svc.backend.chatReply = "Hi there, how can I help?"

	session, err := svc.sessions.CreateSession(ctx, testKey)
	require.NoError(t, err)

	obs := NewCollector()
	result, err := svc.chat.SendMessage(ctx, SendRequest{Key: testKey, SessionID: session.ID, Text: "  Hello "}, obs)
	require.NoError(t, err)
	require.NotNil(t, result.Reply)
	assert.Empty(t, obs.Alerts())

	got, err := svc.sessions.GetSession(ctx, testKey, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Name)
	assert.Equal(t, "Hi there, how can I help?", got.LastMessageText)

	messages, err := svc.sessions.ListMessages(ctx, testKey, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, models.SenderAI, messages[0].Sender)
	assert.Equal(t, "Hello", messages[1].Text)
	assert.Equal(t, models.SenderUser, messages[1].Sender)
	assert.Equal(t, "Hi there, how can I help?", messages[2].Text)

	require.Len(t, svc.backend.chatReqs, 1)
	req := svc.backend.chatReqs[0]
	assert.Equal(t, session.ID, req.SessionID)
	assert.Equal(t, testKey.UserID, req.UserID)
	assert.Equal(t, "text", req.MessageType)
	assert.Equal(t, []backend.HistoryEntry{
		{Role: "model", Text: models.GreetingText},
		{Role: "user", Text: "Hello"},
	}, req.ChatHistory)
	assert.Empty(t, req.AudioData)
}

func TestSendMessage_EmptyTextIsNoop(t *testing.T) {
	svc := newServices(t)

	_, err := svc.chat.SendMessage(context.Background(), SendRequest{Key: testKey, SessionID: "s", Text: "   "}, NewCollector())
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Empty(t, svc.backend.chatReqs)
}

func TestSendMessage_NotReadyWithoutSession(t *testing.T) {
	svc := newServices(t)

	_, err := svc.chat.SendMessage(context.Background(), SendRequest{Key: testKey, Text: "hi"}, NewCollector())
	assert.ErrorIs(t, err, ErrNotReady)

	_, err = svc.chat.SendMessage(context.Background(), SendRequest{Key: store.Key{}, SessionID: "s", Text: "hi"}, NewCollector())
	assert.ErrorIs(t, err, ErrNotReady)
}

func TestSendMessage_DirectiveRequestsAnalysisInsteadOfText(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	svc.backend.chatReply = "Let me check that for you. ORMCR_ANALYSIS_REQUESTED: BTCUSD"
	svc.backend.analysis = sampleAnalysis("BTCUSD")

	session, err := svc.sessions.CreateSession(ctx, testKey)
	require.NoError(t, err)

	obs := NewCollector()
	result, err := svc.chat.SendMessage(ctx, SendRequest{Key: testKey, SessionID: session.ID, Text: "Analyse bitcoin"}, obs)
	require.NoError(t, err)
	assert.Nil(t, result.Reply)
	assert.Equal(t, "BTCUSD", result.AnalysisSymbol)
	assert.Equal(t, []string{"BTCUSD"}, svc.backend.symbolRequests)

	messages, err := svc.sessions.ListMessages(ctx, testKey, session.ID)
	require.NoError(t, err)
	for _, m := range messages {
		if m.Sender == models.SenderAI {
			assert.NotContains(t, m.Text, backend.AnalysisDirective)
		}
	}
	last := messages[len(messages)-1]
	assert.Equal(t, models.MessageTypeAnalysis, last.Type)
	require.NotNil(t, last.Analysis)
	assert.Equal(t, "BTCUSD", last.Analysis.Symbol)
}

func TestSendMessage_BackendFailurePersistsErrorMessage(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	svc.backend.chatErr = errBackendDown

	session, err := svc.sessions.CreateSession(ctx, testKey)
	require.NoError(t, err)

	obs := NewCollector()
	result, err := svc.chat.SendMessage(ctx, SendRequest{Key: testKey, SessionID: session.ID, Text: "Hello"}, obs)
	require.NoError(t, err)
	assert.Nil(t, result.Reply)

	alerts := obs.Alerts()
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertError, alerts[0].Level)

	messages, err := svc.sessions.ListMessages(ctx, testKey, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, models.SenderAI, messages[2].Sender)
	assert.Equal(t, "Sorry, I couldn't reach the assistant: the service is unreachable", messages[2].Text)
	assert.NotContains(t, messages[2].Text, "connection refused")
}

func TestSendMessage_BackendErrorBodyStaysOutOfTheChat(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	svc.backend.chatErr = &backend.RequestError{
		Method:   "POST",
		Path:     backend.PathChat,
		Attempts: 3,
		Err:      &backend.StatusError{StatusCode: 502, Body: `<html>upstream pool exhausted at 10.0.3.7</html>`},
	}

	session, err := svc.sessions.CreateSession(ctx, testKey)
	require.NoError(t, err)

	obs := NewCollector()
	_, err = svc.chat.SendMessage(ctx, SendRequest{Key: testKey, SessionID: session.ID, Text: "Hello"}, obs)
	require.NoError(t, err)

	messages, err := svc.sessions.ListMessages(ctx, testKey, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "Sorry, I couldn't reach the assistant: the service returned HTTP 502", messages[2].Text)
	for _, a := range obs.Alerts() {
		assert.NotContains(t, a.Message, "10.0.3.7")
	}
}

func TestSendMessage_VoiceOnlyTurnLeavesSessionUnnamed(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	svc.backend.chatReply = "Noted."

	session, err := svc.sessions.CreateSession(ctx, testKey)
	require.NoError(t, err)
	generic := session.Name

	_, err = svc.chat.SendMessage(ctx, SendRequest{
		Key:       testKey,
		SessionID: session.ID,
		Voice:     true,
		Audio:     []byte{0x1a, 0x45},
	}, NewCollector())
	require.NoError(t, err)

	got, err := svc.store.GetSession(ctx, testKey, session.ID)
	require.NoError(t, err)
	assert.Equal(t, generic, got.Name)
	assert.False(t, got.Named)
	assert.Equal(t, VoicePlaceholderText, got.LastMessageText)

	_, err = svc.chat.SendMessage(ctx, SendRequest{Key: testKey, SessionID: session.ID, Text: "Hello"}, NewCollector())
	require.NoError(t, err)

	got, err = svc.store.GetSession(ctx, testKey, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Name)
	assert.True(t, got.Named)

	_, err = svc.chat.SendMessage(ctx, SendRequest{Key: testKey, SessionID: session.ID, Text: "What about gold?"}, NewCollector())
	require.NoError(t, err)

	got, err = svc.store.GetSession(ctx, testKey, session.ID)
	require.NoError(t, err)
	assert.Equal(t, "Hello", got.Name)
}

func TestSendMessage_VoiceStoresAudioAndSendsBase64(t *testing.T) {
	svc := newServices(t)
	ctx := context.Background()
	svc.backend.chatReply = "Got your voice note."

	session, err := svc.sessions.CreateSession(ctx, testKey)
	require.NoError(t, err)

	audio := []byte{0x1a, 0x45, 0xdf, 0xa3}
	result, err := svc.chat.SendMessage(ctx, SendRequest{
		Key:       testKey,
		SessionID: session.ID,
		Voice:     true,
		Audio:     audio,
	}, NewCollector())
	require.NoError(t, err)

	msg := result.Message
	assert.Equal(t, models.MessageTypeAudio, msg.Type)
	assert.Equal(t, VoicePlaceholderText, msg.Text)
	require.NotNil(t, msg.AudioURL)
	assert.Equal(t, AudioURL(msg.ID), *msg.AudioURL)

	blob, err := svc.store.GetAudio(ctx, testKey, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, audio, blob.Data)
	assert.Equal(t, "audio/webm", blob.ContentType)

	require.Len(t, svc.backend.chatReqs, 1)
	assert.Equal(t, "audio", svc.backend.chatReqs[0].MessageType)
	assert.Equal(t, base64.StdEncoding.EncodeToString(audio), svc.backend.chatReqs[0].AudioData)
}

func TestSendMessage_VoiceWithoutAudioFails(t *testing.T) {
	svc := newServices(t)
	_, err := svc.chat.SendMessage(context.Background(), SendRequest{Key: testKey, SessionID: "s", Voice: true}, NewCollector())
	assert.Error(t, err)
}
