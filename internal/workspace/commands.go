package workspace

import (
	"context"
	"encoding/base64"

	"github.com/aura-bot/internal/models"
	"github.com/pkg/errors"
)

// Command types accepted from the dashboard
const (
	CommandCreateSession   = "create_session"
	CommandSwitchSession   = "switch_session"
	CommandSendMessage     = "send_message"
	CommandRequestAnalysis = "request_analysis"
	CommandSetView         = "set_view"
	CommandToggleHistory   = "toggle_history"
)

var ErrUnknownCommand = errors.New("unknown command")

// Command is one dashboard-to-server message
type Command struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId,omitempty"`
	Text      string `json:"text,omitempty"`
	Voice     bool   `json:"voice,omitempty"`
	// Audio is the base64-encoded recording of a voice send
	Audio            string                 `json:"audio,omitempty"`
	AudioContentType string                 `json:"audioContentType,omitempty"`
	View             View                   `json:"view,omitempty"`
	Analysis         *models.AnalysisParams `json:"analysis,omitempty"`
}

// Dispatch applies a command to the workspace
func (w *Workspace) Dispatch(ctx context.Context, cmd Command) error {
	switch cmd.Type {
	case CommandCreateSession:
		_, err := w.CreateSession(ctx)
		return err
	case CommandSwitchSession:
		w.SwitchSession(cmd.SessionID)
		return nil
	case CommandSendMessage:
		var audio []byte
		if cmd.Voice {
			decoded, err := base64.StdEncoding.DecodeString(cmd.Audio)
			if err != nil {
				return errors.Wrap(err, "decode audio")
			}
			audio = decoded
		}
		return w.SendMessage(cmd.Text, cmd.Voice, audio, cmd.AudioContentType)
	case CommandRequestAnalysis:
		if cmd.Analysis == nil || cmd.Analysis.CurrencyPair == "" || len(cmd.Analysis.Timeframes) == 0 {
			return errors.New("analysis requires a currency pair and at least one timeframe")
		}
		return w.RequestAnalysis(*cmd.Analysis)
	case CommandSetView:
		return w.SetView(cmd.View)
	case CommandToggleHistory:
		w.ToggleHistory()
		return nil
	default:
		return errors.Wrapf(ErrUnknownCommand, "%q", cmd.Type)
	}
}
