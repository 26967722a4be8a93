package models

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// StrongConfirmation is the only status under which price levels are actionable
const StrongConfirmation = "STRONG CONFIRMATION"

var ErrIncompleteAnalysis = errors.New("analysis response is incomplete")

// AISuggestion is the trade suggestion embedded in an analysis
type AISuggestion struct {
	EntryType         string           `json:"entry_type"`
	RecommendedAction string           `json:"recommended_action"`
	PositionSize      string           `json:"position_size"`
	EntryPrice        *decimal.Decimal `json:"entry_price"`
	Direction         string           `json:"direction"`
	Confidence        string           `json:"confidence"`
	Signal            string           `json:"signal"`
}

// AnalysisResult is the structured ORMCR analysis produced by the backend.
// It is immutable once received.
type AnalysisResult struct {
	Symbol                      string           `json:"symbol"`
	ConfidenceScore             decimal.Decimal  `json:"confidence_score"`
	SignalStrength              string           `json:"signal_strength"`
	MarketSummary               string           `json:"market_summary"`
	StopLoss                    *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit1                 *decimal.Decimal `json:"take_profit_1,omitempty"`
	TakeProfit2                 *decimal.Decimal `json:"take_profit_2,omitempty"`
	TechnicalIndicatorsAnalysis string           `json:"technical_indicators_analysis"`
	NextStepForUser             string           `json:"next_step_for_user"`
	ORMCRConfirmationStatus     string           `json:"ormcr_confirmation_status"`
	ORMCROverallBias            string           `json:"ormcr_overall_bias"`
	ORMCRReason                 string           `json:"ormcr_reason"`
	AISuggestion                *AISuggestion    `json:"ai_suggestion"`
}

// Validate rejects results that lack the fields a rendered analysis depends on
func (a *AnalysisResult) Validate() error {
	if a == nil {
		return errors.Wrap(ErrIncompleteAnalysis, "empty result")
	}
	if a.AISuggestion == nil {
		return errors.Wrap(ErrIncompleteAnalysis, "missing ai_suggestion")
	}
	if a.AISuggestion.EntryPrice == nil {
		return errors.Wrap(ErrIncompleteAnalysis, "missing ai_suggestion.entry_price")
	}
	return nil
}

// ShowLevels reports whether stop loss and take profit levels should be rendered
func (a *AnalysisResult) ShowLevels() bool {
	return strings.EqualFold(strings.TrimSpace(a.ORMCRConfirmationStatus), StrongConfirmation)
}

// TradeType is the holding horizon requested for an analysis
type TradeType string

const (
	TradeTypeScalp    TradeType = "scalp"
	TradeTypeIntraday TradeType = "intraday"
	TradeTypeSwing    TradeType = "swing"
)

// AnalysisParams is the parameter set of a user-initiated analysis
type AnalysisParams struct {
	CurrencyPair     string          `json:"currencyPair" binding:"required"`
	Timeframes       []string        `json:"timeframes" binding:"required,min=1"`
	TradeType        TradeType       `json:"tradeType" binding:"required"`
	Indicators       []string        `json:"indicators"`
	AvailableBalance decimal.Decimal `json:"availableBalance"`
	Leverage         int             `json:"leverage" binding:"omitempty,min=1,max=1000"`
}
