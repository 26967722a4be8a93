package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeLog is one entry of the personal trade journal.
// ProfitOrLoss is fixed at creation.
type TradeLog struct {
	ID           string          `gorm:"primaryKey;size:64" json:"id"`
	AppID        string          `gorm:"index:idx_trade_logs_owner;size:100;not null" json:"-"`
	UserID       string          `gorm:"index:idx_trade_logs_owner;size:64;not null" json:"-"`
	CurrencyPair string          `gorm:"size:20;not null" json:"currencyPair"`
	EntryPrice   decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"entryPrice"`
	ExitPrice    decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"exitPrice"`
	Volume       decimal.Decimal `gorm:"type:decimal(20,8);not null" json:"volume"`
	ProfitOrLoss decimal.Decimal `gorm:"type:decimal(20,2);not null" json:"profitOrLoss"`
	JournalEntry string          `gorm:"type:text" json:"journalEntry,omitempty"`
	Timestamp    time.Time       `gorm:"index" json:"timestamp"`
}

// TableName specifies the table name for TradeLog model
func (TradeLog) TableName() string {
	return "trade_logs"
}

// CalculateProfitOrLoss returns (exit - entry) * volume rounded to cents
func CalculateProfitOrLoss(entry, exit, volume decimal.Decimal) decimal.Decimal {
	return exit.Sub(entry).Mul(volume).Round(2)
}
