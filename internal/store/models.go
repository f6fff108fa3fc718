package store

import (
	"gorm.io/datatypes"
)

// TradeModel rows are append-only: closed trades are immutable history.
type TradeModel struct {
	ID          int64   `gorm:"column:id;primaryKey"`
	TradeID     string  `gorm:"column:trade_id;uniqueIndex"`
	AccountID   string  `gorm:"column:account_id;index"`
	Symbol      string  `gorm:"column:symbol;index"`
	Side        string  `gorm:"column:side"`
	Quantity    string  `gorm:"column:quantity"`
	Notional    string  `gorm:"column:notional"`
	EntryPrice  string  `gorm:"column:entry_price"`
	ExitPrice   string  `gorm:"column:exit_price"`
	RealizedPnL string  `gorm:"column:realized_pnl"`
	Fees        string  `gorm:"column:fees"`
	ExitReason  string  `gorm:"column:exit_reason"`
	DecisionID  string  `gorm:"column:decision_id"`
	OpenedAt    int64   `gorm:"column:opened_at"`
	ClosedAt    int64   `gorm:"column:closed_at"`
}

func (TradeModel) TableName() string { return "trades" }

// PositionModel holds the current open position per account+symbol; the
// upsert is idempotent so crash recovery can replay it safely.
type PositionModel struct {
	ID         int64  `gorm:"column:id;primaryKey"`
	AccountID  string `gorm:"column:account_id;uniqueIndex:idx_account_symbol,priority:1"`
	Symbol     string `gorm:"column:symbol;uniqueIndex:idx_account_symbol,priority:2"`
	Side       string `gorm:"column:side"`
	Quantity   string `gorm:"column:quantity"`
	Notional   string `gorm:"column:notional"`
	EntryPrice string `gorm:"column:entry_price"`
	StopLoss   string `gorm:"column:stop_loss"`
	TakeProfit string `gorm:"column:take_profit"`
	EntryFee   string `gorm:"column:entry_fee"`
	DecisionID string `gorm:"column:decision_id"`
	OpenedAt   int64  `gorm:"column:opened_at"`
	UpdatedAt  int64  `gorm:"column:updated_at;autoUpdateTime"`
}

func (PositionModel) TableName() string { return "positions" }

type EquityPointModel struct {
	ID        int64  `gorm:"column:id;primaryKey"`
	AccountID string `gorm:"column:account_id;index:idx_equity_account_at,priority:1"`
	At        int64  `gorm:"column:at;index:idx_equity_account_at,priority:2"`
	Equity    string `gorm:"column:equity"`
}

func (EquityPointModel) TableName() string { return "equity_points" }

// DecisionLogModel keeps every normalized decision plus the verdict it drew,
// with the full payload as JSON for audit.
type DecisionLogModel struct {
	ID         int64          `gorm:"column:id;primaryKey"`
	DecisionID string         `gorm:"column:decision_id;index"`
	AccountID  string         `gorm:"column:account_id;index"`
	Symbol     string         `gorm:"column:symbol;index"`
	Action     string         `gorm:"column:action"`
	Confidence int            `gorm:"column:confidence"`
	Approved   bool           `gorm:"column:approved"`
	Reason     string         `gorm:"column:reason"`
	SizePct    float64        `gorm:"column:size_pct"`
	Payload    datatypes.JSON `gorm:"column:payload;type:TEXT"`
	DecidedAt  int64          `gorm:"column:decided_at;index"`
}

func (DecisionLogModel) TableName() string { return "decision_log" }
