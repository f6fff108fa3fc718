package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"tradepilot/internal/decision"
	"tradepilot/internal/ledger"
	"tradepilot/internal/risk"
)

// Store persists trades, positions, equity points and the decision log
// using Gorm + SQLite.
type Store struct {
	db *gorm.DB
}

func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("store: path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(
		&TradeModel{},
		&PositionModel{},
		&EquityPointModel{},
		&DecisionLogModel{},
	); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: keep write contention low, allow concurrent HTTP reads.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AccountRecorder binds the shared store to one account's ledger.
func (s *Store) AccountRecorder(accountID string) *AccountRecorder {
	return &AccountRecorder{store: s, accountID: accountID}
}

type AccountRecorder struct {
	store     *Store
	accountID string
}

var _ ledger.Recorder = (*AccountRecorder)(nil)

// RecordTrade appends one closed trade. Trade history is append-only; the
// unique trade_id index makes accidental replays no-ops.
func (r *AccountRecorder) RecordTrade(t ledger.Trade) error {
	row := TradeModel{
		TradeID:     t.ID,
		AccountID:   r.accountID,
		Symbol:      t.Symbol,
		Side:        string(t.Side),
		Quantity:    t.Quantity.String(),
		Notional:    t.Notional.String(),
		EntryPrice:  t.EntryPrice.String(),
		ExitPrice:   t.ExitPrice.String(),
		RealizedPnL: t.RealizedPnL.String(),
		Fees:        t.Fees.String(),
		ExitReason:  string(t.ExitReason),
		DecisionID:  t.DecisionID,
		OpenedAt:    t.OpenedAt.UnixMilli(),
		ClosedAt:    t.ClosedAt.UnixMilli(),
	}
	return r.store.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "trade_id"}},
		DoNothing: true,
	}).Create(&row).Error
}

// UpsertPosition is idempotent on (account_id, symbol).
func (r *AccountRecorder) UpsertPosition(accountID string, p ledger.Position) error {
	if accountID == "" {
		accountID = r.accountID
	}
	row := PositionModel{
		AccountID:  accountID,
		Symbol:     p.Symbol,
		Side:       string(p.Side),
		Quantity:   p.Quantity.String(),
		Notional:   p.Notional.String(),
		EntryPrice: p.EntryPrice.String(),
		StopLoss:   p.StopLoss.String(),
		TakeProfit: p.TakeProfit.String(),
		EntryFee:   p.EntryFee.String(),
		DecisionID: p.DecisionID,
		OpenedAt:   p.OpenedAt.UnixMilli(),
	}
	return r.store.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "account_id"}, {Name: "symbol"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (r *AccountRecorder) ClearPosition(accountID, symbol string) error {
	if accountID == "" {
		accountID = r.accountID
	}
	return r.store.db.
		Where("account_id = ? AND symbol = ?", accountID, symbol).
		Delete(&PositionModel{}).Error
}

func (r *AccountRecorder) RecordEquity(accountID string, point ledger.EquityPoint) error {
	if accountID == "" {
		accountID = r.accountID
	}
	row := EquityPointModel{
		AccountID: accountID,
		At:        point.At.UnixMilli(),
		Equity:    point.Equity.String(),
	}
	return r.store.db.Create(&row).Error
}

// LogDecision stores a normalized decision and its risk verdict.
func (s *Store) LogDecision(accountID string, d decision.Decision, verdict risk.Verdict) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	row := DecisionLogModel{
		DecisionID: d.ID,
		AccountID:  accountID,
		Symbol:     d.Symbol,
		Action:     string(d.Action),
		Confidence: d.Confidence,
		Approved:   verdict.Approved,
		Reason:     verdict.Reason,
		SizePct:    verdict.SizePct,
		Payload:    payload,
		DecidedAt:  d.DecidedAt.UnixMilli(),
	}
	return s.db.Create(&row).Error
}

// RecentDecisions returns the newest decision-log rows for an account.
func (s *Store) RecentDecisions(accountID string, limit int) ([]DecisionLogModel, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var rows []DecisionLogModel
	err := s.db.
		Where("account_id = ?", accountID).
		Order("decided_at DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// EquitySince returns an account's stored equity points from a cutoff on.
func (s *Store) EquitySince(accountID string, since time.Time) ([]EquityPointModel, error) {
	var rows []EquityPointModel
	err := s.db.
		Where("account_id = ? AND at >= ?", accountID, since.UnixMilli()).
		Order("at ASC").
		Find(&rows).Error
	return rows, err
}
