// Package storage persists the durable state surface: balances, orders
// (with their lifecycle flags), the next-order-id counter, and the fact
// journal. Every multi-key mutation goes through one SQLite transaction so a
// crash can never leave a half-applied operation on disk.
package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const orderCounterName = "next_order_id"

// BalanceRow is one custody balance.
type BalanceRow struct {
	Token     string `gorm:"primaryKey"`
	Account   string `gorm:"primaryKey"`
	Amount    int64
	UpdatedAt time.Time
}

// OrderRow is one order plus its lifecycle flags. Rows are inserted once and
// only the flags ever change; orders are never deleted.
type OrderRow struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement:false"`
	Owner         string `gorm:"index"`
	WantedToken   string
	WantedAmount  int64
	OfferedToken  string
	OfferedAmount int64
	Cancelled     bool
	Filled        bool
	CreatedAt     time.Time
}

// CounterRow holds named monotonic counters (currently just the order id).
type CounterRow struct {
	Name  string `gorm:"primaryKey"`
	Value uint64
}

// FactRow is one journaled fact, stored as JSON alongside its envelope
// fields for querying.
type FactRow struct {
	Seq     uint64 `gorm:"primaryKey;autoIncrement:false"`
	Kind    string `gorm:"index"`
	Ts      time.Time
	Payload []byte
}

// Storage wraps the SQLite database.
type Storage struct {
	db *gorm.DB
}

// New opens (or creates) the database at path and migrates the schema.
func New(path string) (*Storage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&BalanceRow{}, &OrderRow{}, &CounterRow{}, &FactRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Storage{db: db}, nil
}

// ======================================================================================
// Write-through operations (one transaction each)
// ======================================================================================

// SaveDeposit persists the updated balance and the Deposit fact.
func (s *Storage) SaveDeposit(balance BalanceRow, fact FactRow) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&balance).Error; err != nil {
			return err
		}
		return tx.Create(&fact).Error
	})
}

// SaveWithdraw persists the updated balance and the Withdraw fact.
func (s *Storage) SaveWithdraw(balance BalanceRow, fact FactRow) error {
	return s.SaveDeposit(balance, fact)
}

// SaveOrder persists a new order, bumps the id counter, and journals the
// OrderCreated fact.
func (s *Storage) SaveOrder(order OrderRow, fact FactRow) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&order).Error; err != nil {
			return err
		}
		counter := CounterRow{Name: orderCounterName, Value: order.ID + 1}
		if err := tx.Save(&counter).Error; err != nil {
			return err
		}
		return tx.Create(&fact).Error
	})
}

// SaveCancel flips the cancelled flag and journals the Cancelled fact.
func (s *Storage) SaveCancel(orderID uint64, fact FactRow) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&OrderRow{}).Where("id = ?", orderID).Update("cancelled", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("cancel of unknown order %d", orderID)
		}
		return tx.Create(&fact).Error
	})
}

// SaveTrade flips the filled flag, persists every balance the settlement
// touched, and journals the Trade fact in the same transaction.
func (s *Storage) SaveTrade(orderID uint64, balances []BalanceRow, fact FactRow) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&OrderRow{}).Where("id = ?", orderID).Update("filled", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("fill of unknown order %d", orderID)
		}
		for i := range balances {
			if err := tx.Save(&balances[i]).Error; err != nil {
				return err
			}
		}
		return tx.Create(&fact).Error
	})
}

// ======================================================================================
// Boot-time loaders
// ======================================================================================

// LoadBalances returns every persisted balance.
func (s *Storage) LoadBalances() ([]BalanceRow, error) {
	var rows []BalanceRow
	err := s.db.Find(&rows).Error
	return rows, err
}

// LoadOrders returns every persisted order in id order.
func (s *Storage) LoadOrders() ([]OrderRow, error) {
	var rows []OrderRow
	err := s.db.Order("id").Find(&rows).Error
	return rows, err
}

// NextOrderID returns the persisted order-id counter, or 1 for a fresh
// database.
func (s *Storage) NextOrderID() (uint64, error) {
	var counter CounterRow
	err := s.db.First(&counter, "name = ?", orderCounterName).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 1, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.Value, nil
}

// LastFactSeq returns the highest journaled fact sequence, 0 if none.
func (s *Storage) LastFactSeq() (uint64, error) {
	var fact FactRow
	err := s.db.Order("seq desc").First(&fact).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return fact.Seq, nil
}

// LoadFacts returns up to limit facts starting at fromSeq, for audit reads.
func (s *Storage) LoadFacts(fromSeq uint64, limit int) ([]FactRow, error) {
	var rows []FactRow
	err := s.db.Where("seq >= ?", fromSeq).Order("seq").Limit(limit).Find(&rows).Error
	return rows, err
}
