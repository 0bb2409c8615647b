package model

import (
	"time"

	"github.com/google/uuid"
)

// Ledger reasons
const (
	ReasonSale         = "Penjualan Stok"
	ReasonStockIn      = "Penambahan Stok"
	ReasonInitialStock = "Stok Awal"
	ReasonImportSale   = "Penjualan Stok (Import)"
	ReasonBundlePrefix = "Sold as part of bundle: "
)

// StockHistory is an append-only stock delta. books.stock_qty stays the
// source of truth; these rows are the audit trail.
type StockHistory struct {
	HistoryID       uint       `gorm:"primaryKey;column:history_id" json:"history_id"`
	BookID          uint       `gorm:"not null;index" json:"book_id"`
	QuantityChange  int        `gorm:"not null" json:"quantity_change"`
	Reason          string     `gorm:"type:varchar(255);not null" json:"reason"`
	TransactionID   *uuid.UUID `gorm:"type:varchar(36);index" json:"transaction_id,omitempty"`
	TransactionDate time.Time  `gorm:"not null;index" json:"transaction_date"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (StockHistory) TableName() string {
	return "stock_history"
}
