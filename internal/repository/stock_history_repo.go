package repository

import (
	"time"

	"go-bookstore-pos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// InboundRow is a stock-in ledger entry joined with its book
type InboundRow struct {
	HistoryID       uint
	TransactionDate time.Time
	QuantityChange  int
	ISBN            *string
	Title           *string
	Author          *string
	Category        *string
	PurchasePrice   decimal.NullDecimal
}

// StockLedger is the append-only stock audit trail. When the table is
// unavailable every write is a no-op and every read is empty.
type StockLedger interface {
	Enabled() bool
	Append(tx *gorm.DB, entries ...model.StockHistory) error
	FindByBook(bookID uint, limit int) ([]model.StockHistory, error)
	DeleteByTransaction(tx *gorm.DB, transactionID uuid.UUID) error
	DeleteByBook(tx *gorm.DB, bookID uint) error
	ListInbound(filter TransactionFilter) ([]InboundRow, error)
	Between(start, end time.Time) ([]model.StockHistory, error)
}

type stockLedger struct {
	db      *gorm.DB
	enabled bool
}

func NewStockLedger(db *gorm.DB, enabled bool) StockLedger {
	return &stockLedger{db: db, enabled: enabled}
}

func (r *stockLedger) Enabled() bool {
	return r.enabled
}

func (r *stockLedger) Append(tx *gorm.DB, entries ...model.StockHistory) error {
	if !r.enabled || len(entries) == 0 {
		return nil
	}
	return tx.Create(&entries).Error
}

func (r *stockLedger) FindByBook(bookID uint, limit int) ([]model.StockHistory, error) {
	history := []model.StockHistory{}
	if !r.enabled {
		return history, nil
	}
	err := r.db.Where("book_id = ?", bookID).
		Order("transaction_date DESC").
		Order("history_id DESC").
		Limit(limit).
		Find(&history).Error
	return history, err
}

func (r *stockLedger) DeleteByTransaction(tx *gorm.DB, transactionID uuid.UUID) error {
	if !r.enabled {
		return nil
	}
	return tx.Where("transaction_id = ?", transactionID).Delete(&model.StockHistory{}).Error
}

func (r *stockLedger) DeleteByBook(tx *gorm.DB, bookID uint) error {
	if !r.enabled {
		return nil
	}
	return tx.Where("book_id = ?", bookID).Delete(&model.StockHistory{}).Error
}

func (r *stockLedger) ListInbound(filter TransactionFilter) ([]InboundRow, error) {
	rows := []InboundRow{}
	if !r.enabled {
		return rows, nil
	}

	q := r.db.Table("stock_history AS sh").
		Select("sh.history_id, sh.transaction_date, sh.quantity_change, b.isbn, b.title, b.author, b.category, b.purchase_price").
		Joins("LEFT JOIN books b ON b.book_id = sh.book_id").
		Where("sh.reason = ?", model.ReasonStockIn)

	if filter.StartDate != nil {
		q = q.Where("sh.transaction_date >= ?", filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		q = q.Where("sh.transaction_date < ?", filter.EndDate.UTC())
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		q = q.Where("(b.title LIKE ? OR b.isbn LIKE ?)", like, like)
	}
	if filter.Category != "" {
		q = q.Where("b.category = ?", filter.Category)
	}
	q = q.Order("sh.transaction_date DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	err := q.Scan(&rows).Error
	return rows, err
}

func (r *stockLedger) Between(start, end time.Time) ([]model.StockHistory, error) {
	entries := []model.StockHistory{}
	if !r.enabled {
		return entries, nil
	}
	err := r.db.Where("transaction_date >= ? AND transaction_date < ?", start.UTC(), end.UTC()).
		Order("transaction_date ASC").
		Find(&entries).Error
	return entries, err
}
