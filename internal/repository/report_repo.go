package repository

import (
	"time"

	"go-bookstore-pos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionHeader is the slice of a transaction the reports bucket by time
type TransactionHeader struct {
	TransactionID   uuid.UUID
	TransactionDate time.Time
	TotalAmount     decimal.Decimal
	ItemCount       int
}

// CustomerFrequency counts transactions per customer
type CustomerFrequency struct {
	CustomerID uint   `json:"customer_id"`
	Name       string `json:"name"`
	TxCount    int64  `json:"tx_count"`
}

type ReportRepository interface {
	Headers(start, end *time.Time) ([]TransactionHeader, error)
	PurchaseFrequency() ([]CustomerFrequency, error)
}

type reportRepo struct {
	db *gorm.DB
}

func NewReportRepo(db *gorm.DB) ReportRepository {
	return &reportRepo{db}
}

// Headers returns transactions in [start, end) with their summed line quantity
func (r *reportRepo) Headers(start, end *time.Time) ([]TransactionHeader, error) {
	items := r.db.Model(&model.TransactionItem{}).
		Select("transaction_id, SUM(quantity) AS item_count").
		Group("transaction_id")

	q := r.db.Table("transactions AS t").
		Select("t.transaction_id, t.transaction_date, t.total_amount, COALESCE(x.item_count, 0) AS item_count").
		Joins("LEFT JOIN (?) AS x ON x.transaction_id = t.transaction_id", items)
	if start != nil {
		q = q.Where("t.transaction_date >= ?", start.UTC())
	}
	if end != nil {
		q = q.Where("t.transaction_date < ?", end.UTC())
	}

	var rows []TransactionHeader
	err := q.Order("t.transaction_date ASC").Scan(&rows).Error
	return rows, err
}

func (r *reportRepo) PurchaseFrequency() ([]CustomerFrequency, error) {
	var rows []CustomerFrequency
	err := r.db.Table("customers AS c").
		Select("c.customer_id, c.name, COUNT(t.transaction_id) AS tx_count").
		Joins("LEFT JOIN transactions t ON t.customer_id = c.customer_id").
		Group("c.customer_id, c.name").
		Order("tx_count DESC").
		Order("c.name ASC").
		Scan(&rows).Error
	return rows, err
}
