package repository

import (
	"time"

	"go-bookstore-pos/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionFilter narrows the sales list. Zero values are ignored; dates
// are stored and compared in UTC.
type TransactionFilter struct {
	Query     string
	Category  string
	StartDate *time.Time // inclusive
	EndDate   *time.Time // exclusive
	Limit     int
}

// SaleLineRow is one sale line joined with its header, customer and product
type SaleLineRow struct {
	TransactionID   uuid.UUID
	TransactionDate time.Time
	PaymentMethod   string
	CustomerName    *string
	BookID          *uint
	BundleID        *uint
	ISBN            *string
	Title           *string
	Author          *string
	Category        *string
	PurchasePrice   decimal.NullDecimal
	BundleName      *string
	ProductName     string
	Quantity        int
	PriceAtSale     decimal.Decimal
}

// Name returns the best available display name for the line
func (r SaleLineRow) Name() string {
	switch {
	case r.Title != nil:
		return *r.Title
	case r.BundleName != nil:
		return *r.BundleName
	default:
		return r.ProductName
	}
}

type TransactionRepository interface {
	Create(tx *gorm.DB, t *model.Transaction) error
	CreateItems(tx *gorm.DB, items []model.TransactionItem) error
	FindByID(id uuid.UUID) (*model.Transaction, error)
	Exists(tx *gorm.DB, id uuid.UUID) (bool, error)
	FindByOrderNumber(tx *gorm.DB, orderNumber string) (*model.Transaction, error)
	FindIDsByOrderNumbers(orderNumbers []string) (map[string]uuid.UUID, error)
	Delete(tx *gorm.DB, id uuid.UUID) error
	DeleteItemsByBook(tx *gorm.DB, bookID uint) ([]uuid.UUID, error)
	RecomputeTotals(tx *gorm.DB, ids []uuid.UUID) error
	DeleteOrphans(tx *gorm.DB) error
	ListSaleLines(filter TransactionFilter) ([]SaleLineRow, error)
	LatestSales(limit int) ([]model.Transaction, error)
	SummaryBetween(start, end time.Time) (int64, decimal.Decimal, error)
}

type transactionRepo struct {
	db *gorm.DB
}

func NewTransactionRepo(db *gorm.DB) TransactionRepository {
	return &transactionRepo{db}
}

func (r *transactionRepo) Create(tx *gorm.DB, t *model.Transaction) error {
	return tx.Omit("Items", "Customer").Create(t).Error
}

func (r *transactionRepo) CreateItems(tx *gorm.DB, items []model.TransactionItem) error {
	if len(items) == 0 {
		return nil
	}
	return tx.Omit("Book", "Bundle").Create(&items).Error
}

func (r *transactionRepo) FindByID(id uuid.UUID) (*model.Transaction, error) {
	var t model.Transaction
	err := r.db.Preload("Customer").
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("item_id ASC") }).
		Preload("Items.Book").
		Preload("Items.Bundle").
		First(&t, "transaction_id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepo) Exists(tx *gorm.DB, id uuid.UUID) (bool, error) {
	var n int64
	err := tx.Model(&model.Transaction{}).Where("transaction_id = ?", id).Count(&n).Error
	return n > 0, err
}

func (r *transactionRepo) FindByOrderNumber(tx *gorm.DB, orderNumber string) (*model.Transaction, error) {
	var t model.Transaction
	if err := tx.Preload("Items").Where("order_number = ?", orderNumber).First(&t).Error; err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepo) FindIDsByOrderNumbers(orderNumbers []string) (map[string]uuid.UUID, error) {
	out := make(map[string]uuid.UUID)
	if len(orderNumbers) == 0 {
		return out, nil
	}

	var rows []struct {
		TransactionID uuid.UUID
		OrderNumber   string
	}
	if err := r.db.Model(&model.Transaction{}).
		Select("transaction_id, order_number").
		Where("order_number IN ?", orderNumbers).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.OrderNumber] = row.TransactionID
	}
	return out, nil
}

func (r *transactionRepo) Delete(tx *gorm.DB, id uuid.UUID) error {
	if err := tx.Where("transaction_id = ?", id).Delete(&model.TransactionItem{}).Error; err != nil {
		return err
	}
	return tx.Where("transaction_id = ?", id).Delete(&model.Transaction{}).Error
}

// DeleteItemsByBook removes the book's sale lines and returns the
// transactions that had one
func (r *transactionRepo) DeleteItemsByBook(tx *gorm.DB, bookID uint) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := tx.Model(&model.TransactionItem{}).
		Where("book_id = ?", bookID).
		Distinct().
		Pluck("transaction_id", &ids).Error; err != nil {
		return nil, err
	}
	if err := tx.Where("book_id = ?", bookID).Delete(&model.TransactionItem{}).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// RecomputeTotals sets total_amount back to the sum of the remaining lines
func (r *transactionRepo) RecomputeTotals(tx *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return tx.Model(&model.Transaction{}).
		Where("transaction_id IN ?", ids).
		Update("total_amount", gorm.Expr(
			"(SELECT COALESCE(SUM(ti.quantity * ti.price_at_sale), 0) FROM transaction_items ti WHERE ti.transaction_id = transactions.transaction_id)",
		)).Error
}

// DeleteOrphans removes headers left without any line
func (r *transactionRepo) DeleteOrphans(tx *gorm.DB) error {
	return tx.Where("transaction_id NOT IN (?)",
		tx.Model(&model.TransactionItem{}).Select("transaction_id"),
	).Delete(&model.Transaction{}).Error
}

func (r *transactionRepo) ListSaleLines(filter TransactionFilter) ([]SaleLineRow, error) {
	q := r.db.Table("transaction_items AS ti").
		Select(`t.transaction_id, t.transaction_date, t.payment_method, c.name AS customer_name,
			ti.book_id, ti.bundle_id, b.isbn, b.title, b.author, b.category, b.purchase_price,
			bu.bundle_name, ti.product_name, ti.quantity, ti.price_at_sale`).
		Joins("JOIN transactions t ON t.transaction_id = ti.transaction_id").
		Joins("LEFT JOIN books b ON b.book_id = ti.book_id").
		Joins("LEFT JOIN bundles bu ON bu.bundle_id = ti.bundle_id").
		Joins("LEFT JOIN customers c ON c.customer_id = t.customer_id")

	if filter.StartDate != nil {
		q = q.Where("t.transaction_date >= ?", filter.StartDate.UTC())
	}
	if filter.EndDate != nil {
		q = q.Where("t.transaction_date < ?", filter.EndDate.UTC())
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		q = q.Where("(b.title LIKE ? OR b.isbn LIKE ? OR bu.bundle_name LIKE ? OR ti.product_name LIKE ?)", like, like, like, like)
	}
	if filter.Category != "" {
		q = q.Where("b.category = ?", filter.Category)
	}
	q = q.Order("t.transaction_date DESC").Order("ti.item_id ASC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []SaleLineRow
	err := q.Scan(&rows).Error
	return rows, err
}

func (r *transactionRepo) LatestSales(limit int) ([]model.Transaction, error) {
	var txs []model.Transaction
	err := r.db.Preload("Customer").Preload("Items").
		Order("transaction_date DESC").
		Limit(limit).
		Find(&txs).Error
	return txs, err
}

// SummaryBetween counts transactions and sums their totals in [start, end)
func (r *transactionRepo) SummaryBetween(start, end time.Time) (int64, decimal.Decimal, error) {
	var count int64
	var total decimal.Decimal
	err := r.db.Model(&model.Transaction{}).
		Select("COUNT(*), COALESCE(SUM(total_amount), 0)").
		Where("transaction_date >= ? AND transaction_date < ?", start.UTC(), end.UTC()).
		Row().Scan(&count, &total)
	return count, total, err
}
