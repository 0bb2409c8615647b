package repository

import (
	"sort"
	"strings"
	"time"

	"go-bookstore-pos/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BookFilter struct {
	Query    string
	Category string
}

type BookRepository interface {
	Create(tx *gorm.DB, book *model.Book) error
	Update(tx *gorm.DB, book *model.Book) error
	Delete(tx *gorm.DB, id uint) error
	FindAll(filter BookFilter) ([]model.Book, error)
	FindByID(id uint) (*model.Book, error)
	FindByISBN(isbn string) (*model.Book, error)
	Categories() ([]string, error)
	LockByIDs(tx *gorm.DB, ids []uint) (map[uint]*model.Book, error)
	AdjustStock(tx *gorm.DB, id uint, delta int, allowNegative bool) error
	CountReferences(tx *gorm.DB, id uint) (int64, error)
	CountAll() (int64, error)
	CountLowStock(threshold int) (int64, error)
}

type bookRepo struct {
	db *gorm.DB
}

func NewBookRepo(db *gorm.DB) BookRepository {
	return &bookRepo{db}
}

func (r *bookRepo) Create(tx *gorm.DB, book *model.Book) error {
	return tx.Create(book).Error
}

func (r *bookRepo) Update(tx *gorm.DB, book *model.Book) error {
	return tx.Model(book).Select("isbn", "title", "author", "category", "purchase_price", "selling_price", "updated_at").
		Updates(book).Error
}

func (r *bookRepo) Delete(tx *gorm.DB, id uint) error {
	return tx.Delete(&model.Book{}, id).Error
}

func (r *bookRepo) FindAll(filter BookFilter) ([]model.Book, error) {
	var books []model.Book
	q := r.db.Model(&model.Book{})
	if s := strings.TrimSpace(filter.Query); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(author) LIKE ? OR LOWER(isbn) LIKE ?", like, like, like)
	}
	if filter.Category != "" {
		q = q.Where("category = ?", filter.Category)
	}
	err := q.Order("title ASC").Find(&books).Error
	return books, err
}

func (r *bookRepo) FindByID(id uint) (*model.Book, error) {
	var book model.Book
	if err := r.db.First(&book, id).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepo) FindByISBN(isbn string) (*model.Book, error) {
	var book model.Book
	if err := r.db.Where("isbn = ?", isbn).First(&book).Error; err != nil {
		return nil, err
	}
	return &book, nil
}

func (r *bookRepo) Categories() ([]string, error) {
	var categories []string
	err := r.db.Model(&model.Book{}).
		Where("category IS NOT NULL AND category <> ''").
		Distinct().
		Order("category ASC").
		Pluck("category", &categories).Error
	return categories, err
}

// LockByIDs selects the rows FOR UPDATE in ascending id order so concurrent
// units of work always lock in the same sequence.
func (r *bookRepo) LockByIDs(tx *gorm.DB, ids []uint) (map[uint]*model.Book, error) {
	out := make(map[uint]*model.Book, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	sorted := uniqueSorted(ids)

	var books []model.Book
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("book_id IN ?", sorted).
		Order("book_id ASC").
		Find(&books).Error; err != nil {
		return nil, err
	}
	for i := range books {
		out[books[i].BookID] = &books[i]
	}
	return out, nil
}

// AdjustStock applies delta in a single UPDATE. Negative deltas are guarded
// by stock_qty >= -delta unless allowNegative is set.
func (r *bookRepo) AdjustStock(tx *gorm.DB, id uint, delta int, allowNegative bool) error {
	q := tx.Model(&model.Book{}).Where("book_id = ?", id)
	if delta < 0 && !allowNegative {
		q = q.Where("stock_qty >= ?", -delta)
	}
	res := q.UpdateColumns(map[string]interface{}{
		"stock_qty":  gorm.Expr("stock_qty + ?", delta),
		"updated_at": time.Now(),
	})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if delta < 0 && !allowNegative {
			return ErrStockGuard
		}
		return gorm.ErrRecordNotFound
	}
	return nil
}

// CountReferences counts sale lines and bundle components pointing at the book
func (r *bookRepo) CountReferences(tx *gorm.DB, id uint) (int64, error) {
	var lines, components int64
	if err := tx.Model(&model.TransactionItem{}).Where("book_id = ?", id).Count(&lines).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(&model.BundleItem{}).Where("book_id = ?", id).Count(&components).Error; err != nil {
		return 0, err
	}
	return lines + components, nil
}

func (r *bookRepo) CountAll() (int64, error) {
	var n int64
	err := r.db.Model(&model.Book{}).Count(&n).Error
	return n, err
}

func (r *bookRepo) CountLowStock(threshold int) (int64, error) {
	var n int64
	err := r.db.Model(&model.Book{}).Where("stock_qty < ?", threshold).Count(&n).Error
	return n, err
}

func uniqueSorted(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
