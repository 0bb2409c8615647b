package repository

import (
	"time"

	"go-bookstore-pos/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type BundleRepository interface {
	Create(tx *gorm.DB, bundle *model.Bundle) error
	Update(tx *gorm.DB, bundle *model.Bundle) error
	ReplaceItems(tx *gorm.DB, bundleID uint, items []model.BundleItem) error
	Deactivate(tx *gorm.DB, id uint) (bool, error)
	FindActive() ([]model.Bundle, error)
	FindByID(id uint) (*model.Bundle, error)
	LockByIDs(tx *gorm.DB, ids []uint) (map[uint]*model.Bundle, error)
	AdjustStock(tx *gorm.DB, id uint, delta int, allowNegative bool) error
	DeleteItemsByBook(tx *gorm.DB, bookID uint) error
}

type bundleRepo struct {
	db *gorm.DB
}

func NewBundleRepo(db *gorm.DB) BundleRepository {
	return &bundleRepo{db}
}

func (r *bundleRepo) Create(tx *gorm.DB, bundle *model.Bundle) error {
	return tx.Create(bundle).Error
}

func (r *bundleRepo) Update(tx *gorm.DB, bundle *model.Bundle) error {
	return tx.Model(bundle).Select("bundle_name", "selling_price", "stock", "updated_at").Updates(bundle).Error
}

func (r *bundleRepo) ReplaceItems(tx *gorm.DB, bundleID uint, items []model.BundleItem) error {
	if err := tx.Where("bundle_id = ?", bundleID).Delete(&model.BundleItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	for i := range items {
		items[i].BundleItemID = 0
		items[i].BundleID = bundleID
	}
	return tx.Create(&items).Error
}

// Deactivate soft-deletes the bundle; false means no active bundle matched
func (r *bundleRepo) Deactivate(tx *gorm.DB, id uint) (bool, error) {
	res := tx.Model(&model.Bundle{}).Where("bundle_id = ? AND is_active = ?", id, true).
		UpdateColumns(map[string]interface{}{"is_active": false, "updated_at": time.Now()})
	return res.RowsAffected > 0, res.Error
}

func (r *bundleRepo) FindActive() ([]model.Bundle, error) {
	var bundles []model.Bundle
	err := r.db.Preload("Items.Book").Where("is_active = ?", true).Order("bundle_name ASC").Find(&bundles).Error
	return bundles, err
}

func (r *bundleRepo) FindByID(id uint) (*model.Bundle, error) {
	var bundle model.Bundle
	if err := r.db.Preload("Items.Book").First(&bundle, id).Error; err != nil {
		return nil, err
	}
	return &bundle, nil
}

// LockByIDs locks bundles (and loads their components) in ascending id order
func (r *bundleRepo) LockByIDs(tx *gorm.DB, ids []uint) (map[uint]*model.Bundle, error) {
	out := make(map[uint]*model.Bundle, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var bundles []model.Bundle
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("book_id ASC") }).
		Where("bundle_id IN ?", uniqueSorted(ids)).
		Order("bundle_id ASC").
		Find(&bundles).Error; err != nil {
		return nil, err
	}
	for i := range bundles {
		out[bundles[i].BundleID] = &bundles[i]
	}
	return out, nil
}

func (r *bundleRepo) AdjustStock(tx *gorm.DB, id uint, delta int, allowNegative bool) error {
	q := tx.Model(&model.Bundle{}).Where("bundle_id = ?", id)
	if delta < 0 && !allowNegative {
		q = q.Where("stock >= ?", -delta)
	}
	res := q.UpdateColumns(map[string]interface{}{
		"stock":      gorm.Expr("stock + ?", delta),
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

func (r *bundleRepo) DeleteItemsByBook(tx *gorm.DB, bookID uint) error {
	return tx.Where("book_id = ?", bookID).Delete(&model.BundleItem{}).Error
}
