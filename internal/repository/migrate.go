package repository

import (
	"fmt"

	"go-bookstore-pos/internal/model"

	"gorm.io/gorm"
)

// Migrate creates or updates every table at startup. The ledger table is
// only migrated when enabled; the returned flag reports whether it can be used.
func Migrate(db *gorm.DB, ledgerEnabled bool) (bool, error) {
	models := []interface{}{
		&model.Privilege{},
		&model.Role{},
		&model.User{},
		&model.Customer{},
		&model.Book{},
		&model.Bundle{},
		&model.BundleItem{},
		&model.Transaction{},
		&model.TransactionItem{},
	}
	if ledgerEnabled {
		models = append(models, &model.StockHistory{})
	}

	if err := db.AutoMigrate(models...); err != nil {
		return false, fmt.Errorf("failed to run database migrations: %w", err)
	}

	if !ledgerEnabled {
		return false, nil
	}
	return db.Migrator().HasTable(&model.StockHistory{}), nil
}
