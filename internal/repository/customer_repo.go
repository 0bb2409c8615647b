package repository

import (
	"errors"
	"strings"

	"go-bookstore-pos/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type CustomerRepository interface {
	Upsert(tx *gorm.DB, name string) (*uint, error)
}

type customerRepo struct {
	db *gorm.DB
}

func NewCustomerRepo(db *gorm.DB) CustomerRepository {
	return &customerRepo{db}
}

// Upsert returns the id of the customer with exactly this (trimmed) name,
// creating it when missing. An empty name yields nil.
func (r *customerRepo) Upsert(tx *gorm.DB, name string) (*uint, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, nil
	}

	var existing model.Customer
	err := tx.Where("name = ?", name).First(&existing).Error
	if err == nil {
		return &existing.CustomerID, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	customer := model.Customer{Name: name}
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(&customer).Error; err != nil {
		return nil, err
	}
	if customer.CustomerID != 0 {
		return &customer.CustomerID, nil
	}

	// lost a race with a concurrent insert
	if err := tx.Where("name = ?", name).First(&existing).Error; err != nil {
		return nil, err
	}
	return &existing.CustomerID, nil
}
