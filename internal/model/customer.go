package model

import "time"

// Customer is created lazily the first time a sale names them
type Customer struct {
	CustomerID uint      `gorm:"primaryKey;column:customer_id" json:"customer_id"`
	Name       string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"name"`
	Phone      string    `gorm:"type:varchar(30)" json:"phone,omitempty"`
	Email      string    `gorm:"type:varchar(255)" json:"email,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (Customer) TableName() string {
	return "customers"
}
