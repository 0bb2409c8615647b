package model

import "github.com/shopspring/decimal"

// LowStockThreshold marks a book as running out on the dashboard
const LowStockThreshold = 10

type Book struct {
	BookID        uint            `gorm:"primaryKey;column:book_id" json:"book_id"`
	ISBN          string          `gorm:"column:isbn;type:varchar(32);uniqueIndex;not null" json:"isbn"`
	Title         string          `gorm:"type:varchar(255);not null;index" json:"title"`
	Author        string          `gorm:"type:varchar(255)" json:"author"`
	Category      string          `gorm:"type:varchar(100);index" json:"category"`
	PurchasePrice decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"purchase_price"`
	SellingPrice  decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"selling_price"`
	StockQty      int             `gorm:"not null;default:0" json:"stock_qty"`
	Timestamps
}

func (Book) TableName() string {
	return "books"
}
