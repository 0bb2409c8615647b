package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentQRIS     PaymentMethod = "qris"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentDebit    PaymentMethod = "debit"
)

func (p PaymentMethod) Valid() bool {
	switch p {
	case PaymentCash, PaymentQRIS, PaymentTransfer, PaymentDebit:
		return true
	}
	return false
}

// Transaction is a committed sale. Its lines and stock effects are written
// in the same unit of work.
type Transaction struct {
	TransactionID   uuid.UUID         `gorm:"type:varchar(36);primaryKey;column:transaction_id" json:"transaction_id"`
	TransactionDate time.Time         `gorm:"not null;index" json:"transaction_date"`
	TotalAmount     decimal.Decimal   `gorm:"type:decimal(15,2);not null;default:0" json:"total_amount"`
	PaymentMethod   PaymentMethod     `gorm:"type:varchar(16);not null" json:"payment_method"`
	CustomerID      *uint             `gorm:"index" json:"customer_id,omitempty"`
	Customer        *Customer         `json:"customer,omitempty"`
	OrderNumber     *string           `gorm:"type:varchar(64);uniqueIndex" json:"order_number,omitempty"`
	CreatedByUserID *uint             `json:"created_by_user_id,omitempty"`
	Items           []TransactionItem `gorm:"foreignKey:TransactionID;references:TransactionID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

func (Transaction) TableName() string {
	return "transactions"
}

// Hook Before Create untuk generate UUID otomatis
func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.TransactionID == uuid.Nil {
		t.TransactionID = uuid.New()
	}
	return nil
}

// TransactionItem is one sale line. At most one of BookID/BundleID is set;
// unmatched imported lines carry neither and keep only ProductName.
type TransactionItem struct {
	ItemID        uint            `gorm:"primaryKey;column:item_id" json:"item_id"`
	TransactionID uuid.UUID       `gorm:"type:varchar(36);not null;index" json:"transaction_id"`
	BookID        *uint           `gorm:"index" json:"book_id"`
	Book          *Book           `gorm:"constraint:OnDelete:RESTRICT" json:"book,omitempty"`
	BundleID      *uint           `gorm:"index" json:"bundle_id"`
	Bundle        *Bundle         `gorm:"constraint:OnDelete:RESTRICT" json:"bundle,omitempty"`
	ProductName   string          `gorm:"type:varchar(255)" json:"product_name"`
	Quantity      int             `gorm:"not null" json:"quantity"`
	PriceAtSale   decimal.Decimal `gorm:"type:decimal(15,2);not null" json:"price_at_sale"`
}

func (TransactionItem) TableName() string {
	return "transaction_items"
}

// Subtotal is quantity x price_at_sale
func (i TransactionItem) Subtotal() decimal.Decimal {
	return i.PriceAtSale.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
