package model

import "github.com/shopspring/decimal"

// Bundle is a fixed set of books sold as one unit
type Bundle struct {
	BundleID     uint            `gorm:"primaryKey;column:bundle_id" json:"bundle_id"`
	BundleName   string          `gorm:"type:varchar(255);not null" json:"bundle_name"`
	SellingPrice decimal.Decimal `gorm:"type:decimal(15,2);not null;default:0" json:"selling_price"`
	Stock        int             `gorm:"not null;default:0" json:"stock"`
	IsActive     bool            `gorm:"not null;default:true;index" json:"is_active"`
	Items        []BundleItem    `gorm:"foreignKey:BundleID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
	Timestamps
}

func (Bundle) TableName() string {
	return "bundles"
}

// BundleItem fixes how many units of a book one bundle unit consumes
type BundleItem struct {
	BundleItemID uint  `gorm:"primaryKey;column:bundle_item_id" json:"bundle_item_id"`
	BundleID     uint  `gorm:"not null;index" json:"bundle_id"`
	BookID       uint  `gorm:"not null;index" json:"book_id"`
	Book         *Book `gorm:"constraint:OnDelete:RESTRICT" json:"book,omitempty"`
	Quantity     int   `gorm:"not null;default:1" json:"quantity"`
}

func (BundleItem) TableName() string {
	return "bundle_items"
}
