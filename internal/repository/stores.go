package repository

import "gorm.io/gorm"

// Stores bundles every repository over one connection
type Stores struct {
	Books        BookRepository
	Bundles      BundleRepository
	Transactions TransactionRepository
	Customers    CustomerRepository
	Ledger       StockLedger
	Reports      ReportRepository
	Users        UserRepository
	Roles        RoleRepository
	Privileges   PrivilegeRepository
}

// NewStores wires the repositories; ledgerEnabled comes from Migrate
func NewStores(db *gorm.DB, ledgerEnabled bool) *Stores {
	return &Stores{
		Books:        NewBookRepo(db),
		Bundles:      NewBundleRepo(db),
		Transactions: NewTransactionRepo(db),
		Customers:    NewCustomerRepo(db),
		Ledger:       NewStockLedger(db, ledgerEnabled),
		Reports:      NewReportRepo(db),
		Users:        NewUserRepo(db),
		Roles:        NewRoleRepo(db),
		Privileges:   NewPrivilegeRepo(db),
	}
}
