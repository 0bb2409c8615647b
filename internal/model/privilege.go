package model

import "strings"

// Privilege represents a permission that can be assigned to users
type Privilege struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Code string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // e.g., "book:create"
	Name string `gorm:"type:varchar(100)" json:"name"`
}

// Privilege codes checked by the router
const (
	PrivBookView          = "book:view"
	PrivBookCreate        = "book:create"
	PrivBookUpdate        = "book:update"
	PrivBookDelete        = "book:delete"
	PrivStockAdjust       = "stock:adjust"
	PrivBundleView        = "bundle:view"
	PrivBundleManage      = "bundle:manage"
	PrivBundleSell        = "bundle:sell"
	PrivTransactionView   = "transaction:view"
	PrivTransactionCreate = "transaction:create"
	PrivImportRun         = "import:run"
	PrivReportView        = "report:view"
	PrivDashboardView     = "dashboard:view"
	PrivUserView          = "user:view"
	PrivUserCreate        = "user:create"
	PrivUserUpdate        = "user:update"
	PrivUserDelete        = "user:delete"
	PrivUserPrivilege     = "user:update_privilege"
)

// Default privileges for the system
var DefaultPrivileges = []Privilege{
	// Catalog
	{Code: PrivBookView, Name: "View Book"},
	{Code: PrivBookCreate, Name: "Create Book"},
	{Code: PrivBookUpdate, Name: "Update Book"},
	{Code: PrivBookDelete, Name: "Delete Book"},
	{Code: PrivStockAdjust, Name: "Adjust Stock"},
	{Code: PrivBundleView, Name: "View Bundle"},
	{Code: PrivBundleManage, Name: "Manage Bundle"},
	{Code: PrivBundleSell, Name: "Sell Bundle"},
	// Sales
	{Code: PrivTransactionView, Name: "View Transaction"},
	{Code: PrivTransactionCreate, Name: "Create Transaction"},
	{Code: PrivImportRun, Name: "Import Orders"},
	// Analytics
	{Code: PrivReportView, Name: "View Report"},
	{Code: PrivDashboardView, Name: "View Dashboard"},
	// User management (OWNER only)
	{Code: PrivUserView, Name: "View User"},
	{Code: PrivUserCreate, Name: "Create User"},
	{Code: PrivUserUpdate, Name: "Update User"},
	{Code: PrivUserDelete, Name: "Delete User"},
	{Code: PrivUserPrivilege, Name: "Update User Privileges"},
}

// IsUserManagement reports whether code belongs to the owner-only group
func IsUserManagement(code string) bool {
	return strings.HasPrefix(code, "user:")
}
