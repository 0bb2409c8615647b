package model

// Role represents user roles in the system
type Role struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	Code        string      `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"` // OWNER, ADMIN
	Name        string      `gorm:"type:varchar(100)" json:"name"`
	Description string      `gorm:"type:text" json:"description"`
	Privileges  []Privilege `gorm:"many2many:role_privileges;" json:"privileges,omitempty"`
}

// Role codes as constants
const (
	RoleOwner = "OWNER"
	RoleAdmin = "ADMIN"
)

// DefaultRoles defines the default roles in the system
var DefaultRoles = []Role{
	{
		Code:        RoleOwner,
		Name:        "Pemilik",
		Description: "Full access including user management",
	},
	{
		Code:        RoleAdmin,
		Name:        "Admin Toko",
		Description: "Store operations without user management",
	},
}
