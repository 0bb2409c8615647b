package model

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength applies to create, reset and change-password
const MinPasswordLength = 4

// User represents an authenticated user in the system
type User struct {
	UserID       uint        `gorm:"primaryKey;column:user_id" json:"user_id"`
	Username     string      `gorm:"type:varchar(100);uniqueIndex;not null" json:"username"`
	Password     string      `gorm:"type:varchar(255);not null" json:"-"` // Hidden from JSON
	FullName     string      `gorm:"type:varchar(255)" json:"full_name"`
	RoleID       *uint       `gorm:"index" json:"role_id"`
	Role         *Role       `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	IsActive     bool        `gorm:"not null;default:true" json:"is_active"`
	Privileges   []Privilege `gorm:"many2many:user_privileges;joinForeignKey:UserID;joinReferences:PrivilegeID" json:"privileges,omitempty"`
	TokenVersion string      `gorm:"type:varchar(64);default:''" json:"-"` // For single session enforcement
	LastLogin    *time.Time  `json:"last_login,omitempty"`
	LastSeenAt   *time.Time  `json:"last_seen_at,omitempty"` // For user presence
	Timestamps
}

func (User) TableName() string {
	return "users"
}

// SetPassword hashes and sets the user's password
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword verifies if the provided password matches the stored hash
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// HasPrivilege checks if the user has a specific privilege
func (u *User) HasPrivilege(code string) bool {
	for _, p := range u.Privileges {
		if p.Code == code {
			return true
		}
	}
	return false
}

// GetPrivilegeCodes returns a slice of all privilege codes for this user
func (u *User) GetPrivilegeCodes() []string {
	codes := make([]string, len(u.Privileges))
	for i, p := range u.Privileges {
		codes[i] = p.Code
	}
	return codes
}

// RoleCode returns the role code or "" when no role is loaded
func (u *User) RoleCode() string {
	if u.Role == nil {
		return ""
	}
	return u.Role.Code
}

// UserResponse is used for API responses (without sensitive data)
type UserResponse struct {
	UserID     uint        `json:"user_id"`
	Username   string      `json:"username"`
	FullName   string      `json:"full_name"`
	RoleID     *uint       `json:"role_id,omitempty"`
	Role       *Role       `json:"role,omitempty"`
	IsActive   bool        `json:"is_active"`
	LastLogin  *time.Time  `json:"last_login,omitempty"`
	LastSeenAt *time.Time  `json:"last_seen_at,omitempty"`
	Privileges []Privilege `json:"privileges"`
	CreatedAt  time.Time   `json:"created_at"`
}

// ToResponse converts User to UserResponse
func (u *User) ToResponse() UserResponse {
	return UserResponse{
		UserID:     u.UserID,
		Username:   u.Username,
		FullName:   u.FullName,
		RoleID:     u.RoleID,
		Role:       u.Role,
		IsActive:   u.IsActive,
		LastLogin:  u.LastLogin,
		LastSeenAt: u.LastSeenAt,
		Privileges: u.Privileges,
		CreatedAt:  u.CreatedAt,
	}
}
