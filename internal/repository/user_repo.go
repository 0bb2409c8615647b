package repository

import (
	"time"

	"go-bookstore-pos/internal/model"

	"gorm.io/gorm"
)

type UserRepository interface {
	FindByUsername(username string) (*model.User, error)
	FindByID(id uint) (*model.User, error)
	Create(user *model.User) error
	Update(user *model.User) error
	UpdatePassword(userID uint, hashedPassword string) error
	UpdatePrivileges(userID uint, privileges []model.Privilege) error
	FindAll() ([]model.User, error)
	Count() (int64, error)
	CountActiveByRole(roleCode string) (int64, error)
	RecordLogin(userID uint, version string, at time.Time) error
	UpdateLastSeen(userID uint, at time.Time) error
}

type userRepo struct {
	db *gorm.DB
}

func NewUserRepo(db *gorm.DB) UserRepository {
	return &userRepo{db}
}

func (r *userRepo) FindByUsername(username string) (*model.User, error) {
	var user model.User
	if err := r.db.Preload("Role").Preload("Privileges").Where("username = ?", username).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) FindByID(id uint) (*model.User, error) {
	var user model.User
	if err := r.db.Preload("Role").Preload("Privileges").First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepo) Create(user *model.User) error {
	return r.db.Create(user).Error
}

// Update saves scalar columns only; privileges go through UpdatePrivileges
func (r *userRepo) Update(user *model.User) error {
	return r.db.Model(user).
		Select("username", "password", "full_name", "role_id", "is_active", "updated_at").
		Updates(user).Error
}

func (r *userRepo) UpdatePassword(userID uint, hashedPassword string) error {
	return r.db.Model(&model.User{}).Where("user_id = ?", userID).Update("password", hashedPassword).Error
}

func (r *userRepo) UpdatePrivileges(userID uint, privileges []model.Privilege) error {
	var user model.User
	if err := r.db.First(&user, userID).Error; err != nil {
		return err
	}
	return r.db.Model(&user).Association("Privileges").Replace(privileges)
}

func (r *userRepo) FindAll() ([]model.User, error) {
	var users []model.User
	if err := r.db.Preload("Role").Preload("Privileges").Order("user_id ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

func (r *userRepo) Count() (int64, error) {
	var n int64
	err := r.db.Model(&model.User{}).Count(&n).Error
	return n, err
}

func (r *userRepo) CountActiveByRole(roleCode string) (int64, error) {
	var n int64
	err := r.db.Model(&model.User{}).
		Joins("JOIN roles ON roles.id = users.role_id").
		Where("roles.code = ? AND users.is_active = ?", roleCode, true).
		Count(&n).Error
	return n, err
}

// RecordLogin rotates the session version and stamps last_login/last_seen_at
func (r *userRepo) RecordLogin(userID uint, version string, at time.Time) error {
	return r.db.Model(&model.User{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
		"token_version": version,
		"last_login":    at,
		"last_seen_at":  at,
	}).Error
}

func (r *userRepo) UpdateLastSeen(userID uint, at time.Time) error {
	return r.db.Model(&model.User{}).Where("user_id = ?", userID).Update("last_seen_at", at).Error
}
