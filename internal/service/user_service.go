package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go-bookstore-pos/internal/model"
	"go-bookstore-pos/internal/repository"
	"go-bookstore-pos/pkg/apperror"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type CreateUserRequest struct {
	Username string `json:"username" validate:"required,max=100"`
	Password string `json:"password" validate:"required,min=4"`
	FullName string `json:"full_name"`
	Role     string `json:"role" validate:"required,oneof=OWNER ADMIN owner admin"`
}

type UpdateUserRequest struct {
	Username *string `json:"username" validate:"omitempty,max=100"`
	FullName *string `json:"full_name"`
	Role     *string `json:"role" validate:"omitempty,oneof=OWNER ADMIN owner admin"`
	IsActive *bool   `json:"is_active"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"new_password" validate:"required,min=4"`
}

type UpdatePrivilegesRequest struct {
	Privileges []string `json:"privileges" validate:"required"`
}

// UserService is the owner's user management. Seed creates the default
// privileges, roles and accounts.
type UserService interface {
	List(ctx context.Context) ([]model.UserResponse, error)
	Get(ctx context.Context, id uint) (*model.UserResponse, error)
	Create(ctx context.Context, req *CreateUserRequest) (*model.UserResponse, error)
	Update(ctx context.Context, id uint, req *UpdateUserRequest, actorID uint) (*model.UserResponse, error)
	ResetPassword(ctx context.Context, id uint, req *ResetPasswordRequest) error
	UpdatePrivileges(ctx context.Context, id uint, req *UpdatePrivilegesRequest) (*model.UserResponse, error)
	Delete(ctx context.Context, id uint, actorID uint) error
	Roles(ctx context.Context) ([]model.Role, error)
	Privileges(ctx context.Context) ([]model.Privilege, error)
	Seed(ctx context.Context) error
}

type userService struct {
	users      repository.UserRepository
	roles      repository.RoleRepository
	privileges repository.PrivilegeRepository
	logger     *zap.Logger
	now        func() time.Time
}

func NewUserService(stores *repository.Stores, logger *zap.Logger) UserService {
	return &userService{
		users:      stores.Users,
		roles:      stores.Roles,
		privileges: stores.Privileges,
		logger:     logger.Named("user"),
		now:        time.Now,
	}
}

func (s *userService) List(ctx context.Context) ([]model.UserResponse, error) {
	users, err := s.users.FindAll()
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal mengambil data user")
	}
	responses := make([]model.UserResponse, len(users))
	for i := range users {
		responses[i] = users[i].ToResponse()
	}
	return responses, nil
}

func (s *userService) Get(ctx context.Context, id uint) (*model.UserResponse, error) {
	user, err := s.find(id)
	if err != nil {
		return nil, err
	}
	response := user.ToResponse()
	return &response, nil
}

func (s *userService) Create(ctx context.Context, req *CreateUserRequest) (*model.UserResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	username := strings.TrimSpace(req.Username)

	// 1. Username must be free
	if _, err := s.users.FindByUsername(username); err == nil {
		return nil, usernameTaken(username)
	}

	// 2. Role decides the initial privileges
	role, err := s.roleByCode(req.Role)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		Username:   username,
		FullName:   req.FullName,
		RoleID:     &role.ID,
		IsActive:   true,
		Privileges: role.Privileges,
	}
	if err := user.SetPassword(req.Password); err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal membuat user")
	}
	if err := s.users.Create(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, usernameTaken(username)
		}
		return nil, apperror.EnsureTyped(err, "Gagal membuat user")
	}
	return s.Get(ctx, user.UserID)
}

func (s *userService) Update(ctx context.Context, id uint, req *UpdateUserRequest, actorID uint) (*model.UserResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	user, err := s.find(id)
	if err != nil {
		return nil, err
	}

	if req.IsActive != nil && !*req.IsActive && id == actorID {
		return nil, apperror.Validation("Tidak dapat menonaktifkan akun sendiri")
	}
	if req.Username == nil && req.FullName == nil && req.Role == nil && req.IsActive == nil {
		return nil, apperror.Validation("Tidak ada data yang diupdate")
	}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username == "" {
			return nil, apperror.Validation("Username tidak boleh kosong")
		}
		if username != user.Username {
			if _, err := s.users.FindByUsername(username); err == nil {
				return nil, usernameTaken(username)
			}
		}
		user.Username = username
	}
	if req.FullName != nil {
		user.FullName = *req.FullName
	}
	roleChanged := false
	if req.Role != nil {
		role, err := s.roleByCode(*req.Role)
		if err != nil {
			return nil, err
		}
		if user.RoleCode() == model.RoleOwner && role.Code != model.RoleOwner {
			if err := s.keepOneOwner(); err != nil {
				return nil, err
			}
		}
		roleChanged = user.RoleID == nil || *user.RoleID != role.ID
		user.RoleID = &role.ID
		user.Role = role
	}
	if req.IsActive != nil {
		if !*req.IsActive && user.IsActive && user.RoleCode() == model.RoleOwner {
			if err := s.keepOneOwner(); err != nil {
				return nil, err
			}
		}
		user.IsActive = *req.IsActive
	}
	user.UpdatedAt = s.now()

	if err := s.users.Update(user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, usernameTaken(user.Username)
		}
		return nil, apperror.EnsureTyped(err, "Gagal memperbarui user")
	}
	if roleChanged {
		if err := s.users.UpdatePrivileges(id, user.Role.Privileges); err != nil {
			return nil, apperror.EnsureTyped(err, "Gagal memperbarui user")
		}
	}
	return s.Get(ctx, id)
}

func (s *userService) ResetPassword(ctx context.Context, id uint, req *ResetPasswordRequest) error {
	if err := validate(req); err != nil {
		return apperror.Validationf("Password minimal %d karakter", model.MinPasswordLength)
	}
	user, err := s.find(id)
	if err != nil {
		return err
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		return apperror.EnsureTyped(err, "Gagal reset password")
	}
	if err := s.users.UpdatePassword(id, user.Password); err != nil {
		return apperror.EnsureTyped(err, "Gagal reset password")
	}
	return nil
}

func (s *userService) UpdatePrivileges(ctx context.Context, id uint, req *UpdatePrivilegesRequest) (*model.UserResponse, error) {
	if err := validate(req); err != nil {
		return nil, err
	}
	if _, err := s.find(id); err != nil {
		return nil, err
	}

	privileges, err := s.privileges.FindByCodes(req.Privileges)
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal memperbarui hak akses")
	}
	if len(privileges) != len(uniqueStrings(req.Privileges)) {
		return nil, apperror.Validation("Hak akses tidak dikenal")
	}
	if err := s.users.UpdatePrivileges(id, privileges); err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal memperbarui hak akses")
	}
	return s.Get(ctx, id)
}

// Delete deactivates the account; rows stay for the audit columns
func (s *userService) Delete(ctx context.Context, id uint, actorID uint) error {
	user, err := s.find(id)
	if err != nil {
		return err
	}
	if id == actorID {
		return apperror.Validation("Tidak dapat menghapus akun sendiri")
	}
	if user.IsActive && user.RoleCode() == model.RoleOwner {
		if err := s.keepOneOwner(); err != nil {
			return err
		}
	}

	user.IsActive = false
	user.UpdatedAt = s.now()
	if err := s.users.Update(user); err != nil {
		return apperror.EnsureTyped(err, "Gagal menghapus user")
	}
	return nil
}

func (s *userService) Roles(ctx context.Context) ([]model.Role, error) {
	roles, err := s.roles.FindAll()
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal mengambil data role")
	}
	return roles, nil
}

func (s *userService) Privileges(ctx context.Context) ([]model.Privilege, error) {
	privileges, err := s.privileges.FindAll()
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal mengambil data hak akses")
	}
	return privileges, nil
}

// Seed is idempotent. Default accounts are only created on an empty users table.
func (s *userService) Seed(ctx context.Context) error {
	if err := s.privileges.SeedDefaults(); err != nil {
		return err
	}
	if err := s.roles.SeedDefaults(); err != nil {
		return err
	}

	all, err := s.privileges.FindAll()
	if err != nil {
		return err
	}
	var storeOps []model.Privilege
	for _, p := range all {
		if !model.IsUserManagement(p.Code) {
			storeOps = append(storeOps, p)
		}
	}
	grants := map[string][]model.Privilege{
		model.RoleOwner: all,
		model.RoleAdmin: storeOps,
	}
	roles := map[string]*model.Role{}
	for code, privileges := range grants {
		role, err := s.roles.FindByCode(code)
		if err != nil {
			return err
		}
		if err := s.roles.AssignPrivileges(role, privileges); err != nil {
			return err
		}
		role.Privileges = privileges
		roles[code] = role
	}

	count, err := s.users.Count()
	if err != nil || count > 0 {
		return err
	}
	for _, d := range []struct{ username, fullName, role string }{
		{"owner", "Pemilik Toko", model.RoleOwner},
		{"admin", "Admin Toko", model.RoleAdmin},
	} {
		role := roles[d.role]
		user := &model.User{
			Username:   d.username,
			FullName:   d.fullName,
			RoleID:     &role.ID,
			IsActive:   true,
			Privileges: role.Privileges,
		}
		if err := user.SetPassword(d.username); err != nil {
			return err
		}
		if err := s.users.Create(user); err != nil {
			return err
		}
		s.logger.Warn("default user created, change its password", zap.String("username", d.username))
	}
	return nil
}

func (s *userService) find(id uint) (*model.User, error) {
	user, err := s.users.FindByID(id)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("User", id)
		}
		return nil, apperror.EnsureTyped(err, "Gagal mengambil data user")
	}
	return user, nil
}

func (s *userService) roleByCode(code string) (*model.Role, error) {
	role, err := s.roles.FindByCode(strings.ToUpper(strings.TrimSpace(code)))
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.Validation("Role harus owner atau admin")
		}
		return nil, apperror.EnsureTyped(err, "Gagal mengambil data role")
	}
	return role, nil
}

// keepOneOwner rejects changes that would leave no active owner
func (s *userService) keepOneOwner() error {
	owners, err := s.users.CountActiveByRole(model.RoleOwner)
	if err != nil {
		return apperror.EnsureTyped(err, "Gagal memeriksa owner")
	}
	if owners <= 1 {
		return apperror.Validation("Tidak dapat menghapus owner terakhir")
	}
	return nil
}

func usernameTaken(username string) error {
	return apperror.Conflict("USERNAME_EXISTS", "Username sudah digunakan").WithDetail("username", username)
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
