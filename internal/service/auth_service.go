package service

import (
	"context"
	"strings"
	"time"

	"go-bookstore-pos/internal/events"
	"go-bookstore-pos/internal/model"
	"go-bookstore-pos/internal/repository"
	"go-bookstore-pos/pkg/apperror"
	"go-bookstore-pos/pkg/jwt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=4"`
}

type LoginResponse struct {
	Token      string             `json:"token"`
	User       model.UserResponse `json:"user"`
	Role       *model.Role        `json:"role"`       // Direct role object for the dashboard store
	Privileges []string           `json:"privileges"` // Flat privileges array for easy checking
}

type MeResponse struct {
	User       model.UserResponse `json:"user"`
	Role       *model.Role        `json:"role"`
	Privileges []string           `json:"privileges"`
}

type AuthService interface {
	Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error)
	Me(ctx context.Context, userID uint) (*MeResponse, error)
	ChangePassword(ctx context.Context, userID uint, req *ChangePasswordRequest) error
	Heartbeat(ctx context.Context, actor events.Actor) error
}

type authService struct {
	users    repository.UserRepository
	tokens   *jwt.Manager
	notifier *Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewAuthService(users repository.UserRepository, tokens *jwt.Manager, notifier *Notifier, logger *zap.Logger) AuthService {
	return &authService{
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		logger:   logger.Named("auth"),
		now:      time.Now,
	}
}

func (s *authService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	if err := validate(req); err != nil {
		return nil, apperror.Validation("Username dan password harus diisi")
	}
	m := s.notifier.Metrics()

	// 1. Find user by username
	user, err := s.users.FindByUsername(strings.TrimSpace(req.Username))
	if err != nil {
		if !isNotFound(err) {
			return nil, apperror.EnsureTyped(err, "Gagal login")
		}
		m.RecordAuth("invalid")
		return nil, apperror.Unauthorized("Username atau password salah")
	}

	// 2. Verify password, then the active flag
	if !user.CheckPassword(req.Password) {
		m.RecordAuth("invalid")
		return nil, apperror.Unauthorized("Username atau password salah")
	}
	if !user.IsActive {
		m.RecordAuth("inactive")
		return nil, apperror.Unauthorized("Akun tidak aktif")
	}

	// 3. Single session: a new version invalidates older tokens
	version := uuid.NewString()
	now := s.now()
	if err := s.users.RecordLogin(user.UserID, version, now); err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal memperbarui sesi")
	}
	user.LastLogin = &now
	user.LastSeenAt = &now

	token, err := s.tokens.GenerateToken(user.UserID, user.Username, user.FullName, user.RoleCode(), user.GetPrivilegeCodes(), version)
	if err != nil {
		return nil, apperror.EnsureTyped(err, "Gagal membuat token")
	}

	m.RecordAuth("success")
	s.logger.Info("user logged in", zap.Uint("user_id", user.UserID), zap.String("username", user.Username))
	return &LoginResponse{
		Token:      token,
		User:       user.ToResponse(),
		Role:       user.Role,
		Privileges: user.GetPrivilegeCodes(),
	}, nil
}

func (s *authService) Me(ctx context.Context, userID uint) (*MeResponse, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		if isNotFound(err) {
			return nil, apperror.NotFound("User", userID)
		}
		return nil, apperror.EnsureTyped(err, "Gagal mengambil data user")
	}
	return &MeResponse{
		User:       user.ToResponse(),
		Role:       user.Role,
		Privileges: user.GetPrivilegeCodes(),
	}, nil
}

func (s *authService) ChangePassword(ctx context.Context, userID uint, req *ChangePasswordRequest) error {
	if err := validate(req); err != nil {
		if strings.Contains(err.Error(), "'min=") {
			return apperror.Validationf("Password baru minimal %d karakter", model.MinPasswordLength)
		}
		return apperror.Validation("Password lama dan baru harus diisi")
	}

	user, err := s.users.FindByID(userID)
	if err != nil {
		if isNotFound(err) {
			return apperror.NotFound("User", userID)
		}
		return apperror.EnsureTyped(err, "Gagal mengubah password")
	}
	if !user.CheckPassword(req.CurrentPassword) {
		return apperror.Unauthorized("Password lama salah")
	}
	if err := user.SetPassword(req.NewPassword); err != nil {
		return apperror.EnsureTyped(err, "Gagal mengubah password")
	}
	if err := s.users.UpdatePassword(userID, user.Password); err != nil {
		return apperror.EnsureTyped(err, "Gagal mengubah password")
	}
	return nil
}

// Heartbeat stamps last_seen_at and tells the dashboards the user is online
func (s *authService) Heartbeat(ctx context.Context, actor events.Actor) error {
	now := s.now()
	if err := s.users.UpdateLastSeen(actor.ID, now); err != nil {
		return apperror.EnsureTyped(err, "Gagal memperbarui status")
	}

	event := events.New(events.TypeUserPresence, events.UserOnline, payload{
		"user_id":      actor.ID,
		"status":       "online",
		"last_seen_at": now,
	})
	s.notifier.Publish(ctx, withActor(event, actor, ""))
	return nil
}
