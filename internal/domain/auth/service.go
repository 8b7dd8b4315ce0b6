package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"pharmadesk/internal/core/apperror"
	appctx "pharmadesk/internal/core/context"
	"pharmadesk/internal/core/id"
	"pharmadesk/internal/core/tx"
	"pharmadesk/internal/domain"
	"pharmadesk/pkg/logger"
)

// ServiceConfig holds auth service configuration.
type ServiceConfig struct {
	MaxLoginAttempts  int
	LockDuration      time.Duration
	PasswordMinLength int
}

// DefaultServiceConfig returns default configuration.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		MaxLoginAttempts:  5,
		LockDuration:      15 * time.Minute,
		PasswordMinLength: 8,
	}
}

// Service provides login and user management.
type Service struct {
	userRepo   UserRepository
	txManager  tx.Manager
	jwtService *JWTService
	config     ServiceConfig
	now        func() time.Time
}

// NewService creates a new auth service.
func NewService(userRepo UserRepository, txManager tx.Manager, jwtService *JWTService, config ServiceConfig) *Service {
	return &Service{
		userRepo:   userRepo,
		txManager:  txManager,
		jwtService: jwtService,
		config:     config,
		now:        time.Now,
	}
}

// HashPassword hashes a password with bcrypt.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

// Login checks the credentials and issues an access token. Unknown users
// and bad passwords get the same error.
func (s *Service) Login(ctx context.Context, creds Credentials) (*Token, *User, error) {
	username := NormalizeUsername(creds.Username)
	if username == "" || creds.Password == "" {
		return nil, nil, apperror.NewValidation("username and password are required")
	}

	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, nil, apperror.NewUnauthorized("invalid credentials")
		}
		return nil, nil, fmt.Errorf("load user: %w", err)
	}

	now := s.now().UTC()
	if err := user.CanLogin(now); err != nil {
		return nil, nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		user.RecordFailedLogin(now, s.config.MaxLoginAttempts, s.config.LockDuration)
		if err := s.userRepo.Update(ctx, user); err != nil {
			logger.Warn(ctx, "failed to record failed login", "user_id", user.ID, "error", err)
		}
		logger.Warn(ctx, "login rejected", "username", username)
		return nil, nil, apperror.NewUnauthorized("invalid credentials")
	}

	accessToken, expiresAt, err := s.jwtService.GenerateAccessToken(user)
	if err != nil {
		return nil, nil, fmt.Errorf("generate access token: %w", err)
	}

	user.RecordSuccessfulLogin(now)
	if err := s.userRepo.Update(ctx, user); err != nil {
		logger.Warn(ctx, "failed to record login", "user_id", user.ID, "error", err)
	}

	logger.Info(ctx, "user logged in", "user_id", user.ID, "role", user.Role)

	return &Token{AccessToken: accessToken, TokenType: "Bearer", ExpiresAt: expiresAt}, user, nil
}

// Me returns the user behind the request.
func (s *Service) Me(ctx context.Context) (*User, error) {
	uid, err := id.Parse(appctx.GetUserID(ctx))
	if err != nil {
		return nil, apperror.NewUnauthorized("authentication required")
	}
	user, err := s.userRepo.GetByID(ctx, uid)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// CreateUser adds a staff account.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	if len(req.Password) < s.config.PasswordMinLength {
		return nil, apperror.NewFieldValidation("password",
			fmt.Sprintf("password must be at least %d characters", s.config.PasswordMinLength))
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, err
	}
	user := NewUser(req.Username, req.FullName, hash, req.Role)
	if err := user.Validate(ctx); err != nil {
		return nil, err
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}

	logger.Info(ctx, "user created",
		"user_id", user.ID,
		"username", user.Username,
		"role", user.Role,
		"created_by", appctx.GetUserID(ctx))
	return user, nil
}

// ListUsers lists users with filtering.
func (s *Service) ListUsers(ctx context.Context, filter UserFilter) (domain.ListResult[*User], error) {
	return s.userRepo.List(ctx, filter)
}

// ChangeRole assigns a new role. Users cannot change their own role.
func (s *Service) ChangeRole(ctx context.Context, userID id.ID, role string) (*User, error) {
	if appctx.GetUserID(ctx) == userID.String() {
		return nil, apperror.NewBusinessRule("SELF_ROLE_CHANGE", "you cannot change your own role")
	}
	return s.update(ctx, userID, func(u *User) error {
		u.Role = role
		return u.Validate(ctx)
	}, "user role changed", "role", role)
}

// Deactivate disables an account. Users cannot deactivate themselves.
func (s *Service) Deactivate(ctx context.Context, userID id.ID) (*User, error) {
	if appctx.GetUserID(ctx) == userID.String() {
		return nil, apperror.NewBusinessRule("SELF_DEACTIVATION", "you cannot deactivate your own account")
	}
	return s.update(ctx, userID, func(u *User) error {
		u.IsActive = false
		return nil
	}, "user deactivated")
}

func (s *Service) update(ctx context.Context, userID id.ID, mutate func(*User) error, msg string, kv ...any) (*User, error) {
	var user *User
	err := s.txManager.RunInTransaction(ctx, func(ctx context.Context) error {
		u, err := s.userRepo.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if err := mutate(u); err != nil {
			return err
		}
		if err := s.userRepo.Update(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	})
	if err != nil {
		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	logger.Info(ctx, msg, append([]any{"user_id", userID, "by", appctx.GetUserID(ctx)}, kv...)...)
	return user, nil
}
