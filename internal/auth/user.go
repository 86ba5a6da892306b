package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/rs/xid"

	"github.com/shaddad2189/sfconnect-v11/internal/auth/secret"
	"github.com/shaddad2189/sfconnect-v11/internal/auth/token"
	"github.com/shaddad2189/sfconnect-v11/internal/model"
	"github.com/shaddad2189/sfconnect-v11/internal/storage"
)

var (
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials covers both an unknown email and a wrong
	// password so that login responses never reveal whether an account
	// exists.
	ErrInvalidCredentials = errors.New("invalid email or password")

	ErrIncorrectPassword = errors.New("incorrect password")
)

type UserStorage interface {
	FindByEmail(ctx context.Context, email string) (model.User, error)
	FindByID(ctx context.Context, userID string) (model.User, error)
	GetHashedPassword(ctx context.Context, email string) (string, error)
	GetHashedPasswordByID(ctx context.Context, userID string) (string, error)
	Create(ctx context.Context, user model.User, hashedPassword string) error
	Update(ctx context.Context, user model.User) error
	UpdatePassword(ctx context.Context, userID string, hashedPassword string) error
	UpdateLastSignedIn(ctx context.Context, userID string, t time.Time) error
	Delete(ctx context.Context, userID string) error
	ListAll(ctx context.Context) ([]model.User, error)
}

type UserService struct {
	logger  *slog.Logger
	storage UserStorage
	jwt     *token.JWTService
}

func NewUserService(logger *slog.Logger, storage UserStorage, jwt *token.JWTService) *UserService {
	return &UserService{
		logger:  logger,
		storage: storage,
		jwt:     jwt,
	}
}

// Login verifies the password for the given email. When the account has MFA
// enabled it reports mfaRequired=true and the caller must complete the
// second factor before a session token exists; only an MFA-less login
// updates the last-signed-in timestamp here.
func (s *UserService) Login(ctx context.Context, email, password string) (model.User, bool, error) {
	s.logger.Debug("login", slog.String("email", email))

	ok, err := s.CheckPassword(ctx, email, password)
	if errors.Is(err, storage.ErrNotFound) {
		return model.User{}, false, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, false, err
	}
	if !ok {
		return model.User{}, false, ErrInvalidCredentials
	}

	u, err := s.storage.FindByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return model.User{}, false, ErrInvalidCredentials
	}
	if err != nil {
		return model.User{}, false, err
	}

	if u.MFAEnabled {
		return u, true, nil
	}

	if err := s.storage.UpdateLastSignedIn(ctx, u.ID, time.Now()); err != nil {
		return model.User{}, false, err
	}

	return u, false, nil
}

func (s *UserService) SignUp(ctx context.Context, email, password, name string) (model.User, error) {
	ok, err := s.EmailExists(ctx, email)
	if err != nil {
		return model.User{}, err
	}
	if ok {
		return model.User{}, ErrUserExists
	}

	u := model.User{
		ID:           xid.New().String(),
		Email:        email,
		Name:         name,
		Role:         model.RoleOperator,
		LastSignedIn: time.Now(),
	}

	hashedPassword, err := secret.Hash(password)
	if err != nil {
		return model.User{}, err
	}

	if err := s.storage.Create(ctx, u, hashedPassword); err != nil {
		return model.User{}, err
	}

	return u, nil
}

func (s *UserService) GenerateAccessToken(ctx context.Context, user model.User) (string, error) {
	return s.jwt.Issue(ctx, user.ID, user.Email, user.Role, 0)
}

// ChangePassword requires the current password; administrator resets go
// through ResetPassword instead.
func (s *UserService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	hashedPassword, err := s.storage.GetHashedPasswordByID(ctx, userID)
	if err != nil {
		return err
	}

	ok, err := secret.Compare(currentPassword, hashedPassword)
	if err != nil {
		return err
	}
	if !ok {
		return ErrIncorrectPassword
	}

	newHashedPassword, err := secret.Hash(newPassword)
	if err != nil {
		return err
	}

	return s.storage.UpdatePassword(ctx, userID, newHashedPassword)
}

// ResetPassword replaces a user's password without verifying the current
// one. Callers must hold the admin role and record an audit entry.
func (s *UserService) ResetPassword(ctx context.Context, userID, newPassword string) error {
	hashedPassword, err := secret.Hash(newPassword)
	if err != nil {
		return err
	}

	return s.storage.UpdatePassword(ctx, userID, hashedPassword)
}

func (s *UserService) FindByID(ctx context.Context, userID string) (model.User, error) {
	return s.storage.FindByID(ctx, userID)
}

func (s *UserService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.storage.ListAll(ctx)
}

func (s *UserService) UpdateUser(ctx context.Context, user model.User) error {
	return s.storage.Update(ctx, user)
}

func (s *UserService) DeleteUser(ctx context.Context, userID string) error {
	return s.storage.Delete(ctx, userID)
}

func (s *UserService) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := s.storage.FindByEmail(ctx, email)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	return true, nil
}

func (s *UserService) CheckPassword(ctx context.Context, email, password string) (bool, error) {
	hashedPassword, err := s.storage.GetHashedPassword(ctx, email)
	if err != nil {
		return false, err
	}

	return secret.Compare(password, hashedPassword)
}

// EnsureBootstrapAdmin seeds the first administrator account when no user
// with the given email exists. Idempotent across restarts and processes.
func (s *UserService) EnsureBootstrapAdmin(ctx context.Context, email, password string) error {
	ok, err := s.EmailExists(ctx, email)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}

	hashedPassword, err := secret.Hash(password)
	if err != nil {
		return err
	}

	u := model.User{
		ID:            xid.New().String(),
		Email:         email,
		Name:          "Administrator",
		Role:          model.RoleAdmin,
		EmailVerified: true,
		LastSignedIn:  time.Now(),
	}

	if err := s.storage.Create(ctx, u, hashedPassword); err != nil {
		return err
	}

	s.logger.Warn("bootstrap admin created, change the password immediately", slog.String("email", email))

	return nil
}
