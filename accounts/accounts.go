package accounts

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/basit/shifter/auth"
	"github.com/basit/shifter/logging"
	"github.com/basit/shifter/models"
)

var (
	ErrNotFound           = errors.New("user not found")
	ErrEmailTaken         = errors.New("a user with that email already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrSelfDelete         = errors.New("you can't delete your own account")
	ErrAlreadySetUp       = errors.New("first-time setup has already been completed")
	ErrInvalidEmail       = errors.New("enter a valid email address")
	ErrPasswordTooShort   = errors.New("password must be at least 8 characters")
)

const minPasswordLength = 8

// DeleteHook runs inside the transaction that removes a user; tx is that
// transaction. A hook error rolls the whole deletion back.
type DeleteHook func(ctx context.Context, tx *gorm.DB, userID uuid.UUID) error

// FileCounter reports live files per owner for the user list.
type FileCounter interface {
	CountActive(ctx context.Context, owner *uuid.UUID) (int64, error)
}

type Service struct {
	db       *gorm.DB
	counter  FileCounter
	onDelete []DeleteHook
}

func NewService(db *gorm.DB, counter FileCounter) *Service {
	return &Service{db: db, counter: counter}
}

// OnDelete subscribes h to account deletion.
func (s *Service) OnDelete(h DeleteHook) {
	s.onDelete = append(s.onDelete, h)
}

type CreateParams struct {
	Email                 string
	Password              string
	IsStaff               bool
	ChangePasswordOnLogin bool
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return "", ErrInvalidEmail
	}
	return strings.ToLower(addr.Address), nil
}

func (s *Service) Create(ctx context.Context, p CreateParams) (*models.User, error) {
	email, err := normalizeEmail(p.Email)
	if err != nil {
		return nil, err
	}
	if len(p.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}
	hash, err := auth.HashPassword(p.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:                 email,
		PasswordHash:          hash,
		IsStaff:               p.IsStaff,
		ChangePasswordOnLogin: p.ChangePasswordOnLogin,
	}
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return user, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	return &user, nil
}

// Authenticate checks credentials and records the login time.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).Take(&user, "email = ?", strings.ToLower(strings.TrimSpace(email))).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if !auth.CheckPassword(user.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	now := time.Now().UTC()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login", now).Error; err != nil {
		logging.FromContext(ctx).Warn("failed to record last login", zap.Error(err))
	}
	user.LastLogin = &now
	return &user, nil
}

type Summary struct {
	models.User
	ActiveFiles int64 `json:"active_files"`
}

func (s *Service) List(ctx context.Context) ([]Summary, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("email ASC").Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]Summary, 0, len(users))
	for _, u := range users {
		id := u.ID
		n, err := s.counter.CountActive(ctx, &id)
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{User: u, ActiveFiles: n})
	}
	return out, nil
}

// Delete removes a user. In one transaction the delete hooks run first, so
// the user's files are expired while ownership is still known, then the
// files lose their owner and the user row goes. The files survive until
// the sweep.
func (s *Service) Delete(ctx context.Context, id, actor uuid.UUID) error {
	if id == actor {
		return ErrSelfDelete
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, h := range s.onDelete {
			if err := h(ctx, tx, id); err != nil {
				return fmt.Errorf("failed to prepare deletion of user %s: %w", id, err)
			}
		}
		if err := tx.Model(&models.File{}).Where("owner_id = ?", id).Update("owner_id", nil).Error; err != nil {
			return fmt.Errorf("failed to detach files: %w", err)
		}
		res := tx.Delete(&models.User{}, "id = ?", id)
		if res.Error != nil {
			return fmt.Errorf("failed to delete user: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ResetPassword sets a new password chosen by staff and makes the user
// change it at next login.
func (s *Service) ResetPassword(ctx context.Context, id uuid.UUID, password string) error {
	return s.setPassword(ctx, id, password, true)
}

// ChangePassword is the user changing their own password.
func (s *Service) ChangePassword(ctx context.Context, id uuid.UUID, current, password string) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !auth.CheckPassword(user.PasswordHash, current) {
		return ErrInvalidCredentials
	}
	return s.setPassword(ctx, id, password, false)
}

func (s *Service) setPassword(ctx context.Context, id uuid.UUID, password string, forceChange bool) error {
	if len(password) < minPasswordLength {
		return ErrPasswordTooShort
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash":            hash,
		"change_password_on_login": forceChange,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to update password: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Service) SetupRequired(ctx context.Context) (bool, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&n).Error; err != nil {
		return false, fmt.Errorf("failed to count users: %w", err)
	}
	return n == 0, nil
}

// Setup creates the first staff account. It fails once any user exists.
func (s *Service) Setup(ctx context.Context, email, password string) (*models.User, error) {
	required, err := s.SetupRequired(ctx)
	if err != nil {
		return nil, err
	}
	if !required {
		return nil, ErrAlreadySetUp
	}
	return s.Create(ctx, CreateParams{Email: email, Password: password, IsStaff: true})
}
