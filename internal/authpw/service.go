// Package authpw provides email/password authentication for the admin account.
package authpw

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"portfolio/api/internal/store"

	"golang.org/x/crypto/bcrypt"
)

const otpTTL = 10 * time.Minute

// Sender delivers reset codes. Implemented by email.Service.
type Sender interface {
	IsConfigured() bool
	SendPasswordResetCode(to, code string, minutes int) error
}

// AdminStore defines the storage interface for auth
type AdminStore interface {
	GetAdminByEmail(ctx context.Context, email string) (store.Admin, error)
	GetAdminByID(ctx context.Context, id string) (store.Admin, error)
	UpdateAdminPassword(ctx context.Context, id, passwordHash string) error
	InsertPasswordOTP(ctx context.Context, otp store.PasswordOTP) error
	ConsumePasswordOTP(ctx context.Context, email, code string) (bool, error)
}

// Service provides admin password authentication
type Service struct {
	store AdminStore
	email Sender
}

// NewService creates a new auth service
func NewService(store AdminStore, email Sender) *Service {
	return &Service{
		store: store,
		email: email,
	}
}

// SignIn authenticates the admin by email and password.
func (s *Service) SignIn(ctx context.Context, email, password string) (store.Admin, error) {
	if email == "" || password == "" {
		return store.Admin{}, errors.New("email and password are required")
	}

	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		return store.Admin{}, errors.New("invalid email or password")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return store.Admin{}, errors.New("invalid email or password")
	}

	return admin, nil
}

// ChangePassword verifies the current password and sets a new one.
func (s *Service) ChangePassword(ctx context.Context, adminID, current, next string) error {
	if current == "" || next == "" {
		return errors.New("current and new password are required")
	}
	if len(next) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	admin, err := s.store.GetAdminByID(ctx, adminID)
	if err != nil {
		return fmt.Errorf("load admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(current)); err != nil {
		return errors.New("current password is incorrect")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(next), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.store.UpdateAdminPassword(ctx, admin.ID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

// RequestPasswordReset issues a one-time code and emails it to the admin.
// It never reveals whether the email has an account.
func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		// Don't reveal if email exists
		return nil
	}

	if !s.email.IsConfigured() {
		return errors.New("password reset is not available")
	}

	code, err := generateOTP()
	if err != nil {
		return fmt.Errorf("generate reset code: %w", err)
	}

	otp := store.PasswordOTP{
		Email:     admin.Email,
		Code:      code,
		ExpiresAt: time.Now().Add(otpTTL),
	}
	if err := s.store.InsertPasswordOTP(ctx, otp); err != nil {
		return fmt.Errorf("store reset code: %w", err)
	}

	if err := s.email.SendPasswordResetCode(admin.Email, code, int(otpTTL.Minutes())); err != nil {
		return fmt.Errorf("send reset code: %w", err)
	}

	return nil
}

// VerifyReset consumes a valid code and sets the new password.
func (s *Service) VerifyReset(ctx context.Context, email, code, newPassword string) error {
	if email == "" || code == "" || newPassword == "" {
		return errors.New("email, code, and new password are required")
	}
	if len(newPassword) < 8 {
		return errors.New("password must be at least 8 characters")
	}

	ok, err := s.store.ConsumePasswordOTP(ctx, email, code)
	if err != nil {
		return fmt.Errorf("consume reset code: %w", err)
	}
	if !ok {
		return errors.New("invalid or expired reset code")
	}

	admin, err := s.store.GetAdminByEmail(ctx, email)
	if err != nil {
		return errors.New("invalid or expired reset code")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.store.UpdateAdminPassword(ctx, admin.ID, string(hash)); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return nil
}

// generateOTP creates a 6-digit numeric code
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
