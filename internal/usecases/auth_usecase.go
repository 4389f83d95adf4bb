package usecases

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"telereply/internal/entities"
	"telereply/internal/repository"
)

const tokenTTL = 7 * 24 * time.Hour

var (
	ErrAdminExists        = errors.New("admin account already exists")
	ErrInvalidCredentials = errors.New("invalid username or password")
)

// AuthUsecase handles the single-admin bootstrap flow and issues the JWTs
// that gate the HTTP facade: an admin token for management endpoints and a
// per-tenant user token for the chat endpoints.
type AuthUsecase struct {
	admins    *repository.AdminRepository
	jwtSecret []byte
}

func NewAuthUsecase(admins *repository.AdminRepository, jwtSecret string) *AuthUsecase {
	return &AuthUsecase{admins: admins, jwtSecret: []byte(jwtSecret)}
}

// SetupRequired reports whether no admin account has been created yet.
func (u *AuthUsecase) SetupRequired(ctx context.Context) (bool, error) {
	exists, err := u.admins.Exists(ctx)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// SetupAdmin creates the initial admin account. Only one admin is supported.
func (u *AuthUsecase) SetupAdmin(ctx context.Context, username, password string) error {
	exists, err := u.admins.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return ErrAdminExists
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	return u.admins.Create(ctx, &entities.Admin{
		Username:     username,
		PasswordHash: string(hash),
	})
}

// LoginAdmin verifies the password and returns a signed admin token plus the
// must-change-password flag so the UI can force a rotation on first login.
func (u *AuthUsecase) LoginAdmin(ctx context.Context, username, password string) (string, bool, error) {
	admin, err := u.admins.GetByUsername(ctx, username)
	if err != nil {
		return "", false, err
	}
	if admin == nil {
		return "", false, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		return "", false, ErrInvalidCredentials
	}
	token, err := u.signToken(jwt.MapClaims{
		"sub":         admin.Username,
		"type":        "admin",
		"must_change": admin.MustChangePassword,
		"exp":         time.Now().Add(tokenTTL).Unix(),
	})
	if err != nil {
		return "", false, err
	}
	return token, admin.MustChangePassword, nil
}

// ChangeAdminPassword rotates the admin password after verifying the current
// one and returns a fresh token with the must-change flag cleared.
func (u *AuthUsecase) ChangeAdminPassword(ctx context.Context, username, currentPassword, newPassword string) (string, error) {
	admin, err := u.admins.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if admin == nil {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(currentPassword)); err != nil {
		return "", ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	if err := u.admins.UpdatePassword(ctx, username, string(hash)); err != nil {
		return "", err
	}
	return u.signToken(jwt.MapClaims{
		"sub":         username,
		"type":        "admin",
		"must_change": false,
		"exp":         time.Now().Add(tokenTTL).Unix(),
	})
}

// IssueUserToken mints the per-tenant token handed out after a successful
// login handshake.
func (u *AuthUsecase) IssueUserToken(apiID string) (string, error) {
	return u.signToken(jwt.MapClaims{
		"sub":  apiID,
		"type": "user",
		"exp":  time.Now().Add(tokenTTL).Unix(),
	})
}

func (u *AuthUsecase) signToken(claims jwt.MapClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(u.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
