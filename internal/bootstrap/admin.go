// Package bootstrap creates the platform's first super admin. Super admins
// belong to no organization, so registration can never produce one.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/config"
	"github.com/projecthub/projecthub/internal/db/models"
)

const defaultSuperAdminName = "Platform Admin"

// ErrMissingCredentials is returned when the bootstrap email or password is unset.
var ErrMissingCredentials = errors.New("bootstrap.super_admin_email and bootstrap.super_admin_password are required")

// SuperAdminStore is the persistence EnsureSuperAdmin needs.
// *repositories.UserRepository satisfies it.
type SuperAdminStore interface {
	GetSuperAdminByEmail(ctx context.Context, email string) (*models.User, error)
	CreateSuperAdmin(ctx context.Context, user *models.User) error
}

// EnsureSuperAdmin creates the super admin described by cfg unless one with
// that email already exists. It reports whether an account was created.
func EnsureSuperAdmin(ctx context.Context, cfg config.BootstrapConfig, users SuperAdminStore, hasher *auth.PasswordHasher) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(cfg.SuperAdminEmail))
	if email == "" || strings.TrimSpace(cfg.SuperAdminPassword) == "" {
		return false, ErrMissingCredentials
	}

	existing, err := users.GetSuperAdminByEmail(ctx, email)
	if err != nil {
		return false, fmt.Errorf("bootstrap lookup super admin: %w", err)
	}
	if existing != nil {
		slog.Info("super admin already exists", "email", email)
		return false, nil
	}

	hash, err := hasher.Hash(cfg.SuperAdminPassword)
	if err != nil {
		return false, fmt.Errorf("bootstrap hash password: %w", err)
	}

	name := strings.TrimSpace(cfg.SuperAdminName)
	if name == "" {
		name = defaultSuperAdminName
	}
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FullName:     name,
		Role:         string(auth.RoleSuperAdmin),
		IsActive:     true,
	}
	if err := users.CreateSuperAdmin(ctx, user); err != nil {
		return false, fmt.Errorf("bootstrap create super admin: %w", err)
	}

	slog.Info("super admin created", "email", email, "user_id", user.ID)
	return true, nil
}
