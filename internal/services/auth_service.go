package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/projecthub/projecthub/internal/apierr"
	"github.com/projecthub/projecthub/internal/audit"
	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/config"
	"github.com/projecthub/projecthub/internal/db/models"
	"github.com/projecthub/projecthub/internal/db/repositories"
	"github.com/projecthub/projecthub/internal/telemetry"
)

// SystemSubdomain is the reserved login subdomain of the super admin, who
// belongs to no organization. It can never be registered.
const SystemSubdomain = "system"

const msgInvalidCredentials = "Invalid credentials"

// Login outcome labels
const (
	outcomeSuccess            = "success"
	outcomeOrgNotFound        = "org_not_found"
	outcomeOrgInactive        = "org_inactive"
	outcomeInvalidCredentials = "invalid_credentials"
	outcomeError              = "error"
)

// RegisterInput is the self-service organization registration request
type RegisterInput struct {
	OrganizationName string `json:"organizationName" binding:"required,max=255"`
	Subdomain        string `json:"subdomain" binding:"required,subdomain"`
	AdminEmail       string `json:"adminEmail" binding:"required,email,max=255"`
	AdminPassword    string `json:"adminPassword" binding:"required,min=8,max=72"`
	AdminFullName    string `json:"adminFullName" binding:"required,max=255"`
}

// LoginInput is the login request
type LoginInput struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required"`
	Subdomain string `json:"subdomain" binding:"required"`
}

// AdminUser is the admin account created by registration
type AdminUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// RegisterResult is returned by RegisterOrganization
type RegisterResult struct {
	OrganizationID string    `json:"organizationId"`
	Subdomain      string    `json:"subdomain"`
	AdminUser      AdminUser `json:"adminUser"`
}

// SessionUser is the user block of a login response
type SessionUser struct {
	ID             string  `json:"id"`
	Email          string  `json:"email"`
	FullName       string  `json:"fullName"`
	Role           string  `json:"role"`
	OrganizationID *string `json:"organizationId"`
}

// LoginResult is returned by Login
type LoginResult struct {
	User      SessionUser `json:"user"`
	Token     string      `json:"token"`
	ExpiresIn int64       `json:"expiresIn"`
}

// ProfileOrganization is the organization block of the profile
type ProfileOrganization struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Subdomain        string `json:"subdomain"`
	SubscriptionTier string `json:"subscriptionTier"`
	MaxUsers         int    `json:"maxUsers"`
	MaxProjects      int    `json:"maxProjects"`
}

// Profile is the current user's profile
type Profile struct {
	ID           string               `json:"id"`
	Email        string               `json:"email"`
	FullName     string               `json:"fullName"`
	Role         string               `json:"role"`
	IsActive     bool                 `json:"isActive"`
	LastLogin    *time.Time           `json:"lastLogin"`
	Organization *ProfileOrganization `json:"organization"`
}

// AuthService handles registration, login and session lookups
type AuthService struct {
	orgs    OrganizationStore
	users   UserStore
	tokens  *auth.TokenService
	hasher  *auth.PasswordHasher
	tenancy config.TenancyConfig
	audit   Auditor

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService creates a new auth service
func NewAuthService(orgs OrganizationStore, users UserStore, tokens *auth.TokenService, hasher *auth.PasswordHasher, tenancy config.TenancyConfig, auditor Auditor) *AuthService {
	return &AuthService{
		orgs:    orgs,
		users:   users,
		tokens:  tokens,
		hasher:  hasher,
		tenancy: tenancy,
		audit:   auditor,
	}
}

// RegisterOrganization creates an organization together with its first org_admin.
func (s *AuthService) RegisterOrganization(ctx context.Context, in RegisterInput, ip string) (*RegisterResult, error) {
	subdomain := strings.ToLower(strings.TrimSpace(in.Subdomain))
	if subdomain == SystemSubdomain {
		return nil, apierr.Conflict("Subdomain already exists")
	}

	hash, err := s.hasher.Hash(in.AdminPassword)
	if err != nil {
		return nil, internal("hash admin password", err)
	}

	org := &models.Organization{
		Name:             strings.TrimSpace(in.OrganizationName),
		Subdomain:        subdomain,
		Status:           models.OrganizationActive,
		SubscriptionTier: derefOr(&s.tenancy.DefaultTier, models.TierFree),
		MaxUsers:         positiveOr(s.tenancy.DefaultMaxUsers, 5),
		MaxProjects:      positiveOr(s.tenancy.DefaultMaxProjects, 3),
	}
	admin := &models.User{
		Email:        normalizeEmail(in.AdminEmail),
		PasswordHash: hash,
		FullName:     strings.TrimSpace(in.AdminFullName),
		Role:         string(auth.RoleOrgAdmin),
		IsActive:     true,
	}

	if err := s.orgs.CreateWithAdmin(ctx, org, admin); err != nil {
		switch {
		case errors.Is(err, repositories.ErrSubdomainTaken):
			return nil, apierr.Conflict("Subdomain already exists")
		case errors.Is(err, repositories.ErrEmailTaken):
			return nil, apierr.Conflict("Email already exists")
		}
		return nil, internal("register organization", err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:         audit.ActionRegisterOrganization,
		EntityType:     audit.EntityOrganization,
		EntityID:       org.ID,
		OrganizationID: org.ID,
		UserID:         admin.ID,
		IPAddress:      ip,
		Details:        map[string]interface{}{"name": org.Name, "subdomain": org.Subdomain},
	})

	return &RegisterResult{
		OrganizationID: org.ID,
		Subdomain:      org.Subdomain,
		AdminUser: AdminUser{
			ID:       admin.ID,
			Email:    admin.Email,
			FullName: admin.FullName,
			Role:     admin.Role,
		},
	}, nil
}

// Login authenticates a user within an organization and issues a token.
// Unknown user, inactive user and wrong password are indistinguishable.
func (s *AuthService) Login(ctx context.Context, in LoginInput, ip string) (*LoginResult, error) {
	email := normalizeEmail(in.Email)
	subdomain := strings.ToLower(strings.TrimSpace(in.Subdomain))

	var (
		user *models.User
		err  error
	)
	if subdomain == SystemSubdomain {
		user, err = s.users.GetSuperAdminByEmail(ctx, email)
		if err != nil {
			return nil, s.loginFailed(outcomeError, internal("lookup super admin", err))
		}
	} else {
		org, err := s.orgs.GetBySubdomain(ctx, subdomain)
		if err != nil {
			return nil, s.loginFailed(outcomeError, internal("lookup organization", err))
		}
		if org == nil {
			return nil, s.loginFailed(outcomeOrgNotFound, apierr.NotFound(msgOrganizationNotFound))
		}
		if !org.IsActive() {
			return nil, s.loginFailed(outcomeOrgInactive, apierr.Forbidden("Organization inactive"))
		}
		user, err = s.users.GetByEmailInOrganization(ctx, org.ID, email)
		if err != nil {
			return nil, s.loginFailed(outcomeError, internal("lookup user", err))
		}
	}

	if user == nil || !user.IsActive {
		s.hasher.Verify(s.dummy(), in.Password)
		return nil, s.loginFailed(outcomeInvalidCredentials, apierr.Unauthorized(msgInvalidCredentials))
	}
	if !s.hasher.Verify(user.PasswordHash, in.Password) {
		return nil, s.loginFailed(outcomeInvalidCredentials, apierr.Unauthorized(msgInvalidCredentials))
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		return nil, s.loginFailed(outcomeError, internal("update last login", err))
	}

	token, _, err := s.tokens.Issue(auth.Identity{
		UserID:         user.ID,
		OrganizationID: user.OrganizationID,
		Role:           auth.Role(user.Role),
	})
	if err != nil {
		return nil, s.loginFailed(outcomeError, internal("issue token", err))
	}
	telemetry.LoginAttemptsTotal.WithLabelValues(outcomeSuccess).Inc()

	s.audit.Record(ctx, audit.Event{
		Action:         audit.ActionLogin,
		EntityType:     audit.EntityUser,
		EntityID:       user.ID,
		OrganizationID: user.OrgID(),
		UserID:         user.ID,
		IPAddress:      ip,
	})

	return &LoginResult{
		User: SessionUser{
			ID:             user.ID,
			Email:          user.Email,
			FullName:       user.FullName,
			Role:           user.Role,
			OrganizationID: user.OrganizationID,
		},
		Token:     token,
		ExpiresIn: int64(s.tokens.TTL() / time.Second),
	}, nil
}

func positiveOr(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}

func (s *AuthService) loginFailed(outcome string, err error) error {
	telemetry.LoginAttemptsTotal.WithLabelValues(outcome).Inc()
	return err
}

// dummy returns a hash to verify against when the user does not exist, so a
// miss costs the same bcrypt work as a wrong password.
func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash("projecthub-timing-equalizer")
		if err == nil {
			s.dummyHash = h
		}
	})
	return s.dummyHash
}

// Me returns the caller's profile with their organization.
func (s *AuthService) Me(ctx context.Context, id auth.Identity) (*Profile, error) {
	user, err := s.users.GetByID(ctx, id.UserID)
	if err != nil {
		return nil, internal("get user", err)
	}
	if user == nil {
		return nil, apierr.NotFound(msgUserNotFound)
	}

	profile := &Profile{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Role:      user.Role,
		IsActive:  user.IsActive,
		LastLogin: user.LastLogin,
	}
	if orgID := user.OrgID(); orgID != "" {
		org, err := s.orgs.GetByID(ctx, orgID)
		if err != nil {
			return nil, internal("get organization", err)
		}
		if org != nil {
			profile.Organization = &ProfileOrganization{
				ID:               org.ID,
				Name:             org.Name,
				Subdomain:        org.Subdomain,
				SubscriptionTier: org.SubscriptionTier,
				MaxUsers:         org.MaxUsers,
				MaxProjects:      org.MaxProjects,
			}
		}
	}
	return profile, nil
}

// Logout records the logout. Tokens stay valid until they expire.
func (s *AuthService) Logout(ctx context.Context, id auth.Identity, ip string) {
	s.audit.Record(ctx, audit.Event{
		Action:         audit.ActionLogout,
		EntityType:     audit.EntityUser,
		EntityID:       id.UserID,
		OrganizationID: id.OrgID(),
		UserID:         id.UserID,
		IPAddress:      ip,
	})
}
