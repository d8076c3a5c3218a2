package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/projecthub/projecthub/internal/auth"
	"github.com/projecthub/projecthub/internal/config"
	"github.com/projecthub/projecthub/internal/db/models"
)

type fakeStore struct {
	existing  *models.User
	lookupErr error
	createErr error
	created   []*models.User
}

func (f *fakeStore) GetSuperAdminByEmail(_ context.Context, email string) (*models.User, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if f.existing != nil && f.existing.Email == email {
		return f.existing, nil
	}
	return nil, nil
}

func (f *fakeStore) CreateSuperAdmin(_ context.Context, u *models.User) error {
	if f.createErr != nil {
		return f.createErr
	}
	u.ID = "sa-1"
	f.created = append(f.created, u)
	return nil
}

var hasher = auth.NewPasswordHasher(4)

func TestEnsureSuperAdmin_Creates(t *testing.T) {
	store := &fakeStore{}
	cfg := config.BootstrapConfig{SuperAdminEmail: "  Root@Example.com ", SuperAdminPassword: "s3cret-pass"}

	created, err := EnsureSuperAdmin(context.Background(), cfg, store, hasher)
	require.NoError(t, err)
	assert.True(t, created)
	require.Len(t, store.created, 1)

	u := store.created[0]
	assert.Equal(t, "root@example.com", u.Email)
	assert.Equal(t, "super_admin", u.Role)
	assert.Equal(t, defaultSuperAdminName, u.FullName)
	assert.True(t, u.IsActive)
	assert.Nil(t, u.OrganizationID)
	assert.True(t, hasher.Verify(u.PasswordHash, "s3cret-pass"))
}

func TestEnsureSuperAdmin_Idempotent(t *testing.T) {
	store := &fakeStore{existing: &models.User{ID: "sa-0", Email: "root@example.com"}}
	cfg := config.BootstrapConfig{SuperAdminEmail: "root@example.com", SuperAdminPassword: "x", SuperAdminName: "Root"}

	created, err := EnsureSuperAdmin(context.Background(), cfg, store, hasher)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, store.created)
}

func TestEnsureSuperAdmin_MissingCredentials(t *testing.T) {
	_, err := EnsureSuperAdmin(context.Background(), config.BootstrapConfig{SuperAdminEmail: "root@example.com"}, &fakeStore{}, hasher)
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestEnsureSuperAdmin_StoreErrors(t *testing.T) {
	cfg := config.BootstrapConfig{SuperAdminEmail: "root@example.com", SuperAdminPassword: "x"}
	boom := errors.New("connection reset")

	_, err := EnsureSuperAdmin(context.Background(), cfg, &fakeStore{lookupErr: boom}, hasher)
	assert.ErrorIs(t, err, boom)

	_, err = EnsureSuperAdmin(context.Background(), cfg, &fakeStore{createErr: boom}, hasher)
	assert.ErrorIs(t, err, boom)
}
