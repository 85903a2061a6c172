package main

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"plantops.io/mis/internal/domain"
	"plantops.io/mis/internal/pkg/logger"
	"plantops.io/mis/internal/repository"
)

func init() {
	_ = logger.Init("error", "json")
}

type fakeAccounts struct {
	existing  map[string]bool
	created   []repository.CreateProfileParams
	createErr error
}

func (f *fakeAccounts) EmailExists(_ context.Context, email string) (bool, error) {
	return f.existing[email], nil
}

func (f *fakeAccounts) CreateProfile(_ context.Context, p repository.CreateProfileParams) (*domain.Profile, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, p)
	return &domain.Profile{ID: "p-1", Email: p.Email, Role: p.Role}, nil
}

func TestSeedAdmin_CreatesHashedAdmin(t *testing.T) {
	store := &fakeAccounts{}
	acct := adminAccount{Email: " Admin@Plant.Local ", FullName: "Admin", Password: "s3cret-pass"}

	created, err := seedAdmin(context.Background(), store, acct, bcrypt.MinCost)
	require.NoError(t, err)
	assert.True(t, created)

	require.Len(t, store.created, 1)
	got := store.created[0]
	assert.Equal(t, "admin@plant.local", got.Email)
	assert.Equal(t, domain.RoleAdmin, got.Role)
	assert.NotEqual(t, "s3cret-pass", got.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("s3cret-pass")))
}

func TestSeedAdmin_Idempotent(t *testing.T) {
	store := &fakeAccounts{existing: map[string]bool{"admin@plant.local": true}}

	created, err := seedAdmin(context.Background(), store, adminAccount{Email: "admin@plant.local", Password: "x"}, bcrypt.MinCost)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Empty(t, store.created)
}

func TestSeedAdmin_ConcurrentInsertIsNotAnError(t *testing.T) {
	store := &fakeAccounts{createErr: &pgconn.PgError{Code: "23505", ConstraintName: "profiles_email_key"}}

	created, err := seedAdmin(context.Background(), store, adminAccount{Email: "admin@plant.local", Password: "x"}, bcrypt.MinCost)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestSeedAdmin_StoreFailure(t *testing.T) {
	store := &fakeAccounts{createErr: errors.New("connection reset")}

	_, err := seedAdmin(context.Background(), store, adminAccount{Email: "admin@plant.local", Password: "x"}, bcrypt.MinCost)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestLoadAdminAccount(t *testing.T) {
	t.Run("explicit password", func(t *testing.T) {
		t.Setenv("SEED_ADMIN_EMAIL", "chief@plant.example")
		t.Setenv("SEED_ADMIN_NAME", "")
		t.Setenv("SEED_ADMIN_PASSWORD", "given-password")

		acct, generated, err := loadAdminAccount()
		require.NoError(t, err)
		assert.False(t, generated)
		assert.Equal(t, "chief@plant.example", acct.Email)
		assert.Equal(t, defaultAdminName, acct.FullName)
		assert.Equal(t, "given-password", acct.Password)
	})

	t.Run("generated password", func(t *testing.T) {
		t.Setenv("SEED_ADMIN_EMAIL", "")
		t.Setenv("SEED_ADMIN_PASSWORD", "")

		acct, generated, err := loadAdminAccount()
		require.NoError(t, err)
		assert.True(t, generated)
		assert.Equal(t, defaultAdminEmail, acct.Email)
		assert.Len(t, acct.Password, 24)
	})
}
