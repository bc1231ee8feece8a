package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FilipeAphrody/authsys/internal/domain"
	"github.com/FilipeAphrody/authsys/internal/repository"
	"github.com/FilipeAphrody/authsys/pkg/security"
)

func seedUser(t *testing.T, store *repository.MemoryStore, email, password string) *domain.User {
	t.Helper()
	hash, err := security.NewArgon2idHasher(fastParams).Hash(password)
	require.NoError(t, err)
	u := &domain.User{Email: email, FirstName: "Test", LastName: "User", PasswordHash: hash, IsActive: true}
	require.NoError(t, store.Users().Create(context.Background(), u))
	return u
}

func TestCredentialVerifier(t *testing.T) {
	store := repository.NewMemoryStore()
	seeded := seedUser(t, store, "carol@example.com", "Secret123!")

	v, err := NewCredentialVerifier(security.NewArgon2idHasher(fastParams))
	require.NoError(t, err)

	tests := []struct {
		name     string
		email    string
		password string
		code     string
	}{
		{name: "match", email: "carol@example.com", password: "Secret123!"},
		{name: "case insensitive email", email: " CAROL@example.com", password: "Secret123!"},
		{name: "wrong password", email: "carol@example.com", password: "Secret124!", code: "AUTH_INVALID_CREDENTIALS"},
		{name: "unknown email", email: "dave@example.com", password: "Secret123!", code: "AUTH_INVALID_CREDENTIALS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			user, err := v.Verify(context.Background(), store.Users(), tt.email, tt.password)
			if tt.code != "" {
				assertCode(t, err, tt.code)
				assert.Nil(t, user)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, seeded.ID, user.ID)
		})
	}
}

func TestCredentialVerifier_CorruptHash(t *testing.T) {
	store := repository.NewMemoryStore()
	u := &domain.User{Email: "eve@example.com", FirstName: "E", LastName: "V", PasswordHash: "not-a-hash", IsActive: true}
	require.NoError(t, store.Users().Create(context.Background(), u))

	v, err := NewCredentialVerifier(security.NewArgon2idHasher(fastParams))
	require.NoError(t, err)

	_, err = v.Verify(context.Background(), store.Users(), "eve@example.com", "whatever")
	assertCode(t, err, "AUTH_LOGIN_FAILED")
}

func TestTwoFactorManager_IssueAndVerify(t *testing.T) {
	store := repository.NewMemoryStore()
	user := seedUser(t, store, "frank@example.com", "Secret123!")
	clock := newTestClock()
	ctx := context.Background()

	m := NewTwoFactorManager(0, true, clock.Now)
	codes := []string{"111111", "222222"}
	m.generate = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	first, err := m.Issue(ctx, store, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "111111", first)

	second, err := m.Issue(ctx, store, user.ID)
	require.NoError(t, err)

	stored, err := store.TwoFactorCodes().ListByUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.True(t, stored[0].IsUsed)
	assert.Equal(t, clock.Now().Add(DefaultTwoFactorTTL), stored[1].ExpiresAt)
	assert.Equal(t, domain.ChannelEmail, stored[1].Channel)

	_, err = m.Verify(ctx, store, "frank@example.com", first)
	assertCode(t, err, "AUTH_INVALID_CODE")

	got, err := m.Verify(ctx, store, "frank@example.com", second)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = m.Verify(ctx, store, "frank@example.com", second)
	assertCode(t, err, "AUTH_INVALID_CODE")
}

func TestTwoFactorManager_KeepsPreviousWhenConfigured(t *testing.T) {
	store := repository.NewMemoryStore()
	user := seedUser(t, store, "gina@example.com", "Secret123!")
	ctx := context.Background()

	m := NewTwoFactorManager(time.Minute, false, newTestClock().Now)
	codes := []string{"333333", "444444"}
	m.generate = func() (string, error) {
		c := codes[0]
		codes = codes[1:]
		return c, nil
	}

	first, err := m.Issue(ctx, store, user.ID)
	require.NoError(t, err)
	_, err = m.Issue(ctx, store, user.ID)
	require.NoError(t, err)

	_, err = m.Verify(ctx, store, "gina@example.com", first)
	require.NoError(t, err)
}

func TestTwoFactorManager_GeneratorFailure(t *testing.T) {
	store := repository.NewMemoryStore()
	user := seedUser(t, store, "hal@example.com", "Secret123!")

	m := NewTwoFactorManager(time.Minute, true, nil)
	m.generate = func() (string, error) { return "", errors.New("entropy exhausted") }

	_, err := m.Issue(context.Background(), store, user.ID)
	assertCode(t, err, "AUTH_TWO_FACTOR_ISSUE_FAILED")
}

func TestClaimsAggregator_DeduplicatesAndSkipsDangling(t *testing.T) {
	store := repository.NewMemoryStore()
	user := seedUser(t, store, "ivy@example.com", "Secret123!")
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, store.Roles().AssignToUser(ctx, user.ID, repository.SeedRoleUserID, at))
	require.NoError(t, store.Roles().AssignToUser(ctx, user.ID, repository.SeedRoleAdminID, at.Add(time.Second)))
	require.NoError(t, store.Permissions().AssignToRole(ctx, repository.SeedRoleUserID, repository.SeedPermUserReadID, at))

	roles, perms, err := ClaimsAggregator{}.Resolve(ctx, store, user.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{domain.RoleUser, domain.RoleAdmin}, roles)
	assert.Equal(t, []string{"User:Read", "User:Write", "User:Delete"}, perms)
}

func TestClaimsAggregator_NoRoles(t *testing.T) {
	store := repository.NewMemoryStore()
	user := seedUser(t, store, "jack@example.com", "Secret123!")

	roles, perms, err := ClaimsAggregator{}.Resolve(context.Background(), store, user.ID)
	require.NoError(t, err)
	assert.Empty(t, roles)
	assert.NotNil(t, perms)
	assert.Empty(t, perms)
}

func TestRefreshLedger(t *testing.T) {
	store := repository.NewMemoryStore()
	user := seedUser(t, store, "kim@example.com", "Secret123!")
	clock := newTestClock()
	ctx := context.Background()
	l := NewRefreshLedger(clock.Now)

	rt, err := l.Record(ctx, store, user.ID, "tok-1", time.Hour, "10.1.1.1")
	require.NoError(t, err)
	assert.Equal(t, clock.Now().Add(time.Hour), rt.ExpiresAt)
	assert.Equal(t, "10.1.1.1", rt.CreatedByIP)

	active, err := l.LookupActive(ctx, store, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, user.ID, active.UserID)

	revoked, err := l.Revoke(ctx, store, "tok-1", "10.2.2.2")
	require.NoError(t, err)
	assert.True(t, revoked.IsRevoked)
	assert.Equal(t, "10.2.2.2", revoked.RevokedByIP)

	_, err = l.Revoke(ctx, store, "tok-1", "10.2.2.2")
	assertCode(t, err, "AUTH_TOKEN_NOT_FOUND")

	_, err = l.LookupActive(ctx, store, "tok-1")
	assertCode(t, err, "AUTH_TOKEN_NOT_FOUND")
}

func TestRefreshLedger_Expiry(t *testing.T) {
	store := repository.NewMemoryStore()
	user := seedUser(t, store, "lee@example.com", "Secret123!")
	clock := newTestClock()
	ctx := context.Background()
	l := NewRefreshLedger(clock.Now)

	_, err := l.Record(ctx, store, user.ID, "tok-2", time.Minute, "")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = l.LookupActive(ctx, store, "tok-2")
	assertCode(t, err, "AUTH_TOKEN_NOT_FOUND")
}

func TestValidateRegistration(t *testing.T) {
	long := make([]byte, 101)
	for i := range long {
		long[i] = 'a'
	}

	tests := []struct {
		name    string
		mutate  func(r *domain.RegisterRequest)
		details []string
	}{
		{name: "valid", mutate: func(*domain.RegisterRequest) {}},
		{name: "display name form", mutate: func(r *domain.RegisterRequest) { r.Email = "Alice <alice@example.com>" }, details: []string{domain.MsgInvalidEmail}},
		{name: "missing last name", mutate: func(r *domain.RegisterRequest) { r.LastName = "" }, details: []string{domain.MsgLastNameMissing}},
		{name: "long name", mutate: func(r *domain.RegisterRequest) { r.FirstName = string(long) }, details: []string{domain.MsgNameTooLong}},
		{name: "mismatch", mutate: func(r *domain.RegisterRequest) { r.ConfirmPassword = "Secret123?" }, details: []string{domain.MsgPasswordMismatch}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := registerRequest("alice@example.com")
			tt.mutate(&req)
			assert.Equal(t, tt.details, validateRegistration(req))
		})
	}
}
