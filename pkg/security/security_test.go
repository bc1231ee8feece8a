package security

import (
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastParams = HashParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}

func TestArgon2idHasher_RoundTrip(t *testing.T) {
	h := NewArgon2idHasher(fastParams)

	encoded, err := h.Hash("Secret123!")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(encoded, "$argon2id$v=19$m=1024,t=1,p=1$"))

	ok, err := h.Verify("Secret123!", encoded)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("wrong-password", encoded)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestArgon2idHasher_SaltsDiffer(t *testing.T) {
	h := NewArgon2idHasher(fastParams)
	a, err := h.Hash("same")
	require.NoError(t, err)
	b, err := h.Hash("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestArgon2idHasher_VerifyRejectsMalformed(t *testing.T) {
	h := NewArgon2idHasher(fastParams)

	tests := []struct {
		name string
		hash string
	}{
		{"empty", ""},
		{"wrong segment count", "$argon2id$v=19$m=1024"},
		{"wrong algorithm", "$bcrypt$v=19$m=1024,t=1,p=1$c2FsdA$aGFzaA"},
		{"wrong version", "$argon2id$v=18$m=1024,t=1,p=1$c2FsdA$aGFzaA"},
		{"bad params", "$argon2id$v=19$garbage$c2FsdA$aGFzaA"},
		{"bad salt", "$argon2id$v=19$m=1024,t=1,p=1$!!!$aGFzaA"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := h.Verify("x", tt.hash)
			assert.Error(t, err)
			assert.False(t, ok)
		})
	}
}

func TestNewArgon2idHasher_Defaults(t *testing.T) {
	h := NewArgon2idHasher(HashParams{})
	assert.Equal(t, DefaultParams, h.params)
}

func newTestIssuer(now func() time.Time) *TokenIssuer {
	return NewTokenIssuer(TokenConfig{Secret: "test-secret", Issuer: "authsys", AccessTTL: time.Hour}, now)
}

func TestTokenIssuer_AccessTokenRoundTrip(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	issuer := newTestIssuer(func() time.Time { return now })

	token, expiresAt, err := issuer.IssueAccessToken(Subject{
		UserID:      "u-1",
		Email:       "alice@example.com",
		FirstName:   "Alice",
		LastName:    "Liddell",
		Roles:       []string{"Admin"},
		Permissions: []string{"User:Read"},
	})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	claims, err := issuer.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.Subject)
	assert.Equal(t, "alice@example.com", claims.Email)
	assert.Equal(t, "Alice", claims.GivenName)
	assert.Equal(t, "Liddell", claims.FamilyName)
	assert.Equal(t, []string{"Admin"}, claims.Roles)
	assert.Equal(t, []string{"User:Read"}, claims.Permissions)
	assert.Equal(t, "authsys", claims.Issuer)
	assert.NotEmpty(t, claims.ID)
	assert.True(t, claims.HasRole("Admin"))
	assert.False(t, claims.HasRole("User"))
}

func TestTokenIssuer_NilClaimsEncodeAsEmptyLists(t *testing.T) {
	issuer := newTestIssuer(nil)

	token, _, err := issuer.IssueAccessToken(Subject{UserID: "u-1"})
	require.NoError(t, err)

	claims, err := issuer.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.NotNil(t, claims.Roles)
	assert.Empty(t, claims.Roles)
	assert.NotNil(t, claims.Permissions)
}

func TestTokenIssuer_ExpiredToken(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	clock := now
	issuer := newTestIssuer(func() time.Time { return clock })

	token, _, err := issuer.IssueAccessToken(Subject{UserID: "u-1"})
	require.NoError(t, err)

	clock = now.Add(time.Hour + time.Second)
	_, err = issuer.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenIssuer_RejectsForeignTokens(t *testing.T) {
	issuer := newTestIssuer(nil)

	other := NewTokenIssuer(TokenConfig{Secret: "other-secret", Issuer: "authsys"}, nil)
	forged, _, err := other.IssueAccessToken(Subject{UserID: "u-1"})
	require.NoError(t, err)

	_, err = issuer.ValidateAccessToken(forged)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	_, err = issuer.ValidateAccessToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrTokenInvalid)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "u-1", "exp": time.Now().Add(time.Hour).Unix()})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = issuer.ValidateAccessToken(unsigned)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenIssuer_RejectsWrongIssuer(t *testing.T) {
	issuer := newTestIssuer(nil)
	other := NewTokenIssuer(TokenConfig{Secret: "test-secret", Issuer: "someone-else"}, nil)

	token, _, err := other.IssueAccessToken(Subject{UserID: "u-1"})
	require.NoError(t, err)

	_, err = issuer.ValidateAccessToken(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestTokenIssuer_RefreshTokensAreUnique(t *testing.T) {
	issuer := newTestIssuer(nil)
	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		tok, err := issuer.IssueRefreshToken()
		require.NoError(t, err)
		assert.Len(t, tok, 86) // 64 bytes, unpadded base64url
		_, dup := seen[tok]
		require.False(t, dup)
		seen[tok] = struct{}{}
	}
}

func TestGenerateTwoFactorCode_Range(t *testing.T) {
	for i := 0; i < 500; i++ {
		code, err := GenerateTwoFactorCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		n, err := strconv.Atoi(code)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, 100000)
		require.LessOrEqual(t, n, 999999)
	}
}

func TestGenerateTwoFactorSecret(t *testing.T) {
	s, err := GenerateTwoFactorSecret("AuthSystem", "alice@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, s.Secret)
	assert.Contains(t, s.URI, "otpauth://totp/")
	assert.Contains(t, s.URI, "issuer=AuthSystem")
}
