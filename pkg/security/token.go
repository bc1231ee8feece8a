package security

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenExpired = errors.New("token has expired")
	ErrTokenInvalid = errors.New("token is invalid")
)

const refreshTokenBytes = 64

// AccessClaims is the claim set carried by access tokens.
type AccessClaims struct {
	Email       string   `json:"email"`
	GivenName   string   `json:"given_name"`
	FamilyName  string   `json:"family_name"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	jwt.RegisteredClaims
}

// HasRole reports whether the claims carry role.
func (c *AccessClaims) HasRole(role string) bool {
	for _, r := range c.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Subject is what an access token is minted for.
type Subject struct {
	UserID      string
	Email       string
	FirstName   string
	LastName    string
	Roles       []string
	Permissions []string
}

// TokenConfig configures a TokenIssuer.
type TokenConfig struct {
	Secret    string
	Issuer    string
	AccessTTL time.Duration
}

// TokenIssuer mints and validates HS256 access tokens and opaque refresh tokens.
type TokenIssuer struct {
	secret    []byte
	issuer    string
	accessTTL time.Duration
	now       func() time.Time
}

// NewTokenIssuer returns an issuer. A nil clock means time.Now.
func NewTokenIssuer(cfg TokenConfig, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = time.Hour
	}
	return &TokenIssuer{
		secret:    []byte(cfg.Secret),
		issuer:    cfg.Issuer,
		accessTTL: cfg.AccessTTL,
		now:       now,
	}
}

// IssueAccessToken signs a token for s and returns it with its expiry.
func (i *TokenIssuer) IssueAccessToken(s Subject) (string, time.Time, error) {
	now := i.now()
	expiresAt := now.Add(i.accessTTL)

	roles := s.Roles
	if roles == nil {
		roles = []string{}
	}
	permissions := s.Permissions
	if permissions == nil {
		permissions = []string{}
	}

	claims := AccessClaims{
		Email:       s.Email,
		GivenName:   s.FirstName,
		FamilyName:  s.LastName,
		Roles:       roles,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID,
			Issuer:    i.issuer,
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// IssueRefreshToken returns a random, URL-safe opaque token.
func (i *TokenIssuer) IssueRefreshToken() (string, error) {
	buf := make([]byte, refreshTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// ValidateAccessToken verifies the signature, method, issuer and expiry of an access token.
// It fails with ErrTokenExpired or ErrTokenInvalid.
func (i *TokenIssuer) ValidateAccessToken(tokenString string) (*AccessClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
