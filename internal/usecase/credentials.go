package usecase

import (
	"context"
	"errors"

	"github.com/samber/oops"

	"github.com/FilipeAphrody/authsys/internal/domain"
	"github.com/FilipeAphrody/authsys/pkg/security"
)

// dummyPassword is hashed once so that lookups for unknown emails cost the
// same as a real verification.
const dummyPassword = "authsys-timing-equalizer"

// CredentialVerifier checks an email and password pair against the stored hash.
type CredentialVerifier struct {
	hasher    security.PasswordHasher
	dummyHash string
}

// NewCredentialVerifier precomputes the dummy hash with the hasher's parameters.
func NewCredentialVerifier(hasher security.PasswordHasher) (*CredentialVerifier, error) {
	dummy, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, oops.Code("AUTH_HASHER_INIT_FAILED").Wrap(err)
	}
	return &CredentialVerifier{hasher: hasher, dummyHash: dummy}, nil
}

// Verify returns the account owning the credentials. An unknown email and a
// wrong password produce the same error. An inactive account is only
// reported once the password has matched.
func (v *CredentialVerifier) Verify(ctx context.Context, users domain.UserRepository, email, password string) (*domain.User, error) {
	user, lookupErr := users.GetByEmail(ctx, normalizeEmail(email))

	targetHash := v.dummyHash
	exists := false
	switch {
	case lookupErr == nil:
		targetHash = user.PasswordHash
		exists = true
	case !errors.Is(lookupErr, domain.ErrNotFound):
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get user by email").
			Wrap(lookupErr)
	}

	valid, verifyErr := v.hasher.Verify(password, targetHash)
	if verifyErr != nil {
		if !exists {
			return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(domain.ErrBadCredentials)
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("user_id", user.ID).
			Wrap(verifyErr)
	}

	if !exists || !valid {
		return nil, oops.Code("AUTH_INVALID_CREDENTIALS").Wrap(domain.ErrBadCredentials)
	}

	if !user.IsActive {
		return nil, oops.Code("AUTH_ACCOUNT_INACTIVE").
			With("user_id", user.ID).
			Wrap(domain.ErrAccountInactive)
	}

	return user, nil
}
