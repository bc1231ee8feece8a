package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/FilipeAphrody/authsys/internal/domain"
)

// RefreshLedger tracks refresh-token state. A token moves from active to
// revoked exactly once and is never deleted.
type RefreshLedger struct {
	now func() time.Time
}

func NewRefreshLedger(now func() time.Time) *RefreshLedger {
	if now == nil {
		now = time.Now
	}
	return &RefreshLedger{now: now}
}

// Record stores a newly minted token for userID.
func (l *RefreshLedger) Record(ctx context.Context, repos domain.Repositories, userID, token string, ttl time.Duration, originIP string) (*domain.RefreshToken, error) {
	now := l.now()
	rt := &domain.RefreshToken{
		UserID:      userID,
		Token:       token,
		ExpiresAt:   now.Add(ttl),
		CreatedByIP: originIP,
		CreatedAt:   now,
	}
	if err := repos.RefreshTokens().Create(ctx, rt); err != nil {
		return nil, oops.Code("AUTH_TOKEN_RECORD_FAILED").
			With("user_id", userID).
			Wrap(err)
	}
	return rt, nil
}

// LookupActive returns the token if it is neither revoked nor expired.
func (l *RefreshLedger) LookupActive(ctx context.Context, repos domain.Repositories, token string) (*domain.RefreshToken, error) {
	rt, err := repos.RefreshTokens().FindActive(ctx, token, l.now())
	if err != nil {
		return nil, tokenErr("AUTH_TOKEN_LOOKUP_FAILED", err)
	}
	return rt, nil
}

// Revoke marks an active token revoked. Revoking a token that is already
// revoked or expired fails with TokenNotFound.
func (l *RefreshLedger) Revoke(ctx context.Context, repos domain.Repositories, token, byIP string) (*domain.RefreshToken, error) {
	rt, err := repos.RefreshTokens().Revoke(ctx, token, byIP, l.now())
	if err != nil {
		return nil, tokenErr("AUTH_TOKEN_REVOKE_FAILED", err)
	}
	return rt, nil
}

func tokenErr(failureCode string, err error) error {
	if errors.Is(err, domain.ErrNotFound) {
		return oops.Code("AUTH_TOKEN_NOT_FOUND").Wrap(domain.ErrTokenNotFound)
	}
	return oops.Code(failureCode).Wrap(err)
}
