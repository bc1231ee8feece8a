package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"

	"github.com/FilipeAphrody/authsys/internal/domain"
	"github.com/FilipeAphrody/authsys/pkg/security"
)

// TwoFactorManager issues and redeems email-delivered one-time codes.
type TwoFactorManager struct {
	ttl                time.Duration
	invalidatePrevious bool
	now                func() time.Time
	generate           func() (string, error)
}

// NewTwoFactorManager returns a manager issuing codes valid for ttl. When
// invalidatePrevious is set, issuing a code consumes every outstanding one.
func NewTwoFactorManager(ttl time.Duration, invalidatePrevious bool, now func() time.Time) *TwoFactorManager {
	if ttl <= 0 {
		ttl = DefaultTwoFactorTTL
	}
	if now == nil {
		now = time.Now
	}
	return &TwoFactorManager{
		ttl:                ttl,
		invalidatePrevious: invalidatePrevious,
		now:                now,
		generate:           security.GenerateTwoFactorCode,
	}
}

// Issue persists a fresh code for userID and returns its plaintext.
func (m *TwoFactorManager) Issue(ctx context.Context, repos domain.Repositories, userID string) (string, error) {
	now := m.now()

	if m.invalidatePrevious {
		if _, err := repos.TwoFactorCodes().InvalidateOutstanding(ctx, userID, now); err != nil {
			return "", oops.Code("AUTH_TWO_FACTOR_ISSUE_FAILED").
				With("operation", "invalidate outstanding codes").
				With("user_id", userID).
				Wrap(err)
		}
	}

	code, err := m.generate()
	if err != nil {
		return "", oops.Code("AUTH_TWO_FACTOR_ISSUE_FAILED").
			With("operation", "generate code").
			Wrap(err)
	}

	record := &domain.TwoFactorCode{
		UserID:    userID,
		Code:      code,
		ExpiresAt: now.Add(m.ttl),
		Channel:   domain.ChannelEmail,
		CreatedAt: now,
	}
	if err := repos.TwoFactorCodes().Create(ctx, record); err != nil {
		return "", oops.Code("AUTH_TWO_FACTOR_ISSUE_FAILED").
			With("operation", "persist code").
			With("user_id", userID).
			Wrap(err)
	}

	return code, nil
}

// Verify redeems code for the account registered under email. A code can be
// redeemed once; the conditional MarkUsed decides between concurrent callers.
func (m *TwoFactorManager) Verify(ctx context.Context, repos domain.Repositories, email, code string) (*domain.User, error) {
	now := m.now()

	user, err := repos.Users().GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, oops.Code("AUTH_USER_NOT_FOUND").Wrap(domain.ErrUserNotFound)
		}
		return nil, oops.Code("AUTH_TWO_FACTOR_VERIFY_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	record, err := repos.TwoFactorCodes().FindValid(ctx, user.ID, code, now)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, oops.Code("AUTH_INVALID_CODE").With("user_id", user.ID).Wrap(domain.ErrCodeInvalid)
		}
		return nil, oops.Code("AUTH_TWO_FACTOR_VERIFY_FAILED").
			With("operation", "find code").
			Wrap(err)
	}

	if err := repos.TwoFactorCodes().MarkUsed(ctx, record.ID, now); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, oops.Code("AUTH_INVALID_CODE").With("user_id", user.ID).Wrap(domain.ErrCodeInvalid)
		}
		return nil, oops.Code("AUTH_TWO_FACTOR_VERIFY_FAILED").
			With("operation", "mark code used").
			Wrap(err)
	}

	return user, nil
}
