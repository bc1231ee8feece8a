package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/oops"

	"github.com/FilipeAphrody/authsys/internal/domain"
	"github.com/FilipeAphrody/authsys/internal/metrics"
	"github.com/FilipeAphrody/authsys/pkg/security"
)

const (
	DefaultRefreshTTL      = 7 * 24 * time.Hour
	DefaultTwoFactorTTL    = 10 * time.Minute
	DefaultTwoFactorIssuer = "AuthSystem"
)

// Flow labels used in logs and metrics.
const (
	flowRegister  = "register"
	flowLogin     = "login"
	flowTwoFactor = "verify_2fa"
	flowRefresh   = "refresh"
	flowRevoke    = "revoke"
)

// Config tunes the orchestrator.
type Config struct {
	RefreshTTL              time.Duration
	TwoFactorTTL            time.Duration
	InvalidatePreviousCodes bool
	TwoFactorIssuer         string
}

// Deps are the collaborators of AuthUsecase. Metrics and Clock are optional.
type Deps struct {
	Store    domain.Store
	Notifier domain.Notifier
	Hasher   security.PasswordHasher
	Tokens   *security.TokenIssuer
	Logger   zerolog.Logger
	Metrics  *metrics.Metrics
	Clock    func() time.Time
}

// AuthUsecase orchestrates registration, login, two-factor verification,
// refresh-token rotation and revocation.
type AuthUsecase struct {
	store       domain.Store
	notifier    domain.Notifier
	hasher      security.PasswordHasher
	tokens      *security.TokenIssuer
	credentials *CredentialVerifier
	twoFactor   *TwoFactorManager
	claims      ClaimsAggregator
	ledger      *RefreshLedger

	refreshTTL   time.Duration
	secretIssuer string

	now     func() time.Time
	log     zerolog.Logger
	metrics *metrics.Metrics
}

func NewAuthUsecase(deps Deps, cfg Config) (*AuthUsecase, error) {
	now := deps.Clock
	if now == nil {
		now = time.Now
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.TwoFactorIssuer == "" {
		cfg.TwoFactorIssuer = DefaultTwoFactorIssuer
	}

	credentials, err := NewCredentialVerifier(deps.Hasher)
	if err != nil {
		return nil, err
	}

	return &AuthUsecase{
		store:        deps.Store,
		notifier:     deps.Notifier,
		hasher:       deps.Hasher,
		tokens:       deps.Tokens,
		credentials:  credentials,
		twoFactor:    NewTwoFactorManager(cfg.TwoFactorTTL, cfg.InvalidatePreviousCodes, now),
		ledger:       NewRefreshLedger(now),
		refreshTTL:   cfg.RefreshTTL,
		secretIssuer: cfg.TwoFactorIssuer,
		now:          now,
		log:          deps.Logger.With().Str("component", "auth").Logger(),
		metrics:      deps.Metrics,
	}, nil
}

// Register creates an active account with the User role and signs it in.
func (u *AuthUsecase) Register(ctx context.Context, req domain.RegisterRequest, clientIP string) (*domain.AuthResponse, error) {
	req.Email = normalizeEmail(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if details := validateRegistration(req); len(details) > 0 {
		return nil, u.fail(flowRegister, clientIP, oops.Code("AUTH_VALIDATION_FAILED").
			Wrap(domain.NewValidationError(details)))
	}

	exists, err := u.store.Users().ExistsByEmail(ctx, req.Email)
	if err != nil {
		return nil, u.fail(flowRegister, clientIP, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "check email").
			Wrap(err))
	}
	if exists {
		return nil, u.fail(flowRegister, clientIP, oops.Code("AUTH_EMAIL_TAKEN").Wrap(domain.ErrEmailTaken))
	}

	hash, err := u.hasher.Hash(req.Password)
	if err != nil {
		return nil, u.fail(flowRegister, clientIP, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err))
	}

	now := u.now()
	user := &domain.User{
		Email:        req.Email,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		PasswordHash: hash,
		IsActive:     true,
		CreatedAt:    now,
	}

	err = u.store.WithTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		if err := repos.Users().Create(ctx, user); err != nil {
			if errors.Is(err, domain.ErrUniqueViolation) {
				return oops.Code("AUTH_EMAIL_TAKEN").Wrap(domain.ErrEmailTaken)
			}
			return oops.Code("AUTH_REGISTER_FAILED").With("operation", "create user").Wrap(err)
		}

		role, err := repos.Roles().GetByName(ctx, domain.RoleUser)
		if errors.Is(err, domain.ErrNotFound) {
			u.log.Warn().Str("role", domain.RoleUser).Msg("default role missing, user created without roles")
			return nil
		}
		if err != nil {
			return oops.Code("AUTH_REGISTER_FAILED").With("operation", "get default role").Wrap(err)
		}
		if err := repos.Roles().AssignToUser(ctx, user.ID, role.ID, now); err != nil {
			return oops.Code("AUTH_REGISTER_FAILED").With("operation", "assign default role").Wrap(err)
		}
		return nil
	})
	if err != nil {
		return nil, u.fail(flowRegister, clientIP, err)
	}

	if err := u.notifier.SendWelcome(ctx, user.Email, user.FirstName); err != nil {
		u.log.Warn().Err(err).Str("user_id", user.ID).Msg("welcome email not sent")
	}

	resp, err := u.grant(ctx, user, clientIP)
	if err != nil {
		return nil, u.fail(flowRegister, clientIP, err)
	}
	u.succeed(flowRegister, clientIP, user.ID)
	return resp, nil
}

// Login checks credentials. Accounts with two-factor enabled get a code by
// email and a response with RequiresTwoFactor set and no tokens.
func (u *AuthUsecase) Login(ctx context.Context, email, password, clientIP string) (*domain.AuthResponse, error) {
	user, err := u.credentials.Verify(ctx, u.store.Users(), email, password)
	if err != nil {
		return nil, u.fail(flowLogin, clientIP, err)
	}

	if user.IsTwoFactorEnabled {
		var code string
		err := u.store.WithTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
			var issueErr error
			code, issueErr = u.twoFactor.Issue(ctx, repos, user.ID)
			return issueErr
		})
		if err != nil {
			return nil, u.fail(flowLogin, clientIP, err)
		}

		// The code is committed; delivery failures do not fail the login.
		if err := u.notifier.SendTwoFactorCode(ctx, user.Email, code); err != nil {
			u.log.Warn().Err(err).Str("user_id", user.ID).Msg("two-factor code not delivered")
		}

		u.metrics.Attempt(flowLogin, metrics.OutcomeChallenged)
		u.log.Info().
			Str("event", "two_factor_challenge").
			Str("user_id", user.ID).
			Str("ip", clientIP).
			Msg("security event")
		return &domain.AuthResponse{RequiresTwoFactor: true}, nil
	}

	resp, err := u.grant(ctx, user, clientIP)
	if err != nil {
		return nil, u.fail(flowLogin, clientIP, err)
	}
	u.succeed(flowLogin, clientIP, user.ID)
	return resp, nil
}

// VerifyTwoFactor redeems an emailed code and completes the login it gated.
func (u *AuthUsecase) VerifyTwoFactor(ctx context.Context, email, code, clientIP string) (*domain.AuthResponse, error) {
	var resp *domain.AuthResponse
	var userID string

	err := u.store.WithTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		user, err := u.twoFactor.Verify(ctx, repos, email, code)
		if err != nil {
			return err
		}
		if !user.IsActive {
			return oops.Code("AUTH_ACCOUNT_INACTIVE").With("user_id", user.ID).Wrap(domain.ErrAccountInactive)
		}
		userID = user.ID
		resp, err = u.grantWith(ctx, repos, user, clientIP)
		return err
	})
	if err != nil {
		return nil, u.fail(flowTwoFactor, clientIP, err)
	}

	u.succeed(flowTwoFactor, clientIP, userID)
	return resp, nil
}

// RefreshToken exchanges an active refresh token for a new token pair. The
// presented token is revoked in the same transaction that records its
// successor, so it can be exchanged only once.
func (u *AuthUsecase) RefreshToken(ctx context.Context, refreshToken, clientIP string) (*domain.AuthResponse, error) {
	var resp *domain.AuthResponse
	var userID string

	err := u.store.WithTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		old, err := u.ledger.Revoke(ctx, repos, refreshToken, clientIP)
		if err != nil {
			return err
		}

		user, err := repos.Users().GetByID(ctx, old.UserID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return oops.Code("AUTH_USER_NOT_FOUND").With("user_id", old.UserID).Wrap(domain.ErrUserNotFound)
			}
			return oops.Code("AUTH_REFRESH_FAILED").With("operation", "get user").Wrap(err)
		}
		if !user.IsActive {
			return oops.Code("AUTH_ACCOUNT_INACTIVE").With("user_id", user.ID).Wrap(domain.ErrAccountInactive)
		}

		userID = user.ID
		resp, err = u.grantWith(ctx, repos, user, clientIP)
		return err
	})
	if err != nil {
		return nil, u.fail(flowRefresh, clientIP, err)
	}

	u.succeed(flowRefresh, clientIP, userID)
	return resp, nil
}

// RevokeToken revokes an active refresh token.
func (u *AuthUsecase) RevokeToken(ctx context.Context, refreshToken, clientIP string) error {
	rt, err := u.ledger.Revoke(ctx, u.store, refreshToken, clientIP)
	if err != nil {
		return u.fail(flowRevoke, clientIP, err)
	}

	u.metrics.Attempt(flowRevoke, metrics.OutcomeSuccess)
	u.log.Info().
		Str("event", "refresh_token_revoked").
		Str("user_id", rt.UserID).
		Str("ip", clientIP).
		Msg("security event")
	return nil
}

// EnableTwoFactor turns on email codes for the account and stores a fresh
// authenticator secret.
func (u *AuthUsecase) EnableTwoFactor(ctx context.Context, userID string) error {
	return u.store.WithTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		user, err := u.loadUser(ctx, repos, userID)
		if err != nil {
			return err
		}

		secret, err := security.GenerateTwoFactorSecret(u.secretIssuer, user.Email)
		if err != nil {
			return oops.Code("AUTH_TWO_FACTOR_UPDATE_FAILED").With("operation", "generate secret").Wrap(err)
		}

		user.IsTwoFactorEnabled = true
		user.TwoFactorSecret = secret.Secret
		if err := repos.Users().Update(ctx, user); err != nil {
			return oops.Code("AUTH_TWO_FACTOR_UPDATE_FAILED").With("user_id", userID).Wrap(err)
		}

		u.log.Info().Str("event", "two_factor_enabled").Str("user_id", userID).Msg("security event")
		return nil
	})
}

// DisableTwoFactor turns off two-factor and clears the stored secret.
func (u *AuthUsecase) DisableTwoFactor(ctx context.Context, userID string) error {
	return u.store.WithTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		user, err := u.loadUser(ctx, repos, userID)
		if err != nil {
			return err
		}

		user.IsTwoFactorEnabled = false
		user.TwoFactorSecret = ""
		if err := repos.Users().Update(ctx, user); err != nil {
			return oops.Code("AUTH_TWO_FACTOR_UPDATE_FAILED").With("user_id", userID).Wrap(err)
		}

		u.log.Info().Str("event", "two_factor_disabled").Str("user_id", userID).Msg("security event")
		return nil
	})
}

// Authenticate validates a bearer access token.
func (u *AuthUsecase) Authenticate(accessToken string) (*security.AccessClaims, error) {
	claims, err := u.tokens.ValidateAccessToken(accessToken)
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, oops.Code("AUTH_TOKEN_EXPIRED").Wrap(domain.ErrTokenExpired)
		}
		return nil, oops.Code("AUTH_TOKEN_INVALID").Wrap(domain.ErrTokenInvalid)
	}
	return claims, nil
}

func (u *AuthUsecase) loadUser(ctx context.Context, repos domain.Repositories, userID string) (*domain.User, error) {
	user, err := repos.Users().GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, oops.Code("AUTH_USER_NOT_FOUND").With("user_id", userID).Wrap(domain.ErrUserNotFound)
		}
		return nil, oops.Code("AUTH_USER_LOOKUP_FAILED").With("user_id", userID).Wrap(err)
	}
	return user, nil
}

// grant runs grantWith in its own transaction.
func (u *AuthUsecase) grant(ctx context.Context, user *domain.User, clientIP string) (*domain.AuthResponse, error) {
	var resp *domain.AuthResponse
	err := u.store.WithTx(ctx, func(ctx context.Context, repos domain.Repositories) error {
		var err error
		resp, err = u.grantWith(ctx, repos, user, clientIP)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// grantWith resolves claims, mints the token pair, records the refresh token
// and stamps the login time. Nothing it produces is valid unless repos commits.
func (u *AuthUsecase) grantWith(ctx context.Context, repos domain.Repositories, user *domain.User, clientIP string) (*domain.AuthResponse, error) {
	roles, permissions, err := u.claims.Resolve(ctx, repos, user.ID)
	if err != nil {
		return nil, err
	}

	accessToken, expiresAt, err := u.tokens.IssueAccessToken(security.Subject{
		UserID:      user.ID,
		Email:       user.Email,
		FirstName:   user.FirstName,
		LastName:    user.LastName,
		Roles:       roles,
		Permissions: permissions,
	})
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_ISSUE_FAILED").With("kind", "access").Wrap(err)
	}

	refreshToken, err := u.tokens.IssueRefreshToken()
	if err != nil {
		return nil, oops.Code("AUTH_TOKEN_ISSUE_FAILED").With("kind", "refresh").Wrap(err)
	}

	if _, err := u.ledger.Record(ctx, repos, user.ID, refreshToken, u.refreshTTL, clientIP); err != nil {
		return nil, err
	}

	loginAt := u.now()
	user.LastLoginAt = &loginAt
	if err := repos.Users().Update(ctx, user); err != nil {
		return nil, oops.Code("AUTH_GRANT_FAILED").
			With("operation", "stamp last login").
			With("user_id", user.ID).
			Wrap(err)
	}

	return &domain.AuthResponse{
		AccessToken:       accessToken,
		RefreshToken:      refreshToken,
		ExpiresAt:         expiresAt,
		RequiresTwoFactor: false,
		User:              domain.NewUserProfile(user, roles, permissions),
	}, nil
}

func (u *AuthUsecase) succeed(flow, clientIP, userID string) {
	u.metrics.Attempt(flow, metrics.OutcomeSuccess)
	u.metrics.Issued("access")
	u.metrics.Issued("refresh")
	u.log.Info().
		Str("event", flow+"_succeeded").
		Str("user_id", userID).
		Str("ip", clientIP).
		Msg("security event")
}

// fail records a failed flow and hands err back.
func (u *AuthUsecase) fail(flow, clientIP string, err error) error {
	u.metrics.Attempt(flow, metrics.OutcomeFailure)

	event := u.log.Warn()
	var de *domain.Error
	if !errors.As(err, &de) {
		event = u.log.Error()
	}
	if oopsErr, ok := oops.AsOops(err); ok {
		event = event.Interface("code", oopsErr.Code())
	}
	event.
		Err(err).
		Str("event", flow+"_failed").
		Str("ip", clientIP).
		Msg("security event")
	return err
}
