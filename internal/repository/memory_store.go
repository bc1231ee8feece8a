package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FilipeAphrody/authsys/internal/domain"
)

// MemoryStore is an in-process domain.Store used in development mode and tests.
// Transactions are serialized: WithTx holds the store lock, works on a copy of
// the state and swaps it in only when fn succeeds and ctx is still live.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

var _ domain.Store = (*MemoryStore)(nil)

type memState struct {
	users         map[string]domain.User
	roles         map[string]domain.Role
	permissions   map[string]domain.Permission
	userRoles     []domain.UserRole
	rolePerms     []domain.RolePermission
	refreshTokens []domain.RefreshToken
	codes         []domain.TwoFactorCode
}

// NewMemoryStore returns a store pre-loaded with the seeded roles and permissions.
func NewMemoryStore() *MemoryStore {
	st := &memState{
		users:       make(map[string]domain.User),
		roles:       make(map[string]domain.Role),
		permissions: make(map[string]domain.Permission),
	}
	for _, r := range seedRoles() {
		st.roles[r.ID] = r
	}
	for _, p := range seedPermissions() {
		st.permissions[p.ID] = p
	}
	st.rolePerms = append(st.rolePerms, seedRolePermissions()...)
	return &MemoryStore{state: st}
}

func (s *memState) clone() *memState {
	c := &memState{
		users:         make(map[string]domain.User, len(s.users)),
		roles:         make(map[string]domain.Role, len(s.roles)),
		permissions:   make(map[string]domain.Permission, len(s.permissions)),
		userRoles:     append([]domain.UserRole(nil), s.userRoles...),
		rolePerms:     append([]domain.RolePermission(nil), s.rolePerms...),
		refreshTokens: append([]domain.RefreshToken(nil), s.refreshTokens...),
		codes:         append([]domain.TwoFactorCode(nil), s.codes...),
	}
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.roles {
		c.roles[k] = v
	}
	for k, v := range s.permissions {
		c.permissions[k] = v
	}
	return c
}

// WithTx implements domain.Store.
func (s *MemoryStore) WithTx(ctx context.Context, fn func(ctx context.Context, repos domain.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	work := s.state.clone()
	if err := fn(ctx, &memRepos{tx: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemoryStore) root() *memRepos { return &memRepos{store: s} }

func (s *MemoryStore) Users() domain.UserRepository { return s.root().Users() }
func (s *MemoryStore) Roles() domain.RoleRepository { return s.root().Roles() }
func (s *MemoryStore) Permissions() domain.PermissionRepository { return s.root().Permissions() }
func (s *MemoryStore) RefreshTokens() domain.RefreshTokenRepository { return s.root().RefreshTokens() }
func (s *MemoryStore) TwoFactorCodes() domain.TwoFactorCodeRepository { return s.root().TwoFactorCodes() }

// memRepos is bound either to a transaction copy or to the live store.
type memRepos struct {
	store *MemoryStore
	tx    *memState
}

func (m *memRepos) acquire() (*memState, func()) {
	if m.tx != nil {
		return m.tx, func() {}
	}
	m.store.mu.Lock()
	return m.store.state, m.store.mu.Unlock
}

func (m *memRepos) Users() domain.UserRepository { return memUsers{m} }
func (m *memRepos) Roles() domain.RoleRepository { return memRoles{m} }
func (m *memRepos) Permissions() domain.PermissionRepository { return memPermissions{m} }
func (m *memRepos) RefreshTokens() domain.RefreshTokenRepository { return memRefreshTokens{m} }
func (m *memRepos) TwoFactorCodes() domain.TwoFactorCodeRepository { return memCodes{m} }

// --- users ---

type memUsers struct{ r *memRepos }

func (u memUsers) Create(_ context.Context, user *domain.User) error {
	st, release := u.r.acquire()
	defer release()

	for _, existing := range st.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return domain.ErrUniqueViolation
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt
	st.users[user.ID] = *user
	return nil
}

func (u memUsers) GetByID(_ context.Context, id string) (*domain.User, error) {
	st, release := u.r.acquire()
	defer release()

	user, ok := st.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &user, nil
}

func (u memUsers) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	st, release := u.r.acquire()
	defer release()

	for _, user := range st.users {
		if strings.EqualFold(user.Email, email) {
			found := user
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (u memUsers) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := u.GetByEmail(ctx, email)
	if err == domain.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (u memUsers) Update(_ context.Context, user *domain.User) error {
	st, release := u.r.acquire()
	defer release()

	if _, ok := st.users[user.ID]; !ok {
		return domain.ErrNotFound
	}
	user.UpdatedAt = time.Now().UTC()
	st.users[user.ID] = *user
	return nil
}

// --- roles ---

type memRoles struct{ r *memRepos }

func (m memRoles) GetByID(_ context.Context, id string) (*domain.Role, error) {
	st, release := m.r.acquire()
	defer release()

	role, ok := st.roles[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &role, nil
}

func (m memRoles) GetByName(_ context.Context, name string) (*domain.Role, error) {
	st, release := m.r.acquire()
	defer release()

	for _, role := range st.roles {
		if role.Name == name {
			found := role
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m memRoles) ListIDsByUser(_ context.Context, userID string) ([]string, error) {
	st, release := m.r.acquire()
	defer release()

	var links []domain.UserRole
	for _, ur := range st.userRoles {
		if ur.UserID == userID {
			links = append(links, ur)
		}
	}
	sort.SliceStable(links, func(i, j int) bool { return links[i].AssignedAt.Before(links[j].AssignedAt) })

	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.RoleID)
	}
	return ids, nil
}

func (m memRoles) AssignToUser(_ context.Context, userID, roleID string, at time.Time) error {
	st, release := m.r.acquire()
	defer release()

	if _, ok := st.users[userID]; !ok {
		return domain.ErrNotFound
	}
	if _, ok := st.roles[roleID]; !ok {
		return domain.ErrNotFound
	}
	for _, ur := range st.userRoles {
		if ur.UserID == userID && ur.RoleID == roleID {
			return domain.ErrUniqueViolation
		}
	}
	st.userRoles = append(st.userRoles, domain.UserRole{UserID: userID, RoleID: roleID, AssignedAt: at})
	return nil
}

// --- permissions ---

type memPermissions struct{ r *memRepos }

func (m memPermissions) GetByID(_ context.Context, id string) (*domain.Permission, error) {
	st, release := m.r.acquire()
	defer release()

	p, ok := st.permissions[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (m memPermissions) ListIDsByRole(_ context.Context, roleID string) ([]string, error) {
	st, release := m.r.acquire()
	defer release()

	var links []domain.RolePermission
	for _, rp := range st.rolePerms {
		if rp.RoleID == roleID {
			links = append(links, rp)
		}
	}
	sort.SliceStable(links, func(i, j int) bool { return links[i].AssignedAt.Before(links[j].AssignedAt) })

	ids := make([]string, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.PermissionID)
	}
	return ids, nil
}

func (m memPermissions) AssignToRole(_ context.Context, roleID, permissionID string, at time.Time) error {
	st, release := m.r.acquire()
	defer release()

	if _, ok := st.roles[roleID]; !ok {
		return domain.ErrNotFound
	}
	if _, ok := st.permissions[permissionID]; !ok {
		return domain.ErrNotFound
	}
	for _, rp := range st.rolePerms {
		if rp.RoleID == roleID && rp.PermissionID == permissionID {
			return domain.ErrUniqueViolation
		}
	}
	st.rolePerms = append(st.rolePerms, domain.RolePermission{RoleID: roleID, PermissionID: permissionID, AssignedAt: at})
	return nil
}

// --- refresh tokens ---

type memRefreshTokens struct{ r *memRepos }

func (m memRefreshTokens) Create(_ context.Context, token *domain.RefreshToken) error {
	st, release := m.r.acquire()
	defer release()

	if _, ok := st.users[token.UserID]; !ok {
		return domain.ErrNotFound
	}
	for _, t := range st.refreshTokens {
		if t.Token == token.Token {
			return domain.ErrUniqueViolation
		}
	}
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	st.refreshTokens = append(st.refreshTokens, *token)
	return nil
}

func (m memRefreshTokens) FindActive(_ context.Context, token string, now time.Time) (*domain.RefreshToken, error) {
	st, release := m.r.acquire()
	defer release()

	for _, t := range st.refreshTokens {
		if t.Token == token && t.IsActive(now) {
			found := t
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m memRefreshTokens) Revoke(_ context.Context, token, byIP string, now time.Time) (*domain.RefreshToken, error) {
	st, release := m.r.acquire()
	defer release()

	for i := range st.refreshTokens {
		t := &st.refreshTokens[i]
		if t.Token != token || !t.IsActive(now) {
			continue
		}
		revokedAt := now
		t.IsRevoked = true
		t.RevokedAt = &revokedAt
		t.RevokedByIP = byIP
		out := *t
		return &out, nil
	}
	return nil, domain.ErrNotFound
}

func (m memRefreshTokens) ListByUser(_ context.Context, userID string) ([]domain.RefreshToken, error) {
	st, release := m.r.acquire()
	defer release()

	var out []domain.RefreshToken
	for _, t := range st.refreshTokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

// --- two-factor codes ---

type memCodes struct{ r *memRepos }

func (m memCodes) Create(_ context.Context, code *domain.TwoFactorCode) error {
	st, release := m.r.acquire()
	defer release()

	if _, ok := st.users[code.UserID]; !ok {
		return domain.ErrNotFound
	}
	if code.ID == "" {
		code.ID = uuid.NewString()
	}
	st.codes = append(st.codes, *code)
	return nil
}

func (m memCodes) FindValid(_ context.Context, userID, code string, now time.Time) (*domain.TwoFactorCode, error) {
	st, release := m.r.acquire()
	defer release()

	for i := len(st.codes) - 1; i >= 0; i-- {
		c := st.codes[i]
		if c.UserID == userID && c.Code == code && c.IsValid(now) {
			return &c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m memCodes) MarkUsed(_ context.Context, id string, now time.Time) error {
	st, release := m.r.acquire()
	defer release()

	for i := range st.codes {
		c := &st.codes[i]
		if c.ID != id {
			continue
		}
		if c.IsUsed {
			return domain.ErrNotFound
		}
		usedAt := now
		c.IsUsed = true
		c.UsedAt = &usedAt
		return nil
	}
	return domain.ErrNotFound
}

func (m memCodes) InvalidateOutstanding(_ context.Context, userID string, now time.Time) (int64, error) {
	st, release := m.r.acquire()
	defer release()

	var n int64
	for i := range st.codes {
		c := &st.codes[i]
		if c.UserID == userID && !c.IsUsed {
			usedAt := now
			c.IsUsed = true
			c.UsedAt = &usedAt
			n++
		}
	}
	return n, nil
}

func (m memCodes) ListByUser(_ context.Context, userID string) ([]domain.TwoFactorCode, error) {
	st, release := m.r.acquire()
	defer release()

	var out []domain.TwoFactorCode
	for _, c := range st.codes {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m memCodes) PurgeStale(_ context.Context, before time.Time) (int64, error) {
	st, release := m.r.acquire()
	defer release()

	kept := st.codes[:0:0]
	var n int64
	for _, c := range st.codes {
		if c.ExpiresAt.Before(before) {
			n++
			continue
		}
		kept = append(kept, c)
	}
	st.codes = kept
	return n, nil
}
