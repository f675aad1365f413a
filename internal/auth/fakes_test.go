package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/redmonkez12/scitech-admin-api/internal/activity"
	"github.com/redmonkez12/scitech-admin-api/internal/logging"
	"github.com/redmonkez12/scitech-admin-api/internal/otp"
	"github.com/redmonkez12/scitech-admin-api/internal/user"
)

var testTokenKey = []byte("0123456789abcdef0123456789abcdef")

// cheap parameters so tests do not spend seconds hashing
var testArgon2Params = Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 16, SaltLen: 8}

// memStore mirrors the conditional update semantics of user.Repository.
type memStore struct {
	mu    sync.Mutex
	users map[string]*user.User
}

func newMemStore() *memStore {
	return &memStore{users: make(map[string]*user.User)}
}

func (s *memStore) put(u *user.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Email] = u
}

// snapshot returns a copy of the stored record.
func (s *memStore) snapshot(email string) *user.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *s.users[email]
	return &cp
}

func (s *memStore) GetByEmail(_ context.Context, email string) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return nil, user.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, user.ErrNotFound
}

func (s *memStore) Create(_ context.Context, email, name, passwordHash string, role user.Role, approved bool) (*user.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[email]; ok {
		return nil, user.ErrDuplicateEmail
	}
	u := &user.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         name,
		PasswordHash: passwordHash,
		Role:         role,
		IsApproved:   approved,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}
	s.users[email] = u
	cp := *u
	return &cp, nil
}

func (s *memStore) SetResetOTP(_ context.Context, email, code string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok {
		return user.ErrNotFound
	}
	u.ResetOTP = &code
	u.ResetOTPExpiresAt = &expiresAt
	return nil
}

func (s *memStore) ResetPasswordWithOTP(_ context.Context, email, code, passwordHash string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[email]
	if !ok || u.ResetOTP == nil || *u.ResetOTP != code || u.ResetOTPExpiresAt.Before(now) {
		return user.ErrOTPNotConsumed
	}
	u.PasswordHash = passwordHash
	u.ResetOTP = nil
	u.ResetOTPExpiresAt = nil
	return nil
}

type sentCode struct {
	to   string
	code string
}

type chanSender struct {
	sent chan sentCode
	err  error
}

func newChanSender() *chanSender {
	return &chanSender{sent: make(chan sentCode, 16)}
}

func (c *chanSender) SendPasswordResetCode(_ context.Context, to, code string) error {
	c.sent <- sentCode{to: to, code: code}
	return c.err
}

func (c *chanSender) next(t *testing.T) sentCode {
	t.Helper()
	select {
	case s := <-c.sent:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no reset code dispatched")
		return sentCode{}
	}
}

type memRecorder struct {
	mu      sync.Mutex
	entries []activity.Entry
}

func (r *memRecorder) RecordAsync(_ context.Context, e activity.Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

func (r *memRecorder) all() []activity.Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]activity.Entry(nil), r.entries...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// seqGenerator hands out the given codes in order, repeating the last one.
type seqGenerator struct {
	mu    sync.Mutex
	codes []string
}

func (g *seqGenerator) Generate() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	c := g.codes[0]
	if len(g.codes) > 1 {
		g.codes = g.codes[1:]
	}
	return c, nil
}

type testEnv struct {
	svc    *Service
	store  *memStore
	sender *chanSender
	rec    *memRecorder
	clock  *fakeClock
	tokens TokenService
	hasher *Hasher
}

func newTestEnv(t *testing.T, codes ...string) *testEnv {
	t.Helper()
	if len(codes) == 0 {
		codes = []string{"4821"}
	}

	clock := &fakeClock{now: time.Now().UTC().Truncate(time.Second)}
	tokens, err := NewPasetoService(testTokenKey)
	require.NoError(t, err)

	env := &testEnv{
		store:  newMemStore(),
		sender: newChanSender(),
		rec:    &memRecorder{},
		clock:  clock,
		tokens: tokens,
		hasher: NewHasher(testArgon2Params),
	}

	issuer := otp.NewIssuer(&seqGenerator{codes: codes}, otp.DefaultTTL, clock.Now)
	svc, err := NewService(env.store, tokens, env.hasher, issuer, env.sender, env.rec, logging.NewNopLogger(), time.Hour)
	require.NoError(t, err)
	svc.now = clock.Now
	env.svc = svc
	return env
}

func (e *testEnv) addUser(t *testing.T, email, password string, role user.Role, approved bool) *user.User {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	require.NoError(t, err)
	u := &user.User{
		ID:           uuid.New(),
		Email:        email,
		Name:         "Test User",
		PasswordHash: hash,
		Role:         role,
		IsApproved:   approved,
		CreatedAt:    e.clock.Now(),
		UpdatedAt:    e.clock.Now(),
	}
	e.store.put(u)
	return u
}
