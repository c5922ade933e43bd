// Package auth provides demo sign-in sessions. Sessions identify the caller
// for display purposes only; no endpoint is restricted by them.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrUnknownSession     = errors.New("session not found or expired")
	ErrDuplicateUser      = errors.New("user already exists")
)

// Role is what a user does in the back office.
type Role string

const (
	RoleBorrower   Role = "borrower"
	RoleOfficer    Role = "loan_officer"
	RoleAccountant Role = "accountant"
	RoleAdmin      Role = "admin"
)

// User is a signed-up person.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Session is an active sign-in.
type Session struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type account struct {
	user User
	hash []byte
}

// Service holds users and sessions in memory.
type Service struct {
	mu       sync.RWMutex
	accounts map[string]account
	sessions map[string]Session
	ttl      time.Duration
	cost     int
	now      func() time.Time
	logger   *zap.Logger
}

// NewService creates an empty session store. Sessions last ttl.
func NewService(ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Service{
		accounts: make(map[string]account),
		sessions: make(map[string]Session),
		ttl:      ttl,
		cost:     bcrypt.DefaultCost,
		now:      time.Now,
		logger:   logger,
	}
}

// AddUser registers a user with a password.
func (s *Service) AddUser(u User, password string) (User, error) {
	email := normalizeEmail(u.Email)
	if email == "" || password == "" {
		return User{}, errors.New("email and password are required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return User{}, fmt.Errorf("hashing password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.accounts[email]; exists {
		return User{}, fmt.Errorf("%w: %s", ErrDuplicateUser, email)
	}
	u.Email = email
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Role == "" {
		u.Role = RoleBorrower
	}
	s.accounts[email] = account{user: u, hash: hash}
	return u, nil
}

// SignIn checks the password and opens a session.
func (s *Service) SignIn(email, password string) (Session, error) {
	s.mu.RLock()
	acct, ok := s.accounts[normalizeEmail(email)]
	s.mu.RUnlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		s.logger.Info("sign in failed", zap.String("op", "auth.SignIn"), zap.String("email", email))
		return Session{}, ErrInvalidCredentials
	}

	now := s.now()
	session := Session{
		Token:     uuid.NewString(),
		User:      acct.user,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}
	s.mu.Lock()
	s.sessions[session.Token] = session
	s.mu.Unlock()

	s.logger.Info("signed in", zap.String("op", "auth.SignIn"), zap.String("user", acct.user.ID), zap.String("role", string(acct.user.Role)))
	return session, nil
}

// SignOut ends a session. Unknown tokens are ignored.
func (s *Service) SignOut(token string) {
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
}

// Me returns the user behind a session token.
func (s *Service) Me(token string) (User, error) {
	s.mu.RLock()
	session, ok := s.sessions[token]
	s.mu.RUnlock()
	if !ok {
		return User{}, ErrUnknownSession
	}
	if !s.now().Before(session.ExpiresAt) {
		s.SignOut(token)
		return User{}, ErrUnknownSession
	}
	return session.User, nil
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DemoPassword is the password of every demo account.
const DemoPassword = "demo1234"

// SeedDemoUsers registers one user per role.
func (s *Service) SeedDemoUsers() error {
	demo := []User{
		{Email: "admin@microloan.local", Name: "System Administrator", Role: RoleAdmin},
		{Email: "officer@microloan.local", Name: "Loan Officer", Role: RoleOfficer},
		{Email: "accountant@microloan.local", Name: "Accountant", Role: RoleAccountant},
		{Email: "borrower@microloan.local", Name: "Demo Borrower", Role: RoleBorrower},
	}
	for _, u := range demo {
		if _, err := s.AddUser(u, DemoPassword); err != nil && !errors.Is(err, ErrDuplicateUser) {
			return err
		}
	}
	return nil
}
