// Package session authenticates users against the user records and keeps the current
// session in storage.
package session

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/celerix-dev/celerix-checkin/pkg/schema"
	"github.com/celerix-dev/celerix-checkin/pkg/sdk"
)

// Directory is the user lookup a Store authenticates against.
type Directory interface {
	ListUsers() ([]schema.User, error)
	FindUserByID(id string) (*schema.User, error)
}

// Store issues sessions for active users. Login, DemoLogin and Logout maintain the
// single persisted session under sdk.KeyAuth; SignIn and SignInDemo only issue tokens
// and are used by the multi-client HTTP API.
type Store struct {
	storage sdk.Storage
	users   Directory
	tokens  *Tokens
	log     *zap.Logger

	mu sync.Mutex
}

// NewStore creates a session store.
func NewStore(storage sdk.Storage, users Directory, tokens *Tokens, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		storage: storage,
		users:   users,
		tokens:  tokens,
		log:     log,
	}
}

// SignIn checks the credentials and issues a session without persisting it.
func (s *Store) SignIn(email, password string) (schema.AuthSession, error) {
	if email == "" || password == "" {
		return schema.AuthSession{}, sdk.ErrMissingCredentials
	}

	users, err := s.users.ListUsers()
	if err != nil {
		return schema.AuthSession{}, err
	}

	for _, u := range users {
		if !u.Active || !strings.EqualFold(u.Email, email) {
			continue
		}
		if u.PasswordHash != "" && !CheckPassword(u.PasswordHash, password) {
			break
		}
		return s.issue(u)
	}

	s.log.Warn("login rejected", zap.String("email", email))
	return schema.AuthSession{}, sdk.ErrInvalidCredentials
}

// SignInDemo issues a session for the first active user with role.
func (s *Store) SignInDemo(role schema.Role) (schema.AuthSession, error) {
	users, err := s.users.ListUsers()
	if err != nil {
		return schema.AuthSession{}, err
	}
	for _, u := range users {
		if u.Active && u.Role == role {
			return s.issue(u)
		}
	}
	return schema.AuthSession{}, sdk.ErrDemoUnavailable
}

// Login signs in and persists the session.
func (s *Store) Login(email, password string) (schema.AuthSession, error) {
	sess, err := s.SignIn(email, password)
	if err != nil {
		return schema.AuthSession{}, err
	}
	if err := s.save(sess); err != nil {
		return schema.AuthSession{}, err
	}
	return sess, nil
}

// DemoLogin signs in as the first active user with role and persists the session.
func (s *Store) DemoLogin(role schema.Role) (schema.AuthSession, error) {
	sess, err := s.SignInDemo(role)
	if err != nil {
		return schema.AuthSession{}, err
	}
	if err := s.save(sess); err != nil {
		return schema.AuthSession{}, err
	}
	return sess, nil
}

// Logout revokes and clears the persisted session. Logging out without a session is
// not an error.
func (s *Store) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, _ := sdk.Get[*schema.AuthSession](s.storage, sdk.KeyAuth, nil); sess != nil && sess.Token != "" {
		if err := s.tokens.Revoke(sess.Token); err != nil {
			s.log.Warn("failed to revoke session token", zap.Error(err))
		}
	}

	if err := s.storage.Remove(sdk.KeyAuth); err != nil && !errors.Is(err, sdk.ErrKeyNotFound) {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// GetSession returns the persisted session, or nil when there is none or it cannot
// be decoded.
func (s *Store) GetSession() (*schema.AuthSession, error) {
	sess, err := sdk.Get[*schema.AuthSession](s.storage, sdk.KeyAuth, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}
	if sess == nil || sess.Token == "" {
		return nil, nil
	}
	return sess, nil
}

// Authenticate verifies token and returns its claims. The user must still exist and be
// active; the role is taken from the current user record.
func (s *Store) Authenticate(token string) (*schema.TokenClaims, error) {
	claims, err := s.tokens.Parse(token)
	if err != nil {
		return nil, err
	}
	u, err := s.users.FindUserByID(claims.UserID)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.Active {
		return nil, ErrInvalidToken
	}
	claims.Role = u.Role
	claims.Email = u.Email
	return claims, nil
}

// Revoke invalidates token.
func (s *Store) Revoke(token string) error {
	return s.tokens.Revoke(token)
}

func (s *Store) issue(u schema.User) (schema.AuthSession, error) {
	token, err := s.tokens.Issue(u)
	if err != nil {
		return schema.AuthSession{}, fmt.Errorf("failed to sign token: %w", err)
	}
	s.log.Info("session issued", zap.String("user_id", u.ID), zap.String("role", string(u.Role)))
	return schema.AuthSession{Token: token, User: u.Public()}, nil
}

func (s *Store) save(sess schema.AuthSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := sdk.Set(s.storage, sdk.KeyAuth, sess); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
