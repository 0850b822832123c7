// Package session holds the signed-in user's tokens for upstream calls. It is
// an explicit context object passed to the clients that need it, loaded from
// and saved to a Store.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
)

// Store keys, matching the names the web client has always persisted under.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyUser         = "user"
)

// Tokens is the token pair issued at login.
type Tokens struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// User is the signed-in user as the auth endpoint returns it.
type User struct {
	ID        string `json:"id,omitempty"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Session is safe for concurrent use.
type Session struct {
	store Store
	clock clockwork.Clock

	mu      sync.Mutex
	tokens  Tokens
	user    *User
	expires time.Time // zero when the access token carries no exp claim
}

// New creates an empty session backed by store. A nil clock means the real
// clock.
func New(store Store, clock clockwork.Clock) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Session{store: store, clock: clock}
}

// Load restores a session previously saved to store. A store with no saved
// session yields an empty, unauthenticated session.
func Load(store Store, clock clockwork.Clock) (*Session, error) {
	s := New(store, clock)

	access, _, err := store.Get(keyAccessToken)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	refresh, _, err := store.Get(keyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	rawUser, hasUser, err := store.Get(keyUser)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	var user *User
	if hasUser && rawUser != "" {
		user = &User{}
		if err := json.Unmarshal([]byte(rawUser), user); err != nil {
			return nil, fmt.Errorf("load session user: %w", err)
		}
	}

	s.tokens = Tokens{Access: access, Refresh: refresh}
	s.user = user
	s.expires = tokenExpiry(access)
	return s, nil
}

// Login stores the tokens and user and persists them. A nil user clears any
// previously saved user.
func (s *Session) Login(tokens Tokens, user *User) error {
	if tokens.Access == "" {
		return errors.New("login: empty access token")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Set(keyAccessToken, tokens.Access); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if err := s.store.Set(keyRefreshToken, tokens.Refresh); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	// An empty user value overwrites whoever signed in before.
	rawUser := ""
	if user != nil {
		b, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("login: encode user: %w", err)
		}
		rawUser = string(b)
	}
	if err := s.store.Set(keyUser, rawUser); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	s.tokens = tokens
	s.user = user
	s.expires = tokenExpiry(tokens.Access)
	return nil
}

// Logout forgets the session and clears the store.
func (s *Session) Logout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = Tokens{}
	s.user = nil
	s.expires = time.Time{}
	if err := s.store.Clear(); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// AccessToken returns the access token while it is present and unexpired.
func (s *Session) AccessToken() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tokens.Access == "" {
		return "", false
	}
	if !s.expires.IsZero() && !s.clock.Now().Before(s.expires) {
		return "", false
	}
	return s.tokens.Access, true
}

// Authenticated reports whether the session has a usable access token.
func (s *Session) Authenticated() bool {
	_, ok := s.AccessToken()
	return ok
}

// User returns the signed-in user, or nil.
func (s *Session) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// tokenExpiry reads the exp claim of a JWT access token. The signature is not
// checked: the API verifies its own tokens, and here exp only decides whether
// sending the token is worth it. Opaque tokens never expire.
func tokenExpiry(token string) time.Time {
	if token == "" {
		return time.Time{}
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
