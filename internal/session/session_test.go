package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{"user_id": "42", "token_type": "access"}
	if !exp.IsZero() {
		claims["exp"] = exp.Unix()
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("not-our-secret"))
	require.NoError(t, err)
	return s
}

func TestSession_LoginAndExpiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(now)
	s := New(NewMemoryStore(), clock)
	assert.False(t, s.Authenticated())

	access := signedToken(t, now.Add(5*time.Minute))
	require.NoError(t, s.Login(Tokens{Access: access, Refresh: "r"}, &User{Email: "ops@example.com"}))

	token, ok := s.AccessToken()
	require.True(t, ok)
	assert.Equal(t, access, token)
	assert.Equal(t, "ops@example.com", s.User().Email)

	clock.Advance(5 * time.Minute)
	assert.False(t, s.Authenticated(), "token is expired at exp")
}

func TestSession_OpaqueTokenNeverExpires(t *testing.T) {
	clock := clockwork.NewFakeClockAt(now)
	s := New(NewMemoryStore(), clock)
	require.NoError(t, s.Login(Tokens{Access: "opaque-token"}, nil))

	clock.Advance(24 * 365 * time.Hour)
	token, ok := s.AccessToken()
	assert.True(t, ok)
	assert.Equal(t, "opaque-token", token)
	assert.Nil(t, s.User())
}

func TestSession_JWTWithoutExp(t *testing.T) {
	s := New(NewMemoryStore(), clockwork.NewFakeClockAt(now))
	require.NoError(t, s.Login(Tokens{Access: signedToken(t, time.Time{})}, nil))
	assert.True(t, s.Authenticated())
}

func TestSession_LoginRejectsEmptyToken(t *testing.T) {
	s := New(NewMemoryStore(), nil)
	require.Error(t, s.Login(Tokens{}, nil))
}

func TestSession_Logout(t *testing.T) {
	store := NewMemoryStore()
	s := New(store, clockwork.NewFakeClockAt(now))
	require.NoError(t, s.Login(Tokens{Access: "a", Refresh: "r"}, &User{Email: "x@example.com"}))

	require.NoError(t, s.Logout())

	assert.False(t, s.Authenticated())
	assert.Nil(t, s.User())
	_, ok, err := store.Get(keyAccessToken)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSession_UserIsACopy(t *testing.T) {
	s := New(NewMemoryStore(), nil)
	require.NoError(t, s.Login(Tokens{Access: "a"}, &User{Email: "x@example.com"}))

	s.User().Email = "changed@example.com"
	assert.Equal(t, "x@example.com", s.User().Email)
}

func TestLoad_RoundTripThroughFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	clock := clockwork.NewFakeClockAt(now)
	access := signedToken(t, now.Add(time.Hour))

	s := New(NewFileStore(path), clock)
	require.NoError(t, s.Login(Tokens{Access: access, Refresh: "r"}, &User{Email: "ops@example.com", Role: "admin"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	loaded, err := Load(NewFileStore(path), clock)
	require.NoError(t, err)
	assert.True(t, loaded.Authenticated())
	assert.Equal(t, &User{Email: "ops@example.com", Role: "admin"}, loaded.User())

	clock.Advance(2 * time.Hour)
	assert.False(t, loaded.Authenticated())
}

func TestLogin_WithoutUserForgetsSavedUser(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	clock := clockwork.NewFakeClockAt(now)

	s := New(NewFileStore(path), clock)
	require.NoError(t, s.Login(Tokens{Access: "first"}, &User{Email: "old@example.com"}))
	require.NoError(t, s.Login(Tokens{Access: "second"}, nil))
	assert.Nil(t, s.User())

	loaded, err := Load(NewFileStore(path), clock)
	require.NoError(t, err)
	token, ok := loaded.AccessToken()
	require.True(t, ok)
	assert.Equal(t, "second", token)
	assert.Nil(t, loaded.User())
}

func TestLoad_EmptyStore(t *testing.T) {
	s, err := Load(NewFileStore(filepath.Join(t.TempDir(), "missing.json")), nil)
	require.NoError(t, err)
	assert.False(t, s.Authenticated())
	assert.Nil(t, s.User())
}

func TestLoad_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(NewFileStore(path), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode session file")
}

func TestFileStore_Clear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store := NewFileStore(path)
	require.NoError(t, store.Set("k", "v"))

	require.NoError(t, store.Clear())
	require.NoError(t, store.Clear())

	_, err := os.Stat(path)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
