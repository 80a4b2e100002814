package cookiestore

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/satanpticoeur/social-logement-app/core/cookies"
)

var backendURL = &url.URL{Scheme: "http", Host: "127.0.0.1:5000", Path: "/api/login"}

func loginCookies() []*http.Cookie {
	return []*http.Cookie{
		{Name: "access_token_cookie", Value: "eyJhbGciOiJIUzI1NiJ9.payload", Path: "/", HttpOnly: true},
		{Name: "csrf_access_token", Value: "csrf-123", Path: "/"},
	}
}

func TestMemoryStoreHidesHttpOnly(t *testing.T) {
	s, err := Open(context.Background(), Options{})
	require.NoError(t, err)
	require.False(t, s.Persistent())

	s.SetCookies(backendURL, loginCookies())
	api := &url.URL{Scheme: "http", Host: "127.0.0.1:5000", Path: "/api/"}

	require.Len(t, s.Cookies(api), 2, "the transport still sends every cookie")
	require.Equal(t, "csrf_access_token=csrf-123", s.Document(api))

	r := cookies.NewJarReader(s, api)
	_, ok := r.Cookie("access_token_cookie")
	require.False(t, ok)
	v, ok := r.Cookie("csrf_access_token")
	require.True(t, ok)
	require.Equal(t, "csrf-123", v)
}

func TestPersistedStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cookies.db")

	s, err := Open(ctx, Options{Path: path, Passphrase: "correct horse"})
	require.NoError(t, err)
	require.True(t, s.Encrypted())
	s.SetCookies(backendURL, loginCookies())

	var raw []byte
	require.NoError(t, s.db.QueryRow(`SELECT value FROM cookies WHERE name='access_token_cookie'`).Scan(&raw))
	require.False(t, bytes.Contains(raw, []byte("eyJhbGci")), "value must be sealed at rest")
	require.NoError(t, s.Close())

	s2, err := Open(ctx, Options{Path: path, Passphrase: "correct horse"})
	require.NoError(t, err)
	defer s2.Close()
	api := &url.URL{Scheme: "http", Host: "127.0.0.1:5000", Path: "/api/protected"}
	require.Len(t, s2.Cookies(api), 2)
	require.Equal(t, "csrf_access_token=csrf-123", s2.Document(api))
}

func TestWrongPassphraseRejected(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cookies.db")
	s, err := Open(ctx, Options{Path: path, Passphrase: "one"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Path: path, Passphrase: "two"})
	require.True(t, errors.Is(err, ErrWrongPassphrase), "got %v", err)
}

func TestDeletionAndExpiry(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cookies.db")
	s, err := Open(ctx, Options{Path: path})
	require.NoError(t, err)
	require.False(t, s.Encrypted())

	s.SetCookies(backendURL, loginCookies())
	s.SetCookies(backendURL, []*http.Cookie{{Name: "csrf_access_token", Path: "/", MaxAge: -1}})

	var n int
	require.NoError(t, s.db.QueryRow(`SELECT COUNT(1) FROM cookies`).Scan(&n))
	require.Equal(t, 1, n)

	_, err = s.db.Exec(`UPDATE cookies SET expires_at=? WHERE name='access_token_cookie'`, time.Now().Add(-time.Hour).Unix())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(ctx, Options{Path: path})
	require.NoError(t, err)
	defer s2.Close()
	require.Empty(t, s2.Cookies(&url.URL{Scheme: "http", Host: "127.0.0.1:5000", Path: "/"}))
	require.NoError(t, s2.db.QueryRow(`SELECT COUNT(1) FROM cookies`).Scan(&n))
	require.Equal(t, 0, n)
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, Options{Path: filepath.Join(t.TempDir(), "c.db"), Passphrase: "p"})
	require.NoError(t, err)
	defer s.Close()
	s.SetCookies(backendURL, loginCookies())
	require.NoError(t, s.Clear(ctx))
	require.Empty(t, s.Cookies(backendURL))
	n, err := s.Load(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestCookiePathDefault(t *testing.T) {
	u := &url.URL{Path: "/api/auth/login"}
	require.Equal(t, "/api/auth", cookiePath(u, &http.Cookie{}))
	require.Equal(t, "/", cookiePath(&url.URL{Path: "/login"}, &http.Cookie{}))
	require.Equal(t, "/x", cookiePath(u, &http.Cookie{Path: "/x"}))
}
