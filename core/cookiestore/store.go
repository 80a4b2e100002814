// Package cookiestore is the client's cookie store: an http.CookieJar that
// survives restarts in an encrypted SQLite file.
package cookiestore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/satanpticoeur/social-logement-app/core/cookies"
	"github.com/satanpticoeur/social-logement-app/core/utils"
)

var ErrWrongPassphrase = errors.New("cookiestore: passphrase does not open this store")

const passphraseCheck = "social-logement-cookie-store"

type Options struct {
	// Path of the SQLite file. Empty keeps cookies in memory.
	Path       string
	Passphrase string
	Logger     *utils.Logger
}

type Store struct {
	mu       sync.Mutex
	jar      *cookiejar.Jar
	db       *sql.DB
	enc      *utils.Encryptor
	logger   *utils.Logger
	httpOnly map[string]map[string]bool // name -> domain -> flag
}

func Open(ctx context.Context, opts Options) (*Store, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = utils.NewDiscardLogger()
	}
	s := &Store{jar: jar, logger: logger, httpOnly: map[string]map[string]bool{}}
	if strings.TrimSpace(opts.Path) == "" {
		return s, nil
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o700); err != nil {
		return nil, fmt.Errorf("cookie store dir: %w", err)
	}
	db, err := sql.Open("sqlite", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("open cookie store: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, err
	}
	if err := applyMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}
	s.db = db
	if opts.Passphrase == "" {
		logger.Warnf("cookie store %s is not encrypted: set cookie_store.passphrase", opts.Path)
	} else if err := s.initEncryption(ctx, opts.Passphrase); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := s.Load(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initEncryption(ctx context.Context, passphrase string) error {
	salt, err := s.meta(ctx, "salt")
	if err != nil {
		return err
	}
	if salt == nil {
		if salt, err = utils.NewSalt(); err != nil {
			return err
		}
		if err := s.setMeta(ctx, "salt", salt); err != nil {
			return err
		}
	}
	enc, err := utils.NewEncryptorFromPassphrase(passphrase, salt)
	if err != nil {
		return err
	}
	check, err := s.meta(ctx, "check")
	if err != nil {
		return err
	}
	if check == nil {
		blob, err := enc.EncryptToBlob([]byte(passphraseCheck))
		if err != nil {
			return err
		}
		if err := s.setMeta(ctx, "check", blob); err != nil {
			return err
		}
	} else if plain, err := enc.DecryptBlob(check); err != nil || string(plain) != passphraseCheck {
		return ErrWrongPassphrase
	}
	s.enc = enc
	return nil
}

func (s *Store) meta(ctx context.Context, key string) ([]byte, error) {
	var v []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key=?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return v, err
}

func (s *Store) setMeta(ctx context.Context, key string, v []byte) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR REPLACE INTO store_meta(key, value) VALUES(?, ?)`, key, v)
	return err
}

// Persistent reports whether the store is backed by a file.
func (s *Store) Persistent() bool { return s.db != nil }

// Encrypted reports whether values are sealed at rest.
func (s *Store) Encrypted() bool { return s.enc != nil }

func (s *Store) Cookies(u *url.URL) []*http.Cookie {
	s.mu.Lock()
	jar := s.jar
	s.mu.Unlock()
	return jar.Cookies(u)
}

func (s *Store) SetCookies(u *url.URL, cs []*http.Cookie) {
	now := time.Now()
	s.mu.Lock()
	s.jar.SetCookies(u, cs)
	for _, c := range cs {
		if c == nil || c.Name == "" {
			continue
		}
		domain := cookieDomain(u, c)
		if isDeletion(c, now) {
			delete(s.httpOnly[c.Name], domain)
			continue
		}
		if s.httpOnly[c.Name] == nil {
			s.httpOnly[c.Name] = map[string]bool{}
		}
		s.httpOnly[c.Name][domain] = c.HttpOnly
	}
	s.mu.Unlock()
	if s.db == nil {
		return
	}
	if err := s.persist(context.Background(), u, cs, now); err != nil {
		s.logger.Errorf("cookie store write failed: %v", err)
	}
}

// Document is the script-visible cookie string for u: HttpOnly cookies are
// left out.
func (s *Store) Document(u *url.URL) string {
	host := strings.ToLower(u.Hostname())
	s.mu.Lock()
	defer s.mu.Unlock()
	var visible []*http.Cookie
	for _, c := range s.jar.Cookies(u) {
		if s.isHTTPOnly(c.Name, host) {
			continue
		}
		visible = append(visible, c)
	}
	return cookies.Document(visible)
}

func (s *Store) isHTTPOnly(name, host string) bool {
	for domain, flag := range s.httpOnly[name] {
		if flag && (host == domain || strings.HasSuffix(host, "."+domain)) {
			return true
		}
	}
	return false
}

func (s *Store) persist(ctx context.Context, u *url.URL, cs []*http.Cookie, now time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, c := range cs {
		if c == nil || c.Name == "" {
			continue
		}
		domain := strings.TrimPrefix(strings.ToLower(c.Domain), ".")
		path := cookiePath(u, c)
		if isDeletion(c, now) {
			if _, err := tx.ExecContext(ctx, `DELETE FROM cookies WHERE host=? AND name=? AND domain=? AND path=?`,
				u.Host, c.Name, domain, path); err != nil {
				return err
			}
			continue
		}
		value, sealed, err := s.seal(c.Value)
		if err != nil {
			return err
		}
		var expires any
		switch {
		case c.MaxAge > 0:
			expires = now.Add(time.Duration(c.MaxAge) * time.Second).Unix()
		case !c.Expires.IsZero():
			expires = c.Expires.Unix()
		}
		if _, err := tx.ExecContext(ctx, `INSERT OR REPLACE INTO cookies(host, scheme, name, domain, path, value, sealed, http_only, secure, same_site, expires_at, updated_at)
			VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
			u.Host, u.Scheme, c.Name, domain, path, value, sealed, boolToInt(c.HttpOnly), boolToInt(c.Secure), int(c.SameSite), expires, now.Unix()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) seal(v string) ([]byte, int, error) {
	if s.enc == nil {
		return []byte(v), 0, nil
	}
	blob, err := s.enc.EncryptToBlob([]byte(v))
	return blob, 1, err
}

// Load replays persisted cookies into the jar and prunes expired rows. It
// returns the number of cookies restored.
func (s *Store) Load(ctx context.Context) (int, error) {
	if s.db == nil {
		return 0, nil
	}
	now := time.Now()
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cookies WHERE expires_at IS NOT NULL AND expires_at <= ?`, now.Unix()); err != nil {
		return 0, fmt.Errorf("prune cookies: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT host, scheme, name, domain, path, value, sealed, http_only, secure, same_site, expires_at FROM cookies ORDER BY updated_at`)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	type entry struct {
		u *url.URL
		c *http.Cookie
	}
	var entries []entry
	for rows.Next() {
		var (
			host, scheme, name, domain, path string
			value                            []byte
			sealed, httpOnly, secure, same   int
			expires                          sql.NullInt64
		)
		if err := rows.Scan(&host, &scheme, &name, &domain, &path, &value, &sealed, &httpOnly, &secure, &same, &expires); err != nil {
			return 0, err
		}
		plain, err := s.open(value, sealed == 1)
		if err != nil {
			s.logger.Warnf("cookie %s for %s skipped: %v", name, host, err)
			continue
		}
		c := &http.Cookie{
			Name:     name,
			Value:    string(plain),
			Path:     path,
			Domain:   domain,
			HttpOnly: httpOnly == 1,
			Secure:   secure == 1,
			SameSite: http.SameSite(same),
		}
		if expires.Valid {
			c.Expires = time.Unix(expires.Int64, 0)
		}
		entries = append(entries, entry{u: &url.URL{Scheme: scheme, Host: host, Path: path}, c: c})
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	s.mu.Lock()
	for _, e := range entries {
		s.jar.SetCookies(e.u, []*http.Cookie{e.c})
		d := cookieDomain(e.u, e.c)
		if s.httpOnly[e.c.Name] == nil {
			s.httpOnly[e.c.Name] = map[string]bool{}
		}
		s.httpOnly[e.c.Name][d] = e.c.HttpOnly
	}
	s.mu.Unlock()
	return len(entries), nil
}

func (s *Store) open(value []byte, sealed bool) ([]byte, error) {
	if !sealed {
		return value, nil
	}
	if s.enc == nil {
		return nil, errors.New("value is encrypted and no passphrase is configured")
	}
	return s.enc.DecryptBlob(value)
}

// Clear forgets every cookie, in memory and on disk.
func (s *Store) Clear(ctx context.Context) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.jar = jar
	s.httpOnly = map[string]map[string]bool{}
	s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	_, err = s.db.ExecContext(ctx, `DELETE FROM cookies`)
	return err
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func isDeletion(c *http.Cookie, now time.Time) bool {
	return c.MaxAge < 0 || (!c.Expires.IsZero() && !c.Expires.After(now))
}

func cookieDomain(u *url.URL, c *http.Cookie) string {
	if d := strings.TrimPrefix(strings.ToLower(c.Domain), "."); d != "" {
		return d
	}
	return strings.ToLower(u.Hostname())
}

// cookiePath mirrors the default-path rule of RFC 6265 section 5.1.4.
func cookiePath(u *url.URL, c *http.Cookie) string {
	if strings.HasPrefix(c.Path, "/") {
		return c.Path
	}
	p := u.EscapedPath()
	if p == "" || p[0] != '/' {
		return "/"
	}
	i := strings.LastIndex(p, "/")
	if i == 0 {
		return "/"
	}
	return p[:i]
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
