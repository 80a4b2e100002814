package apitest

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"testing"
	"time"
)

func TestLoginSetsDoubleSubmitCookies(t *testing.T) {
	b := New()
	b.AddUser(User{Name: "Fatou", Email: "fatou@example.sn", Password: "secret", Role: "locataire"})
	srv := b.Start(t)

	resp, err := http.Post(srv.URL+"/api/login", "application/json", strings.NewReader(`{"email":"fatou@example.sn","mot_de_passe":"secret"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
	var access, csrf *http.Cookie
	for _, c := range resp.Cookies() {
		switch c.Name {
		case AccessCookie:
			access = c
		case CSRFCookie:
			csrf = c
		}
	}
	if access == nil || !access.HttpOnly {
		t.Fatalf("access cookie must be HttpOnly: %+v", access)
	}
	if csrf == nil || csrf.HttpOnly || csrf.Value == "" {
		t.Fatalf("csrf cookie must be readable: %+v", csrf)
	}
}

func TestMutatingRequestsRequireMatchingCSRF(t *testing.T) {
	b := New()
	b.AddUser(User{Name: "Awa", Email: "awa@example.sn", Password: "secret", Role: "proprietaire"})
	srv := b.Start(t)
	jar, _ := cookiejar.New(nil)
	hc := &http.Client{Jar: jar}

	resp, err := hc.Post(srv.URL+"/api/login", "application/json", strings.NewReader(`{"email":"awa@example.sn","mot_de_passe":"secret"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/proprietaire/paiements/99/marquer_paye", nil)
	resp, err = hc.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without CSRF header, got %d", resp.StatusCode)
	}

	u, _ := url.Parse(srv.URL)
	var token string
	for _, c := range jar.Cookies(u) {
		if c.Name == CSRFCookie {
			token = c.Value
		}
	}
	req, _ = http.NewRequest(http.MethodPut, srv.URL+"/api/proprietaire/paiements/99/marquer_paye", nil)
	req.Header.Set(CSRFHeader, token)
	resp, err = hc.Do(req)
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown payment with valid CSRF, got %d", resp.StatusCode)
	}
}

func TestCSRFTokenBoundToSession(t *testing.T) {
	now := time.Now()
	tok := generateCSRF("k", "session-a", now)
	if err := verifyCSRF("k", "session-a", tok); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if err := verifyCSRF("k", "session-b", tok); err == nil {
		t.Fatalf("token must not verify for another session")
	}
	if err := verifyCSRF("other", "session-a", tok); err == nil {
		t.Fatalf("token must not verify with another secret")
	}
}

func TestProtectedWithoutCookie(t *testing.T) {
	srv := New().Start(t)
	resp, err := http.Get(srv.URL + "/api/protected")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAuthPrefix(t *testing.T) {
	b := New(WithAuthPrefix("auth"))
	b.AddUser(User{Name: "Fatou", Email: "fatou@example.sn", Password: "secret"})
	srv := b.Start(t)
	resp, err := http.Post(srv.URL+"/api/auth/login", "application/json", strings.NewReader(`{"email":"fatou@example.sn","mot_de_passe":"secret"}`))
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode)
	}
}
