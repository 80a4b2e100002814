package cookies

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"testing"
)

func TestGetExtractsExactValue(t *testing.T) {
	cases := []struct {
		doc  string
		want string
		ok   bool
	}{
		{"csrf_access_token=abc123", "abc123", true},
		{"theme=dark; csrf_access_token=abc123; lang=fr", "abc123", true},
		{"theme=dark; csrf_access_token=abc123", "abc123", true},
		{"csrf_access_token=", "", true},
		{"", "", false},
		{"theme=dark", "", false},
		{"csrf_access_token_other=x", "", false},
		{"x_csrf_access_token=y; csrf_access_token_other=x", "", false},
		{"csrf_access_token_other=x; csrf_access_token=real", "real", true},
		{"csrf_access_token=first; csrf_access_token=second", "first", true},
	}
	for _, tc := range cases {
		got, ok := Get(tc.doc, "csrf_access_token")
		if got != tc.want || ok != tc.ok {
			t.Fatalf("Get(%q) = %q,%v want %q,%v", tc.doc, got, ok, tc.want, tc.ok)
		}
	}
}

func TestGetEmptyName(t *testing.T) {
	if _, ok := Get("a=1", ""); ok {
		t.Fatalf("empty name must never match")
	}
}

func TestJarReaderReadsLatestValue(t *testing.T) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("jar: %v", err)
	}
	u, _ := url.Parse("http://api.local/api/")
	r := NewJarReader(jar, u)
	if _, ok := r.Cookie("csrf_access_token"); ok {
		t.Fatalf("expected no cookie in empty jar")
	}
	jar.SetCookies(u, []*http.Cookie{{Name: "csrf_access_token", Value: "one", Path: "/"}})
	if v, _ := r.Cookie("csrf_access_token"); v != "one" {
		t.Fatalf("unexpected value %q", v)
	}
	jar.SetCookies(u, []*http.Cookie{{Name: "csrf_access_token", Value: "two", Path: "/"}})
	if v, _ := r.Cookie("csrf_access_token"); v != "two" {
		t.Fatalf("rotated value not observed, got %q", v)
	}
}

type fakeDocumentJar struct {
	http.CookieJar
	doc string
}

func (f fakeDocumentJar) Document(*url.URL) string { return f.doc }

func TestJarReaderPrefersDocumentView(t *testing.T) {
	jar, _ := cookiejar.New(nil)
	u, _ := url.Parse("http://api.local/")
	jar.SetCookies(u, []*http.Cookie{{Name: "access_token_cookie", Value: "secret", Path: "/"}})
	r := NewJarReader(fakeDocumentJar{CookieJar: jar, doc: "csrf_access_token=visible"}, u)
	if _, ok := r.Cookie("access_token_cookie"); ok {
		t.Fatalf("HttpOnly cookie must not be visible through the document view")
	}
	if v, _ := r.Cookie("csrf_access_token"); v != "visible" {
		t.Fatalf("unexpected value %q", v)
	}
}

func TestStatic(t *testing.T) {
	if v, ok := Static("a=1; csrf_access_token=t").Cookie("csrf_access_token"); !ok || v != "t" {
		t.Fatalf("unexpected %q %v", v, ok)
	}
}
