// Package cookies reads client-visible cookie values, the way page scripts
// read document.cookie.
package cookies

import (
	"net/http"
	"net/url"
	"strings"
)

// Reader returns the current value of a named cookie.
type Reader interface {
	Cookie(name string) (string, bool)
}

// Get extracts name from a cookie document ("a=1; b=2"). Only an exact
// "; name=" boundary matches, so csrf_access_token_other never satisfies a
// lookup for csrf_access_token. When the name repeats, the first occurrence
// wins (jars list the most specific path first).
func Get(document, name string) (string, bool) {
	if document == "" || name == "" {
		return "", false
	}
	parts := strings.Split("; "+document, "; "+name+"=")
	if len(parts) < 2 {
		return "", false
	}
	value := parts[1]
	if i := strings.IndexByte(value, ';'); i >= 0 {
		value = value[:i]
	}
	return value, true
}

// Document renders cookies the way a browser exposes them to scripts.
func Document(cs []*http.Cookie) string {
	pairs := make([]string, 0, len(cs))
	for _, c := range cs {
		if c == nil || c.Name == "" {
			continue
		}
		pairs = append(pairs, c.Name+"="+c.Value)
	}
	return strings.Join(pairs, "; ")
}

type documentJar interface {
	Document(u *url.URL) string
}

// JarReader reads cookies for URL from Jar on every call. Nothing is cached:
// the backend may rotate the CSRF cookie at any response.
type JarReader struct {
	Jar http.CookieJar
	URL *url.URL
}

func NewJarReader(jar http.CookieJar, u *url.URL) *JarReader {
	return &JarReader{Jar: jar, URL: u}
}

func (r *JarReader) Cookie(name string) (string, bool) {
	if r == nil || r.Jar == nil || r.URL == nil {
		return "", false
	}
	return Get(r.document(), name)
}

func (r *JarReader) document() string {
	if dj, ok := r.Jar.(documentJar); ok {
		return dj.Document(r.URL)
	}
	return Document(r.Jar.Cookies(r.URL))
}

// Static is a fixed cookie document, handy for tests and one-shot tools.
type Static string

func (s Static) Cookie(name string) (string, bool) {
	return Get(string(s), name)
}
