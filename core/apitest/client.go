package apitest

import (
	"net/http"
	"net/http/cookiejar"
	"testing"

	"github.com/satanpticoeur/social-logement-app/core/apiclient"
)

// NewClient returns a request client with a fresh cookie jar pointed at baseURL.
func NewClient(t testing.TB, baseURL string) *apiclient.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	c, err := apiclient.New(apiclient.Config{BaseURL: baseURL}, &http.Client{Jar: jar}, nil, nil, nil)
	if err != nil {
		t.Fatalf("api client: %v", err)
	}
	return c
}
