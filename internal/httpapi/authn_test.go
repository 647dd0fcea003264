package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"ventas.io/internal/apperr"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		token  string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer   abc  ", "abc", true},
		{"", "", false},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
	}
	for _, tc := range cases {
		token, err := extractBearerToken(tc.header)
		if tc.ok {
			if err != nil || token != tc.token {
				t.Fatalf("%q: expected %q, got %q (%v)", tc.header, tc.token, token, err)
			}
			continue
		}
		if !errors.Is(err, apperr.ErrUnauthenticated) {
			t.Fatalf("%q: expected unauthenticated, got %v", tc.header, err)
		}
	}
}

func TestSessionTokenPrefersCookie(t *testing.T) {
	a := &API{cookieName: "session"}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "session", Value: "from-cookie"})
	req.Header.Set(authHeader, "Bearer from-header")
	if got := a.sessionToken(req); got != "from-cookie" {
		t.Fatalf("expected cookie token, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(authHeader, "Bearer from-header")
	if got := a.sessionToken(req); got != "from-header" {
		t.Fatalf("expected header token, got %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "other", Value: "x"})
	if got := a.sessionToken(req); got != "" {
		t.Fatalf("expected no token, got %q", got)
	}
}
