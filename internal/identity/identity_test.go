package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ventas.io/internal/apperr"
)

var subject = uuid.MustParse("0f6c8a52-2d1e-4c8b-a3b5-64f1d9b2e7aa")

func providerServer(t *testing.T, handler http.HandlerFunc) *RemoteValidator {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	v, err := NewRemoteValidator(srv.URL+"/", "service-key", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return v
}

func TestRemoteValidatorReturnsSubject(t *testing.T) {
	v := providerServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/user", r.URL.Path)
		assert.Equal(t, "service-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer good-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"` + subject.String() + `","email":"a@b.c"}`))
	})

	got, err := v.Validate(context.Background(), "good-token")
	require.NoError(t, err)
	assert.Equal(t, subject, got)
}

func TestRemoteValidatorCollapsesFailures(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"rejected": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		},
		"provider error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
		"garbage body": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`not json`))
		},
		"non uuid subject": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id":"user-42"}`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			v := providerServer(t, handler)
			_, err := v.Validate(context.Background(), "tok")
			assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
		})
	}
}

func TestRemoteValidatorTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	v, err := NewRemoteValidator(url, "key", WithTimeout(time.Second))
	require.NoError(t, err)
	_, err = v.Validate(context.Background(), "tok")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
}

func TestRemoteValidatorEmptyTokenSkipsProvider(t *testing.T) {
	called := false
	v := providerServer(t, func(w http.ResponseWriter, r *http.Request) { called = true })
	_, err := v.Validate(context.Background(), "")
	assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
	assert.False(t, called)
}

func TestNewRemoteValidatorRequiresConfig(t *testing.T) {
	_, err := NewRemoteValidator("", "key")
	assert.Error(t, err)
	_, err = NewRemoteValidator("http://idp", " ")
	assert.Error(t, err)
}

func TestJWTValidatorRoundTrip(t *testing.T) {
	v, err := NewJWTValidator("s3cret", "authenticated")
	require.NoError(t, err)

	token, err := MintHS256("s3cret", subject, "authenticated", time.Minute)
	require.NoError(t, err)

	got, err := v.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, subject, got)
}

func TestJWTValidatorRejects(t *testing.T) {
	v, err := NewJWTValidator("s3cret", "authenticated")
	require.NoError(t, err)

	wrongSecret, err := MintHS256("other", subject, "authenticated", time.Minute)
	require.NoError(t, err)
	wrongAudience, err := MintHS256("s3cret", subject, "anon", time.Minute)
	require.NoError(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject.String(),
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:  subject.String(),
		Audience: jwt.ClaimStrings{"authenticated"},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	badSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "not-a-uuid",
		Audience:  jwt.ClaimStrings{"authenticated"},
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	for name, tok := range map[string]string{
		"wrong secret":   wrongSecret,
		"wrong audience": wrongAudience,
		"expired":        expired,
		"no expiry":      noExpiry,
		"bad subject":    badSubject,
		"garbage":        "a.b.c",
		"empty":          "",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Validate(context.Background(), tok)
			assert.ErrorIs(t, err, apperr.ErrUnauthenticated)
		})
	}
}

func TestMintHS256Validation(t *testing.T) {
	_, err := MintHS256("", subject, "", time.Minute)
	assert.Error(t, err)
	_, err = MintHS256("s", uuid.Nil, "", time.Minute)
	assert.Error(t, err)
	_, err = MintHS256("s", subject, "", 0)
	assert.Error(t, err)
}
