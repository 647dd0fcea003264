// Package identity adapts external identity providers to auth.TokenValidator.
// Every implementation collapses failures into apperr.ErrUnauthenticated.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"ventas.io/internal/apperr"
)

const defaultTimeout = 5 * time.Second

// RemoteValidator asks the provider's user endpoint who owns a token.
type RemoteValidator struct {
	endpoint   string
	serviceKey string
	client     *http.Client
}

// RemoteOption configures a RemoteValidator.
type RemoteOption func(*RemoteValidator)

// WithHTTPClient overrides the HTTP client; its Timeout bounds each call.
func WithHTTPClient(c *http.Client) RemoteOption {
	return func(v *RemoteValidator) {
		if c != nil {
			v.client = c
		}
	}
}

// WithTimeout sets the per-call timeout on the default client.
func WithTimeout(d time.Duration) RemoteOption {
	return func(v *RemoteValidator) {
		if d > 0 {
			v.client = &http.Client{Timeout: d}
		}
	}
}

// NewRemoteValidator targets {baseURL}/auth/v1/user, authenticating the call
// with serviceKey.
func NewRemoteValidator(baseURL, serviceKey string, opts ...RemoteOption) (*RemoteValidator, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("identity: provider url is required")
	}
	if strings.TrimSpace(serviceKey) == "" {
		return nil, errors.New("identity: service key is required")
	}
	v := &RemoteValidator{
		endpoint:   baseURL + "/auth/v1/user",
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

type providerUser struct {
	ID string `json:"id"`
}

// Validate returns the provider's user id for token. No retries.
func (v *RemoteValidator) Validate(ctx context.Context, token string) (uuid.UUID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return uuid.Nil, unauthenticated(errors.New("empty token"))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.endpoint, nil)
	if err != nil {
		return uuid.Nil, unauthenticated(err)
	}
	req.Header.Set("apikey", v.serviceKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return uuid.Nil, unauthenticated(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4<<10))
		return uuid.Nil, unauthenticated(fmt.Errorf("provider returned %d", resp.StatusCode))
	}
	var user providerUser
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&user); err != nil {
		return uuid.Nil, unauthenticated(fmt.Errorf("decode provider response: %w", err))
	}
	return parseSubject(user.ID)
}

func parseSubject(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, unauthenticated(fmt.Errorf("subject %q is not a uuid", raw))
	}
	return id, nil
}

func unauthenticated(cause error) error {
	return fmt.Errorf("%w: %w", apperr.ErrUnauthenticated, cause)
}
